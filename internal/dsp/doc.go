// Package dsp implements the spectral primitives used by the packet classifier.
// It provides a recursive radix-2 Fourier transform over complex samples and
// reduces a spectrum to its peak magnitude.
package dsp
