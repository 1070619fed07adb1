package dsp

import (
	"errors"
	"math"
)

// ErrEmptySpectrum is the panic value raised when MaxMagnitude receives no bins.
var ErrEmptySpectrum = errors.New("dsp: max magnitude of empty spectrum")

// MaxMagnitude returns the largest Euclidean magnitude over all bins.
// It panics with ErrEmptySpectrum when spectrum is empty; callers always
// pass the spectrum of a non-empty packet.
func MaxMagnitude(spectrum []complex128) float64 {
	if len(spectrum) == 0 {
		panic(ErrEmptySpectrum)
	}

	peak := 0.0
	for _, bin := range spectrum {
		mag := math.Hypot(real(bin), imag(bin))
		if mag > peak {
			peak = mag
		}
	}
	return peak
}
