package dsp

import (
	"math"
	"math/cmplx"
)

// Transform computes the unscaled discrete Fourier transform of x using
// recursive Cooley-Tukey decimation in time.
//
// For power-of-two lengths bin k holds sum(x[n] * e^(-2*pi*i*k*n/N)).
// Odd lengths are accepted: the even half of an odd level carries one extra
// sample, only N/2 butterflies run and the last bin of that level stays zero.
// The input slice is not modified.
func Transform(x []complex128) []complex128 {
	n := len(x)
	if n == 0 {
		return []complex128{}
	}
	if n == 1 {
		return []complex128{x[0]}
	}

	even := make([]complex128, 0, (n+1)/2)
	odd := make([]complex128, 0, n/2)
	for i := 0; i < n; i += 2 {
		even = append(even, x[i])
	}
	for i := 1; i < n; i += 2 {
		odd = append(odd, x[i])
	}
	even = Transform(even)
	odd = Transform(odd)

	out := make([]complex128, n)
	half := n / 2
	for k := 0; k < half; k++ {
		twiddle := cmplx.Rect(1, -2*math.Pi*float64(k)/float64(n))
		t := twiddle * odd[k]
		out[k] = even[k] + t
		out[k+half] = even[k] - t
	}
	return out
}

// FromSamples promotes signed 8-bit samples to zero-imaginary complex values.
func FromSamples(samples []int8) []complex128 {
	out := make([]complex128, len(samples))
	for i, s := range samples {
		out[i] = complex(float64(s), 0)
	}
	return out
}
