package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// NextPow2 returns the smallest power of two greater than or equal to n.
func NextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// HannWindow applies a symmetric Hann window to a copy of data and
// returns it; data is left untouched.
func HannWindow(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	return window.Hann(out)
}

// RFFT zero-pads data to length n (n >= len(data)) and returns its
// real-input FFT as n/2+1 complex coefficients, matching the shape of
// numpy.fft.rfft(data, n=n).
func RFFT(data []float64, n int) []complex128 {
	padded := make([]float64, n)
	copy(padded, data)

	fft := fourier.NewFFT(n)
	return fft.Coefficients(nil, padded)
}

// IRFFT inverts RFFT: given n/2+1 complex coefficients, it returns the
// n-sample real time-domain signal, matching numpy.fft.irfft(coeffs, n).
func IRFFT(coeffs []complex128, n int) []float64 {
	fft := fourier.NewFFT(n)
	seq := fft.Sequence(nil, coeffs)
	// gonum's inverse transform is unnormalized; scale by 1/n as numpy does.
	scale := 1 / float64(n)
	for i := range seq {
		seq[i] *= scale
	}
	return seq
}

// RFFTFrequencies returns the n/2+1 frequency bin centers, in Hz, for
// an n-point real FFT at the given sample rate, matching
// numpy.fft.rfftfreq(n, d=1/sampleRate).
func RFFTFrequencies(n int, sampleRate float64) []float64 {
	bins := n/2 + 1
	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * sampleRate / float64(n)
	}
	return freqs
}

// ZeroOutsideBand zeroes every coefficient whose corresponding
// frequency falls outside [lowHz, highHz], in place.
func ZeroOutsideBand(coeffs []complex128, freqs []float64, lowHz, highHz float64) {
	for i, f := range freqs {
		if f < lowHz || f > highHz {
			coeffs[i] = 0
		}
	}
}

// FFTShift reorders a slice so its zero-lag element moves to the
// center, matching numpy.fft.fftshift for even and odd lengths alike.
func FFTShift(data []float64) []float64 {
	n := len(data)
	mid := n / 2
	out := make([]float64, n)
	copy(out, data[n-mid:])
	copy(out[mid:], data[:n-mid])
	return out
}

// MagnitudeDB converts a complex spectrum to decibels, 20*log10(|z|+eps),
// guarding against log(0).
func MagnitudeDB(coeffs []complex128, eps float64) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = 20 * math.Log10(cmplx.Abs(c)+eps)
	}
	return out
}
