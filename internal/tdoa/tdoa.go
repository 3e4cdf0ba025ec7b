// Package tdoa implements GCC-PHAT time-difference-of-arrival
// estimation between two hydrophone channels.
package tdoa

import (
	"math"

	"github.com/tphakala/dolphinwatch/internal/dsp"
)

// Direction is the resolved bearing relative to the hydrophone pair.
type Direction string

const (
	DirectionLeft    Direction = "left"
	DirectionRight   Direction = "right"
	DirectionCenter  Direction = "center"
	DirectionUnknown Direction = "unknown"
)

// Result is the outcome of one TDOA estimate. On failure Success is
// false and Direction is DirectionUnknown; callers must check Success
// before trusting the other fields.
type Result struct {
	Success   bool
	Direction Direction
	AngleDeg  float64
	TdoaSec   float64
	Err       error
}

// Estimator holds the physical constants needed to convert a sample
// delay into a direction and angle.
type Estimator struct {
	SpeedOfSoundMps     float64
	MicrophoneSpacingM  float64
	CenterThresholdSec  float64
	MinFreqHz           float64
	MaxFreqHz           float64
	InvertPhase         bool
	Highpass            *dsp.HighpassCascade // nil disables highpass pre-filtering
}

// NewEstimator builds an Estimator. highpass may be nil, in which case
// channels are analyzed without pre-filtering (documented degradation,
// not an error, per the highpass design-by-cutoff rule).
func NewEstimator(speedOfSoundMps, micSpacingM, centerThresholdSec, minFreqHz, maxFreqHz float64, invertPhase bool, highpass *dsp.HighpassCascade) *Estimator {
	return &Estimator{
		SpeedOfSoundMps:    speedOfSoundMps,
		MicrophoneSpacingM: micSpacingM,
		CenterThresholdSec: centerThresholdSec,
		MinFreqHz:          minFreqHz,
		MaxFreqHz:          maxFreqHz,
		InvertPhase:        invertPhase,
		Highpass:           highpass,
	}
}

// Estimate runs GCC-PHAT on two equal-length mono slices sampled at
// sampleRate and resolves a direction/angle. It never panics: on any
// numeric or length problem it returns a {Success: false} Result.
func (e *Estimator) Estimate(left, right []float32, sampleRate float64) Result {
	m := len(left)
	if m == 0 || m != len(right) || sampleRate <= 0 {
		return Result{Success: false, Direction: DirectionUnknown}
	}

	l64 := toFloat64(left)
	r64 := toFloat64(right)
	if e.InvertPhase {
		for i := range r64 {
			r64[i] = -r64[i]
		}
	}

	if e.Highpass != nil {
		l64 = e.Highpass.FiltFilt(l64)
		r64 = e.Highpass.FiltFilt(r64)
	}

	nfft := dsp.NextPow2(2 * m)

	X := dsp.RFFT(dsp.HannWindow(l64), nfft)
	Y := dsp.RFFT(dsp.HannWindow(r64), nfft)

	freqs := dsp.RFFTFrequencies(nfft, sampleRate)
	dsp.ZeroOutsideBand(X, freqs, e.MinFreqHz, e.MaxFreqHz)
	dsp.ZeroOutsideBand(Y, freqs, e.MinFreqHz, e.MaxFreqHz)

	R := crossSpectrumPHAT(X, Y)
	cc := dsp.FFTShift(dsp.IRFFT(R, nfft))

	maxLag := int(sampleRate*e.MicrophoneSpacingM/e.SpeedOfSoundMps) + 1
	center := len(cc) / 2
	lo := clampInt(center-maxLag, 0, len(cc))
	hi := clampInt(center+maxLag, 0, len(cc))
	if lo >= hi {
		return Result{Success: false, Direction: DirectionUnknown}
	}
	window := cc[lo:hi]

	maxIdx := 0
	for i, v := range window {
		if v > window[maxIdx] {
			maxIdx = i
		}
	}
	// With X*conj(Y), a right channel trailing the left by d samples
	// peaks at lag -d; negate so a positive delay means left leads.
	delaySamples := center - (lo + maxIdx)
	tdoaSec := float64(delaySamples) / sampleRate

	sinArg := clampFloat(tdoaSec*e.SpeedOfSoundMps/e.MicrophoneSpacingM, -1, 1)
	angleDeg := radToDeg(math.Asin(sinArg))

	direction, signedAngle := resolveDirection(tdoaSec, angleDeg, e.CenterThresholdSec)

	return Result{
		Success:   true,
		Direction: direction,
		AngleDeg:  signedAngle,
		TdoaSec:   tdoaSec,
	}
}

// resolveDirection applies the center-dead-zone decision: |tdoa| below
// threshold is center with a zero angle; positive tdoa (right trails
// left, see the sign flip in Estimate) means left leads, negative
// means right leads, with angle reported unsigned for right.
func resolveDirection(tdoaSec, angleDeg, centerThresholdSec float64) (Direction, float64) {
	if math.Abs(tdoaSec) < centerThresholdSec {
		return DirectionCenter, 0
	}
	if tdoaSec > 0 {
		return DirectionLeft, angleDeg
	}
	return DirectionRight, math.Abs(angleDeg)
}

// crossSpectrumPHAT computes X*conj(Y), then PHAT-normalizes by
// dividing by |R|+1e-10.
func crossSpectrumPHAT(X, Y []complex128) []complex128 {
	R := make([]complex128, len(X))
	for i := range X {
		r := X[i] * complexConj(Y[i])
		mag := complexAbs(r)
		R[i] = r / complex(mag+1e-10, 0)
	}
	return R
}

func complexConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func complexAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func radToDeg(r float64) float64 {
	return r * 180 / math.Pi
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
