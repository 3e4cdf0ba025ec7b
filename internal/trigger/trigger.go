// Package trigger implements the spectral-prominence power trigger
// that cheaply rejects silence before the more expensive TDOA and
// inference stages run.
package trigger

import (
	"math"
	"sort"

	"github.com/tphakala/dolphinwatch/internal/dsp"
)

// Action names the dispatch decision derived from the two channels'
// triggered bits: it is a pure function of those bits.
type Action string

const (
	ActionNone      Action = "none"
	ActionLeftOnly  Action = "left_only"
	ActionRightOnly Action = "right_only"
	ActionTDOA      Action = "tdoa"
)

// ChannelResult is one channel's spectral-prominence measurement.
type ChannelResult struct {
	Triggered    bool
	ProminenceDB float64
	PeakFreqHz   float64
}

// Report is the combined two-channel result handed to the
// orchestrator's dispatch step.
type Report struct {
	Left   ChannelResult
	Right  ChannelResult
	Action Action
}

// Detector is a stateless per-channel spectral-prominence test over a
// configured frequency band.
type Detector struct {
	SampleRate   float64
	BandMinHz    float64
	BandMaxHz    float64
	ThresholdDB  float64
}

// NewDetector builds a Detector for the given sample rate and target
// band/threshold.
func NewDetector(sampleRate, bandMinHz, bandMaxHz, thresholdDB float64) *Detector {
	return &Detector{
		SampleRate:  sampleRate,
		BandMinHz:   bandMinHz,
		BandMaxHz:   bandMaxHz,
		ThresholdDB: thresholdDB,
	}
}

// Detect runs the trigger independently on both channels and composes
// the dispatch Action from the two triggered bits.
func (d *Detector) Detect(left, right []float32) Report {
	l := d.checkChannel(left)
	r := d.checkChannel(right)
	return Report{
		Left:   l,
		Right:  r,
		Action: composeAction(l.Triggered, r.Triggered),
	}
}

func composeAction(left, right bool) Action {
	switch {
	case left && right:
		return ActionTDOA
	case left:
		return ActionLeftOnly
	case right:
		return ActionRightOnly
	default:
		return ActionNone
	}
}

// checkChannel computes spectral prominence over the configured band
// and reports whether it crosses ThresholdDB. An empty input or empty
// band degrades to a non-triggered, -Inf-prominence result; it never
// panics.
func (d *Detector) checkChannel(signal []float32) ChannelResult {
	promDB, peakFreq := d.computeProminence(signal)
	return ChannelResult{
		Triggered:    promDB >= d.ThresholdDB,
		ProminenceDB: promDB,
		PeakFreqHz:   peakFreq,
	}
}

func (d *Detector) computeProminence(signal []float32) (prominenceDB, peakFreqHz float64) {
	n := len(signal)
	if n == 0 {
		return math.Inf(-1), 0
	}

	f64 := make([]float64, n)
	for i, v := range signal {
		f64[i] = float64(v)
	}

	windowed := dsp.HannWindow(f64)
	coeffs := dsp.RFFT(windowed, n)
	magDB := dsp.MagnitudeDB(coeffs, 1e-12)
	freqs := dsp.RFFTFrequencies(n, d.SampleRate)

	var bandDB, bandFreqs []float64
	for i, f := range freqs {
		if f >= d.BandMinHz && f <= d.BandMaxHz {
			bandDB = append(bandDB, magDB[i])
			bandFreqs = append(bandFreqs, f)
		}
	}
	if len(bandDB) == 0 {
		return math.Inf(-1), 0
	}

	maxIdx := 0
	for i, v := range bandDB {
		if v > bandDB[maxIdx] {
			maxIdx = i
		}
	}

	return bandDB[maxIdx] - median(bandDB), bandFreqs[maxIdx]
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
