// Package window maintains the rolling per-channel tails that turn a
// stream of StereoBlocks into overlapping, fixed-length analysis
// windows.
package window

import "github.com/tphakala/dolphinwatch/internal/ring"

// AnalysisWindow is one WINDOW_SEC-long stereo slice handed to the
// trigger and (after channel selection) to the classifier.
type AnalysisWindow struct {
	SampleRate int
	Left       []float32
	Right      []float32
}

// Len reports the number of samples in the window.
func (w *AnalysisWindow) Len() int {
	return len(w.Left)
}

// Buffer owns the rolling tails for both channels and turns each
// incoming StereoBlock into the next overlapping AnalysisWindow.
type Buffer struct {
	n int // target window length, in samples
	h int // hop length, in samples

	tailLeft  []float32
	tailRight []float32
}

// NewBuffer builds a Buffer for a window of windowSec seconds and a hop
// of hopSec seconds at the given sample rate.
func NewBuffer(sampleRate int, windowSec, hopSec float64) *Buffer {
	return &Buffer{
		n: int(float64(sampleRate)*windowSec + 0.5),
		h: int(float64(sampleRate)*hopSec + 0.5),
	}
}

// Push folds block into the rolling tails and returns the next
// analysis window. warm reports whether the window reached full
// length N; a cold (sub-N) window is warm-up and should be skipped by
// the caller.
func (b *Buffer) Push(block *ring.StereoBlock) (win *AnalysisWindow, warm bool) {
	effLeft := concat(b.tailLeft, block.Left)
	effRight := concat(b.tailRight, block.Right)

	windowLeft := lastN(effLeft, b.n)
	windowRight := lastN(effRight, b.n)

	b.tailLeft = lastN(effLeft, b.h)
	b.tailRight = lastN(effRight, b.h)

	win = &AnalysisWindow{
		SampleRate: block.SampleRate,
		Left:       windowLeft,
		Right:      windowRight,
	}
	warm = len(windowLeft) >= b.n

	return win, warm
}

// WindowSamples reports the configured target window length N, in
// samples.
func (b *Buffer) WindowSamples() int {
	return b.n
}

// HopSamples reports the configured hop length H, in samples.
func (b *Buffer) HopSamples() int {
	return b.h
}

func concat(tail, block []float32) []float32 {
	if len(tail) == 0 {
		return block
	}
	out := make([]float32, len(tail)+len(block))
	copy(out, tail)
	copy(out[len(tail):], block)
	return out
}

func lastN(data []float32, n int) []float32 {
	if len(data) <= n {
		out := make([]float32, len(data))
		copy(out, data)
		return out
	}
	out := make([]float32, n)
	copy(out, data[len(data)-n:])
	return out
}
