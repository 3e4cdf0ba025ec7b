package tdoa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSignal(sampleRate, freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.3 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func delay(signal []float32, samples int) []float32 {
	out := make([]float32, len(signal))
	for i := range out {
		src := i - samples
		if src >= 0 {
			out[i] = signal[src]
		}
	}
	return out
}

func newTestEstimator() *Estimator {
	return NewEstimator(1460, 0.46, 0.000061, 5000, 25000, false, nil)
}

func TestEstimateIdenticalChannelsIsCenter(t *testing.T) {
	e := newTestEstimator()
	tone := sineSignal(192000, 12000, 4096)

	result := e.Estimate(tone, tone, 192000)

	require.True(t, result.Success)
	assert.Equal(t, DirectionCenter, result.Direction)
	assert.InDelta(t, 0, result.TdoaSec, 1e-9)
	assert.Equal(t, 0.0, result.AngleDeg)
}

func TestEstimateRightDelayedIsLeft(t *testing.T) {
	e := newTestEstimator()
	left := sineSignal(192000, 12000, 4096)
	right := delay(left, 6)

	result := e.Estimate(left, right, 192000)

	require.True(t, result.Success)
	assert.Greater(t, result.TdoaSec, 0.0)
	assert.Equal(t, DirectionLeft, result.Direction)
}

func TestEstimateSymmetryUnderChannelSwap(t *testing.T) {
	e := newTestEstimator()
	left := sineSignal(192000, 12000, 4096)
	right := delay(left, 6)

	forward := e.Estimate(left, right, 192000)
	swapped := e.Estimate(right, left, 192000)

	require.True(t, forward.Success)
	require.True(t, swapped.Success)
	assert.InDelta(t, -forward.TdoaSec, swapped.TdoaSec, 1e-9)
	if forward.Direction == DirectionLeft {
		assert.Equal(t, DirectionRight, swapped.Direction)
	} else if forward.Direction == DirectionRight {
		assert.Equal(t, DirectionLeft, swapped.Direction)
	}
}

func TestEstimateBoundedByGeometry(t *testing.T) {
	e := newTestEstimator()
	left := sineSignal(192000, 12000, 4096)
	right := delay(left, 100) // larger than physically possible for 0.46m spacing

	result := e.Estimate(left, right, 192000)
	require.True(t, result.Success)

	maxTdoa := e.MicrophoneSpacingM/e.SpeedOfSoundMps + 1.0/192000
	assert.LessOrEqual(t, math.Abs(result.TdoaSec), maxTdoa)
}

func TestEstimateMismatchedLengthFails(t *testing.T) {
	e := newTestEstimator()
	result := e.Estimate(make([]float32, 10), make([]float32, 5), 192000)
	assert.False(t, result.Success)
	assert.Equal(t, DirectionUnknown, result.Direction)
}

func TestEstimateEmptyInputFails(t *testing.T) {
	e := newTestEstimator()
	result := e.Estimate(nil, nil, 192000)
	assert.False(t, result.Success)
}
