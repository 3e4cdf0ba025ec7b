package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewButterworthHighpassRejectsBadInput(t *testing.T) {
	_, err := NewButterworthHighpass(0, 1000)
	require.Error(t, err)

	_, err = NewButterworthHighpass(48000, 30000)
	require.Error(t, err)
}

func TestHighpassCascadeAttenuatesDC(t *testing.T) {
	c, err := NewButterworthHighpass(192000, 1000)
	require.NoError(t, err)

	data := make([]float64, 20000)
	for i := range data {
		data[i] = 0.5
	}

	out := c.FiltFilt(data)

	avg := 0.0
	for _, v := range out[len(out)-1000:] {
		avg += math.Abs(v)
	}
	avg /= 1000
	assert.Less(t, avg, 0.01, "DC should be attenuated by a highpass cascade")
}

func TestHighpassCascadePassesHighFrequency(t *testing.T) {
	sampleRate := 192000.0
	c, err := NewButterworthHighpass(sampleRate, 1000)
	require.NoError(t, err)

	n := 20000
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Sin(2 * math.Pi * 20000 * float64(i) / sampleRate)
	}

	out := c.FiltFilt(data)

	rms := func(xs []float64) float64 {
		sum := 0.0
		for _, x := range xs {
			sum += x * x
		}
		return math.Sqrt(sum / float64(len(xs)))
	}

	assert.InDelta(t, rms(data[5000:]), rms(out[5000:]), 0.2, "passband content should survive roughly unattenuated")
}

func TestHighpassCascadeDoesNotMutateInput(t *testing.T) {
	c, err := NewButterworthHighpass(192000, 1000)
	require.NoError(t, err)

	data := []float64{1, 2, 3, 4, 5}
	original := append([]float64(nil), data...)

	c.FiltFilt(data)

	assert.Equal(t, original, data)
}
