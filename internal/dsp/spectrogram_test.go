package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesExpectedBinCount(t *testing.T) {
	sampleRate := 48000.0
	n := 4800
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / sampleRate)
	}

	spec := Generate(signal, sampleRate, 512, 0.5)
	require.NotEmpty(t, spec.Data)
	assert.Len(t, spec.Data, 512/2+1)
	assert.Len(t, spec.Freqs, 512/2+1)
}

func TestCropRestrictsToBand(t *testing.T) {
	spec := &Spectrogram{
		Freqs: []float64{0, 1000, 2000, 3000, 4000},
		Data: [][]float64{
			{1}, {2}, {3}, {4}, {5},
		},
	}
	cropped := spec.Crop(1000, 3000)
	assert.Equal(t, []float64{1000, 2000, 3000}, cropped.Freqs)
}

func TestNormalizeGuardsZeroDenominator(t *testing.T) {
	spec := &Spectrogram{
		Data: [][]float64{{5, 5}, {5, 5}},
	}
	norm := spec.Normalize()
	for _, row := range norm {
		for _, v := range row {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestNormalizeScalesToUnitRange(t *testing.T) {
	spec := &Spectrogram{
		Data: [][]float64{{0, 5}, {10, 2.5}},
	}
	norm := spec.Normalize()
	assert.InDelta(t, 0.0, norm[0][0], 1e-9)
	assert.InDelta(t, 1.0, norm[1][0], 1e-9)
	assert.InDelta(t, 0.5, norm[0][1], 1e-9)
}
