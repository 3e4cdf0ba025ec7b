package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGrayProducesRequestedDimensions(t *testing.T) {
	block := [][]float64{
		{0, 0.5, 1},
		{0.25, 0.5, 0.75},
	}
	img := ToGray(block, 10, 6)
	require.NotNil(t, img)
	bounds := img.Bounds()
	assert.Equal(t, 10, bounds.Dx())
	assert.Equal(t, 6, bounds.Dy())
}

func TestToGrayEmptyInputDoesNotPanic(t *testing.T) {
	img := ToGray(nil, 4, 4)
	assert.NotNil(t, img)
}

func TestBilinearResizeIdentity(t *testing.T) {
	src := [][]float64{
		{0, 1},
		{1, 0},
	}
	out := bilinearResize(src, 2, 2, 2, 2)
	for y := range src {
		for x := range src[y] {
			assert.InDelta(t, src[y][x], out[y][x], 0.2)
		}
	}
}

func TestSobelVerticalNormalizesToUnitRange(t *testing.T) {
	data := [][]float64{
		{0, 0}, {0, 0}, {1, 1}, {1, 1}, {0, 0}, {0, 0},
	}
	out := SobelVertical(data)
	min, max := out[0][0], out[0][0]
	for _, row := range out {
		for _, v := range row {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	assert.InDelta(t, 0.0, min, 1e-9)
	assert.InDelta(t, 1.0, max, 1e-9)
}
