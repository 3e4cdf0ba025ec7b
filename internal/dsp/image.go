package dsp

import (
	"image"
	"image/color"
)

// No third-party image-resize or edge-detection library appears anywhere
// in the example corpus (grepped for nfnt/resize, x/image/draw,
// disintegration/imaging, anthonynsimon/bild: none imported directly),
// so bilinear resize and the Sobel kernel below are hand-written over
// the standard image package.

// ToGray renders a [0,1]-normalized block (Data[row][col], row 0 =
// lowest frequency) into a flipped, resized 8-bit grayscale image:
// flipped so frequency increases upward, matching a conventional
// spectrogram plot.
func ToGray(normalized [][]float64, width, height int) *image.Gray {
	if len(normalized) == 0 || len(normalized[0]) == 0 {
		return image.NewGray(image.Rect(0, 0, width, height))
	}

	srcH := len(normalized)
	srcW := len(normalized[0])

	flipped := make([][]float64, srcH)
	for i, row := range normalized {
		flipped[srcH-1-i] = row
	}

	resized := bilinearResize(flipped, srcW, srcH, width, height)

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := clamp01(resized[y][x]) * 255
			img.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return img
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// bilinearResize scales a srcW x srcH grid to dstW x dstH using
// bilinear interpolation, matching PIL's Image.BILINEAR semantics.
func bilinearResize(src [][]float64, srcW, srcH, dstW, dstH int) [][]float64 {
	out := make([][]float64, dstH)
	if dstW <= 0 || dstH <= 0 {
		return out
	}

	scaleX := float64(srcW) / float64(dstW)
	scaleY := float64(srcH) / float64(dstH)

	for y := 0; y < dstH; y++ {
		row := make([]float64, dstW)
		srcY := (float64(y)+0.5)*scaleY - 0.5
		y0 := clampInt(int(srcY), 0, srcH-1)
		y1 := clampInt(y0+1, 0, srcH-1)
		fy := srcY - float64(y0)
		if fy < 0 {
			fy = 0
		}

		for x := 0; x < dstW; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			x0 := clampInt(int(srcX), 0, srcW-1)
			x1 := clampInt(x0+1, 0, srcW-1)
			fx := srcX - float64(x0)
			if fx < 0 {
				fx = 0
			}

			top := src[y0][x0]*(1-fx) + src[y0][x1]*fx
			bottom := src[y1][x0]*(1-fx) + src[y1][x1]*fx
			row[x] = top*(1-fy) + bottom*fy
		}
		out[y] = row
	}
	return out
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

// sobelY7 is the 7-tap vertical Sobel kernel (a 7x1 separable
// approximation of OpenCV's ksize=7 Sobel(dy=1) operator).
var sobelY7 = []float64{-1, -4, -5, 0, 5, 4, 1}

// SobelVertical convolves each column of a 2D grid with the 7-tap
// vertical Sobel kernel and min-max normalizes the result to [0, 1].
func SobelVertical(data [][]float64) [][]float64 {
	h := len(data)
	if h == 0 {
		return nil
	}
	w := len(data[0])
	half := len(sobelY7) / 2

	out := make([][]float64, h)
	for y := 0; y < h; y++ {
		out[y] = make([]float64, w)
	}

	min, max := 0.0, 0.0
	first := true
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, coeff := range sobelY7 {
				sy := clampInt(y+k-half, 0, h-1)
				sum += coeff * data[sy][x]
			}
			out[y][x] = sum
			if first {
				min, max, first = sum, sum, false
			} else if sum < min {
				min = sum
			} else if sum > max {
				max = sum
			}
		}
	}

	denom := max - min
	if denom == 0 {
		denom = 1
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y][x] = (out[y][x] - min) / denom
		}
	}
	return out
}
