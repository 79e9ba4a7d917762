package preprocess

import (
	"image"
	"sort"
)

// GaussianDenoise blurs with a 3x3 binomial kernel. Edges are clamped.
func GaussianDenoise(src *image.Gray) *image.Gray {
	kernel := [3][3]int{{1, 2, 1}, {2, 4, 2}, {1, 2, 1}}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += kernel[ky+1][kx+1] * int(at(src, x+kx, y+ky))
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8((sum + 8) / 16)
		}
	}
	return dst
}

// MedianDenoise replaces each pixel with the median of its 3x3
// neighborhood. Edges are clamped.
func MedianDenoise(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(src.Rect)
	window := make([]int, 9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					window[i] = int(at(src, x+kx, y+ky))
					i++
				}
			}
			sort.Ints(window)
			dst.Pix[y*dst.Stride+x] = uint8(window[4])
		}
	}
	return dst
}

// Threshold maps pixels above t to white and the rest to black.
func Threshold(src *image.Gray, t uint8) *image.Gray {
	dst := image.NewGray(src.Rect)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if src.Pix[y*src.Stride+x] > t {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// OtsuThreshold picks the cutoff that maximizes between-class variance
// of the luminance histogram.
func OtsuThreshold(src *image.Gray) uint8 {
	var hist [256]int
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for _, v := range row {
			hist[v]++
		}
	}

	total := w * h
	if total == 0 {
		return 127
	}
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var sumBg, best float64
	weightBg := 0
	threshold := 0
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)
		between := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// AdaptiveThreshold binarizes each pixel against the mean of its
// block x block neighborhood minus c, using an integral image.
func AdaptiveThreshold(src *image.Gray, block, c int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	integral := make([]int64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum int64
		for x := 0; x < w; x++ {
			rowSum += int64(src.Pix[y*src.Stride+x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	half := block / 2
	dst := image.NewGray(src.Rect)
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h, y+half+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w, x+half+1)
			area := int64((y1 - y0) * (x1 - x0))
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] - integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			if int64(src.Pix[y*src.Stride+x])*area > sum-int64(c)*area {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// at reads a pixel with coordinates clamped to the image.
func at(img *image.Gray, x, y int) uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x = min(max(x, 0), w-1)
	y = min(max(y, 0), h-1)
	return img.Pix[y*img.Stride+x]
}
