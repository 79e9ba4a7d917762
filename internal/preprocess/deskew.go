package preprocess

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	skewStep          = 0.25 // degrees
	minSkewCorrection = 0.1  // degrees
	maxSkewSamples    = 800  // ink columns sampled per row
)

// DetectSkew estimates the rotation, in degrees, that levels the text
// lines of img. It projects ink pixels onto the vertical axis at each
// candidate angle in [-maxAngle, maxAngle] and keeps the angle whose row
// histogram is sharpest.
func DetectSkew(img *image.Gray, maxAngle float64) float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	cutoff := OtsuThreshold(img)
	stride := max(1, w/maxSkewSamples)

	var ink []image.Point
	for y := 0; y < h; y += stride {
		for x := 0; x < w; x += stride {
			if img.Pix[y*img.Stride+x] <= cutoff && img.Pix[y*img.Stride+x] < 128 {
				ink = append(ink, image.Point{X: x, Y: y})
			}
		}
	}
	if len(ink) == 0 {
		return 0
	}

	cx, cy := float64(w)/2, float64(h)/2
	bins := make(map[int]int)
	bestAngle, bestScore := 0.0, -1.0
	for a := -maxAngle; a <= maxAngle+1e-9; a += skewStep {
		sin, cos := math.Sincos(a * math.Pi / 180)
		clear(bins)
		for _, p := range ink {
			x, y := float64(p.X)-cx, float64(p.Y)-cy
			bins[int(math.Round(x*sin+y*cos))]++
		}
		var score float64
		for _, n := range bins {
			score += float64(n) * float64(n)
		}
		// Prefer the smaller correction on ties.
		if score > bestScore || (score == bestScore && math.Abs(a) < math.Abs(bestAngle)) {
			bestScore = score
			bestAngle = a
		}
	}
	return math.Round(bestAngle*100) / 100
}

// Rotate turns img by angle degrees about its center, keeping the
// original dimensions and filling exposed corners with white.
func Rotate(img *image.Gray, angle float64) *image.Gray {
	b := img.Rect
	dst := image.NewGray(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	sin, cos := math.Sincos(angle * math.Pi / 180)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2
	s2d := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, s2d, img, b, draw.Over, nil)
	return dst
}
