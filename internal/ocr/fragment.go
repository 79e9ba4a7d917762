package ocr

import (
	"image"
	"math"
)

// Point is one corner of a fragment's quadrilateral, in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is the four corner points of a recognized region, usually
// top-left, top-right, bottom-right, bottom-left. Engines that emit
// rotated boxes may use any order; the accessors only rely on extrema.
type Quad [4]Point

// Fragment is one recognizer-returned unit of text with its box and a
// confidence in [0,1]. Fragments are immutable once produced.
type Fragment struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Quad    `json:"box"`
}

// QuadFromRect converts an axis-aligned rectangle into a clockwise quad.
func QuadFromRect(r image.Rectangle) Quad {
	x0, y0 := float64(r.Min.X), float64(r.Min.Y)
	x1, y1 := float64(r.Max.X), float64(r.Max.Y)
	return Quad{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

// QuadFromBounds builds a clockwise quad from min/max coordinates.
func QuadFromBounds(xMin, yMin, xMax, yMax float64) Quad {
	return Quad{{xMin, yMin}, {xMax, yMin}, {xMax, yMax}, {xMin, yMax}}
}

func (f Fragment) XMin() float64 {
	v := f.Box[0].X
	for _, p := range f.Box[1:] {
		v = math.Min(v, p.X)
	}
	return v
}

func (f Fragment) XMax() float64 {
	v := f.Box[0].X
	for _, p := range f.Box[1:] {
		v = math.Max(v, p.X)
	}
	return v
}

func (f Fragment) YMin() float64 {
	v := f.Box[0].Y
	for _, p := range f.Box[1:] {
		v = math.Min(v, p.Y)
	}
	return v
}

func (f Fragment) YMax() float64 {
	v := f.Box[0].Y
	for _, p := range f.Box[1:] {
		v = math.Max(v, p.Y)
	}
	return v
}

// Width is the horizontal extent of the box.
func (f Fragment) Width() float64 { return f.XMax() - f.XMin() }

// Height is the vertical extent of the box.
func (f Fragment) Height() float64 { return f.YMax() - f.YMin() }

// CenterX is the horizontal midpoint of the box.
func (f Fragment) CenterX() float64 { return (f.XMin() + f.XMax()) / 2 }

// CenterY is the vertical midpoint of the box.
func (f Fragment) CenterY() float64 { return (f.YMin() + f.YMax()) / 2 }

// MeanConfidence averages fragment confidences. Returns 0 for an empty slice.
func MeanConfidence(frags []Fragment) float64 {
	if len(frags) == 0 {
		return 0
	}
	var sum float64
	for _, f := range frags {
		sum += f.Confidence
	}
	return sum / float64(len(frags))
}
