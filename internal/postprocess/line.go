package postprocess

import (
	"math"
	"sort"
	"strings"

	"github.com/jackzampolin/smartpdf/internal/ocr"
)

// sameRowOverlap is the minimum vertical overlap ratio for two fragments
// to share a visual line.
const sameRowOverlap = 0.5

// MergedLine is one visual text line built from one or more fragments.
type MergedLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	XMin       float64 `json:"x_min"`
	YMin       float64 `json:"y_min"`
	XMax       float64 `json:"x_max"`
	YMax       float64 `json:"y_max"`
	Fragments  int     `json:"fragments"`
}

// Height is the vertical extent of the line's union box.
func (l MergedLine) Height() float64 { return l.YMax - l.YMin }

// SortFragments orders fragments top-to-bottom, then left-to-right.
// The input slice is not modified.
func SortFragments(frags []ocr.Fragment) []ocr.Fragment {
	out := make([]ocr.Fragment, len(frags))
	copy(out, frags)
	sort.SliceStable(out, func(i, j int) bool {
		yi, yj := out[i].YMin(), out[j].YMin()
		if yi != yj {
			return yi < yj
		}
		return out[i].XMin() < out[j].XMin()
	})
	return out
}

// Merge fuses fragments that sit on the same visual row. Fragments must
// already be sorted with SortFragments. A fragment joins the open row when
// its vertical overlap with the row's first fragment exceeds half of the
// smaller height.
func Merge(frags []ocr.Fragment) []MergedLine {
	if len(frags) == 0 {
		return nil
	}

	var lines []MergedLine
	anchor := frags[0]
	row := []ocr.Fragment{anchor}

	for _, f := range frags[1:] {
		if verticalOverlap(anchor, f) > sameRowOverlap {
			row = append(row, f)
			continue
		}
		lines = append(lines, closeRow(row))
		anchor = f
		row = []ocr.Fragment{f}
	}
	lines = append(lines, closeRow(row))

	return lines
}

// verticalOverlap returns the overlap of the two y-ranges divided by the
// smaller height. Disjoint ranges and zero heights yield 0.
func verticalOverlap(a, b ocr.Fragment) float64 {
	start := math.Max(a.YMin(), b.YMin())
	end := math.Min(a.YMax(), b.YMax())
	if end <= start {
		return 0
	}
	minHeight := math.Min(a.Height(), b.Height())
	if minHeight == 0 {
		return 0
	}
	return (end - start) / minHeight
}

func closeRow(row []ocr.Fragment) MergedLine {
	sorted := make([]ocr.Fragment, len(row))
	copy(sorted, row)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].XMin() < sorted[j].XMin()
	})

	texts := make([]string, len(sorted))
	line := MergedLine{
		XMin:      math.Inf(1),
		YMin:      math.Inf(1),
		XMax:      math.Inf(-1),
		YMax:      math.Inf(-1),
		Fragments: len(sorted),
	}
	for i, f := range sorted {
		texts[i] = f.Text
		line.XMin = math.Min(line.XMin, f.XMin())
		line.YMin = math.Min(line.YMin, f.YMin())
		line.XMax = math.Max(line.XMax, f.XMax())
		line.YMax = math.Max(line.YMax, f.YMax())
	}
	line.Text = strings.Join(texts, " ")
	line.Confidence = ocr.MeanConfidence(sorted)
	return line
}
