package postprocess

import (
	"fmt"

	"github.com/jackzampolin/smartpdf/internal/ocr"
)

// Margins are per-edge bands, in percent of the page dimension, whose
// content is ignored.
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// IsZero reports whether no band is ignored.
func (m Margins) IsZero() bool {
	return m.Top == 0 && m.Bottom == 0 && m.Left == 0 && m.Right == 0
}

// Validate checks each band is within [0,100] and opposite bands leave
// part of the page visible.
func (m Margins) Validate() error {
	for name, v := range map[string]float64{"top": m.Top, "bottom": m.Bottom, "left": m.Left, "right": m.Right} {
		if v < 0 || v > 100 {
			return fmt.Errorf("margin %s = %v, must be within [0,100]", name, v)
		}
	}
	if m.Top+m.Bottom >= 100 {
		return fmt.Errorf("margins top+bottom = %v, must be below 100", m.Top+m.Bottom)
	}
	if m.Left+m.Right >= 100 {
		return fmt.Errorf("margins left+right = %v, must be below 100", m.Left+m.Right)
	}
	return nil
}

// FilterMargins drops fragments whose box center falls inside an ignored
// band of a width x height page.
func FilterMargins(frags []ocr.Fragment, width, height int, m Margins) []ocr.Fragment {
	if m.IsZero() || width <= 0 || height <= 0 {
		return frags
	}

	w, h := float64(width), float64(height)
	top := h * m.Top / 100
	bottom := h - h*m.Bottom/100
	left := w * m.Left / 100
	right := w - w*m.Right/100

	kept := make([]ocr.Fragment, 0, len(frags))
	for _, f := range frags {
		cx, cy := f.CenterX(), f.CenterY()
		if cy < top || cy > bottom || cx < left || cx > right {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
