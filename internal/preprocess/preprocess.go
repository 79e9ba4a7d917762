// Package preprocess cleans up rendered pages before recognition.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
)

// Step names.
const (
	StepDenoise  = "denoise"
	StepDeskew   = "deskew"
	StepBinarize = "binarize"
)

// Method names.
const (
	MethodGaussian   = "gaussian"
	MethodMedian     = "median"
	MethodProjection = "projection"
	MethodSimple     = "simple"
	MethodOtsu       = "otsu"
	MethodAdaptive   = "adaptive"
)

// ErrUnknownStep is returned for an unrecognized step or method name.
var ErrUnknownStep = errors.New("unknown preprocess step")

// DefaultOrder is the step order used when the caller gives none.
var DefaultOrder = []string{StepDenoise, StepDeskew, StepBinarize}

var methods = map[string][]string{
	StepDenoise:  {MethodGaussian, MethodMedian},
	StepDeskew:   {MethodProjection},
	StepBinarize: {MethodSimple, MethodOtsu, MethodAdaptive},
}

// Step is one transform to apply.
type Step struct {
	Name   string
	Method string
}

// ValidateStep checks that the step and method are known.
func ValidateStep(s Step) error {
	known, ok := methods[s.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStep, s.Name)
	}
	for _, m := range known {
		if m == s.Method {
			return nil
		}
	}
	return fmt.Errorf("%w: %s method %q", ErrUnknownStep, s.Name, s.Method)
}

// Config configures a Preprocessor.
type Config struct {
	BinarizeThreshold uint8   // Cutoff for the simple method (default: 127)
	MaxSkewAngle      float64 // Degrees searched either side of level (default: 5)
	Logger            *slog.Logger
}

// Preprocessor applies image transforms to rendered pages. It is safe for
// concurrent use.
type Preprocessor struct {
	threshold uint8
	maxAngle  float64
	logger    *slog.Logger
}

// New creates a Preprocessor.
func New(cfg Config) *Preprocessor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Preprocessor{
		threshold: cfg.BinarizeThreshold,
		maxAngle:  cfg.MaxSkewAngle,
		logger:    logger.With("component", "preprocess"),
	}
	if p.threshold == 0 {
		p.threshold = 127
	}
	if p.maxAngle <= 0 {
		p.maxAngle = 5
	}
	return p
}

// Apply converts img to grayscale and runs steps in the given order.
func (p *Preprocessor) Apply(ctx context.Context, img image.Image, steps []Step) (image.Image, error) {
	gray := ToGray(img)
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ValidateStep(s); err != nil {
			return nil, err
		}
		switch s.Name {
		case StepDenoise:
			if s.Method == MethodMedian {
				gray = MedianDenoise(gray)
			} else {
				gray = GaussianDenoise(gray)
			}
		case StepDeskew:
			angle := DetectSkew(gray, p.maxAngle)
			if abs(angle) >= minSkewCorrection {
				p.logger.Debug("deskewing page", "angle", angle)
				gray = Rotate(gray, angle)
			}
		case StepBinarize:
			switch s.Method {
			case MethodSimple:
				gray = Threshold(gray, p.threshold)
			case MethodOtsu:
				gray = Threshold(gray, OtsuThreshold(gray))
			case MethodAdaptive:
				gray = AdaptiveThreshold(gray, 31, 10)
			}
		}
	}
	return gray, nil
}

// ToGray returns img as *image.Gray with bounds starting at the origin.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Toggle enables one step with a method.
type Toggle struct {
	Enabled bool
	Method  string
}

// Plan describes which steps run and in what order.
type Plan struct {
	Order    []string // Defaults to DefaultOrder
	Denoise  Toggle
	Deskew   Toggle
	Binarize Toggle
}

// Steps lists the enabled steps in plan order.
func (p Plan) Steps() []Step {
	order := p.Order
	if len(order) == 0 {
		order = DefaultOrder
	}
	var steps []Step
	for _, name := range order {
		var t Toggle
		switch name {
		case StepDenoise:
			t = p.Denoise
		case StepDeskew:
			t = p.Deskew
		case StepBinarize:
			t = p.Binarize
		default:
			steps = append(steps, Step{Name: name})
			continue
		}
		if t.Enabled {
			steps = append(steps, Step{Name: name, Method: t.Method})
		}
	}
	return steps
}

// Validate checks every enabled step names a known method.
func (p Plan) Validate() error {
	for _, s := range p.Steps() {
		if err := ValidateStep(s); err != nil {
			return err
		}
	}
	return nil
}
