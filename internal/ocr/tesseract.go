package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text lines with a local Tesseract install
// through gosseract. One client is held for the engine's lifetime, so
// language data loads once on Open.
type TesseractEngine struct {
	languages []string
	dpi       int
	logger    *slog.Logger

	client *gosseract.Client
}

// TesseractConfig configures a TesseractEngine.
type TesseractConfig struct {
	Languages []string // Tesseract language codes (default: ["eng"])
	DPI       int      // Resolution hint passed as user_defined_dpi (optional)
	Logger    *slog.Logger
}

// NewTesseractEngine creates an engine. The client is created on Open.
func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return &TesseractEngine{
		languages: langs,
		dpi:       cfg.DPI,
		logger:    logger.With("engine", "tesseract"),
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Open creates the gosseract client and applies language settings.
func (e *TesseractEngine) Open(ctx context.Context) error {
	if e.client != nil {
		return nil
	}
	c := gosseract.NewClient()
	if err := c.SetLanguage(e.languages...); err != nil {
		_ = c.Close()
		return fmt.Errorf("set languages: %w", err)
	}
	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.dpi)); err != nil {
			_ = c.Close()
			return fmt.Errorf("set dpi: %w", err)
		}
	}
	e.client = c
	e.logger.Info("tesseract client opened", "languages", strings.Join(e.languages, "+"))
	return nil
}

// Warmup recognizes a small blank image to force model initialization.
func (e *TesseractEngine) Warmup(ctx context.Context) error {
	blank := image.NewGray(image.Rect(0, 0, 64, 32))
	draw.Draw(blank, blank.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if _, err := e.Recognize(ctx, blank); err != nil {
		return fmt.Errorf("tesseract warmup: %w", err)
	}
	return nil
}

// Recognize returns one fragment per text line Tesseract reports.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	if e.client == nil {
		return nil, ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}

	frags := make([]Fragment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		frags = append(frags, Fragment{
			Text:       text,
			Confidence: clamp01(b.Confidence / 100.0),
			Box:        QuadFromRect(b.Box),
		})
	}
	return frags, nil
}

// Close releases the gosseract client.
func (e *TesseractEngine) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
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

var _ Recognizer = (*TesseractEngine)(nil)
