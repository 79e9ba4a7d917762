package postprocess

import (
	"log/slog"

	"github.com/jackzampolin/smartpdf/internal/ocr"
)

// Config configures a Processor.
type Config struct {
	LineSpacingThreshold   float64 // Paragraph gap in average line heights (default: 1.5)
	RemoveHeaderFooter     bool
	RepeatThreshold        int     // Pages needed to call a paragraph a header/footer (default: 3)
	LowConfidenceThreshold float64 // Lines below this are counted as low confidence
	Margins                Margins
	Logger                 *slog.Logger
}

// Processor turns recognizer fragments into reconstructed pages.
type Processor struct {
	cfg    Config
	logger *slog.Logger
}

// NewProcessor creates a Processor, filling in defaults.
func NewProcessor(cfg Config) *Processor {
	if cfg.LineSpacingThreshold <= 0 {
		cfg.LineSpacingThreshold = DefaultLineSpacingThreshold
	}
	if cfg.RepeatThreshold <= 0 {
		cfg.RepeatThreshold = DefaultRepeatThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, logger: logger.With("component", "postprocess")}
}

// Process reconstructs one page from raw fragments. width and height are
// the rendered image dimensions used for margin filtering.
func (p *Processor) Process(page int, frags []ocr.Fragment, width, height int) ProcessedPage {
	kept := FilterMargins(frags, width, height, p.cfg.Margins)
	if dropped := len(frags) - len(kept); dropped > 0 {
		p.logger.Debug("fragments dropped by margins", "page", page, "dropped", dropped)
	}

	lines := Merge(SortFragments(kept))
	low := 0
	for _, l := range lines {
		if l.Confidence < p.cfg.LowConfidenceThreshold {
			low++
		}
	}

	return ProcessedPage{
		Page:               page,
		Paragraphs:         p.Rebuild(lines),
		Confidence:         ocr.MeanConfidence(kept),
		LowConfidenceLines: low,
	}
}

// Finish runs the whole-document header/footer pass when enabled.
func (p *Processor) Finish(pages []ProcessedPage) []ProcessedPage {
	if !p.cfg.RemoveHeaderFooter {
		return pages
	}
	return p.StripHeadersFooters(pages)
}

// Rebuild groups lines into paragraphs with the configured spacing threshold.
func (p *Processor) Rebuild(lines []MergedLine) []Paragraph {
	return Rebuild(lines, p.cfg.LineSpacingThreshold)
}

// StripHeadersFooters runs the header/footer filter with the configured
// repeat threshold, regardless of RemoveHeaderFooter.
func (p *Processor) StripHeadersFooters(pages []ProcessedPage) []ProcessedPage {
	return StripHeadersFooters(pages, p.cfg.RepeatThreshold)
}
