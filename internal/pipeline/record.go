package pipeline

import (
	"strings"
	"time"

	"github.com/jackzampolin/smartpdf/internal/classify"
	"github.com/jackzampolin/smartpdf/internal/postprocess"
)

// Method records how a page's text was obtained.
type Method string

const (
	MethodExtract Method = "extract"
	MethodOCR     Method = "ocr"
)

// PageRecord is the result for one requested page. Every requested page
// yields exactly one record, possibly carrying an error.
type PageRecord struct {
	Page               int      `json:"page" yaml:"page"`
	Text               string   `json:"text" yaml:"text"`
	Confidence         float64  `json:"confidence" yaml:"confidence"`
	Paragraphs         []string `json:"paragraphs" yaml:"paragraphs"`
	Method             Method   `json:"method" yaml:"method"`
	Header             string   `json:"header,omitempty" yaml:"header,omitempty"`
	Footer             string   `json:"footer,omitempty" yaml:"footer,omitempty"`
	Error              string   `json:"error,omitempty" yaml:"error,omitempty"`
	LowConfidenceLines int      `json:"low_confidence_lines,omitempty" yaml:"low_confidence_lines,omitempty"`
}

// Result is the outcome of a successful run.
type Result struct {
	RunID          string                           `json:"run_id" yaml:"run_id"`
	Source         string                           `json:"source" yaml:"source"`
	Classification *classify.DocumentClassification `json:"classification" yaml:"classification"`
	Pages          []PageRecord                     `json:"pages" yaml:"pages"`
	Stats          Stats                            `json:"stats" yaml:"stats"`
}

// Text joins the text of every page with a blank line.
func (r *Result) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Failed returns the records that carry an error.
func (r *Result) Failed() []PageRecord {
	var out []PageRecord
	for _, p := range r.Pages {
		if p.Error != "" {
			out = append(out, p)
		}
	}
	return out
}

// Stats summarizes scheduler behavior for one run.
type Stats struct {
	Extracted      int           `json:"extracted" yaml:"extracted"`
	Recognized     int           `json:"recognized" yaml:"recognized"`
	Degraded       int           `json:"degraded" yaml:"degraded"`
	Submitted      int           `json:"prefetch_submitted" yaml:"prefetch_submitted"`
	Cancelled      int           `json:"prefetch_cancelled" yaml:"prefetch_cancelled"`
	Rendered       int           `json:"pages_rendered" yaml:"pages_rendered"` // Prefetches that ran to completion
	MaxOutstanding int           `json:"max_outstanding" yaml:"max_outstanding"`
	Duration       time.Duration `json:"duration" yaml:"duration"`
}

func extractRecord(page int, text string) PageRecord {
	return PageRecord{
		Page:       page,
		Text:       text,
		Confidence: 1.0,
		Paragraphs: splitParagraphs(text),
		Method:     MethodExtract,
	}
}

func ocrRecord(p postprocess.ProcessedPage) PageRecord {
	return PageRecord{
		Page:               p.Page,
		Text:               p.Text(),
		Confidence:         p.Confidence,
		Paragraphs:         p.ParagraphTexts(),
		Method:             MethodOCR,
		Header:             p.Header,
		Footer:             p.Footer,
		LowConfidenceLines: p.LowConfidenceLines,
	}
}

func errorRecord(page int, method Method, err error) PageRecord {
	return PageRecord{
		Page:       page,
		Paragraphs: []string{},
		Method:     method,
		Error:      err.Error(),
	}
}

// splitParagraphs breaks extracted text on blank lines.
func splitParagraphs(text string) []string {
	out := []string{}
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if s := strings.TrimSpace(block); s != "" {
			out = append(out, s)
		}
	}
	return out
}
