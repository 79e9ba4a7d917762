// Package classify decides which pages of a document carry extractable
// text and which need optical recognition.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"unicode"
)

// PDFType is the whole-document classification.
type PDFType string

const (
	TypeText  PDFType = "text"
	TypeImage PDFType = "image"
	TypeMixed PDFType = "mixed"
)

// PageType is the classification of a single page.
type PageType string

const (
	PageText  PageType = "text"
	PageImage PageType = "image"
)

// Defaults.
const (
	DefaultTextThreshold = 50
	DefaultSampleCutoff  = 50
	DefaultSampleWindow  = 15
)

// ErrNoPages is wrapped in a ClassificationError for empty documents.
var ErrNoPages = errors.New("document has no pages")

// Document is the view of a PDF the classifier needs.
type Document interface {
	// Source identifies the document in errors and logs (usually its path).
	Source() string
	PageCount() int
	// ExtractText returns the embedded text of a 0-based page.
	ExtractText(ctx context.Context, index int) (string, error)
}

// ClassificationError reports a document that could not be classified.
// No partial classification accompanies it.
type ClassificationError struct {
	Source string
	Err    error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Source, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// DocumentClassification is the immutable result of classifying a document.
type DocumentClassification struct {
	PageCount       int     `json:"page_count" yaml:"page_count"`
	Type            PDFType `json:"pdf_type" yaml:"pdf_type"`
	TextPages       []int   `json:"text_pages" yaml:"text_pages"`
	ImagePages      []int   `json:"image_pages" yaml:"image_pages"`
	TotalChars      int     `json:"total_chars" yaml:"total_chars"`
	AvgCharsPerPage float64 `json:"avg_chars_per_page" yaml:"avg_chars_per_page"`
	Sampled         bool    `json:"sampled" yaml:"sampled"`
	SampledPages    []int   `json:"sampled_pages,omitempty" yaml:"sampled_pages,omitempty"`

	image map[int]bool
}

// NeedsRecognition reports whether a 0-based page index must go through OCR.
func (c *DocumentClassification) NeedsRecognition(index int) bool {
	return c.image[index]
}

// Config configures a Classifier.
type Config struct {
	TextThreshold int // Non-whitespace chars for a page to count as text; <= 0 means 50
	SampleCutoff  int // Documents above this many pages are sampled (default: 50)
	SampleWindow  int // Pages per sample window (default: 15)
	Logger        *slog.Logger
}

// Classifier labels documents as text, image or mixed.
type Classifier struct {
	threshold int
	cutoff    int
	window    int
	logger    *slog.Logger
}

// New creates a Classifier, filling in defaults.
func New(cfg Config) *Classifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{
		threshold: cfg.TextThreshold,
		cutoff:    cfg.SampleCutoff,
		window:    cfg.SampleWindow,
		logger:    logger.With("component", "classify"),
	}
	if c.threshold <= 0 {
		c.threshold = DefaultTextThreshold
	}
	if c.cutoff <= 0 {
		c.cutoff = DefaultSampleCutoff
	}
	if c.window <= 0 {
		c.window = DefaultSampleWindow
	}
	return c
}

// ClassifyPage extracts one page and labels it. It also returns the
// page's non-whitespace character count.
func (c *Classifier) ClassifyPage(ctx context.Context, doc Document, index int) (PageType, int, error) {
	text, err := doc.ExtractText(ctx, index)
	if err != nil {
		return "", 0, err
	}
	n := countChars(text)
	if n >= c.threshold {
		return PageText, n, nil
	}
	return PageImage, n, nil
}

// Classify labels every page of small documents, or a sample of pages of
// large ones. Any extraction failure fails the whole classification.
func (c *Classifier) Classify(ctx context.Context, doc Document) (*DocumentClassification, error) {
	n := doc.PageCount()
	if n <= 0 {
		return nil, &ClassificationError{Source: doc.Source(), Err: ErrNoPages}
	}

	sampled := n > c.cutoff
	indices := allPages(n)
	if sampled {
		indices = samplePages(n, c.window)
	}

	var textPages, imagePages []int
	total := 0
	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, chars, err := c.ClassifyPage(ctx, doc, i)
		if err != nil {
			return nil, &ClassificationError{Source: doc.Source(), Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
		total += chars
		if kind == PageText {
			textPages = append(textPages, i)
		} else {
			imagePages = append(imagePages, i)
		}
	}

	result := &DocumentClassification{
		PageCount:       n,
		TotalChars:      total,
		AvgCharsPerPage: float64(total) / float64(len(indices)),
		Sampled:         sampled,
	}

	switch {
	case len(imagePages) == 0:
		result.Type = TypeText
	case len(textPages) == 0:
		result.Type = TypeImage
	default:
		result.Type = TypeMixed
	}

	if sampled {
		result.SampledPages = indices
		textPages, imagePages = inferUnsampled(n, indices, textPages, imagePages)
	}
	result.TextPages = nonNil(textPages)
	result.ImagePages = nonNil(imagePages)

	result.image = make(map[int]bool, len(result.ImagePages))
	for _, i := range result.ImagePages {
		result.image[i] = true
	}

	c.logger.Info("document classified",
		"source", doc.Source(),
		"pages", n,
		"pdf_type", result.Type,
		"sampled", sampled,
		"text_pages", len(result.TextPages),
		"image_pages", len(result.ImagePages),
		"avg_chars", result.AvgCharsPerPage,
	)
	return result, nil
}

// samplePages returns the deduplicated, sorted union of the first, middle
// and last window of pages.
func samplePages(n, window int) []int {
	seen := make(map[int]bool)
	add := func(from, to int) {
		for i := max(0, from); i < min(n, to); i++ {
			seen[i] = true
		}
	}
	half := window / 2
	add(0, window)
	add(n/2-half, n/2+half+1)
	add(n-window, n)

	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// inferUnsampled assigns pages that were never measured. A uniform sample
// extends to the whole document. A mixed sample keeps measured pages as
// measured and gives every other page the majority sampled type, with
// ties going to image so those pages are recognized rather than skipped.
func inferUnsampled(n int, sampled, textPages, imagePages []int) ([]int, []int) {
	if len(imagePages) == 0 {
		return allPages(n), nil
	}
	if len(textPages) == 0 {
		return nil, allPages(n)
	}

	measured := make(map[int]bool, len(sampled))
	for _, i := range sampled {
		measured[i] = true
	}
	toText := len(textPages) > len(imagePages)

	text := append([]int(nil), textPages...)
	image := append([]int(nil), imagePages...)
	for i := 0; i < n; i++ {
		if measured[i] {
			continue
		}
		if toText {
			text = append(text, i)
		} else {
			image = append(image, i)
		}
	}
	sort.Ints(text)
	sort.Ints(image)
	return text, image
}

func allPages(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func countChars(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
