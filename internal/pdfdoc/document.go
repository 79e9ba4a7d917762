// Package pdfdoc opens PDF documents, extracts their embedded text and
// rasterizes pages for recognition.
package pdfdoc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/smartpdf/internal/classify"
)

// ErrPageOutOfRange is returned for a page index outside the document.
var ErrPageOutOfRange = errors.New("page index out of range")

// Document is an open PDF. Text extraction is serialized internally; the
// underlying reader is not safe for concurrent use.
type Document struct {
	path      string
	pageCount int

	mu     sync.Mutex
	file   *os.File
	reader *pdf.Reader
}

// Open validates the file with pdfcpu, counts its pages and opens a text
// reader. Malformed files yield a *classify.ClassificationError.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &classify.ClassificationError{Source: path, Err: err}
	}
	pageCount, err := api.PageCount(f, nil)
	f.Close()
	if err != nil {
		return nil, &classify.ClassificationError{Source: path, Err: fmt.Errorf("failed to get page count: %w", err)}
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &classify.ClassificationError{Source: path, Err: fmt.Errorf("failed to open text reader: %w", err)}
	}

	return &Document{
		path:      path,
		pageCount: pageCount,
		file:      file,
		reader:    reader,
	}, nil
}

// Source returns the path the document was opened from.
func (d *Document) Source() string { return d.path }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pageCount }

// ExtractText returns the embedded text of a 0-based page. Pages without
// a text layer return an empty string.
func (d *Document) ExtractText(ctx context.Context, index int) (text string, err error) {
	if index < 0 || index >= d.pageCount {
		return "", fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, d.pageCount)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.reader == nil {
		return "", fmt.Errorf("document %s is closed", d.path)
	}

	// The content stream parser panics on some malformed operators.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract page %d: malformed content: %v", index+1, r)
		}
	}()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", index+1, err)
	}
	return text, nil
}

// ExtractAll returns the text of every page joined by blank lines.
func (d *Document) ExtractAll(ctx context.Context) (string, error) {
	parts := make([]string, 0, d.pageCount)
	for i := 0; i < d.pageCount; i++ {
		text, err := d.ExtractText(ctx, i)
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.Join(parts, "\n\n"), nil
}

// Close releases the file handle.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.reader = nil
	return err
}

var _ classify.Document = (*Document)(nil)
