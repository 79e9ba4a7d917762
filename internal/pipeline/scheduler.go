// Package pipeline schedules page rendering, preprocessing, recognition
// and reconstruction for one document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/smartpdf/internal/classify"
	"github.com/jackzampolin/smartpdf/internal/ocr"
	"github.com/jackzampolin/smartpdf/internal/pdfdoc"
	"github.com/jackzampolin/smartpdf/internal/postprocess"
	"github.com/jackzampolin/smartpdf/internal/preprocess"
)

// DefaultWindow is the default number of pages prefetched ahead.
const DefaultWindow = 3

// Renderer rasterizes a 0-based page of the document at source.
type Renderer interface {
	Render(ctx context.Context, source string, index, dpi int) (*pdfdoc.RenderedPage, error)
}

// Preprocessor transforms a rendered image before recognition.
type Preprocessor interface {
	Apply(ctx context.Context, img image.Image, steps []preprocess.Step) (image.Image, error)
}

// Config configures a Scheduler.
type Config struct {
	Window int               // Max outstanding prefetch tasks (default: 3)
	DPI    int               // Render resolution
	Steps  []preprocess.Step // Preprocessing plan, in order
	RunID  string            // Fixed run identifier; empty generates one per Run
	Logger *slog.Logger
}

// Deps are the collaborators a Scheduler drives. The recognizer must be
// opened and warmed up by the caller; it is wrapped in an exclusive guard
// unless it already is one.
type Deps struct {
	Renderer     Renderer
	Preprocessor Preprocessor // Optional when Steps is empty
	Recognizer   ocr.Recognizer
	Processor    *postprocess.Processor
	Reporter     Reporter // Optional
}

// Scheduler overlaps CPU-bound page preparation with a single serialized
// recognizer while emitting pages in request order.
type Scheduler struct {
	window       int
	dpi          int
	runID        string
	steps        []preprocess.Step
	renderer     Renderer
	preprocessor Preprocessor
	recognizer   ocr.Recognizer
	processor    *postprocess.Processor
	reporter     Reporter
	logger       *slog.Logger
}

// New creates a Scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	rec := deps.Recognizer
	if _, ok := rec.(*ocr.Exclusive); !ok && rec != nil {
		rec = ocr.NewExclusive(rec)
	}
	processor := deps.Processor
	if processor == nil {
		processor = postprocess.NewProcessor(postprocess.Config{RemoveHeaderFooter: true, Logger: logger})
	}
	reporter := deps.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Scheduler{
		window:       window,
		dpi:          cfg.DPI,
		runID:        cfg.RunID,
		steps:        cfg.Steps,
		renderer:     deps.Renderer,
		preprocessor: deps.Preprocessor,
		recognizer:   rec,
		processor:    processor,
		reporter:     reporter,
		logger:       logger.With("component", "scheduler", "window", window),
	}
}

// run holds the per-document state of the sequential loop.
type run struct {
	s       *Scheduler
	ctx     context.Context
	cls     *classify.DocumentClassification
	targets []int
	pool    *prefetchPool
	win     *window
	next    int // index into targets of the first page never submitted
	stats   Stats
}

// Run processes targets, which must be sorted, unique 0-based indices
// (see NormalizePages). It returns one record per target in the same
// order. Page-level render, preprocess and extract failures are recorded
// on their page; classification and recognition failures abort the run
// with no partial result.
func (s *Scheduler) Run(ctx context.Context, doc classify.Document, cls *classify.DocumentClassification, targets []int) (*Result, error) {
	start := time.Now()
	if err := checkTargets(targets, doc.PageCount()); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		s:       s,
		ctx:     runCtx,
		cls:     cls,
		targets: targets,
		win:     newWindow(s.window),
	}
	r.pool = newPrefetchPool(prefetchPoolConfig{
		Logger:      s.logger,
		WorkerCount: s.window,
		QueueSize:   len(targets),
		Work:        s.prefetcher(doc.Source()),
	})
	r.pool.Start()
	defer func() {
		r.win.cancelAll()
		r.pool.Stop()
	}()

	runID := s.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := s.logger.With("run_id", runID, "source", doc.Source())
	log.Info("run started", "pages", len(targets), "pdf_type", cls.Type)

	records := make([]PageRecord, len(targets))
	var recognized []postprocess.ProcessedPage
	var slots []int // records index of each recognized page

	if err := r.fill(); err != nil {
		return nil, err
	}
	for i, page := range targets {
		if err := runCtx.Err(); err != nil {
			return nil, err
		}

		if !cls.NeedsRecognition(page) {
			records[i] = r.extract(doc, i, page)
		} else {
			processed, rec, err := r.recognize(i, page)
			if err != nil {
				log.Error("run aborted", "page", page, "error", err)
				return nil, err
			}
			if processed != nil {
				recognized = append(recognized, *processed)
				slots = append(slots, i)
			} else {
				records[i] = rec
			}
		}
		s.reporter.ReportProgress(runCtx, page, len(targets))
	}

	recognized = s.processor.Finish(recognized)
	for k, p := range recognized {
		records[slots[k]] = ocrRecord(p)
	}
	for _, rec := range records {
		s.reporter.ReportResult(runCtx, rec)
	}

	pool := r.pool.Status()
	r.stats.Rendered = int(pool.Completed)
	r.stats.MaxOutstanding = r.win.maxSeen
	r.stats.Duration = time.Since(start)
	log.Info("run finished",
		"extracted", r.stats.Extracted,
		"recognized", r.stats.Recognized,
		"degraded", r.stats.Degraded,
		"rendered", r.stats.Rendered,
		"prefetch_cancelled", r.stats.Cancelled,
		"prefetch_skipped", pool.Skipped,
		"max_outstanding", r.stats.MaxOutstanding,
		"duration", r.stats.Duration,
	)

	return &Result{
		RunID:          runID,
		Source:         doc.Source(),
		Classification: cls,
		Pages:          records,
		Stats:          r.stats,
	}, nil
}

// extract emits a page that needs no recognition. fill never queues such
// a page; a task found for it anyway is cancelled, and a worker that
// already started finishes and its result is dropped.
func (r *run) extract(doc classify.Document, i, page int) PageRecord {
	if t, ok := r.win.get(page); ok {
		t.cancel()
		r.win.remove(page)
		r.stats.Cancelled++
		r.s.logger.Debug("prefetch cancelled for text page", "page", page)
	}
	r.skipPast(i)
	defer func() {
		if err := r.fill(); err != nil {
			r.s.logger.Error("prefetch refill failed", "error", err)
		}
	}()

	text, err := doc.ExtractText(r.ctx, page)
	if err != nil {
		r.stats.Degraded++
		perr := &PageError{Page: page, Stage: StageExtract, Err: err}
		r.s.logger.Warn("page degraded", "page", page, "error", perr)
		return errorRecord(page, MethodExtract, perr)
	}
	r.stats.Extracted++
	return extractRecord(page, text)
}

// recognize waits for the page's prefetch, refills the window, then runs
// the recognizer and reconstruction. A prefetch failure returns an error
// record instead of a processed page.
func (r *run) recognize(i, page int) (*postprocess.ProcessedPage, PageRecord, error) {
	t, ok := r.win.get(page)
	if !ok {
		r.skipPast(i)
		var err error
		if t, err = r.submit(page); err != nil {
			return nil, PageRecord{}, err
		}
	}

	if err := t.wait(r.ctx); err != nil {
		return nil, PageRecord{}, err
	}
	r.win.remove(page)
	if err := r.fill(); err != nil {
		return nil, PageRecord{}, err
	}

	if t.err != nil {
		if r.ctx.Err() != nil {
			return nil, PageRecord{}, r.ctx.Err()
		}
		r.stats.Degraded++
		r.s.logger.Warn("page degraded", "page", page, "error", t.err)
		return nil, errorRecord(page, MethodOCR, t.err), nil
	}

	rendered := t.result
	t.result = nil
	frags, err := r.s.recognizer.Recognize(r.ctx, rendered.Image)
	if err != nil {
		return nil, PageRecord{}, &RecognitionError{Page: page, Err: err}
	}
	r.stats.Recognized++

	processed := r.s.processor.Process(page, frags, rendered.Width, rendered.Height)
	return &processed, PageRecord{}, nil
}

// fill submits the next never-submitted targets that need recognition
// until the window is full. Text pages are never rendered.
func (r *run) fill() error {
	for r.win.len() < r.s.window && r.next < len(r.targets) {
		page := r.targets[r.next]
		r.next++
		if !r.cls.NeedsRecognition(page) {
			continue
		}
		if _, err := r.submit(page); err != nil {
			return err
		}
	}
	return nil
}

// skipPast marks every target up to and including index i as submitted so
// fill never queues a page the loop has already passed.
func (r *run) skipPast(i int) {
	if r.next <= i {
		r.next = i + 1
	}
}

func (r *run) submit(page int) (*task, error) {
	t := newTask(r.ctx, page)
	if err := r.win.add(t); err != nil {
		t.cancel()
		return nil, err
	}
	if err := r.pool.Submit(t); err != nil {
		r.win.remove(page)
		t.cancel()
		return nil, err
	}
	r.stats.Submitted++
	r.s.logger.Debug("prefetch submitted", "page", page, "outstanding", r.win.len())
	return t, nil
}

// prefetcher returns the render+preprocess work for pages of source.
func (s *Scheduler) prefetcher(source string) prefetchFunc {
	return func(ctx context.Context, page int) (*pdfdoc.RenderedPage, error) {
		rendered, err := s.renderer.Render(ctx, source, page, s.dpi)
		if err != nil {
			return nil, &PageError{Page: page, Stage: StageRender, Err: err}
		}
		if len(s.steps) == 0 || s.preprocessor == nil {
			return rendered, nil
		}
		img, err := s.preprocessor.Apply(ctx, rendered.Image, s.steps)
		if err != nil {
			return nil, &PageError{Page: page, Stage: StagePreprocess, Err: err}
		}
		b := img.Bounds()
		return &pdfdoc.RenderedPage{
			Index:  rendered.Index,
			Image:  img,
			Width:  b.Dx(),
			Height: b.Dy(),
			DPI:    rendered.DPI,
		}, nil
	}
}

// checkTargets rejects unsorted, duplicate or out-of-range indices.
func checkTargets(targets []int, pageCount int) error {
	var invalid []int
	for i, p := range targets {
		if p < 0 || p >= pageCount {
			invalid = append(invalid, p+1)
			continue
		}
		if i > 0 && p <= targets[i-1] {
			return fmt.Errorf("targets must be sorted and unique: %d follows %d", p, targets[i-1])
		}
	}
	if len(invalid) > 0 {
		return &InvalidPageRangeError{Invalid: invalid, PageCount: pageCount}
	}
	return nil
}

// IsFatal reports whether err aborted a run rather than degrading a page.
func IsFatal(err error) bool {
	var pe *PageError
	return err != nil && !errors.As(err, &pe)
}
