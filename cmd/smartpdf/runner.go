package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/smartpdf/internal/classify"
	"github.com/jackzampolin/smartpdf/internal/config"
	"github.com/jackzampolin/smartpdf/internal/history"
	"github.com/jackzampolin/smartpdf/internal/ocr"
	"github.com/jackzampolin/smartpdf/internal/pdfdoc"
	"github.com/jackzampolin/smartpdf/internal/pipeline"
	"github.com/jackzampolin/smartpdf/internal/postprocess"
	"github.com/jackzampolin/smartpdf/internal/preprocess"
	"github.com/jackzampolin/smartpdf/internal/reformat"
	"github.com/jackzampolin/smartpdf/internal/schema"
)

// runOptions are the per-invocation overrides shared by run and batch.
type runOptions struct {
	Pages        []int // 1-based; empty selects every page
	DPI          int
	Window       int
	NoPreprocess bool
	Margins      *postprocess.Margins // nil keeps the configured margins
	Reformat     bool
}

// runOutput is what run and batch print for one document.
type runOutput struct {
	pipeline.Result `yaml:",inline"`
	Reformat        *reformat.Outcome `json:"reformat,omitempty" yaml:"reformat,omitempty"`
}

// Text prefers the reformatted text when there is one.
func (o *runOutput) Text() string {
	if o.Reformat != nil {
		return o.Reformat.Formatted
	}
	return o.Result.Text()
}

// lazyRecognizer opens and warms the configured engine the first time a
// document needs recognition, then hands the same exclusive handle to
// every caller.
type lazyRecognizer struct {
	cfg    ocr.EngineConfig
	logger *slog.Logger

	mu  sync.Mutex
	rec *ocr.Exclusive
}

// newLazyRecognizer configures the engine for pages rendered at the
// effective resolution of requestedDPI (0 means render.dpi).
func newLazyRecognizer(cfg *config.Config, requestedDPI int, logger *slog.Logger) *lazyRecognizer {
	return &lazyRecognizer{
		cfg: ocr.EngineConfig{
			Engine:         cfg.OCR.Engine,
			Languages:      cfg.OCR.Languages,
			DPI:            cfg.Render.ClampDPI(requestedDPI),
			RemoteURL:      cfg.OCR.Remote.URL,
			RemoteAPIKey:   config.ResolveEnvVars(cfg.OCR.Remote.APIKey),
			RemoteTimeout:  time.Duration(cfg.OCR.Remote.TimeoutSeconds) * time.Second,
			WarmupAttempts: cfg.OCR.Remote.WarmupAttempts,
			Logger:         logger,
		},
		logger: logger,
	}
}

func (l *lazyRecognizer) Get(ctx context.Context) (ocr.Recognizer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rec != nil {
		return l.rec, nil
	}

	engine, err := ocr.NewEngine(l.cfg)
	if err != nil {
		return nil, err
	}
	rec := ocr.NewExclusive(engine)
	start := time.Now()
	if err := rec.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open %s engine: %w", rec.Name(), err)
	}
	if err := rec.Warmup(ctx); err != nil {
		rec.Close()
		return nil, fmt.Errorf("failed to warm up %s engine: %w", rec.Name(), err)
	}
	l.logger.Info("recognizer ready", "engine", rec.Name(), "duration", time.Since(start))
	l.rec = rec
	return rec, nil
}

func (l *lazyRecognizer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rec == nil {
		return nil
	}
	l.logger.Debug("recognizer closed", "engine", l.rec.Name(), "recognitions", l.rec.Calls())
	err := l.rec.Close()
	l.rec = nil
	return err
}

// noRecognizer stands in when no target page needs recognition.
type noRecognizer struct{}

func (noRecognizer) Name() string                 { return "none" }
func (noRecognizer) Open(context.Context) error   { return nil }
func (noRecognizer) Warmup(context.Context) error { return nil }
func (noRecognizer) Close() error                 { return nil }
func (noRecognizer) Recognize(context.Context, image.Image) ([]ocr.Fragment, error) {
	return nil, errors.New("no recognizer configured")
}

// processor runs documents with one configuration snapshot.
type processor struct {
	cfg        *config.Config
	logger     *slog.Logger
	recognizer *lazyRecognizer
	history    *history.Store // Optional
	reformat   reformat.Reformatter
	renderer   *pdfdoc.Renderer
}

func newProcessor(cfg *config.Config, logger *slog.Logger, workDir string, rec *lazyRecognizer, store *history.Store) *processor {
	p := &processor{
		cfg:        cfg,
		logger:     logger,
		recognizer: rec,
		history:    store,
		renderer: pdfdoc.NewRenderer(pdfdoc.RendererConfig{
			Command: cfg.Render.Command,
			WorkDir: workDir,
			DPI:     cfg.Render.DPI,
			MinDPI:  cfg.Render.MinDPI,
			MaxDPI:  cfg.Render.MaxDPI,
			Logger:  logger,
		}),
	}
	if cfg.Reformat.Enabled {
		p.reformat = newReformatter(cfg, logger)
	}
	return p
}

func newReformatter(cfg *config.Config, logger *slog.Logger) reformat.Reformatter {
	return reformat.NewOpenAI(reformat.Config{
		APIKey:        config.ResolveEnvVars(cfg.Reformat.APIKey),
		BaseURL:       cfg.Reformat.BaseURL,
		Model:         cfg.Reformat.Model,
		MaxChunkChars: cfg.Reformat.MaxChunkChars,
		Logger:        logger,
	})
}

// process classifies and runs one document, recording it in history
// when a store is configured.
func (p *processor) process(ctx context.Context, path string, opts runOptions) (*runOutput, error) {
	logger := p.logger.With("source", path)

	doc, err := pdfdoc.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	targets, err := pipeline.NormalizePages(opts.Pages, doc.PageCount())
	if err != nil {
		return nil, err
	}

	runID := ""
	if p.history != nil {
		runID, err = p.history.StartRun(ctx, path, doc.PageCount(), len(targets), "")
		if err != nil {
			logger.Warn("failed to record run", "error", err)
		}
	}
	res, err := p.runDocument(ctx, doc, targets, runID, opts, logger)
	if p.history != nil && runID != "" {
		// Record the outcome even when ctx was cancelled.
		if herr := p.history.FinishRun(context.WithoutCancel(ctx), runID, res, err); herr != nil {
			logger.Warn("failed to finish run record", "error", herr)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := schema.Validate(schema.Result, res); err != nil {
		logger.Warn("result failed schema validation", "error", err)
	}

	out := &runOutput{Result: *res}
	if opts.Reformat || p.reformat != nil {
		rf := p.reformat
		if rf == nil {
			rf = newReformatter(p.cfg, logger)
		}
		outcome, err := rf.Reformat(ctx, res.Text())
		if err != nil {
			return nil, fmt.Errorf("reformat: %w", err)
		}
		out.Reformat = outcome
	}
	return out, nil
}

func (p *processor) runDocument(ctx context.Context, doc *pdfdoc.Document, targets []int, runID string, opts runOptions, logger *slog.Logger) (*pipeline.Result, error) {
	cfg := p.cfg
	classifier := classify.New(classify.Config{
		TextThreshold: cfg.Classify.TextThreshold,
		SampleCutoff:  cfg.Classify.SampleCutoff,
		SampleWindow:  cfg.Classify.SampleWindow,
		Logger:        logger,
	})
	cls, err := classifier.Classify(ctx, doc)
	if err != nil {
		return nil, err
	}
	if p.history != nil && runID != "" {
		if err := p.history.SetClassification(ctx, runID, string(cls.Type), cls.PageCount); err != nil {
			logger.Warn("failed to record classification", "error", err)
		}
	}

	var rec ocr.Recognizer = noRecognizer{}
	for _, page := range targets {
		if cls.NeedsRecognition(page) {
			if rec, err = p.recognizer.Get(ctx); err != nil {
				return nil, err
			}
			break
		}
	}

	margins := cfg.Margins()
	if opts.Margins != nil {
		margins = *opts.Margins
	}
	var steps []preprocess.Step
	if !opts.NoPreprocess {
		steps = cfg.PreprocessPlan().Steps()
	}
	window := cfg.Pipeline.PrefetchWindow
	if opts.Window > 0 {
		window = opts.Window
	}

	deps := pipeline.Deps{
		Renderer: p.renderer,
		Preprocessor: preprocess.New(preprocess.Config{
			BinarizeThreshold: uint8(cfg.Preprocess.BinarizeThreshold),
			MaxSkewAngle:      cfg.Preprocess.MaxSkewAngle,
			Logger:            logger,
		}),
		Recognizer: rec,
		Processor: postprocess.NewProcessor(postprocess.Config{
			LineSpacingThreshold:   cfg.Postprocess.LineSpacingThreshold,
			RemoveHeaderFooter:     cfg.Postprocess.RemoveHeaderFooter,
			RepeatThreshold:        cfg.Postprocess.HeaderFooterRepeatThreshold,
			LowConfidenceThreshold: cfg.OCR.ConfidenceThreshold,
			Margins:                margins,
			Logger:                 logger,
		}),
	}
	if p.history != nil && runID != "" {
		deps.Reporter = p.history.NewRecorder(runID)
	}

	sched := pipeline.New(pipeline.Config{
		Window: window,
		DPI:    cfg.Render.ClampDPI(opts.DPI),
		Steps:  steps,
		RunID:  runID,
		Logger: logger,
	}, deps)
	return sched.Run(ctx, doc, cls, targets)
}
