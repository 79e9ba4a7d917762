package pipeline

import "context"

// Reporter receives run progress. Calls are made synchronously from the
// scheduler's loop, so implementations should return quickly.
type Reporter interface {
	// ReportProgress is called after each target page is handled, with
	// the page's 0-based index and the number of target pages.
	ReportProgress(ctx context.Context, page, total int)

	// ReportResult is called once per record, in request order, after
	// the header/footer pass.
	ReportResult(ctx context.Context, rec PageRecord)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) ReportProgress(context.Context, int, int) {}
func (NopReporter) ReportResult(context.Context, PageRecord) {}

// Reporters fans out to several reporters in order.
type Reporters []Reporter

func (rs Reporters) ReportProgress(ctx context.Context, page, total int) {
	for _, r := range rs {
		r.ReportProgress(ctx, page, total)
	}
}

func (rs Reporters) ReportResult(ctx context.Context, rec PageRecord) {
	for _, r := range rs {
		r.ReportResult(ctx, rec)
	}
}

// ReporterFuncs adapts plain functions. Nil fields are skipped.
type ReporterFuncs struct {
	Progress func(page, total int)
	Result   func(rec PageRecord)
}

func (f ReporterFuncs) ReportProgress(_ context.Context, page, total int) {
	if f.Progress != nil {
		f.Progress(page, total)
	}
}

func (f ReporterFuncs) ReportResult(_ context.Context, rec PageRecord) {
	if f.Result != nil {
		f.Result(rec)
	}
}
