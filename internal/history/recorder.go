package history

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/smartpdf/internal/pipeline"
)

// Recorder stores one run's progress and page records as the pipeline
// reports them. Store failures are logged and never interrupt the run.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
	seen   int
}

// NewRecorder returns a pipeline reporter bound to runID.
func (s *Store) NewRecorder(runID string) *Recorder {
	return &Recorder{
		store:  s,
		runID:  runID,
		logger: s.logger.With("run_id", runID),
	}
}

// RunID returns the run this recorder writes to.
func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) ReportProgress(ctx context.Context, page, total int) {
	r.seen++
	if err := r.store.UpdateProgress(ctx, r.runID, r.seen); err != nil {
		r.logger.Warn("failed to record progress", "page", page, "total", total, "error", err)
	}
}

func (r *Recorder) ReportResult(ctx context.Context, rec pipeline.PageRecord) {
	if err := r.store.RecordPage(ctx, r.runID, rec); err != nil {
		r.logger.Warn("failed to record page", "page", rec.Page, "error", err)
	}
}

var _ pipeline.Reporter = (*Recorder)(nil)
