package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jackzampolin/smartpdf/internal/pdfdoc"
)

// prefetchFunc renders and preprocesses one page.
type prefetchFunc func(ctx context.Context, page int) (*pdfdoc.RenderedPage, error)

// task is one page's render+preprocess future. The scheduler loop owns it;
// a worker only writes result and err, then closes done.
type task struct {
	page   int
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	result *pdfdoc.RenderedPage
	err    error
}

func newTask(parent context.Context, page int) *task {
	ctx, cancel := context.WithCancel(parent)
	return &task{page: page, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// wait blocks until the task finishes or ctx ends.
func (t *task) wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PoolStatus reports the prefetch pool's state.
type PoolStatus struct {
	Name       string `json:"name"`
	Workers    int    `json:"workers"`
	InFlight   int    `json:"in_flight"`
	QueueDepth int    `json:"queue_depth"`
	Completed  int64  `json:"completed"`
	Skipped    int64  `json:"skipped"`
}

// prefetchPool runs prefetch tasks on a fixed set of workers sharing a
// single queue.
type prefetchPool struct {
	name        string
	logger      *slog.Logger
	workerCount int
	queue       chan *task
	work        prefetchFunc
	wg          sync.WaitGroup

	inFlight  atomic.Int32
	completed atomic.Int64
	skipped   atomic.Int64
}

type prefetchPoolConfig struct {
	Name        string
	Logger      *slog.Logger
	WorkerCount int // Number of worker goroutines (default: 1)
	QueueSize   int // Queue capacity; each page is submitted at most once, so the target count suffices
	Work        prefetchFunc
}

func newPrefetchPool(cfg prefetchPoolConfig) *prefetchPool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "prefetch"
	}
	workers := cfg.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < workers {
		queueSize = workers
	}
	return &prefetchPool{
		name:        name,
		logger:      logger.With("pool", name, "workers", workers),
		workerCount: workers,
		queue:       make(chan *task, queueSize),
		work:        cfg.Work,
	}
}

// Start launches the workers. They exit once Stop closes the queue.
func (p *prefetchPool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue and waits for workers to drain it. Cancel
// outstanding tasks first so draining is quick.
func (p *prefetchPool) Stop() {
	close(p.queue)
	p.wg.Wait()
}

func (p *prefetchPool) worker(id int) {
	defer p.wg.Done()
	for t := range p.queue {
		// Cancelled before it started: skip the work entirely.
		if err := t.ctx.Err(); err != nil {
			t.err = err
			p.skipped.Add(1)
			close(t.done)
			continue
		}

		p.inFlight.Add(1)
		p.logger.Debug("prefetch started", "worker_id", id, "page", t.page)
		t.result, t.err = p.work(t.ctx, t.page)
		p.inFlight.Add(-1)
		p.completed.Add(1)
		p.logger.Debug("prefetch finished", "worker_id", id, "page", t.page, "success", t.err == nil)
		close(t.done)
	}
}

// Submit enqueues t without blocking.
func (p *prefetchPool) Submit(t *task) error {
	select {
	case p.queue <- t:
		return nil
	default:
		p.logger.Warn("prefetch queue full", "page", t.page)
		return fmt.Errorf("%w: %s", ErrPoolQueueFull, p.name)
	}
}

// Status returns current pool status.
func (p *prefetchPool) Status() PoolStatus {
	return PoolStatus{
		Name:       p.name,
		Workers:    p.workerCount,
		InFlight:   int(p.inFlight.Load()),
		QueueDepth: len(p.queue),
		Completed:  p.completed.Load(),
		Skipped:    p.skipped.Load(),
	}
}

// window tracks submitted, unconsumed prefetch tasks keyed by page. It is
// touched only by the scheduler loop.
type window struct {
	limit   int
	tasks   map[int]*task
	maxSeen int
}

func newWindow(limit int) *window {
	return &window{limit: limit, tasks: make(map[int]*task, limit)}
}

func (w *window) add(t *task) error {
	if len(w.tasks) >= w.limit {
		return fmt.Errorf("%w: %d outstanding, limit %d", ErrWindowFull, len(w.tasks), w.limit)
	}
	w.tasks[t.page] = t
	if len(w.tasks) > w.maxSeen {
		w.maxSeen = len(w.tasks)
	}
	return nil
}

func (w *window) get(page int) (*task, bool) {
	t, ok := w.tasks[page]
	return t, ok
}

func (w *window) remove(page int) {
	delete(w.tasks, page)
}

func (w *window) len() int { return len(w.tasks) }

// cancelAll cancels every outstanding task and empties the window.
func (w *window) cancelAll() {
	for page, t := range w.tasks {
		t.cancel()
		delete(w.tasks, page)
	}
}
