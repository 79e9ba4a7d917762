package ocr

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
)

// Sentinel errors for the ocr package.
var (
	// ErrNotOpen is returned when Recognize is called before Open or after Close.
	ErrNotOpen = errors.New("recognizer not open")

	// ErrUnknownEngine is returned by the registry for an unregistered engine name.
	ErrUnknownEngine = errors.New("unknown recognition engine")
)

// Recognizer maps a page image to the text fragments found on it.
//
// Implementations wrap a stateful, expensive resource (a model or an
// engine handle). The owner calls Open once, Warmup once before the first
// real page, and Close when done. Recognize must never be invoked
// concurrently; wrap an engine with NewExclusive when it is shared.
type Recognizer interface {
	// Name returns the engine identifier (e.g., "tesseract", "remote").
	Name() string

	// Open acquires the underlying resource.
	Open(ctx context.Context) error

	// Warmup runs one throwaway recognition so the first real page does
	// not pay model load latency.
	Warmup(ctx context.Context) error

	// Recognize returns the fragments found in img. Fragment order is
	// unspecified; callers sort.
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)

	// Close releases the underlying resource.
	Close() error
}

// Exclusive serializes access to a Recognizer. At most one call into the
// wrapped engine is in flight at any time, across every goroutine holding
// the handle. Waiting callers give up when their context is done.
type Exclusive struct {
	inner Recognizer
	sem   chan struct{}
	calls atomic.Int64
}

// NewExclusive wraps r so that recognitions are mutually exclusive.
func NewExclusive(r Recognizer) *Exclusive {
	return &Exclusive{inner: r, sem: make(chan struct{}, 1)}
}

func (e *Exclusive) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Both cases may be ready; a cancelled caller must not proceed.
	if err := ctx.Err(); err != nil {
		e.release()
		return err
	}
	return nil
}

func (e *Exclusive) release() { <-e.sem }

func (e *Exclusive) Name() string { return e.inner.Name() }

func (e *Exclusive) Open(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()
	return e.inner.Open(ctx)
}

func (e *Exclusive) Warmup(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()
	return e.inner.Warmup(ctx)
}

// Recognize waits for the device and forwards to the wrapped engine.
func (e *Exclusive) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	e.calls.Add(1)
	return e.inner.Recognize(ctx, img)
}

// Close waits for any in-flight call and closes the wrapped engine.
func (e *Exclusive) Close() error {
	e.sem <- struct{}{}
	defer e.release()
	return e.inner.Close()
}

// Calls returns how many recognitions were forwarded to the engine.
func (e *Exclusive) Calls() int64 {
	return e.calls.Load()
}

// Verify interface compliance
var _ Recognizer = (*Exclusive)(nil)
