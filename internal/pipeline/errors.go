package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for the pipeline package.
var (
	// ErrWindowFull is returned when a prefetch submission would exceed the
	// window bound. It indicates a scheduler bug, never a load condition.
	ErrWindowFull = errors.New("prefetch window full")

	// ErrPoolQueueFull is returned when the prefetch pool cannot accept a task.
	ErrPoolQueueFull = errors.New("prefetch queue full")

	// ErrInvalidPageSpec is returned for an unparsable page selection.
	ErrInvalidPageSpec = errors.New("invalid page spec")
)

// Stage names the prefetch step that failed for a page.
type Stage string

const (
	StageRender     Stage = "render"
	StagePreprocess Stage = "preprocess"
	StageExtract    Stage = "extract"
)

// PageError is a failure isolated to one page. The page is emitted as an
// error record and the run continues.
type PageError struct {
	Page  int // 0-based
	Stage Stage
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d %s: %v", e.Page+1, e.Stage, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// RecognitionError is a recognizer failure. It aborts the whole run.
type RecognitionError struct {
	Page int // 0-based
	Err  error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognition failed on page %d: %v", e.Page+1, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// InvalidPageRangeError lists every requested page number (1-based) that
// falls outside [1, PageCount].
type InvalidPageRangeError struct {
	Invalid   []int
	PageCount int
}

func (e *InvalidPageRangeError) Error() string {
	nums := make([]string, len(e.Invalid))
	for i, n := range e.Invalid {
		nums[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("invalid page numbers %s: document has %d pages", strings.Join(nums, ", "), e.PageCount)
}
