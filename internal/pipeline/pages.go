package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NormalizePages turns requested 1-based page numbers into sorted, unique
// 0-based indices. An empty request selects every page. Any number outside
// [1, pageCount] rejects the whole request.
func NormalizePages(pages []int, pageCount int) ([]int, error) {
	if len(pages) == 0 {
		all := make([]int, pageCount)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	unique := make(map[int]bool, len(pages))
	for _, p := range pages {
		unique[p] = true
	}
	sorted := make([]int, 0, len(unique))
	for p := range unique {
		sorted = append(sorted, p)
	}
	sort.Ints(sorted)

	var invalid []int
	for _, p := range sorted {
		if p < 1 || p > pageCount {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidPageRangeError{Invalid: invalid, PageCount: pageCount}
	}

	out := make([]int, len(sorted))
	for i, p := range sorted {
		out[i] = p - 1
	}
	return out, nil
}

// MaxSelectedPages bounds how many page numbers a selection may expand to.
const MaxSelectedPages = 100000

// ParsePageSpec parses a selection such as "1,3,5-7" into 1-based page
// numbers. Ranges are inclusive. An empty spec returns nil. A selection
// expanding to more than MaxSelectedPages numbers is rejected before any
// range is expanded.
func ParsePageSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPageSpec, part)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPageSpec, part)
			}
		}
		// Unsigned difference stays exact for any start <= end.
		if uint64(end)-uint64(start) >= uint64(MaxSelectedPages-len(pages)) {
			return nil, fmt.Errorf("%w: %q selects more than %d pages", ErrInvalidPageSpec, spec, MaxSelectedPages)
		}
		for p := start; p <= end; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}
