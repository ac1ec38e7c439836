// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pdiddy/pdf2md/pkg/types"
)

// ErrDuplicatePage means two workers reported the same page.
var ErrDuplicatePage = errors.New("duplicate page result")

// Results collects page outcomes from concurrent workers. Each page may be
// written once.
type Results struct {
	mu sync.Mutex
	m  map[int]types.PageResult
}

// NewResults returns an empty collection.
func NewResults() *Results {
	return &Results{m: make(map[int]types.PageResult)}
}

// Set stores r under r.Page. A second write for the same page is rejected.
func (r *Results) Set(res types.PageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[res.Page]; ok {
		return fmt.Errorf("page %d: %w", res.Page, ErrDuplicatePage)
	}
	r.m[res.Page] = res
	return nil
}

// Get returns the result for page.
func (r *Results) Get(page int) (types.PageResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.m[page]
	return res, ok
}

// Len returns the number of stored results.
func (r *Results) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Sorted returns all results in ascending page order.
func (r *Results) Sorted() []types.PageResult {
	r.mu.Lock()
	out := make([]types.PageResult, 0, len(r.m))
	for _, res := range r.m {
		out = append(out, res)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// Missing returns the pages in want that have no result.
func (r *Results) Missing(want []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var missing []int
	for _, p := range want {
		if _, ok := r.m[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}
