// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// schedule runs work for every page in groups of at most size pages. All
// workers in a group finish before the next group starts. Workers do not
// cancel each other; the first non-nil error stops later groups from
// starting and is returned once the current group has finished.
func schedule(ctx context.Context, pages []int, size int, work func(ctx context.Context, page int) error) error {
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(pages); start += size {
		end := min(start+size, len(pages))

		var g errgroup.Group
		for _, page := range pages[start:end] {
			g.Go(func() error { return work(ctx, page) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
