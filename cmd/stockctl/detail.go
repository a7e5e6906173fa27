package main

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// loadDetail fetches a record and mounts the lists shown under it
// concurrently. A failed get leaves ctx alone, so the lists only report
// their own failures.
func loadDetail(ctx context.Context, get func(context.Context) error, lists ...func(context.Context) bool) error {
	var g errgroup.Group
	g.Go(func() error {
		return get(ctx)
	})
	for _, mount := range lists {
		mount := mount
		g.Go(func() error {
			mount(ctx)
			return nil
		})
	}
	return g.Wait()
}
