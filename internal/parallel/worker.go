// Package parallel provides the worker pool used to fit and apply per-column
// feature stages concurrently.
//
// Work fans out only when the dataset has at least the configured threshold
// of rows; smaller inputs run sequentially on the calling goroutine. Results
// always come back in input order, and the first error cancels the remaining
// work.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds the number of goroutines used for per-column work
type WorkerPool struct {
	numWorkers int
	threshold  int
}

// NewWorkerPool creates a new worker pool. numWorkers <= 0 uses the CPU count;
// threshold is the minimum row count for fanning out.
func NewWorkerPool(numWorkers, threshold int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		threshold:  threshold,
	}
}

// Workers returns the maximum number of concurrent workers
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// Parallel reports whether work over rows rows fans out
func (wp *WorkerPool) Parallel(rows int) bool {
	return wp.numWorkers > 1 && rows >= wp.threshold
}

// ProcessIndexed applies worker to every item while preserving order. rows is
// the size of the data each item touches and decides whether to fan out.
// When any worker fails, results that implement Release are released.
func ProcessIndexed[T, R any](
	ctx context.Context,
	wp *WorkerPool,
	rows int,
	items []T,
	worker func(context.Context, int, T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]R, len(items))

	if !wp.Parallel(rows) || len(items) == 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				releaseAll(results)
				return nil, err
			}
			result, err := worker(ctx, i, item)
			if err != nil {
				releaseAll(results)
				return nil, err
			}
			results[i] = result
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(wp.numWorkers)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := worker(gctx, i, item)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		releaseAll(results)
		return nil, err
	}
	return results, nil
}

// releaser is implemented by results that hold Arrow memory.
type releaser interface {
	Release()
}

// releaseAll frees results already produced when the batch fails.
func releaseAll[R any](results []R) {
	for _, r := range results {
		if rel, ok := any(r).(releaser); ok && rel != nil {
			rel.Release()
		}
	}
}
