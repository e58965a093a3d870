package propagation

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitscreen/internal/metrics"
)

var workerCount atomic.Int64

// Workers returns the process-wide worker count used by pools built with
// workers <= 0. It defaults to runtime.NumCPU().
func Workers() int {
	if n := workerCount.Load(); n > 0 {
		return int(n)
	}
	return runtime.NumCPU()
}

// SetWorkers sets the process-wide worker count. n <= 0 restores the default.
func SetWorkers(n int) {
	if n < 0 {
		n = 0
	}
	workerCount.Store(int64(n))
}

// WorkerPool runs independent work items on a fixed number of goroutines.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool. workers <= 0 follows Workers() at run time.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the number of goroutines the next batch will use.
func (wp *WorkerPool) Workers() int {
	if wp.workers > 0 {
		return wp.workers
	}
	return Workers()
}

// Map applies fn to every item on the pool. Results and errors are index-aligned
// with items; a failed item has its zero value in results and a non-nil error.
// Items not started before ctx is done fail with ctx.Err().
func Map[T, R any](ctx context.Context, wp *WorkerPool, op string, items []T, fn func(context.Context, T) (R, error)) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	workers := min(wp.Workers(), len(items))
	done := make([]bool, len(items))
	jobs := make(chan int, workers*2)

	start := time.Now()

	// Start workers. Each index is written by exactly one worker.
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results[i], errs[i] = fn(ctx, items[i])
				done[i] = true
			}
		}()
	}

	// Feed jobs.
	go func() {
		defer close(jobs)
		for i := range items {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	var succeeded, failed int
	for i := range items {
		switch {
		case !done[i]:
			errs[i] = ctx.Err()
			failed++
		case errs[i] != nil:
			failed++
			wp.logger.Debug("work item failed", "op", op, "index", i, "error", errs[i])
		default:
			succeeded++
		}
	}

	duration := time.Since(start)
	metrics.RecordBatch(op, duration, succeeded, failed)
	wp.logger.Debug("batch complete",
		"op", op,
		"workers", workers,
		"success", succeeded,
		"errors", failed,
		"duration_ms", duration.Milliseconds(),
	)

	return results, errs
}
