package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"shopcore/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes   int32
	Errors      int32
	AlreadyUsed int32
	NotFounds   int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.AlreadyUsed + r.NotFounds
}

// RunConcurrent runs fn in parallel goroutines released together and
// buckets each result by sentinel.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                              sync.WaitGroup
		successes, errs, used, notFound atomic.Int32
		start                           = make(chan struct{})
	)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				used.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFound.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		Errors:      errs.Load(),
		AlreadyUsed: used.Load(),
		NotFounds:   notFound.Load(),
	}
}

func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
