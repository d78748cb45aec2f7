package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	dErrors "attestor/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations by
// domain error code.
type ConcurrentResult struct {
	Successes   int32
	NotFounds   int32
	Unavailable int32
	Errors      int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.NotFounds + r.Unavailable + r.Errors
}

// RunConcurrent executes fn in parallel goroutines and tallies the results.
// Unavailable covers both upstream outages and timeouts.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, notFounds, unavailable, errs atomic.Int32

	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			case dErrors.HasCode(err, dErrors.CodeUnavailable), dErrors.HasCode(err, dErrors.CodeTimeout):
				unavailable.Add(1)
			default:
				errs.Add(1)
			}
		}()
	}
	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		NotFounds:   notFounds.Load(),
		Unavailable: unavailable.Load(),
		Errors:      errs.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with a shared context.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
