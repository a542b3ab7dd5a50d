// Package stage implements the generic fan-out dispatcher shared by the
// Stage-1 and Review stages: run N independent calls either in parallel or
// sequentially, tolerating individual failures per the configured policy
// (spec §5).
package stage

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	pipelineerrors "dev.helix.agent/council/internal/errors"
)

// Call is one unit of fan-out work: invoke a single backend and return its
// typed result or an error.
type Call[T any] func(ctx context.Context) (T, error)

// Outcome pairs a call's result with the error it produced, if any. Exactly
// one of Value/Err is meaningful: when Err is non-nil, Value holds the zero
// value of T.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Dispatch runs every call in calls concurrently under ctx and collects
// every outcome in input order (DispatchSequential is the one-at-a-time
// variant). It never aborts early on a single call's failure: a failing
// sibling does not cancel or block the others. The caller decides, by
// inspecting the returned outcomes, whether enough of them succeeded to
// satisfy the stage's requirement (spec §5's "tolerate partial failure,
// escalate only when a whole stage yields nothing usable").
func Dispatch[T any](ctx context.Context, calls []Call[T]) []Outcome[T] {
	return dispatchWith(ctx, calls, true)
}

// DispatchSequential runs every call in calls one at a time, in order,
// under ctx.
func DispatchSequential[T any](ctx context.Context, calls []Call[T]) []Outcome[T] {
	return dispatchWith(ctx, calls, false)
}

func dispatchWith[T any](ctx context.Context, calls []Call[T], parallel bool) []Outcome[T] {
	outcomes := make([]Outcome[T], len(calls))
	if !parallel {
		for i, call := range calls {
			outcomes[i].Value, outcomes[i].Err = call(ctx)
		}
		return outcomes
	}

	// Every goroutine below always returns a nil error to errgroup, so a
	// failing sibling's Outcome.Err never triggers errgroup's
	// cancel-on-first-error behavior; gctx still carries the parent's
	// deadline, so a request-level timeout still cancels outstanding calls.
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for idx, call := range calls {
		idx, call := idx, call
		g.Go(func() error {
			value, err := call(gctx)
			mu.Lock()
			outcomes[idx] = Outcome[T]{Value: value, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Successes filters outcomes down to the ones that did not fail.
func Successes[T any](outcomes []Outcome[T]) []T {
	values := make([]T, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			values = append(values, o.Value)
		}
	}
	return values
}

// Failures filters outcomes down to the errors of the ones that did fail.
func Failures[T any](outcomes []Outcome[T]) []error {
	errs := make([]error, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// RequireAtLeastOne returns a *pipelineerrors.PipelineError for stage if
// every outcome failed (or outcomes is empty); otherwise it returns nil.
func RequireAtLeastOne[T any](stage string, outcomes []Outcome[T]) error {
	for _, o := range outcomes {
		if o.Err == nil {
			return nil
		}
	}
	return pipelineerrors.NewPipelineError(stage, "every invoker failed")
}
