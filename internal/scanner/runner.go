package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buemura/rook/pkg/types"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Runner executes stage adapters with per-stage timeouts and panic isolation.
type Runner struct {
	registry *Registry
}

// NewRunner creates a runner backed by the given registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// Registry returns the backing registry.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// RunStage executes one stage. The adapter runs in its own goroutine; if the stage
// budget or the parent context ends first, the result is discarded and a
// Failure("timeout") or Failure("cancelled") is returned instead.
func (r *Runner) RunStage(ctx context.Context, stage types.Stage, target string, opts Options) types.StageResult {
	a, err := r.registry.Get(stage)
	if err != nil {
		now := time.Now()
		return types.Failure(stage, err.Error(), "").Stamp(now, now)
	}
	return r.RunAdapter(ctx, a, target, opts)
}

// RunAdapter executes an adapter that is not necessarily registered, such as a
// per-run extra command, under the same timeout and recovery rules as RunStage.
func (r *Runner) RunAdapter(ctx context.Context, a Adapter, target string, opts Options) types.StageResult {
	stage := a.Name()
	started := time.Now()
	log := opts.Log().WithField("stage", stage)

	if ctx.Err() != nil {
		return types.Failure(stage, types.ReasonCancelled, "").Stamp(started, time.Now())
	}

	sctx, cancel := context.WithTimeout(ctx, opts.Scan.TimeoutFor(stage))
	defer cancel()

	done := make(chan types.StageResult, 1)
	go func() {
		var res types.StageResult
		var pc panics.Catcher
		pc.Try(func() { res = a.Run(sctx, target, opts) })
		if rec := pc.Recovered(); rec != nil {
			res = types.Failure(stage, fmt.Sprintf("adapter panic: %v", rec.Value), "")
		}
		done <- res
	}()

	var res types.StageResult
	select {
	case res = <-done:
		if res.IsZero() {
			res = types.Failure(stage, "adapter returned no result", "")
		}
		if !res.IsSuccess() && !res.IsSkipped() && sctx.Err() != nil {
			res = types.Failure(stage, interruptReason(ctx, sctx), res.Output)
		}
	case <-sctx.Done():
		res = types.Failure(stage, interruptReason(ctx, sctx), "")
	}

	res.Stage = stage
	res = res.Stamp(started, time.Now())

	switch {
	case res.IsFailure():
		log.WithField("reason", res.Reason).Warn("stage failed")
	default:
		log.WithField("status", res.Status).WithField("elapsed", res.Duration().Round(time.Millisecond)).Debug("stage finished")
	}
	return res
}

func interruptReason(parent, stage context.Context) string {
	if parent.Err() != nil {
		return types.ReasonCancelled
	}
	if errors.Is(stage.Err(), context.DeadlineExceeded) {
		return types.ReasonTimeout
	}
	return types.ReasonCancelled
}

// RunGroup executes stages concurrently and waits for all of them.
func (r *Runner) RunGroup(ctx context.Context, stages []types.Stage, target string, opts Options) map[types.Stage]types.StageResult {
	var mu sync.Mutex
	results := make(map[types.Stage]types.StageResult, len(stages))

	var wg conc.WaitGroup
	for _, stage := range stages {
		stage := stage
		wg.Go(func() {
			res := r.RunStage(ctx, stage, target, opts)
			mu.Lock()
			results[stage] = res
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}
