package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buemura/rook/internal/helper"
	"github.com/buemura/rook/internal/pipeline"
	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	targets []string
	runs    map[string]int
	err     error
}

func (s *memorySink) Persist(ctx context.Context, runID string, rec *types.ScanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return &types.PersistError{Target: rec.Target, Err: s.err}
	}
	if s.runs == nil {
		s.runs = make(map[string]int)
	}
	s.runs[runID]++
	s.targets = append(s.targets, rec.Target)
	return nil
}

func (s *memorySink) persisted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.targets...)
	sort.Strings(out)
	return out
}

type countingLauncher struct {
	mu       sync.Mutex
	alive    int
	maxAlive int
	starts   int
}

func (l *countingLauncher) Cleanup(context.Context) error { return nil }

func (l *countingLauncher) Start(context.Context) (*helper.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts++
	l.alive++
	if l.alive > l.maxAlive {
		l.maxAlive = l.alive
	}
	return &helper.Handle{Host: "127.0.0.1", Port: 55553, PID: l.starts}, nil
}

func (l *countingLauncher) Stop(context.Context, *helper.Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alive--
	return nil
}

// stubRegistry answers every stage immediately, optionally after delay.
func stubRegistry(calls *atomic.Int64, delay time.Duration) *scanner.Registry {
	reg := scanner.NewRegistry()
	for _, stage := range types.AllStages {
		stage := stage
		reg.Register(scanner.Func{Stage: stage, Desc: "stub", Fn: func(ctx context.Context, target string, opts scanner.Options) types.StageResult {
			calls.Add(1)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return types.Failure(stage, ctx.Err().Error(), "")
				}
			}
			res := types.Success(stage, "ok")
			if stage == types.StagePortScan {
				res.Ports = []types.OpenPort{{Port: 22, Protocol: "tcp"}}
			}
			return res
		}})
	}
	return reg
}

func newOrchestrator(t *testing.T, calls *atomic.Int64, delay time.Duration, coord *helper.Coordinator, sink Sink) *Orchestrator {
	t.Helper()
	p := pipeline.New(scanner.NewRunner(stubRegistry(calls, delay)), nil, nil)
	o := New(p, coord, sink, t.TempDir(), nil)
	return o
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 7, Workers(types.SpeedFast, 7))
	assert.Equal(t, 1, Workers(types.SpeedFast, 0))

	careful := Workers(types.SpeedCareful, 1000)
	assert.GreaterOrEqual(t, careful, 1)
	assert.LessOrEqual(t, careful, cpuCount())
	assert.Equal(t, 1, Workers(types.SpeedCareful, 1))
}

func TestOrchestrator_RunAllTargets(t *testing.T) {
	var calls atomic.Int64
	sink := &memorySink{}
	o := newOrchestrator(t, &calls, 0, nil, sink)

	var progress []int
	var mu sync.Mutex
	o.OnRecord = func(r *types.RunReport, rec *types.ScanRecord) {
		mu.Lock()
		progress = append(progress, r.Completed())
		mu.Unlock()
	}

	targets := []string{"a.example.com", "b.example.com", "10.0.0.1", "10.0.0.2"}
	report, err := o.Run(context.Background(), targets, types.DefaultScanOptions())
	require.NoError(t, err)

	assert.True(t, report.Finalized())
	assert.False(t, report.Cancelled())
	assert.Equal(t, len(targets), report.Completed())
	require.Len(t, report.Records(), len(targets))
	for _, rec := range report.Records() {
		assert.True(t, rec.Finalized())
	}

	want := append([]string(nil), targets...)
	sort.Strings(want)
	assert.Equal(t, want, sink.persisted())
	assert.Equal(t, len(targets), sink.runs[report.ID])
	assert.Len(t, progress, len(targets))
}

func TestOrchestrator_ValidationBeforeWork(t *testing.T) {
	var calls atomic.Int64
	l := &countingLauncher{}
	o := newOrchestrator(t, &calls, 0, helper.NewCoordinator(l, nil), &memorySink{})

	_, err := o.Run(context.Background(), nil, types.DefaultScanOptions())
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, types.ErrNoTargets)

	_, err = o.Run(context.Background(), []string{"a.com", "b.com", "a.com"}, types.DefaultScanOptions())
	require.True(t, errors.As(err, &ve))
	assert.ErrorIs(t, err, types.ErrDuplicateTarget)
	assert.Equal(t, "a.com", ve.Target)

	assert.Zero(t, calls.Load())
	assert.Zero(t, l.starts)
}

func TestOrchestrator_HelperSingleton(t *testing.T) {
	var calls atomic.Int64
	l := &countingLauncher{}
	coord := helper.NewCoordinator(l, nil)
	sink := &memorySink{}

	a := newOrchestrator(t, &calls, 20*time.Millisecond, coord, sink)
	b := newOrchestrator(t, &calls, 20*time.Millisecond, coord, sink)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := a.Run(context.Background(), []string{"a.example.com", "b.example.com"}, types.DefaultScanOptions())
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := b.Run(context.Background(), []string{"c.example.com"}, types.DefaultScanOptions())
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, 2, l.starts)
	assert.Equal(t, 1, l.maxAlive)
	assert.Equal(t, 0, l.alive)
	assert.Nil(t, coord.Live())
	assert.Len(t, sink.persisted(), 3)
}

func TestOrchestrator_HelperDisabledRunsSequentially(t *testing.T) {
	var calls atomic.Int64
	coord := helper.NewCoordinator(nil, nil)
	o := newOrchestrator(t, &calls, 0, coord, nil)

	for i := 0; i < 2; i++ {
		report, err := o.Run(context.Background(), []string{"a.example.com"}, types.DefaultScanOptions())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Completed())
	}
}

func TestOrchestrator_PersistErrorIsNotFatal(t *testing.T) {
	var calls atomic.Int64
	sink := &memorySink{err: errors.New("disk full")}
	o := newOrchestrator(t, &calls, 0, nil, sink)

	report, err := o.Run(context.Background(), []string{"a.example.com", "b.example.com"}, types.DefaultScanOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Completed())
}

func TestOrchestrator_Cancel(t *testing.T) {
	var calls atomic.Int64
	sink := &memorySink{}
	o := newOrchestrator(t, &calls, 5*time.Second, nil, sink)

	opts := types.DefaultScanOptions()
	opts.Speed = types.SpeedCareful

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	targets := make([]string, 0, 64)
	for i := 0; i < 64; i++ {
		targets = append(targets, fmt.Sprintf("t%d.example.com", i))
	}

	start := time.Now()
	report, err := o.Run(ctx, targets, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.NotNil(t, report)
	assert.True(t, report.Finalized())
	assert.True(t, report.Cancelled())
	if Workers(opts.Speed, len(targets)) < len(targets) {
		assert.Less(t, report.Completed(), len(targets))
	}
	for _, rec := range report.Records() {
		assert.Equal(t, types.ReasonCancelled, rec.HostLookup.Reason)
	}
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	var calls atomic.Int64
	o := newOrchestrator(t, &calls, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, []string{"a.example.com"}, types.DefaultScanOptions())
	assert.Error(t, err)
	assert.True(t, report.Finalized())
	assert.Zero(t, report.Completed())
	assert.Zero(t, calls.Load())
}
