package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	delay   time.Duration
	err     error
	release chan struct{}
}

func (s *stubExecutor) RunInto(ctx context.Context, report *types.RunReport) error {
	cancelled := false
	for _, target := range report.Targets {
		if s.release != nil {
			select {
			case <-s.release:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		rec := types.NewScanRecord(target)
		rec.Finalize(time.Now())
		if _, err := report.Append(rec); err != nil {
			return err
		}
	}
	report.Finalize(cancelled)
	if cancelled {
		return ctx.Err()
	}
	return s.err
}

func newTestManager(exec Executor) *Manager {
	log, _ := test.NewNullLogger()
	return NewManager(exec, log)
}

func waitStatus(t *testing.T, m *Manager, id string, want JobStatus) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		var err error
		v, err = m.Get(id)
		return err == nil && v.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return v
}

func TestCreate_ReturnsPendingJob(t *testing.T) {
	m := newTestManager(&stubExecutor{})

	job, err := m.Create([]string{"a.test", "b.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, []string{"a.test", "b.test"}, job.Report.Targets)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestCreate_RejectsInvalidTargets(t *testing.T) {
	m := newTestManager(&stubExecutor{})

	_, err := m.Create(nil, types.DefaultScanOptions())
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = m.Create([]string{"a.test", "a.test"}, types.DefaultScanOptions())
	assert.ErrorIs(t, err, types.ErrDuplicateTarget)
	assert.Empty(t, m.List())
}

func TestStartAndComplete(t *testing.T) {
	m := newTestManager(&stubExecutor{})
	job, err := m.Create([]string{"a.test", "b.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	require.NoError(t, m.Start(job.ID))
	v := waitStatus(t, m, job.ID, StatusCompleted)

	assert.Len(t, v.Records, 2)
	assert.Equal(t, 2, v.Progress.CompletedTargets)
	assert.Equal(t, 2, v.Progress.TotalTargets)
	assert.False(t, v.CompletedAt.IsZero())
	assert.Empty(t, v.Error)
}

func TestStart_Twice(t *testing.T) {
	m := newTestManager(&stubExecutor{})
	job, err := m.Create([]string{"a.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	require.NoError(t, m.Start(job.ID))
	assert.Error(t, m.Start(job.ID))
	waitStatus(t, m, job.ID, StatusCompleted)
}

func TestStart_NotFound(t *testing.T) {
	m := newTestManager(&stubExecutor{})
	assert.ErrorIs(t, m.Start("missing"), ErrNotFound)
}

func TestExecutorError_MarksFailed(t *testing.T) {
	m := newTestManager(&stubExecutor{err: errors.New("helper unavailable")})
	job, err := m.Create([]string{"a.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	require.NoError(t, m.Start(job.ID))
	v := waitStatus(t, m, job.ID, StatusFailed)
	assert.Equal(t, "helper unavailable", v.Error)
}

func TestCancel_Running(t *testing.T) {
	exec := &stubExecutor{release: make(chan struct{})}
	m := newTestManager(exec)
	job, err := m.Create([]string{"a.test", "b.test", "c.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	require.NoError(t, m.Start(job.ID))
	exec.release <- struct{}{}
	require.Eventually(t, func() bool {
		v, _ := m.Get(job.ID)
		return v.Progress.CompletedTargets == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Cancel(job.ID))
	v := waitStatus(t, m, job.ID, StatusCancelled)
	assert.Len(t, v.Records, 1)

	report, err := m.Report(job.ID)
	require.NoError(t, err)
	assert.True(t, report.Cancelled())
}

func TestCancel_Pending(t *testing.T) {
	m := newTestManager(&stubExecutor{})
	job, err := m.Create([]string{"a.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	require.NoError(t, m.Cancel(job.ID))
	v, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Status)
	assert.Error(t, m.Start(job.ID))
}

func TestList_NewestFirst(t *testing.T) {
	m := newTestManager(&stubExecutor{})
	first, err := m.Create([]string{"a.test"}, types.DefaultScanOptions())
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := m.Create([]string{"b.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestDelete(t *testing.T) {
	m := newTestManager(&stubExecutor{})
	job, err := m.Create([]string{"a.test"}, types.DefaultScanOptions())
	require.NoError(t, err)

	require.NoError(t, m.Delete(job.ID))
	_, err = m.Get(job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(job.ID), ErrNotFound)
}

func TestShutdown_CancelsRunning(t *testing.T) {
	exec := &stubExecutor{release: make(chan struct{})}
	m := newTestManager(exec)
	job, err := m.Create([]string{"a.test"}, types.DefaultScanOptions())
	require.NoError(t, err)
	require.NoError(t, m.Start(job.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	v, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Status)
}

func TestNewManager_NilLogger(t *testing.T) {
	m := NewManager(&stubExecutor{}, nil)
	assert.NotNil(t, m.log)
}
