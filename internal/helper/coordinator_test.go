package helper

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLauncher struct {
	mu       sync.Mutex
	alive    int
	maxAlive int
	starts   int
	cleanups int
	nextPID  int32

	startErr error
	stopErr  error
}

func (f *fakeLauncher) Cleanup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return nil
}

func (f *fakeLauncher) Start(context.Context) (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts++
	f.alive++
	if f.alive > f.maxAlive {
		f.maxAlive = f.alive
	}
	f.nextPID++
	return &Handle{Host: "127.0.0.1", Port: 55553, User: "msf", Password: "msf", PID: int(f.nextPID)}, nil
}

func (f *fakeLauncher) Stop(context.Context, *Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive--
	return f.stopErr
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCoordinator_AcquireRelease(t *testing.T) {
	fl := &fakeLauncher{}
	c := NewCoordinator(fl, quietLogger())

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "127.0.0.1:55553", h.Addr())
	assert.Equal(t, "http://127.0.0.1:55553/api/", h.Endpoint())
	assert.Equal(t, h, c.Live())
	assert.Equal(t, 1, fl.cleanups)

	require.NoError(t, c.Release(context.Background(), h))
	assert.Nil(t, c.Live())
	assert.Equal(t, 0, fl.alive)
}

func TestCoordinator_SecondAcquireWaitsForRelease(t *testing.T) {
	fl := &fakeLauncher{}
	c := NewCoordinator(fl, quietLogger())

	first, err := c.Acquire(context.Background())
	require.NoError(t, err)

	var acquired atomic.Bool
	secondDone := make(chan *Handle)
	go func() {
		h, err := c.Acquire(context.Background())
		assert.NoError(t, err)
		acquired.Store(true)
		secondDone <- h
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "second acquire must block while the first is held")

	require.NoError(t, c.Release(context.Background(), first))
	second := <-secondDone
	require.NotNil(t, second)
	require.NoError(t, c.Release(context.Background(), second))

	assert.Equal(t, 1, fl.maxAlive)
	assert.Equal(t, 2, fl.starts)
}

func TestCoordinator_TryAcquireBusy(t *testing.T) {
	c := NewCoordinator(&fakeLauncher{}, quietLogger())
	h, err := c.Acquire(context.Background())
	require.NoError(t, err)

	_, err = c.TryAcquire(context.Background())
	var rerr *types.ResourceError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, types.ErrHelperBusy)

	require.NoError(t, c.Release(context.Background(), h))
	h, err = c.TryAcquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Release(context.Background(), h))
}

func TestCoordinator_AcquireContextCancelled(t *testing.T) {
	c := NewCoordinator(&fakeLauncher{}, quietLogger())
	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release(context.Background(), h)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx)
	var rerr *types.ResourceError
	assert.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_StartFailureFreesSlot(t *testing.T) {
	fl := &fakeLauncher{startErr: errors.New("no msfrpcd")}
	c := NewCoordinator(fl, quietLogger())

	_, err := c.Acquire(context.Background())
	var rerr *types.ResourceError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "start", rerr.Op)

	fl.startErr = nil
	h, err := c.TryAcquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Release(context.Background(), h))
}

func TestCoordinator_ReleaseErrors(t *testing.T) {
	fl := &fakeLauncher{}
	c := NewCoordinator(fl, quietLogger())

	assert.Error(t, c.Release(context.Background(), nil), "release without acquire")

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Error(t, c.Release(context.Background(), &Handle{PID: 999}), "foreign handle")

	fl.stopErr = errors.New("stuck")
	err = c.Release(context.Background(), h)
	var rerr *types.ResourceError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "stop", rerr.Op)

	fl.stopErr = nil
	h, err = c.TryAcquire(context.Background())
	require.NoError(t, err, "slot is freed even when stop fails")
	require.NoError(t, c.Release(context.Background(), h))
}

func TestCoordinator_ReleaseWithCancelledContext(t *testing.T) {
	fl := &fakeLauncher{}
	c := NewCoordinator(fl, quietLogger())
	h, err := c.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.Release(ctx, h))
	assert.Equal(t, 0, fl.alive)
}

func TestCoordinator_Disabled(t *testing.T) {
	c := NewCoordinator(nil, quietLogger())
	assert.False(t, c.Enabled())

	h, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Nil(t, h)
	require.NoError(t, c.Release(context.Background(), h))
}

func TestExecLauncher_Args(t *testing.T) {
	l := NewExecLauncher(DefaultConfig(), quietLogger())
	assert.Equal(t, []string{"-U", "msf", "-P", "msf", "-a", "127.0.0.1", "-p", "55553", "-S", "-f"}, l.Args())
}

func TestExecLauncher_StartMissingBinary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Binary = "definitely-not-msfrpcd-rook"
	_, err := NewExecLauncher(cfg, quietLogger()).Start(context.Background())
	assert.Error(t, err)
}
