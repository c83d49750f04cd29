// Package helper owns the single local RPC helper process shared by every pipeline of a run.
package helper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus"
)

// Handle identifies a running helper. Pipelines only read it.
type Handle struct {
	Host      string
	Port      int
	User      string
	Password  string
	PID       int
	StartedAt time.Time
}

// Addr returns host:port.
func (h *Handle) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// Endpoint returns the RPC URL.
func (h *Handle) Endpoint() string {
	return "http://" + h.Addr() + "/api/"
}

// Launcher starts and stops helper instances.
type Launcher interface {
	// Cleanup terminates instances left over from earlier runs. It must be idempotent.
	Cleanup(ctx context.Context) error
	Start(ctx context.Context) (*Handle, error)
	Stop(ctx context.Context, h *Handle) error
}

// Coordinator guarantees at most one helper instance is alive. Acquire blocks while
// another holder has not yet called Release.
type Coordinator struct {
	launcher Launcher
	log      logrus.FieldLogger

	token chan struct{}

	mu   sync.Mutex
	live *Handle
	held bool
}

// NewCoordinator creates a coordinator. A nil launcher disables the helper: Acquire
// still serializes runs but hands out a nil Handle.
func NewCoordinator(l Launcher, log logrus.FieldLogger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{
		launcher: l,
		log:      log.WithField("component", "helper"),
		token:    make(chan struct{}, 1),
	}
}

// Enabled reports whether a launcher is configured.
func (c *Coordinator) Enabled() bool {
	return c.launcher != nil
}

// Acquire cleans up stale instances and starts exactly one fresh helper.
func (c *Coordinator) Acquire(ctx context.Context) (*Handle, error) {
	select {
	case c.token <- struct{}{}:
	case <-ctx.Done():
		return nil, &types.ResourceError{Op: "acquire", Err: ctx.Err()}
	}
	return c.start(ctx)
}

// TryAcquire is Acquire without waiting; it fails with ErrHelperBusy while the helper is held.
func (c *Coordinator) TryAcquire(ctx context.Context) (*Handle, error) {
	select {
	case c.token <- struct{}{}:
	default:
		return nil, &types.ResourceError{Op: "acquire", Err: types.ErrHelperBusy}
	}
	return c.start(ctx)
}

func (c *Coordinator) start(ctx context.Context) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.launcher == nil {
		c.held = true
		return nil, nil
	}

	if err := c.launcher.Cleanup(ctx); err != nil {
		<-c.token
		return nil, &types.ResourceError{Op: "cleanup", Err: err}
	}
	h, err := c.launcher.Start(ctx)
	if err != nil {
		<-c.token
		return nil, &types.ResourceError{Op: "start", Err: err}
	}
	if h == nil {
		<-c.token
		return nil, &types.ResourceError{Op: "start", Err: errors.New("launcher returned no handle")}
	}

	c.live = h
	c.held = true
	c.log.WithFields(logrus.Fields{"addr": h.Addr(), "pid": h.PID}).Info("helper started")
	return h, nil
}

// Release stops the helper obtained from Acquire. It is safe to call with a context
// that is already cancelled; the stop then uses a short background budget.
func (c *Coordinator) Release(ctx context.Context, h *Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.held {
		return &types.ResourceError{Op: "release", Err: errors.New("helper is not held")}
	}
	if h != c.live {
		return &types.ResourceError{Op: "release", Err: fmt.Errorf("handle does not match the live helper")}
	}

	var err error
	if h != nil {
		if ctx.Err() != nil {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
		}
		err = c.launcher.Stop(ctx, h)
		c.log.WithField("pid", h.PID).Info("helper stopped")
	}

	c.live = nil
	c.held = false
	<-c.token

	if err != nil {
		return &types.ResourceError{Op: "stop", Err: err}
	}
	return nil
}

// Live returns the running helper, if any.
func (c *Coordinator) Live() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}
