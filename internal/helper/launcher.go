package helper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

// Config describes how to run msfrpcd.
type Config struct {
	Binary       string
	Host         string
	Port         int
	User         string
	Password     string
	StartTimeout time.Duration
	Verbose      bool
}

// DefaultConfig matches msfrpcd's usual local setup.
func DefaultConfig() Config {
	return Config{
		Binary:       "msfrpcd",
		Host:         "127.0.0.1",
		Port:         55553,
		User:         "msf",
		Password:     "msf",
		StartTimeout: 90 * time.Second,
	}
}

// ExecLauncher runs the helper as a child process.
type ExecLauncher struct {
	cfg Config
	log logrus.FieldLogger

	cmd  *exec.Cmd
	done chan error
}

// NewExecLauncher creates a launcher for cfg.
func NewExecLauncher(cfg Config, log logrus.FieldLogger) *ExecLauncher {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultConfig().StartTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExecLauncher{cfg: cfg, log: log}
}

// Cleanup kills any process whose name or command line references the helper binary.
func (l *ExecLauncher) Cleanup(ctx context.Context) error {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return fmt.Errorf("listing processes: %w", err)
	}
	name := filepath.Base(l.cfg.Binary)
	self := int32(os.Getpid())

	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		if !matchesBinary(ctx, p, name) {
			continue
		}
		l.log.WithField("pid", p.Pid).Warn("killing stale helper")
		if err := p.KillWithContext(ctx); err != nil {
			return fmt.Errorf("killing stale helper %d: %w", p.Pid, err)
		}
	}
	return nil
}

func matchesBinary(ctx context.Context, p *process.Process, name string) bool {
	if n, err := p.NameWithContext(ctx); err == nil && n == name {
		return true
	}
	args, err := p.CmdlineSliceWithContext(ctx)
	if err != nil || len(args) == 0 {
		return false
	}
	// Script launchers report the interpreter as the process name.
	for _, a := range args[:min(2, len(args))] {
		if filepath.Base(a) == name {
			return true
		}
	}
	return false
}

// Args returns the helper's command line arguments.
func (l *ExecLauncher) Args() []string {
	return []string{
		"-U", l.cfg.User,
		"-P", l.cfg.Password,
		"-a", l.cfg.Host,
		"-p", strconv.Itoa(l.cfg.Port),
		"-S",
		"-f",
	}
}

// Start launches the helper and waits until its port accepts connections.
func (l *ExecLauncher) Start(ctx context.Context) (*Handle, error) {
	path, err := exec.LookPath(l.cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", l.cfg.Binary, err)
	}

	cmd := exec.Command(path, l.Args()...)
	if l.cfg.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", l.cfg.Binary, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	l.cmd = cmd
	l.done = done

	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))
	if err := waitReady(ctx, addr, l.cfg.StartTimeout, done); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	return &Handle{
		Host:      l.cfg.Host,
		Port:      l.cfg.Port,
		User:      l.cfg.User,
		Password:  l.cfg.Password,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
	}, nil
}

func waitReady(ctx context.Context, addr string, budget time.Duration, exited <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case err := <-exited:
			return fmt.Errorf("helper exited before becoming ready: %v", err)
		case <-ctx.Done():
			return fmt.Errorf("helper not ready on %s: %w", addr, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop terminates the helper and waits briefly for it to exit.
func (l *ExecLauncher) Stop(ctx context.Context, h *Handle) error {
	if l.cmd == nil || l.cmd.Process == nil || l.cmd.Process.Pid != h.PID {
		p, err := process.NewProcessWithContext(ctx, int32(h.PID))
		if err != nil {
			return nil
		}
		return p.KillWithContext(ctx)
	}

	p, err := process.NewProcessWithContext(ctx, int32(h.PID))
	if err == nil {
		_ = p.TerminateWithContext(ctx)
	}

	select {
	case <-l.done:
	case <-time.After(5 * time.Second):
		if err := l.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("killing helper: %w", err)
		}
		<-l.done
	case <-ctx.Done():
		_ = l.cmd.Process.Kill()
	}
	l.cmd = nil
	l.done = nil
	return nil
}
