package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// ErrToolMissing is returned when a required binary is not on PATH.
var ErrToolMissing = errors.New("tool not found in PATH")

// waitDelay bounds how long Exec waits for output pipes held open by
// descendants after the command itself has exited or been killed.
const waitDelay = 2 * time.Second

// LookPath resolves a binary; tests may replace it.
var LookPath = exec.LookPath

// ToolAvailable reports whether name resolves on PATH.
func ToolAvailable(name string) bool {
	_, err := LookPath(name)
	return err == nil
}

// Command describes one external tool invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin string
	Dir   string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Exec runs cmd and returns its combined output with ANSI escapes removed. A non-zero
// exit is returned as an error together with whatever output was produced. The
// command runs in its own process group, which is killed when ctx ends and once
// the command returns, so forked descendants never outlive the call.
func Exec(ctx context.Context, cmd Command) (string, error) {
	path, err := LookPath(cmd.Name)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cmd.Name, ErrToolMissing)
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf
	c.WaitDelay = waitDelay
	setProcessGroup(c)

	runErr := c.Run()
	_ = killProcessGroup(c)
	out := ansi.Strip(buf.String())
	if errors.Is(runErr, exec.ErrWaitDelay) {
		// Exited cleanly; a leftover descendant held the output pipe.
		runErr = nil
	}
	if runErr != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, fmt.Errorf("%s: %w", cmd.Name, runErr)
	}
	return out, nil
}

// Shell runs a command line through sh -c.
func Shell(ctx context.Context, line string) (string, error) {
	return Exec(ctx, Command{Name: "sh", Args: []string{"-c", line}})
}
