package scanner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/buemura/rook/internal/helper"
	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus"
)

// Adapter wraps one external tool. Run must always return a StageResult and never
// panic past its boundary; the Runner recovers panics anyway.
type Adapter interface {
	Name() types.Stage
	Description() string
	Run(ctx context.Context, target string, opts Options) types.StageResult
}

// Options is what every adapter receives for one target.
type Options struct {
	Scan      types.ScanOptions
	RunID     string
	WorkDir   string
	Helper    *helper.Handle
	OpenPorts []types.OpenPort
	Logger    logrus.FieldLogger
}

// Log returns the configured logger or a no-op one.
func (o Options) Log() logrus.FieldLogger {
	if o.Logger == nil {
		return nopLogger
	}
	return o.Logger
}

var nopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Func adapts a plain function to the Adapter interface.
type Func struct {
	Stage types.Stage
	Desc  string
	Fn    func(ctx context.Context, target string, opts Options) types.StageResult
}

func (f Func) Name() types.Stage   { return f.Stage }
func (f Func) Description() string { return f.Desc }

func (f Func) Run(ctx context.Context, target string, opts Options) types.StageResult {
	return f.Fn(ctx, target, opts)
}

// FileSafe turns a target into a string usable as a file name component.
func FileSafe(target string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "\\", "_", " ", "_")
	return r.Replace(target)
}

// ArtifactPath returns a path for a per-target artifact, creating the parent
// directory. Artifacts of a run live under <WorkDir>/runs/<RunID>.
func (o Options) ArtifactPath(sub, name string) (string, error) {
	base := o.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	if o.RunID != "" {
		base = filepath.Join(base, "runs", o.RunID)
	}
	dir := filepath.Join(base, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}
