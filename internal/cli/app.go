package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/buemura/rook/internal/advice"
	"github.com/buemura/rook/internal/config"
	"github.com/buemura/rook/internal/helper"
	"github.com/buemura/rook/internal/orchestrator"
	"github.com/buemura/rook/internal/pipeline"
	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/internal/store"
	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus"
)

// newRegistry builds the stage adapters. Tests swap it for stubs.
var newRegistry = pipeline.DefaultRegistry

// app is the wired engine shared by every command.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *store.Store
	orch     *orchestrator.Orchestrator
	defaults types.ScanOptions
}

func buildApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	defaults, err := cfg.ScanOptions()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}

	a := &app{cfg: cfg, log: log, defaults: defaults}

	if cfg.Database.Driver != "none" {
		if err := ensureDBDir(cfg.Database); err != nil {
			return nil, err
		}
		dbCfg := cfg.Database
		dbCfg.Debug = cfg.Verbose
		st, err := store.Open(dbCfg)
		if err != nil {
			return nil, err
		}
		a.store = st
	}

	var launcher helper.Launcher
	if cfg.Helper.Enabled {
		launcher = helper.NewExecLauncher(helper.Config{
			Binary:       cfg.Helper.Binary,
			Host:         cfg.Helper.Address,
			Port:         cfg.Helper.Port,
			User:         cfg.Helper.User,
			Password:     cfg.Helper.Password,
			StartTimeout: cfg.Helper.StartTimeout,
			Verbose:      cfg.Verbose,
		}, log)
	}
	coord := helper.NewCoordinator(launcher, log)

	var advisor pipeline.Advisor
	if cfg.Advice.Enabled {
		advisor = advice.New(advice.Config{
			APIKey:   cfg.Advice.APIKey,
			Model:    cfg.Advice.Model,
			Endpoint: cfg.Advice.Endpoint,
			Timeout:  cfg.Advice.Timeout,
		})
	}

	p := pipeline.New(scanner.NewRunner(newRegistry()), advisor, log)

	var sink orchestrator.Sink
	if a.store != nil {
		sink = a.store
	}
	a.orch = orchestrator.New(p, coord, sink, cfg.WorkDir, log)
	return a, nil
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// run executes a validated target list and returns the finished report.
func (a *app) run(ctx context.Context, targets []string, opts types.ScanOptions) (*types.RunReport, error) {
	return a.orch.Run(ctx, targets, opts)
}

func ensureDBDir(cfg store.Config) error {
	if cfg.Driver != "" && cfg.Driver != "sqlite" {
		return nil
	}
	if cfg.DSN == "" || cfg.DSN == ":memory:" || strings.HasPrefix(cfg.DSN, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
		return fmt.Errorf("creating database dir: %w", err)
	}
	return nil
}
