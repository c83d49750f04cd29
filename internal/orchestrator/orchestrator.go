// Package orchestrator runs the per-target pipeline across a list of targets with
// bounded concurrency while holding the exploit-module helper.
package orchestrator

import (
	"context"
	"math"
	"runtime"
	"time"

	"github.com/buemura/rook/internal/helper"
	"github.com/buemura/rook/internal/pipeline"
	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/pkg/types"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Sink receives every record as soon as it completes.
type Sink interface {
	Persist(ctx context.Context, runID string, rec *types.ScanRecord) error
}

// ProgressFunc is called after each record is appended to the report.
type ProgressFunc func(report *types.RunReport, rec *types.ScanRecord)

// Orchestrator runs multi-target scans.
type Orchestrator struct {
	Pipeline *pipeline.Pipeline
	Helper   *helper.Coordinator
	Sink     Sink
	WorkDir  string
	Log      logrus.FieldLogger

	// OnRecord, if set, observes progress. It runs on worker goroutines.
	OnRecord ProgressFunc
}

// New creates an orchestrator. helper and sink may be nil.
func New(p *pipeline.Pipeline, coord *helper.Coordinator, sink Sink, workDir string, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = scanner.Options{}.Log()
	}
	if coord == nil {
		coord = helper.NewCoordinator(nil, log)
	}
	return &Orchestrator{Pipeline: p, Helper: coord, Sink: sink, WorkDir: workDir, Log: log}
}

// Workers returns the worker count for speed over n targets.
func Workers(speed types.Speed, n int) int {
	if n < 1 {
		return 1
	}
	if speed == types.SpeedFast {
		return n
	}
	w := int(math.Round(float64(cpuCount()) / 2))
	if w < 1 {
		w = 1
	}
	if w > n {
		w = n
	}
	return w
}

func cpuCount() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Run validates targets, scans them and returns the finalized report.
func (o *Orchestrator) Run(ctx context.Context, targets []string, opts types.ScanOptions) (*types.RunReport, error) {
	if err := types.ValidateTargets(targets); err != nil {
		return nil, err
	}
	report := types.NewRunReport(targets, opts)
	return report, o.RunInto(ctx, report)
}

// RunInto scans report.Targets, appending records to report in completion order.
// Unstarted targets are abandoned when ctx ends; the report is then finalized as
// cancelled and ctx.Err() is returned.
func (o *Orchestrator) RunInto(ctx context.Context, report *types.RunReport) error {
	if err := types.ValidateTargets(report.Targets); err != nil {
		return err
	}
	log := o.Log.WithField("run", report.ID)

	handle, err := o.Helper.Acquire(ctx)
	if err != nil {
		report.Finalize(ctx.Err() != nil)
		return err
	}
	defer func() {
		if err := o.Helper.Release(context.Background(), handle); err != nil {
			log.WithError(err).Warn("releasing helper")
		}
	}()

	workers := Workers(report.Options.Speed, report.Total())
	log.WithFields(logrus.Fields{
		"targets": report.Total(),
		"workers": workers,
		"speed":   report.Options.Speed,
	}).Info("run started")

	base := scanner.Options{
		Scan:    report.Options,
		RunID:   report.ID,
		WorkDir: o.WorkDir,
		Helper:  handle,
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, target := range report.Targets {
		target := target
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			rec := o.Pipeline.Run(ctx, target, base)
			o.collect(ctx, log, report, rec)
		})
	}
	p.Wait()

	cancelled := ctx.Err() != nil
	report.Finalize(cancelled)
	log.WithFields(logrus.Fields{
		"completed": report.Completed(),
		"cancelled": cancelled,
		"elapsed":   report.Elapsed().Round(time.Millisecond),
	}).Info("run finished")

	if cancelled {
		return ctx.Err()
	}
	return nil
}

func (o *Orchestrator) collect(ctx context.Context, log logrus.FieldLogger, report *types.RunReport, rec *types.ScanRecord) {
	n, err := report.Append(rec)
	if err != nil {
		log.WithError(err).WithField("target", rec.Target).Error("appending record")
		return
	}

	if o.Sink != nil {
		// Finished records are persisted even after cancellation.
		if err := o.Sink.Persist(context.WithoutCancel(ctx), report.ID, rec); err != nil {
			log.WithError(err).WithField("target", rec.Target).Error("persisting record")
		}
	}

	log.WithFields(logrus.Fields{
		"target":   rec.Target,
		"progress": n,
		"total":    report.Total(),
	}).Info("target complete")

	if o.OnRecord != nil {
		o.OnRecord(report, rec)
	}
}
