// Package pipeline runs every stage for a single target and assembles the
// resulting ScanRecord.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/buemura/rook/internal/scanner"
	"github.com/buemura/rook/internal/scanner/command"
	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

// Advisor turns a completed record into free-text advice.
type Advisor interface {
	Advise(ctx context.Context, rec *types.ScanRecord) (string, error)
}

// IsWebTarget reports whether a port scan result shows any web port open. A
// failed or skipped port scan is never a web target.
func IsWebTarget(portScan types.StageResult) bool {
	if !portScan.IsSuccess() {
		return false
	}
	for _, p := range portScan.Ports {
		if _, ok := scanner.WebPorts[p.Port]; ok && p.Protocol != "udp" {
			return true
		}
	}
	return false
}

// Pipeline runs the stage groups for one target.
type Pipeline struct {
	runner  *scanner.Runner
	advisor Advisor
	log     logrus.FieldLogger
}

// New creates a pipeline. advisor may be nil when advice is never enabled.
func New(runner *scanner.Runner, advisor Advisor, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = scanner.Options{}.Log()
	}
	return &Pipeline{runner: runner, advisor: advisor, log: log}
}

// Run scans target and returns its finalized record. It never returns nil; stages
// that could not run because ctx ended are recorded as failures.
func (p *Pipeline) Run(ctx context.Context, target string, opts scanner.Options) *types.ScanRecord {
	started := time.Now()
	log := p.log.WithField("target", target)
	opts.Logger = log

	rec := types.NewScanRecord(target)
	var mu sync.Mutex
	set := func(stage types.Stage, res types.StageResult) {
		mu.Lock()
		defer mu.Unlock()
		if err := rec.Set(stage, res); err != nil {
			log.WithError(err).Error("recording stage result")
		}
	}

	log.Info("scan started")

	var wg conc.WaitGroup
	for _, stage := range types.GroupA {
		stage := stage
		if stage == types.StagePortScan {
			wg.Go(func() {
				res := p.runner.RunStage(ctx, stage, target, opts)
				set(stage, res)
				p.afterPortScan(ctx, target, opts, res, rec, &mu, set)
			})
			continue
		}
		wg.Go(func() {
			set(stage, p.runner.RunStage(ctx, stage, target, opts))
		})
	}
	wg.Wait()

	for _, tmpl := range opts.Scan.ExtraCommands {
		res := p.runner.RunAdapter(ctx, command.New(tmpl), target, opts)
		mu.Lock()
		err := rec.AddCommand(types.CommandOutput{Command: command.Expand(tmpl, target), Result: res})
		mu.Unlock()
		if err != nil {
			log.WithError(err).WithField("command", tmpl).Error("recording extra command output")
		}
	}

	rec.Advice = p.advise(ctx, rec, opts, log)
	rec.Elapsed = time.Since(started)
	rec.Finalize(time.Now())

	log.WithFields(logrus.Fields{
		"web":     rec.IsWebTarget,
		"failed":  len(rec.FailedStages()),
		"elapsed": rec.Elapsed.Round(time.Millisecond),
	}).Info("scan finished")
	return rec
}

// afterPortScan applies the classification gate and runs the stages that depend on
// the port scan result.
func (p *Pipeline) afterPortScan(ctx context.Context, target string, opts scanner.Options, portScan types.StageResult,
	rec *types.ScanRecord, mu *sync.Mutex, set func(types.Stage, types.StageResult)) {
	web := IsWebTarget(portScan)
	mu.Lock()
	rec.IsWebTarget = web
	mu.Unlock()

	opts.OpenPorts = portScan.Ports

	stages := []types.Stage{types.StageExploitModules}
	if web {
		stages = append(stages, types.GroupB...)
	} else {
		for _, stage := range types.GroupB {
			set(stage, types.Skipped(stage, types.ReasonNotWebpage))
		}
	}

	for stage, res := range p.runner.RunGroup(ctx, stages, target, opts) {
		set(stage, res)
	}
}

func (p *Pipeline) advise(ctx context.Context, rec *types.ScanRecord, opts scanner.Options, log logrus.FieldLogger) string {
	if !opts.Scan.EnableAdvice {
		return types.AdviceDisabled
	}
	if p.advisor == nil {
		log.Warn("advice enabled but no advisor configured")
		return types.AdviceUnavailable
	}
	if ctx.Err() != nil {
		return types.AdviceUnavailable
	}

	advice, err := p.advisor.Advise(ctx, rec)
	if err != nil {
		var ae *types.AdviceError
		if !errors.As(err, &ae) {
			err = &types.AdviceError{Target: rec.Target, Err: err}
		}
		log.WithError(err).Warn("advice failed")
		return types.AdviceUnavailable
	}
	return advice
}
