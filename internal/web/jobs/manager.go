package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/buemura/rook/pkg/types"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("run not found")

// Executor runs every target of a report.
type Executor interface {
	RunInto(ctx context.Context, report *types.RunReport) error
}

// Manager manages run lifecycle: create, execute, track, cancel.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	exec Executor
	log  logrus.FieldLogger
	wg   sync.WaitGroup
}

// NewManager creates a job manager backed by exec.
func NewManager(exec Executor, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		jobs: make(map[string]*Job),
		exec: exec,
		log:  log.WithField("component", "jobs"),
	}
}

// Create validates targets and registers a pending run.
func (m *Manager) Create(targets []string, opts types.ScanOptions) (*Job, error) {
	if err := types.ValidateTargets(targets); err != nil {
		return nil, err
	}

	report := types.NewRunReport(targets, opts)
	job := &Job{
		ID:        report.ID,
		Report:    report,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job, nil
}

// Start launches the run in a background goroutine.
func (m *Manager) Start(jobID string) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, jobID)
	}
	if job.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("run %q is already %s", jobID, job.Status)
	}
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	job.Status = StatusRunning
	job.StartedAt = time.Now()
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(ctx, job)
	return nil
}

func (m *Manager) execute(ctx context.Context, job *Job) {
	defer m.wg.Done()
	defer job.cancel()
	defer func() {
		if r := recover(); r != nil {
			m.finish(job, StatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	err := m.exec.RunInto(ctx, job.Report)
	switch {
	case err == nil:
		m.finish(job, StatusCompleted, "")
	case errors.Is(err, context.Canceled):
		m.finish(job, StatusCancelled, "")
	default:
		m.log.WithError(err).WithField("run", job.ID).Error("run failed")
		m.finish(job, StatusFailed, err.Error())
	}
}

func (m *Manager) finish(job *Job, status JobStatus, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.Status = status
	job.Error = msg
	job.CompletedAt = time.Now()
}

// Cancel stops a pending or running job. Targets already in flight finish with
// cancelled stages; unstarted targets are not scanned.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, jobID)
	}
	switch {
	case job.Status == StatusPending:
		job.Status = StatusCancelled
		job.CompletedAt = time.Now()
		job.Report.Finalize(true)
	case job.Status == StatusRunning && job.cancel != nil:
		job.cancel()
	}
	return nil
}

// Get returns a snapshot of the job.
func (m *Manager) Get(jobID string) (View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return View{}, fmt.Errorf("%w: %q", ErrNotFound, jobID)
	}
	return m.view(job), nil
}

// List returns snapshots of all jobs, newest first.
func (m *Manager) List() []View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]View, 0, len(m.jobs))
	for _, j := range m.jobs {
		result = append(result, m.view(j))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	return result
}

func (m *Manager) view(job *Job) View {
	return View{
		ID:          job.ID,
		Targets:     job.Report.Targets,
		Speed:       job.Report.Options.Speed,
		Status:      job.Status,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		Progress: JobProgress{
			TotalTargets:     job.Report.Total(),
			CompletedTargets: job.Report.Completed(),
		},
		Records: job.Report.Records(),
	}
}

// Report returns the live report of a job.
func (m *Manager) Report(jobID string) (*types.RunReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, jobID)
	}
	return job.Report, nil
}

// Delete cancels the job if needed and forgets it.
func (m *Manager) Delete(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, jobID)
	}
	if job.cancel != nil {
		job.cancel()
	}
	delete(m.jobs, jobID)
	return nil
}

// Shutdown cancels every running job and waits for them to stop or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, job := range m.jobs {
		if job.cancel != nil {
			job.cancel()
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
