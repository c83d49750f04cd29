package jobs

import (
	"context"
	"time"

	"github.com/buemura/rook/pkg/types"
)

// JobStatus represents the current state of a run.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusCancelled JobStatus = "cancelled"
	StatusFailed    JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// JobProgress tracks target-level progress within a run.
type JobProgress struct {
	TotalTargets     int `json:"total_targets"`
	CompletedTargets int `json:"completed_targets"`
}

// Job is an asynchronous multi-target run.
type Job struct {
	ID          string
	Report      *types.RunReport
	Status      JobStatus
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	cancel context.CancelFunc
}

// View is a point-in-time copy of a job that is safe to render or encode.
type View struct {
	ID          string              `json:"id"`
	Targets     []string            `json:"targets"`
	Speed       types.Speed         `json:"speed"`
	Status      JobStatus           `json:"status"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	StartedAt   time.Time           `json:"started_at,omitempty"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
	Progress    JobProgress         `json:"progress"`
	Records     []*types.ScanRecord `json:"records,omitempty"`
}

// FailedStages returns the number of failed stages across all records.
func (v View) FailedStages() int {
	n := 0
	for _, r := range v.Records {
		n += len(r.FailedStages())
	}
	return n
}

// FindingCount returns the total number of findings across all records.
func (v View) FindingCount() int {
	n := 0
	for _, r := range v.Records {
		for _, res := range r.Results() {
			n += len(res.Findings)
		}
	}
	return n
}
