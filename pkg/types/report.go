package types

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunReport collects the records of a multi-target run in completion order.
type RunReport struct {
	ID        string
	Targets   []string
	Options   ScanOptions
	StartedAt time.Time

	completed atomic.Int64

	mu         sync.RWMutex
	records    []*ScanRecord
	finishedAt time.Time
	finalized  bool
	cancelled  bool
}

// NewRunReport creates an open report for targets.
func NewRunReport(targets []string, opts ScanOptions) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		Targets:   append([]string(nil), targets...),
		Options:   opts.Clone(),
		StartedAt: time.Now(),
	}
}

// Total is the number of targets in the run.
func (r *RunReport) Total() int {
	return len(r.Targets)
}

// Completed is the number of records appended so far.
func (r *RunReport) Completed() int {
	return int(r.completed.Load())
}

// Append adds a finished record and advances the progress counter.
func (r *RunReport) Append(rec *ScanRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return r.Completed(), ErrReportFinalized
	}
	r.records = append(r.records, rec)
	return int(r.completed.Add(1)), nil
}

// Finalize closes the report to further writes.
func (r *RunReport) Finalize(cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.finalized = true
	r.cancelled = cancelled
	r.finishedAt = time.Now()
}

// Finalized reports whether the report is closed.
func (r *RunReport) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finalized
}

// Cancelled reports whether the run was cancelled before every target finished.
func (r *RunReport) Cancelled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cancelled
}

// Elapsed returns the run's wall-clock duration so far.
func (r *RunReport) Elapsed() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.finishedAt.IsZero() {
		return r.finishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Records returns a snapshot in completion order.
func (r *RunReport) Records() []*ScanRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ScanRecord, len(r.records))
	copy(out, r.records)
	return out
}

// SortedRecords returns a snapshot sorted by target name.
func (r *RunReport) SortedRecords() []*ScanRecord {
	out := r.Records()
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Progress returns the completed fraction in [0, 1].
func (r *RunReport) Progress() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Completed()) / float64(r.Total())
}

type reportJSON struct {
	ID         string        `json:"id"`
	Targets    []string      `json:"targets"`
	Options    ScanOptions   `json:"options"`
	Total      int           `json:"total"`
	Completed  int           `json:"completed"`
	Cancelled  bool          `json:"cancelled"`
	Finalized  bool          `json:"finalized"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Elapsed    string        `json:"elapsed"`
	Records    []*ScanRecord `json:"records"`
}

// MarshalJSON renders a consistent snapshot of the report.
func (r *RunReport) MarshalJSON() ([]byte, error) {
	records := r.Records()
	r.mu.RLock()
	out := reportJSON{
		ID:        r.ID,
		Targets:   r.Targets,
		Options:   r.Options,
		Total:     r.Total(),
		Completed: r.Completed(),
		Cancelled: r.cancelled,
		Finalized: r.finalized,
		StartedAt: r.StartedAt,
		Records:   records,
	}
	if !r.finishedAt.IsZero() {
		f := r.finishedAt
		out.FinishedAt = &f
	}
	r.mu.RUnlock()
	out.Elapsed = r.Elapsed().Round(time.Millisecond).String()
	return json.Marshal(out)
}
