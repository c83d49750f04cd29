package types

import (
	"errors"
	"fmt"
)

var (
	ErrNoTargets       = errors.New("no targets given")
	ErrDuplicateTarget = errors.New("duplicate target")
	ErrHelperBusy      = errors.New("helper process already acquired")
	ErrReportFinalized = errors.New("run report is finalized")
	ErrRecordFinalized = errors.New("scan record is finalized")
)

// ValidationError is returned for bad orchestrator input, before any work starts.
type ValidationError struct {
	Target string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("invalid targets: %v: %s", e.Err, e.Target)
	}
	return fmt.Sprintf("invalid targets: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ResourceError is returned when the helper process cannot be started or stopped.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("helper %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// PersistError is returned by a sink that failed to store a record.
type PersistError struct {
	Target string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Target, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// AdviceError is returned by the advice collaborator.
type AdviceError struct {
	Target string
	Err    error
}

func (e *AdviceError) Error() string {
	return fmt.Sprintf("advice for %s: %v", e.Target, e.Err)
}

func (e *AdviceError) Unwrap() error { return e.Err }
