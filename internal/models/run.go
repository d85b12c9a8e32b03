package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCanceled  RunStatus = "canceled"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded sort invocation.
type Run struct {
	id          string
	sequence    int
	root        string
	workingRoot string
	strategy    string
	workers     int
	status      RunStatus
	summary     Summary
	dryRun      bool
	startedAt   time.Time
	finishedAt  *time.Time
	createdAt   time.Time
	deletedAt   *time.Time
}

// NewRun creates a running [Run] for root. The ID and sequence are assigned by the repository.
func NewRun(root, workingRoot, strategy string, workers int, dryRun bool) *Run {
	now := time.Now().UTC()
	return &Run{
		root:        root,
		workingRoot: workingRoot,
		strategy:    strategy,
		workers:     workers,
		status:      RunRunning,
		dryRun:      dryRun,
		startedAt:   now,
		createdAt:   now,
	}
}

// RestoreRun rebuilds a [Run] from stored columns.
func RestoreRun(
	id string, sequence int, root, workingRoot, strategy string, workers int,
	status RunStatus, summary Summary, dryRun bool,
	startedAt time.Time, finishedAt *time.Time, createdAt time.Time, deletedAt *time.Time,
) *Run {
	return &Run{
		id:          id,
		sequence:    sequence,
		root:        root,
		workingRoot: workingRoot,
		strategy:    strategy,
		workers:     workers,
		status:      status,
		summary:     summary,
		dryRun:      dryRun,
		startedAt:   startedAt,
		finishedAt:  finishedAt,
		createdAt:   createdAt,
		deletedAt:   deletedAt,
	}
}

func (r *Run) ID() string             { return r.id }
func (r *Run) Sequence() int          { return r.sequence }
func (r *Run) Root() string           { return r.root }
func (r *Run) WorkingRoot() string    { return r.workingRoot }
func (r *Run) Strategy() string       { return r.strategy }
func (r *Run) Workers() int           { return r.workers }
func (r *Run) Status() RunStatus      { return r.status }
func (r *Run) Summary() Summary       { return r.summary }
func (r *Run) DryRun() bool           { return r.dryRun }
func (r *Run) StartedAt() time.Time   { return r.startedAt }
func (r *Run) FinishedAt() *time.Time { return r.finishedAt }
func (r *Run) CreatedAt() time.Time   { return r.createdAt }
func (r *Run) DeletedAt() *time.Time  { return r.deletedAt }

func (r *Run) SetID(id string)        { r.id = id }
func (r *Run) SetSequence(seq int)    { r.sequence = seq }
func (r *Run) SetSummary(s Summary)   { r.summary = s }
func (r *Run) SetStatus(st RunStatus) { r.status = st }

// Finish records the final summary and status.
func (r *Run) Finish(s Summary, status RunStatus) {
	now := time.Now().UTC()
	r.summary = s
	r.status = status
	r.finishedAt = &now
}

// Duration returns the elapsed time, or zero while running.
func (r *Run) Duration() time.Duration {
	if r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

// Validate checks required fields.
func (r *Run) Validate() error {
	if r.id == "" {
		return fmt.Errorf("run id is required")
	}
	if r.root == "" {
		return fmt.Errorf("run root is required")
	}
	if r.workingRoot == "" {
		return fmt.Errorf("run working root is required")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunCanceled, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	return nil
}

// RunFailure is a non-success item outcome stored with its run.
type RunFailure struct {
	RunID   string      `json:"run_id"`
	Path    string      `json:"path"`
	Outcome Outcome     `json:"outcome"`
	Kind    FailureKind `json:"kind"`
	Reason  string      `json:"reason"`
}

// FailuresFrom collects the non-success results and entry errors of a run.
func FailuresFrom(runID string, results []RelocationResult, entryErrors []EntryError) []RunFailure {
	var out []RunFailure
	for _, r := range results {
		if r.Outcome == OutcomeSuccess {
			continue
		}
		out = append(out, RunFailure{RunID: runID, Path: r.Item.Path, Outcome: r.Outcome, Kind: r.Kind, Reason: r.Reason()})
	}
	for _, e := range entryErrors {
		out = append(out, RunFailure{RunID: runID, Path: e.Path, Outcome: OutcomeFailed, Kind: EntryReadError, Reason: e.Err.Error()})
	}
	return out
}
