package tasks

import (
	"fmt"

	"github.com/desertthunder/datesort/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Items finished so far
	Total   int    // Items discovered so far
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Traverse Phase = iota
	Relocate
	Complete
)

func (p Phase) String() string {
	switch p {
	case Traverse:
		return "traverse"
	case Relocate:
		return "relocate"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func traversalStartedUpdate(t Target) ProgressUpdate {
	msg := fmt.Sprintf("Scanning %s...", t.Root)
	if t.Single {
		msg = fmt.Sprintf("Sorting single file %s...", t.Root)
	}
	return ProgressUpdate{Phase: Traverse, Message: msg, Data: t}
}

func entrySkippedUpdate(step, total int, e models.EntryError) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Traverse,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Skipped unreadable entry %s", e.Path),
		Data:    e,
	}
}

func relocatedUpdate(step, total int, r models.RelocationResult) ProgressUpdate {
	var msg string
	switch r.Outcome {
	case models.OutcomeSuccess:
		msg = fmt.Sprintf("Moved %s to %s", r.Item.Name(), r.Bucket)
	case models.OutcomeSkippedUndatable:
		msg = fmt.Sprintf("Skipped %s (no usable date)", r.Item.Name())
	case models.OutcomeCanceled:
		msg = fmt.Sprintf("Left %s in place (canceled)", r.Item.Name())
	default:
		msg = fmt.Sprintf("Failed %s: %s", r.Item.Name(), r.Kind)
	}
	return ProgressUpdate{Phase: Relocate, Step: step, Total: total, Message: msg, Data: r}
}

func completeUpdate(s models.Summary) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    s.Discovered,
		Total:   s.Discovered,
		Message: fmt.Sprintf("Done: %d moved, %d skipped, %d failed", s.Moved, s.Skipped, s.Failed),
		Data:    s,
	}
}
