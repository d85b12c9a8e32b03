package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/shared"
)

// Job is one unit of work handed to an [Executor].
type Job func()

// Executor runs submitted jobs concurrently.
//
// Submit may block while the executor is at capacity and returns ctx.Err()
// if ctx ends first. Shutdown stops admission and blocks until every
// accepted job has returned; calling Submit afterwards is a sequencing bug
// and fails with [shared.ErrSubmitAfterShutdown].
type Executor interface {
	Submit(ctx context.Context, job Job) error
	Shutdown() error
}

// ExecutorStats is implemented by executors that count recovered panics.
type ExecutorStats interface {
	Completed() int64
	Panics() int64
}

// NewExecutor builds the executor for strategy.
func NewExecutor(strategy string, workers, maxTasks int, logger *log.Logger) (Executor, error) {
	switch strategy {
	case shared.StrategyPool, "":
		return NewWorkerPool(workers, logger), nil
	case shared.StrategySpawner:
		return NewTaskSpawner(maxTasks, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", shared.ErrInvalidArgument, strategy)
	}
}
