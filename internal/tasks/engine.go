package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/shared"
)

// Options configures an [Engine] run.
type Options struct {
	Strategy      string   // shared.StrategyPool or shared.StrategySpawner
	Workers       int      // Pool size, below 1 uses the CPU count
	QueueCapacity int      // Dispatch channel capacity
	MaxTasks      int      // Spawner admission cap
	RateLimit     float64  // Relocations per second, 0 for unlimited
	Eager         bool     // Finish traversal before dispatching
	DryRun        bool     // Report destinations without moving anything
	SkipSorted    bool     // Do not descend into existing <root>/YYYY/MM buckets
	ExcludeDirs   []string // Directory names never descended into
	ExcludePaths  []string // Files never emitted
}

// OptionsFromConfig maps the pipeline section of cfg onto [Options].
func OptionsFromConfig(cfg *shared.Config) Options {
	p := cfg.Pipeline
	return Options{
		Strategy:      p.Strategy,
		Workers:       p.WorkerCount(),
		QueueCapacity: p.QueueCapacity,
		MaxTasks:      p.MaxTasks,
		RateLimit:     p.RateLimit,
		Eager:         p.Eager,
		SkipSorted:    p.SkipSorted,
		ExcludeDirs:   p.ExcludeDirs,
	}
}

// RunResult contains everything observed during one run.
type RunResult struct {
	Target      Target                    `json:"target"`
	Strategy    string                    `json:"strategy"`
	Workers     int                       `json:"workers"`
	DryRun      bool                      `json:"dry_run"`
	Results     []models.RelocationResult `json:"results"`
	EntryErrors []models.EntryError       `json:"entry_errors,omitempty"`
	Summary     models.Summary            `json:"summary"`
	Canceled    bool                      `json:"canceled"`
	Panics      int64                     `json:"panics"`
	StartedAt   time.Time                 `json:"started_at"`
	FinishedAt  time.Time                 `json:"finished_at"`
}

// Status maps the result onto a ledger status.
func (r *RunResult) Status() models.RunStatus {
	if r.Canceled {
		return models.RunCanceled
	}
	return models.RunCompleted
}

// Engine runs the traverse, dispatch, relocate pipeline.
type Engine struct {
	opts        Options
	logger      *log.Logger
	relocator   *Relocator
	newExecutor func() (Executor, error)
}

// NewEngine creates an Engine. Zero capacities fall back to sane defaults.
func NewEngine(opts Options, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = 64
	}
	if opts.MaxTasks < 1 {
		opts.MaxTasks = 256
	}
	if opts.Strategy == "" {
		opts.Strategy = shared.StrategyPool
	}

	e := &Engine{
		opts:      opts,
		logger:    logger,
		relocator: NewRelocator(RelocatorOpts{RateLimit: opts.RateLimit, DryRun: opts.DryRun, Logger: logger}),
	}
	e.newExecutor = func() (Executor, error) {
		return NewExecutor(e.opts.Strategy, e.opts.Workers, e.opts.MaxTasks, e.logger)
	}
	return e
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// NewDispatchChannel returns the bounded channel between traversal and execution.
func NewDispatchChannel(capacity int) chan models.WorkItem {
	if capacity < 1 {
		capacity = 1
	}
	return make(chan models.WorkItem, capacity)
}

// Run sorts every regular file under root into year/month buckets.
//
// Progress updates are sent without blocking; progress may be nil. A missing
// root fails with [shared.ErrPathNotFound] before anything is touched. When ctx
// is canceled, traversal stops, jobs already handed to the executor finish,
// and items still queued are reported as canceled.
func (e *Engine) Run(ctx context.Context, root string, progress chan<- ProgressUpdate) (*RunResult, error) {
	target, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	exec, err := e.newExecutor()
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Target:    target,
		Strategy:  e.opts.Strategy,
		Workers:   e.opts.Workers,
		DryRun:    e.opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	if e.opts.Strategy == shared.StrategySpawner {
		result.Workers = e.opts.MaxTasks
	}

	logger := shared.WithLogger(e.logger, "root", target.WorkingRoot)
	sendProgress(progress, traversalStartedUpdate(target))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	claims := &Claims{}
	var traverser *Traverser
	coord := newCoordinator(progress, func() int { return int(traverser.Emitted()) })
	traverser = NewTraverser(TraverserOpts{
		SkipSorted:   e.opts.SkipSorted,
		Claims:       claims,
		ExcludeDirs:  e.opts.ExcludeDirs,
		ExcludePaths: e.opts.ExcludePaths,
		Logger:       logger,
		OnSkip:       coord.entrySkipped,
	})

	items := NewDispatchChannel(e.opts.QueueCapacity)
	results := make(chan models.RelocationResult, e.opts.QueueCapacity)

	collected := make(chan struct{})
	go func() {
		defer close(collected)
		coord.collect(results)
	}()

	var producers sync.WaitGroup
	var walkErr error
	producers.Add(1)
	go func() {
		defer producers.Done()
		walkErr = e.produce(runCtx, traverser, target, items)
	}()
	go func() {
		producers.Wait()
		close(items)
	}()

	// Jobs must not see cancellation so a rename is never abandoned halfway.
	jobCtx := context.WithoutCancel(ctx)

	var fatal error
	for item := range items {
		if fatal != nil || runCtx.Err() != nil {
			results <- models.Canceled(item)
			continue
		}

		job := e.job(jobCtx, item, target.WorkingRoot, claims, results)
		if err := exec.Submit(runCtx, job); err != nil {
			results <- models.Canceled(item)
			if errors.Is(err, shared.ErrSubmitAfterShutdown) || errors.Is(err, shared.ErrPoolNotRunning) {
				fatal = err
				cancel()
			}
		}
	}

	if err := exec.Shutdown(); err != nil {
		logger.Error("executor shutdown failed", "err", err)
	}
	close(results)
	<-collected

	if stats, ok := exec.(ExecutorStats); ok {
		result.Panics = stats.Panics()
	}

	result.Results = coord.results
	models.SortResults(result.Results)
	result.EntryErrors = traverser.Skipped()
	result.Summary = models.Summarize(result.Results, result.EntryErrors)
	result.Canceled = ctx.Err() != nil
	result.FinishedAt = time.Now().UTC()

	if fatal != nil {
		return result, fmt.Errorf("dispatch aborted: %w", fatal)
	}
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) && !errors.Is(walkErr, context.DeadlineExceeded) {
		return result, fmt.Errorf("traversal failed: %w", walkErr)
	}

	if result.Canceled {
		logger.Warn("run canceled", "unprocessed", result.Summary.Unprocessed)
	}
	if result.Panics > 0 {
		logger.Error("jobs panicked during run", "count", result.Panics)
	}
	sendProgress(progress, completeUpdate(result.Summary))
	return result, nil
}

// produce feeds items, either streaming or after a full collection pass.
func (e *Engine) produce(ctx context.Context, t *Traverser, target Target, items chan<- models.WorkItem) error {
	if !e.opts.Eager {
		return t.Walk(ctx, target, items)
	}

	collected, err := t.Collect(ctx, target)
	if err != nil {
		return err
	}
	e.logger.Debug("collected work items", "count", len(collected))

	for _, item := range collected {
		select {
		case items <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// job wraps one relocation so that exactly one result is reported even if it panics.
func (e *Engine) job(ctx context.Context, item models.WorkItem, workingRoot string, claims *Claims, results chan<- models.RelocationResult) Job {
	return func() {
		reported := false
		defer func() {
			if !reported {
				results <- models.Failed(item, models.InternalError, models.Bucket{}, fmt.Errorf("relocation of %s did not complete", item.Path))
			}
		}()

		res := e.relocator.RelocateClaimed(ctx, item, workingRoot, claims)
		results <- res
		reported = true
	}
}
