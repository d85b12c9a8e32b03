package tasks

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/shared"
)

// PoolState is the lifecycle state of a [WorkerPool].
type PoolState int32

const (
	PoolIdle PoolState = iota
	PoolRunning
	PoolShuttingDown
	PoolTerminated
)

func (s PoolState) String() string {
	switch s {
	case PoolIdle:
		return "idle"
	case PoolRunning:
		return "running"
	case PoolShuttingDown:
		return "shutting_down"
	case PoolTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WorkerPool runs jobs on a fixed set of long-lived workers pulling from a shared queue.
//
// The queue is unbuffered, so Submit blocks until a worker is free. A job that
// panics is recovered and logged; its worker keeps pulling jobs and is not respawned.
type WorkerPool struct {
	size   int
	queue  chan Job
	logger *log.Logger

	mu    sync.RWMutex // guards queue closure against in-flight Submit calls
	state atomic.Int32
	once  sync.Once
	wg    sync.WaitGroup

	completed atomic.Int64
	panics    atomic.Int64
}

// NewWorkerPool starts size workers. A size below 1 uses the logical CPU count.
func NewWorkerPool(size int, logger *log.Logger) *WorkerPool {
	if size < 1 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	p := &WorkerPool{
		size:   size,
		queue:  make(chan Job),
		logger: logger,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	p.state.Store(int32(PoolRunning))
	return p
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// State returns the current lifecycle state.
func (p *WorkerPool) State() PoolState { return PoolState(p.state.Load()) }

// Completed returns how many jobs have finished, including ones that panicked.
func (p *WorkerPool) Completed() int64 { return p.completed.Load() }

// Panics returns how many jobs panicked.
func (p *WorkerPool) Panics() int64 { return p.panics.Load() }

// Submit hands job to the next free worker.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch state := p.State(); state {
	case PoolRunning:
	case PoolIdle:
		return shared.ErrPoolNotRunning
	default:
		return fmt.Errorf("%w: pool is %s", shared.ErrSubmitAfterShutdown, state)
	}

	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for every accepted job to finish.
// Only the first call does work; later calls wait for it and return nil.
func (p *WorkerPool) Shutdown() error {
	p.once.Do(func() {
		p.mu.Lock()
		if p.State() == PoolIdle {
			p.state.Store(int32(PoolTerminated))
			p.mu.Unlock()
			return
		}
		p.state.Store(int32(PoolShuttingDown))
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		p.state.Store(int32(PoolTerminated))
		p.logger.Debug("worker pool terminated", "workers", p.size, "completed", p.Completed(), "panics", p.Panics())
	})
	return nil
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.queue {
		p.run(id, job)
	}
}

func (p *WorkerPool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			p.logger.Error("job panicked", "worker", id, "panic", r, "stack", string(debug.Stack()))
		}
		p.completed.Add(1)
	}()
	job()
}
