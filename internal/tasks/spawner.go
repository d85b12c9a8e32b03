package tasks

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/shared"
	"golang.org/x/sync/semaphore"
)

// TaskSpawner runs every job in its own goroutine, admitting at most limit at a time.
//
// Errors inside a task never cancel its siblings; a panic is recovered and logged.
type TaskSpawner struct {
	limit  int64
	sem    *semaphore.Weighted
	logger *log.Logger

	mu     sync.RWMutex // orders wg.Add against Shutdown's wg.Wait
	closed bool
	wg     sync.WaitGroup

	running   atomic.Int64
	peak      atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

// NewTaskSpawner returns a spawner admitting at most limit concurrent tasks. A limit below 1 is raised to 1.
func NewTaskSpawner(limit int, logger *log.Logger) *TaskSpawner {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &TaskSpawner{
		limit:  int64(limit),
		sem:    semaphore.NewWeighted(int64(limit)),
		logger: logger,
	}
}

// Limit returns the admission cap.
func (s *TaskSpawner) Limit() int { return int(s.limit) }

// Peak returns the highest number of tasks observed running at once.
func (s *TaskSpawner) Peak() int64 { return s.peak.Load() }

// Completed returns how many tasks have finished, including ones that panicked.
func (s *TaskSpawner) Completed() int64 { return s.completed.Load() }

// Panics returns how many tasks panicked.
func (s *TaskSpawner) Panics() int64 { return s.panics.Load() }

// Submit waits for a free slot and starts job in a new goroutine.
func (s *TaskSpawner) Submit(ctx context.Context, job Job) error {
	if s.isClosed() {
		return shared.ErrSubmitAfterShutdown
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.sem.Release(1)
		return shared.ErrSubmitAfterShutdown
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	go s.run(job)
	return nil
}

// Shutdown stops admission and joins every spawned task.
func (s *TaskSpawner) Shutdown() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *TaskSpawner) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *TaskSpawner) run(job Job) {
	n := s.running.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
		s.running.Add(-1)
		s.completed.Add(1)
		s.sem.Release(1)
		s.wg.Done()
	}()
	job()
}
