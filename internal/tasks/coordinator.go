package tasks

import (
	"sync"

	"github.com/desertthunder/datesort/internal/models"
)

// coordinator gathers one result per dispatched item and reports progress as they arrive.
type coordinator struct {
	progress   chan<- ProgressUpdate
	discovered func() int

	mu       sync.Mutex
	results  []models.RelocationResult
	finished int
}

func newCoordinator(progress chan<- ProgressUpdate, discovered func() int) *coordinator {
	return &coordinator{progress: progress, discovered: discovered}
}

// collect drains in until it is closed.
func (c *coordinator) collect(in <-chan models.RelocationResult) {
	for res := range in {
		c.mu.Lock()
		c.results = append(c.results, res)
		c.finished++
		step := c.finished
		c.mu.Unlock()

		sendProgress(c.progress, relocatedUpdate(step, c.total(step), res))
	}
}

func (c *coordinator) entrySkipped(e models.EntryError) {
	c.mu.Lock()
	step := c.finished
	c.mu.Unlock()

	sendProgress(c.progress, entrySkippedUpdate(step, c.total(step), e))
}

// total never reports fewer items than have finished.
func (c *coordinator) total(step int) int {
	if c.discovered == nil {
		return step
	}
	if n := c.discovered(); n > step {
		return n
	}
	return step
}
