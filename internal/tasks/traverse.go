package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/shared"
)

// Target is a resolved invocation path.
type Target struct {
	Root        string // Absolute path that was asked for
	WorkingRoot string // Directory buckets are created under
	Single      bool   // Root is a regular file
}

// ResolveRoot turns a user supplied path into a [Target].
//
// A missing path fails with [shared.ErrPathNotFound]. For a directory the
// working root is the directory itself; for a regular file it is the file's parent.
func ResolveRoot(path string) (Target, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s: %v", shared.ErrInvalidArgument, path, err)
	}

	fi, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return Target{}, fmt.Errorf("%w: %s", shared.ErrPathNotFound, path)
	}
	if err != nil {
		return Target{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	switch {
	case fi.IsDir():
		return Target{Root: abs, WorkingRoot: abs}, nil
	case fi.Mode().IsRegular():
		return Target{Root: abs, WorkingRoot: filepath.Dir(abs), Single: true}, nil
	default:
		return Target{}, fmt.Errorf("%w: %s is not a regular file or directory", shared.ErrInvalidArgument, path)
	}
}

// TraverserOpts configures which entries a [Traverser] skips.
type TraverserOpts struct {
	SkipSorted   bool     // Skip <working root>/YYYY/MM directories
	Claims       *Claims  // Destinations taken during this run, never emitted
	ExcludeDirs  []string // Directory names never descended into
	ExcludePaths []string // Absolute file paths never emitted
	Logger       *log.Logger
	OnSkip       func(models.EntryError) // Called for every unreadable entry
}

// Traverser enumerates regular files under a root with an explicit stack of pending directories.
//
// Unreadable entries are recorded and skipped; the walk continues with their siblings.
// Symbolic links to regular files are emitted. Symbolic links to directories are not followed.
type Traverser struct {
	opts         TraverserOpts
	excludeDirs  map[string]struct{}
	excludePaths map[string]struct{}
	logger       *log.Logger

	emitted atomic.Int64
	mu      sync.Mutex
	skipped []models.EntryError
}

// NewTraverser creates a Traverser.
func NewTraverser(opts TraverserOpts) *Traverser {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	t := &Traverser{
		opts:         opts,
		excludeDirs:  make(map[string]struct{}, len(opts.ExcludeDirs)),
		excludePaths: make(map[string]struct{}, len(opts.ExcludePaths)),
		logger:       opts.Logger,
	}
	for _, name := range opts.ExcludeDirs {
		t.excludeDirs[name] = struct{}{}
	}
	for _, p := range opts.ExcludePaths {
		t.excludePaths[filepath.Clean(p)] = struct{}{}
	}
	return t
}

// Emitted returns how many work items have been handed off so far.
func (t *Traverser) Emitted() int64 { return t.emitted.Load() }

// Skipped returns the entries that could not be read.
func (t *Traverser) Skipped() []models.EntryError {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.EntryError(nil), t.skipped...)
}

// Walk sends one [models.WorkItem] per regular file under target into out.
//
// It blocks while out is full and stops early with ctx.Err() when ctx ends.
// Walk never closes out; the caller closes it once every producer has returned.
func (t *Traverser) Walk(ctx context.Context, target Target, out chan<- models.WorkItem) error {
	return t.walk(ctx, target, func(item models.WorkItem) error {
		select {
		case out <- item:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Collect walks target completely and returns every work item before any is dispatched.
func (t *Traverser) Collect(ctx context.Context, target Target) ([]models.WorkItem, error) {
	var items []models.WorkItem
	err := t.walk(ctx, target, func(item models.WorkItem) error {
		items = append(items, item)
		return ctx.Err()
	})
	return items, err
}

func (t *Traverser) walk(ctx context.Context, target Target, emit func(models.WorkItem) error) error {
	if target.Single {
		return t.emit(emit, target.Root)
	}

	stack := []string{target.Root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// ReadDir returns the entries it managed to read alongside the error.
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.skip(dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			switch {
			case entry.IsDir():
				if t.excluded(target, dir, entry.Name()) {
					t.logger.Debug("skipping directory", "path", path)
					continue
				}
				stack = append(stack, path)

			case entry.Type().IsRegular():
				if err := t.emit(emit, path); err != nil {
					return err
				}

			case entry.Type()&fs.ModeSymlink != 0:
				fi, err := os.Stat(path)
				if err != nil {
					t.skip(path, err)
					continue
				}
				if !fi.Mode().IsRegular() {
					t.logger.Debug("not following symlink", "path", path)
					continue
				}
				if err := t.emit(emit, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *Traverser) emit(emit func(models.WorkItem) error, path string) error {
	if _, ok := t.excludePaths[path]; ok {
		return nil
	}
	if t.opts.Claims.Has(path) {
		t.logger.Debug("skipping file moved during this run", "path", path)
		return nil
	}
	if err := emit(models.WorkItem{Path: path}); err != nil {
		return err
	}
	t.emitted.Add(1)
	return nil
}

func (t *Traverser) excluded(target Target, parent, name string) bool {
	if _, ok := t.excludeDirs[name]; ok {
		return true
	}
	if !t.opts.SkipSorted {
		return false
	}
	return filepath.Dir(parent) == target.WorkingRoot && isYearDir(filepath.Base(parent)) && isMonthDir(name)
}

func (t *Traverser) skip(path string, err error) {
	e := models.EntryError{Path: path, Err: err}
	t.logger.Warn("skipping unreadable entry", "path", path, "err", err)

	t.mu.Lock()
	t.skipped = append(t.skipped, e)
	t.mu.Unlock()

	if t.opts.OnSkip != nil {
		t.opts.OnSkip(e)
	}
}

func isYearDir(name string) bool {
	return len(name) == 4 && isDigits(name)
}

func isMonthDir(name string) bool {
	return len(name) == 2 && isDigits(name) && name >= "01" && name <= "12"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Claims records destination paths a run is moving files into.
//
// The walk and the relocations overlap, so a file moved into a bucket the walker
// has not read yet would otherwise be discovered a second time. A nil *Claims is empty.
type Claims struct {
	paths sync.Map
}

// Claim marks path as a destination of this run.
func (c *Claims) Claim(path string) {
	if c != nil {
		c.paths.Store(filepath.Clean(path), struct{}{})
	}
}

// Release forgets path, e.g. after the move into it failed.
func (c *Claims) Release(path string) {
	if c != nil {
		c.paths.Delete(filepath.Clean(path))
	}
}

// Has reports whether path was claimed.
func (c *Claims) Has(path string) bool {
	if c == nil {
		return false
	}
	_, ok := c.paths.Load(filepath.Clean(path))
	return ok
}
