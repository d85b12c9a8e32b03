package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/fsx"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/shared"
	"golang.org/x/time/rate"
)

// RelocatorOpts configures a [Relocator].
type RelocatorOpts struct {
	RateLimit float64 // Relocations per second, 0 for unlimited
	DryRun    bool    // Compute destinations without touching the filesystem
	Logger    *log.Logger
}

// Relocator moves one file into the year/month bucket of its modification time.
//
// It holds no per-file state and is safe for concurrent use.
type Relocator struct {
	limiter *rate.Limiter
	dryRun  bool
	logger  *log.Logger

	stat     func(string) (os.FileInfo, error)
	ensure   func(string) error
	rename   func(string, string) error
	clockNow func() time.Time
}

// NewRelocator creates a Relocator.
func NewRelocator(opts RelocatorOpts) *Relocator {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	r := &Relocator{
		dryRun:   opts.DryRun,
		logger:   opts.Logger,
		stat:     os.Stat,
		ensure:   fsx.EnsureDir,
		rename:   fsx.Rename,
		clockNow: time.Now,
	}
	if opts.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return r
}

// Relocate moves item to workingRoot/YYYY/MM/<name> and reports what happened.
//
// It never panics on I/O failure. A failed rename leaves the source where it was.
func (r *Relocator) Relocate(ctx context.Context, item models.WorkItem, workingRoot string) models.RelocationResult {
	return r.RelocateClaimed(ctx, item, workingRoot, nil)
}

// RelocateClaimed is [Relocator.Relocate] that claims the destination in claims before renaming
// and releases it again if the rename fails.
func (r *Relocator) RelocateClaimed(ctx context.Context, item models.WorkItem, workingRoot string, claims *Claims) models.RelocationResult {
	start := r.clockNow()
	res := r.relocate(ctx, item, workingRoot, claims)
	res.Elapsed = r.clockNow().Sub(start)
	return res
}

func (r *Relocator) relocate(ctx context.Context, item models.WorkItem, workingRoot string, claims *Claims) models.RelocationResult {
	name := item.Name()
	r.logger.Infof("Moving file: %s", name)

	fi, err := r.stat(item.Path)
	if err != nil {
		r.logger.Error("Error getting file metadata", "path", item.Path, "err", err)
		return models.Failed(item, models.MetadataError, models.Bucket{}, err)
	}

	bucket, ok := models.BucketFor(fi.ModTime())
	if !ok {
		err := fmt.Errorf("modification time %s has no four digit year", fi.ModTime().UTC().Format(time.RFC3339))
		r.logger.Warn("Error parsing date for file", "path", item.Path, "err", err)
		return models.Skipped(item, err)
	}

	dir := bucket.Dir(workingRoot)
	dest := filepath.Join(dir, name)

	if fsx.SamePath(item.Path, dest) {
		r.logger.Debug("already in bucket", "path", item.Path)
		return models.Succeeded(item, bucket, dest)
	}

	if r.dryRun {
		r.logger.Info("would move", "from", item.Path, "to", dest)
		return models.Succeeded(item, bucket, dest)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return models.Failed(item, models.RenameError, bucket, fmt.Errorf("rate limiter: %w", err))
		}
	}

	if err := r.ensure(dir); err != nil {
		r.logger.Error("Error creating directory", "dir", dir, "err", err)
		return models.Failed(item, models.DirectoryCreationError, bucket, err)
	}

	claims.Claim(dest)
	if err := r.rename(item.Path, dest); err != nil {
		claims.Release(dest)
		if fsx.IsCrossDevice(err) {
			r.logger.Error("Error moving file across filesystems", "path", item.Path, "err", err)
		} else {
			r.logger.Error("Error moving file", "path", item.Path, "err", err)
		}
		return models.Failed(item, models.RenameError, bucket, err)
	}

	return models.Succeeded(item, bucket, dest)
}
