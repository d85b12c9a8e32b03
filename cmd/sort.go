package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/formatter"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/repositories"
	"github.com/desertthunder/datesort/internal/shared"
	"github.com/desertthunder/datesort/internal/tasks"
	"github.com/desertthunder/datesort/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sort moves every file under the path argument (default ".") into YYYY/MM buckets.
//
// A missing path fails with [shared.ErrPathNotFound] before anything is locked or recorded.
// Per-file failures are reported but do not fail the command.
func (r *Runner) Sort(ctx context.Context, cmd *cli.Command) error {
	path := pathArg(cmd)

	target, err := tasks.ResolveRoot(path)
	if err != nil {
		return err
	}

	opts, err := r.sortOptions(cmd)
	if err != nil {
		return err
	}

	var format formatter.Format
	if f := cmd.String("format"); f != "" {
		if format, err = formatter.ParseFormat(f); err != nil {
			return err
		}
	}

	if !opts.DryRun {
		lock, err := shared.LockRoot(target.WorkingRoot)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				r.logger.Warn("failed to release root lock", "err", err)
			}
		}()
	}

	record := r.config.Database.Record && !cmd.Bool("no-record")
	ledger := r.beginRun(target, opts, record)
	defer ledger.close()

	logger := r.logger
	if ledger.run != nil {
		logger = shared.WithLogger(logger, "run_id", ledger.run.ID())
	}
	logger.Info("sorting", "root", target.Root, "strategy", opts.Strategy, "dry_run", opts.DryRun)

	var result *tasks.RunResult
	var runErr error
	if cmd.Bool("interactive") {
		if shared.IsTerminal(os.Stdout) {
			result, runErr = r.runInteractive(ctx, opts, target.Root)
		} else {
			logger.Warn("stdout is not a terminal, ignoring --interactive")
			result, runErr = tasks.NewEngine(opts, logger).Run(ctx, target.Root, nil)
		}
	} else {
		result, runErr = tasks.NewEngine(opts, logger).Run(ctx, target.Root, nil)
	}

	ledger.finish(result, runErr)
	if result == nil {
		return runErr
	}

	if reportPath := cmd.String("report"); reportPath != "" {
		written, err := formatter.WriteReport(formatter.FromResult(ledger.id(), result), reportPath, format)
		if err != nil {
			logger.Error("failed to write report", "path", reportPath, "err", err)
		} else {
			logger.Info("report written", "path", written)
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(formatter.FromResult(ledger.id(), result), true); err != nil {
			return err
		}
	} else {
		r.printSummary(result, ledger.id())
	}

	return runErr
}

// pathArg returns the positional path, defaulting to the current directory.
func pathArg(cmd *cli.Command) string {
	if p := cmd.StringArg("path"); p != "" {
		return p
	}
	if p := cmd.Args().First(); p != "" {
		return p
	}
	return "."
}

// sortOptions overlays the sort flags on the [pipeline] config.
func (r *Runner) sortOptions(cmd *cli.Command) (tasks.Options, error) {
	opts := tasks.OptionsFromConfig(r.config)

	if cmd.IsSet("strategy") {
		switch s := strings.ToLower(cmd.String("strategy")); s {
		case shared.StrategyPool, shared.StrategySpawner:
			opts.Strategy = s
		default:
			return opts, fmt.Errorf("%w: --strategy must be %q or %q, got %q",
				shared.ErrInvalidFlag, shared.StrategyPool, shared.StrategySpawner, s)
		}
	}
	if cmd.IsSet("workers") {
		n := cmd.Int("workers")
		if n < 0 {
			return opts, fmt.Errorf("%w: --workers must not be negative", shared.ErrInvalidFlag)
		}
		opts.Workers = shared.PipelineConfig{Workers: n}.WorkerCount()
	}
	if cmd.IsSet("queue") {
		n := cmd.Int("queue")
		if n < 1 {
			return opts, fmt.Errorf("%w: --queue must be at least 1", shared.ErrInvalidFlag)
		}
		opts.QueueCapacity = n
	}
	if cmd.IsSet("max-tasks") {
		n := cmd.Int("max-tasks")
		if n < 1 {
			return opts, fmt.Errorf("%w: --max-tasks must be at least 1", shared.ErrInvalidFlag)
		}
		opts.MaxTasks = n
	}
	if cmd.IsSet("rate") {
		rate := cmd.Float("rate")
		if rate < 0 {
			return opts, fmt.Errorf("%w: --rate must not be negative", shared.ErrInvalidFlag)
		}
		opts.RateLimit = rate
	}
	if cmd.IsSet("eager") {
		opts.Eager = cmd.Bool("eager")
	}
	opts.DryRun = cmd.Bool("dry-run")

	// The config file, ledger and interactive log may live inside the tree being sorted.
	if r.configPath != "" {
		if abs, err := filepath.Abs(r.configPath); err == nil {
			opts.ExcludePaths = append(opts.ExcludePaths, abs)
		}
	}
	if dbPath, err := r.config.DatabasePath(); err == nil {
		opts.ExcludePaths = append(opts.ExcludePaths, dbPath, dbPath+"-journal", dbPath+"-wal", dbPath+"-shm")
	}
	if logPath, err := shared.TUILogPath(); err == nil {
		opts.ExcludePaths = append(opts.ExcludePaths, logPath)
	}
	return opts, nil
}

// runLedger records one run. A nil run means recording is off or failed to start.
type runLedger struct {
	db     *sql.DB
	repo   *repositories.RunRepository
	run    *models.Run
	logger *log.Logger
}

// beginRun opens the ledger and stores a running entry. Ledger problems are logged, never fatal.
func (r *Runner) beginRun(target tasks.Target, opts tasks.Options, record bool) *runLedger {
	l := &runLedger{logger: r.logger}
	if !record {
		return l
	}

	db, err := shared.OpenLedger(r.config)
	if err != nil {
		r.logger.Warn("run ledger unavailable, not recording", "err", err)
		return l
	}

	workers := opts.Workers
	if opts.Strategy == shared.StrategySpawner {
		workers = opts.MaxTasks
	}

	repo := repositories.NewRunRepository(db)
	run := models.NewRun(target.Root, target.WorkingRoot, opts.Strategy, workers, opts.DryRun)
	if err := repo.Create(run); err != nil {
		r.logger.Warn("failed to record run", "err", err)
		db.Close()
		return l
	}

	l.db, l.repo, l.run = db, repo, run
	r.logger.Debug("recording run", "run_id", run.ID(), "sequence", run.Sequence())
	return l
}

func (l *runLedger) id() string {
	if l.run == nil {
		return ""
	}
	return l.run.ID()
}

// finish stores the final counts and every non-success item.
func (l *runLedger) finish(result *tasks.RunResult, runErr error) {
	if l.run == nil {
		return
	}

	status := models.RunFailed
	var summary models.Summary
	if result != nil {
		summary = result.Summary
		if runErr == nil {
			status = result.Status()
		}
	}
	l.run.Finish(summary, status)

	if err := l.repo.Update(l.run); err != nil {
		l.logger.Warn("failed to update run", "run_id", l.run.ID(), "err", err)
		return
	}
	if result == nil {
		return
	}

	failures := models.FailuresFrom(l.run.ID(), result.Results, result.EntryErrors)
	if err := l.repo.AddFailures(l.run.ID(), failures); err != nil {
		l.logger.Warn("failed to record failures", "run_id", l.run.ID(), "count", len(failures), "err", err)
	}
}

func (l *runLedger) close() {
	if l.db != nil {
		l.db.Close()
	}
}

// printSummary writes tables on a terminal and plain lines otherwise.
func (r *Runner) printSummary(result *tasks.RunResult, runID string) {
	s := result.Summary

	if shared.IsTerminal(r.output) {
		r.writePlain("%s\n", ui.SummaryTable(s))
		if buckets := ui.BucketTable(s); buckets != "" {
			r.writePlain("%s\n", buckets)
		}
	} else {
		r.writePlain("Discovered: %d\n", s.Discovered)
		r.writePlain("Moved: %d\n", s.Moved)
		r.writePlain("Skipped: %d\n", s.Skipped)
		r.writePlain("Failed: %d\n", s.Failed)
		for _, name := range s.BucketNames() {
			r.writePlain("  %s: %d\n", name, s.Buckets[name])
		}
	}

	switch {
	case result.Canceled:
		r.writePlainln("Canceled: %d files were left unprocessed", s.Unprocessed)
	case result.DryRun:
		r.writePlainln("Dry run: nothing was moved")
	}
	if s.EntryErrors > 0 {
		r.writePlain("%d entries could not be read\n", s.EntryErrors)
	}
	if runID != "" && (s.Failed > 0 || s.Skipped > 0 || s.EntryErrors > 0) {
		r.writePlain("Run 'datesort show %s' for details\n", shortID(runID))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
