package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/datesort/internal/formatter"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/repositories"
	"github.com/desertthunder/datesort/internal/shared"
	"github.com/desertthunder/datesort/internal/ui"
	"github.com/urfave/cli/v3"
)

// runView is the JSON shape of a ledger entry.
type runView struct {
	ID         string           `json:"id"`
	Sequence   int              `json:"sequence"`
	Root       string           `json:"root"`
	Strategy   string           `json:"strategy"`
	Workers    int              `json:"workers"`
	Status     models.RunStatus `json:"status"`
	DryRun     bool             `json:"dry_run"`
	Summary    models.Summary   `json:"summary"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

func newRunView(run *models.Run) runView {
	return runView{
		ID:         run.ID(),
		Sequence:   run.Sequence(),
		Root:       run.Root(),
		Strategy:   run.Strategy(),
		Workers:    run.Workers(),
		Status:     run.Status(),
		DryRun:     run.DryRun(),
		Summary:    run.Summary(),
		StartedAt:  run.StartedAt(),
		FinishedAt: run.FinishedAt(),
	}
}

// openRuns opens the ledger for the history and show commands.
func (r *Runner) openRuns() (*sql.DB, *repositories.RunRepository, error) {
	db, err := shared.OpenLedger(r.config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	return db, repositories.NewRunRepository(db), nil
}

// History lists recorded runs, newest first, or prunes one of them.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openRuns()
	if err != nil {
		return err
	}
	defer db.Close()

	if ref := cmd.String("prune"); ref != "" {
		return r.pruneRun(repo, ref, cmd.Bool("purge"))
	}
	if cmd.Bool("purge") {
		return r.purgeRuns(repo)
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if root := cmd.String("root"); root != "" {
		abs, err := shared.ExpandPath(root)
		if err != nil {
			return fmt.Errorf("%w: %s", shared.ErrInvalidFlag, root)
		}
		criteria["root"] = abs
	}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = status
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if cmd.Bool("json") {
		views := make([]runView, 0, len(runs))
		for _, run := range runs {
			views = append(views, newRunView(run))
		}
		return r.writeJSON(views, true)
	}

	if len(runs) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}
	return r.writePlain("%s\n", ui.HistoryTable(runs))
}

func (r *Runner) pruneRun(repo *repositories.RunRepository, ref string, purge bool) error {
	run, err := repo.Resolve(ref)
	if err != nil {
		return err
	}
	if err := repo.Delete(run.ID()); err != nil {
		return fmt.Errorf("failed to prune run: %w", err)
	}
	r.logger.Info("pruned run", "run_id", run.ID(), "sequence", run.Sequence())

	if purge {
		return r.purgeRuns(repo)
	}
	return r.writePlain("Pruned run #%d (%s)\n", run.Sequence(), shortID(run.ID()))
}

func (r *Runner) purgeRuns(repo *repositories.RunRepository) error {
	n, err := repo.Purge()
	if err != nil {
		return fmt.Errorf("failed to purge runs: %w", err)
	}
	return r.writePlain("Purged %d runs\n", n)
}

// Show prints one recorded run and the items it did not move.
func (r *Runner) Show(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("id")
	if ref == "" {
		ref = cmd.Args().First()
	}
	if ref == "" {
		return fmt.Errorf("%w: run ID or #sequence is required", shared.ErrInvalidArgument)
	}

	db, repo, err := r.openRuns()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := repo.Resolve(ref)
	if err != nil {
		return err
	}
	failures, err := repo.ListFailures(run.ID())
	if err != nil {
		return fmt.Errorf("failed to load failures: %w", err)
	}
	report := formatter.FromRun(run, failures)

	var format formatter.Format
	if f := cmd.String("format"); f != "" {
		if format, err = formatter.ParseFormat(f); err != nil {
			return err
		}
	}

	if out := cmd.String("output"); out != "" {
		written, err := formatter.WriteReport(report, out, format)
		if err != nil {
			return err
		}
		return r.writePlain("Report written to %s\n", written)
	}

	if format != "" {
		data, err := formatter.Export(report, format)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d  %s", run.Sequence(), run.ID()))
	r.writePlain("Root:     %s\n", run.Root())
	r.writePlain("Strategy: %s (%d)\n", run.Strategy(), run.Workers())
	r.writePlain("Status:   %s\n", run.Status())
	r.writePlain("Started:  %s\n", run.StartedAt().Local().Format(time.DateTime))
	if d := run.Duration(); d > 0 {
		r.writePlain("Took:     %s\n", d.Round(time.Millisecond))
	}
	r.writePlain("\n%s\n", ui.SummaryTable(run.Summary()))

	if table := ui.FailuresTable(failures); table != "" {
		r.writePlain("%s\n", table)
	} else {
		r.writePlain("Every file was moved\n")
	}
	return nil
}
