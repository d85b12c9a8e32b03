package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/shared"
)

const runColumns = `id, sequence, root, working_root, strategy, workers, status,
	discovered, moved, skipped, failed, unprocessed, entry_errors,
	dry_run, started_at, finished_at, created_at, deleted_at`

// RunRepository implements models.Repository[*models.Run] for the run ledger.
//
// Failures recorded for a run are removed with it when the row is hard deleted.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	s := run.Summary()
	query := `
		INSERT INTO runs (
			id, sequence, root, working_root, strategy, workers, status,
			discovered, moved, skipped, failed, unprocessed, entry_errors,
			dry_run, started_at, finished_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.Root(),
		run.WorkingRoot(),
		run.Strategy(),
		run.Workers(),
		string(run.Status()),
		s.Discovered,
		s.Moved,
		s.Skipped,
		s.Failed,
		s.Unprocessed,
		s.EntryErrors,
		run.DryRun(),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// Resolve finds a run by sequence number, full ID, or unique ID prefix.
func (r *RunRepository) Resolve(ref string) (*models.Run, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return nil, fmt.Errorf("%w: empty run reference", shared.ErrInvalidArgument)
	}

	if seq, err := strconv.Atoi(ref); err == nil {
		query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ? AND deleted_at IS NULL`
		if run, err := r.scanOne(r.db.QueryRow(query, seq)); err == nil {
			return run, nil
		} else if !errors.Is(err, shared.ErrRunNotFound) {
			return nil, err
		}
	}

	query := `SELECT ` + runColumns + ` FROM runs WHERE id LIKE ? AND deleted_at IS NULL LIMIT 2`
	runs, err := r.query(query, ref+"%")
	if err != nil {
		return nil, err
	}

	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, ref)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matches more than one run", shared.ErrInvalidArgument, ref)
	}
}

// Update writes the status, counters, and finish time of an existing run
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	s := run.Summary()
	query := `
		UPDATE runs
		SET status = ?, discovered = ?, moved = ?, skipped = ?, failed = ?,
			unprocessed = ?, entry_errors = ?, finished_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		s.Discovered,
		s.Moved,
		s.Skipped,
		s.Failed,
		s.Unprocessed,
		s.EntryErrors,
		run.FinishedAt(),
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return expectRow(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return expectRow(result, id)
}

// Purge hard-deletes soft-deleted runs along with their failures.
func (r *RunRepository) Purge() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM runs WHERE deleted_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "root" (string), "status" (models.RunStatus or string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	if root, ok := criteria["root"].(string); ok && root != "" {
		query += " AND (root = ? OR working_root = ?)"
		args = append(args, root, root)
	}

	switch status := criteria["status"].(type) {
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// AddFailures stores the non-success outcomes of a run in one transaction.
func (r *RunRepository) AddFailures(runID string, failures []models.RunFailure) error {
	if len(failures) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_failures (run_id, path, outcome, kind, reason)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range failures {
		if _, err := stmt.Exec(runID, f.Path, f.Outcome.String(), f.Kind.String(), f.Reason); err != nil {
			return fmt.Errorf("failed to insert failure for %s: %w", f.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit failures: %w", err)
	}
	return nil
}

// ListFailures returns the stored failures of a run in insertion order.
func (r *RunRepository) ListFailures(runID string) ([]models.RunFailure, error) {
	rows, err := r.db.Query(`
		SELECT run_id, path, outcome, kind, COALESCE(reason, '')
		FROM run_failures
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures: %w", err)
	}
	defer rows.Close()

	var failures []models.RunFailure
	for rows.Next() {
		var (
			f       models.RunFailure
			outcome string
			kind    string
		)
		if err := rows.Scan(&f.RunID, &f.Path, &outcome, &kind, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan failure: %w", err)
		}
		f.Outcome = models.ParseOutcome(outcome)
		f.Kind = models.ParseFailureKind(kind)
		failures = append(failures, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return failures, nil
}

func (r *RunRepository) query(query string, args ...any) ([]*models.Run, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single row into a [models.Run]
func (r *RunRepository) scanOne(row *sql.Row) (*models.Run, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	return run, err
}

// scanRow scans a row from [sql.Rows] into a [models.Run]
func (r *RunRepository) scanRow(rows *sql.Rows) (*models.Run, error) {
	return scanRun(rows)
}

func scanRun(s scanner) (*models.Run, error) {
	var (
		id          string
		sequence    int
		root        string
		workingRoot string
		strategy    string
		workers     int
		status      string
		summary     models.Summary
		dryRun      bool
		startedAt   time.Time
		finishedAt  sql.NullTime
		createdAt   time.Time
		deletedAt   sql.NullTime
	)

	err := s.Scan(
		&id, &sequence, &root, &workingRoot, &strategy, &workers, &status,
		&summary.Discovered, &summary.Moved, &summary.Skipped, &summary.Failed,
		&summary.Unprocessed, &summary.EntryErrors,
		&dryRun, &startedAt, &finishedAt, &createdAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	var finished, deleted *time.Time
	if finishedAt.Valid {
		finished = &finishedAt.Time
	}
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreRun(
		id, sequence, root, workingRoot, strategy, workers,
		models.RunStatus(status), summary, dryRun,
		startedAt, finished, createdAt, deleted,
	), nil
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}
