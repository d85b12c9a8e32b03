// package formatter provides functions to export run reports to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/datesort/internal/fsx"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/shared"
	"github.com/desertthunder/datesort/internal/tasks"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "txt"
)

// ParseFormat accepts a format name or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "txt", "text", "plain":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, s)
	}
}

// FormatFromPath infers a format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatJSON
	}
	return f
}

// Report is the exportable view of one run.
type Report struct {
	RunID      string         `json:"run_id,omitempty"`
	Root       string         `json:"root"`
	Strategy   string         `json:"strategy"`
	Workers    int            `json:"workers"`
	DryRun     bool           `json:"dry_run"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Summary    models.Summary `json:"summary"`
	Items      []ReportItem   `json:"items"`
}

// ReportItem is the per-file detail of a report.
type ReportItem struct {
	Path        string `json:"path"`
	Outcome     string `json:"outcome"`
	Kind        string `json:"kind,omitempty"`
	Bucket      string `json:"bucket,omitempty"`
	Destination string `json:"destination,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromResult builds a report with every item of a finished engine run.
func FromResult(runID string, res *tasks.RunResult) *Report {
	report := &Report{
		RunID:      runID,
		Root:       res.Target.Root,
		Strategy:   res.Strategy,
		Workers:    res.Workers,
		DryRun:     res.DryRun,
		Status:     string(res.Status()),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Summary:    res.Summary,
		Items:      make([]ReportItem, 0, len(res.Results)+len(res.EntryErrors)),
	}

	for _, r := range res.Results {
		item := ReportItem{
			Path:        r.Item.Path,
			Outcome:     r.Outcome.String(),
			Kind:        r.Kind.String(),
			Destination: r.Destination,
			Reason:      r.Reason(),
		}
		if !r.Bucket.IsZero() {
			item.Bucket = r.Bucket.String()
		}
		report.Items = append(report.Items, item)
	}
	for _, e := range res.EntryErrors {
		report.Items = append(report.Items, ReportItem{
			Path:    e.Path,
			Outcome: models.OutcomeFailed.String(),
			Kind:    models.EntryReadError.String(),
			Reason:  e.Err.Error(),
		})
	}
	return report
}

// FromRun builds a report from a ledger entry. Only non-success items are stored, so
// the report lists failures alone.
func FromRun(run *models.Run, failures []models.RunFailure) *Report {
	report := &Report{
		RunID:     run.ID(),
		Root:      run.Root(),
		Strategy:  run.Strategy(),
		Workers:   run.Workers(),
		DryRun:    run.DryRun(),
		Status:    string(run.Status()),
		StartedAt: run.StartedAt(),
		Summary:   run.Summary(),
		Items:     make([]ReportItem, 0, len(failures)),
	}
	if finished := run.FinishedAt(); finished != nil {
		report.FinishedAt = *finished
	}

	for _, f := range failures {
		report.Items = append(report.Items, ReportItem{
			Path:    f.Path,
			Outcome: f.Outcome.String(),
			Kind:    f.Kind.String(),
			Reason:  f.Reason,
		})
	}
	return report
}

// Export renders report in the given format.
func Export(report *Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(report)
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown:
		return ExportToMarkdown(report)
	case FormatText:
		return ExportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidFlag, format)
	}
}

// ExportToJSON renders the full report as indented JSON
func ExportToJSON(report *Report) ([]byte, error) {
	return shared.MarshalJSON(report, true)
}

// ExportToCSV converts a Report to CSV format with columns: Path, Outcome, Kind, Bucket, Destination, Reason
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Path", "Outcome", "Kind", "Bucket", "Destination", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range report.Items {
		record := []string{
			item.Path,
			item.Outcome,
			item.Kind,
			item.Bucket,
			item.Destination,
			item.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown with a summary table and per-bucket counts
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	s := report.Summary

	buf.WriteString(fmt.Sprintf("# Sort of %s\n\n", report.Root))
	if report.RunID != "" {
		buf.WriteString(fmt.Sprintf("**Run**: `%s`\n", report.RunID))
	}
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("**Strategy**: %s (%d)\n", report.Strategy, report.Workers))
	if report.DryRun {
		buf.WriteString("**Dry run**: yes\n")
	}
	buf.WriteString(fmt.Sprintf("**Duration**: %s\n\n", report.Duration().Round(time.Millisecond)))

	buf.WriteString("## Summary\n\n")
	buf.WriteString("| Discovered | Moved | Skipped | Failed | Unprocessed | Entry errors |\n")
	buf.WriteString("|---:|---:|---:|---:|---:|---:|\n")
	buf.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d |\n\n",
		s.Discovered, s.Moved, s.Skipped, s.Failed, s.Unprocessed, s.EntryErrors))

	if names := s.BucketNames(); len(names) > 0 {
		buf.WriteString("## Buckets\n\n")
		for _, name := range names {
			buf.WriteString(fmt.Sprintf("- `%s`: %d\n", name, s.Buckets[name]))
		}
		buf.WriteString("\n")
	}

	problems := problemItems(report.Items)
	if len(problems) > 0 {
		buf.WriteString("## Problems\n\n")
		for i, item := range problems {
			kind := item.Kind
			if kind == "" {
				kind = item.Outcome
			}
			reasonPart := ""
			if item.Reason != "" {
				reasonPart = fmt.Sprintf(": %s", item.Reason)
			}
			buf.WriteString(fmt.Sprintf("%d. `%s` [%s]%s\n", i+1, item.Path, kind, reasonPart))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	s := report.Summary

	buf.WriteString(fmt.Sprintf("Root: %s\n", report.Root))
	if report.RunID != "" {
		buf.WriteString(fmt.Sprintf("Run: %s\n", report.RunID))
	}
	buf.WriteString(fmt.Sprintf("Status: %s\n", report.Status))
	buf.WriteString(fmt.Sprintf("Discovered: %d\n", s.Discovered))
	buf.WriteString(fmt.Sprintf("Moved: %d\n", s.Moved))
	buf.WriteString(fmt.Sprintf("Skipped: %d\n", s.Skipped))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", s.Failed))
	if s.Unprocessed > 0 {
		buf.WriteString(fmt.Sprintf("Unprocessed: %d\n", s.Unprocessed))
	}
	if s.EntryErrors > 0 {
		buf.WriteString(fmt.Sprintf("Entry errors: %d\n", s.EntryErrors))
	}
	buf.WriteString("\n")

	for i, item := range report.Items {
		line := fmt.Sprintf("%d. %s %s", i+1, item.Outcome, item.Path)
		if item.Destination != "" && item.Destination != item.Path {
			line += " -> " + item.Destination
		}
		if item.Reason != "" {
			line += " (" + item.Reason + ")"
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// WriteReport renders report and writes it atomically to path.
//
// An empty format is inferred from the file extension.
func WriteReport(report *Report, path string, format Format) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: report path is empty", shared.ErrInvalidArgument)
	}
	if format == "" {
		format = FormatFromPath(path)
	}

	data, err := Export(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s report: %w", format, err)
	}

	if err := fsx.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

// SummaryRow flattens a summary into display columns.
func SummaryRow(s models.Summary) []string {
	return []string{
		strconv.Itoa(s.Discovered),
		strconv.Itoa(s.Moved),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Unprocessed),
		strconv.Itoa(s.EntryErrors),
	}
}

func problemItems(items []ReportItem) []ReportItem {
	var out []ReportItem
	for _, item := range items {
		if item.Outcome != models.OutcomeSuccess.String() {
			out = append(out, item)
		}
	}
	return out
}
