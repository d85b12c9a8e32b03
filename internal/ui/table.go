package ui

import (
	"strconv"
	"time"

	"github.com/desertthunder/datesort/internal/formatter"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type ColumnAlignment int

const (
	AlignLeft ColumnAlignment = iota
	AlignRight
)

// RenderTable draws rows under headers with rounded borders. Short rows are padded.
func RenderTable(headers []string, rows [][]string, aligns []ColumnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

var summaryHeaders = []string{"Discovered", "Moved", "Skipped", "Failed", "Unprocessed", "Entry errors"}

// SummaryTable renders the counters of a run.
func SummaryTable(s models.Summary) string {
	aligns := make([]ColumnAlignment, len(summaryHeaders))
	for i := range aligns {
		aligns[i] = AlignRight
	}
	return RenderTable(summaryHeaders, [][]string{formatter.SummaryRow(s)}, aligns)
}

// BucketTable renders how many files landed in each bucket.
func BucketTable(s models.Summary) string {
	names := s.BucketNames()
	if len(names) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(s.Buckets[name])})
	}
	return RenderTable([]string{"Bucket", "Files"}, rows, []ColumnAlignment{AlignLeft, AlignRight})
}

// HistoryTable renders ledger entries, one per row.
func HistoryTable(runs []*models.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		s := run.Summary()
		id := run.ID()
		if len(id) > 8 {
			id = id[:8]
		}
		status := string(run.Status())
		if run.DryRun() {
			status += " (dry)"
		}
		rows = append(rows, []string{
			"#" + strconv.Itoa(run.Sequence()),
			id,
			run.StartedAt().Local().Format("2006-01-02 15:04"),
			run.Root(),
			status,
			strconv.Itoa(s.Moved),
			strconv.Itoa(s.Failed + s.Skipped),
			run.Duration().Round(time.Millisecond).String(),
		})
	}

	return RenderTable(
		[]string{"#", "ID", "Started", "Root", "Status", "Moved", "Problems", "Took"},
		rows,
		[]ColumnAlignment{AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignRight},
	)
}

// FailuresTable renders stored non-success items.
func FailuresTable(failures []models.RunFailure) string {
	if len(failures) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		kind := f.Kind.String()
		if kind == "" {
			kind = f.Outcome.String()
		}
		rows = append(rows, []string{f.Path, kind, f.Reason})
	}
	return RenderTable([]string{"Path", "Kind", "Reason"}, rows, nil)
}
