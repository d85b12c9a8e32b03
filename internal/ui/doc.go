// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [RunningView] : A spinner, progress bar, and live outcome counts while files are sorted
//  2. [ResultView] : The summary and bucket tables, then a filterable list of files that were not moved
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the sort engine, which never blocks on a slow terminal.
//
// The table helpers ([RenderTable], [SummaryTable], [HistoryTable]) are shared with the non-interactive commands.
package ui
