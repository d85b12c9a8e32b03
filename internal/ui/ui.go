package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/datesort/internal/models"
	"github.com/desertthunder/datesort/internal/tasks"
)

const recentLines = 5

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunningView ViewState = iota
	ResultView
)

// Runner performs one sort, sending progress on the given channel.
//
// It must not close the channel.
type Runner func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)

// tally counts per-item outcomes as they stream in.
type tally struct {
	moved, skipped, failed, canceled int
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	run    Runner
	root   string

	view      ViewState
	width     int
	height    int
	canceling bool

	spinner  spinner.Model
	bar      progress.Model
	help     help.Model
	keys     keyMap
	problems list.Model

	progressChan chan tasks.ProgressUpdate
	done         chan runOutcome
	progress     tasks.ProgressUpdate
	counts       tally
	recent       []string

	result *tasks.RunResult
	err    error
}

// NewModel creates a TUI model that sorts root with run.
func NewModel(ctx context.Context, root string, run Runner) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		run:     run,
		root:    root,
		view:    RunningView,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(48)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Result returns the finished run, if any.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

// Init starts the sort and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if m.view == ResultView {
			m.problems.SetSize(msg.Width-4, m.listHeight())
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == RunningView {
			return m.handleRunningKeys(msg)
		}
		return m.handleResultKeys(msg)

	case spinner.TickMsg:
		if m.view != RunningView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyProgress(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()

		case MsgRunComplete:
			outcome := msg.data.(runOutcome)
			m.result = outcome.result
			m.err = outcome.err
			m.view = ResultView
			m.cancel()
			m.buildProblemList()
			return m, nil
		}
	}

	if m.view == ResultView {
		var cmd tea.Cmd
		m.problems, cmd = m.problems.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RunningView:
		return m.renderRunning()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleRunningKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.quit):
		if !m.canceling {
			m.canceling = true
			m.cancel()
		}
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.problems.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.problems, cmd = m.problems.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	m.problems, cmd = m.problems.Update(msg)
	return m, cmd
}

func (m *Model) applyProgress(u tasks.ProgressUpdate) {
	m.progress = u

	if r, ok := u.Data.(models.RelocationResult); ok {
		switch r.Outcome {
		case models.OutcomeSuccess:
			m.counts.moved++
		case models.OutcomeSkippedUndatable:
			m.counts.skipped++
		case models.OutcomeFailed:
			m.counts.failed++
		case models.OutcomeCanceled:
			m.counts.canceled++
		}
	}

	if u.Message != "" {
		m.recent = append(m.recent, u.Message)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
	}
}

func (m *Model) buildProblemList() {
	var items []list.Item
	if m.result != nil {
		items = problemItems(m.result.Results)
	}

	m.problems = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.problems.Title = fmt.Sprintf("%d files need attention", len(items))
	m.problems.SetShowHelp(false)
	m.problems.SetSize(m.width-4, m.listHeight())
}

func (m *Model) listHeight() int {
	if h := m.height - 20; h > 5 {
		return h
	}
	return 10
}

// startRun launches the engine and returns the command that waits on its first update.
func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan runOutcome, 1)

	go func() {
		result, err := m.run(m.ctx, m.progressChan)
		m.done <- runOutcome{result: result, err: err}
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			outcome := <-done
			return runCompleteMsg(outcome.result, outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) percent() float64 {
	if m.progress.Total <= 0 {
		return 0
	}
	p := float64(m.progress.Step) / float64(m.progress.Total)
	if p > 1 {
		return 1
	}
	return p
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Sorting %s", m.root)))
	b.WriteString("\n")

	status := fmt.Sprintf("%s %s", m.spinner.View(), m.progress.Phase)
	if m.canceling {
		status = styles.warn.Render("Canceling, waiting for in-flight moves...")
	}
	b.WriteString(status + "\n\n")

	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.progress.Step, m.progress.Total))

	b.WriteString(fmt.Sprintf("%s  %s  %s\n\n",
		styles.ok.Render(fmt.Sprintf("%d moved", m.counts.moved)),
		styles.warn.Render(fmt.Sprintf("%d skipped", m.counts.skipped)),
		styles.err.Render(fmt.Sprintf("%d failed", m.counts.failed)),
	))

	for _, line := range m.recent {
		b.WriteString(styles.help.Render(line) + "\n")
	}

	helpKeys := []key.Binding{m.keys.cancel, m.keys.help}
	if m.help.ShowAll {
		b.WriteString("\n" + m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	}
	return b.String()
}

func (m *Model) renderResult() string {
	if m.result == nil {
		msg := "No result available"
		if m.err != nil {
			msg = fmt.Sprintf("Sort failed: %v", m.err)
		}
		return styles.err.Render(msg+"\n\nPress q to quit") + "\n"
	}

	var b strings.Builder
	s := m.result.Summary

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Sort stopped: %v", m.err)))
	case m.result.Canceled:
		b.WriteString(styles.warn.Render(fmt.Sprintf("Canceled, %d files left in place", s.Unprocessed)))
	case m.result.DryRun:
		b.WriteString(styles.ok.Render("✓ Dry run complete, nothing was moved"))
	default:
		b.WriteString(styles.ok.Render(fmt.Sprintf("✓ Sorted %s", m.result.Target.Root)))
	}
	b.WriteString("\n\n")

	b.WriteString(SummaryTable(s) + "\n")
	if buckets := BucketTable(s); buckets != "" {
		b.WriteString(buckets + "\n")
	}

	if len(m.problems.Items()) > 0 {
		b.WriteString("\n" + m.problems.View() + "\n")
	} else {
		b.WriteString("\n" + styles.help.Render("No problems to report") + "\n")
	}

	helpKeys := []key.Binding{m.keys.up, m.keys.down, m.keys.filter, m.keys.quit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}
