package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/datesort/internal/shared"
	"github.com/desertthunder/datesort/internal/tasks"
	"github.com/desertthunder/datesort/internal/ui"
)

// runInteractive runs the engine behind the live progress UI.
func (r *Runner) runInteractive(ctx context.Context, opts tasks.Options, root string) (*tasks.RunResult, error) {
	logPath, err := shared.TUILogPath()
	if err != nil {
		return nil, err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	previous := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(previous)

	engine := tasks.NewEngine(opts, fileLogger)
	model := ui.NewModel(ctx, root, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error) {
		return engine.Run(ctx, root, progress)
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	return model.Result()
}
