package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/datesort/internal/shared"
	"github.com/urfave/cli/v3"
)

const (
	exitOK           = 0
	exitFailure      = 1
	exitPathNotFound = 2
	exitRootLocked   = 3
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runner := NewRunner(RunnerOpts{Logger: logger})
	err := newApp(runner).Run(ctx, os.Args)
	stop()

	os.Exit(exitCode(runner.logger, err))
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "datesort",
		Usage:     "Sort files into YYYY/MM folders by modification time",
		ArgsUsage: "[path]",
		Version:   "0.1.0",
		Flags:     append(globalFlags(), sortFlags()...),
		Before:    r.Before,
		Action:    r.Sort,
		Commands:  r.register(),
	}
}

// exitCode logs err and maps it onto the process exit status.
func exitCode(logger *log.Logger, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, shared.ErrPathNotFound):
		logger.Error("nothing to sort", "err", err)
		return exitPathNotFound
	case errors.Is(err, shared.ErrRootLocked):
		logger.Error("another run is sorting this tree", "err", err)
		return exitRootLocked
	default:
		logger.Errorf("application error: %v", err)
		return exitFailure
	}
}
