package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/datesort/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes the example config and initializes the run ledger.
//
// An existing config is kept unless --force is given.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		p, err := shared.DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	_, statErr := os.Stat(configPath)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Errorf("failed to check config file: %w", statErr)
	}

	switch {
	case exists && !cmd.Bool("force"):
		r.logger.Info("config file already exists, keeping it", "path", configPath)
	default:
		if exists {
			if err := os.Remove(configPath); err != nil {
				return fmt.Errorf("failed to replace config file: %w", err)
			}
		}
		r.logger.Info("creating config file from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}
	r.config = config

	dbPath, err := config.DatabasePath()
	if err != nil {
		return err
	}
	r.logger.Info("initializing run ledger", "path", dbPath)

	db, err := shared.OpenLedger(config)
	if err != nil {
		return fmt.Errorf("failed to initialize run ledger: %w", err)
	}
	defer db.Close()

	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Ledger: %s\n", dbPath)
	r.writePlainln("Run 'datesort [path]' to sort a directory")
	return nil
}
