// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// globalFlags are inherited by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (default: ~/.datesort/config.toml)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// sortFlags override the [pipeline] section of the config for one run.
func sortFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "strategy",
			Aliases: []string{"s"},
			Usage:   "Execution strategy: pool or spawner",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Worker pool size (0 uses the CPU count)",
		},
		&cli.IntFlag{
			Name:  "queue",
			Usage: "Capacity of the channel between traversal and workers",
		},
		&cli.IntFlag{
			Name:  "max-tasks",
			Usage: "Concurrent task cap for the spawner strategy",
		},
		&cli.FloatFlag{
			Name:  "rate",
			Usage: "Maximum moves per second (0 for unlimited)",
		},
		&cli.BoolFlag{
			Name:  "eager",
			Usage: "Finish scanning before moving anything",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "Report destinations without moving files",
		},
		&cli.BoolFlag{
			Name:  "no-record",
			Usage: "Do not store this run in the ledger",
		},
		&cli.BoolFlag{
			Name:    "interactive",
			Aliases: []string{"i"},
			Usage:   "Show live progress in a terminal UI",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the summary as JSON",
		},
		&cli.StringFlag{
			Name:    "report",
			Aliases: []string{"o"},
			Usage:   "Write per-file detail to this file",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Report format: json, csv, markdown, or txt (default: from the report extension)",
		},
	}
}

// sortCommand sorts a directory tree or a single file
func sortCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "sort",
		Usage:     "Move files into YYYY/MM folders by modification time",
		ArgsUsage: "[path]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags:  sortFlags(),
		Action: r.Sort,
	}
}

// historyCommand lists and prunes ledger entries
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"runs"},
		Usage:   "List previous runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "Only list runs of this directory",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only list runs with this status (running, completed, canceled, failed)",
			},
			&cli.StringFlag{
				Name:  "prune",
				Usage: "Remove the run with this ID, ID prefix, or sequence number",
			},
			&cli.BoolFlag{
				Name:  "purge",
				Usage: "Permanently delete pruned runs",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
	}
}

// showCommand prints one ledger entry with its failures
func showCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a previous run and the files it could not move",
		ArgsUsage: "<id|#sequence>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "Print as json, csv, markdown, or txt instead of tables",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file",
			},
		},
		Action: r.Show,
	}
}

// setupCommand writes the default config and initializes the ledger.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and initialize the run ledger",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
		Action: r.Setup,
	}
}
