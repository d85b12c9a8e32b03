package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/datesort/internal/repositories"
	"github.com/desertthunder/datesort/internal/shared"
	tu "github.com/desertthunder/datesort/internal/testing"
)

// fixture is a tree to sort plus a config whose ledger lives outside it.
type fixture struct {
	root       string
	configPath string
	dbPath     string
	out        *bytes.Buffer
	logs       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		root:       filepath.Join(dir, "photos"),
		configPath: filepath.Join(dir, "config", "config.toml"),
		dbPath:     filepath.Join(dir, "config", "ledger.db"),
		out:        &bytes.Buffer{},
		logs:       &bytes.Buffer{},
	}

	config := fmt.Sprintf(`[pipeline]
strategy = "pool"
workers = 2
queue_capacity = 4

[database]
path = %q
record = true

[log]
level = "info"
`, f.dbPath)

	if err := os.MkdirAll(filepath.Dir(f.configPath), 0o755); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(f.configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	tu.WriteFileAt(t, filepath.Join(f.root, "a.txt"), "a", tu.Date(2021, 6, 15))
	tu.WriteFileAt(t, filepath.Join(f.root, "sub", "b.txt"), "b", tu.Date(2020, 1, 2))
	return f
}

func (f *fixture) run(args ...string) error {
	f.out.Reset()
	r := NewRunner(RunnerOpts{Logger: shared.NewLogger(f.logs), Output: f.out})
	return newApp(r).Run(context.Background(), append([]string{"datesort", "--config", f.configPath}, args...))
}

func (f *fixture) repo(t *testing.T) *repositories.RunRepository {
	t.Helper()
	db, err := shared.NewDatabase(f.dbPath)
	if err != nil {
		t.Fatalf("Failed to open ledger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewRunRepository(db)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range NewRunner(RunnerOpts{}).register() {
			names[c.Name] = true
		}
		for _, want := range []string{"sort", "history", "show", "setup"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("pretty", func(t *testing.T) {
			out := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: out})

			if err := runner.writeJSON(map[string]int{"moved": 3}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.String() != "{\n  \"moved\": 3\n}\n" {
				t.Errorf("unexpected output %q", out.String())
			}
		})

		t.Run("compact", func(t *testing.T) {
			out := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: out})

			if err := runner.writeJSON([]int{1, 2}, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.String() != "[1,2]\n" {
				t.Errorf("unexpected output %q", out.String())
			}
		})

		t.Run("marshal error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})

		t.Run("write error", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON("x", false); err == nil {
				t.Error("expected write error")
			}
		})

		t.Run("newline write error", func(t *testing.T) {
			w := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &w})
			if err := runner.writeJSON("x", false); err == nil || !strings.Contains(err.Error(), "newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing explicit config", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})
			err := runner.loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
			if !errors.Is(err, shared.ErrMissingConfig) {
				t.Errorf("expected ErrMissingConfig, got %v", err)
			}
		})

		t.Run("missing default config keeps defaults", func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})

			if err := runner.loadConfig(""); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if runner.config.Pipeline.Strategy != shared.StrategyPool {
				t.Errorf("expected default strategy, got %q", runner.config.Pipeline.Strategy)
			}
			if !strings.HasSuffix(runner.configPath, filepath.Join(".datesort", "config.toml")) {
				t.Errorf("unexpected config path %s", runner.configPath)
			}
		})

		t.Run("invalid config", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte("[pipeline]\nstrategy = \"threads\"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{})})
			if err := runner.loadConfig(path); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestExitCode(t *testing.T) {
	logger := shared.NewLogger(&bytes.Buffer{})
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"missing path", fmt.Errorf("%w: /nope", shared.ErrPathNotFound), exitPathNotFound},
		{"locked root", fmt.Errorf("%w: /photos", shared.ErrRootLocked), exitRootLocked},
		{"anything else", errors.New("boom"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(logger, tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	t.Run("sorts the tree and records the run", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run(f.root); err != nil {
			t.Fatalf("sort failed: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(f.root, "2021", "06", "a.txt"))
		tu.AssertFileExists(t, filepath.Join(f.root, "2020", "01", "b.txt"))
		tu.AssertMissing(t, filepath.Join(f.root, "a.txt"))
		tu.AssertEmptyDir(t, filepath.Join(f.root, "sub"))

		if !strings.Contains(f.logs.String(), "Moving file: a.txt") {
			t.Errorf("expected per-file log line, got:\n%s", f.logs.String())
		}
		for _, s := range []string{"Discovered: 2", "Moved: 2", "2021/06: 1"} {
			if !strings.Contains(f.out.String(), s) {
				t.Errorf("summary missing %q:\n%s", s, f.out.String())
			}
		}

		runs, err := f.repo(t).List(nil)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(runs))
		}
		if runs[0].Status() != "completed" || runs[0].Summary().Moved != 2 {
			t.Errorf("unexpected run: status=%s summary=%+v", runs[0].Status(), runs[0].Summary())
		}
		if runs[0].WorkingRoot() != f.root {
			t.Errorf("expected working root %s, got %s", f.root, runs[0].WorkingRoot())
		}
	})

	t.Run("sort subcommand with spawner", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sort", "--strategy", "spawner", "--max-tasks", "2", f.root); err != nil {
			t.Fatalf("sort failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(f.root, "2020", "01", "b.txt"))

		runs, err := f.repo(t).List(nil)
		if err != nil || len(runs) != 1 {
			t.Fatalf("expected one run, got %d (%v)", len(runs), err)
		}
		if runs[0].Strategy() != shared.StrategySpawner || runs[0].Workers() != 2 {
			t.Errorf("unexpected strategy %s/%d", runs[0].Strategy(), runs[0].Workers())
		}
	})

	t.Run("single file", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run(filepath.Join(f.root, "a.txt")); err != nil {
			t.Fatalf("sort failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(f.root, "2021", "06", "a.txt"))
		tu.AssertFileExists(t, filepath.Join(f.root, "sub", "b.txt"))
		tu.AssertMissing(t, filepath.Join(f.root, "2020"))
	})

	t.Run("missing path", func(t *testing.T) {
		f := newFixture(t)

		err := f.run(filepath.Join(f.root, "missing"))
		if !errors.Is(err, shared.ErrPathNotFound) {
			t.Fatalf("expected ErrPathNotFound, got %v", err)
		}
		tu.AssertMissing(t, f.dbPath)
		tu.AssertFileExists(t, filepath.Join(f.root, "a.txt"))
	})

	t.Run("locked root", func(t *testing.T) {
		f := newFixture(t)

		lock, err := shared.LockRoot(f.root)
		if err != nil {
			t.Fatalf("LockRoot failed: %v", err)
		}
		defer lock.Unlock()

		if err := f.run(f.root); !errors.Is(err, shared.ErrRootLocked) {
			t.Fatalf("expected ErrRootLocked, got %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(f.root, "a.txt"))
	})

	t.Run("dry run as JSON", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sort", "--dry-run", "--json", "--no-record", f.root); err != nil {
			t.Fatalf("sort failed: %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(f.root, "a.txt"))
		tu.AssertMissing(t, filepath.Join(f.root, "2021"))
		tu.AssertMissing(t, f.dbPath)

		var report struct {
			DryRun  bool `json:"dry_run"`
			Summary struct {
				Moved int `json:"moved"`
			} `json:"summary"`
			Items []struct {
				Destination string `json:"destination"`
			} `json:"items"`
		}
		if err := json.Unmarshal(f.out.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, f.out.String())
		}
		if !report.DryRun || len(report.Items) != 2 {
			t.Errorf("unexpected report: %+v", report)
		}
	})

	t.Run("writes a report", func(t *testing.T) {
		f := newFixture(t)
		reportPath := filepath.Join(t.TempDir(), "report.csv")

		if err := f.run("sort", "--report", reportPath, f.root); err != nil {
			t.Fatalf("sort failed: %v", err)
		}
		content := tu.MustReadFile(t, reportPath)
		if !strings.HasPrefix(content, "Path,Outcome") || !strings.Contains(content, "a.txt") {
			t.Errorf("unexpected report:\n%s", content)
		}
	})

	t.Run("invalid flags", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"strategy", []string{"--strategy", "threads"}},
			{"queue", []string{"--queue", "0"}},
			{"max tasks", []string{"--max-tasks", "0"}},
			{"rate", []string{"--rate", "-1"}},
			{"format", []string{"--format", "xml"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				args := append([]string{"sort"}, tt.args...)
				if err := f.run(append(args, f.root)...); !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				tu.AssertFileExists(t, filepath.Join(f.root, "a.txt"))
			})
		}
	})

	t.Run("config inside the tree is left alone", func(t *testing.T) {
		f := newFixture(t)
		inside := filepath.Join(f.root, "config.toml")
		if err := os.Rename(f.configPath, inside); err != nil {
			t.Fatal(err)
		}
		f.configPath = inside

		if err := f.run(f.root); err != nil {
			t.Fatalf("sort failed: %v", err)
		}
		tu.AssertFileExists(t, inside)
	})

	t.Run("interactive log inside the tree is left alone", func(t *testing.T) {
		f := newFixture(t)
		t.Setenv("HOME", f.root)
		logPath := tu.WriteFileAt(t, filepath.Join(f.root, ".datesort", "datesort-tui.log"), "log", tu.Date(2019, 4, 4))

		if err := f.run(f.root); err != nil {
			t.Fatalf("sort failed: %v", err)
		}
		tu.AssertFileExists(t, logPath)
		tu.AssertMissing(t, filepath.Join(f.root, "2019"))
		tu.AssertFileExists(t, filepath.Join(f.root, "2021", "06", "a.txt"))
	})
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	if err := f.run(f.root); err != nil {
		t.Fatalf("sort failed: %v", err)
	}

	t.Run("table", func(t *testing.T) {
		if err := f.run("history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		for _, s := range []string{"#1", f.root, "completed"} {
			if !strings.Contains(f.out.String(), s) {
				t.Errorf("history missing %q:\n%s", s, f.out.String())
			}
		}
	})

	t.Run("json with filters", func(t *testing.T) {
		if err := f.run("history", "--json", "--root", f.root, "--status", "completed"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var runs []runView
		if err := json.Unmarshal(f.out.Bytes(), &runs); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(runs) != 1 || runs[0].Sequence != 1 || runs[0].Summary.Moved != 2 {
			t.Errorf("unexpected runs: %+v", runs)
		}

		if err := f.run("history", "--json", "--status", "canceled"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if strings.TrimSpace(f.out.String()) != "[]" {
			t.Errorf("expected no canceled runs, got %s", f.out.String())
		}
	})

	t.Run("show", func(t *testing.T) {
		if err := f.run("show", "#1"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		for _, s := range []string{"Run #1", f.root, "Every file was moved"} {
			if !strings.Contains(f.out.String(), s) {
				t.Errorf("show missing %q:\n%s", s, f.out.String())
			}
		}

		if err := f.run("show", "--format", "md", "1"); err != nil {
			t.Fatalf("show failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "# Sort of "+f.root) {
			t.Errorf("expected markdown report:\n%s", f.out.String())
		}
	})

	t.Run("show unknown run", func(t *testing.T) {
		if err := f.run("show", "#99"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if err := f.run("show"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("prune and purge", func(t *testing.T) {
		if err := f.run("history", "--prune", "1"); err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "Pruned run #1") {
			t.Errorf("unexpected output: %s", f.out.String())
		}

		if err := f.run("history"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "No runs recorded yet") {
			t.Errorf("pruned run should be hidden:\n%s", f.out.String())
		}

		if err := f.run("history", "--purge"); err != nil {
			t.Fatalf("purge failed: %v", err)
		}
		if !strings.Contains(f.out.String(), "Purged 1 runs") {
			t.Errorf("unexpected output: %s", f.out.String())
		}
	})
}

func TestSetup(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	configPath := filepath.Join(home, ".datesort", "config.toml")

	run := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Logger: shared.NewLogger(&bytes.Buffer{}), Output: out})
		err := newApp(r).Run(context.Background(), append([]string{"datesort"}, args...))
		return out.String(), err
	}

	out, err := run("setup")
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	tu.AssertFileExists(t, configPath)
	tu.AssertFileExists(t, filepath.Join(home, ".datesort", "datesort.db"))
	if !strings.Contains(out, configPath) {
		t.Errorf("expected config path in output:\n%s", out)
	}

	t.Run("keeps an existing config", func(t *testing.T) {
		if err := os.WriteFile(configPath, []byte("[log]\nlevel = \"warn\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := run("setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		if content := tu.MustReadFile(t, configPath); !strings.Contains(content, "warn") {
			t.Error("existing config should be kept")
		}

		if _, err := run("setup", "--force"); err != nil {
			t.Fatalf("setup --force failed: %v", err)
		}
		if content := tu.MustReadFile(t, configPath); !strings.Contains(content, "[pipeline]") {
			t.Error("--force should restore the template")
		}
	})
}
