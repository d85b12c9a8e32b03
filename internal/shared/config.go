package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	StrategyPool    = "pool"
	StrategySpawner = "spawner"

	appDirName = ".datesort"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Pipeline PipelineConfig `toml:"pipeline"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// PipelineConfig controls traversal and the execution layer.
type PipelineConfig struct {
	Strategy      string   `toml:"strategy"`
	Workers       int      `toml:"workers"`
	QueueCapacity int      `toml:"queue_capacity"`
	MaxTasks      int      `toml:"max_tasks"`
	RateLimit     float64  `toml:"rate_limit"`
	Eager         bool     `toml:"eager"`
	SkipSorted    bool     `toml:"skip_sorted"`
	ExcludeDirs   []string `toml:"exclude_dirs"`
}

// DatabaseConfig contains run ledger settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	Record       bool   `toml:"record"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their embedded default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	p := c.Pipeline
	switch p.Strategy {
	case StrategyPool, StrategySpawner:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, p.Strategy)
	}

	switch {
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	case p.QueueCapacity < 1:
		return fmt.Errorf("%w: queue_capacity must be at least 1", ErrInvalidConfig)
	case p.MaxTasks < 1:
		return fmt.Errorf("%w: max_tasks must be at least 1", ErrInvalidConfig)
	case p.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WorkerCount resolves the configured pool size, falling back to the logical CPU count.
func (p PipelineConfig) WorkerCount() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// DatabasePath returns the ledger path with "~" expanded, or the default under the app directory.
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return ExpandPath(c.Database.Path)
	}
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "datesort.db"), nil
}

// AppDir returns ~/.datesort.
func AppDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, appDirName), nil
}

// DefaultConfigPath returns ~/.datesort/config.toml.
func DefaultConfigPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// TUILogPath returns ~/.datesort/datesort-tui.log, where interactive runs send their logs.
func TUILogPath() (string, error) {
	dir, err := AppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "datesort-tui.log"), nil
}

// ExpandPath replaces a leading "~" with the user's home directory and makes the path absolute.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
