// Package config loads and validates the fontbuilder service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Generator GeneratorConfig `yaml:"generator"`
	Queue     QueueConfig     `yaml:"queue"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Optional overrides for the derived directory layout.
	OutputDir  string `yaml:"output_dir,omitempty"`
	ScratchDir string `yaml:"scratch_dir,omitempty"`
}

// GeneratorConfig describes the external generator binary.
type GeneratorConfig struct {
	// Path is the generator executable invoked per task.
	Path string `yaml:"path"`
	// WorkDir is the fixed working directory for generator subprocesses.
	WorkDir string `yaml:"work_dir,omitempty"`
	// ToolVersion feeds fingerprinting; bump it on generator upgrades to
	// invalidate previously cached artifacts.
	ToolVersion string `yaml:"tool_version"`
}

// QueueConfig bounds the worker pool.
type QueueConfig struct {
	Workers int `yaml:"workers,omitempty"` // default: host processing-unit count
	MaxSize int `yaml:"max_size,omitempty"`
}

// SweeperConfig controls the stale scratch directory sweep.
type SweeperConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interval  string `yaml:"interval,omitempty"`  // e.g. "1h"
	Retention string `yaml:"retention,omitempty"` // e.g. "72h"
}

// EventsConfig configures task lifecycle event sinks.
type EventsConfig struct {
	// StorePath is the sqlite database for the event log. Empty disables the
	// store; ":memory:" keeps it in-process.
	StorePath string     `yaml:"store_path,omitempty"`
	NATS      NATSConfig `yaml:"nats,omitempty"`
}

// NATSConfig configures the optional JetStream event publisher.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// LoggingConfig controls slog setup.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug|info|warn|error
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./fontbuilder-data"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = runtime.NumCPU()
	}
	if c.Queue.MaxSize <= 0 {
		c.Queue.MaxSize = 4096
	}
	if c.Sweeper.Interval == "" {
		c.Sweeper.Interval = "1h"
	}
	if c.Sweeper.Retention == "" {
		c.Sweeper.Retention = "72h"
	}
	if c.Events.NATS.Enabled && c.Events.NATS.Subject == "" {
		c.Events.NATS.Subject = "fontbuilder.tasks"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Generator.WorkDir == "" {
		c.Generator.WorkDir = c.DataDir
	}
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if c.Generator.Path == "" {
		return fmt.Errorf("generator.path is required")
	}
	if c.Generator.ToolVersion == "" {
		return fmt.Errorf("generator.tool_version is required")
	}
	if _, err := time.ParseDuration(c.Sweeper.Interval); err != nil {
		return fmt.Errorf("invalid sweeper.interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Sweeper.Retention); err != nil {
		return fmt.Errorf("invalid sweeper.retention: %w", err)
	}
	if c.Events.NATS.Enabled && c.Events.NATS.URL == "" {
		return fmt.Errorf("events.nats.url is required when NATS is enabled")
	}
	return nil
}

// OutputRoot returns the artifact cache directory.
func (c *Config) OutputRoot() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return filepath.Join(c.DataDir, "artifacts")
}

// ScratchRoot returns the root for per-task scratch directories.
func (c *Config) ScratchRoot() string {
	if c.ScratchDir != "" {
		return c.ScratchDir
	}
	return filepath.Join(c.DataDir, "scratch")
}

// SweepInterval returns the parsed sweeper interval.
func (c *Config) SweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.Sweeper.Interval)
	return d
}

// SweepRetention returns the parsed sweeper retention window.
func (c *Config) SweepRetention() time.Duration {
	d, _ := time.ParseDuration(c.Sweeper.Retention)
	return d
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := `# fontbuilder configuration
data_dir: ./fontbuilder-data

generator:
  path: /usr/local/bin/fontgen
  tool_version: "v3"

queue:
  workers: 0 # 0 = number of CPUs
  max_size: 4096

sweeper:
  enabled: true
  interval: 1h
  retention: 72h

events:
  store_path: ./fontbuilder-data/events.db
  nats:
    enabled: false
    url: nats://localhost:4222
    subject: fontbuilder.tasks

logging:
  level: info
`
	if err := os.WriteFile(configPath, []byte(example), 0o640); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
