package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lu-zhengda/portsniper/internal/logging"
	"github.com/lu-zhengda/portsniper/internal/process"
	"gopkg.in/yaml.v3"
)

// Config holds all portsniper configuration.
type Config struct {
	RefreshInterval  int      `yaml:"refresh_interval"` // seconds between port scans
	StatsInterval    int      `yaml:"stats_interval"`   // seconds between CPU/memory reads
	CommandTimeout   int      `yaml:"command_timeout"`  // seconds allowed for lsof/kill
	KillSignal       string   `yaml:"kill_signal"`
	Exclude          []string `yaml:"exclude"` // process names to hide
	InterpreterHosts []string `yaml:"interpreter_hosts"`
	ListenAddr       string   `yaml:"listen_addr"`
	LogLevel         string   `yaml:"log_level"`
	ColorEnabled     bool     `yaml:"color_enabled"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		RefreshInterval:  3,
		StatsInterval:    2,
		CommandTimeout:   5,
		KillSignal:       "SIGKILL",
		Exclude:          []string{},
		InterpreterHosts: []string{},
		ListenAddr:       "127.0.0.1:7878",
		LogLevel:         "warn",
		ColorEnabled:     true,
	}
}

// Load loads config from the given path. If path is empty, it uses the
// default location (~/.config/portsniper/config.yaml). If the file does not
// exist, it returns defaults without creating the file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return LoadFrom(path)
}

// LoadFrom loads and parses config from the given path. Missing fields
// keep their default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive, got %d", c.RefreshInterval)
	}
	if c.StatsInterval <= 0 {
		return fmt.Errorf("stats_interval must be positive, got %d", c.StatsInterval)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %d", c.CommandTimeout)
	}
	if _, err := process.ParseSignal(c.KillSignal); err != nil {
		return fmt.Errorf("kill_signal: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Timeout returns CommandTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// Save marshals the config to YAML and writes it to the given path,
// creating parent directories as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "portsniper", "config.yaml")
}
