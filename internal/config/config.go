// Package config loads grove's optional YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jward/grove/internal/syntax"
)

// FileName is the config file looked up in the repository root.
const FileName = ".grove.yaml"

// Config holds the settings the CLI and engine read. Zero fields take
// defaults from Default.
type Config struct {
	// Extension of source files.
	Extension string `yaml:"extension"`
	// DirOwnerStems are the file stems allowed to own submodule directories.
	DirOwnerStems []string `yaml:"dir_owner_stems"`
	// Ignore holds gitignore-style patterns excluded from discovery.
	Ignore []string `yaml:"ignore"`
	// Workers bounds concurrent file loading and tree building.
	Workers int `yaml:"workers"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// DB is the SQLite export path; relative paths are relative to the
	// repository root.
	DB string `yaml:"db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Extension:     syntax.Extension,
		DirOwnerStems: []string{"mod", "lib", "main"},
		Workers:       runtime.NumCPU(),
		LogLevel:      "info",
		DB:            ".grove/index.db",
	}
}

// Load reads path over the defaults. A missing file is not an error. The
// GROVE_LOG_LEVEL environment variable overrides the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if v := os.Getenv("GROVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) fill() {
	d := Default()
	if c.Extension == "" {
		c.Extension = d.Extension
	}
	if !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}
	if len(c.DirOwnerStems) == 0 {
		c.DirOwnerStems = d.DirOwnerStems
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.DB == "" {
		c.DB = d.DB
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for _, s := range c.DirOwnerStems {
		if s == "" || strings.ContainsAny(s, "/\\.") {
			return fmt.Errorf("invalid dir owner stem %q", s)
		}
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
