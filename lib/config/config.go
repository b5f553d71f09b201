// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/parley-foundation/parley/lib/retry"
	"github.com/parley-foundation/parley/lib/sessionlog"
)

// Config is the runtime configuration for the parley command.
type Config struct {
	// Agent is the path to the default agent definition file. A
	// --agent flag overrides it.
	Agent string `yaml:"agent"`

	// Script is the path to the provider script file used by the
	// scripted provider for offline runs.
	Script string `yaml:"script"`

	// Runtime configures the execution engine.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Retry configures the backoff policy for provider calls.
	Retry RetryConfig `yaml:"retry"`

	// Session configures session log output.
	Session SessionConfig `yaml:"session"`

	// Metrics configures run history storage.
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging configures operational log output.
	Logging LoggingConfig `yaml:"logging"`
}

// RuntimeConfig configures the execution engine.
type RuntimeConfig struct {
	// Provider is the provider used when the agent definition names
	// none. Default: scripted.
	Provider string `yaml:"provider"`

	// Model is the model used when the agent definition names none.
	Model string `yaml:"model"`

	// MaxIterations caps model calls per run. Default: 25.
	MaxIterations int `yaml:"max_iterations"`

	// ProtectedTurns is the number of trailing conversation turns
	// never trimmed from the context window. Default: 1.
	ProtectedTurns int `yaml:"protected_turns"`

	// ContextWindow overrides the per-model context window size in
	// tokens. 0 uses the built-in model table.
	ContextWindow int `yaml:"context_window"`

	// Stream enables streaming responses. Default: true.
	Stream bool `yaml:"stream"`

	// StreamTimeout is the maximum duration a stream may stay open,
	// as a Go duration string. Default: 5m.
	StreamTimeout string `yaml:"stream_timeout"`
}

// RetryConfig configures the backoff policy for provider calls.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Use -1 to disable retries entirely. Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// InitialBackoff is the delay before the first retry, as a Go
	// duration string. Default: 1s.
	InitialBackoff string `yaml:"initial_backoff"`

	// Multiplier scales the delay after each retry. Default: 2.
	Multiplier float64 `yaml:"multiplier"`
}

// SessionConfig configures session log output.
type SessionConfig struct {
	// Log is the path where the session log is written. Empty
	// disables session logging.
	Log string `yaml:"log"`

	// Compression is the session log compression: none, zstd, or
	// lz4. Default: none.
	Compression string `yaml:"compression"`
}

// MetricsConfig configures run history storage.
type MetricsConfig struct {
	// Database is the path to the SQLite run history database. Empty
	// disables run recording.
	Database string `yaml:"database"`
}

// LoggingConfig configures operational log output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	// Default: info.
	Level string `yaml:"level"`

	// Format selects the log handler: auto (tint on a terminal,
	// plain text otherwise), text, or json. Default: auto.
	Format string `yaml:"format"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file, so every field has a
// working value even when the file sets only a few keys.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			Provider:       "scripted",
			MaxIterations:  25,
			ProtectedTurns: 1,
			Stream:         true,
			StreamTimeout:  "5m",
		},
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: "1s",
			Multiplier:     2,
		},
		Session: SessionConfig{
			Compression: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by the PARLEY_CONFIG
// environment variable. Fails when the variable is not set; there are
// no fallbacks or discovery.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging the
// file's values over [Default]. The config file is the single source
// of truth. Environment variables do not override config values; the
// only expansion performed is ${HOME} and similar path variables for
// portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Agent = expandVars(c.Agent, vars)
	c.Script = expandVars(c.Script, vars)
	c.Session.Log = expandVars(c.Session.Log, vars)
	c.Metrics.Database = expandVars(c.Metrics.Database, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Runtime.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("runtime.max_iterations must not be negative"))
	}
	if c.Runtime.ProtectedTurns < 0 {
		errs = append(errs, fmt.Errorf("runtime.protected_turns must not be negative"))
	}
	if c.Runtime.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("runtime.context_window must not be negative"))
	}
	if c.Runtime.StreamTimeout != "" {
		if _, err := time.ParseDuration(c.Runtime.StreamTimeout); err != nil {
			errs = append(errs, fmt.Errorf("runtime.stream_timeout: %w", err))
		}
	}

	if c.Retry.MaxRetries < -1 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be -1 or greater"))
	}
	if c.Retry.InitialBackoff != "" {
		if _, err := time.ParseDuration(c.Retry.InitialBackoff); err != nil {
			errs = append(errs, fmt.Errorf("retry.initial_backoff: %w", err))
		}
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.multiplier must be at least 1"))
	}

	if _, err := sessionlog.ParseCompression(c.Session.Compression); err != nil {
		errs = append(errs, fmt.Errorf("session.compression: %w", err))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of: debug, info, warn, error"))
	}

	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be one of: auto, text, json"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// StreamTimeoutDuration returns the parsed stream timeout, or zero
// when unset (letting the engine default apply).
func (c RuntimeConfig) StreamTimeoutDuration() (time.Duration, error) {
	if c.StreamTimeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.StreamTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: runtime.stream_timeout: %w", err)
	}
	return timeout, nil
}

// Policy converts the retry section into a retry.Policy. Fields left
// at zero keep the policy's own defaults.
func (c RetryConfig) Policy() (retry.Policy, error) {
	policy := retry.Policy{
		MaxRetries: c.MaxRetries,
		Multiplier: c.Multiplier,
	}
	if c.InitialBackoff != "" {
		backoff, err := time.ParseDuration(c.InitialBackoff)
		if err != nil {
			return retry.Policy{}, fmt.Errorf("config: retry.initial_backoff: %w", err)
		}
		policy.InitialBackoff = backoff
	}
	return policy, nil
}

// CompressionMode returns the parsed session log compression.
func (c SessionConfig) CompressionMode() (sessionlog.Compression, error) {
	compression, err := sessionlog.ParseCompression(c.Compression)
	if err != nil {
		return sessionlog.CompressionNone, fmt.Errorf("config: session.compression: %w", err)
	}
	return compression, nil
}

// EnsureDirs creates the parent directories of all configured output
// paths. Paths left empty are skipped.
func (c *Config) EnsureDirs() error {
	for _, path := range []string{c.Session.Log, c.Metrics.Database} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	return nil
}
