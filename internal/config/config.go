// Package config loads the readywatch configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment variables which override the file.
const EnvPrefix = "READYWATCH_"

// Config is the readywatch configuration, as loaded from YAML.
type Config struct {
	// Command is the program and its arguments.
	Command []string `yaml:"command"`

	// Output is either lines or bytes.
	Output string `yaml:"output"`

	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DispatcherConfig configures the readiness dispatcher.
type DispatcherConfig struct {
	TickMS         int `yaml:"tick_ms"`
	SlowCallbackMS int `yaml:"slow_callback_ms"`

	// SlowCallbackRate limits slow callback warnings, per channel, per
	// minute. Zero disables the limit.
	SlowCallbackRate int `yaml:"slow_callback_rate"`

	// Async services output streams on their own goroutines.
	Async bool `yaml:"async"`
}

// HeartbeatConfig configures the periodic heartbeat log.
type HeartbeatConfig struct {
	// IntervalMS of zero disables the heartbeat.
	IntervalMS int `yaml:"interval_ms"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Output: "lines",
		Dispatcher: DispatcherConfig{
			TickMS:           20,
			SlowCallbackMS:   100,
			SlowCallbackRate: 6,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from file, over the defaults, and applies
// environment variable overrides. An empty path loads only the defaults and
// overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration, without requiring a command, which may
// be provided separately.
func (c *Config) Validate() error {
	switch c.Output {
	case "lines", "bytes":
	default:
		return fmt.Errorf("output must be lines or bytes, got %q", c.Output)
	}
	if c.Dispatcher.TickMS < 0 || c.Dispatcher.SlowCallbackMS < 0 || c.Dispatcher.SlowCallbackRate < 0 {
		return errors.New("dispatcher values must not be negative")
	}
	if c.Heartbeat.IntervalMS < 0 {
		return errors.New("heartbeat interval must not be negative")
	}
	if _, err := c.Logging.GetLevel(); err != nil {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv(EnvPrefix + "HEARTBEAT_MS"); v != "" {
		interval, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sHEARTBEAT_MS: %w", EnvPrefix, err)
		}
		cfg.Heartbeat.IntervalMS = interval
	}
	return nil
}

// GetTick returns the dispatcher tick as a duration.
func (d *DispatcherConfig) GetTick() time.Duration {
	return time.Duration(d.TickMS) * time.Millisecond
}

// GetSlowCallback returns the slow callback threshold as a duration.
func (d *DispatcherConfig) GetSlowCallback() time.Duration {
	return time.Duration(d.SlowCallbackMS) * time.Millisecond
}

// GetSlowCallbackRates returns the rates for the slow callback limiter, or
// nil if unlimited.
func (d *DispatcherConfig) GetSlowCallbackRates() map[time.Duration]int {
	if d.SlowCallbackRate == 0 {
		return nil
	}
	return map[time.Duration]int{time.Minute: d.SlowCallbackRate}
}

// GetInterval returns the heartbeat interval as a duration.
func (h *HeartbeatConfig) GetInterval() time.Duration {
	return time.Duration(h.IntervalMS) * time.Millisecond
}

// GetLevel parses the log level, accepting the syslog keywords, and the
// common aliases error and warn.
func (l *LoggingConfig) GetLevel() (logiface.Level, error) {
	name := strings.ToLower(strings.TrimSpace(l.Level))
	switch name {
	case "error":
		return logiface.LevelError, nil
	case "warn":
		return logiface.LevelWarning, nil
	}
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("invalid log level %q", l.Level)
}
