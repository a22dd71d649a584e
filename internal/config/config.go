package config

import (
	"errors"
	"time"
)

// Config represents the lfs-utils configuration
type Config struct {
	Lustre  LustreConfig  `mapstructure:"lustre"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LustreConfig represents the external tool configuration
type LustreConfig struct {
	// LfsBin is the path of the lfs binary
	LfsBin string `mapstructure:"lfs_bin"`
	// LctlBin is the path of the lctl binary
	LctlBin string `mapstructure:"lctl_bin"`
	// Sudo prefixes administrative invocations with sudo
	Sudo bool `mapstructure:"sudo"`
	// CommandTimeout bounds every external invocation; zero disables
	// the bound
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Lustre: LustreConfig{
			LfsBin:         "/usr/bin/lfs",
			LctlBin:        "/usr/sbin/lctl",
			Sudo:           false,
			CommandTimeout: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Lustre.LfsBin == "" {
		return errors.New("lustre.lfs_bin must be set")
	}

	if c.Lustre.LctlBin == "" {
		return errors.New("lustre.lctl_bin must be set")
	}

	if c.Lustre.CommandTimeout < 0 {
		return errors.New("lustre.command_timeout must not be negative")
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.New("metrics.port must be a valid port number")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}

	return nil
}
