package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}

		if err := viper.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to config
func applyEnvironmentOverrides(cfg *Config) {
	if lfsBin := os.Getenv("LFSUTILS_LFS_BIN"); lfsBin != "" {
		cfg.Lustre.LfsBin = lfsBin
	}
	if lctlBin := os.Getenv("LFSUTILS_LCTL_BIN"); lctlBin != "" {
		cfg.Lustre.LctlBin = lctlBin
	}
	if sudo := os.Getenv("LFSUTILS_SUDO"); sudo != "" {
		if b, err := strconv.ParseBool(sudo); err == nil {
			cfg.Lustre.Sudo = b
		}
	}
	if timeout := os.Getenv("LFSUTILS_COMMAND_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Lustre.CommandTimeout = d
		}
	}

	if level := os.Getenv("LFSUTILS_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if enabled := os.Getenv("LFSUTILS_METRICS_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if port := os.Getenv("LFSUTILS_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}
}
