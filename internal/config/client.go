package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig is the configuration of the expensectl command line client.
type ClientConfig struct {
	BackendURL         string        `mapstructure:"backend_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MonthlyBudget      string        `mapstructure:"monthly_budget"`
	BudgetWarningRatio float64       `mapstructure:"budget_warning_ratio"`
	LogLevel           string        `mapstructure:"log_level"`
}

// DefaultClientConfigPath returns ~/.expensectl.toml, or "" when there is no home directory.
func DefaultClientConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".expensectl.toml")
}

// LoadClientConfig reads the TOML file at configPath, if it exists, with the
// environment keys of the server taking precedence over it.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("backend_url", "http://localhost:5000")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("monthly_budget", "1000")
	v.SetDefault("budget_warning_ratio", 0.8)
	v.SetDefault("log_level", "warn")

	for key, env := range map[string]string{
		"backend_url":          "BACKEND_URL",
		"timeout":              "BACKEND_TIMEOUT",
		"monthly_budget":       "MONTHLY_BUDGET",
		"budget_warning_ratio": "BUDGET_WARNING_RATIO",
		"log_level":            "LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("backend_url is required")
	}
	return &cfg, nil
}
