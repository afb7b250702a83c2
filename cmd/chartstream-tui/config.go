package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/chartstream/internal/model"
)

// tuiConfig holds only TUI-relevant configuration. It reads the same file
// and environment as the headless player.
type tuiConfig struct {
	Speed          float64       `mapstructure:"speed"`
	MinDelay       time.Duration `mapstructure:"min-delay"`
	MaxDelay       time.Duration `mapstructure:"max-delay"`
	MaxLineSize    int           `mapstructure:"max-line-size"`
	Autoplay       bool          `mapstructure:"autoplay"`
	HistoryEnabled bool          `mapstructure:"history-enabled"`
	DBPath         string        `mapstructure:"db-path"`
	QueryTimeout   time.Duration `mapstructure:"query-timeout"`
	RunsLimit      int           `mapstructure:"runs-limit"`
}

func loadTUIConfig(configPath string) (tuiConfig, error) {
	var cfg tuiConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CHARTSTREAM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("speed", float64(model.DefaultSpeed))
	v.SetDefault("min-delay", model.DefaultMinDelay)
	v.SetDefault("max-delay", model.DefaultMaxDelay)
	v.SetDefault("max-line-size", model.DefaultMaxLineSize)
	v.SetDefault("autoplay", true)
	v.SetDefault("history-enabled", true)
	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "chartstream", "history.duckdb"))
	v.SetDefault("query-timeout", 10*time.Second)
	v.SetDefault("runs-limit", model.DefaultRunsLimit)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "chartstream", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if !model.PlaybackSpeed(cfg.Speed).Valid() {
		return cfg, fmt.Errorf("invalid speed: %v (supported: 0.5, 1, 1.5, 2)", cfg.Speed)
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return cfg, fmt.Errorf("invalid delay window: min-delay %s, max-delay %s", cfg.MinDelay, cfg.MaxDelay)
	}
	if strings.HasPrefix(cfg.DBPath, "~/") {
		cfg.DBPath = filepath.Join(home, cfg.DBPath[2:])
	}

	return cfg, nil
}
