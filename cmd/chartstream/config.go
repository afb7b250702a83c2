package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/chartstream/internal/model"
)

const (
	defaultBindHost      = "127.0.0.1"
	defaultAPIPort       = 3000
	defaultQueryTimeout  = 10 * time.Second
	defaultRetentionDays = model.DefaultRetentionDays

	defaultBackupInterval = 6 * time.Hour
	defaultBackupKeepLast = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Speed          float64       `mapstructure:"speed"`
	MinDelay       time.Duration `mapstructure:"min-delay"`
	MaxDelay       time.Duration `mapstructure:"max-delay"`
	MaxLineSize    int           `mapstructure:"max-line-size"`
	Autoplay       bool          `mapstructure:"autoplay"`
	Echo           bool          `mapstructure:"echo"`
	APIEnabled     bool          `mapstructure:"api-enabled"`
	APIPort        int           `mapstructure:"api-port"`
	APIAddr        string        `mapstructure:"api-addr"`
	HistoryEnabled bool          `mapstructure:"history-enabled"`
	DBPath         string        `mapstructure:"db-path"`
	QueryTimeout   time.Duration `mapstructure:"query-timeout"`
	RetentionDays  int           `mapstructure:"history-retention"`

	BackupEnabled        bool          `mapstructure:"backup-enabled"`
	BackupInterval       time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir       string        `mapstructure:"backup-local-dir"`
	BackupKeepLast       int           `mapstructure:"backup-keep-last"`
	BackupBucketURL      string        `mapstructure:"backup-bucket-url"`
	BackupS3Endpoint     string        `mapstructure:"backup-s3-endpoint"`
	BackupS3Region       string        `mapstructure:"backup-s3-region"`
	BackupS3AccessKey    string        `mapstructure:"backup-s3-access-key"`
	BackupS3SecretKey    string        `mapstructure:"backup-s3-secret-key"`
	BackupS3SessionToken string        `mapstructure:"backup-s3-session-token"`
	BackupS3UseSSL       bool          `mapstructure:"backup-s3-use-ssl"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

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
	v.SetDefault("echo", true)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("history-enabled", true)
	v.SetDefault("db-path", filepath.Join(home, ".local", "share", "chartstream", "history.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("history-retention", defaultRetentionDays)
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-local-dir", filepath.Join(home, ".local", "share", "chartstream", "exports"))
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)
	v.SetDefault("backup-bucket-url", "")
	v.SetDefault("backup-s3-endpoint", "")
	v.SetDefault("backup-s3-region", "")
	v.SetDefault("backup-s3-access-key", "")
	v.SetDefault("backup-s3-secret-key", "")
	v.SetDefault("backup-s3-session-token", "")
	v.SetDefault("backup-s3-use-ssl", true)

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
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.BackupLocalDir = expandHome(home, cfg.BackupLocalDir)
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func (c appConfig) validate() error {
	if !model.PlaybackSpeed(c.Speed).Valid() {
		return fmt.Errorf("invalid speed: %v (supported: 0.5, 1, 1.5, 2)", c.Speed)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("invalid delay window: min-delay %s, max-delay %s", c.MinDelay, c.MaxDelay)
	}
	if c.MaxLineSize <= 0 {
		return fmt.Errorf("invalid max-line-size: %d", c.MaxLineSize)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", c.APIPort)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("invalid history-retention: %d", c.RetentionDays)
	}
	if c.BackupEnabled && !c.HistoryEnabled {
		return errors.New("backup-enabled requires history-enabled")
	}
	return nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
