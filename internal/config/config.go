package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings. Values load from an optional YAML
// file first, then LINKTREE_* environment variables override.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	LogLevel  string `yaml:"log_level"`
	PrettyLog bool   `yaml:"pretty_log"`

	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
	ImportBatchSize int   `yaml:"import_batch_size"`

	ImportTxMaxWait time.Duration `yaml:"import_tx_max_wait"`
	ImportTxTimeout time.Duration `yaml:"import_tx_timeout"`
	StreamTxMaxWait time.Duration `yaml:"stream_tx_max_wait"`
	StreamTxTimeout time.Duration `yaml:"stream_tx_timeout"`

	CheckerConcurrency int           `yaml:"checker_concurrency"`
	CheckerRatePerSec  float64       `yaml:"checker_rate_per_sec"`
	CheckerTimeout     time.Duration `yaml:"checker_timeout"`
}

func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		DBPath:             "linktree.db",
		LogLevel:           "info",
		PrettyLog:          false,
		MaxUploadBytes:     50 << 20,
		ImportBatchSize:    20,
		ImportTxMaxWait:    20 * time.Second,
		ImportTxTimeout:    30 * time.Second,
		StreamTxMaxWait:    8 * time.Second,
		StreamTxTimeout:    12 * time.Second,
		CheckerConcurrency: 5,
		CheckerRatePerSec:  2.0,
		CheckerTimeout:     10 * time.Second,
	}
}

// Load builds the configuration from defaults, an optional YAML file
// named by LINKTREE_CONFIG (or the path argument), and environment
// overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("LINKTREE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.ImportBatchSize <= 0 {
		return cfg, fmt.Errorf("import_batch_size must be positive, got %d", cfg.ImportBatchSize)
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, fmt.Errorf("max_upload_bytes must be positive, got %d", cfg.MaxUploadBytes)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "LINKTREE_LISTEN_ADDR")
	setString(&cfg.DBPath, "LINKTREE_DB_PATH")
	setString(&cfg.LogLevel, "LINKTREE_LOG_LEVEL")
	setBool(&cfg.PrettyLog, "LINKTREE_PRETTY_LOG")
	setInt64(&cfg.MaxUploadBytes, "LINKTREE_MAX_UPLOAD_BYTES")
	setInt(&cfg.ImportBatchSize, "LINKTREE_IMPORT_BATCH_SIZE")
	setDuration(&cfg.ImportTxMaxWait, "LINKTREE_IMPORT_TX_MAX_WAIT")
	setDuration(&cfg.ImportTxTimeout, "LINKTREE_IMPORT_TX_TIMEOUT")
	setDuration(&cfg.StreamTxMaxWait, "LINKTREE_STREAM_TX_MAX_WAIT")
	setDuration(&cfg.StreamTxTimeout, "LINKTREE_STREAM_TX_TIMEOUT")
	setInt(&cfg.CheckerConcurrency, "LINKTREE_CHECKER_CONCURRENCY")
	setFloat(&cfg.CheckerRatePerSec, "LINKTREE_CHECKER_RATE_PER_SEC")
	setDuration(&cfg.CheckerTimeout, "LINKTREE_CHECKER_TIMEOUT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
