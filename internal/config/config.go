// Package config loads process settings from the environment (and an
// optional .env file).
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port string
}

type LogConfig struct {
	Level    string
	Encoding string // "json" or "console"
}

type StorageConfig struct {
	DatabaseURL string
	RedisURL    string
	CacheTTL    time.Duration
}

type LedgerConfig struct {
	OperationTimeout    time.Duration
	LockExpiry          time.Duration
	LockTries           int
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Storage StorageConfig
	Ledger  LedgerConfig
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("OPERATION_TIMEOUT", "5s")
	v.SetDefault("LOCK_EXPIRY", "10s")
	v.SetDefault("LOCK_TRIES", 32)
	v.SetDefault("HISTORY_DEFAULT_LIMIT", 10)
	v.SetDefault("HISTORY_MAX_LIMIT", 100)

	durations := map[string]*time.Duration{}
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		Storage: StorageConfig{
			DatabaseURL: v.GetString("DATABASE_URL"),
			RedisURL:    v.GetString("REDIS_URL"),
		},
		Ledger: LedgerConfig{
			LockTries:           v.GetInt("LOCK_TRIES"),
			HistoryDefaultLimit: v.GetInt("HISTORY_DEFAULT_LIMIT"),
			HistoryMaxLimit:     v.GetInt("HISTORY_MAX_LIMIT"),
		},
	}
	durations["CACHE_TTL"] = &cfg.Storage.CacheTTL
	durations["OPERATION_TIMEOUT"] = &cfg.Ledger.OperationTimeout
	durations["LOCK_EXPIRY"] = &cfg.Ledger.LockExpiry

	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", key, d)
		}
		*dst = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		return fmt.Errorf("LOG_ENCODING must be json or console, got %q", c.Log.Encoding)
	}
	if c.Ledger.LockTries <= 0 {
		return fmt.Errorf("LOCK_TRIES must be positive, got %d", c.Ledger.LockTries)
	}
	if c.Ledger.HistoryDefaultLimit <= 0 || c.Ledger.HistoryMaxLimit <= 0 {
		return fmt.Errorf("history limits must be positive")
	}
	if c.Ledger.HistoryDefaultLimit > c.Ledger.HistoryMaxLimit {
		return fmt.Errorf("HISTORY_DEFAULT_LIMIT (%d) exceeds HISTORY_MAX_LIMIT (%d)",
			c.Ledger.HistoryDefaultLimit, c.Ledger.HistoryMaxLimit)
	}
	return nil
}
