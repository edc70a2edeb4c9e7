package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level
	LogFile     string `env:"LOG_FILE"`

	ScriptPath string `env:"SCRIPT_PATH" envDefault:"data/scripts/demo.json"`

	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"data/saves/chatstory.db"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	SaveSlot       string        `env:"SAVE_SLOT" envDefault:"default"`
	SaveTTL        time.Duration `env:"SAVE_TTL" envDefault:"0s"`

	InitialBatch  int           `env:"INITIAL_BATCH" envDefault:"1"`
	TypingDelay   time.Duration `env:"TYPING_DELAY" envDefault:"1200ms"`
	PlayerName    string        `env:"PLAYER_NAME" envDefault:"Alana"`
	PublishEvents bool          `env:"PUBLISH_EVENTS" envDefault:"false"`
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q (want %s, %s or %s)", c.StorageBackend, BackendSQLite, BackendRedis, BackendMemory)
	}
	if c.InitialBatch < 1 {
		return fmt.Errorf("INITIAL_BATCH must be at least 1, got %d", c.InitialBatch)
	}
	if c.TypingDelay < 0 {
		return fmt.Errorf("TYPING_DELAY must not be negative, got %s", c.TypingDelay)
	}
	if c.SaveSlot == "" {
		return fmt.Errorf("SAVE_SLOT must not be empty")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
