package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/chat-story/internal/config"
	pkgstorage "github.com/jwebster45206/chat-story/pkg/storage"
)

// Open builds the storage backend named by cfg.StorageBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pkgstorage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		s, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SQLite storage", "path", cfg.SQLitePath)
		return s, nil

	case config.BackendRedis:
		r, err := NewRedisStorage(cfg.RedisURL, cfg.SaveTTL, logger)
		if err != nil {
			return nil, err
		}
		if err := r.WaitForConnection(ctx, 5, time.Second); err != nil {
			_ = r.Close()
			return nil, err
		}
		logger.Info("Using Redis storage", "url", cfg.RedisURL)
		return r, nil

	case config.BackendMemory:
		logger.Info("Using in-memory storage; progress will not survive a restart")
		return pkgstorage.NewMockStorage(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
