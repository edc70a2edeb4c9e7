package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/chat-story/internal/config"
	"github.com/jwebster45206/chat-story/internal/logger"
	pkgstorage "github.com/jwebster45206/chat-story/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, &config.Config{StorageBackend: config.BackendMemory}, logger.Discard())
		require.NoError(t, err)
		assert.IsType(t, &pkgstorage.MockStorage{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{
			StorageBackend: config.BackendSQLite,
			SQLitePath:     filepath.Join(t.TempDir(), "chatstory.db"),
		}
		s, err := Open(ctx, cfg, logger.Discard())
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLiteStorage{}, s)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := &config.Config{StorageBackend: config.BackendRedis, RedisURL: mr.Addr()}
		s, err := Open(ctx, cfg, logger.Discard())
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &RedisStorage{}, s)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Open(ctx, &config.Config{StorageBackend: "floppy"}, logger.Discard())
		assert.Error(t, err)
	})
}
