package storage

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	r, err := NewRedisStorage("redis://"+mr.Addr(), ttl, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis storage: %v", err)
	}

	t.Cleanup(func() {
		_ = r.Close()
		mr.Close()
	})
	return r, mr
}

func TestRedisStorage_SnapshotLifecycle(t *testing.T) {
	r, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	data, err := r.LoadSnapshot(ctx, "default")
	if err != nil {
		t.Fatalf("Expected no error for missing slot, got: %v", err)
	}
	if data != nil {
		t.Errorf("Expected nil for missing slot, got %q", data)
	}

	if err := r.SaveSnapshot(ctx, "default", []byte(`{"unlockedIds":[1]}`)); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if !mr.Exists("chatstory:save:default") {
		t.Error("Expected snapshot key to exist")
	}

	if err := r.SaveSnapshot(ctx, "default", []byte(`{"unlockedIds":[1,2]}`)); err != nil {
		t.Fatalf("Failed to overwrite snapshot: %v", err)
	}
	data, err = r.LoadSnapshot(ctx, "default")
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if string(data) != `{"unlockedIds":[1,2]}` {
		t.Errorf("Single-slot save should hold the latest data, got %q", data)
	}

	if err := r.DeleteSnapshot(ctx, "default"); err != nil {
		t.Fatalf("Failed to delete snapshot: %v", err)
	}
	data, err = r.LoadSnapshot(ctx, "default")
	if err != nil || data != nil {
		t.Errorf("Expected empty slot after delete, got %q, %v", data, err)
	}

	if err := r.DeleteSnapshot(ctx, "default"); err != nil {
		t.Errorf("Deleting an empty slot should not fail: %v", err)
	}
}

func TestRedisStorage_TTL(t *testing.T) {
	r, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	if err := r.SaveSnapshot(ctx, "ttl", []byte("{}")); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if ttl := mr.TTL("chatstory:save:ttl"); ttl != time.Hour {
		t.Errorf("Expected TTL of 1h, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	data, err := r.LoadSnapshot(ctx, "ttl")
	if err != nil || data != nil {
		t.Errorf("Expected expired slot, got %q, %v", data, err)
	}
}

func TestRedisStorage_Flags(t *testing.T) {
	r, _ := setupTestRedis(t, 0)
	ctx := context.Background()

	done, err := r.GetFlag(ctx, "tutorial_complete")
	if err != nil || done {
		t.Fatalf("Expected unset flag to read false, got %v, %v", done, err)
	}

	if err := r.SetFlag(ctx, "tutorial_complete", true); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}
	done, err = r.GetFlag(ctx, "tutorial_complete")
	if err != nil || !done {
		t.Errorf("Expected flag true, got %v, %v", done, err)
	}

	if err := r.SetFlag(ctx, "tutorial_complete", false); err != nil {
		t.Fatalf("Failed to clear flag: %v", err)
	}
	done, _ = r.GetFlag(ctx, "tutorial_complete")
	if done {
		t.Error("Expected flag false after clearing")
	}
}

func TestRedisStorage_Unavailable(t *testing.T) {
	r, mr := setupTestRedis(t, 0)
	ctx := context.Background()

	mr.Close()

	if err := r.SaveSnapshot(ctx, "default", []byte("{}")); err == nil {
		t.Error("Expected save to fail when redis is down")
	}
	if _, err := r.LoadSnapshot(ctx, "default"); err == nil {
		t.Error("Expected load to fail when redis is down")
	}
}

func TestRedisStorage_WaitForConnection(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	t.Run("successful connection", func(t *testing.T) {
		r, _ := setupTestRedis(t, 0)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.WaitForConnection(ctx, 3, 10*time.Millisecond); err != nil {
			t.Errorf("Expected connection, got: %v", err)
		}
	})

	t.Run("connection timeout", func(t *testing.T) {
		r, err := NewRedisStorage("localhost:1", 0, logger)
		if err != nil {
			t.Fatalf("Failed to create redis storage: %v", err)
		}
		defer func() {
			_ = r.Close() // Ignore error in defer for test
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		if err := r.WaitForConnection(ctx, 30, 50*time.Millisecond); err == nil {
			t.Error("Expected timeout error, got nil")
		}
	})
}

func TestNewRedisStorage_BadURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	if _, err := NewRedisStorage("redis://localhost:6379/notadb", 0, logger); err == nil {
		t.Error("Expected parse error for malformed URL")
	}
}
