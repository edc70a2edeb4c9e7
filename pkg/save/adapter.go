package save

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/chat-story/pkg/ledger"
	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/jwebster45206/chat-story/pkg/storage"
)

// TutorialFlag is the durable flag recording onboarding completion.
const TutorialFlag = "tutorial_complete"

// Adapter writes and reads one save slot of a Storage.
type Adapter struct {
	store  storage.Storage
	slot   string
	logger *slog.Logger
	now    func() time.Time
}

func NewAdapter(store storage.Storage, slot string, logger *slog.Logger) *Adapter {
	return &Adapter{
		store:  store,
		slot:   slot,
		logger: logger,
		now:    time.Now,
	}
}

// Slot is the name of the save slot.
func (a *Adapter) Slot() string {
	return a.slot
}

// Save captures the session and overwrites the slot. The snapshot is returned
// even when the write fails; the error then wraps ErrStorageUnavailable.
func (a *Adapter) Save(ctx context.Context, sessionID uuid.UUID, l *ledger.Ledger, current *script.ChatID) (Snapshot, error) {
	snap := Capture(sessionID, l, current, a.now())
	data, err := Encode(snap)
	if err != nil {
		return snap, err
	}
	if err := a.store.SaveSnapshot(ctx, a.slot, data); err != nil {
		return snap, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	a.logger.Debug("Snapshot saved", "slot", a.slot, "unlocked", len(snap.UnlockedIDs), "progress", snap.Progress)
	return snap, nil
}

// Load reads the slot. It returns nil, nil when the slot is empty. Corrupt data
// yields an error wrapping ErrSnapshotCorrupt; read failures wrap ErrStorageUnavailable.
func (a *Adapter) Load(ctx context.Context) (*Snapshot, error) {
	data, err := a.store.LoadSnapshot(ctx, a.slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if data == nil {
		return nil, nil
	}
	snap, err := Decode(data)
	if err != nil {
		a.logger.Warn("Discarding corrupt snapshot", "slot", a.slot, "error", err)
		return nil, err
	}
	return snap, nil
}

// Reset clears the slot.
func (a *Adapter) Reset(ctx context.Context) error {
	if err := a.store.DeleteSnapshot(ctx, a.slot); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// TutorialDone reports whether onboarding was completed. Read failures count
// as not done so the tutorial shows again rather than never.
func (a *Adapter) TutorialDone(ctx context.Context) bool {
	done, err := a.store.GetFlag(ctx, TutorialFlag)
	if err != nil {
		a.logger.Warn("Failed to read tutorial flag", "error", err)
		return false
	}
	return done
}

func (a *Adapter) MarkTutorialDone(ctx context.Context) error {
	if err := a.store.SetFlag(ctx, TutorialFlag, true); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// ClearTutorial forgets onboarding completion.
func (a *Adapter) ClearTutorial(ctx context.Context) error {
	if err := a.store.SetFlag(ctx, TutorialFlag, false); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
