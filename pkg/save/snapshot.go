package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/chat-story/pkg/ledger"
	"github.com/jwebster45206/chat-story/pkg/script"
)

// FormatVersion is written into every snapshot. Snapshots with a different
// major version are rejected.
const FormatVersion = "1.0"

var (
	ErrSnapshotCorrupt    = errors.New("snapshot corrupt")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Snapshot is the persisted single-slot save of a session.
type Snapshot struct {
	SessionID     uuid.UUID              `json:"sessionId"`
	UnlockedIDs   []script.EventID       `json:"unlockedIds"`
	ViewedChatIDs []script.ChatID        `json:"viewedChatIds"`
	CurrentChatID *script.ChatID         `json:"currentChatId"`
	Timestamp     int64                  `json:"timestamp"` // unix milliseconds
	Progress      int                    `json:"progress"`
	Version       string                 `json:"version"`
	Choices       map[script.EventID]int `json:"choices,omitempty"`
}

// SavedAt returns Timestamp as a time.
func (s *Snapshot) SavedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Capture builds a snapshot of the ledger and current chat pointer.
func Capture(sessionID uuid.UUID, l *ledger.Ledger, current *script.ChatID, now time.Time) Snapshot {
	snap := Snapshot{
		SessionID:     sessionID,
		UnlockedIDs:   l.IDs(),
		ViewedChatIDs: l.Viewed(),
		Timestamp:     now.UnixMilli(),
		Progress:      l.Progress(),
		Version:       FormatVersion,
		Choices:       l.Choices(),
	}
	if current != nil {
		c := *current
		snap.CurrentChatID = &c
	}
	return snap
}

// Apply loads a snapshot into l and returns the current chat pointer to use.
// Ids the script no longer defines are dropped; a current chat without any
// unlocked content is cleared.
func Apply(snap *Snapshot, l *ledger.Ledger) (current *script.ChatID, dropped int) {
	dropped = l.Restore(snap.UnlockedIDs, snap.ViewedChatIDs, snap.Choices)
	if snap.CurrentChatID != nil && l.HasContent(*snap.CurrentChatID) {
		c := *snap.CurrentChatID
		current = &c
	} else if snap.CurrentChatID != nil {
		dropped++
	}
	return current, dropped
}

// Encode serializes a snapshot.
func Encode(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses and shape-checks a stored snapshot. Every failure wraps
// ErrSnapshotCorrupt.
func Decode(data []byte) (*Snapshot, error) {
	var probe struct {
		UnlockedIDs *[]script.EventID `json:"unlockedIds"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if probe.UnlockedIDs == nil {
		return nil, fmt.Errorf("%w: unlockedIds is missing", ErrSnapshotCorrupt)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	major, _, _ := strings.Cut(snap.Version, ".")
	wantMajor, _, _ := strings.Cut(FormatVersion, ".")
	if major != wantMajor {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrSnapshotCorrupt, snap.Version)
	}
	if snap.Progress < 0 || snap.Progress > 100 {
		return nil, fmt.Errorf("%w: progress %d out of range", ErrSnapshotCorrupt, snap.Progress)
	}
	return &snap, nil
}
