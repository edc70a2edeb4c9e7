package ledger

import (
	"testing"

	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `{
	"chats": [{"id": 1, "name": "A"}, {"id": 2, "name": "B"}],
	"script": [
		{"id": 1, "type": "message", "chatId": 1, "author": "Mum", "text": "one"},
		{"id": 2, "type": "playerChoice", "chatId": 1, "choices": [{"text": "x", "nextId": 4}, {"text": "y", "nextId": 3}]},
		{"id": 3, "type": "message", "chatId": 2, "author": "Rex", "text": "three"},
		{"id": 4, "type": "message", "chatId": 1, "author": "Mum", "text": "four"}
	]
}`

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	s, err := script.Parse([]byte(testScript), script.FormatJSON)
	require.NoError(t, err)
	return New(s)
}

func TestLedger_UnlockIdempotent(t *testing.T) {
	l := newTestLedger(t)

	assert.True(t, l.Unlock(1))
	assert.False(t, l.Unlock(1), "second unlock is a no-op")
	assert.Equal(t, 1, l.Count())
	assert.True(t, l.IsUnlocked(1))
	assert.False(t, l.IsUnlocked(2))
}

func TestLedger_UnlockUnknownID(t *testing.T) {
	l := newTestLedger(t)

	assert.False(t, l.Unlock(99))
	assert.Equal(t, 0, l.Count())
}

func TestLedger_UnlockClearsViewed(t *testing.T) {
	l := newTestLedger(t)
	l.Unlock(1)
	l.MarkViewed(1)
	l.MarkViewed(2)
	require.True(t, l.IsViewed(1))

	l.Unlock(2)
	assert.False(t, l.IsViewed(1), "new content in chat 1 marks it unread")
	assert.True(t, l.IsViewed(2), "chat 2 untouched")

	l.MarkViewed(1)
	l.Unlock(2)
	assert.True(t, l.IsViewed(1), "re-unlocking is not new content")
}

func TestLedger_AllUnlockedFor(t *testing.T) {
	l := newTestLedger(t)
	l.Unlock(4)
	l.Unlock(3)
	l.Unlock(1)

	var ids []script.EventID
	for _, e := range l.AllUnlockedFor(1) {
		ids = append(ids, e.EventID())
	}
	assert.Equal(t, []script.EventID{1, 4}, ids)
	assert.Equal(t, []script.EventID{1, 3, 4}, l.IDs())

	assert.True(t, l.HasContent(2))
	f, ok := l.Frontier(1)
	require.True(t, ok)
	assert.Equal(t, script.EventID(4), f.EventID())

	latest, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, script.EventID(4), latest.EventID())
}

func TestLedger_Frontier_Empty(t *testing.T) {
	l := newTestLedger(t)

	_, ok := l.Frontier(1)
	assert.False(t, ok)
	_, ok = l.Latest()
	assert.False(t, ok)
	assert.False(t, l.HasContent(1))
}

func TestLedger_Choose(t *testing.T) {
	l := newTestLedger(t)

	assert.True(t, l.Choose(2, 1))
	assert.False(t, l.Choose(2, 0), "a prompt is consumed once")

	idx, ok := l.Chosen(2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, map[script.EventID]int{2: 1}, l.Choices())
}

func TestLedger_Progress(t *testing.T) {
	tests := []struct {
		name     string
		unlock   []script.EventID
		expected int
	}{
		{"empty", nil, 0},
		{"one of four", []script.EventID{1}, 25},
		{"three of four", []script.EventID{1, 2, 3}, 75},
		{"all", []script.EventID{1, 2, 3, 4}, 100},
		{"repeats do not count", []script.EventID{1, 1, 1}, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			for _, id := range tt.unlock {
				l.Unlock(id)
			}
			assert.Equal(t, tt.expected, l.Progress())
		})
	}
}

func TestLedger_ProgressRounding(t *testing.T) {
	s, err := script.Parse([]byte(`{"chats": [{"id": 1, "name": "A"}], "script": [
		{"id": 1, "type": "message", "chatId": 1},
		{"id": 2, "type": "message", "chatId": 1},
		{"id": 3, "type": "message", "chatId": 1}
	]}`), script.FormatJSON)
	require.NoError(t, err)

	l := New(s)
	l.Unlock(1)
	assert.Equal(t, 33, l.Progress())
	l.Unlock(2)
	assert.Equal(t, 67, l.Progress())
}

func TestLedger_ResetAndRestore(t *testing.T) {
	l := newTestLedger(t)
	l.Unlock(1)
	l.Unlock(2)
	l.MarkViewed(1)
	l.Choose(2, 0)

	l.Reset()
	assert.Equal(t, 0, l.Count())
	assert.Empty(t, l.Viewed())
	assert.Empty(t, l.Choices())

	dropped := l.Restore(
		[]script.EventID{1, 2, 4, 50},
		[]script.ChatID{1, 9},
		map[script.EventID]int{2: 0, 1: 0, 3: 5},
	)
	assert.Equal(t, 4, dropped, "unknown event, unknown chat, non-prompt choice and bad index")
	assert.Equal(t, []script.EventID{1, 2, 4}, l.IDs())
	assert.Equal(t, []script.ChatID{1}, l.Viewed())
	assert.Equal(t, map[script.EventID]int{2: 0}, l.Choices())
}

func TestLedger_RestoreDropsChoiceForLockedPrompt(t *testing.T) {
	l := newTestLedger(t)

	dropped := l.Restore([]script.EventID{1}, nil, map[script.EventID]int{2: 1})
	assert.Equal(t, 1, dropped)
	_, chosen := l.Chosen(2)
	assert.False(t, chosen, "a prompt that was never unlocked cannot be answered")

	// Unlocking the prompt later leaves it open for the player.
	l.Unlock(2)
	f, ok := l.Frontier(1)
	require.True(t, ok)
	assert.Equal(t, script.EventID(2), f.EventID())
	_, chosen = l.Chosen(2)
	assert.False(t, chosen)
}
