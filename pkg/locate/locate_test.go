package locate

import (
	"testing"

	"github.com/jwebster45206/chat-story/pkg/ledger"
	"github.com/jwebster45206/chat-story/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `{
	"chats": [{"id": 10, "name": "A"}, {"id": 20, "name": "B"}, {"id": 30, "name": "C"}],
	"script": [
		{"id": 1, "type": "message", "chatId": 10, "text": "a1"},
		{"id": 2, "type": "message", "chatId": 10, "text": "a2"},
		{"id": 3, "type": "message", "chatId": 20, "text": "b1"},
		{"id": 4, "type": "message", "chatId": 30, "text": "c1"}
	]
}`

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	s, err := script.Parse([]byte(testScript), script.FormatJSON)
	require.NoError(t, err)
	return ledger.New(s)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name     string
		unlock   []script.EventID
		viewed   []script.ChatID
		expected script.ChatID
		found    bool
	}{
		{
			name:  "nothing unlocked",
			found: false,
		},
		{
			name:     "unread chat wins",
			unlock:   []script.EventID{1},
			expected: 10,
			found:    true,
		},
		{
			name:     "first unread in list order",
			unlock:   []script.EventID{1, 3, 4},
			viewed:   []script.ChatID{10},
			expected: 20,
			found:    true,
		},
		{
			name:     "all viewed, more in same chat",
			unlock:   []script.EventID{1},
			viewed:   []script.ChatID{10},
			expected: 10,
			found:    true,
		},
		{
			name:     "all viewed, story moves to another chat",
			unlock:   []script.EventID{1, 2},
			viewed:   []script.ChatID{10},
			expected: 20,
			found:    true,
		},
		{
			name:     "all viewed, end of script",
			unlock:   []script.EventID{1, 2, 3, 4},
			viewed:   []script.ChatID{10, 20, 30},
			expected: 30,
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			for _, id := range tt.unlock {
				l.Unlock(id)
			}
			for _, id := range tt.viewed {
				l.MarkViewed(id)
			}

			got, ok := Next(l)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestNext_Deterministic(t *testing.T) {
	l := newLedger(t)
	l.Unlock(1)
	l.Unlock(3)
	l.MarkViewed(10)

	first, ok := Next(l)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		got, _ := Next(l)
		assert.Equal(t, first, got)
	}
	assert.Equal(t, 2, l.Count(), "resolving does not mutate the ledger")
}
