package ledger

import (
	"math"
	"sort"

	"github.com/jwebster45206/chat-story/pkg/script"
)

// Ledger records which events the player has unlocked, which chats they have
// viewed since new content arrived, and which option was taken at each prompt.
// It grows monotonically until Reset.
type Ledger struct {
	script   *script.Script
	unlocked map[script.EventID]struct{}
	viewed   map[script.ChatID]struct{}
	choices  map[script.EventID]int
}

// New creates an empty ledger over s.
func New(s *script.Script) *Ledger {
	return &Ledger{
		script:   s,
		unlocked: make(map[script.EventID]struct{}),
		viewed:   make(map[script.ChatID]struct{}),
		choices:  make(map[script.EventID]int),
	}
}

// Script returns the graph the ledger is bound to.
func (l *Ledger) Script() *script.Script {
	return l.script
}

// Unlock adds id to the unlocked set and reports whether it was newly added.
// Ids the script does not define are ignored. New content marks its chat unread.
func (l *Ledger) Unlock(id script.EventID) bool {
	e, ok := l.script.Lookup(id)
	if !ok {
		return false
	}
	if _, done := l.unlocked[id]; done {
		return false
	}
	l.unlocked[id] = struct{}{}
	delete(l.viewed, e.Chat())
	return true
}

func (l *Ledger) IsUnlocked(id script.EventID) bool {
	_, ok := l.unlocked[id]
	return ok
}

func (l *Ledger) Count() int {
	return len(l.unlocked)
}

// IDs returns the unlocked ids in ascending order.
func (l *Ledger) IDs() []script.EventID {
	ids := make([]script.EventID, 0, len(l.unlocked))
	for id := range l.unlocked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AllUnlockedFor returns the unlocked events of one chat ascending by id.
func (l *Ledger) AllUnlockedFor(chatID script.ChatID) []script.Event {
	var out []script.Event
	for _, e := range l.script.Events() {
		if e.Chat() == chatID && l.IsUnlocked(e.EventID()) {
			out = append(out, e)
		}
	}
	return out
}

// HasContent reports whether any event of the chat is unlocked.
func (l *Ledger) HasContent(chatID script.ChatID) bool {
	_, ok := l.Frontier(chatID)
	return ok
}

// Frontier returns the most recently unlocked event of a chat.
func (l *Ledger) Frontier(chatID script.ChatID) (script.Event, bool) {
	events := l.script.Events()
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		if e.Chat() == chatID && l.IsUnlocked(e.EventID()) {
			return e, true
		}
	}
	return nil, false
}

// Latest returns the unlocked event with the highest id.
func (l *Ledger) Latest() (script.Event, bool) {
	events := l.script.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if l.IsUnlocked(events[i].EventID()) {
			return events[i], true
		}
	}
	return nil, false
}

func (l *Ledger) MarkViewed(chatID script.ChatID) {
	l.viewed[chatID] = struct{}{}
}

func (l *Ledger) IsViewed(chatID script.ChatID) bool {
	_, ok := l.viewed[chatID]
	return ok
}

// Viewed returns the viewed chat ids in ascending order.
func (l *Ledger) Viewed() []script.ChatID {
	ids := make([]script.ChatID, 0, len(l.viewed))
	for id := range l.viewed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Choose records the option taken at a prompt. A prompt is consumed once;
// later calls return false and leave the first answer in place.
func (l *Ledger) Choose(promptID script.EventID, index int) bool {
	if _, done := l.choices[promptID]; done {
		return false
	}
	l.choices[promptID] = index
	return true
}

// Chosen returns the option index taken at a prompt.
func (l *Ledger) Chosen(promptID script.EventID) (int, bool) {
	i, ok := l.choices[promptID]
	return i, ok
}

// Choices returns a copy of every consumed prompt.
func (l *Ledger) Choices() map[script.EventID]int {
	out := make(map[script.EventID]int, len(l.choices))
	for k, v := range l.choices {
		out[k] = v
	}
	return out
}

// Progress is the share of the script unlocked, as a whole percent in [0, 100].
func (l *Ledger) Progress() int {
	total := l.script.Len()
	if total == 0 {
		return 0
	}
	p := int(math.Round(100 * float64(len(l.unlocked)) / float64(total)))
	return min(max(p, 0), 100)
}

// Reset clears all state.
func (l *Ledger) Reset() {
	clear(l.unlocked)
	clear(l.viewed)
	clear(l.choices)
}

// Restore replaces the ledger contents. Unknown event and chat ids are dropped
// and their count returned, so a save made against an older script still loads.
// A choice is kept only when its prompt is among the restored unlocked ids.
func (l *Ledger) Restore(unlocked []script.EventID, viewed []script.ChatID, choices map[script.EventID]int) (dropped int) {
	l.Reset()
	for _, id := range unlocked {
		if _, ok := l.script.Lookup(id); !ok {
			dropped++
			continue
		}
		l.unlocked[id] = struct{}{}
	}
	for _, id := range viewed {
		if _, ok := l.script.Chat(id); !ok {
			dropped++
			continue
		}
		l.viewed[id] = struct{}{}
	}
	for prompt, index := range choices {
		e, ok := l.script.Lookup(prompt)
		pc, isChoice := e.(*script.PlayerChoice)
		if !ok || !isChoice || index < 0 || index >= len(pc.Choices) {
			dropped++
			continue
		}
		if _, unlocked := l.unlocked[prompt]; !unlocked {
			dropped++
			continue
		}
		l.choices[prompt] = index
	}
	return dropped
}
