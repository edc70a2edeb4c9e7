package script

import (
	"errors"
	"sort"
)

// EventID identifies one entry of the script. IDs are unique and define narrative order.
type EventID int

// ChatID identifies a conversation thread. Authored chats use positive ids.
type ChatID int

// NoChat is the zero ChatID; it never names an authored chat.
const NoChat ChatID = 0

var (
	ErrInvalidScript = errors.New("invalid script")
	ErrGraphLookup   = errors.New("graph lookup failed")
)

// Timestamp is the in-story date and time shown next to a message.
type Timestamp struct {
	Date string `json:"date" yaml:"date"`
	Time string `json:"time" yaml:"time"`
}

// Chat is a named conversation thread.
type Chat struct {
	ID      ChatID   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Members []string `json:"members,omitempty" yaml:"members,omitempty"`
}

// Event is either a *Message or a *PlayerChoice.
type Event interface {
	EventID() EventID
	Chat() ChatID
	event()
}

// Message is a line of dialogue in a chat.
type Message struct {
	ID        EventID    `json:"id"`
	ChatID    ChatID     `json:"chatId"`
	Author    string     `json:"author"`
	Text      string     `json:"text"`
	Timestamp *Timestamp `json:"timestamp,omitempty"` // nil on synthesized messages
	NextID    *EventID   `json:"nextId,omitempty"`
}

func (m *Message) EventID() EventID { return m.ID }
func (m *Message) Chat() ChatID     { return m.ChatID }
func (m *Message) event()           {}

// Choice is a single option of a PlayerChoice prompt.
type Choice struct {
	Text   string  `json:"text" yaml:"text"`
	NextID EventID `json:"nextId" yaml:"nextId"`
}

// PlayerChoice pauses the story until the player picks one of Choices.
type PlayerChoice struct {
	ID      EventID  `json:"id"`
	ChatID  ChatID   `json:"chatId"`
	Choices []Choice `json:"choices"`
}

func (p *PlayerChoice) EventID() EventID { return p.ID }
func (p *PlayerChoice) Chat() ChatID     { return p.ChatID }
func (p *PlayerChoice) event()           {}

// Script is the immutable story graph. Build one with Parse or Load.
type Script struct {
	Title   string
	EntryID EventID

	chats     []Chat
	events    []Event
	fileOrder []EventID
	byID      map[EventID]Event
	chatIndex map[ChatID]int
}

// Lookup returns the event with the given id.
func (s *Script) Lookup(id EventID) (Event, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Chat returns the chat with the given id.
func (s *Script) Chat(id ChatID) (Chat, bool) {
	i, ok := s.chatIndex[id]
	if !ok {
		return Chat{}, false
	}
	return s.chats[i], true
}

// Chats returns the chats in file order.
func (s *Script) Chats() []Chat {
	out := make([]Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// ChatOrder returns the position of a chat in file order, or -1.
func (s *Script) ChatOrder(id ChatID) int {
	if i, ok := s.chatIndex[id]; ok {
		return i
	}
	return -1
}

// Events returns every event ascending by id.
func (s *Script) Events() []Event {
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Len is the number of events in the script.
func (s *Script) Len() int {
	return len(s.events)
}

// Successor returns the event that follows e when no choice is involved:
// nextId when authored, id+1 otherwise. PlayerChoice events have no successor.
func (s *Script) Successor(e Event) (Event, bool) {
	id, ok := SuccessorID(e)
	if !ok {
		return nil, false
	}
	return s.Lookup(id)
}

// SuccessorID is the id Successor looks up, whether or not it exists.
func SuccessorID(e Event) (EventID, bool) {
	m, ok := e.(*Message)
	if !ok {
		return 0, false
	}
	if m.NextID != nil {
		return *m.NextID, true
	}
	return m.ID + 1, true
}

func newScript(title string, entry *EventID, chats []Chat, events []Event) *Script {
	s := &Script{
		Title:     title,
		chats:     chats,
		events:    events,
		byID:      make(map[EventID]Event, len(events)),
		chatIndex: make(map[ChatID]int, len(chats)),
	}
	for i, c := range chats {
		s.chatIndex[c.ID] = i
	}
	for _, e := range events {
		s.byID[e.EventID()] = e
		s.fileOrder = append(s.fileOrder, e.EventID())
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].EventID() < s.events[j].EventID()
	})
	switch {
	case entry != nil:
		s.EntryID = *entry
	case len(events) > 0:
		s.EntryID = events[0].EventID()
	}
	return s
}
