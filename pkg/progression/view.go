package progression

import (
	"github.com/jwebster45206/chat-story/pkg/script"
)

// PendingKind is what a chat is waiting on.
type PendingKind string

const (
	PendingNone     PendingKind = "none"
	PendingContinue PendingKind = "continue"
	PendingChoices  PendingKind = "choices"
)

// Pending is the next action available in a chat.
type Pending struct {
	Kind   PendingKind
	NextID script.EventID        // set for PendingContinue
	Prompt *script.PlayerChoice  // set for PendingChoices
}

// Item is one visible entry of a chat: a script message or the player's echoed choice.
type Item struct {
	Message *script.Message
	Echo    bool
}

// View is what a player sees when a chat is open.
type View struct {
	Chat    script.Chat
	Items   []Item
	Pending Pending
}

// Empty reports whether the chat has nothing unlocked ("No messages yet").
func (v View) Empty() bool {
	return len(v.Items) == 0 && v.Pending.Kind != PendingChoices
}

// ChatSummary is one row of the chat list.
type ChatSummary struct {
	Chat   script.Chat
	Last   *script.Message // nil when nothing is visible yet
	Unread bool
	Next   bool // the chat the player should be nudged toward
}

// Outcome describes the effect of a progression call.
type Outcome struct {
	Unlocked []script.EventID
	Ignored  bool // stale or invalid request; nothing changed
	End      bool // the branch has no further content
}

// ChoiceRef names one option of a prompt.
type ChoiceRef struct {
	PromptID script.EventID
	Index    int
}

// InitResult describes the session after Initialize or NewGame.
type InitResult struct {
	Restored    bool
	Chats       []script.ChatID // chats with unlocked content
	CurrentChat *script.ChatID
	Progress    int
}

func echoMessage(pc *script.PlayerChoice, index int, author string) *script.Message {
	return &script.Message{
		ID:     pc.ID,
		ChatID: pc.ChatID,
		Author: author,
		Text:   pc.Choices[index].Text,
	}
}
