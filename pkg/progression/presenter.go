package progression

import (
	"sync"

	"github.com/jwebster45206/chat-story/pkg/script"
)

// Presenter receives render instructions from the Engine. Callbacks run on the
// goroutine that made the engine call, in order, after the ledger has been
// updated. A presenter may read from the engine (ChatList, NextLocation) but
// must not start another engine operation from inside a callback.
type Presenter interface {
	OnMessageRevealed(msg *script.Message, echo bool)
	OnChoicesPresented(prompt *script.PlayerChoice)
	OnChoiceRetracted(chatID script.ChatID, promptID script.EventID)
	OnChatTransition(from, to script.ChatID)
	OnContinueAvailable(chatID script.ChatID, next script.EventID)
	OnChatListInvalidated()
	OnProgressChanged(percent int)

	OnTyping(chatID script.ChatID, author string)
	// OnEndOfContent gets script.NoChat when the ending belongs to no chat.
	OnEndOfContent(chatID script.ChatID)
	OnNotice(text string)
	OnChatOpened(chatID script.ChatID)
	OnContinueRequested(chatID script.ChatID)
}

// Kind names an instruction in the render stream.
type Kind string

const (
	KindMessageRevealed   Kind = "message.revealed"
	KindChoicesPresented  Kind = "choices.presented"
	KindChoiceRetracted   Kind = "choices.retracted"
	KindChatTransition    Kind = "chat.transition"
	KindContinueAvailable Kind = "continue.available"
	KindChatListChanged   Kind = "chatlist.invalidated"
	KindProgressChanged   Kind = "progress.changed"
	KindTyping            Kind = "typing"
	KindEndOfContent      Kind = "content.end"
	KindNotice            Kind = "notice"
	KindChatOpened        Kind = "chat.opened"
	KindContinueRequested Kind = "continue.requested"
)

// Instruction is one entry of the render stream, the value form of a
// Presenter callback.
type Instruction struct {
	Kind       Kind                 `json:"kind"`
	ChatID     script.ChatID        `json:"chatId"`
	FromChatID script.ChatID        `json:"fromChatId,omitempty"`
	EventID    script.EventID       `json:"eventId,omitempty"`
	Message    *script.Message      `json:"message,omitempty"`
	Prompt     *script.PlayerChoice `json:"prompt,omitempty"`
	Echo       bool                 `json:"echo,omitempty"`
	Author     string               `json:"author,omitempty"`
	Progress   int                  `json:"progress,omitempty"`
	Text       string               `json:"text,omitempty"`
}

// Apply invokes the matching callback on p.
func (in Instruction) Apply(p Presenter) {
	switch in.Kind {
	case KindMessageRevealed:
		p.OnMessageRevealed(in.Message, in.Echo)
	case KindChoicesPresented:
		p.OnChoicesPresented(in.Prompt)
	case KindChoiceRetracted:
		p.OnChoiceRetracted(in.ChatID, in.EventID)
	case KindChatTransition:
		p.OnChatTransition(in.FromChatID, in.ChatID)
	case KindContinueAvailable:
		p.OnContinueAvailable(in.ChatID, in.EventID)
	case KindChatListChanged:
		p.OnChatListInvalidated()
	case KindProgressChanged:
		p.OnProgressChanged(in.Progress)
	case KindTyping:
		p.OnTyping(in.ChatID, in.Author)
	case KindEndOfContent:
		p.OnEndOfContent(in.ChatID)
	case KindNotice:
		p.OnNotice(in.Text)
	case KindChatOpened:
		p.OnChatOpened(in.ChatID)
	case KindContinueRequested:
		p.OnContinueRequested(in.ChatID)
	}
}

// StreamFunc adapts a function consuming Instructions into a Presenter.
type StreamFunc func(Instruction)

var _ Presenter = StreamFunc(nil)

func (f StreamFunc) OnMessageRevealed(msg *script.Message, echo bool) {
	f(Instruction{Kind: KindMessageRevealed, ChatID: msg.ChatID, EventID: msg.ID, Message: msg, Echo: echo})
}

func (f StreamFunc) OnChoicesPresented(prompt *script.PlayerChoice) {
	f(Instruction{Kind: KindChoicesPresented, ChatID: prompt.ChatID, EventID: prompt.ID, Prompt: prompt})
}

func (f StreamFunc) OnChoiceRetracted(chatID script.ChatID, promptID script.EventID) {
	f(Instruction{Kind: KindChoiceRetracted, ChatID: chatID, EventID: promptID})
}

func (f StreamFunc) OnChatTransition(from, to script.ChatID) {
	f(Instruction{Kind: KindChatTransition, FromChatID: from, ChatID: to})
}

func (f StreamFunc) OnContinueAvailable(chatID script.ChatID, next script.EventID) {
	f(Instruction{Kind: KindContinueAvailable, ChatID: chatID, EventID: next})
}

func (f StreamFunc) OnChatListInvalidated() {
	f(Instruction{Kind: KindChatListChanged})
}

func (f StreamFunc) OnProgressChanged(percent int) {
	f(Instruction{Kind: KindProgressChanged, Progress: percent})
}

func (f StreamFunc) OnTyping(chatID script.ChatID, author string) {
	f(Instruction{Kind: KindTyping, ChatID: chatID, Author: author})
}

func (f StreamFunc) OnEndOfContent(chatID script.ChatID) {
	f(Instruction{Kind: KindEndOfContent, ChatID: chatID})
}

func (f StreamFunc) OnNotice(text string) {
	f(Instruction{Kind: KindNotice, Text: text})
}

func (f StreamFunc) OnChatOpened(chatID script.ChatID) {
	f(Instruction{Kind: KindChatOpened, ChatID: chatID})
}

func (f StreamFunc) OnContinueRequested(chatID script.ChatID) {
	f(Instruction{Kind: KindContinueRequested, ChatID: chatID})
}

// Fanout delivers every instruction to each presenter in order.
func Fanout(presenters ...Presenter) Presenter {
	return StreamFunc(func(in Instruction) {
		for _, p := range presenters {
			in.Apply(p)
		}
	})
}

// NopPresenter ignores everything. Embed it to implement only some callbacks.
type NopPresenter struct{}

var _ Presenter = NopPresenter{}

func (NopPresenter) OnMessageRevealed(*script.Message, bool)             {}
func (NopPresenter) OnChoicesPresented(*script.PlayerChoice)             {}
func (NopPresenter) OnChoiceRetracted(script.ChatID, script.EventID)     {}
func (NopPresenter) OnChatTransition(script.ChatID, script.ChatID)       {}
func (NopPresenter) OnContinueAvailable(script.ChatID, script.EventID)   {}
func (NopPresenter) OnChatListInvalidated()                              {}
func (NopPresenter) OnProgressChanged(int)                               {}
func (NopPresenter) OnTyping(script.ChatID, string)                      {}
func (NopPresenter) OnEndOfContent(script.ChatID)                        {}
func (NopPresenter) OnNotice(string)                                     {}
func (NopPresenter) OnChatOpened(script.ChatID)                          {}
func (NopPresenter) OnContinueRequested(script.ChatID)                   {}

// Recorder keeps every instruction it receives. Safe for concurrent use.
type Recorder struct {
	StreamFunc

	mu           sync.Mutex
	instructions []Instruction
}

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.StreamFunc = r.record
	return r
}

func (r *Recorder) record(in Instruction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructions = append(r.instructions, in)
}

// Instructions returns a copy of everything recorded so far.
func (r *Recorder) Instructions() []Instruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Instruction, len(r.instructions))
	copy(out, r.instructions)
	return out
}

// Kinds returns the recorded kinds, optionally filtered to the given ones.
func (r *Recorder) Kinds(only ...Kind) []Kind {
	keep := make(map[Kind]bool, len(only))
	for _, k := range only {
		keep[k] = true
	}
	var out []Kind
	for _, in := range r.Instructions() {
		if len(only) == 0 || keep[in.Kind] {
			out = append(out, in.Kind)
		}
	}
	return out
}

// Reset forgets recorded instructions.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructions = nil
}
