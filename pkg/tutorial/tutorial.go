// Package tutorial walks a first-time player through opening a chat and
// continuing a conversation. It listens to the engine's render stream rather
// than polling it.
package tutorial

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/chat-story/pkg/progression"
	"github.com/jwebster45206/chat-story/pkg/save"
	"github.com/jwebster45206/chat-story/pkg/script"
)

// Step is the stage of the tutorial.
type Step int

const (
	StepOpenChat Step = iota
	StepContinue
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepOpenChat:
		return "open-chat"
	case StepContinue:
		return "continue"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// Hint is what the UI should point at.
type Hint struct {
	Step     Step
	ChatID   script.ChatID
	ChatName string
	// HasTarget is false when no chat can be suggested yet.
	HasTarget bool
}

// Locator names the chat the player should open next.
type Locator func() (script.ChatID, bool)

const flagTimeout = 2 * time.Second

// Tutorial is a progression.Presenter; register it with the engine (usually
// through progression.Fanout).
type Tutorial struct {
	progression.NopPresenter

	script   *script.Script
	saver    *save.Adapter
	locate   Locator
	onChange func(Hint)
	logger   *slog.Logger

	mu   sync.Mutex
	step Step
	hint Hint
}

var _ progression.Presenter = (*Tutorial)(nil)

// New creates a tutorial. onChange receives every new hint, from the goroutine
// that drives the engine; it may be nil.
func New(g *script.Script, saver *save.Adapter, locate Locator, onChange func(Hint), logger *slog.Logger) *Tutorial {
	if onChange == nil {
		onChange = func(Hint) {}
	}
	return &Tutorial{
		script:   g,
		saver:    saver,
		locate:   locate,
		onChange: onChange,
		logger:   logger,
		step:     StepDone,
		hint:     Hint{Step: StepDone},
	}
}

// Start arms the tutorial unless the player already finished it. It reports
// whether the tutorial is active.
func (t *Tutorial) Start(ctx context.Context) (Hint, bool) {
	if t.saver.TutorialDone(ctx) {
		t.logger.Debug("Tutorial already completed")
		return Hint{Step: StepDone}, false
	}

	t.mu.Lock()
	t.step = StepOpenChat
	h := t.refreshLocked()
	t.mu.Unlock()

	t.logger.Info("Tutorial started", "target_chat", h.ChatID)
	t.onChange(h)
	return h, true
}

// Hint returns the current hint.
func (t *Tutorial) Hint() Hint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hint
}

// Active reports whether the tutorial is still running.
func (t *Tutorial) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step != StepDone
}

// Skip ends the tutorial and records it as completed.
func (t *Tutorial) Skip(ctx context.Context) error {
	t.mu.Lock()
	if t.step == StepDone {
		t.mu.Unlock()
		return nil
	}
	t.step = StepDone
	h := t.refreshLocked()
	t.mu.Unlock()

	t.onChange(h)
	return t.saver.MarkTutorialDone(ctx)
}

// Restart clears the completion flag and begins again from the first step.
func (t *Tutorial) Restart(ctx context.Context) error {
	if err := t.saver.ClearTutorial(ctx); err != nil {
		return err
	}
	t.Start(ctx)
	return nil
}

func (t *Tutorial) OnChatOpened(chatID script.ChatID) {
	t.mu.Lock()
	if t.step != StepOpenChat || (t.hint.HasTarget && t.hint.ChatID != chatID) {
		t.mu.Unlock()
		return
	}
	t.step = StepContinue
	t.hint.Step = StepContinue
	t.hint.ChatID = chatID
	if c, ok := t.script.Chat(chatID); ok {
		t.hint.ChatName = c.Name
	}
	h := t.hint
	t.mu.Unlock()

	t.logger.Debug("Tutorial step", "step", h.Step, "chat_id", chatID)
	t.onChange(h)
}

func (t *Tutorial) OnContinueRequested(chatID script.ChatID) {
	t.mu.Lock()
	if t.step != StepContinue {
		t.mu.Unlock()
		return
	}
	t.step = StepDone
	h := t.refreshLocked()
	t.mu.Unlock()

	t.logger.Info("Tutorial completed", "chat_id", chatID)
	t.onChange(h)

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()
	if err := t.saver.MarkTutorialDone(ctx); err != nil {
		t.logger.Warn("Failed to record tutorial completion", "error", err)
	}
}

// OnChatListInvalidated re-targets the first step when new content arrives.
func (t *Tutorial) OnChatListInvalidated() {
	t.mu.Lock()
	if t.step != StepOpenChat {
		t.mu.Unlock()
		return
	}
	before := t.hint
	h := t.refreshLocked()
	t.mu.Unlock()

	if h != before {
		t.onChange(h)
	}
}

func (t *Tutorial) refreshLocked() Hint {
	h := Hint{Step: t.step}
	if t.step == StepOpenChat {
		if id, ok := t.locate(); ok {
			h.ChatID = id
			h.HasTarget = true
			if c, found := t.script.Chat(id); found {
				h.ChatName = c.Name
			}
		}
	}
	t.hint = h
	return h
}
