package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/chat-story/pkg/ledger"
	"github.com/jwebster45206/chat-story/pkg/locate"
	"github.com/jwebster45206/chat-story/pkg/save"
	"github.com/jwebster45206/chat-story/pkg/script"
)

const (
	DefaultInitialBatch = 1
	DefaultTypingDelay  = 1200 * time.Millisecond
	DefaultPlayerName   = "Player"

	noticeSaveFailed  = "Failed to save progress"
	noticeLoadFailed  = "Saved progress could not be loaded; starting a new story"
	noticeResetFailed = "Failed to reset progress"
)

// Policy holds the pacing knobs of the engine.
type Policy struct {
	// InitialBatch is how many consecutive messages a fresh session reveals
	// before waiting for the player.
	InitialBatch int
	// TypingDelay is shown before a non-player message is revealed. Zero disables it.
	TypingDelay time.Duration
	// PlayerName is the author of "sent" messages; they are never delayed.
	PlayerName string
}

func DefaultPolicy() Policy {
	return Policy{
		InitialBatch: DefaultInitialBatch,
		TypingDelay:  DefaultTypingDelay,
		PlayerName:   DefaultPlayerName,
	}
}

// Session is the mutable state of one playthrough.
type Session struct {
	ID          uuid.UUID
	Ledger      *ledger.Ledger
	CurrentChat *script.ChatID
}

// Engine drives story progression over an immutable script. Every mutating
// call holds opMu for its whole duration, including the typing delay, so
// calls never interleave. mu guards session state for concurrent readers and
// is never held while presenters run.
type Engine struct {
	script    *script.Script
	policy    Policy
	saver     *save.Adapter
	presenter Presenter
	logger    *slog.Logger
	typing    Typing

	opMu sync.Mutex

	// mu guards the fields below.
	mu       sync.RWMutex
	session  Session
	degraded bool
}

// New creates an engine. saver persists checkpoints; presenter may be nil.
func New(g *script.Script, saver *save.Adapter, presenter Presenter, policy Policy, logger *slog.Logger) *Engine {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if policy.InitialBatch < 1 {
		policy.InitialBatch = DefaultInitialBatch
	}
	if policy.PlayerName == "" {
		policy.PlayerName = DefaultPlayerName
	}
	return &Engine{
		script:    g,
		policy:    policy,
		saver:     saver,
		presenter: presenter,
		logger:    logger,
		session: Session{
			ID:     uuid.New(),
			Ledger: ledger.New(g),
		},
	}
}

// run collects the effects of one call while mu is held.
type run struct {
	out      []Instruction
	unlocked []script.EventID
	end      bool
	changed  bool
}

func (r *run) emit(in Instruction) {
	r.out = append(r.out, in)
}

// Script returns the story graph.
func (e *Engine) Script() *script.Script {
	return e.script
}

// Policy returns the pacing policy in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// SessionID identifies the current playthrough; NewGame issues a new one.
func (e *Engine) SessionID() uuid.UUID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.ID
}

// Initialize restores the saved session, or starts the story from its entry
// event when there is no usable save.
func (e *Engine) Initialize(ctx context.Context) (InitResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	var notices []Instruction
	unavailable := false
	snap, err := e.saver.Load(ctx)
	switch {
	case errors.Is(err, save.ErrSnapshotCorrupt):
		e.logger.Warn("Saved progress is corrupt; starting fresh", "error", err)
		snap = nil
	case errors.Is(err, save.ErrStorageUnavailable):
		e.logger.Error("Saved progress unavailable; continuing in memory", "error", err)
		unavailable = true
		notices = append(notices, Instruction{Kind: KindNotice, Text: noticeLoadFailed})
		snap = nil
	case err != nil:
		return InitResult{}, err
	}

	e.mu.Lock()
	if unavailable {
		e.degraded = true
	}
	r := &run{out: notices}
	res := InitResult{}
	if snap != nil {
		current, dropped := save.Apply(snap, e.session.Ledger)
		if dropped > 0 {
			e.logger.Warn("Dropped saved ids the script does not define", "count", dropped)
		}
		if e.session.Ledger.Count() == 0 {
			e.logger.Warn("Saved progress has nothing unlocked; starting fresh", "dropped", dropped)
			snap = nil
		} else {
			e.session.CurrentChat = current
			if snap.SessionID != uuid.Nil {
				e.session.ID = snap.SessionID
			}
			res.Restored = true
		}
	}
	if snap == nil {
		e.session.Ledger.Reset()
		e.session.CurrentChat = nil
		e.walkFromEntry(r)
	}
	res = e.initResult(res.Restored)
	r.emit(Instruction{Kind: KindChatListChanged})
	r.emit(Instruction{Kind: KindProgressChanged, Progress: res.Progress})
	e.mu.Unlock()

	e.logger.Info("Session initialized",
		"session_id", e.SessionID(),
		"restored", res.Restored,
		"unlocked", len(r.unlocked),
		"progress", res.Progress)

	e.dispatch(ctx, r.out)
	e.checkpoint(ctx)
	return res, nil
}

// walkFromEntry unlocks up to InitialBatch consecutive messages from the entry
// event, stopping before a choice or a chat boundary. An entry that is itself
// a choice is the frontier and is unlocked.
func (e *Engine) walkFromEntry(r *run) {
	l := e.session.Ledger
	ev, ok := e.script.Lookup(e.script.EntryID)
	if !ok {
		return
	}

	for count := 0; count < e.policy.InitialBatch; {
		switch x := ev.(type) {
		case *script.PlayerChoice:
			if count == 0 && l.Unlock(x.ID) {
				r.unlocked = append(r.unlocked, x.ID)
			}
			return
		case *script.Message:
			if l.Unlock(x.ID) {
				r.unlocked = append(r.unlocked, x.ID)
			}
			count++
			next, found := e.script.Successor(x)
			if !found || next.Chat() != x.ChatID {
				return
			}
			ev = next
		}
	}
}

func (e *Engine) initResult(restored bool) InitResult {
	res := InitResult{
		Restored: restored,
		Progress: e.session.Ledger.Progress(),
	}
	for _, c := range e.script.Chats() {
		if e.session.Ledger.HasContent(c.ID) {
			res.Chats = append(res.Chats, c.ID)
		}
	}
	if e.session.CurrentChat != nil {
		c := *e.session.CurrentChat
		res.CurrentChat = &c
	}
	return res
}

// AdvanceOne reveals one event and applies the successor rules: same-chat
// messages wait for the player, a same-chat choice is presented at once, and
// content in another chat is unlocked immediately with a transition notice.
// An unknown id is the end of content, not an error.
func (e *Engine) AdvanceOne(ctx context.Context, id script.EventID) (Outcome, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	r := &run{}
	ev, ok := e.script.Lookup(id)
	if !ok {
		e.logger.Warn("Event not found; no further content", "event_id", id, "error", script.ErrGraphLookup)
		r.emit(Instruction{Kind: KindEndOfContent, ChatID: e.currentChatLocked()})
		r.end = true
	} else {
		e.reveal(r, ev, true)
	}
	return e.finish(ctx, r)
}

// SelectChoice takes one option of the prompt at the frontier of its chat.
// Requests for a prompt that is not the frontier, already answered, or out of
// range are stale UI events and are ignored.
func (e *Engine) SelectChoice(ctx context.Context, ref ChoiceRef) (Outcome, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	pc, reason := e.validChoice(ref)
	if reason != "" {
		e.mu.Unlock()
		e.logger.Debug("Ignoring invalid choice selection", "prompt_id", ref.PromptID, "index", ref.Index, "reason", reason)
		return Outcome{Ignored: true}, nil
	}

	r := &run{changed: true}
	l := e.session.Ledger
	l.Choose(pc.ID, ref.Index)
	r.emit(Instruction{Kind: KindChoiceRetracted, ChatID: pc.ChatID, EventID: pc.ID})
	r.emit(Instruction{
		Kind:    KindMessageRevealed,
		ChatID:  pc.ChatID,
		EventID: pc.ID,
		Message: echoMessage(pc, ref.Index, e.policy.PlayerName),
		Echo:    true,
	})

	target := pc.Choices[ref.Index].NextID
	next, ok := e.script.Lookup(target)
	if !ok {
		e.logger.Warn("Choice target not found; no further content", "prompt_id", pc.ID, "target", target, "error", script.ErrGraphLookup)
		r.emit(Instruction{Kind: KindEndOfContent, ChatID: pc.ChatID})
		r.end = true
	} else {
		e.follow(r, pc.ChatID, next)
	}
	return e.finish(ctx, r)
}

func (e *Engine) validChoice(ref ChoiceRef) (*script.PlayerChoice, string) {
	ev, ok := e.script.Lookup(ref.PromptID)
	if !ok {
		return nil, "unknown prompt"
	}
	pc, ok := ev.(*script.PlayerChoice)
	if !ok {
		return nil, "not a player choice"
	}
	l := e.session.Ledger
	if !l.IsUnlocked(pc.ID) {
		return nil, "prompt not unlocked"
	}
	if _, chosen := l.Chosen(pc.ID); chosen {
		return nil, "prompt already answered"
	}
	if f, _ := l.Frontier(pc.ChatID); f == nil || f.EventID() != pc.ID {
		return nil, "prompt is not the chat frontier"
	}
	if ref.Index < 0 || ref.Index >= len(pc.Choices) {
		return nil, "option out of range"
	}
	return pc, ""
}

// Continue resolves what the chat is waiting on and advances it.
func (e *Engine) Continue(ctx context.Context, chatID script.ChatID) (Outcome, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	r := &run{}
	r.emit(Instruction{Kind: KindContinueRequested, ChatID: chatID})

	l := e.session.Ledger
	frontier, ok := l.Frontier(chatID)
	if !ok {
		e.mu.Unlock()
		e.dispatch(ctx, r.out)
		return Outcome{Ignored: true}, nil
	}

	switch f := frontier.(type) {
	case *script.PlayerChoice:
		idx, chosen := l.Chosen(f.ID)
		if !chosen {
			// Still waiting on the player; show the options again.
			r.emit(Instruction{Kind: KindChoicesPresented, ChatID: f.ChatID, EventID: f.ID, Prompt: f})
			break
		}
		e.followID(r, f.ChatID, f.Choices[idx].NextID)
	case *script.Message:
		id, _ := script.SuccessorID(f)
		e.followID(r, f.ChatID, id)
	}
	return e.finish(ctx, r)
}

// followID continues from chat into the event id, if it is still locked.
func (e *Engine) followID(r *run, from script.ChatID, id script.EventID) {
	next, ok := e.script.Lookup(id)
	if !ok {
		r.emit(Instruction{Kind: KindEndOfContent, ChatID: from})
		r.end = true
		return
	}
	if e.session.Ledger.IsUnlocked(id) {
		return
	}
	e.follow(r, from, next)
}

// follow moves the story from chat into next on the player's behalf.
func (e *Engine) follow(r *run, from script.ChatID, next script.Event) {
	if next.Chat() != from {
		r.emit(Instruction{Kind: KindChatTransition, FromChatID: from, ChatID: next.Chat()})
		e.reveal(r, next, false)
		return
	}
	e.reveal(r, next, true)
}

// reveal unlocks ev and walks successors by the progression rules. paced is
// false for content that arrives through a transition: no typing delay.
func (e *Engine) reveal(r *run, ev script.Event, paced bool) {
	l := e.session.Ledger

	// Each hop unlocks a new event or stops, so the script length bounds the walk.
	for hops := 0; hops <= e.script.Len(); hops++ {
		switch x := ev.(type) {
		case *script.PlayerChoice:
			if l.Unlock(x.ID) {
				r.unlocked = append(r.unlocked, x.ID)
			}
			if _, chosen := l.Chosen(x.ID); !chosen {
				r.emit(Instruction{Kind: KindChoicesPresented, ChatID: x.ChatID, EventID: x.ID, Prompt: x})
			}
			return

		case *script.Message:
			if l.Unlock(x.ID) {
				r.unlocked = append(r.unlocked, x.ID)
				if paced && e.policy.TypingDelay > 0 && x.Author != e.policy.PlayerName {
					r.emit(Instruction{Kind: KindTyping, ChatID: x.ChatID, Author: x.Author})
				}
				r.emit(Instruction{Kind: KindMessageRevealed, ChatID: x.ChatID, EventID: x.ID, Message: x})
			}

			next, found := e.script.Successor(x)
			if !found {
				if x.NextID != nil {
					e.logger.Warn("nextId not found; branch ends here", "event_id", x.ID, "next_id", *x.NextID, "error", script.ErrGraphLookup)
				}
				r.emit(Instruction{Kind: KindEndOfContent, ChatID: x.ChatID})
				r.end = true
				return
			}
			if l.IsUnlocked(next.EventID()) {
				return
			}

			if next.Chat() != x.ChatID {
				r.emit(Instruction{Kind: KindChatTransition, FromChatID: x.ChatID, ChatID: next.Chat()})
				ev, paced = next, false
				continue
			}
			if _, isChoice := next.(*script.PlayerChoice); isChoice {
				ev = next
				continue
			}
			r.emit(Instruction{Kind: KindContinueAvailable, ChatID: x.ChatID, EventID: next.EventID()})
			return
		}
	}
}

// finish releases mu, runs the presenters and checkpoints. Called with both
// locks held; returns with only opMu held.
func (e *Engine) finish(ctx context.Context, r *run) (Outcome, error) {
	if len(r.unlocked) > 0 {
		r.changed = true
		r.emit(Instruction{Kind: KindChatListChanged})
		r.emit(Instruction{Kind: KindProgressChanged, Progress: e.session.Ledger.Progress()})
	}
	e.mu.Unlock()

	e.dispatch(ctx, r.out)
	if r.changed {
		e.checkpoint(ctx)
	}
	return Outcome{Unlocked: r.unlocked, End: r.end}, nil
}

// OpenChat marks a chat viewed, makes it the current chat and returns what
// it shows. A chat with nothing unlocked is returned empty and never becomes
// the current chat.
func (e *Engine) OpenChat(ctx context.Context, chatID script.ChatID) (View, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	chat, ok := e.script.Chat(chatID)
	if !ok {
		e.mu.Unlock()
		return View{}, fmt.Errorf("%w: chat %d", script.ErrGraphLookup, chatID)
	}

	l := e.session.Ledger
	changed := false
	if l.HasContent(chatID) {
		if !l.IsViewed(chatID) {
			l.MarkViewed(chatID)
			changed = true
		}
		if e.session.CurrentChat == nil || *e.session.CurrentChat != chatID {
			e.session.CurrentChat = &chatID
			changed = true
		}
	}
	view := e.viewLocked(chat)
	e.mu.Unlock()

	e.dispatch(ctx, []Instruction{
		{Kind: KindChatOpened, ChatID: chatID},
		{Kind: KindChatListChanged},
	})
	if changed {
		e.checkpoint(ctx)
	}
	return view, nil
}

// CloseChat clears the current chat pointer (back to the chat list).
func (e *Engine) CloseChat(ctx context.Context) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	changed := e.session.CurrentChat != nil
	e.session.CurrentChat = nil
	e.mu.Unlock()

	if changed {
		e.checkpoint(ctx)
	}
}

// View returns a chat's visible items without marking it viewed.
func (e *Engine) View(chatID script.ChatID) (View, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	chat, ok := e.script.Chat(chatID)
	if !ok {
		return View{}, false
	}
	return e.viewLocked(chat), true
}

func (e *Engine) viewLocked(chat script.Chat) View {
	l := e.session.Ledger
	v := View{Chat: chat, Pending: Pending{Kind: PendingNone}}

	for _, ev := range l.AllUnlockedFor(chat.ID) {
		switch x := ev.(type) {
		case *script.Message:
			v.Items = append(v.Items, Item{Message: x})
		case *script.PlayerChoice:
			if idx, chosen := l.Chosen(x.ID); chosen {
				v.Items = append(v.Items, Item{Message: echoMessage(x, idx, e.policy.PlayerName), Echo: true})
			}
		}
	}
	v.Pending = e.pendingLocked(chat.ID)
	return v
}

func (e *Engine) pendingLocked(chatID script.ChatID) Pending {
	l := e.session.Ledger
	frontier, ok := l.Frontier(chatID)
	if !ok {
		return Pending{Kind: PendingNone}
	}

	var nextID script.EventID
	switch f := frontier.(type) {
	case *script.PlayerChoice:
		idx, chosen := l.Chosen(f.ID)
		if !chosen {
			return Pending{Kind: PendingChoices, Prompt: f}
		}
		nextID = f.Choices[idx].NextID
	case *script.Message:
		nextID, _ = script.SuccessorID(f)
	}

	if _, exists := e.script.Lookup(nextID); !exists || l.IsUnlocked(nextID) {
		return Pending{Kind: PendingNone}
	}
	return Pending{Kind: PendingContinue, NextID: nextID}
}

// Pending returns what a chat is waiting on.
func (e *Engine) Pending(chatID script.ChatID) Pending {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pendingLocked(chatID)
}

// ChatList summarizes every chat in list order.
func (e *Engine) ChatList() []ChatSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	l := e.session.Ledger
	next, hasNext := locate.Next(l)
	chats := e.script.Chats()
	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		s := ChatSummary{
			Chat:   c,
			Unread: l.HasContent(c.ID) && !l.IsViewed(c.ID),
			Next:   hasNext && next == c.ID,
		}
		items := e.viewLocked(c).Items
		if len(items) > 0 {
			s.Last = items[len(items)-1].Message
		}
		out = append(out, s)
	}
	return out
}

// NextLocation names the chat holding the next thing to see.
func (e *Engine) NextLocation() (script.ChatID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return locate.Next(e.session.Ledger)
}

// CurrentChat returns the chat the player last had open.
func (e *Engine) CurrentChat() (script.ChatID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session.CurrentChat == nil {
		return 0, false
	}
	return *e.session.CurrentChat, true
}

// Progress is the share of the script unlocked, in whole percent.
func (e *Engine) Progress() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Ledger.Progress()
}

// Unlocked returns the unlocked ids ascending.
func (e *Engine) Unlocked() []script.EventID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Ledger.IDs()
}

// Viewed returns the viewed chat ids ascending.
func (e *Engine) Viewed() []script.ChatID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session.Ledger.Viewed()
}

func (e *Engine) currentChatLocked() script.ChatID {
	if e.session.CurrentChat != nil {
		return *e.session.CurrentChat
	}
	return script.NoChat
}

// NewGame clears the save slot and the in-memory session together, then
// starts the story from its entry event. If the slot cannot be cleared
// nothing changes and the error wraps save.ErrStorageUnavailable.
func (e *Engine) NewGame(ctx context.Context) (InitResult, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if err := e.saver.Reset(ctx); err != nil {
		e.logger.Error("Failed to reset saved progress", "error", err)
		e.dispatch(ctx, []Instruction{{Kind: KindNotice, Text: noticeResetFailed}})
		return InitResult{}, err
	}

	e.mu.Lock()
	e.session.Ledger.Reset()
	e.session.CurrentChat = nil
	e.session.ID = uuid.New()
	r := &run{}
	e.walkFromEntry(r)
	res := e.initResult(false)
	r.emit(Instruction{Kind: KindChatListChanged})
	r.emit(Instruction{Kind: KindProgressChanged, Progress: res.Progress})
	e.mu.Unlock()

	e.logger.Info("New game started", "session_id", e.SessionID())
	e.dispatch(ctx, r.out)
	e.checkpoint(ctx)
	return res, nil
}

// Save writes a checkpoint now.
func (e *Engine) Save(ctx context.Context) (save.Snapshot, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.checkpoint(ctx)
}

// SkipTyping resolves a pending typing delay early. It is safe to call from
// any goroutine and is a no-op when nothing is pending.
func (e *Engine) SkipTyping() bool {
	return e.typing.Skip()
}

// dispatch runs presenters in order, pausing after each typing instruction.
func (e *Engine) dispatch(ctx context.Context, out []Instruction) {
	for _, in := range out {
		in.Apply(e.presenter)
		if in.Kind == KindTyping {
			e.typing.Start(e.policy.TypingDelay).Wait(ctx)
		}
	}
}

// checkpoint saves the session. Storage failures degrade the session to
// in-memory play with a one-time notice; the next successful save clears it.
// Called with opMu held.
func (e *Engine) checkpoint(ctx context.Context) (save.Snapshot, error) {
	e.mu.RLock()
	snap, err := e.saver.Save(ctx, e.session.ID, e.session.Ledger, e.session.CurrentChat)
	e.mu.RUnlock()

	e.mu.Lock()
	wasDegraded := e.degraded
	e.degraded = err != nil
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("Checkpoint failed", "error", err)
		if !wasDegraded {
			e.dispatch(ctx, []Instruction{{Kind: KindNotice, Text: noticeSaveFailed}})
		}
		return snap, err
	}
	if wasDegraded {
		e.logger.Info("Storage recovered; progress is being saved again")
	}
	return snap, nil
}

// Degraded reports whether the last save attempt failed.
func (e *Engine) Degraded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.degraded
}
