// Package locate names the chat a player should be nudged toward next.
package locate

import (
	"github.com/jwebster45206/chat-story/pkg/ledger"
	"github.com/jwebster45206/chat-story/pkg/script"
)

// Next returns the chat holding the next thing to see. It reads l only, so
// repeated calls without a mutation in between return the same chat.
//
// Priority: the first chat in list order with unread content; then the chat
// the story is about to continue in, judged from the highest unlocked event;
// otherwise none.
func Next(l *ledger.Ledger) (script.ChatID, bool) {
	g := l.Script()

	for _, c := range g.Chats() {
		if l.HasContent(c.ID) && !l.IsViewed(c.ID) {
			return c.ID, true
		}
	}

	latest, ok := l.Latest()
	if ok {
		if next, found := g.Successor(latest); found {
			// Same chat means more to reveal here; a different chat means the
			// story is about to move there.
			return next.Chat(), true
		}
		return latest.Chat(), true
	}

	for _, c := range g.Chats() {
		if l.HasContent(c.ID) {
			return c.ID, true
		}
	}
	return 0, false
}
