package progression

import (
	"context"
	"sync"
	"time"
)

// Typing owns the single pending typing-indicator delay. At most one Wait is
// pending at a time: Start resolves any earlier one, so stale skip handles
// become no-ops.
type Typing struct {
	mu      sync.Mutex
	current *Wait
}

// Wait is one cancellable delay. It resolves on timeout or Skip, whichever
// comes first.
type Wait struct {
	done    chan struct{}
	once    sync.Once
	skipped bool
	timer   *time.Timer
}

// Start begins a delay of d.
func (t *Typing) Start(d time.Duration) *Wait {
	w := &Wait{done: make(chan struct{})}
	w.timer = time.AfterFunc(d, func() { w.resolve(false) })

	t.mu.Lock()
	prev := t.current
	t.current = w
	t.mu.Unlock()

	if prev != nil {
		prev.Skip()
	}
	return w
}

// Skip resolves the pending delay early. It reports false when nothing was pending.
func (t *Typing) Skip() bool {
	t.mu.Lock()
	w := t.current
	t.mu.Unlock()
	if w == nil {
		return false
	}
	return w.Skip()
}

// Skip resolves w early. It reports false when w had already resolved.
func (w *Wait) Skip() bool {
	if !w.resolve(true) {
		return false
	}
	w.timer.Stop()
	return true
}

// Done is closed once the delay resolves.
func (w *Wait) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the delay resolves and reports whether it was skipped.
// A cancelled ctx counts as a skip.
func (w *Wait) Wait(ctx context.Context) bool {
	select {
	case <-w.done:
	case <-ctx.Done():
		w.resolve(true)
	}
	return w.skipped
}

func (w *Wait) resolve(skipped bool) bool {
	resolved := false
	w.once.Do(func() {
		w.skipped = skipped
		close(w.done)
		resolved = true
	})
	return resolved
}
