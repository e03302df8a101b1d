package delivery

import (
	"sync"

	"github.com/assessly/assessly-backend/internal/model"
)

// Signal is an environment event observed while an attempt is active.
type Signal string

const (
	// SignalHidden fires when the assessment view loses visibility
	// (tab switch, window minimize).
	SignalHidden Signal = "hidden"
	// SignalRightClick fires on a context-menu attempt.
	SignalRightClick Signal = "right-click"
	// SignalFullscreenExit fires when the client leaves full-screen mode.
	SignalFullscreenExit Signal = "fullscreen-exit"
)

// SignalSource is an event-subscription capability for environment
// signals. Subscribe registers fn and returns an unsubscribe that, once
// called, guarantees fn is never invoked again.
type SignalSource interface {
	Subscribe(fn func(Signal)) (unsubscribe func())
}

// SignalFeed is a fan-out SignalSource fed by Emit. The WebSocket layer
// pushes the client's integrity events into it.
type SignalFeed struct {
	mu   sync.Mutex
	subs map[int]func(Signal)
	next int
}

// NewSignalFeed creates an empty feed.
func NewSignalFeed() *SignalFeed {
	return &SignalFeed{subs: make(map[int]func(Signal))}
}

// Subscribe registers fn. The returned unsubscribe is idempotent.
func (f *SignalFeed) Subscribe(fn func(Signal)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Emit delivers sig to every current subscriber.
func (f *SignalFeed) Emit(sig Signal) {
	f.mu.Lock()
	fns := make([]func(Signal), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(sig)
	}
}

// violationFor maps a signal to a violation type under the assessment's
// browser-security settings. Tab switches are always recorded; the other
// signals only when the matching lockdown flag is set.
func violationFor(sig Signal, sec model.BrowserSecurity) (model.ViolationType, bool) {
	switch sig {
	case SignalHidden:
		return model.ViolationTabSwitch, true
	case SignalRightClick:
		return model.ViolationRightClick, sec.BlockRightClick
	case SignalFullscreenExit:
		return model.ViolationFullscreenExit, sec.FullScreen
	default:
		return "", false
	}
}
