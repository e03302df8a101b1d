package delivery

import (
	"sync"
	"time"
)

// Scheduler is a cancelable periodic-callback capability. Schedule starts
// invoking tick every interval until the returned cancel is called. After
// cancel returns, no further ticks are delivered.
type Scheduler interface {
	Schedule(interval time.Duration, tick func()) (cancel func())
}

// TickerScheduler is the production Scheduler backed by time.Ticker.
type TickerScheduler struct{}

// Schedule starts a goroutine driving tick off a ticker. Cancel is
// idempotent and stops the ticker.
func (TickerScheduler) Schedule(interval time.Duration, tick func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tick()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
