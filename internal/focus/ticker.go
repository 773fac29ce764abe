package focus

import (
	"sync"
	"time"
)

// Ticker drives a callback on a fixed period until stopped. It replaces
// implicit client-side interval effects with an explicit, cancellable
// contract: Stop is idempotent, synchronous, and guarantees the callback
// will not fire again after it returns.
type Ticker struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// StartTicker begins invoking fn every period. The first invocation happens
// one period after the call, not immediately.
func StartTicker(period time.Duration, fn func()) *Ticker {
	if period <= 0 {
		period = time.Second
	}

	t := &Ticker{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return t
}

// Stop cancels the ticker and waits for the tick goroutine to exit.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	<-t.done
}
