package ratelimit

import (
	"log"
	"sync"
	"time"
)

// Limiter implements fixed-window request counting per caller identity.
//
// The window is approximate: a caller that bursts at a window boundary can
// reach up to 2x the nominal rate across the two adjacent windows. This is a
// known property of fixed-window counting and is accepted here in exchange
// for O(1) state per identity.
type Limiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	logger  *log.Logger

	stop chan struct{}
}

type entry struct {
	count       int
	windowStart time.Time
}

// New creates a limiter allowing limit requests per identity per window and
// starts a background sweep that evicts fully expired windows.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		entries: make(map[string]*entry),
		logger:  log.New(log.Writer(), "[RATELIMIT] ", log.LstdFlags),
		stop:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// Limit returns the configured per-window request budget.
func (l *Limiter) Limit() int { return l.limit }

// Allow records a request for identity and reports whether it is within the
// window budget, how many requests remain, and how long until the window
// resets. Calls for the same identity are serialized by the limiter's lock,
// so no caller observes a torn (count, windowStart) pair.
func (l *Limiter) Allow(identity string) (allowed bool, remaining int, resetIn time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[identity]
	if !ok || now.Sub(e.windowStart) > l.window {
		l.entries[identity] = &entry{count: 1, windowStart: now}
		return true, l.limit - 1, l.window
	}

	resetIn = l.window - now.Sub(e.windowStart)
	if resetIn < 0 {
		resetIn = 0
	}
	if e.count < l.limit {
		e.count++
		return true, l.limit - e.count, resetIn
	}
	return false, 0, resetIn
}

// Cleanup removes entries whose window has fully expired and returns how many
// were evicted.
func (l *Limiter) Cleanup() int {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, e := range l.entries {
		if now.Sub(e.windowStart) > l.window {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	close(l.stop)
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				l.logger.Printf("evicted %d expired rate windows", n)
			}
		case <-l.stop:
			return
		}
	}
}
