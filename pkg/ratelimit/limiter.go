package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time so tests can drive the window deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Limiter admits requests within a sliding window. It never queues: a
// denied caller must fail the surrounding operation rather than wait.
type Limiter struct {
	mu         sync.Mutex
	clock      Clock
	limit      int
	burstLimit int // configuration only, not enforced by the window check
	window     time.Duration
	timestamps []time.Time
	lastReset  time.Time
}

type Option func(*Limiter)

func WithClock(clock Clock) Option {
	return func(l *Limiter) { l.clock = clock }
}

func WithBurstLimit(burst int) Option {
	return func(l *Limiter) { l.burstLimit = burst }
}

// New builds a limiter admitting at most requestsPerMinute calls in any
// trailing 60-second window.
func New(requestsPerMinute int, opts ...Option) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 100
	}
	l := &Limiter{
		clock:  systemClock{},
		limit:  requestsPerMinute,
		window: time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastReset = l.clock.Now()
	return l
}

// Admit records the request if capacity remains in the current window.
// Expired timestamps are dropped first, so capacity is regained exactly
// as entries age past the window.
func (l *Limiter) Admit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) >= l.limit {
		return false
	}

	l.timestamps = append(l.timestamps, now)
	return true
}

// InFlight reports how many admissions are still inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-l.window)
	count := 0
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Reset clears the window. Called on explicit cache clears; state is not
// persisted across restarts.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = nil
	l.lastReset = l.clock.Now()
}

func (l *Limiter) LastReset() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastReset
}
