package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Status reports the admission state of a Limiter
type Status struct {
	Remaining int `json:"remaining"`
	// ResetTime is when the oldest recorded request leaves the window.
	// Zero when no request is recorded.
	ResetTime time.Time `json:"resetTime"`
}

// RetryAfter returns how long to wait from now until one more slot frees up
func (s Status) RetryAfter(now time.Time) time.Duration {
	if s.Remaining > 0 || s.ResetTime.IsZero() {
		return 0
	}
	if d := s.ResetTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter is a sliding window request counter.
// At most maxRequests timestamps are ever admitted within any window-long interval.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu         sync.Mutex
	timestamps []time.Time // ascending
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the clock, used by tests
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter admitting maxRequests per window
func New(maxRequests int, window time.Duration, opts ...Option) (*Limiter, error) {
	if maxRequests <= 0 {
		return nil, fmt.Errorf("max requests must be positive, got %d", maxRequests)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		timestamps:  make([]time.Time, 0, maxRequests),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// CanMakeRequest returns true if a request would be admitted right now.
// It does not record anything.
func (l *Limiter) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	return len(l.timestamps) < l.maxRequests
}

// RecordRequest records an admitted request at the current time
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	l.timestamps = append(l.timestamps, now)
}

// Allow checks and records in one step. When the window is full nothing is
// recorded and the returned Status carries the reset time.
func (l *Limiter) Allow() (bool, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	if len(l.timestamps) >= l.maxRequests {
		return false, l.status()
	}
	l.timestamps = append(l.timestamps, now)
	return true, l.status()
}

// Status returns the remaining capacity and the next reset time
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	return l.status()
}

// Reset forgets every recorded request
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.timestamps = l.timestamps[:0]
	l.mu.Unlock()
}

// status must be called with mu held and after purge
func (l *Limiter) status() Status {
	s := Status{Remaining: l.maxRequests - len(l.timestamps)}
	if s.Remaining < 0 {
		s.Remaining = 0
	}
	if len(l.timestamps) > 0 {
		s.ResetTime = l.timestamps[0].Add(l.window)
	}
	return s
}

// purge drops timestamps that are outside the window ending at now
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
