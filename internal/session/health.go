package session

import "sync"

type healthState int

const (
	healthOK healthState = iota
	healthDegraded
	healthRecovering
)

// HealthConfig holds health tracker configuration
type HealthConfig struct {
	FailureThreshold  int
	RecoverySuccesses int
}

// Health marks a live session as degraded after consecutive failed dispatches
// and clears the mark after enough consecutive successes
type Health struct {
	cfg       HealthConfig
	state     healthState
	failures  int
	successes int
	mu        sync.RWMutex
}

// NewHealth creates a new Health tracker
func NewHealth(cfg HealthConfig) *Health {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.RecoverySuccesses <= 0 {
		cfg.RecoverySuccesses = 2
	}
	return &Health{
		cfg:   cfg,
		state: healthOK,
	}
}

// Degraded returns true while failures have not been cleared by successes
func (h *Health) Degraded() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state != healthOK
}

// RecordSuccess records a successful dispatch.
// Returns true if this success cleared the degraded state.
func (h *Health) RecordSuccess() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case healthDegraded:
		h.state = healthRecovering
		h.successes = 1
	case healthRecovering:
		h.successes++
	case healthOK:
		h.failures = 0
		return false
	}

	if h.successes >= h.cfg.RecoverySuccesses {
		h.state = healthOK
		h.failures = 0
		h.successes = 0
		return true
	}
	return false
}

// RecordFailure records a failed dispatch.
// Returns true if this failure moved the tracker into the degraded state.
func (h *Health) RecordFailure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case healthOK:
		h.failures++
		if h.failures >= h.cfg.FailureThreshold {
			h.state = healthDegraded
			return true
		}
	case healthRecovering:
		h.state = healthDegraded
		h.successes = 0
	}
	return false
}

// Reset returns to the healthy state
func (h *Health) Reset() {
	h.mu.Lock()
	h.state = healthOK
	h.failures = 0
	h.successes = 0
	h.mu.Unlock()
}
