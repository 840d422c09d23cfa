package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection state of a Manager
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Session is a logical, client-identified connection to the remote service
type Session struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	RequestCount   uint64    `json:"requestCount"`
	IsActive       bool      `json:"isActive"`
}

// Manager tracks the session and its state machine:
//
//	disconnected -> connecting -> connected
//	connecting   -> disconnected (attempts+1)
//	connected    -> disconnected (End)
type Manager struct {
	mu        sync.RWMutex
	state     State
	session   *Session
	pendingID string
	attempts  int
	lastError string

	health *Health
	now    func() time.Time
	newID  func() string
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the clock
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator overrides session id generation
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

// WithHealth sets the health tracker configuration
func WithHealth(cfg HealthConfig) Option {
	return func(m *Manager) {
		m.health = NewHealth(cfg)
	}
}

// NewManager creates a Manager in the disconnected state
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		state:  StateDisconnected,
		health: NewHealth(HealthConfig{}),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin moves to connecting and returns the id the new session will use.
// If already connected it returns the current id and false.
func (m *Manager) Begin() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnected && m.session != nil {
		return m.session.ID, false
	}
	if m.state == StateConnecting && m.pendingID != "" {
		return m.pendingID, true
	}

	m.state = StateConnecting
	m.pendingID = m.newID()
	return m.pendingID, true
}

// Established completes the connect attempt begun for id.
// Returns false if that attempt was abandoned, e.g. by End while connecting.
func (m *Manager) Established(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnecting || m.pendingID != id {
		return Session{}, false
	}

	now := m.now()
	m.session = &Session{
		ID:             id,
		CreatedAt:      now,
		LastActivityAt: now,
		IsActive:       true,
	}
	m.state = StateConnected
	m.pendingID = ""
	m.attempts = 0
	m.lastError = ""
	m.health.Reset()
	return *m.session, true
}

// Failed records a failed connect attempt
func (m *Manager) Failed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateDisconnected
	m.session = nil
	m.pendingID = ""
	m.attempts++
	if err != nil {
		m.lastError = err.Error()
	}
}

// End destroys the session. reason is nil for a requested disconnect.
// Returns the ended session and whether one was active.
func (m *Manager) End(reason error) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endLocked(reason)
}

// EndIf ends the session only if id is still the active one
func (m *Manager) EndIf(id string, reason error) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.session.ID != id {
		return Session{}, false
	}
	return m.endLocked(reason)
}

func (m *Manager) endLocked(reason error) (Session, bool) {
	if reason != nil {
		m.lastError = reason.Error()
	}

	if m.session == nil {
		m.state = StateDisconnected
		m.pendingID = ""
		return Session{}, false
	}

	ended := *m.session
	ended.IsActive = false
	m.session = nil
	m.pendingID = ""
	m.state = StateDisconnected
	return ended, true
}

// Touch records a successful dispatch on the active session
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return
	}
	m.session.RequestCount++
	m.session.LastActivityAt = m.now()
}

// Snapshot returns a copy of the active session
func (m *Manager) Snapshot() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// ID returns the active session id, or empty when disconnected
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return ""
	}
	return m.session.ID
}

// State returns the current state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if a session is active
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Attempts returns failed connect attempts since the last success
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// LastError returns the message of the last connection-affecting error
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// SetLastError records a non-fatal error message
func (m *Manager) SetLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastError = err.Error()
	m.mu.Unlock()
}

// Health returns the dispatch health tracker
func (m *Manager) Health() *Health {
	return m.health
}
