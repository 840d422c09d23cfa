package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { return "sess-1" }),
	)

	assert.Equal(t, StateDisconnected, m.State())
	assert.Empty(t, m.ID())

	id, fresh := m.Begin()
	require.True(t, fresh)
	assert.Equal(t, "sess-1", id)
	assert.Equal(t, StateConnecting, m.State())

	s, ok := m.Established(id)
	require.True(t, ok)
	assert.True(t, s.IsActive)
	assert.Equal(t, now, s.CreatedAt)
	assert.True(t, m.IsConnected())

	now = now.Add(time.Second)
	m.Touch()
	m.Touch()
	snap, ok := m.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.RequestCount)
	assert.Equal(t, now, snap.LastActivityAt)

	again, fresh := m.Begin()
	assert.False(t, fresh, "begin on a live session is a no-op")
	assert.Equal(t, "sess-1", again)

	ended, wasActive := m.End(nil)
	assert.True(t, wasActive)
	assert.False(t, ended.IsActive)
	assert.Equal(t, StateDisconnected, m.State())
	_, ok = m.Snapshot()
	assert.False(t, ok)

	_, wasActive = m.End(nil)
	assert.False(t, wasActive)
}

func TestManager_FailedConnectCountsAttempts(t *testing.T) {
	m := NewManager()

	m.Begin()
	m.Failed(errors.New("handshake refused"))
	m.Begin()
	m.Failed(errors.New("handshake refused again"))

	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 2, m.Attempts())
	assert.Equal(t, "handshake refused again", m.LastError())

	id, _ := m.Begin()
	m.Established(id)
	assert.Equal(t, 0, m.Attempts())
	assert.Empty(t, m.LastError())
}

func TestManager_FatalEndKeepsReason(t *testing.T) {
	m := NewManager()
	id, _ := m.Begin()
	m.Established(id)

	_, wasActive := m.End(errors.New("unauthorized"))
	assert.True(t, wasActive)
	assert.Equal(t, "unauthorized", m.LastError())
}

func TestManager_EndIfIgnoresStaleID(t *testing.T) {
	m := NewManager()
	old, _ := m.Begin()
	m.Established(old)
	m.End(nil)

	current, _ := m.Begin()
	m.Established(current)

	_, ended := m.EndIf(old, errors.New("unauthorized"))
	assert.False(t, ended)
	assert.True(t, m.IsConnected())
	assert.Empty(t, m.LastError())

	s, ended := m.EndIf(current, errors.New("unauthorized"))
	assert.True(t, ended)
	assert.Equal(t, current, s.ID)
	assert.False(t, s.IsActive)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_EstablishedAfterEndRefused(t *testing.T) {
	m := NewManager()
	id, _ := m.Begin()

	// Disconnect while the handshake is in flight
	_, wasActive := m.End(nil)
	assert.False(t, wasActive)

	_, ok := m.Established(id)
	assert.False(t, ok)
	assert.Equal(t, StateDisconnected, m.State())
	assert.Empty(t, m.ID())

	// A later attempt with a new id still succeeds
	next, fresh := m.Begin()
	require.True(t, fresh)
	assert.NotEqual(t, id, next)
	_, ok = m.Established(id)
	assert.False(t, ok, "stale id")
	_, ok = m.Established(next)
	assert.True(t, ok)
}

func TestManager_UniqueIDs(t *testing.T) {
	m := NewManager()
	first, _ := m.Begin()
	m.Established(first)
	m.End(nil)
	second, _ := m.Begin()
	assert.NotEqual(t, first, second)
}

func TestHealth_DegradeAndRecover(t *testing.T) {
	h := NewHealth(HealthConfig{FailureThreshold: 2, RecoverySuccesses: 2})

	assert.False(t, h.RecordFailure())
	assert.False(t, h.Degraded())
	assert.True(t, h.RecordFailure())
	assert.True(t, h.Degraded())

	assert.False(t, h.RecordSuccess())
	assert.True(t, h.Degraded(), "one success only starts recovery")

	h.RecordFailure()
	assert.True(t, h.Degraded())

	h.RecordSuccess()
	assert.True(t, h.RecordSuccess())
	assert.False(t, h.Degraded())
}

func TestHealth_SuccessResetsFailureCount(t *testing.T) {
	h := NewHealth(HealthConfig{FailureThreshold: 2})

	h.RecordFailure()
	h.RecordSuccess()
	h.RecordFailure()
	assert.False(t, h.Degraded())
}
