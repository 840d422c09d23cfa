package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// slowHandlerThreshold is the handler duration above which a warning is logged
const slowHandlerThreshold = time.Second

// Handler receives the payload of one topic
type Handler[T any] func(T)

type handlerEntry[T any] struct {
	id      uint64
	handler Handler[T]
	active  atomic.Bool
}

// Subscription identifies a registered handler
type Subscription struct {
	id    uint64
	topic string
	off   func() bool
}

// ID returns the subscription id, unique within its topic
func (s *Subscription) ID() uint64 {
	return s.id
}

// Topic returns the name of the topic the handler is registered on
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the handler. Returns false if it was already removed.
func (s *Subscription) Unsubscribe() bool {
	if s == nil || s.off == nil {
		return false
	}
	return s.off()
}

// Topic is a typed publish/subscribe channel for one event.
//
// Handlers run synchronously on the emitting goroutine in registration order.
// A handler removed while an emission is in progress is not called for the
// remainder of that emission.
type Topic[T any] struct {
	name   string
	logger zerolog.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers []*handlerEntry[T]
}

// NewTopic creates an empty topic
func NewTopic[T any](name string, logger zerolog.Logger) *Topic[T] {
	return &Topic[T]{
		name:   name,
		logger: logger.With().Str("topic", name).Logger(),
	}
}

// Name returns the event name
func (t *Topic[T]) Name() string {
	return t.name
}

// On registers a handler
func (t *Topic[T]) On(handler Handler[T]) *Subscription {
	t.mu.Lock()
	t.nextID++
	entry := &handlerEntry[T]{id: t.nextID, handler: handler}
	entry.active.Store(true)
	t.handlers = append(t.handlers, entry)
	t.mu.Unlock()

	return &Subscription{
		id:    entry.id,
		topic: t.name,
		off:   func() bool { return t.remove(entry.id) },
	}
}

// Off removes the handler registered under sub
func (t *Topic[T]) Off(sub *Subscription) bool {
	if sub == nil || sub.topic != t.name {
		return false
	}
	return t.remove(sub.id)
}

func (t *Topic[T]) remove(id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, entry := range t.handlers {
		if entry.id != id {
			continue
		}
		entry.active.Store(false)
		handlers := make([]*handlerEntry[T], 0, len(t.handlers)-1)
		handlers = append(handlers, t.handlers[:i]...)
		handlers = append(handlers, t.handlers[i+1:]...)
		t.handlers = handlers
		return true
	}
	return false
}

// Len returns the number of registered handlers
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}

// Emit delivers payload to every handler and returns how many ran without panicking
func (t *Topic[T]) Emit(payload T) int {
	t.mu.RLock()
	handlers := t.handlers
	t.mu.RUnlock()

	delivered := 0
	for _, entry := range handlers {
		if !entry.active.Load() {
			continue
		}
		if t.deliver(entry, payload) {
			delivered++
		}
	}
	return delivered
}

func (t *Topic[T]) deliver(entry *handlerEntry[T], payload T) (ok bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Uint64("subscription", entry.id).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
			ok = false
		}
	}()

	entry.handler(payload)

	if d := time.Since(start); d > slowHandlerThreshold {
		t.logger.Warn().Uint64("subscription", entry.id).Dur("duration", d).Msg("event handler slow")
	}
	return true
}
