package rpcclient

import (
	"context"
	"time"

	"seidash/internal/events"
	"seidash/internal/jsonrpc"
	"seidash/internal/metrics"
	"seidash/internal/session"
)

// Sender dispatches a single request. *transport.HTTP implements it.
type Sender interface {
	Send(ctx context.Context, sessionID string, req *jsonrpc.Request) (*jsonrpc.Response, error)
}

type options struct {
	sender   Sender
	metrics  *metrics.Metrics
	notifier *events.Notifier
	now      func() time.Time
	newID    func() string
	health   session.HealthConfig
	dedupe   bool
}

// Option configures a Client
type Option func(*options)

// WithSender replaces the HTTP transport
func WithSender(s Sender) Option {
	return func(o *options) {
		o.sender = s
	}
}

// WithMetrics reports into m instead of a private registry
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithNotifier publishes events on n instead of a new Notifier
func WithNotifier(n *events.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithClock overrides the clock used by the cache, limiter and session
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSessionIDGenerator overrides session id generation
func WithSessionIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// WithHealth sets when the connection is reported degraded
func WithHealth(cfg session.HealthConfig) Option {
	return func(o *options) {
		o.health = cfg
	}
}

// WithInFlightDedupe shares one network call between concurrent identical
// cacheable calls. A deduplicated call is not cancelled when only one of
// its callers gives up.
func WithInFlightDedupe() Option {
	return func(o *options) {
		o.dedupe = true
	}
}

type callOptions struct {
	ttl     time.Duration
	noCache bool
}

// CallOption configures a single Call
type CallOption func(*callOptions)

// WithTTL overrides the cache TTL for the result
func WithTTL(ttl time.Duration) CallOption {
	return func(o *callOptions) {
		o.ttl = ttl
	}
}

// WithoutCache bypasses the cache for both lookup and store
func WithoutCache() CallOption {
	return func(o *callOptions) {
		o.noCache = true
	}
}
