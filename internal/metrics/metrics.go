package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "seidash_client"

// Metrics contains the Prometheus instruments of one RPC client
type Metrics struct {
	// Calls by method and outcome (ok, cached, or an error kind)
	Calls *prometheus.CounterVec
	// Transport attempts by outcome, including retries
	TransportAttempts *prometheus.CounterVec
	// Transport retries by failure kind
	TransportRetries *prometheus.CounterVec
	CallDuration     *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RateLimited prometheus.Counter

	Connected        prometheus.Gauge
	ConnectAttempts  *prometheus.CounterVec
	StreamEvents     *prometheus.CounterVec
	StreamReconnects prometheus.Counter
}

// New creates metrics registered on a private registry.
// Use NewWithRegistry to expose them on an existing one.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry initializes and registers metrics with a custom registry
func NewWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "RPC client calls by method and outcome",
		}, []string{"method", "outcome"}),
		TransportAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_attempts_total",
			Help:      "HTTP attempts made by the transport, including retries",
		}, []string{"outcome"}),
		TransportRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_retries_total",
			Help:      "Retries scheduled by the transport by failure kind",
		}, []string{"kind"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of RPC client calls that reached the network",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Calls answered from the response cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cacheable calls not found in the response cache",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Calls rejected by the client side rate limiter",
		}),
		Connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a session is established",
		}),
		ConnectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Session handshakes by outcome",
		}, []string{"outcome"}),
		StreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Push events received on the event stream by event name",
		}, []string{"event"}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Event stream redials",
		}),
	}
}
