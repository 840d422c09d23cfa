package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"seidash/internal/config"
	"seidash/internal/events"
	"seidash/internal/metrics"
	"seidash/internal/transport"
)

// Event names pushed by the server
const (
	EventNewBlock       = "newBlock"
	EventNewTransaction = "newTransaction"
	EventMarketUpdate   = "marketUpdate"
	EventNFTActivity    = "nftActivity"
)

const (
	defaultReadTimeout = 60 * time.Second
	defaultDedupSize   = 1024
	handshakeTimeout   = 10 * time.Second
	writeTimeout       = 10 * time.Second
)

// ErrTooManyReconnects is returned by Run when the stream could not be re-established
var ErrTooManyReconnects = errors.New("event stream: too many failed reconnects")

// Frame is one message on the event stream
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Config for creating a new Listener
type Config struct {
	URL string
	// ReconnectInterval is the minimum time between two dials
	ReconnectInterval time.Duration
	// PingInterval of 0 disables keepalive pings
	PingInterval time.Duration
	// ReadTimeout closes a silent connection, defaults to 60s
	ReadTimeout time.Duration
	// MaxReconnectAttempts is the number of consecutive failed dials tolerated, 0 means unlimited
	MaxReconnectAttempts int
	DedupSize            int

	// SessionID supplies the session id sent with each dial
	SessionID func() string
	Notifier  *events.Notifier
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Listener receives pushed domain events over a websocket and publishes
// them on the notifier topics
type Listener struct {
	url                  string
	reconnectInterval    time.Duration
	pingInterval         time.Duration
	readTimeout          time.Duration
	maxReconnectAttempts int

	sessionID func() string
	notifier  *events.Notifier
	metrics   *metrics.Metrics
	dedup     *Deduplicator
	dialer    *websocket.Dialer
	logger    zerolog.Logger
	now       func() time.Time

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex
}

// New creates a new Listener
func New(cfg Config) (*Listener, error) {
	if cfg.URL == "" {
		return nil, errors.New("event stream URL is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.PingInterval > 0 && cfg.ReadTimeout <= cfg.PingInterval {
		cfg.ReadTimeout = 2 * cfg.PingInterval
	}
	if cfg.DedupSize <= 0 {
		cfg.DedupSize = defaultDedupSize
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.SessionID == nil {
		cfg.SessionID = func() string { return "" }
	}

	dedup, err := NewDeduplicator(cfg.DedupSize)
	if err != nil {
		return nil, err
	}

	return &Listener{
		url:                  cfg.URL,
		reconnectInterval:    cfg.ReconnectInterval,
		pingInterval:         cfg.PingInterval,
		readTimeout:          cfg.ReadTimeout,
		maxReconnectAttempts: cfg.MaxReconnectAttempts,
		sessionID:            cfg.SessionID,
		notifier:             cfg.Notifier,
		metrics:              cfg.Metrics,
		dedup:                dedup,
		dialer:               &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		logger:               cfg.Logger.With().Str("component", "stream").Logger(),
		now:                  time.Now,
	}, nil
}

// NewFromConfig creates a Listener for the configured event stream endpoint
func NewFromConfig(cfg *config.Config, notifier *events.Notifier, m *metrics.Metrics, sessionID func() string, logger zerolog.Logger) (*Listener, error) {
	return New(Config{
		URL:                  cfg.Server.WSURL,
		ReconnectInterval:    cfg.Server.GetReconnectIntervalDuration(),
		PingInterval:         cfg.Server.GetPingIntervalDuration(),
		MaxReconnectAttempts: cfg.Server.MaxReconnectAttempts,
		SessionID:            sessionID,
		Notifier:             notifier,
		Metrics:              m,
		Logger:               logger,
	})
}

// Connected returns true while a stream connection is open
func (l *Listener) Connected() bool {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.conn != nil
}

// Run dials the stream and redials after every disconnect until ctx is done.
// Dials are spaced at least ReconnectInterval apart. Returns nil on shutdown and
// ErrTooManyReconnects after MaxReconnectAttempts consecutive failed dials.
func (l *Listener) Run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(l.reconnectInterval), 1)
	failures := 0

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}

		conn, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			l.logger.Warn().Err(err).Int("failures", failures).Msg("event stream dial failed")
			if l.maxReconnectAttempts > 0 && failures >= l.maxReconnectAttempts {
				return fmt.Errorf("%w: %v", ErrTooManyReconnects, err)
			}
			continue
		}
		failures = 0

		err = l.serve(ctx, conn)
		if ctx.Err() != nil {
			l.logger.Info().Msg("event stream stopped")
			return nil
		}
		l.metrics.StreamReconnects.Inc()
		l.logger.Warn().Err(err).Msg("event stream lost, reconnecting")
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if id := l.sessionID(); id != "" {
		header.Set(transport.SessionHeader, id)
	}

	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect event stream (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect event stream: %w", err)
	}
	l.logger.Info().Str("url", l.url).Msg("event stream connected")
	return conn, nil
}

// serve reads frames from conn until it fails or ctx is done
func (l *Listener) serve(ctx context.Context, conn *websocket.Conn) error {
	var wg sync.WaitGroup
	connCtx, cancel := context.WithCancel(ctx)

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	defer func() {
		l.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		l.writeMu.Unlock()
		cancel()
		conn.Close()
		wg.Wait()
		l.connMu.Lock()
		l.conn = nil
		l.connMu.Unlock()
	}()

	// Unblock ReadMessage on shutdown
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-connCtx.Done()
		conn.Close()
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	})

	if l.pingInterval > 0 {
		wg.Add(1)
		go l.pingLoop(connCtx, conn, &wg)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(l.readTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.handle(data)
	}
}

func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
			l.writeMu.Unlock()
			if err != nil {
				l.logger.Debug().Err(err).Msg("ping write failed")
				return
			}
		}
	}
}

// handle decodes one frame and publishes it on the matching topic
func (l *Listener) handle(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		l.metrics.StreamEvents.WithLabelValues("invalid").Inc()
		l.logger.Debug().Err(err).Int("size", len(data)).Msg("ignoring malformed stream frame")
		return
	}

	if l.dedup.IsDuplicate(frame.Event, frame.Data) {
		l.metrics.StreamEvents.WithLabelValues("duplicate").Inc()
		return
	}

	payload := events.Payload{Data: frame.Data, ReceivedAt: l.now()}
	switch frame.Event {
	case EventNewBlock:
		l.notifier.Blockchain.Emit(events.BlockchainEvent{Type: events.BlockchainNewBlock, Payload: payload})
	case EventNewTransaction:
		l.notifier.Blockchain.Emit(events.BlockchainEvent{Type: events.BlockchainNewTransaction, Payload: payload})
	case EventMarketUpdate:
		l.notifier.Market.Emit(events.MarketUpdate{Payload: payload})
	case EventNFTActivity:
		l.notifier.NFT.Emit(events.NFTActivity{Payload: payload})
	default:
		l.metrics.StreamEvents.WithLabelValues("unknown").Inc()
		l.logger.Debug().Str("event", frame.Event).Msg("ignoring unknown stream event")
		return
	}
	l.metrics.StreamEvents.WithLabelValues(frame.Event).Inc()
}
