package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"seidash/internal/cache"
	"seidash/internal/config"
	"seidash/internal/events"
	"seidash/internal/jsonrpc"
	"seidash/internal/metrics"
	"seidash/internal/ratelimit"
	"seidash/internal/session"
	"seidash/internal/transport"
)

var errConnectAbandoned = errors.New("disconnected while connecting")

// Session management methods
const (
	MethodHealthCheck = "health_check"
	MethodEndSession  = "end_session"
)

// Client is the single entry point for remote calls. It owns its cache,
// rate limiter and session; nothing is shared between clients.
type Client struct {
	cfg    *config.Config
	logger zerolog.Logger

	sender   Sender
	cache    *cache.Manager[json.RawMessage]
	rules    *cache.Rules
	limiter  *ratelimit.Limiter
	session  *session.Manager
	notifier *events.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
	dedupe   bool

	connectGroup singleflight.Group
	callGroup    singleflight.Group
	requestID    atomic.Int64

	statusMu sync.RWMutex
	status   events.ConnectionStatus
}

// New creates a disconnected Client. A nil cfg uses config.Default().
func New(cfg *config.Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With().Str("component", "rpcclient").Logger()
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.notifier == nil {
		o.notifier = events.NewNotifier(logger)
	}
	if o.sender == nil {
		o.sender = transport.NewFromConfig(cfg, o.metrics, logger)
	}

	store, err := cache.NewManager[json.RawMessage](cache.Options{
		MaxSize:    cfg.Cache.MaxSize,
		DefaultTTL: cfg.Cache.GetTTLDuration(),
		Now:        o.now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	limiter, err := ratelimit.New(cfg.RateLimit.MaxRequestsPerMinute, cfg.RateLimit.GetWindowDuration(), ratelimit.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	sessionOpts := []session.Option{session.WithClock(o.now), session.WithHealth(o.health)}
	if o.newID != nil {
		sessionOpts = append(sessionOpts, session.WithIDGenerator(o.newID))
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		sender:   o.sender,
		cache:    store,
		rules:    cache.NewRules(cfg.Cache.GetTTLDuration(), cfg.Cache.DisabledMethods),
		limiter:  limiter,
		session:  session.NewManager(sessionOpts...),
		notifier: o.notifier,
		metrics:  o.metrics,
		now:      o.now,
		dedupe:   o.dedupe,
	}
	c.metrics.Connected.Set(0)
	return c, nil
}

// Notifier returns the event topics of the client
func (c *Client) Notifier() *events.Notifier {
	return c.notifier
}

// Status returns the connection status last published on the Status topic
func (c *Client) Status() events.ConnectionStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// SessionID returns the active session id, empty when disconnected
func (c *Client) SessionID() string {
	return c.session.ID()
}

// Session returns a copy of the active session
func (c *Client) Session() (session.Session, bool) {
	return c.session.Snapshot()
}

// CacheStats returns cache diagnostics
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// RateLimitStatus returns the remaining admissions in the current window
func (c *Client) RateLimitStatus() ratelimit.Status {
	return c.limiter.Status()
}

// Connect establishes a session. It is a no-op when connected, and concurrent
// callers share one handshake.
func (c *Client) Connect(ctx context.Context) error {
	if c.session.IsConnected() {
		return nil
	}

	// The handshake outlives a caller that gives up, other callers may be waiting on it
	ch := c.connectGroup.DoChan("connect", func() (interface{}, error) {
		return nil, c.connect(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return &Error{Kind: KindCanceled, Method: MethodHealthCheck, Message: msgCanceled, Err: ctx.Err()}
	}
}

func (c *Client) connect(ctx context.Context) error {
	id, fresh := c.session.Begin()
	if !fresh {
		return nil
	}

	c.logger.Debug().Str("sessionId", id).Msg("connecting")

	req, err := jsonrpc.NewRequest(MethodHealthCheck, nil, c.nextRequestID())
	if err != nil {
		c.session.Failed(err)
		return &Error{Kind: KindConnection, Method: MethodHealthCheck, Message: msgConnection, Err: err}
	}

	resp, err := c.sender.Send(ctx, id, req)
	if err == nil && resp.HasError() {
		err = resp.Error
	}
	if err != nil {
		c.session.Failed(err)
		c.metrics.ConnectAttempts.WithLabelValues("failed").Inc()
		c.notifyStatus()
		c.logger.Warn().Err(err).Int("attempts", c.session.Attempts()).Msg("connect failed")
		return &Error{Kind: KindConnection, Method: MethodHealthCheck, Message: msgConnection, Err: err}
	}

	s, ok := c.session.Established(id)
	if !ok {
		// Disconnect ran while the handshake was in flight
		c.metrics.ConnectAttempts.WithLabelValues("abandoned").Inc()
		c.logger.Info().Str("sessionId", id).Msg("connect abandoned by disconnect")
		c.endRemote(ctx, id)
		return &Error{Kind: KindCanceled, Method: MethodHealthCheck, Message: msgCanceled, Err: errConnectAbandoned}
	}
	c.metrics.ConnectAttempts.WithLabelValues("ok").Inc()
	c.logger.Info().Str("sessionId", s.ID).Msg("connected")

	status, _ := c.publishStatus()
	c.notifier.Connected.Emit(events.ConnectedEvent{SessionID: s.ID, At: s.CreatedAt})
	c.notifier.Status.Emit(status)
	return nil
}

// Disconnect notifies the server on a best-effort basis, then clears the
// session and the cache. It never fails.
func (c *Client) Disconnect(ctx context.Context) {
	if id := c.session.ID(); id != "" {
		c.endRemote(ctx, id)
	}

	ended, wasActive := c.session.End(nil)
	c.cache.Clear()

	if !wasActive {
		return
	}

	c.logger.Info().Str("sessionId", ended.ID).Uint64("requests", ended.RequestCount).Msg("disconnected")
	status, _ := c.publishStatus()
	c.notifier.Disconnected.Emit(events.DisconnectedEvent{SessionID: ended.ID, At: c.now()})
	c.notifier.Status.Emit(status)
}

// endRemote tells the server that session id is over. Failures are only logged.
func (c *Client) endRemote(ctx context.Context, id string) {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.Server.GetTimeoutDuration())
	defer cancel()

	req, err := jsonrpc.NewRequest(MethodEndSession, nil, c.nextRequestID())
	if err != nil {
		return
	}
	if _, err := c.sender.Send(sendCtx, id, req); err != nil {
		c.logger.Debug().Err(err).Str("sessionId", id).Msg("end_session failed, disconnecting anyway")
	}
}

// Call performs method with params and returns the raw result.
//
// A fresh cached result is returned without touching the network or the rate
// limiter. Otherwise the call is admitted by the rate limiter, a session is
// ensured and the request is dispatched. Successful results are cached with
// the method's TTL; failures are never cached.
func (c *Client) Call(ctx context.Context, method string, params interface{}, opts ...CallOption) (json.RawMessage, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	if method == "" {
		return nil, &Error{Kind: KindRequest, Message: msgInvalidInput, Err: errors.New("method is required")}
	}

	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, &Error{Kind: KindRequest, Method: method, Message: msgInvalidInput, Err: err}
	}

	ttl, cacheable := c.rules.TTLFor(method)
	if co.noCache {
		cacheable = false
	}
	if co.ttl > 0 {
		ttl = co.ttl
	}

	key := cache.GenerateCacheKey(method, rawParams)
	if cacheable {
		if cached, ok := c.cache.Get(key); ok {
			c.metrics.CacheHits.Inc()
			c.metrics.Calls.WithLabelValues(method, "cached").Inc()
			return cloneRaw(cached), nil
		}
		c.metrics.CacheMisses.Inc()
	}

	var result json.RawMessage
	if c.dedupe && cacheable {
		result, err = c.dispatchShared(ctx, key, method, rawParams, ttl)
	} else {
		result, err = c.dispatch(ctx, method, rawParams, key, ttl, cacheable)
	}
	if err != nil {
		c.metrics.Calls.WithLabelValues(method, string(KindOf(err))).Inc()
		return nil, err
	}

	c.metrics.Calls.WithLabelValues(method, "ok").Inc()
	return cloneRaw(result), nil
}

func (c *Client) dispatchShared(ctx context.Context, key, method string, params json.RawMessage, ttl time.Duration) (json.RawMessage, error) {
	ch := c.callGroup.DoChan(key, func() (interface{}, error) {
		return c.dispatch(context.WithoutCancel(ctx), method, params, key, ttl, true)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, &Error{Kind: KindCanceled, Method: method, Message: msgCanceled, Err: ctx.Err()}
	}
}

func (c *Client) dispatch(ctx context.Context, method string, params json.RawMessage, key string, ttl time.Duration, cacheable bool) (json.RawMessage, error) {
	if allowed, st := c.limiter.Allow(); !allowed {
		c.metrics.RateLimited.Inc()
		c.logger.Debug().Str("method", method).Time("resetTime", st.ResetTime).Msg("rate limit reached")
		return nil, &Error{
			Kind:       KindRateLimit,
			Method:     method,
			Message:    msgRateLimited,
			RetryAfter: st.RetryAfter(c.now()),
			ResetTime:  st.ResetTime,
			Err:        errors.New("client rate limit reached"),
		}
	}

	sessionID, err := c.ensureSession(ctx, method)
	if err != nil {
		return nil, err
	}

	req, err := jsonrpc.NewRequest(method, params, c.nextRequestID())
	if err != nil {
		return nil, &Error{Kind: KindRequest, Method: method, Message: msgInvalidInput, Err: err}
	}

	start := time.Now()
	resp, err := c.sender.Send(ctx, sessionID, req)
	c.metrics.CallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, c.handleTransportError(method, sessionID, err)
	}

	// The server answered, so the connection is healthy even if the request was rejected
	if c.session.Health().RecordSuccess() {
		c.logger.Info().Msg("connection recovered")
		c.notifyStatus()
	}

	if resp.HasError() {
		return nil, c.requestError(method, resp.Error)
	}

	c.session.Touch()
	if cacheable {
		c.cache.Set(key, cloneRaw(resp.Result), ttl)
	}
	return resp.Result, nil
}

// ensureSession returns the active session id, connecting first if needed.
// At most maxReconnectAttempts handshakes are made.
func (c *Client) ensureSession(ctx context.Context, method string) (string, error) {
	if id := c.session.ID(); id != "" {
		return id, nil
	}

	attempts := c.cfg.Server.MaxReconnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := c.Connect(ctx); err != nil {
			lastErr = err
			if IsKind(err, KindCanceled) {
				cause := ctx.Err()
				if cause == nil {
					cause = err
				}
				return "", &Error{Kind: KindCanceled, Method: method, Message: msgCanceled, Err: cause}
			}
			continue
		}
		if id := c.session.ID(); id != "" {
			return id, nil
		}
	}

	if lastErr == nil {
		lastErr = errors.New("session ended during connect")
	}
	c.logger.Warn().Err(lastErr).Int("attempts", attempts).Msg("could not establish session")
	return "", &Error{Kind: KindConnection, Method: method, Message: msgConnection, Err: lastErr}
}

// handleTransportError maps a transport failure onto the error taxonomy and
// updates the session. Unauthorized and network failures end the session.
func (c *Client) handleTransportError(method, sessionID string, err error) error {
	var terr *transport.Error
	if !errors.As(err, &terr) {
		c.logger.Error().Err(err).Str("method", method).Msg("unexpected transport error")
		return &Error{Kind: KindConnection, Method: method, Message: msgConnection, Err: err}
	}

	event := c.logger.Warn().
		Err(err).
		Str("method", method).
		Str("kind", string(terr.Kind)).
		Int("attempts", terr.Attempts)
	if terr.StatusCode != 0 {
		event = event.Int("status", terr.StatusCode)
	}
	event.Msg("call failed")

	switch terr.Kind {
	case transport.KindCanceled:
		return &Error{Kind: KindCanceled, Method: method, Message: msgCanceled, Err: err}

	case transport.KindRateLimited:
		retryAfter := c.serverRetryAfter(terr.RetryAfter)
		return &Error{
			Kind:       KindRateLimit,
			Method:     method,
			Message:    msgRateLimited,
			RetryAfter: retryAfter,
			ResetTime:  c.now().Add(retryAfter),
			Err:        err,
		}

	case transport.KindUnauthorized, transport.KindNetwork:
		c.endSession(sessionID, err)
		return &Error{Kind: KindConnection, Method: method, Message: msgSessionLost, Err: err}

	case transport.KindTimeout:
		c.degrade(err)
		return &Error{Kind: KindTimeout, Method: method, Message: msgTimeout, Err: err}

	case transport.KindServer:
		c.degrade(err)
		return &Error{Kind: KindServerUnavailable, Method: method, Message: msgUnavailable, Err: err}

	default:
		return &Error{Kind: KindRequest, Method: method, Message: msgRejected, Code: terr.StatusCode, Err: err}
	}
}

// serverRetryAfter picks the wait after a server-side rate limit. Without a
// Retry-After header the local window reset or the retry delay is used.
func (c *Client) serverRetryAfter(header time.Duration) time.Duration {
	if header > 0 {
		return header
	}
	if d := c.limiter.Status().RetryAfter(c.now()); d > 0 {
		return d
	}
	if d := c.cfg.Server.GetRetryDelayDuration(); d > 0 {
		return d
	}
	return transport.DefaultRetryDelay
}

func (c *Client) requestError(method string, rpcErr *jsonrpc.Error) error {
	c.logger.Debug().
		Str("method", method).
		Int("code", rpcErr.Code).
		Str("message", rpcErr.Message).
		Msg("request rejected")

	if rpcErr.IsRateLimited() {
		return &Error{Kind: KindRateLimit, Method: method, Message: msgRateLimited, Code: rpcErr.Code, Data: rpcErr.Data, Err: rpcErr}
	}

	message := rpcErr.Message
	if message == "" {
		message = msgRejected
	}
	return &Error{Kind: KindRequest, Method: method, Message: message, Code: rpcErr.Code, Data: rpcErr.Data, Err: rpcErr}
}

// degrade records a non-fatal failure against the live session
func (c *Client) degrade(err error) {
	c.session.SetLastError(err)
	if c.session.Health().RecordFailure() {
		c.logger.Warn().Err(err).Msg("connection degraded")
	}
	c.notifyStatus()
}

// endSession drops sessionID after a fatal failure
func (c *Client) endSession(sessionID string, reason error) {
	ended, ok := c.session.EndIf(sessionID, reason)
	if !ok {
		return
	}

	c.logger.Warn().Err(reason).Str("sessionId", ended.ID).Msg("session lost")
	status, _ := c.publishStatus()
	c.notifier.Disconnected.Emit(events.DisconnectedEvent{SessionID: ended.ID, Reason: reason.Error(), At: c.now()})
	c.notifier.Status.Emit(status)
}

// publishStatus recomputes and stores the status. The caller emits it.
func (c *Client) publishStatus() (events.ConnectionStatus, bool) {
	status := events.ConnectionStatus{
		Connected: c.session.IsConnected(),
		SessionID: c.session.ID(),
		Attempts:  c.session.Attempts(),
		LastError: c.session.LastError(),
		Degraded:  c.session.Health().Degraded(),
	}

	c.statusMu.Lock()
	changed := c.status != status
	c.status = status
	c.statusMu.Unlock()

	if status.Connected {
		c.metrics.Connected.Set(1)
	} else {
		c.metrics.Connected.Set(0)
	}
	return status, changed
}

// notifyStatus publishes and emits the status if it changed
func (c *Client) notifyStatus() {
	if status, changed := c.publishStatus(); changed {
		c.notifier.Status.Emit(status)
	}
}

func (c *Client) nextRequestID() jsonrpc.ID {
	return jsonrpc.NewIDInt(c.requestID.Add(1))
}

// marshalParams returns params as JSON, nil becomes an empty object
func marshalParams(params interface{}) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage(`{}`), nil
		}
		if !json.Valid(p) {
			return nil, errors.New("params are not valid JSON")
		}
		return p, nil
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		return data, nil
	}
}

func cacheKey(method string, params interface{}) string {
	raw, err := marshalParams(params)
	if err != nil {
		return ""
	}
	return cache.GenerateCacheKey(method, raw)
}

func cloneRaw(data json.RawMessage) json.RawMessage {
	if data == nil {
		return nil
	}
	out := make(json.RawMessage, len(data))
	copy(out, data)
	return out
}
