package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"seidash/internal/config"
	"seidash/internal/jsonrpc"
	"seidash/internal/metrics"
)

// SessionHeader carries the session id on every request
const SessionHeader = "X-Session-ID"

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 16 << 20

// Default values
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Config for creating a new HTTP transport
type Config struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// HTTP sends JSON-RPC requests to a single endpoint.
//
// Every attempt gets its own timeout. There is no overall deadline besides the
// caller's context, so the worst case is (MaxRetries+1)*Timeout plus the backoff waits.
type HTTP struct {
	url        string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration

	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// New creates a new HTTP transport
func New(cfg Config) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	return &HTTP{
		url:        cfg.URL,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		httpClient: cfg.HTTPClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "transport").Logger(),
	}
}

// NewFromConfig creates an HTTP transport from the client configuration
func NewFromConfig(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *HTTP {
	return New(Config{
		URL:        cfg.Server.URL,
		Timeout:    cfg.Server.GetTimeoutDuration(),
		MaxRetries: cfg.Server.MaxRetries,
		RetryDelay: cfg.Server.GetRetryDelayDuration(),
		Metrics:    m,
		Logger:     logger,
	})
}

// URL returns the endpoint
func (t *HTTP) URL() string {
	return t.url
}

// Send posts the request, retrying timeouts, network failures and server errors
// with exponential backoff (RetryDelay * 2^n before retry n+1).
// A response carrying an RPC error object is returned as-is with a nil error.
func (t *HTTP) Send(ctx context.Context, sessionID string, req *jsonrpc.Request) (*jsonrpc.Response, error) {
	body, err := req.Bytes()
	if err != nil {
		return nil, &Error{Kind: KindClient, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.retryDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(t.maxRetries)), ctx)

	attempts := 0
	var resp *jsonrpc.Response
	operation := func() error {
		attempts++
		r, attemptErr := t.attempt(ctx, sessionID, body)
		if attemptErr != nil {
			t.metrics.TransportAttempts.WithLabelValues(string(attemptErr.Kind)).Inc()
			attemptErr.Attempts = attempts
			if !attemptErr.Kind.Retryable() {
				return backoff.Permanent(attemptErr)
			}
			return attemptErr
		}
		t.metrics.TransportAttempts.WithLabelValues("ok").Inc()
		resp = r
		return nil
	}

	notify := func(err error, next time.Duration) {
		kind := KindNetwork
		var terr *Error
		if errors.As(err, &terr) {
			kind = terr.Kind
		}
		t.metrics.TransportRetries.WithLabelValues(string(kind)).Inc()
		t.logger.Warn().
			Int("attempt", attempts).
			Int("maxAttempts", t.maxRetries+1).
			Dur("backoff", next).
			Err(err).
			Str("method", req.Method).
			Msg("request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		var terr *Error
		if errors.As(err, &terr) {
			return nil, terr
		}
		// The context ended while waiting between attempts
		return nil, &Error{Kind: KindCanceled, Attempts: attempts, Err: err}
	}

	if resp.HasError() {
		t.logger.Debug().
			Str("method", req.Method).
			Int("errorCode", resp.Error.Code).
			Str("errorMessage", resp.Error.Message).
			Int("attempts", attempts).
			Msg("RPC error response")
	} else {
		t.logger.Debug().
			Str("method", req.Method).
			Int("attempts", attempts).
			Msg("request succeeded")
	}

	return resp, nil
}

// attempt performs a single POST with a fresh timeout
func (t *HTTP) attempt(ctx context.Context, sessionID string, body []byte) (*jsonrpc.Response, *Error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindCanceled, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindClient, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if sessionID != "" {
		httpReq.Header.Set(SessionHeader, sessionID)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyRequestError(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		terr := classifyRequestError(ctx, attemptCtx, err)
		terr.StatusCode = resp.StatusCode
		return nil, terr
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Err:        errors.New(bodySnippet(data)),
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &Error{Kind: KindUnauthorized, StatusCode: resp.StatusCode, Err: errors.New(bodySnippet(data))}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindServer, StatusCode: resp.StatusCode, Err: errors.New(bodySnippet(data))}
	case resp.StatusCode >= 400:
		// A well-formed RPC error object is handed back for the caller to translate
		if rpcResp, perr := jsonrpc.ParseResponse(data); perr == nil && rpcResp.HasError() {
			return rpcResp, nil
		}
		return nil, &Error{Kind: KindClient, StatusCode: resp.StatusCode, Err: errors.New(bodySnippet(data))}
	}

	rpcResp, err := jsonrpc.ParseResponse(data)
	if err != nil {
		return nil, &Error{Kind: KindServer, StatusCode: resp.StatusCode, Err: err}
	}
	return rpcResp, nil
}

// classifyRequestError tells caller cancellation, attempt timeout and network failures apart
func classifyRequestError(parent, attemptCtx context.Context, err error) *Error {
	if parent.Err() != nil {
		return &Error{Kind: KindCanceled, Err: parent.Err()}
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// bodySnippet returns a short printable prefix of a response body
func bodySnippet(data []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "empty response body"
	}
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
