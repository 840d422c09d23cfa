package transport

import (
	"fmt"
	"time"
)

// Kind classifies a failed attempt
type Kind string

const (
	// KindTimeout - no response within the per-attempt timeout
	KindTimeout Kind = "timeout"
	// KindNetwork - connection refused, DNS failure, reset, ...
	KindNetwork Kind = "network"
	// KindServer - 5xx or a payload that is not a valid response
	KindServer Kind = "server"
	// KindRateLimited - the remote side answered 429
	KindRateLimited Kind = "rate_limited"
	// KindUnauthorized - 401/403, the session is no longer accepted
	KindUnauthorized Kind = "unauthorized"
	// KindClient - any other 4xx without an RPC error body
	KindClient Kind = "client"
	// KindCanceled - the caller's context was cancelled
	KindCanceled Kind = "canceled"
)

// Retryable returns true for kinds the transport retries itself
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork, KindServer:
		return true
	default:
		return false
	}
}

// Error is returned by Send when no usable response was obtained
type Error struct {
	Kind       Kind
	StatusCode int
	Attempts   int
	// RetryAfter is the server-provided wait for KindRateLimited, zero if absent
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("transport %s", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}
