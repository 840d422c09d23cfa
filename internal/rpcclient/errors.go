package rpcclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a failed call so callers can branch without parsing messages
type Kind string

const (
	// KindConnection - the session could not be established or was lost
	KindConnection Kind = "connection"
	// KindTimeout - every attempt exceeded its deadline
	KindTimeout Kind = "timeout"
	// KindRateLimit - admission denied locally or by the server
	KindRateLimit Kind = "rate_limit"
	// KindServerUnavailable - 5xx or malformed payload after all retries
	KindServerUnavailable Kind = "server_unavailable"
	// KindRequest - the server rejected the request itself
	KindRequest Kind = "request"
	// KindCanceled - the caller cancelled the call
	KindCanceled Kind = "canceled"
)

// Error is the typed error returned by Client.
// Message is short display text; Err carries the technical cause.
type Error struct {
	Kind    Kind
	Method  string
	Message string

	// Code and Data are set for KindRequest
	Code int
	Data json.RawMessage

	// RetryAfter and ResetTime are set for KindRateLimit when known
	RetryAfter time.Duration
	ResetTime  time.Time

	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := "rpc"
	if e.Method != "" {
		prefix += " " + e.Method
	}
	detail := e.Message
	if e.Err != nil {
		detail = e.Err.Error()
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d): %s", prefix, e.Kind, e.Code, detail)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Kind, detail)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Kind == kind
}

// KindOf returns the kind of err, or an empty Kind if err is not an *Error
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}

// Retryable reports whether the caller may try the same call again later.
// Rate limited calls should wait for RetryAfter first.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindTimeout, KindServerUnavailable, KindRateLimit:
		return true
	default:
		return false
	}
}

// UserMessage returns display text for err
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rerr *Error
	if errors.As(err, &rerr) && rerr.Message != "" {
		return rerr.Message
	}
	return "Something went wrong. Please try again."
}

// User-facing messages
const (
	msgConnection   = "Unable to connect to the server."
	msgSessionLost  = "The connection to the server was lost."
	msgTimeout      = "The server took too long to respond."
	msgRateLimited  = "Too many requests. Please wait a moment."
	msgUnavailable  = "The server is temporarily unavailable."
	msgRejected     = "The request was rejected by the server."
	msgCanceled     = "The request was cancelled."
	msgInvalidInput = "The request could not be prepared."
)
