package exchange

import (
	"errors"
	"fmt"
)

// ErrAuth marks missing or invalid credentials. Never retried.
var ErrAuth = errors.New("exchange: missing or invalid credentials")

// TransportError wraps a network-level failure. Retryable within the bounded
// attempt count.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("exchange transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitedError is returned when the exchange answered 429/503/504 on
// every allowed attempt.
type RateLimitedError struct {
	Status   int
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("exchange rate limited: status %d after %d attempts", e.Status, e.Attempts)
}

// RejectedError is any other non-2xx answer. Fatal, surfaced to the caller.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("exchange rejected: status %d: %s", e.Status, e.Body)
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(status int) bool {
	switch status {
	case 429, 503, 504:
		return true
	}
	return false
}
