package harvester

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrEmptyPayload marks an HTTP 200 response whose JSON body carried nothing
// usable. It is retryable: the endpoint is known to answer with empty bodies
// under load.
var ErrEmptyPayload = errors.New("empty response payload")

// StatusError reports a non-success HTTP status with a truncated body sample.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// Transient reports whether the status indicates a temporary server-side
// condition worth retrying.
func (e *StatusError) Transient() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// FetchError surfaces from the client once the attempt budget is exhausted
// or a fatal status ends the attempt loop.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// retryable reports whether the attempt outcome is worth another try.
// Transport failures and empty payloads always are; statuses only when in
// the transient set; a cancelled parent context never is.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Transient()
	}
	return true
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	if errors.Is(err, ErrEmptyPayload) {
		return "empty_payload"
	}
	var status *StatusError
	if errors.As(err, &status) {
		switch {
		case status.Code == http.StatusTooManyRequests:
			return "rate_limited"
		case status.Transient():
			return "transient_status"
		default:
			return "fatal_status"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "transport"
}
