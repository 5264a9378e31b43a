// Package resilience guards the online geocoding fallback: bounded retries
// for transient failures and a breaker that stops calling a service which
// keeps failing, so a batch degrades to offline data instead of stalling.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// StatusError carries the HTTP status of a failed upstream call.
type StatusError struct {
	Err  error
	Code int
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus attaches an HTTP status code to err.
func WithStatus(err error, code int) error {
	if err == nil {
		return nil
	}
	return &StatusError{Err: err, Code: code}
}

// Temporary reports whether err is worth another attempt: retryable HTTP
// statuses, network timeouts and connection resets.
func Temporary(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return RetryableStatus(se.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"connection reset by peer", "i/o timeout", "tls handshake timeout", "server closed idle connection"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RetryableStatus lists the statuses Nominatim and its proxies return under
// load.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
