package newrelic

import (
	"errors"
	"fmt"
)

var (
	// ErrSerialization wraps failures encoding a batch to JSON.
	ErrSerialization = errors.New("serializing metrics")

	// ErrTransport wraps network failures and timeouts.
	ErrTransport = errors.New("sending metrics")

	// ErrClosed is returned by Export after Close.
	ErrClosed = errors.New("exporter closed")
)

// StatusError is returned when the Metric API answers with anything but 202.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
	}

	return fmt.Sprintf("unexpected status code: %d: %s", e.StatusCode, e.Body)
}

// ErrorType classifies err for logging and health metrics.
func ErrorType(err error) string {
	var statusErr *StatusError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &statusErr):
		return "status"
	case errors.Is(err, ErrSerialization):
		return "serialization"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "other"
	}
}
