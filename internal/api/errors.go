package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport wraps failures to reach the API at all: refused connections,
// timeouts and undecodable bodies.
var ErrTransport = errors.New("expense api unreachable")

// Error is a failure reported by the API, either a non-2xx status or a
// success:false envelope.
type Error struct {
	Status   int
	Endpoint string
	Message  string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s: %d %s", e.Endpoint, e.Status, msg)
}

// EndpointStatus reports which endpoint failed and how.
func (e *Error) EndpointStatus() (string, int) {
	return e.Endpoint, e.Status
}

// Message returns text suitable for an inline error banner: the server's own
// message when it sent one.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("Request failed: %s", http.StatusText(apiErr.Status))
	}
	if errors.Is(err, ErrTransport) {
		return "Unable to reach the expense service"
	}
	return err.Error()
}

// StatusCode returns the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
