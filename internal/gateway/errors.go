package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the uniform failure of a gateway call. StatusCode is the HTTP
// status, or 0 when the request never got a response (DNS, refused
// connection, timeout). Callers use errors.As to get at it:
//
//	var apiErr *gateway.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is human readable and is what ends up in the shared error slot.
	Message string
	// Err is the transport cause, nil for HTTP failures.
	Err error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Network reports whether the failure happened below HTTP.
func (e *APIError) Network() bool {
	return e.StatusCode == 0
}

// Describe returns a log-friendly rendering with method, path and status.
func (e *APIError) Describe() string {
	if e.Network() {
		return fmt.Sprintf("%s %s: network: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsAuthFailure reports whether err is an HTTP 401 or 403.
func IsAuthFailure(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

var authMarkers = []string{"401", "403", "unauthorized", "forbidden", "token"}

// MentionsAuthFailure is the message-substring heuristic for authorization
// failures. It also matches unrelated messages that mention "token".
func MentionsAuthFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
