package papi

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var errEmptyBody = errors.New("empty response body")

// ConnectionError indicates the transport never produced a response:
// connection refused, DNS resolution failure, TLS handshake failure, or
// timeout. The underlying transport error is available via Unwrap.
type ConnectionError struct {
	URL string // the URL the request was addressed to
	Err error  // the underlying transport error
}

// Error implements the error interface for ConnectionError.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("papi: connection to %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError indicates the server returned a response with a non-success
// status code. It carries the status, the raw response body, and a
// best-effort message extracted from the body.
type APIError struct {
	Status  int    // HTTP status code of the failed response
	Body    []byte // raw response body
	Message string // error message extracted from the body, if any
	URL     string // the URL the request was addressed to
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("papi: server returned %d for %s: %s", e.Status, e.URL, e.Message)
	}
	return fmt.Sprintf("papi: server returned %d for %s", e.Status, e.URL)
}

// ProtocolError indicates a failure outside the transport and the server:
// a body that cannot be JSON-encoded, a malformed path, or a broken
// internal invariant. Op names the operation that failed.
type ProtocolError struct {
	Op  string
	Err error
}

// Error implements the error interface for ProtocolError.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("papi: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// newAPIError builds an APIError from a failed response. PAPI error bodies
// carry an errors array with per-item messages; fall back to the raw body
// when the shape doesn't match.
func newAPIError(status int, body []byte, url string) *APIError {
	msg := gjson.GetBytes(body, "errors.0.message").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "error").String()
	}
	return &APIError{
		Status:  status,
		Body:    body,
		Message: msg,
		URL:     url,
	}
}
