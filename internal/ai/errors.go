package ai

import (
	"fmt"
)

// StatusError is how a provider reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Code)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Code, truncate(e.Body, maxPreview))
}

// BackendError is returned by Client.Complete for every failed call.
// StatusCode is zero when no HTTP response was received.
type BackendError struct {
	StatusCode int
	Body       string
	Attempts   int
	Transient  bool
	Err        error
}

func (e *BackendError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend call failed after %d attempt(s) (%s, HTTP %d): %v", e.Attempts, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend call failed after %d attempt(s) (%s): %v", e.Attempts, kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ParseError means no structured value could be recovered from a response.
type ParseError struct {
	Reason  string
	Preview string
}

func (e *ParseError) Error() string {
	if e.Preview == "" {
		return "parse error: " + e.Reason
	}
	return fmt.Sprintf("parse error: %s (response: %q)", e.Reason, e.Preview)
}
