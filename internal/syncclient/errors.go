package syncclient

import (
	"errors"
	"fmt"
)

// ErrorKind tags the failure taxonomy for remote calls.
type ErrorKind string

const (
	// NetworkFailure means no response was received at all.
	NetworkFailure ErrorKind = "network_failure"
	// HTTPStatus means the backend answered with a 4xx or 5xx.
	HTTPStatus ErrorKind = "http_status"
	// MalformedResponse means the body could not be decoded.
	MalformedResponse ErrorKind = "malformed_response"
)

// SyncError is the only error type remote calls surface. Callers branch on
// Kind; nothing in the client panics or leaks transport-specific errors.
type SyncError struct {
	Kind       ErrorKind
	StatusCode int    // set for HTTPStatus
	Detail     string // backend-provided detail, or the generic status text
	Err        error  // underlying transport or decode error
}

func (e *SyncError) Error() string {
	switch e.Kind {
	case HTTPStatus:
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	case MalformedResponse:
		return fmt.Sprintf("malformed backend response: %v", e.Err)
	default:
		return fmt.Sprintf("network failure: %v", e.Err)
	}
}

func (e *SyncError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth a retry: network failures
// and 5xx responses only. 4xx responses are never retried.
func (e *SyncError) Transient() bool {
	if e.Kind == NetworkFailure {
		return true
	}
	return e.Kind == HTTPStatus && e.StatusCode >= 500
}

// AsSyncError unwraps an error into a *SyncError, when it is one.
func AsSyncError(err error) (*SyncError, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
