package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken means a refresh was needed but none is stored.
	// It always ends the session.
	ErrNoRefreshToken = errors.New("no refresh token available")

	errIncompleteRefresh = errors.New("refresh response missing tokens")
)

// TransportError is a network failure unrelated to authorization.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RefreshRejectedError is returned when the refresh endpoint answered with a
// non-2xx status, returned an unusable body, or did not answer in time.
type RefreshRejectedError struct {
	StatusCode int
	Err        error
}

func (e *RefreshRejectedError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("token refresh rejected (status: %d): %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("token refresh rejected (status: %d)", e.StatusCode)
	default:
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
}

func (e *RefreshRejectedError) Unwrap() error {
	return e.Err
}

// StatusError is a response with a status code above 399. When a 401 is
// returned because the session could not be renewed, Err holds the reason.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("request failed: %s %s (status: %d)", e.Method, e.URL, e.StatusCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
