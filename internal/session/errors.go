package session

import "errors"

// Domain-specific errors for session operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotStarted is returned when publishing before a session exists.
	ErrNotStarted = errors.New("session: not started")

	// ErrCreateFailed is returned when the session library cannot create a handle.
	ErrCreateFailed = errors.New("session: create failed")

	// ErrStartFailed is returned when a created handle fails to start.
	ErrStartFailed = errors.New("session: start failed")
)
