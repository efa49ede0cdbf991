package link

import "errors"

// Domain-specific errors for link operations.
var (
	// ErrDriverStopped is returned by Connect after the driver has stopped.
	ErrDriverStopped = errors.New("link: driver stopped")

	// ErrNoInterface is returned when no interface name is configured.
	ErrNoInterface = errors.New("link: interface name is required")
)
