package upstream

import "errors"

// Domain errors for the upstream package.
var (
	// ErrAuthRejected is returned when the controller explicitly
	// rejects the access token during the WebSocket handshake.
	ErrAuthRejected = errors.New("upstream: credentials rejected")

	// ErrHandshakeFailed is returned when the WebSocket handshake does
	// not follow the expected auth sequence.
	ErrHandshakeFailed = errors.New("upstream: handshake failed")

	// ErrRequestFailed is returned when a REST call returns a non-2xx
	// status.
	ErrRequestFailed = errors.New("upstream: request failed")

	// ErrClosed is returned when an operation is attempted on a closed
	// link.
	ErrClosed = errors.New("upstream: closed")
)
