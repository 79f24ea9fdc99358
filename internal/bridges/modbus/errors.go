package modbus

import "errors"

// Domain errors for the Modbus bridge package.
var (
	// ErrNotConnected is returned when an operation requires a connection
	// but the client is not connected to the device.
	ErrNotConnected = errors.New("modbus: not connected")

	// ErrConnectionFailed is returned when the TCP connection to the
	// device cannot be established.
	ErrConnectionFailed = errors.New("modbus: connection failed")

	// ErrReadFailed is returned when a register read transaction fails.
	ErrReadFailed = errors.New("modbus: read failed")

	// ErrWriteFailed is returned when a register write transaction fails.
	ErrWriteFailed = errors.New("modbus: write failed")

	// ErrInvalidQuantity is returned when a read requests zero registers
	// or more than a single Modbus transaction allows.
	ErrInvalidQuantity = errors.New("modbus: invalid register quantity")

	// ErrShortResponse is returned when the device answers with fewer
	// bytes than the requested register count requires.
	ErrShortResponse = errors.New("modbus: short response")

	// ErrClosed is returned when an operation is attempted on a closed
	// client or pool.
	ErrClosed = errors.New("modbus: closed")
)
