package valve

import "errors"

// Domain errors for the valve package.
var (
	// ErrUnknownEntity is returned when a command references an entity
	// absent from the snapshot table. Commands never create entries.
	ErrUnknownEntity = errors.New("valve: unknown entity")
)
