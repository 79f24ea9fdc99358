package hru

import "errors"

// Domain errors for the hru package.
var (
	// ErrDeviceNotConfigured is returned when a device family is not
	// present in the catalog.
	ErrDeviceNotConfigured = errors.New("hru: device family not configured")

	// ErrUnsupportedQuantity is returned when a read or write targets a
	// quantity the configured device family does not expose.
	ErrUnsupportedQuantity = errors.New("hru: unsupported quantity")

	// ErrEmptyDirective is returned when a directive carries no values.
	ErrEmptyDirective = errors.New("hru: empty directive")
)
