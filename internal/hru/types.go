package hru

import "time"

// Quantity is a logical value the unit exposes.
type Quantity string

// Quantities supported by the register model.
const (
	QuantityPower       Quantity = "power"
	QuantityMode        Quantity = "mode"
	QuantityTemperature Quantity = "temperature"
)

// RegisterKind distinguishes the Modbus register space an address lives in.
type RegisterKind string

// Register kinds.
const (
	KindHolding RegisterKind = "holding"
	KindInput   RegisterKind = "input"
)

// ReadRegister describes where and how a quantity is read.
type ReadRegister struct {
	// Address is the register address.
	Address uint16

	// Kind selects the register space.
	Kind RegisterKind

	// Scale converts wire values to engineering units
	// (value = wire * Scale). Zero means 1.
	Scale float64

	// Precision is a display hint (decimal places). It never affects
	// the wire value.
	Precision int

	// Unit is the display unit, e.g. "%", "°C".
	Unit string
}

// WriteStep is one register write inside a WritePlan.
//
// If Const is non-nil the step writes that fixed value; otherwise the
// step derives its value from the caller input as round(input / Scale),
// with Scale zero meaning 1.
type WriteStep struct {
	Address uint16
	Kind    RegisterKind
	Const   *uint16
	Scale   float64

	// Settle is how long to wait after this write before the next
	// step starts.
	Settle time.Duration
}

// WritePlan is the ordered write sequence that sets one quantity.
// Steps execute strictly in order; the first failure aborts the rest.
type WritePlan struct {
	Steps []WriteStep
}

// RegisterMap is the full register-level description of a device family.
type RegisterMap struct {
	// Family is the catalog key, e.g. "atrea-rd5".
	Family string

	// Reads maps each readable quantity to its register.
	Reads map[Quantity]ReadRegister

	// Writes maps each writable quantity to its write plan.
	Writes map[Quantity]WritePlan

	// Modes maps mode register values to display labels.
	Modes map[uint16]string
}

// Directive is a device-level command carried by a schedule rule or
// issued manually. All fields are optional; at least one must be set.
//
// Mode accepts either a numeric value or a display label; resolution
// happens in ResolveMode at apply time.
type Directive struct {
	Mode        any      `json:"mode,omitempty"`
	Power       *float64 `json:"power,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// IsZero reports whether the directive carries no values.
func (d Directive) IsZero() bool {
	return d.Mode == nil && d.Power == nil && d.Temperature == nil
}

// State is one sampled reading of the unit's quantities.
type State struct {
	Power       float64   `json:"power"`
	Mode        uint16    `json:"mode"`
	ModeLabel   string    `json:"mode_label"`
	Temperature float64   `json:"temperature"`
	SampledAt   time.Time `json:"sampled_at"`
}
