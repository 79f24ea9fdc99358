package hru

import (
	"context"

	"github.com/luftujha/luftujha-core/internal/bridges/modbus"
)

// EphemeralDevice serves one-off device requests, dialling a fresh
// connection per call and closing it before returning. It is the
// transport strategy for request/response callers such as API
// handlers; the state poller and the scheduler keep a persistent
// interpreter instead.
//
// The device runs each call through the companion interpreter's
// register map and write lock, so an ad-hoc directive never interleaves
// its unlock/commit steps with an in-flight scheduled plan on the same
// device.
type EphemeralDevice struct {
	interp *Interpreter
	cfg    modbus.Config
}

// NewEphemeralDevice creates a one-shot device facade alongside an
// existing persistent interpreter for the same device.
func NewEphemeralDevice(interp *Interpreter, cfg modbus.Config) *EphemeralDevice {
	return &EphemeralDevice{interp: interp, cfg: cfg}
}

// ReadState samples all readable quantities over a fresh connection.
func (d *EphemeralDevice) ReadState(ctx context.Context) (State, error) {
	var state State
	err := modbus.WithEphemeral(ctx, d.cfg, func(t modbus.Transport) error {
		var readErr error
		state, readErr = d.interp.withTransport(t).ReadState(ctx)
		return readErr
	})
	return state, err
}

// ApplyDirective applies a directive over a fresh connection. The
// connection spans the whole directive session, not individual plans.
func (d *EphemeralDevice) ApplyDirective(ctx context.Context, dir Directive) error {
	return modbus.WithEphemeral(ctx, d.cfg, func(t modbus.Transport) error {
		return d.interp.withTransport(t).ApplyDirective(ctx, dir)
	})
}
