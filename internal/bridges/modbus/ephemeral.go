package modbus

import (
	"context"
	"fmt"

	gomodbus "github.com/goburrow/modbus"
)

// ephemeralTransport is a single-use connection with no recovery. It
// exists only for the duration of a WithEphemeral call.
type ephemeralTransport struct {
	conn gomodbus.Client
}

var _ Transport = (*ephemeralTransport)(nil)

// WithEphemeral opens a connection to the endpoint, runs fn against it,
// and closes the connection before returning. The close happens whether
// fn succeeds, fails, or panics.
//
// This is the transport for one-off request/response callers: the
// device firmware keeps at most a handful of TCP sessions alive, so a
// caller without a steady cadence dials fresh per call instead of
// occupying one. Long-running pollers and schedulers use the pooled
// persistent Client.
//
// The connection has no recovery. Any transport error inside fn should
// be treated as fatal for the whole operation.
func WithEphemeral(ctx context.Context, cfg Config, fn func(Transport) error) error {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	handler := gomodbus.NewTCPClientHandler(cfg.address())
	handler.Timeout = cfg.Timeout
	handler.SlaveId = cfg.UnitID

	if err := handler.Connect(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.Identity(), err)
	}
	defer handler.Close()

	return fn(&ephemeralTransport{conn: gomodbus.NewClient(handler)})
}

func (t *ephemeralTransport) ReadHoldingRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error) {
	if quantity == 0 || quantity > maxReadQuantity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := t.conn.ReadHoldingRegisters(addr, quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: addr %d qty %d: %w", ErrReadFailed, addr, quantity, err)
	}
	return bytesToRegisters(raw, quantity)
}

func (t *ephemeralTransport) ReadInputRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error) {
	if quantity == 0 || quantity > maxReadQuantity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := t.conn.ReadInputRegisters(addr, quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: addr %d qty %d: %w", ErrReadFailed, addr, quantity, err)
	}
	return bytesToRegisters(raw, quantity)
}

func (t *ephemeralTransport) WriteRegister(ctx context.Context, addr uint16, value uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.conn.WriteSingleRegister(addr, value); err != nil {
		return fmt.Errorf("%w: addr %d value %d: %w", ErrWriteFailed, addr, value, err)
	}
	return nil
}

func (t *ephemeralTransport) WriteRegisters(ctx context.Context, addr uint16, values []uint16) error {
	if len(values) == 0 || len(values) > maxReadQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, len(values))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := t.conn.WriteMultipleRegisters(addr, uint16(len(values)), registersToBytes(values)); err != nil {
		return fmt.Errorf("%w: addr %d qty %d: %w", ErrWriteFailed, addr, len(values), err)
	}
	return nil
}
