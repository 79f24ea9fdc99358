package hru

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RegisterIO is the transport surface the interpreter needs. Satisfied
// by both modbus transport strategies.
type RegisterIO interface {
	ReadHoldingRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error)
	ReadInputRegisters(ctx context.Context, addr uint16, quantity uint16) ([]uint16, error)
	WriteRegister(ctx context.Context, addr uint16, value uint16) error
}

// Interpreter executes write plans and scaled reads against one device.
//
// It binds a RegisterMap to a transport. All scaling and mode resolution
// happens here; the transport sees raw register values only.
//
// Write sessions hold an exclusive per-device lock: a directive from one
// caller never interleaves its unlock/commit steps with an in-flight
// plan from another. Interpreters derived via withTransport share the
// lock, so the guarantee spans transports to the same device.
type Interpreter struct {
	regmap *RegisterMap
	io     RegisterIO
	writes *sync.Mutex
}

// NewInterpreter binds a register map to a transport.
func NewInterpreter(regmap *RegisterMap, io RegisterIO) *Interpreter {
	return &Interpreter{regmap: regmap, io: io, writes: &sync.Mutex{}}
}

// withTransport returns an interpreter over the same register map and
// write lock but a different transport. Used for one-off connections
// that must still serialize against this device's write plans.
func (i *Interpreter) withTransport(io RegisterIO) *Interpreter {
	return &Interpreter{regmap: i.regmap, io: io, writes: i.writes}
}

// Apply sets one quantity by executing its write plan.
//
// Steps run strictly in order. A step's settle delay is honoured before
// the next step starts. The first failing step aborts the rest and
// surfaces the transport error unretried.
func (i *Interpreter) Apply(ctx context.Context, q Quantity, value float64) error {
	i.writes.Lock()
	defer i.writes.Unlock()
	return i.apply(ctx, q, value)
}

func (i *Interpreter) apply(ctx context.Context, q Quantity, value float64) error {
	plan, ok := i.regmap.Writes[q]
	if !ok {
		return fmt.Errorf("%w: write %q on family %q", ErrUnsupportedQuantity, q, i.regmap.Family)
	}
	return i.runPlan(ctx, plan, value)
}

// ApplyDirective applies a device directive as one session, holding
// the device write lock from the first plan to the last.
//
// Values are applied in a fixed order: mode, power, temperature. The
// first failure aborts the remaining values; earlier writes are not
// rolled back.
func (i *Interpreter) ApplyDirective(ctx context.Context, d Directive) error {
	if d.IsZero() {
		return ErrEmptyDirective
	}

	i.writes.Lock()
	defer i.writes.Unlock()

	if d.Mode != nil {
		mode := ResolveMode(i.regmap.Modes, d.Mode)
		if err := i.apply(ctx, QuantityMode, float64(mode)); err != nil {
			return fmt.Errorf("directive mode: %w", err)
		}
	}
	if d.Power != nil {
		if err := i.apply(ctx, QuantityPower, *d.Power); err != nil {
			return fmt.Errorf("directive power: %w", err)
		}
	}
	if d.Temperature != nil {
		if err := i.apply(ctx, QuantityTemperature, *d.Temperature); err != nil {
			return fmt.Errorf("directive temperature: %w", err)
		}
	}
	return nil
}

// Read returns one quantity in engineering units, applying the declared
// scale to the wire value.
func (i *Interpreter) Read(ctx context.Context, q Quantity) (float64, error) {
	reg, ok := i.regmap.Reads[q]
	if !ok {
		return 0, fmt.Errorf("%w: read %q on family %q", ErrUnsupportedQuantity, q, i.regmap.Family)
	}

	regs, err := i.readRegister(ctx, reg)
	if err != nil {
		return 0, err
	}

	scale := reg.Scale
	if scale == 0 {
		scale = 1
	}
	return float64(regs[0]) * scale, nil
}

// ReadState samples all readable quantities into a State.
func (i *Interpreter) ReadState(ctx context.Context) (State, error) {
	power, err := i.Read(ctx, QuantityPower)
	if err != nil {
		return State{}, fmt.Errorf("read power: %w", err)
	}
	modeRaw, err := i.Read(ctx, QuantityMode)
	if err != nil {
		return State{}, fmt.Errorf("read mode: %w", err)
	}
	temp, err := i.Read(ctx, QuantityTemperature)
	if err != nil {
		return State{}, fmt.Errorf("read temperature: %w", err)
	}

	mode := uint16(modeRaw)
	return State{
		Power:       power,
		Mode:        mode,
		ModeLabel:   i.regmap.Modes[mode],
		Temperature: temp,
		SampledAt:   time.Now(),
	}, nil
}

// readRegister dispatches a read on the register kind.
func (i *Interpreter) readRegister(ctx context.Context, reg ReadRegister) ([]uint16, error) {
	switch reg.Kind {
	case KindInput:
		return i.io.ReadInputRegisters(ctx, reg.Address, 1)
	default:
		return i.io.ReadHoldingRegisters(ctx, reg.Address, 1)
	}
}

// runPlan executes a write plan with the given caller input.
func (i *Interpreter) runPlan(ctx context.Context, plan WritePlan, input float64) error {
	for idx, step := range plan.Steps {
		if err := i.writeStep(ctx, step, input); err != nil {
			return fmt.Errorf("step %d (addr %d): %w", idx, step.Address, err)
		}
		if step.Settle > 0 && idx < len(plan.Steps)-1 {
			select {
			case <-time.After(step.Settle):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// writeStep issues a single plan step, dispatching on the register kind.
//
// TODO: confirm on real RD5 hardware whether input-tagged write steps
// need a distinct function code; every observed unit accepts holding
// writes for both kinds, so both cases issue a holding write for now.
func (i *Interpreter) writeStep(ctx context.Context, step WriteStep, input float64) error {
	value := stepValue(step, input)

	switch step.Kind {
	case KindInput:
		return i.io.WriteRegister(ctx, step.Address, value)
	default:
		return i.io.WriteRegister(ctx, step.Address, value)
	}
}

// stepValue computes the wire value for a step: the constant if one is
// declared, otherwise round(input / scale) with scale defaulting to 1.
func stepValue(step WriteStep, input float64) uint16 {
	if step.Const != nil {
		return *step.Const
	}

	scale := step.Scale
	if scale == 0 {
		scale = 1
	}
	return clampRegister(math.Round(input / scale))
}

// clampRegister saturates a computed wire value into the uint16 range.
// Float to integer conversion outside the target range is not defined
// by the language, so out-of-range inputs clamp instead.
func clampRegister(v float64) uint16 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// ResolveMode turns a desired mode, numeric or label, into a mode
// register value.
//
// Resolution order: numeric values pass through unchanged; otherwise a
// case-insensitive label match against the mode map; otherwise integer
// parsing of the string; otherwise 0. It never fails, so a misconfigured
// label degrades one directive instead of blocking a whole rule.
func ResolveMode(modes map[uint16]string, desired any) uint16 {
	switch v := desired.(type) {
	case float64:
		return clampRegister(v)
	case int:
		return clampRegister(float64(v))
	case uint16:
		return v
	case string:
		for value, label := range modes {
			if strings.EqualFold(label, v) {
				return value
			}
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			return uint16(n)
		}
	}
	return 0
}
