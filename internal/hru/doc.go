// Package hru models heat recovery ventilation units at the register level.
//
// A unit family is described by a RegisterMap: where each logical quantity
// (power, mode, temperature) is read from, and the ordered write plan that
// sets it. The Atrea RD5 family, the only one currently shipped, requires a
// two-step unlock/commit sequence for every write: a control register is
// written first, the device is given time to settle, then the target value
// register is written.
//
// The Interpreter binds a RegisterMap to a register transport and executes
// write plans strictly in order, honouring settle delays and aborting on the
// first failed step. Scaling between engineering units and wire values
// happens here; the transport below deals only in raw registers.
//
// The Poller samples the read registers on an interval and hands each
// sample to a callback, keeping telemetry fan-out (websocket, InfluxDB,
// MQTT) out of this package.
package hru
