// Package modbus provides Modbus TCP register access for Luftujha Core.
//
// It wraps the goburrow/modbus client library with Luftujha-specific
// patterns for connection management, register conversion, and recovery.
//
// # Architecture
//
// Two transport strategies are offered, matching how the engine talks to
// heat recovery units:
//
//   - Ephemeral: WithEphemeral opens a connection, runs a function, and
//     guarantees the connection is closed. Used for one-shot write plans
//     where a stale TCP session on the device side is worse than the
//     reconnect cost.
//   - Persistent: Client keeps the connection open across calls and
//     transparently reconnects after failures. Used by the poller where
//     connection churn would dominate the sampling interval.
//
// A Pool deduplicates persistent clients by endpoint identity so the
// poller and the interpreter never hold two sessions to the same unit.
//
// # Register Conversion
//
// The wire protocol transfers registers as big-endian byte pairs. All
// methods in this package accept and return []uint16 so callers work in
// register space; byte conversion stays here.
//
// # Thread Safety
//
// Client serializes transactions with an internal mutex. Modbus TCP
// devices in this class handle one request at a time; interleaved
// requests on a shared session corrupt responses.
package modbus
