// Package valve keeps the authoritative in-memory snapshot of every
// ventilation valve entity.
//
// The Synchronizer is fed from two directions: a bulk fetch over the
// upstream REST API at startup, and state_changed events from the
// upstream link afterwards. Rows are overwritten last-write-wins by
// arrival order; every accepted change fans out one update to the
// registered broadcast callback.
//
// The command path goes the other way: SetValue validates the entity
// against the snapshot, issues the upstream service call, and returns on
// acknowledgement. The authoritative new value arrives asynchronously as
// an event; no optimistic local write happens in between.
//
// Bounds (min/max/step) are owned by upstream and refreshed on every
// update. Callers must not assume they are stable across idle periods.
package valve
