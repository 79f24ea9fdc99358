// Package schedule implements the timeline scheduler and its rule store.
//
// A Rule is a declarative record: a half-open time window in minutes of
// the day, an optional day-of-week, a priority, a map of valve targets
// and an optional device directive. Rules are persisted in SQLite and
// re-read on every tick, so edits take effect within one interval.
//
// The Scheduler ticks on a fixed interval. Each tick filters the rules
// to those matching the current day and minute, sorts by priority (ties
// break toward the later window start) and applies the winner: valve
// targets through the synchronizer, then the device directive through
// the interpreter. Failures are isolated per target and logged.
//
// Reapplication is change-driven: an unchanged winning rule is not
// re-issued every tick. The scheduler forces a reapply on the first
// tick after start and after any write failure, so transient device
// problems are retried on the next qualifying tick instead of being
// dropped until the rule changes.
package schedule
