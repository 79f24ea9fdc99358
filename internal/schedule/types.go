package schedule

import (
	"time"

	"github.com/luftujha/luftujha-core/internal/hru"
)

// Rule is one declarative schedule record.
//
// The time window [Start, End) is in minutes since midnight and must
// not wrap past midnight. DayOfWeek is nil for every day, otherwise
// Monday = 0 through Sunday = 6.
type Rule struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Start and End bound the half-open active window in minutes
	// since midnight.
	Start int `json:"start"`
	End   int `json:"end"`

	// DayOfWeek restricts the rule to one weekday (Monday = 0).
	// Nil means the rule applies every day.
	DayOfWeek *int `json:"day_of_week,omitempty"`

	// Priority orders overlapping rules; higher wins.
	Priority int `json:"priority"`

	Enabled bool `json:"enabled"`

	// ValveTargets maps entity IDs to opening percentages.
	ValveTargets map[string]float64 `json:"valve_targets"`

	// Directive is the optional device command applied after the
	// valve targets.
	Directive *hru.Directive `json:"directive,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveAt reports whether the rule matches the given day (Monday = 0)
// and minute of day. Enabled is checked by the caller's filter, not
// here.
func (r Rule) ActiveAt(day int, minute int) bool {
	if r.DayOfWeek != nil && *r.DayOfWeek != day {
		return false
	}
	return r.Start <= minute && minute < r.End
}

// DayIndex converts a time.Weekday (Sunday = 0) to the rule convention
// (Monday = 0). This is the only place the two conventions meet.
func DayIndex(weekday time.Weekday) int {
	return (int(weekday) + 6) % 7
}

// MinuteOfDay returns the minutes elapsed since midnight local time.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
