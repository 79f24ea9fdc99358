package schedule

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength   = 100
	minutesPerDay   = 24 * 60
	minPriority     = 1
	maxPriority     = 100
	defaultPriority = 50
	maxValveTargets = 50
)

// ValidateRule checks a rule before persistence.
// Returns an error describing the first failure found.
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrInvalidRule
	}

	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidRule)
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRule, maxNameLength)
	}

	if r.Start < 0 || r.Start >= minutesPerDay {
		return fmt.Errorf("%w: start minute %d out of range", ErrInvalidRule, r.Start)
	}
	if r.End <= 0 || r.End > minutesPerDay {
		return fmt.Errorf("%w: end minute %d out of range", ErrInvalidRule, r.End)
	}
	// Windows do not wrap past midnight.
	if r.Start >= r.End {
		return fmt.Errorf("%w: window [%d,%d) is empty or wraps midnight", ErrInvalidRule, r.Start, r.End)
	}

	if r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week %d out of range (Monday=0..Sunday=6)", ErrInvalidRule, *r.DayOfWeek)
	}

	if r.Priority < minPriority || r.Priority > maxPriority {
		return fmt.Errorf("%w: priority must be %d-%d", ErrInvalidRule, minPriority, maxPriority)
	}

	if len(r.ValveTargets) > maxValveTargets {
		return fmt.Errorf("%w: exceeds maximum of %d valve targets", ErrInvalidRule, maxValveTargets)
	}
	for entityID, value := range r.ValveTargets {
		if strings.TrimSpace(entityID) == "" {
			return fmt.Errorf("%w: empty valve target entity ID", ErrInvalidRule)
		}
		if value < 0 || value > 100 {
			return fmt.Errorf("%w: target %s=%v outside 0-100", ErrInvalidRule, entityID, value)
		}
	}

	if len(r.ValveTargets) == 0 && (r.Directive == nil || r.Directive.IsZero()) {
		return fmt.Errorf("%w: rule has no effects", ErrInvalidRule)
	}

	return nil
}

// GenerateID returns a new unique rule identifier.
func GenerateID() string {
	return uuid.New().String()
}

// ApplyDefaults fills zero-value fields before validation.
func ApplyDefaults(r *Rule) {
	if r.ID == "" {
		r.ID = GenerateID()
	}
	if r.Priority == 0 {
		r.Priority = defaultPriority
	}
	if r.ValveTargets == nil {
		r.ValveTargets = map[string]float64{}
	}
}
