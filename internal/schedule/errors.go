package schedule

import "errors"

// Domain errors for the schedule package.
var (
	// ErrRuleNotFound is returned when a rule ID does not exist.
	ErrRuleNotFound = errors.New("schedule: rule not found")

	// ErrRuleExists is returned when creating a rule whose ID is taken.
	ErrRuleExists = errors.New("schedule: rule already exists")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("schedule: invalid rule")
)
