package queryir

import (
	"errors"
	"fmt"
)

// PredicateError reports a filter clause that references an out-of-domain
// value. It is raised before any query is built and is always the caller's
// fault.
type PredicateError struct {
	// Clause is the snake_case name of the offending clause ("gender").
	Clause string

	// Value is the rejected value, formatted for display.
	Value string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *PredicateError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid predicate: %s: %s (got %q)", e.Clause, e.Message, e.Value)
	}
	return fmt.Sprintf("invalid predicate: %s: %s", e.Clause, e.Message)
}

// PlanError reports a planner invariant violation: a duplicate join, a
// condition attached to the wrong join, or a condition whose join is
// missing. It is an internal logic fault, never the caller's.
type PlanError struct {
	Message string
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	return "inconsistent query plan: " + e.Message
}

func planErrorf(format string, args ...any) *PlanError {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}

// IsInvalidPredicate returns true if err is or wraps a *PredicateError.
func IsInvalidPredicate(err error) bool {
	var pe *PredicateError
	return errors.As(err, &pe)
}

// IsInconsistentPlan returns true if err is or wraps a *PlanError.
func IsInconsistentPlan(err error) bool {
	var pe *PlanError
	return errors.As(err, &pe)
}
