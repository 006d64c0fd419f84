package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// StoreError reports a failure of the relational store while running an
// operation: acquiring a connection, executing a statement or reading rows.
//
// Store errors are transient from the caller's point of view; the request
// itself was valid and may be retried.
type StoreError struct {
	// Op is the engine operation ("search", "count", "aggregate").
	Op string

	// Entity is the entity kind being queried.
	Entity ir.EntityKind

	// Aggregate is set for aggregate operations.
	Aggregate queryir.AggregateKind

	// Err is the underlying driver or database/sql error.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Aggregate != "" {
		return fmt.Sprintf("store failure: %s %s on %s: %v", e.Op, e.Aggregate, e.Entity, e.Err)
	}
	return fmt.Sprintf("store failure: %s on %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the operation may succeed. A request
// the caller cancelled is not retried.
func (e *StoreError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled)
}

// IsRetryable returns true if err is or wraps a retryable *StoreError.
// Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}

// IsStoreError returns true if err is or wraps a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// IsInvalidPredicate returns true if err reports an out-of-domain clause.
func IsInvalidPredicate(err error) bool {
	return queryir.IsInvalidPredicate(err)
}

// IsInconsistentPlan returns true if err reports a planner invariant
// violation.
func IsInconsistentPlan(err error) bool {
	return queryir.IsInconsistentPlan(err)
}
