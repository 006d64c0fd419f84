// Package engine runs searches, counts and aggregates over the store.
//
// Every operation follows the same path: validate the predicate, plan it
// (queryir), check the planner invariants, compile the plan (querysql) and
// run the statements on one pooled connection. Requests restricted to an
// explicit empty ID set are answered without touching the store.
//
// Errors:
//   - *queryir.PredicateError: the request is invalid; nothing was queried
//   - *StoreError: the store failed; the request may be retried
//   - *queryir.PlanError: a planner invariant was violated (a bug)
package engine
