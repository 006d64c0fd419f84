// Package queryir turns caller filter predicates into backend-neutral query
// plans.
//
// ARCHITECTURE:
//
//	[Predicate] → Validate → Plan → [QueryPlan] → querysql.Compiler → SQL
//	                                      ↑
//	                                ApplyPage (paginator policy)
//
// A Predicate is plain data: optional clauses that combine with AND at the
// top level. The same Predicate value can be planned for a page, a count or
// an aggregate without re-reading caller input.
//
// A QueryPlan is the resolved set of joins, conditions and ordering. It is
// request-scoped and never persisted.
//
// SEALED INTERFACES:
//
// Condition is a sealed interface using the marker method pattern. Only
// types in this package implement it, so the SQL backend can switch over
// every condition exhaustively.
//
// PLANNER INVARIANTS:
//
//   - Each JoinKind appears at most once in a plan. Clauses that need the
//     same relation share one join instance and attach their conditions to
//     it. Joining facilities twice would multiply rows per facility and
//     corrupt both pages and counts.
//   - A facility join always carries the fallback exclusion.
//   - Descriptor membership is AND across requested descriptors; it is
//     compiled to per-descriptor sub-queries, never to a plain join on the
//     link table (which would give OR semantics).
//   - Planning is idempotent: equal inputs yield equal plans.
//   - When a plan is paginated, AllowJoinEagerLoad is false.
//
// QueryPlan.Check verifies these invariants and returns a *PlanError when a
// plan violates them.
package queryir
