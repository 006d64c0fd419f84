package queryir

import "github.com/roach88/ffquery/internal/ir"

// JoinKind identifies a relation joined to the primary entity table.
type JoinKind string

const (
	// JoinNone marks conditions evaluated against the primary table itself.
	JoinNone JoinKind = ""

	// JoinFacility joins the entity's facility link and the facilities
	// relation. It fans out: one row per linked facility.
	JoinFacility JoinKind = "facility"

	// JoinEligibility joins the one-to-one study eligibility relation.
	JoinEligibility JoinKind = "eligibility"
)

// JoinMode is the SQL join flavour.
type JoinMode string

const (
	JoinInner JoinMode = "inner"
	JoinLeft  JoinMode = "left"
)

// Join is one join instance of a plan with the conditions attached to it.
// A left join never carries conditions; it exists only for projection.
type Join struct {
	Kind JoinKind
	Mode JoinMode
	On   []Condition
}

// Purpose tells the planner what the plan will be compiled into.
type Purpose int

const (
	// PurposeSearch plans a page of entity rows.
	PurposeSearch Purpose = iota

	// PurposeCount plans a distinct count.
	PurposeCount

	// PurposeMatch plans the set of matching entity IDs, used as the input
	// of aggregates.
	PurposeMatch
)

// QueryPlan is the resolved join, condition and ordering set for one
// Predicate. Plans are request-scoped and never persisted.
type QueryPlan struct {
	Entity  ir.EntityKind
	Purpose Purpose

	// Joins holds at most one Join per JoinKind, in first-request order.
	Joins []Join

	// Where holds conditions on the primary table, combined with AND.
	Where []Condition

	// Order is the requested ordering. Compilers always append the primary
	// key as a final tiebreaker.
	Order []OrderTerm

	// Limit of zero means unlimited.
	Limit  int
	Offset int

	// Fields lists the relations to eager-load into each entity.
	Fields []ir.Relation

	// AllowJoinEagerLoad permits loading Fields in the same round trip by
	// joining the relations. Joined relations multiply base rows before
	// LIMIT/OFFSET apply, so ApplyPage forces this false on paginated plans.
	AllowJoinEagerLoad bool
}

// Join returns the join of the given kind, if present.
func (p *QueryPlan) Join(kind JoinKind) (Join, bool) {
	for _, j := range p.Joins {
		if j.Kind == kind {
			return j, true
		}
	}
	return Join{}, false
}

// MatchesNothing reports whether the plan is restricted to an explicit empty
// ID set. Such a plan needs no query.
func (p *QueryPlan) MatchesNothing() bool {
	for _, c := range p.Where {
		if in, ok := c.(IDIn); ok && len(in.IDs) == 0 {
			return true
		}
	}
	return false
}

// Paginated reports whether a limit or offset applies.
func (p *QueryPlan) Paginated() bool {
	return p.Limit > 0 || p.Offset > 0
}

// Check verifies the planner invariants:
//   - no JoinKind appears twice
//   - a left join carries no conditions
//   - every condition is attached to the join it belongs to, and root
//     conditions (including those nested in Either) need no join
//   - a facility join carries the fallback exclusion
//   - a paginated plan does not allow join eager loading
//
// A violation is an internal logic fault and is reported as *PlanError.
func (p *QueryPlan) Check() error {
	seen := make(map[JoinKind]bool, len(p.Joins))
	for _, j := range p.Joins {
		if j.Kind == JoinNone {
			return planErrorf("join without kind")
		}
		if seen[j.Kind] {
			return planErrorf("join %q applied twice", j.Kind)
		}
		seen[j.Kind] = true

		if j.Mode == JoinLeft && len(j.On) > 0 {
			return planErrorf("left join %q carries %d conditions", j.Kind, len(j.On))
		}
		if j.Kind == JoinEligibility && p.Entity != ir.EntityStudy {
			return planErrorf("eligibility join on %s plan", p.Entity)
		}

		hasFallback := false
		for _, c := range j.On {
			if c.Scope() != j.Kind {
				return planErrorf("%T belongs to join %q, attached to %q", c, c.Scope(), j.Kind)
			}
			if _, ok := c.(NotFallback); ok {
				hasFallback = true
			}
		}
		if j.Kind == JoinFacility && !hasFallback {
			return planErrorf("facility join without fallback exclusion")
		}
	}

	for _, c := range p.Where {
		if err := checkRootCondition(c); err != nil {
			return err
		}
	}

	if p.Paginated() && p.AllowJoinEagerLoad {
		return planErrorf("paginated plan allows join eager loading")
	}
	return nil
}

func checkRootCondition(c Condition) error {
	if c.Scope() != JoinNone {
		return planErrorf("%T belongs to join %q but is a root condition", c, c.Scope())
	}
	if e, ok := c.(Either); ok {
		if len(e.Conditions) == 0 {
			return planErrorf("empty disjunction")
		}
		for _, inner := range e.Conditions {
			if err := checkRootCondition(inner); err != nil {
				return err
			}
		}
	}
	return nil
}
