package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/ffquery/internal/ir"
)

// PlanOptions carries the request shape and engine defaults that are not
// part of the Predicate itself.
type PlanOptions struct {
	Purpose Purpose

	// Order and Fields only apply to PurposeSearch.
	Order  []OrderTerm
	Fields []ir.Relation

	// Strategy selects the taxonomy matcher. Empty means MatchExists.
	Strategy MatchStrategy

	// DefaultCombinator applies when the predicate leaves TextCombinator
	// unset. Empty means CombineAnd.
	DefaultCombinator Combinator

	// IncludeDescendants turns on descendant expansion for every request.
	IncludeDescendants bool
}

// Plan resolves a predicate into a QueryPlan for the entity kind.
//
// The predicate is expected to have passed Validate; Plan only rejects
// request-shape errors (order fields, relations) with a *PredicateError.
// Plan never modifies p and is idempotent: equal inputs yield equal plans.
//
// Join unification: every clause that needs a relation asks the planner for
// that relation's join, and the planner hands back the existing instance when
// there is one. The facility join is created once, with its fallback
// exclusion first, no matter how many facility clauses the predicate has.
func Plan(kind ir.EntityKind, p Predicate, opts PlanOptions) (*QueryPlan, error) {
	b := &planner{plan: &QueryPlan{Entity: kind, Purpose: opts.Purpose}}

	if opts.Purpose == PurposeSearch {
		if err := b.projection(opts); err != nil {
			return nil, err
		}
	}

	if p.EntityIDs != nil {
		b.attach(IDIn{IDs: NormalizeIDs(p.EntityIDs)})
	}
	if vals := normalizeStrings(p.Accessions, strings.TrimSpace); len(vals) > 0 {
		b.attach(AccessionIn{Values: vals})
	}

	b.attribute(AttrOverallStatus, p.OverallStatuses)
	b.attribute(AttrPhase, p.Phases)
	b.attribute(AttrStudyType, p.StudyTypes)
	if vals := normalizeStrings(p.InterventionTypes, nil); len(vals) > 0 {
		b.attach(InterventionIn{Types: vals})
	}

	if p.YearMin != nil || p.YearMax != nil {
		var r DateRange
		if p.YearMin != nil {
			r.From = fmt.Sprintf("%04d-01-01", *p.YearMin)
		}
		if p.YearMax != nil {
			r.To = fmt.Sprintf("%04d-12-31", *p.YearMax)
		}
		b.attach(r)
	}

	b.textAndDescriptors(p, opts)

	if p.Gender != "" {
		b.attach(GenderIs{Gender: p.Gender})
	}
	if p.AgeMin != nil || p.AgeMax != nil {
		b.attach(AgeOverlap{Min: copyInt(p.AgeMin), Max: copyInt(p.AgeMax)})
	}

	if ids := NormalizeIDs(p.FacilityCanonicalIDs); len(ids) > 0 {
		b.attach(FacilityIn{CanonicalIDs: ids})
	}
	b.geography(ir.GeoCountry, p.Countries)
	b.geography(ir.GeoState, p.States)
	b.geography(ir.GeoCity, p.Cities)
	if p.Near != nil {
		b.attach(WithinRadius{
			Latitude:  p.Near.Latitude,
			Longitude: p.Near.Longitude,
			RadiusKM:  p.Near.RadiusKM,
		})
	}

	return b.plan, nil
}

type planner struct {
	plan *QueryPlan
}

// join returns the plan's join of the given kind, creating it on first use.
// Requesting an inner join upgrades an existing left join in place.
func (b *planner) join(kind JoinKind, mode JoinMode) (*Join, bool) {
	for i := range b.plan.Joins {
		existing := &b.plan.Joins[i]
		if existing.Kind != kind {
			continue
		}
		if mode == JoinInner {
			existing.Mode = JoinInner
		}
		return existing, false
	}
	b.plan.Joins = append(b.plan.Joins, Join{Kind: kind, Mode: mode})
	return &b.plan.Joins[len(b.plan.Joins)-1], true
}

// attach places c on the primary table or on the join it belongs to.
func (b *planner) attach(c Condition) {
	scope := c.Scope()
	if scope == JoinNone {
		b.plan.Where = append(b.plan.Where, c)
		return
	}

	j, created := b.join(scope, JoinInner)
	if created && scope == JoinFacility {
		j.On = append(j.On, NotFallback{})
	}
	j.On = append(j.On, c)
}

func (b *planner) projection(opts PlanOptions) error {
	order := make([]OrderTerm, 0, len(opts.Order))
	for _, t := range opts.Order {
		if err := t.validate(); err != nil {
			return err
		}
		order = append(order, t)
	}
	b.plan.Order = normalizeOrder(order)

	fields, err := normalizeFields(opts.Fields)
	if err != nil {
		return err
	}
	b.plan.Fields = fields
	b.plan.AllowJoinEagerLoad = len(fields) > 0

	// Eligibility columns are part of every study row.
	if b.plan.Entity == ir.EntityStudy {
		b.join(JoinEligibility, JoinLeft)
	}
	return nil
}

func (b *planner) attribute(attr Attribute, values []string) {
	if vals := normalizeStrings(values, nil); len(vals) > 0 {
		b.attach(AttributeIn{Attribute: attr, Values: vals})
	}
}

func (b *planner) geography(level ir.GeoLevel, values []string) {
	if vals := normalizeStrings(values, ir.Fold); len(vals) > 0 {
		b.attach(GeographyIn{Level: level, Values: vals})
	}
}

// textAndDescriptors adds the free-text and taxonomy conditions. They are
// the one clause pair whose combinator is configurable; every other clause
// combines with AND.
func (b *planner) textAndDescriptors(p Predicate, opts PlanOptions) {
	desc := matchDescriptors(p.DescriptorIDs, p.IncludeDescendants || opts.IncludeDescendants, opts.Strategy)

	var text Condition
	if term := ir.Fold(p.Text); term != "" {
		text = TextContains{Term: term}
	}

	combinator := p.TextCombinator
	if combinator == CombineDefault {
		combinator = opts.DefaultCombinator
	}

	switch {
	case desc != nil && text != nil && combinator == CombineOr:
		b.attach(Either{Conditions: []Condition{desc, text}})
	default:
		if desc != nil {
			b.attach(desc)
		}
		if text != nil {
			b.attach(text)
		}
	}
}

func normalizeFields(fields []ir.Relation) ([]ir.Relation, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	want := make(map[ir.Relation]bool, len(fields))
	for _, f := range fields {
		if _, err := ir.ParseRelation(string(f)); err != nil {
			return nil, &PredicateError{Clause: "fields", Value: string(f), Message: "unknown relation"}
		}
		want[f] = true
	}
	out := make([]ir.Relation, 0, len(want))
	for _, r := range ir.Relations {
		if want[r] {
			out = append(out, r)
		}
	}
	return out, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
