package queryir

import (
	"fmt"
	"regexp"

	"github.com/roach88/ffquery/internal/ir"
)

// AggregateKind names an aggregate over the entities matching a predicate.
type AggregateKind string

const (
	AggUniqueCountries     AggregateKind = "unique_countries"
	AggUniqueStates        AggregateKind = "unique_states"
	AggUniqueCities        AggregateKind = "unique_cities"
	AggUniqueFacilities    AggregateKind = "unique_facilities"
	AggFacilityStudyCounts AggregateKind = "facility_study_counts"
	AggUniqueDescriptors   AggregateKind = "unique_descriptors"
	AggDescriptorFrequency AggregateKind = "descriptor_frequency"
	AggQualifierFrequency  AggregateKind = "qualifier_frequency"
	AggAgeRange            AggregateKind = "age_range"
)

// AggregateKinds lists every aggregate in a stable order.
var AggregateKinds = []AggregateKind{
	AggUniqueCountries,
	AggUniqueStates,
	AggUniqueCities,
	AggUniqueFacilities,
	AggFacilityStudyCounts,
	AggUniqueDescriptors,
	AggDescriptorFrequency,
	AggQualifierFrequency,
	AggAgeRange,
}

// ParseAggregateKind validates an aggregate name.
func ParseAggregateKind(s string) (AggregateKind, error) {
	for _, k := range AggregateKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &PredicateError{Clause: "aggregate", Value: s, Message: "unknown aggregate kind"}
}

// GeoLevel returns the geography level of a unique_* geography aggregate.
// The three geography kinds share one routine keyed by this level.
func (k AggregateKind) GeoLevel() (ir.GeoLevel, bool) {
	switch k {
	case AggUniqueCountries:
		return ir.GeoCountry, true
	case AggUniqueStates:
		return ir.GeoState, true
	case AggUniqueCities:
		return ir.GeoCity, true
	default:
		return 0, false
	}
}

// IsFacilityKind reports whether the aggregate groups by canonical facility.
func (k AggregateKind) IsFacilityKind() bool {
	return k == AggUniqueFacilities || k == AggFacilityStudyCounts
}

// IsDescriptorKind reports whether the aggregate groups by descriptor.
func (k AggregateKind) IsDescriptorKind() bool {
	return k == AggUniqueDescriptors || k == AggDescriptorFrequency
}

// AggregateOrder orders aggregate rows.
type AggregateOrder string

const (
	// AggOrderDefault picks the kind's natural order.
	AggOrderDefault AggregateOrder = ""

	// AggOrderCount sorts by entity count, highest first.
	AggOrderCount AggregateOrder = "count"

	// AggOrderRecent sorts descriptors by the latest date of a matching
	// entity linked to them.
	AggOrderRecent AggregateOrder = "recent"

	// AggOrderName sorts by the group's display name.
	AggOrderName AggregateOrder = "name"
)

// AggregateParams shapes an aggregate result. The Predicate decides which
// entities are aggregated; the params decide which groups are reported.
type AggregateParams struct {
	// Limit caps the number of groups. Zero means unlimited.
	Limit int            `json:"limit,omitempty" yaml:"limit,omitempty" validate:"gte=0"`
	Order AggregateOrder `json:"order,omitempty" yaml:"order,omitempty" validate:"omitempty,oneof=count recent name"`

	// Facility dimension filter of geography and facility aggregates.
	FacilityCanonicalIDs []int64  `json:"facility_canonical_ids,omitempty" yaml:"facility_canonical_ids,omitempty" validate:"omitempty,dive,gt=0"`
	Countries            []string `json:"countries,omitempty" yaml:"countries,omitempty" validate:"omitempty,dive,notblank"`
	States               []string `json:"states,omitempty" yaml:"states,omitempty" validate:"omitempty,dive,notblank"`
	Cities               []string `json:"cities,omitempty" yaml:"cities,omitempty" validate:"omitempty,dive,notblank"`

	// TreePrefixes restricts descriptor aggregates to subtrees ("C04").
	TreePrefixes []string `json:"tree_prefixes,omitempty" yaml:"tree_prefixes,omitempty" validate:"omitempty,dive,required"`
}

func (ap AggregateParams) hasFacilityFilter() bool {
	return len(ap.FacilityCanonicalIDs) > 0 || len(ap.Countries) > 0 || len(ap.States) > 0 || len(ap.Cities) > 0
}

var treeNumberPattern = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9]{3})*$`)

// ValidateAggregate checks the aggregate request on top of Validate.
func ValidateAggregate(entity ir.EntityKind, kind AggregateKind, p Predicate, ap AggregateParams) error {
	if _, err := ParseAggregateKind(string(kind)); err != nil {
		return err
	}
	if err := Validate(entity, p); err != nil {
		return err
	}
	if err := predicateValidate.Struct(ap); err != nil {
		return translateValidationError(err)
	}

	if kind == AggAgeRange && entity != ir.EntityStudy {
		return &PredicateError{Clause: "aggregate", Value: string(kind), Message: "aggregate applies to studies only"}
	}
	if ap.Order == AggOrderRecent && !kind.IsDescriptorKind() {
		return &PredicateError{Clause: "order", Value: string(ap.Order), Message: fmt.Sprintf("not supported by %s", kind)}
	}
	if ap.hasFacilityFilter() {
		if _, ok := kind.GeoLevel(); !ok && !kind.IsFacilityKind() {
			return &PredicateError{Clause: "aggregate", Value: string(kind), Message: "facility filter needs a geography or facility aggregate"}
		}
	}
	if len(ap.TreePrefixes) > 0 && !kind.IsDescriptorKind() {
		return &PredicateError{Clause: "tree_prefixes", Message: fmt.Sprintf("not supported by %s", kind)}
	}
	for _, tp := range ap.TreePrefixes {
		if !treeNumberPattern.MatchString(tp) {
			return &PredicateError{Clause: "tree_prefixes", Value: tp, Message: "malformed tree number"}
		}
	}
	return nil
}

// AggregatePlan is the resolved form of one aggregate request.
type AggregatePlan struct {
	Kind AggregateKind

	// Match selects the entities being aggregated (PurposeMatch).
	Match *QueryPlan

	// Level is set for the geography kinds.
	Level ir.GeoLevel

	// FacilityFilter holds the facility-scope conditions applied to the
	// aggregated facility rows. For geography and facility kinds it always
	// starts with NotFallback.
	FacilityFilter []Condition

	Order        AggregateOrder
	Limit        int
	TreePrefixes []string
}

// MatchesNothing reports whether the aggregate input is an explicit empty
// ID set. Such an aggregate has a neutral result and needs no query.
func (ap *AggregatePlan) MatchesNothing() bool {
	return ap.Match.MatchesNothing()
}

// PlanAggregate resolves an aggregate request. The entity selection goes
// through Plan with PurposeMatch, so aggregates share every filter rule with
// searches and counts.
func PlanAggregate(entity ir.EntityKind, kind AggregateKind, p Predicate, ap AggregateParams, opts PlanOptions) (*AggregatePlan, error) {
	opts.Purpose = PurposeMatch
	opts.Order = nil
	opts.Fields = nil

	match, err := Plan(entity, p, opts)
	if err != nil {
		return nil, err
	}

	plan := &AggregatePlan{
		Kind:         kind,
		Match:        match,
		Order:        defaultAggregateOrder(kind, ap.Order),
		Limit:        ap.Limit,
		TreePrefixes: normalizeStrings(ap.TreePrefixes, nil),
	}

	level, isGeo := kind.GeoLevel()
	if isGeo {
		plan.Level = level
	}
	if isGeo || kind.IsFacilityKind() {
		plan.FacilityFilter = facilityFilter(ap)
	}
	return plan, nil
}

func defaultAggregateOrder(kind AggregateKind, o AggregateOrder) AggregateOrder {
	if o != AggOrderDefault {
		return o
	}
	switch kind {
	case AggUniqueFacilities, AggUniqueDescriptors:
		return AggOrderName
	default:
		return AggOrderCount
	}
}

func facilityFilter(ap AggregateParams) []Condition {
	conds := []Condition{NotFallback{}}
	if ids := NormalizeIDs(ap.FacilityCanonicalIDs); len(ids) > 0 {
		conds = append(conds, FacilityIn{CanonicalIDs: ids})
	}
	levels := []struct {
		level  ir.GeoLevel
		values []string
	}{
		{ir.GeoCountry, ap.Countries},
		{ir.GeoState, ap.States},
		{ir.GeoCity, ap.Cities},
	}
	for _, l := range levels {
		if vals := normalizeStrings(l.values, ir.Fold); len(vals) > 0 {
			conds = append(conds, GeographyIn{Level: l.level, Values: vals})
		}
	}
	return conds
}
