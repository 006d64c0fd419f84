package queryir

import "github.com/roach88/ffquery/internal/ir"

// Combinator decides how the free-text clause composes with the descriptor
// clause when both are present. Every other pair of clauses combines with AND.
type Combinator string

const (
	// CombineDefault defers to the engine's configured combinator.
	CombineDefault Combinator = ""
	CombineAnd     Combinator = "and"
	CombineOr      Combinator = "or"
)

// GeoRadius restricts facilities to those within RadiusKM of a point.
type GeoRadius struct {
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
	RadiusKM  float64 `json:"radius_km" yaml:"radius_km" validate:"gt=0,lte=20040"`
}

// Predicate is the full set of filter clauses of one request.
//
// Every clause is optional; an absent or empty clause adds no restriction and
// the zero Predicate matches every entity. The one exception is EntityIDs: a
// nil slice is absent, while a non-nil empty slice is an explicit empty ID set
// and matches nothing.
//
// A Predicate is treated as immutable once built. Plan never modifies it, so
// one value can drive a page query, a count and any number of aggregates.
type Predicate struct {
	EntityIDs  []int64  `json:"entity_ids,omitempty" yaml:"entity_ids,omitempty" validate:"omitempty,dive,gt=0"`
	Accessions []string `json:"accessions,omitempty" yaml:"accessions,omitempty" validate:"omitempty,dive,notblank"`

	// DescriptorIDs must all be linked to a matching entity.
	DescriptorIDs []int64 `json:"descriptor_ids,omitempty" yaml:"descriptor_ids,omitempty" validate:"omitempty,dive,gt=0"`

	// IncludeDescendants lets a requested descriptor match through any of its
	// taxonomy descendants.
	IncludeDescendants bool `json:"include_descendants,omitempty" yaml:"include_descendants,omitempty"`

	FacilityCanonicalIDs []int64    `json:"facility_canonical_ids,omitempty" yaml:"facility_canonical_ids,omitempty" validate:"omitempty,dive,gt=0"`
	Countries            []string   `json:"countries,omitempty" yaml:"countries,omitempty" validate:"omitempty,dive,notblank"`
	States               []string   `json:"states,omitempty" yaml:"states,omitempty" validate:"omitempty,dive,notblank"`
	Cities               []string   `json:"cities,omitempty" yaml:"cities,omitempty" validate:"omitempty,dive,notblank"`
	Near                 *GeoRadius `json:"near,omitempty" yaml:"near,omitempty" validate:"omitempty"`

	OverallStatuses   []string  `json:"overall_statuses,omitempty" yaml:"overall_statuses,omitempty" validate:"omitempty,dive,overall_status"`
	Phases            []string  `json:"phases,omitempty" yaml:"phases,omitempty" validate:"omitempty,dive,phase"`
	StudyTypes        []string  `json:"study_types,omitempty" yaml:"study_types,omitempty" validate:"omitempty,dive,study_type"`
	InterventionTypes []string  `json:"intervention_types,omitempty" yaml:"intervention_types,omitempty" validate:"omitempty,dive,intervention_type"`
	Gender            ir.Gender `json:"gender,omitempty" yaml:"gender,omitempty" validate:"omitempty,gender"`
	AgeMin            *int      `json:"age_min,omitempty" yaml:"age_min,omitempty" validate:"omitempty,gte=0,lte=200"`
	AgeMax            *int      `json:"age_max,omitempty" yaml:"age_max,omitempty" validate:"omitempty,gte=0,lte=200"`

	YearMin *int `json:"year_min,omitempty" yaml:"year_min,omitempty" validate:"omitempty,gte=1000,lte=9999"`
	YearMax *int `json:"year_max,omitempty" yaml:"year_max,omitempty" validate:"omitempty,gte=1000,lte=9999"`

	Text           string     `json:"text,omitempty" yaml:"text,omitempty" validate:"max=512"`
	TextCombinator Combinator `json:"text_combinator,omitempty" yaml:"text_combinator,omitempty" validate:"omitempty,oneof=and or"`
}

// HasExplicitEmptyIDs reports whether the predicate restricts to an empty
// ID set. Such a predicate matches nothing and needs no query.
func (p Predicate) HasExplicitEmptyIDs() bool {
	return p.EntityIDs != nil && len(p.EntityIDs) == 0
}

// needsFacilityJoin reports whether any clause filters on facilities.
func (p Predicate) needsFacilityJoin() bool {
	return len(p.FacilityCanonicalIDs) > 0 ||
		len(p.Countries) > 0 ||
		len(p.States) > 0 ||
		len(p.Cities) > 0 ||
		p.Near != nil
}

// studyOnlyClauses returns the names of study-only clauses that are set.
func (p Predicate) studyOnlyClauses() []string {
	var names []string
	if len(p.OverallStatuses) > 0 {
		names = append(names, "overall_statuses")
	}
	if len(p.Phases) > 0 {
		names = append(names, "phases")
	}
	if len(p.StudyTypes) > 0 {
		names = append(names, "study_types")
	}
	if len(p.InterventionTypes) > 0 {
		names = append(names, "intervention_types")
	}
	if p.Gender != "" {
		names = append(names, "gender")
	}
	if p.AgeMin != nil {
		names = append(names, "age_min")
	}
	if p.AgeMax != nil {
		names = append(names, "age_max")
	}
	return names
}
