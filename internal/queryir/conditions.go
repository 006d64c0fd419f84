package queryir

import "github.com/roach88/ffquery/internal/ir"

// Condition is a resolved filter condition of a QueryPlan.
//
// This is a sealed interface - only types in this package implement it.
// Scope names the join a condition must be attached to, or JoinNone for
// conditions on the primary table.
type Condition interface {
	conditionNode()
	Scope() JoinKind
}

// IDIn restricts entities to an explicit ID set. An empty IDs slice matches
// nothing.
type IDIn struct {
	IDs []int64 // sorted, unique
}

// AccessionIn restricts entities by NCT ID or PMID.
type AccessionIn struct {
	Values []string // sorted, unique
}

// Attribute is a study column filtered by controlled vocabulary.
type Attribute string

const (
	AttrOverallStatus Attribute = "overall_status"
	AttrPhase         Attribute = "phase"
	AttrStudyType     Attribute = "study_type"
)

// AttributeIn restricts a study attribute to a set of values.
type AttributeIn struct {
	Attribute Attribute
	Values    []string // sorted, unique
}

// InterventionIn keeps studies with at least one intervention of the types.
type InterventionIn struct {
	Types []string // sorted, unique
}

// DateRange bounds the entity date, inclusive. Empty bounds are open.
type DateRange struct {
	From string // "YYYY-MM-DD"
	To   string
}

// TextContains matches a folded term against title and summary.
type TextContains struct {
	Term string // already folded with ir.Fold
}

// MatchStrategy selects how the taxonomy matcher enforces AND semantics.
type MatchStrategy string

const (
	// MatchExists conjoins one EXISTS sub-query per requested descriptor.
	MatchExists MatchStrategy = "exists"

	// MatchGroupCount groups link rows by entity and requires the number of
	// distinct matched descriptors to equal the number requested.
	MatchGroupCount MatchStrategy = "group_count"
)

// DescriptorMatch keeps entities linked to every descriptor in
// DescriptorIDs. With IncludeDescendants, a descriptor is also satisfied by
// a link to any of its taxonomy descendants.
type DescriptorMatch struct {
	DescriptorIDs      []int64 // sorted, unique; one AND group each
	IncludeDescendants bool
	Strategy           MatchStrategy
}

// Either is a disjunction of root conditions.
type Either struct {
	Conditions []Condition
}

// GenderIs filters on study eligibility gender.
type GenderIs struct {
	Gender ir.Gender
}

// AgeOverlap keeps studies whose eligibility age range overlaps [Min, Max].
// Nil bounds are open on either side.
type AgeOverlap struct {
	Min *int
	Max *int
}

// FacilityIn restricts facilities by canonical ID.
type FacilityIn struct {
	CanonicalIDs []int64 // sorted, unique
}

// GeographyIn restricts facilities at one geography level.
type GeographyIn struct {
	Level  ir.GeoLevel
	Values []string // folded with ir.Fold, sorted, unique
}

// WithinRadius keeps facilities within RadiusKM of a point.
type WithinRadius struct {
	Latitude  float64
	Longitude float64
	RadiusKM  float64
}

// NotFallback excludes fallback facility records (see ir.IsFallbackMatch).
type NotFallback struct{}

func (IDIn) conditionNode()            {}
func (AccessionIn) conditionNode()     {}
func (AttributeIn) conditionNode()     {}
func (InterventionIn) conditionNode()  {}
func (DateRange) conditionNode()       {}
func (TextContains) conditionNode()    {}
func (DescriptorMatch) conditionNode() {}
func (Either) conditionNode()          {}
func (GenderIs) conditionNode()        {}
func (AgeOverlap) conditionNode()      {}
func (FacilityIn) conditionNode()      {}
func (GeographyIn) conditionNode()     {}
func (WithinRadius) conditionNode()    {}
func (NotFallback) conditionNode()     {}

func (IDIn) Scope() JoinKind            { return JoinNone }
func (AccessionIn) Scope() JoinKind     { return JoinNone }
func (AttributeIn) Scope() JoinKind     { return JoinNone }
func (InterventionIn) Scope() JoinKind  { return JoinNone }
func (DateRange) Scope() JoinKind       { return JoinNone }
func (TextContains) Scope() JoinKind    { return JoinNone }
func (DescriptorMatch) Scope() JoinKind { return JoinNone }
func (Either) Scope() JoinKind          { return JoinNone }
func (GenderIs) Scope() JoinKind        { return JoinEligibility }
func (AgeOverlap) Scope() JoinKind      { return JoinEligibility }
func (FacilityIn) Scope() JoinKind      { return JoinFacility }
func (GeographyIn) Scope() JoinKind     { return JoinFacility }
func (WithinRadius) Scope() JoinKind    { return JoinFacility }
func (NotFallback) Scope() JoinKind     { return JoinFacility }
