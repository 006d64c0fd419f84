package ir

import "fmt"

// EntityKind identifies one of the two primary record sets.
type EntityKind string

const (
	// EntityStudy is a clinical-trial study.
	EntityStudy EntityKind = "study"

	// EntityCitation is a literature citation.
	EntityCitation EntityKind = "citation"
)

// EntityKinds lists every supported kind in a stable order.
var EntityKinds = []EntityKind{EntityStudy, EntityCitation}

// ParseEntityKind accepts singular and plural spellings ("study", "studies").
func ParseEntityKind(s string) (EntityKind, error) {
	switch s {
	case "study", "studies":
		return EntityStudy, nil
	case "citation", "citations":
		return EntityCitation, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
}

// Entity is a study or a citation as returned by a search.
//
// Study-only attributes are empty for citations. Descriptors and Facilities
// are only populated when the caller requested them as eager fields.
type Entity struct {
	Kind      EntityKind `json:"kind"`
	ID        int64      `json:"id"`
	Accession string     `json:"accession"` // NCT ID or PMID
	Title     string     `json:"title"`
	Summary   string     `json:"summary,omitempty"`
	Date      string     `json:"date,omitempty"` // start date or publication date

	OverallStatus string       `json:"overall_status,omitempty"`
	Phase         string       `json:"phase,omitempty"`
	StudyType     string       `json:"study_type,omitempty"`
	Eligibility   *Eligibility `json:"eligibility,omitempty"`

	Descriptors []Descriptor `json:"descriptors,omitempty"`
	Facilities  []Facility   `json:"facilities,omitempty"`
}

// Eligibility holds the demographic constraints of a study.
// A nil age bound means the study declares no limit on that side.
type Eligibility struct {
	Gender     Gender `json:"gender" yaml:"gender"`
	MinimumAge *int   `json:"minimum_age,omitempty" yaml:"minimum_age,omitempty"`
	MaximumAge *int   `json:"maximum_age,omitempty" yaml:"maximum_age,omitempty"`
}

// Descriptor is a node of the medical-subject taxonomy.
//
// A descriptor may sit at several positions of the hierarchy, one per tree
// number ("C04.588.274"). Descendants are the descriptors whose tree number
// extends one of these with a "." separated suffix.
type Descriptor struct {
	ID          int64    `json:"id" yaml:"id"`
	UI          string   `json:"ui" yaml:"ui"`
	Name        string   `json:"name" yaml:"name"`
	TreeNumbers []string `json:"tree_numbers,omitempty" yaml:"tree_numbers,omitempty"`
}

// Qualifier refines a descriptor link ("drug therapy", "diagnosis").
type Qualifier struct {
	ID   int64  `json:"id" yaml:"id"`
	UI   string `json:"ui" yaml:"ui"`
	Name string `json:"name" yaml:"name"`
}

// DescriptorLink associates an entity with a descriptor.
// QualifierID zero means the link carries no qualifier.
type DescriptorLink struct {
	DescriptorID int64 `json:"descriptor_id" yaml:"descriptor_id"`
	QualifierID  int64 `json:"qualifier_id,omitempty" yaml:"qualifier_id,omitempty"`
}

// Relation names a one-to-many collection that can be eager-loaded.
type Relation string

const (
	RelationDescriptors Relation = "descriptors"
	RelationFacilities  Relation = "facilities"
)

// Relations lists every eager-loadable relation in a stable order.
var Relations = []Relation{RelationDescriptors, RelationFacilities}

// ParseRelation validates a relation name.
func ParseRelation(s string) (Relation, error) {
	for _, r := range Relations {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown relation %q", s)
}
