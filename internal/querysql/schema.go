package querysql

import (
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// entityTable maps an entity kind onto its tables. All names are constants
// of this package; no identifier in compiled SQL comes from caller input.
type entityTable struct {
	table     string // primary table
	alias     string // primary table alias
	pk        string // primary key column, also the FK column of link tables
	accession string
	title     string
	summary   string
	date      string

	descriptorLink string // (pk, descriptor_id, qualifier_id)
	facilityLink   string // (pk, facility_id)
}

var entityTables = map[ir.EntityKind]entityTable{
	ir.EntityStudy: {
		table:          "studies",
		alias:          "s",
		pk:             "study_id",
		accession:      "nct_id",
		title:          "title",
		summary:        "summary",
		date:           "start_date",
		descriptorLink: "study_descriptors",
		facilityLink:   "study_facilities",
	},
	ir.EntityCitation: {
		table:          "citations",
		alias:          "c",
		pk:             "citation_id",
		accession:      "pmid",
		title:          "title",
		summary:        "abstract",
		date:           "publication_date",
		descriptorLink: "citation_descriptors",
		facilityLink:   "citation_affiliations",
	},
}

func tableFor(kind ir.EntityKind) (entityTable, error) {
	t, ok := entityTables[kind]
	if !ok {
		return entityTable{}, fmt.Errorf("unsupported entity kind %q", kind)
	}
	return t, nil
}

// col qualifies a column of the primary table.
func (t entityTable) col(name string) string {
	return t.alias + "." + name
}

func (t entityTable) pkCol() string {
	return t.col(t.pk)
}

// Join aliases.
const (
	eligibilityAlias  = "el"
	facilityLinkAlias = "lf"
	facilityAlias     = "f"
)

// attributeColumns whitelists the study attribute columns.
var attributeColumns = map[queryir.Attribute]string{
	queryir.AttrOverallStatus: "overall_status",
	queryir.AttrPhase:         "phase",
	queryir.AttrStudyType:     "study_type",
}

// geoColumns maps a geography level to its facilities column.
var geoColumns = map[ir.GeoLevel]string{
	ir.GeoCountry: "country",
	ir.GeoState:   "state",
	ir.GeoCity:    "city",
}

// Result column names of entity rows. Search, joined-search and the eager
// loaders all share this layout; see scan.go.
const (
	colID            = "id"
	colAccession     = "accession"
	colTitle         = "title"
	colSummary       = "summary"
	colDate          = "entity_date"
	colOverallStatus = "overall_status"
	colPhase         = "phase"
	colStudyType     = "study_type"
	colGender        = "gender"
	colMinimumAge    = "minimum_age"
	colMaximumAge    = "maximum_age"
)

// orderColumns maps order fields to result columns.
var orderColumns = map[queryir.OrderField]string{
	queryir.OrderByID:        colID,
	queryir.OrderByAccession: colAccession,
	queryir.OrderByTitle:     colTitle,
	queryir.OrderByDate:      colDate,
}
