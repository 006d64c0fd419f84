package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ffquery/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// createTestDataset returns a small dataset touching every table.
func createTestDataset() *ir.Dataset {
	return &ir.Dataset{
		Descriptors: []ir.Descriptor{
			{ID: 1, UI: "D001249", Name: "Asthma", TreeNumbers: []string{"C08.127.108", "C08.381.495.108"}},
			{ID: 2, UI: "D008175", Name: "Lung Neoplasms", TreeNumbers: []string{"C04.588.894.797.520"}},
		},
		Qualifiers: []ir.Qualifier{
			{ID: 1, UI: "Q000188", Name: "drug therapy"},
		},
		Facilities: []ir.Facility{
			{ID: 10, CanonicalID: 10, Name: "Hopital Cochin", City: "Paris", Country: "France", Latitude: ptr(48.838), Longitude: ptr(2.339)},
			{ID: 11, CanonicalID: 11, Name: "Paris", City: "Paris", Country: "France"},
		},
		Studies: []ir.Study{
			{
				ID: 100, NCTID: "NCT00000100", Title: "Inhaled steroids", OverallStatus: "recruiting",
				StartDate:         "2015-03-01",
				Eligibility:       &ir.Eligibility{Gender: ir.GenderAll, MinimumAge: ptr(18)},
				InterventionTypes: []string{"drug"},
				Descriptors:       []ir.DescriptorLink{{DescriptorID: 1}, {DescriptorID: 1, QualifierID: 1}},
				FacilityIDs:       []int64{10, 11},
			},
		},
		Citations: []ir.Citation{
			{ID: 200, PMID: "31000200", Title: "Asthma outcomes", PublicationDate: "2019-05-02",
				Descriptors: []ir.DescriptorLink{{DescriptorID: 1}}, AffiliationIDs: []int64{10}},
		},
	}
}
