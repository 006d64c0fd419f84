package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffquery/internal/ir"
)

func TestLoadDataset(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stats, err := s.LoadDataset(ctx, createTestDataset())
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Descriptors: 2, Qualifiers: 1, Facilities: 2, Studies: 1, Citations: 1}, stats)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, TableCounts{Descriptors: 2, Qualifiers: 1, Facilities: 2, Studies: 1, Citations: 1}, counts)

	var links, trees, gender string
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM study_descriptors WHERE study_id = 100`).Scan(&links))
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM descriptor_tree_numbers WHERE descriptor_id = 1`).Scan(&trees))
	require.NoError(t, s.db.QueryRow(`SELECT gender FROM eligibilities WHERE study_id = 100`).Scan(&gender))
	assert.Equal(t, "2", links)
	assert.Equal(t, "2", trees)
	assert.Equal(t, "all", gender)

	var maxAge *int
	require.NoError(t, s.db.QueryRow(`SELECT maximum_age FROM eligibilities WHERE study_id = 100`).Scan(&maxAge))
	assert.Nil(t, maxAge)
}

func TestLoadDataset_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ds := createTestDataset()

	_, err := s.LoadDataset(ctx, ds)
	require.NoError(t, err)
	_, err = s.LoadDataset(ctx, ds)
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Studies)

	var interventions int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM interventions`).Scan(&interventions))
	assert.Equal(t, 1, interventions)
}

func TestLoadDataset_ReplacesLinks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	ds := createTestDataset()

	_, err := s.LoadDataset(ctx, ds)
	require.NoError(t, err)

	ds.Studies[0].FacilityIDs = []int64{10}
	ds.Studies[0].Title = "Inhaled steroids, revised"
	_, err = s.LoadDataset(ctx, ds)
	require.NoError(t, err)

	var facilities int
	var title string
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM study_facilities WHERE study_id = 100`).Scan(&facilities))
	require.NoError(t, s.db.QueryRow(`SELECT title FROM studies WHERE study_id = 100`).Scan(&title))
	assert.Equal(t, 1, facilities)
	assert.Equal(t, "Inhaled steroids, revised", title)
}

func TestLoadDataset_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ds := createTestDataset()
	ds.Citations[0].AffiliationIDs = []int64{999} // no such facility

	_, err := s.LoadDataset(ctx, ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "citation 200")

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, TableCounts{}, counts)
}

func TestLoadDataset_DefaultsCanonicalID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.LoadDataset(ctx, &ir.Dataset{Facilities: []ir.Facility{{ID: 5, Name: "Clinic"}}})
	require.NoError(t, err)

	var canonical int64
	require.NoError(t, s.db.QueryRow(`SELECT canonical_id FROM facilities WHERE facility_id = 5`).Scan(&canonical))
	assert.Equal(t, int64(5), canonical)
}

func TestLoadDataset_Nil(t *testing.T) {
	s := createTestStore(t)
	stats, err := s.LoadDataset(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{}, stats)
}
