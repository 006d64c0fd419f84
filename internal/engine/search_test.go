package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

var allFields = []ir.Relation{ir.RelationDescriptors, ir.RelationFacilities}

func TestSearch_PaginationStability(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		kind   ir.EntityKind
		p      queryir.Predicate
		order  string
		fields []ir.Relation
	}{
		{"studies by date with relations", ir.EntityStudy, queryir.Predicate{}, "date:desc", allFields},
		{"fan-out filter with relations", ir.EntityStudy, queryir.Predicate{Countries: []string{"United States", "France"}}, "title", allFields},
		{"descriptors only", ir.EntityStudy, queryir.Predicate{DescriptorIDs: []int64{1}}, "", []ir.Relation{ir.RelationDescriptors}},
		{"no relations", ir.EntityStudy, queryir.Predicate{}, "accession:desc", nil},
		{"citations with relations", ir.EntityCitation, queryir.Predicate{}, "date", allFields},
	}

	for _, tt := range tests {
		order, err := queryir.ParseOrder(tt.order)
		require.NoError(t, err)

		full, err := e.Search(ctx, tt.kind, tt.p, SearchOptions{Order: order, Fields: tt.fields})
		require.NoError(t, err)
		if len(tt.fields) > 0 {
			assert.Equal(t, LoadJoined, full.Strategy, tt.name)
		}

		for _, limit := range []int{1, 2, 3} {
			t.Run(fmt.Sprintf("%s/limit=%d", tt.name, limit), func(t *testing.T) {
				var pages []ir.Entity
				for offset := 0; offset <= len(full.Entities); offset += limit {
					res, err := e.Search(ctx, tt.kind, tt.p, SearchOptions{
						Page:   queryir.Page{Limit: limit, Offset: offset},
						Order:  order,
						Fields: tt.fields,
					})
					require.NoError(t, err)
					assert.LessOrEqual(t, len(res.Entities), limit)
					if len(tt.fields) > 0 {
						assert.Equal(t, LoadSecondary, res.Strategy)
					}
					pages = append(pages, res.Entities...)
				}
				assert.Equal(t, full.Entities, pages)
			})
		}
	}
}

func TestSearch_EagerFields(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := e.Search(ctx, ir.EntityStudy, queryir.Predicate{EntityIDs: []int64{101, 104}}, SearchOptions{Fields: allFields})
	require.NoError(t, err)
	require.Len(t, res.Entities, 2)
	assert.True(t, res.HasEagerFields)

	s101, s104 := res.Entities[0], res.Entities[1]

	// Qualified and unqualified links to one descriptor load it once.
	assert.Equal(t, []int64{1, 2}, descriptorIDs(s101.Descriptors))
	// Fallback rows are plain facilities of the study.
	assert.Equal(t, []int64{10, 11}, facilityIDs(s101.Facilities))

	assert.Equal(t, []int64{4}, descriptorIDs(s104.Descriptors))
	assert.NotNil(t, s104.Facilities)
	assert.Empty(t, s104.Facilities)

	f := s101.Facilities[0]
	assert.Equal(t, "General Hospital", f.Name)
	require.NotNil(t, f.Latitude)
	assert.InDelta(t, 42.3601, *f.Latitude, 1e-9)
	assert.Nil(t, s101.Facilities[1].Latitude)
}

func TestSearch_PaginatedRelations(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()
	p := queryir.Predicate{EntityIDs: []int64{101, 104}}

	for _, rel := range allFields {
		t.Run(string(rel), func(t *testing.T) {
			res, err := e.Search(ctx, ir.EntityStudy, p, SearchOptions{
				Page:   queryir.Page{Limit: 2},
				Fields: []ir.Relation{rel},
			})
			require.NoError(t, err)
			require.Len(t, res.Entities, 2)
			assert.Equal(t, LoadSecondary, res.Strategy)
			assert.True(t, res.HasEagerFields)

			s101, s104 := res.Entities[0], res.Entities[1]
			switch rel {
			case ir.RelationDescriptors:
				assert.Equal(t, []int64{1, 2}, descriptorIDs(s101.Descriptors))
				assert.Equal(t, []int64{4}, descriptorIDs(s104.Descriptors))
				assert.Nil(t, s101.Facilities)
			case ir.RelationFacilities:
				assert.Equal(t, []int64{10, 11}, facilityIDs(s101.Facilities))
				assert.NotNil(t, s104.Facilities)
				assert.Empty(t, s104.Facilities)
				assert.Nil(t, s101.Descriptors)
			}
		})
	}

	res, err := e.Search(ctx, ir.EntityCitation, queryir.Predicate{}, SearchOptions{
		Page:   queryir.Page{Limit: 1},
		Fields: allFields,
	})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, LoadSecondary, res.Strategy)
}

func TestSearch_EntityRows(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := e.Search(ctx, ir.EntityStudy, queryir.Predicate{Accessions: []string{"NCT00000102"}}, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.False(t, res.HasEagerFields)
	assert.Equal(t, LoadNone, res.Strategy)

	s := res.Entities[0]
	assert.Equal(t, ir.EntityStudy, s.Kind)
	assert.Equal(t, "NCT00000102", s.Accession)
	assert.Equal(t, "2018-06-15", s.Date)
	assert.Equal(t, "completed", s.OverallStatus)
	assert.Equal(t, "phase_3", s.Phase)
	require.NotNil(t, s.Eligibility)
	assert.Equal(t, ir.GenderFemale, s.Eligibility.Gender)
	assert.Equal(t, intPtr(12), s.Eligibility.MinimumAge)
	assert.Nil(t, s.Eligibility.MaximumAge)
	assert.Nil(t, s.Descriptors)

	res, err = e.Search(ctx, ir.EntityCitation, queryir.Predicate{Accessions: []string{"31000201"}}, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	c := res.Entities[0]
	assert.Equal(t, ir.EntityCitation, c.Kind)
	assert.Equal(t, "A cohort of asthma patients with lung neoplasms.", c.Summary)
	assert.Nil(t, c.Eligibility)
}

func TestSearch_Ordering(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		order string
		want  []int64
	}{
		{"", []int64{101, 102, 103, 104, 105}},
		{"date", []int64{105, 101, 102, 103, 104}},
		{"date:desc", []int64{104, 103, 102, 101, 105}},
		{"title", []int64{102, 103, 104, 105, 101}},
		{"id:desc", []int64{105, 104, 103, 102, 101}},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			order, err := queryir.ParseOrder(tt.order)
			require.NoError(t, err)
			res, err := e.Search(context.Background(), ir.EntityStudy, queryir.Predicate{}, SearchOptions{Order: order})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Entities))
		})
	}
}

func TestSearch_OffsetOnly(t *testing.T) {
	e := newTestEngine(t, nil)
	res, err := e.Search(context.Background(), ir.EntityStudy, queryir.Predicate{}, SearchOptions{Page: queryir.Page{Offset: 3}})
	require.NoError(t, err)
	assert.Equal(t, []int64{104, 105}, ids(res.Entities))
}

func TestSearch_SecondaryLoadChunks(t *testing.T) {
	ds := &ir.Dataset{
		Descriptors: []ir.Descriptor{{ID: 1, UI: "D1", Name: "One", TreeNumbers: []string{"A01"}}},
	}
	n := eagerChunkSize + 7
	for i := 1; i <= n; i++ {
		ds.Studies = append(ds.Studies, ir.Study{
			ID:          int64(i),
			NCTID:       fmt.Sprintf("NCT%08d", i),
			Title:       fmt.Sprintf("study %d", i),
			Descriptors: []ir.DescriptorLink{{DescriptorID: 1}},
		})
	}
	e := newTestEngine(t, ds)

	res, err := e.Search(context.Background(), ir.EntityStudy, queryir.Predicate{}, SearchOptions{
		Page:   queryir.Page{Limit: n},
		Fields: []ir.Relation{ir.RelationDescriptors},
	})
	require.NoError(t, err)
	require.Len(t, res.Entities, n)
	assert.Equal(t, LoadSecondary, res.Strategy)
	for _, ent := range res.Entities {
		assert.Equal(t, []int64{1}, descriptorIDs(ent.Descriptors), "study %d", ent.ID)
	}
}

func descriptorIDs(ds []ir.Descriptor) []int64 {
	out := make([]int64, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func facilityIDs(fs []ir.Facility) []int64 {
	out := make([]int64, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.ID)
	}
	return out
}
