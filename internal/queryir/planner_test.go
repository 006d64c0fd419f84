package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffquery/internal/ir"
)

func mustPlan(t *testing.T, kind ir.EntityKind, p Predicate, opts PlanOptions) *QueryPlan {
	t.Helper()
	plan, err := Plan(kind, p, opts)
	require.NoError(t, err)
	require.NoError(t, plan.Check())
	return plan
}

func TestPlan_ZeroPredicate(t *testing.T) {
	plan := mustPlan(t, ir.EntityCitation, Predicate{}, PlanOptions{Purpose: PurposeCount})

	assert.Empty(t, plan.Joins)
	assert.Empty(t, plan.Where)
	assert.False(t, plan.MatchesNothing())
}

func TestPlan_FacilityJoinUnification(t *testing.T) {
	p := Predicate{
		FacilityCanonicalIDs: []int64{9, 3, 9},
		Countries:            []string{"France"},
		Cities:               []string{" PARIS ", "paris"},
		Near:                 &GeoRadius{Latitude: 48.85, Longitude: 2.35, RadiusKM: 25},
	}
	plan := mustPlan(t, ir.EntityStudy, p, PlanOptions{Purpose: PurposeCount})

	require.Len(t, plan.Joins, 1)
	j := plan.Joins[0]
	assert.Equal(t, JoinFacility, j.Kind)
	assert.Equal(t, JoinInner, j.Mode)
	assert.Equal(t, []Condition{
		NotFallback{},
		FacilityIn{CanonicalIDs: []int64{3, 9}},
		GeographyIn{Level: ir.GeoCountry, Values: []string{"france"}},
		GeographyIn{Level: ir.GeoCity, Values: []string{"paris"}},
		WithinRadius{Latitude: 48.85, Longitude: 2.35, RadiusKM: 25},
	}, j.On)
	assert.Empty(t, plan.Where)
}

func TestPlan_EligibilityJoinUpgrade(t *testing.T) {
	t.Run("projection only", func(t *testing.T) {
		plan := mustPlan(t, ir.EntityStudy, Predicate{}, PlanOptions{})
		j, ok := plan.Join(JoinEligibility)
		require.True(t, ok)
		assert.Equal(t, JoinLeft, j.Mode)
		assert.Empty(t, j.On)
	})

	t.Run("filter upgrades projection join", func(t *testing.T) {
		p := Predicate{Gender: ir.GenderFemale, AgeMin: intPtr(18), AgeMax: intPtr(30)}
		plan := mustPlan(t, ir.EntityStudy, p, PlanOptions{})

		require.Len(t, plan.Joins, 1)
		j := plan.Joins[0]
		assert.Equal(t, JoinEligibility, j.Kind)
		assert.Equal(t, JoinInner, j.Mode)
		assert.Equal(t, []Condition{
			GenderIs{Gender: ir.GenderFemale},
			AgeOverlap{Min: intPtr(18), Max: intPtr(30)},
		}, j.On)
	})

	t.Run("citations never join eligibility", func(t *testing.T) {
		plan := mustPlan(t, ir.EntityCitation, Predicate{}, PlanOptions{})
		_, ok := plan.Join(JoinEligibility)
		assert.False(t, ok)
	})

	t.Run("counts skip the projection join", func(t *testing.T) {
		plan := mustPlan(t, ir.EntityStudy, Predicate{}, PlanOptions{Purpose: PurposeCount})
		assert.Empty(t, plan.Joins)
	})
}

func TestPlan_RootConditions(t *testing.T) {
	p := Predicate{
		EntityIDs:         []int64{5, 1, 5},
		Accessions:        []string{"NCT002", " NCT001", "NCT002"},
		OverallStatuses:   []string{"recruiting", "completed"},
		Phases:            []string{"phase_2"},
		InterventionTypes: []string{"drug", "device", "drug"},
		YearMin:           intPtr(2010),
		YearMax:           intPtr(2015),
		DescriptorIDs:     []int64{20, 10},
		Text:              "  Asthma ",
	}
	plan := mustPlan(t, ir.EntityStudy, p, PlanOptions{Purpose: PurposeCount})

	assert.Equal(t, []Condition{
		IDIn{IDs: []int64{1, 5}},
		AccessionIn{Values: []string{"NCT001", "NCT002"}},
		AttributeIn{Attribute: AttrOverallStatus, Values: []string{"completed", "recruiting"}},
		AttributeIn{Attribute: AttrPhase, Values: []string{"phase_2"}},
		InterventionIn{Types: []string{"device", "drug"}},
		DateRange{From: "2010-01-01", To: "2015-12-31"},
		DescriptorMatch{DescriptorIDs: []int64{10, 20}, Strategy: MatchExists},
		TextContains{Term: "asthma"},
	}, plan.Where)
	assert.Empty(t, plan.Joins, "descriptor and intervention filters never join")
}

func TestPlan_OpenDateRange(t *testing.T) {
	plan := mustPlan(t, ir.EntityCitation, Predicate{YearMax: intPtr(1999)}, PlanOptions{Purpose: PurposeCount})
	assert.Equal(t, []Condition{DateRange{To: "1999-12-31"}}, plan.Where)
}

func TestPlan_TextCombinator(t *testing.T) {
	base := Predicate{DescriptorIDs: []int64{10}, Text: "asthma"}
	desc := DescriptorMatch{DescriptorIDs: []int64{10}, Strategy: MatchExists}
	text := TextContains{Term: "asthma"}

	testCases := []struct {
		name       string
		predicate  Combinator
		configured Combinator
		want       []Condition
	}{
		{"default is and", CombineDefault, CombineDefault, []Condition{desc, text}},
		{"configured or", CombineDefault, CombineOr, []Condition{Either{Conditions: []Condition{desc, text}}}},
		{"predicate overrides config", CombineAnd, CombineOr, []Condition{desc, text}},
		{"predicate or", CombineOr, CombineAnd, []Condition{Either{Conditions: []Condition{desc, text}}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			p.TextCombinator = tc.predicate
			plan := mustPlan(t, ir.EntityCitation, p, PlanOptions{Purpose: PurposeCount, DefaultCombinator: tc.configured})
			assert.Equal(t, tc.want, plan.Where)
		})
	}

	t.Run("or with a single clause is plain", func(t *testing.T) {
		p := Predicate{Text: "asthma", TextCombinator: CombineOr}
		plan := mustPlan(t, ir.EntityCitation, p, PlanOptions{Purpose: PurposeCount})
		assert.Equal(t, []Condition{text}, plan.Where)
	})
}

func TestPlan_DescriptorOptions(t *testing.T) {
	p := Predicate{DescriptorIDs: []int64{3, 3, 1}}
	plan := mustPlan(t, ir.EntityStudy, p, PlanOptions{
		Purpose:            PurposeMatch,
		Strategy:           MatchGroupCount,
		IncludeDescendants: true,
	})
	assert.Equal(t, []Condition{
		DescriptorMatch{DescriptorIDs: []int64{1, 3}, IncludeDescendants: true, Strategy: MatchGroupCount},
	}, plan.Where)
}

func TestPlan_ExplicitEmptyIDs(t *testing.T) {
	plan := mustPlan(t, ir.EntityStudy, Predicate{EntityIDs: []int64{}}, PlanOptions{Purpose: PurposeMatch})
	assert.True(t, plan.MatchesNothing())

	plan = mustPlan(t, ir.EntityStudy, Predicate{EntityIDs: nil}, PlanOptions{Purpose: PurposeMatch})
	assert.False(t, plan.MatchesNothing())
}

func TestPlan_Idempotent(t *testing.T) {
	p := Predicate{
		EntityIDs:     []int64{3, 1},
		DescriptorIDs: []int64{2, 1},
		Countries:     []string{"France", "Spain"},
		States:        []string{"Ile-de-France"},
		Gender:        ir.GenderMale,
		AgeMax:        intPtr(60),
		Text:          "lung",
	}
	opts := PlanOptions{
		Order:  []OrderTerm{{Field: OrderByDate, Desc: true}},
		Fields: []ir.Relation{ir.RelationFacilities, ir.RelationDescriptors},
	}

	first := mustPlan(t, ir.EntityStudy, p, opts)
	second := mustPlan(t, ir.EntityStudy, p, opts)
	assert.Equal(t, first, second)

	// The predicate is not modified by planning.
	assert.Equal(t, []int64{3, 1}, p.EntityIDs)
	assert.Equal(t, []string{"France", "Spain"}, p.Countries)
}

func TestPlan_SearchProjection(t *testing.T) {
	opts := PlanOptions{
		Order: []OrderTerm{
			{Field: OrderByTitle},
			{Field: OrderByDate, Desc: true},
			{Field: OrderByTitle, Desc: true},
		},
		Fields: []ir.Relation{ir.RelationFacilities, ir.RelationDescriptors, ir.RelationFacilities},
	}
	plan := mustPlan(t, ir.EntityCitation, Predicate{}, opts)

	assert.Equal(t, []OrderTerm{{Field: OrderByTitle}, {Field: OrderByDate, Desc: true}}, plan.Order)
	assert.Equal(t, []ir.Relation{ir.RelationDescriptors, ir.RelationFacilities}, plan.Fields)
	assert.True(t, plan.AllowJoinEagerLoad)
}

func TestPlan_RejectsRequestShape(t *testing.T) {
	_, err := Plan(ir.EntityStudy, Predicate{}, PlanOptions{Order: []OrderTerm{{Field: "score"}}})
	assert.True(t, IsInvalidPredicate(err))

	_, err = Plan(ir.EntityStudy, Predicate{}, PlanOptions{Fields: []ir.Relation{"authors"}})
	assert.True(t, IsInvalidPredicate(err))
}

func TestApplyPage(t *testing.T) {
	testCases := []struct {
		name      string
		page      Page
		wantEager bool
	}{
		{"unpaginated keeps join eager load", Page{}, true},
		{"limit disables join eager load", Page{Limit: 10}, false},
		{"offset disables join eager load", Page{Offset: 10}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			plan := mustPlan(t, ir.EntityStudy, Predicate{}, PlanOptions{Fields: []ir.Relation{ir.RelationFacilities}})
			plan.ApplyPage(tc.page)
			assert.Equal(t, tc.wantEager, plan.AllowJoinEagerLoad)
			assert.NoError(t, plan.Check())
		})
	}
}

func TestCheck_Violations(t *testing.T) {
	testCases := []struct {
		name string
		plan QueryPlan
		want string
	}{
		{
			name: "duplicate join",
			plan: QueryPlan{Entity: ir.EntityStudy, Joins: []Join{
				{Kind: JoinFacility, Mode: JoinInner, On: []Condition{NotFallback{}}},
				{Kind: JoinFacility, Mode: JoinInner, On: []Condition{NotFallback{}}},
			}},
			want: "applied twice",
		},
		{
			name: "condition on wrong join",
			plan: QueryPlan{Entity: ir.EntityStudy, Joins: []Join{
				{Kind: JoinEligibility, Mode: JoinInner, On: []Condition{GeographyIn{Level: ir.GeoCity, Values: []string{"paris"}}}},
			}},
			want: "belongs to join",
		},
		{
			name: "join condition at root",
			plan: QueryPlan{Entity: ir.EntityStudy, Where: []Condition{GenderIs{Gender: ir.GenderAll}}},
			want: "root condition",
		},
		{
			name: "facility join without fallback exclusion",
			plan: QueryPlan{Entity: ir.EntityStudy, Joins: []Join{
				{Kind: JoinFacility, Mode: JoinInner, On: []Condition{FacilityIn{CanonicalIDs: []int64{1}}}},
			}},
			want: "fallback",
		},
		{
			name: "left join with conditions",
			plan: QueryPlan{Entity: ir.EntityStudy, Joins: []Join{
				{Kind: JoinEligibility, Mode: JoinLeft, On: []Condition{GenderIs{Gender: ir.GenderAll}}},
			}},
			want: "left join",
		},
		{
			name: "eligibility on citations",
			plan: QueryPlan{Entity: ir.EntityCitation, Joins: []Join{{Kind: JoinEligibility, Mode: JoinLeft}}},
			want: "eligibility join",
		},
		{
			name: "empty disjunction",
			plan: QueryPlan{Entity: ir.EntityStudy, Where: []Condition{Either{}}},
			want: "empty disjunction",
		},
		{
			name: "paginated join eager load",
			plan: QueryPlan{Entity: ir.EntityStudy, Limit: 10, AllowJoinEagerLoad: true},
			want: "eager",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.plan.Check()
			require.Error(t, err)
			assert.True(t, IsInconsistentPlan(err))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestPlanAggregate(t *testing.T) {
	p := Predicate{Countries: []string{"France"}}
	params := AggregateParams{Cities: []string{"Lyon", "Paris"}, Limit: 5}

	plan, err := PlanAggregate(ir.EntityStudy, AggUniqueCities, p, params, PlanOptions{Purpose: PurposeSearch, Fields: []ir.Relation{ir.RelationFacilities}})
	require.NoError(t, err)

	assert.Equal(t, PurposeMatch, plan.Match.Purpose)
	assert.Empty(t, plan.Match.Fields)
	assert.Equal(t, ir.GeoCity, plan.Level)
	assert.Equal(t, AggOrderCount, plan.Order)
	assert.Equal(t, 5, plan.Limit)
	assert.Equal(t, []Condition{
		NotFallback{},
		GeographyIn{Level: ir.GeoCity, Values: []string{"lyon", "paris"}},
	}, plan.FacilityFilter)
	require.NoError(t, plan.Match.Check())
}

func TestPlanAggregate_DefaultOrders(t *testing.T) {
	want := map[AggregateKind]AggregateOrder{
		AggUniqueCountries:     AggOrderCount,
		AggUniqueFacilities:    AggOrderName,
		AggFacilityStudyCounts: AggOrderCount,
		AggUniqueDescriptors:   AggOrderName,
		AggDescriptorFrequency: AggOrderCount,
		AggQualifierFrequency:  AggOrderCount,
	}
	for kind, order := range want {
		plan, err := PlanAggregate(ir.EntityStudy, kind, Predicate{}, AggregateParams{}, PlanOptions{})
		require.NoError(t, err)
		assert.Equal(t, order, plan.Order, kind)
	}
}

func TestPlanAggregate_EmptyIDs(t *testing.T) {
	plan, err := PlanAggregate(ir.EntityCitation, AggUniqueCountries, Predicate{EntityIDs: []int64{}}, AggregateParams{}, PlanOptions{})
	require.NoError(t, err)
	assert.True(t, plan.MatchesNothing())
}

func TestNormalizeIDs(t *testing.T) {
	assert.Nil(t, NormalizeIDs(nil))
	assert.Equal(t, []int64{}, NormalizeIDs([]int64{}))
	assert.Equal(t, []int64{1, 2, 9}, NormalizeIDs([]int64{9, 2, 1, 2}))

	s := NewIDSet(6, -1, 0, 5, 6)
	s.Add(4)
	assert.Equal(t, []int64{4, 5, 6}, s.Slice())
	assert.Equal(t, 3, s.Len())
}
