package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// Compiler compiles query plans to parameterized SQL for SQLite.
//
// Every value is bound as a parameter, never interpolated. Identifiers come
// only from the tables in schema.go. Every row-returning statement ends in
// an ORDER BY whose last term is the primary key, so equal inputs always
// return rows in the same order.
type Compiler struct{}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// CompileSearch compiles a PurposeSearch plan into a page query returning
// one row per entity in the layout of EntityColumns.
//
// The query groups by the primary key, so a fan-out join never yields an
// entity twice and LIMIT/OFFSET count entities, not joined rows.
func (c *Compiler) CompileSearch(plan *queryir.QueryPlan) (Statement, error) {
	t, err := tableFor(plan.Entity)
	if err != nil {
		return Statement{}, err
	}

	var b builder
	b.add("SELECT " + entityColumns(t, plan))
	if err := c.addFromWhere(&b, t, plan); err != nil {
		return Statement{}, err
	}
	b.add("GROUP BY " + t.pkCol())
	b.add("ORDER BY " + orderBy(plan.Order, ""))
	addLimit(&b, plan.Limit, plan.Offset)
	return b.statement(), nil
}

// CompileCount compiles a plan into SELECT COUNT(DISTINCT pk).
// Projection, ordering and paging of the plan are ignored.
func (c *Compiler) CompileCount(plan *queryir.QueryPlan) (Statement, error) {
	t, err := tableFor(plan.Entity)
	if err != nil {
		return Statement{}, err
	}

	var b builder
	b.add(fmt.Sprintf("SELECT COUNT(DISTINCT %s)", t.pkCol()))
	if err := c.addFromWhere(&b, t, withoutProjection(plan)); err != nil {
		return Statement{}, err
	}
	return b.statement(), nil
}

// CompileMatch compiles a plan into the set of matching primary keys. The
// result is meant for an IN sub-query and is not ordered.
func (c *Compiler) CompileMatch(plan *queryir.QueryPlan) (Statement, error) {
	t, err := tableFor(plan.Entity)
	if err != nil {
		return Statement{}, err
	}

	var b builder
	b.add("SELECT DISTINCT " + t.pkCol())
	if err := c.addFromWhere(&b, t, withoutProjection(plan)); err != nil {
		return Statement{}, err
	}
	return b.statement(), nil
}

// addFromWhere renders FROM, the plan's joins with their ON conditions and
// the WHERE clause.
func (c *Compiler) addFromWhere(b *builder, t entityTable, plan *queryir.QueryPlan) error {
	b.add(fmt.Sprintf("FROM %s %s", t.table, t.alias))

	for _, j := range plan.Joins {
		f, err := c.compileJoin(t, j)
		if err != nil {
			return err
		}
		b.addFragment(f)
	}

	if len(plan.Where) == 0 {
		return nil
	}
	where, err := c.compileConditions(t, plan.Where)
	if err != nil {
		return fmt.Errorf("compile where: %w", err)
	}
	b.add("WHERE "+where.sql, where.args...)
	return nil
}

func (c *Compiler) compileJoin(t entityTable, j queryir.Join) (fragment, error) {
	mode := "INNER JOIN"
	if j.Mode == queryir.JoinLeft {
		mode = "LEFT JOIN"
	}

	var head string
	switch j.Kind {
	case queryir.JoinEligibility:
		if t.table != "studies" {
			return fragment{}, fmt.Errorf("eligibility join on %s", t.table)
		}
		head = fmt.Sprintf("%s eligibilities %s ON %s.study_id = %s",
			mode, eligibilityAlias, eligibilityAlias, t.pkCol())
	case queryir.JoinFacility:
		head = fmt.Sprintf("%s %s %s ON %s.%s = %s %s facilities %s ON %s.facility_id = %s.facility_id",
			mode, t.facilityLink, facilityLinkAlias, facilityLinkAlias, t.pk, t.pkCol(),
			mode, facilityAlias, facilityAlias, facilityLinkAlias)
	default:
		return fragment{}, fmt.Errorf("unsupported join kind %q", j.Kind)
	}

	if len(j.On) == 0 {
		return fragment{sql: head}, nil
	}
	on, err := c.compileConditions(t, j.On)
	if err != nil {
		return fragment{}, fmt.Errorf("compile %s join: %w", j.Kind, err)
	}
	return fragment{sql: head + " AND " + on.sql, args: on.args}, nil
}

// compileConditions conjoins conditions with AND.
func (c *Compiler) compileConditions(t entityTable, conds []queryir.Condition) (fragment, error) {
	parts := make([]fragment, 0, len(conds))
	for _, cond := range conds {
		f, err := c.compileCondition(t, cond)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, f)
	}
	return joinFragments(parts, " AND "), nil
}

// compileCondition renders one condition. The switch is exhaustive over the
// sealed Condition interface.
func (c *Compiler) compileCondition(t entityTable, cond queryir.Condition) (fragment, error) {
	switch cd := cond.(type) {
	case queryir.IDIn:
		if len(cd.IDs) == 0 {
			return fragment{sql: "0 = 1"}, nil
		}
		return inList(t.pkCol(), cd.IDs), nil

	case queryir.AccessionIn:
		return inList(t.col(t.accession), cd.Values), nil

	case queryir.AttributeIn:
		col, ok := attributeColumns[cd.Attribute]
		if !ok || t.table != "studies" {
			return fragment{}, fmt.Errorf("attribute %q not available on %s", cd.Attribute, t.table)
		}
		return inList(t.col(col), cd.Values), nil

	case queryir.InterventionIn:
		if t.table != "studies" {
			return fragment{}, fmt.Errorf("intervention filter not available on %s", t.table)
		}
		in := inList("i.intervention_type", cd.Types)
		return fragment{
			sql:  fmt.Sprintf("EXISTS (SELECT 1 FROM interventions i WHERE i.study_id = %s AND %s)", t.pkCol(), in.sql),
			args: in.args,
		}, nil

	case queryir.DateRange:
		var parts []fragment
		if cd.From != "" {
			parts = append(parts, fragment{sql: t.col(t.date) + " >= ?", args: []any{cd.From}})
		}
		if cd.To != "" {
			parts = append(parts, fragment{sql: t.col(t.date) + " <= ?", args: []any{cd.To}})
		}
		if len(parts) == 0 {
			return fragment{sql: "1 = 1"}, nil
		}
		return joinFragments(parts, " AND "), nil

	case queryir.TextContains:
		return fragment{
			sql: fmt.Sprintf("(instr(fold_text(%s), ?) > 0 OR instr(fold_text(%s), ?) > 0)",
				t.col(t.title), t.col(t.summary)),
			args: []any{cd.Term, cd.Term},
		}, nil

	case queryir.DescriptorMatch:
		return compileDescriptorMatch(t, cd)

	case queryir.Either:
		if len(cd.Conditions) == 0 {
			return fragment{}, fmt.Errorf("empty disjunction")
		}
		parts := make([]fragment, 0, len(cd.Conditions))
		for _, inner := range cd.Conditions {
			f, err := c.compileCondition(t, inner)
			if err != nil {
				return fragment{}, err
			}
			parts = append(parts, f)
		}
		f := joinFragments(parts, " OR ")
		f.sql = "(" + f.sql + ")"
		return f, nil

	case queryir.GenderIs:
		col := eligibilityAlias + ".gender"
		if cd.Gender == ir.GenderAll {
			return fragment{sql: col + " = ?", args: []any{string(ir.GenderAll)}}, nil
		}
		return inList(col, []string{string(ir.GenderAll), string(cd.Gender)}), nil

	case queryir.AgeOverlap:
		var parts []fragment
		if cd.Min != nil {
			parts = append(parts, fragment{
				sql:  fmt.Sprintf("(%[1]s.maximum_age IS NULL OR %[1]s.maximum_age >= ?)", eligibilityAlias),
				args: []any{*cd.Min},
			})
		}
		if cd.Max != nil {
			parts = append(parts, fragment{
				sql:  fmt.Sprintf("(%[1]s.minimum_age IS NULL OR %[1]s.minimum_age <= ?)", eligibilityAlias),
				args: []any{*cd.Max},
			})
		}
		if len(parts) == 0 {
			return fragment{sql: "1 = 1"}, nil
		}
		return joinFragments(parts, " AND "), nil

	case queryir.FacilityIn:
		return inList(facilityAlias+".canonical_id", cd.CanonicalIDs), nil

	case queryir.GeographyIn:
		col, ok := geoColumns[cd.Level]
		if !ok {
			return fragment{}, fmt.Errorf("unsupported geography level %v", cd.Level)
		}
		return inList(fmt.Sprintf("fold_text(%s.%s)", facilityAlias, col), cd.Values), nil

	case queryir.WithinRadius:
		return fragment{
			sql: fmt.Sprintf("%[1]s.latitude IS NOT NULL AND %[1]s.longitude IS NOT NULL AND distance_km(%[1]s.latitude, %[1]s.longitude, ?, ?) <= ?",
				facilityAlias),
			args: []any{cd.Latitude, cd.Longitude, cd.RadiusKM},
		}, nil

	case queryir.NotFallback:
		return fragment{sql: notFallback(facilityAlias)}, nil

	default:
		return fragment{}, fmt.Errorf("unsupported condition type: %T", cond)
	}
}

// notFallback excludes fallback facility rows of alias via the store's
// is_fallback_match function.
func notFallback(alias string) string {
	return fmt.Sprintf("NOT is_fallback_match(%[1]s.name, %[1]s.city, %[1]s.state, %[1]s.country)", alias)
}

// entityColumns lists the entity row columns. Citations fill the study-only
// columns with constants so both kinds share one row layout.
func entityColumns(t entityTable, plan *queryir.QueryPlan) string {
	cols := []string{
		t.pkCol() + " AS " + colID,
		t.col(t.accession) + " AS " + colAccession,
		t.col(t.title) + " AS " + colTitle,
		t.col(t.summary) + " AS " + colSummary,
		fmt.Sprintf("COALESCE(%s, '') AS %s", t.col(t.date), colDate),
	}
	if _, ok := plan.Join(queryir.JoinEligibility); ok {
		cols = append(cols,
			t.col("overall_status")+" AS "+colOverallStatus,
			t.col("phase")+" AS "+colPhase,
			t.col("study_type")+" AS "+colStudyType,
			eligibilityAlias+".gender AS "+colGender,
			eligibilityAlias+".minimum_age AS "+colMinimumAge,
			eligibilityAlias+".maximum_age AS "+colMaximumAge,
		)
	} else {
		cols = append(cols,
			"'' AS "+colOverallStatus,
			"'' AS "+colPhase,
			"'' AS "+colStudyType,
			"NULL AS "+colGender,
			"NULL AS "+colMinimumAge,
			"NULL AS "+colMaximumAge,
		)
	}
	return strings.Join(cols, ", ")
}

// orderBy renders the requested order with the id tiebreaker. prefix
// qualifies result columns when ordering an outer query ("b.").
func orderBy(terms []queryir.OrderTerm, prefix string) string {
	parts := make([]string, 0, len(terms)+1)
	hasID := false
	for _, term := range terms {
		col := orderColumns[term.Field]
		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		parts = append(parts, prefix+col+" "+dir)
		if term.Field == queryir.OrderByID {
			hasID = true
			break
		}
	}
	if !hasID {
		parts = append(parts, prefix+colID+" ASC")
	}
	return strings.Join(parts, ", ")
}

// addLimit renders LIMIT/OFFSET. SQLite needs a LIMIT before OFFSET, so an
// offset alone uses LIMIT -1 (no limit).
func addLimit(b *builder, limit, offset int) {
	switch {
	case limit > 0 && offset > 0:
		b.add("LIMIT ? OFFSET ?", limit, offset)
	case limit > 0:
		b.add("LIMIT ?", limit)
	case offset > 0:
		b.add("LIMIT -1 OFFSET ?", offset)
	}
}

// withoutProjection strips the search-only left joins from a plan copy.
// Counts and matches never read eligibility columns, and a left join adds
// no restriction.
func withoutProjection(plan *queryir.QueryPlan) *queryir.QueryPlan {
	cp := *plan
	cp.Joins = nil
	for _, j := range plan.Joins {
		if j.Mode == queryir.JoinLeft {
			continue
		}
		cp.Joins = append(cp.Joins, j)
	}
	return &cp
}
