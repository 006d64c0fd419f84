package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// Aggregate row layouts:
//
//	geography:   country, state, city, entity_count
//	facility:    canonical_id, name, city, state, country, entity_count
//	descriptor:  descriptor_id, ui, name, entity_count, latest_date
//	qualifier:   qualifier_id, ui, name, entity_count
//	age range:   entity_count, min_age, max_age
//
// Geography rows leave levels finer than the requested one empty.

// aggregateLinkAlias aliases the link table an aggregate groups over.
const aggregateLinkAlias = "al"

// CompileAggregate compiles an aggregate plan. The plan's Match selects the
// aggregated entities through an IN sub-query; its filters are therefore
// exactly those of a search or count with the same predicate.
func (c *Compiler) CompileAggregate(ap *queryir.AggregatePlan) (Statement, error) {
	t, err := tableFor(ap.Match.Entity)
	if err != nil {
		return Statement{}, err
	}

	match, err := c.matchFilter(t, ap.Match)
	if err != nil {
		return Statement{}, err
	}

	switch {
	case isGeography(ap.Kind):
		return c.compileGeography(t, ap, match)
	case ap.Kind.IsFacilityKind():
		return c.compileFacilities(t, ap, match)
	case ap.Kind.IsDescriptorKind():
		return c.compileDescriptors(t, ap, match)
	case ap.Kind == queryir.AggQualifierFrequency:
		return c.compileQualifiers(t, ap, match)
	case ap.Kind == queryir.AggAgeRange:
		return c.compileAgeRange(t, match)
	default:
		return Statement{}, fmt.Errorf("unsupported aggregate kind %q", ap.Kind)
	}
}

func isGeography(kind queryir.AggregateKind) bool {
	_, ok := kind.GeoLevel()
	return ok
}

// matchFilter renders "<fk> IN (<match>)" over the aggregate link alias, or
// nothing when the match plan selects every entity.
func (c *Compiler) matchFilter(t entityTable, match *queryir.QueryPlan) (*fragment, error) {
	stripped := withoutProjection(match)
	if len(stripped.Joins) == 0 && len(stripped.Where) == 0 {
		return nil, nil
	}
	stmt, err := c.CompileMatch(match)
	if err != nil {
		return nil, fmt.Errorf("compile aggregate match: %w", err)
	}
	return &fragment{
		sql:  fmt.Sprintf("%s.%s IN (%s)", aggregateLinkAlias, t.pk, stmt.SQL),
		args: stmt.Args,
	}, nil
}

// facilityWhere renders the WHERE clause of a facility-dimension aggregate:
// the fallback exclusion and facility filters, then the entity match.
func (c *Compiler) facilityWhere(t entityTable, ap *queryir.AggregatePlan, match *fragment, extra ...fragment) (fragment, error) {
	filter := ap.FacilityFilter
	if len(filter) == 0 {
		filter = []queryir.Condition{queryir.NotFallback{}}
	}
	if _, ok := filter[0].(queryir.NotFallback); !ok {
		return fragment{}, fmt.Errorf("facility aggregate without fallback exclusion")
	}
	conds, err := c.compileConditions(t, filter)
	if err != nil {
		return fragment{}, err
	}
	parts := append([]fragment{conds}, extra...)
	if match != nil {
		parts = append(parts, *match)
	}
	return prefixed("WHERE ", joinFragments(parts, " AND ")), nil
}

func (c *Compiler) facilityFrom(t entityTable) string {
	return fmt.Sprintf("FROM %s %s INNER JOIN facilities %s ON %s.facility_id = %s.facility_id",
		t.facilityLink, aggregateLinkAlias, facilityAlias, facilityAlias, aggregateLinkAlias)
}

// compileGeography is the one routine behind unique_countries, unique_states
// and unique_cities. A level is grouped together with its ancestors, since a
// state is only unique within its country and a city within its state.
// Values are grouped case- and normalisation-insensitively; the reported
// spelling is the smallest variant.
func (c *Compiler) compileGeography(t entityTable, ap *queryir.AggregatePlan, match *fragment) (Statement, error) {
	levels := ap.Level.Ancestors()
	if levels == nil {
		return Statement{}, fmt.Errorf("unsupported geography level %v", ap.Level)
	}

	var cols, keys []string
	for _, l := range ir.GeoLevels {
		col := geoColumns[l]
		if !containsLevel(levels, l) {
			cols = append(cols, "'' AS "+col)
			continue
		}
		cols = append(cols, fmt.Sprintf("MIN(%s.%s) AS %s", facilityAlias, col, col))
		keys = append(keys, fmt.Sprintf("fold_text(%s.%s)", facilityAlias, col))
	}
	cols = append(cols, fmt.Sprintf("COUNT(DISTINCT %s.%s) AS entity_count", aggregateLinkAlias, t.pk))

	levelCol := fmt.Sprintf("%s.%s", facilityAlias, geoColumns[ap.Level])
	where, err := c.facilityWhere(t, ap, match, fragment{sql: levelCol + " <> ''"})
	if err != nil {
		return Statement{}, err
	}

	var b builder
	b.add("SELECT " + strings.Join(cols, ", "))
	b.add(c.facilityFrom(t))
	b.addFragment(where)
	b.add("GROUP BY " + strings.Join(keys, ", "))
	switch ap.Order {
	case queryir.AggOrderName:
		b.add("ORDER BY " + strings.Join(keys, ", "))
	default:
		b.add("ORDER BY entity_count DESC, " + strings.Join(keys, ", "))
	}
	addLimit(&b, ap.Limit, 0)
	return b.statement(), nil
}

func containsLevel(levels []ir.GeoLevel, l ir.GeoLevel) bool {
	for _, x := range levels {
		if x == l {
			return true
		}
	}
	return false
}

// compileFacilities is the one routine behind unique_facilities and
// facility_study_counts: entity counts per canonical facility.
func (c *Compiler) compileFacilities(t entityTable, ap *queryir.AggregatePlan, match *fragment) (Statement, error) {
	where, err := c.facilityWhere(t, ap, match)
	if err != nil {
		return Statement{}, err
	}

	var b builder
	b.add(fmt.Sprintf("SELECT %[1]s.canonical_id, MIN(%[1]s.name) AS facility_name, MIN(%[1]s.city), MIN(%[1]s.state), MIN(%[1]s.country), COUNT(DISTINCT %[2]s.%[3]s) AS entity_count",
		facilityAlias, aggregateLinkAlias, t.pk))
	b.add(c.facilityFrom(t))
	b.addFragment(where)
	b.add(fmt.Sprintf("GROUP BY %s.canonical_id", facilityAlias))
	switch ap.Order {
	case queryir.AggOrderName:
		b.add(fmt.Sprintf("ORDER BY facility_name ASC, %s.canonical_id ASC", facilityAlias))
	default:
		b.add(fmt.Sprintf("ORDER BY entity_count DESC, %s.canonical_id ASC", facilityAlias))
	}
	addLimit(&b, ap.Limit, 0)
	return b.statement(), nil
}

// compileDescriptors is the one routine behind unique_descriptors and
// descriptor_frequency.
func (c *Compiler) compileDescriptors(t entityTable, ap *queryir.AggregatePlan, match *fragment) (Statement, error) {
	var b builder
	b.add(fmt.Sprintf("SELECT d.descriptor_id, d.ui, d.name, COUNT(DISTINCT %[1]s.%[2]s) AS entity_count, MAX(COALESCE(e.%[3]s, '')) AS latest_date",
		aggregateLinkAlias, t.pk, t.date))
	b.add(fmt.Sprintf("FROM %[1]s %[2]s INNER JOIN descriptors d ON d.descriptor_id = %[2]s.descriptor_id INNER JOIN %[3]s e ON e.%[4]s = %[2]s.%[4]s",
		t.descriptorLink, aggregateLinkAlias, t.table, t.pk))

	var parts []fragment
	if len(ap.TreePrefixes) > 0 {
		var tests []string
		var args []any
		for _, prefix := range ap.TreePrefixes {
			tests = append(tests, "tn.tree_number = ? OR tn.tree_number LIKE ? || '.%'")
			args = append(args, prefix, prefix)
		}
		parts = append(parts, fragment{
			sql:  "EXISTS (SELECT 1 FROM descriptor_tree_numbers tn WHERE tn.descriptor_id = d.descriptor_id AND (" + strings.Join(tests, " OR ") + "))",
			args: args,
		})
	}
	if match != nil {
		parts = append(parts, *match)
	}
	if len(parts) > 0 {
		b.addFragment(prefixed("WHERE ", joinFragments(parts, " AND ")))
	}

	b.add("GROUP BY d.descriptor_id")
	switch ap.Order {
	case queryir.AggOrderName:
		b.add("ORDER BY d.name ASC, d.descriptor_id ASC")
	case queryir.AggOrderRecent:
		b.add("ORDER BY latest_date DESC, entity_count DESC, d.descriptor_id ASC")
	default:
		b.add("ORDER BY entity_count DESC, d.descriptor_id ASC")
	}
	addLimit(&b, ap.Limit, 0)
	return b.statement(), nil
}

// compileQualifiers counts entities per qualifier over qualified links.
func (c *Compiler) compileQualifiers(t entityTable, ap *queryir.AggregatePlan, match *fragment) (Statement, error) {
	var b builder
	b.add(fmt.Sprintf("SELECT q.qualifier_id, q.ui, q.name, COUNT(DISTINCT %s.%s) AS entity_count",
		aggregateLinkAlias, t.pk))
	b.add(fmt.Sprintf("FROM %[1]s %[2]s INNER JOIN qualifiers q ON q.qualifier_id = %[2]s.qualifier_id",
		t.descriptorLink, aggregateLinkAlias))

	parts := []fragment{{sql: aggregateLinkAlias + ".qualifier_id <> 0"}}
	if match != nil {
		parts = append(parts, *match)
	}
	b.addFragment(prefixed("WHERE ", joinFragments(parts, " AND ")))

	b.add("GROUP BY q.qualifier_id")
	switch ap.Order {
	case queryir.AggOrderName:
		b.add("ORDER BY q.name ASC, q.qualifier_id ASC")
	default:
		b.add("ORDER BY entity_count DESC, q.qualifier_id ASC")
	}
	addLimit(&b, ap.Limit, 0)
	return b.statement(), nil
}

// compileAgeRange reports the widest eligibility age range over the
// matching studies. Open bounds (NULL) are ignored by MIN and MAX.
func (c *Compiler) compileAgeRange(t entityTable, match *fragment) (Statement, error) {
	if t.table != "studies" {
		return Statement{}, fmt.Errorf("age range not available on %s", t.table)
	}
	var b builder
	b.add(fmt.Sprintf("SELECT COUNT(DISTINCT %[1]s.study_id) AS entity_count, MIN(%[2]s.minimum_age) AS min_age, MAX(%[2]s.maximum_age) AS max_age",
		aggregateLinkAlias, eligibilityAlias))
	b.add(fmt.Sprintf("FROM studies %[1]s LEFT JOIN eligibilities %[2]s ON %[2]s.study_id = %[1]s.study_id",
		aggregateLinkAlias, eligibilityAlias))
	if match != nil {
		b.addFragment(prefixed("WHERE ", *match))
	}
	return b.statement(), nil
}
