package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// relationSource returns a select of (owner_id, relation columns...) over
// every entity of the table. Column layouts are DescriptorColumns and
// FacilityColumns.
func relationSource(t entityTable, rel ir.Relation) (string, error) {
	switch rel {
	case ir.RelationDescriptors:
		return fmt.Sprintf("SELECT DISTINCT l.%s AS owner_id, d.descriptor_id, d.ui, d.name FROM %s l INNER JOIN descriptors d ON d.descriptor_id = l.descriptor_id",
			t.pk, t.descriptorLink), nil
	case ir.RelationFacilities:
		return fmt.Sprintf("SELECT l.%s AS owner_id, f.facility_id, f.canonical_id, f.name, f.city, f.state, f.country, f.latitude, f.longitude FROM %s l INNER JOIN facilities f ON f.facility_id = l.facility_id",
			t.pk, t.facilityLink), nil
	default:
		return "", fmt.Errorf("unsupported relation %q", rel)
	}
}

// relationKey is the column that orders rows within one owner.
func relationKey(rel ir.Relation) string {
	if rel == ir.RelationDescriptors {
		return "descriptor_id"
	}
	return "facility_id"
}

// sourceKey is relationKey qualified with its table alias inside
// relationSource, where the link table carries the same column.
func sourceKey(rel ir.Relation) string {
	if rel == ir.RelationDescriptors {
		return "d.descriptor_id"
	}
	return "f.facility_id"
}

// relationColumns lists the relation columns (without owner_id) as selected
// from the alias of a joined relation source.
func relationColumns(alias string, rel ir.Relation) []string {
	var cols []string
	switch rel {
	case ir.RelationDescriptors:
		cols = []string{"descriptor_id", "ui", "name"}
	case ir.RelationFacilities:
		cols = []string{"facility_id", "canonical_id", "name", "city", "state", "country", "latitude", "longitude"}
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return cols
}

// CompileEager compiles the ID-scoped secondary query that loads one
// relation for a page of entities. Rows are ordered by owner, then by the
// relation's key.
func (c *Compiler) CompileEager(kind ir.EntityKind, rel ir.Relation, ids []int64) (Statement, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Statement{}, err
	}
	src, err := relationSource(t, rel)
	if err != nil {
		return Statement{}, err
	}
	if len(ids) == 0 {
		return Statement{}, fmt.Errorf("eager load of %s without ids", rel)
	}

	var b builder
	b.add(src)
	b.addFragment(prefixed("WHERE ", inList("l."+t.pk, ids)))
	b.add("ORDER BY owner_id ASC, " + sourceKey(rel) + " ASC")
	return b.statement(), nil
}

// CompileJoinedSearch compiles an unpaginated search that loads the plan's
// Fields in the same statement by LEFT JOINing each relation onto the
// entity rows. The result has the EntityColumns layout followed by one
// column group per relation, in plan.Fields order; an entity appears once
// per combination of related rows and is folded back together by
// ScanJoinedEntities.
//
// Only valid for plans with AllowJoinEagerLoad; the multiplied rows would
// make LIMIT/OFFSET count the wrong thing.
func (c *Compiler) CompileJoinedSearch(plan *queryir.QueryPlan) (Statement, error) {
	if !plan.AllowJoinEagerLoad || plan.Paginated() {
		return Statement{}, fmt.Errorf("joined eager load not allowed for this plan")
	}
	t, err := tableFor(plan.Entity)
	if err != nil {
		return Statement{}, err
	}
	base, err := c.CompileSearch(plan)
	if err != nil {
		return Statement{}, err
	}

	cols := []string{"b.*"}
	var joins []string
	order := orderBy(plan.Order, "b.")
	for i, rel := range plan.Fields {
		src, err := relationSource(t, rel)
		if err != nil {
			return Statement{}, err
		}
		alias := fmt.Sprintf("r%d", i)
		cols = append(cols, relationColumns(alias, rel)...)
		joins = append(joins, fmt.Sprintf("LEFT JOIN (%s) %s ON %s.owner_id = b.%s", src, alias, alias, colID))
		order += ", " + alias + "." + relationKey(rel) + " ASC"
	}

	var b builder
	b.add("SELECT " + strings.Join(cols, ", "))
	b.add("FROM ("+base.SQL+") b", base.Args...)
	for _, j := range joins {
		b.add(j)
	}
	b.add("ORDER BY " + order)
	return b.statement(), nil
}

func prefixed(prefix string, f fragment) fragment {
	f.sql = prefix + f.sql
	return f
}
