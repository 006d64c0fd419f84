package querysql

import (
	"fmt"

	"github.com/roach88/ffquery/internal/queryir"
)

// descendantsOf selects the descendants of the descriptor bound to its one
// parameter: descriptors with a tree number that extends one of its tree
// numbers by a "." suffix.
const descendantsOf = "SELECT c.descriptor_id FROM descriptor_tree_numbers p " +
	"INNER JOIN descriptor_tree_numbers c ON c.tree_number LIKE p.tree_number || '.%' " +
	"WHERE p.descriptor_id = ?"

// compileDescriptorMatch renders the taxonomy matcher.
//
// AND across requested descriptors is never a plain join on the link table:
// a join with descriptor_id IN (...) keeps entities linked to ANY of them.
// Both strategies instead require one match per requested descriptor:
//
//   - exists: one correlated EXISTS per descriptor, conjoined
//   - group_count: link rows grouped by entity, keeping entities whose
//     number of distinct matched descriptors equals the number requested
//
// With descendants, a requested descriptor is matched by itself or any of
// its descendants; that is OR within one descriptor, AND across them.
func compileDescriptorMatch(t entityTable, m queryir.DescriptorMatch) (fragment, error) {
	if len(m.DescriptorIDs) == 0 {
		return fragment{sql: "1 = 1"}, nil
	}
	switch m.Strategy {
	case queryir.MatchExists, "":
		return descriptorExists(t, m), nil
	case queryir.MatchGroupCount:
		return descriptorGroupCount(t, m), nil
	default:
		return fragment{}, fmt.Errorf("unsupported descriptor strategy %q", m.Strategy)
	}
}

func descriptorExists(t entityTable, m queryir.DescriptorMatch) fragment {
	parts := make([]fragment, 0, len(m.DescriptorIDs))
	for _, id := range m.DescriptorIDs {
		head := fmt.Sprintf("EXISTS (SELECT 1 FROM %s ld WHERE ld.%s = %s AND ", t.descriptorLink, t.pk, t.pkCol())
		if m.IncludeDescendants {
			parts = append(parts, fragment{
				sql:  head + "(ld.descriptor_id = ? OR ld.descriptor_id IN (" + descendantsOf + ")))",
				args: []any{id, id},
			})
			continue
		}
		parts = append(parts, fragment{sql: head + "ld.descriptor_id = ?)", args: []any{id}})
	}
	return joinFragments(parts, " AND ")
}

func descriptorGroupCount(t entityTable, m queryir.DescriptorMatch) fragment {
	n := len(m.DescriptorIDs)

	if !m.IncludeDescendants {
		in := inList("ld.descriptor_id", m.DescriptorIDs)
		args := append(in.args, n)
		return fragment{
			sql: fmt.Sprintf("%s IN (SELECT ld.%s FROM %s ld WHERE %s GROUP BY ld.%s HAVING COUNT(DISTINCT ld.descriptor_id) = ?)",
				t.pkCol(), t.pk, t.descriptorLink, in.sql, t.pk),
			args: args,
		}
	}

	// Map every descriptor that satisfies a requested root back to that
	// root, then count distinct roots per entity.
	roots := inList("r.descriptor_id", m.DescriptorIDs)
	parents := inList("p.descriptor_id", m.DescriptorIDs)
	expansion := "SELECT r.descriptor_id AS root_id, r.descriptor_id AS descriptor_id FROM descriptors r WHERE " + roots.sql +
		" UNION SELECT p.descriptor_id, c.descriptor_id FROM descriptor_tree_numbers p" +
		" INNER JOIN descriptor_tree_numbers c ON c.tree_number LIKE p.tree_number || '.%' WHERE " + parents.sql

	args := append(append(roots.args, parents.args...), n)
	return fragment{
		sql: fmt.Sprintf("%s IN (SELECT ld.%s FROM %s ld INNER JOIN (%s) x ON x.descriptor_id = ld.descriptor_id GROUP BY ld.%s HAVING COUNT(DISTINCT x.root_id) = ?)",
			t.pkCol(), t.pk, t.descriptorLink, expansion, t.pk),
		args: args,
	}
}
