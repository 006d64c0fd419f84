package querysql

import (
	"database/sql"
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
)

// EntityColumns is the number of columns of an entity row: id, accession,
// title, summary, entity_date, overall_status, phase, study_type, gender,
// minimum_age, maximum_age.
const EntityColumns = 11

type entityRow struct {
	e      ir.Entity
	gender sql.NullString
	minAge sql.NullInt64
	maxAge sql.NullInt64
}

func (r *entityRow) targets() []any {
	return []any{
		&r.e.ID, &r.e.Accession, &r.e.Title, &r.e.Summary, &r.e.Date,
		&r.e.OverallStatus, &r.e.Phase, &r.e.StudyType,
		&r.gender, &r.minAge, &r.maxAge,
	}
}

func (r *entityRow) entity(kind ir.EntityKind) ir.Entity {
	e := r.e
	e.Kind = kind
	if r.gender.Valid {
		e.Eligibility = &ir.Eligibility{
			Gender:     ir.Gender(r.gender.String),
			MinimumAge: nullIntPtr(r.minAge),
			MaximumAge: nullIntPtr(r.maxAge),
		}
	}
	return e
}

// ScanEntities reads the rows of a CompileSearch statement.
func ScanEntities(kind ir.EntityKind, rows *sql.Rows) ([]ir.Entity, error) {
	var out []ir.Entity
	for rows.Next() {
		var r entityRow
		if err := rows.Scan(r.targets()...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		out = append(out, r.entity(kind))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", kind, err)
	}
	return out, nil
}

// ScanDescriptors reads the rows of a CompileEager descriptors statement,
// keyed by owning entity ID.
func ScanDescriptors(rows *sql.Rows) (map[int64][]ir.Descriptor, error) {
	out := make(map[int64][]ir.Descriptor)
	for rows.Next() {
		var owner int64
		var d ir.Descriptor
		if err := rows.Scan(&owner, &d.ID, &d.UI, &d.Name); err != nil {
			return nil, fmt.Errorf("scan descriptor row: %w", err)
		}
		out[owner] = append(out[owner], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptor rows: %w", err)
	}
	return out, nil
}

// ScanFacilities reads the rows of a CompileEager facilities statement,
// keyed by owning entity ID.
func ScanFacilities(rows *sql.Rows) (map[int64][]ir.Facility, error) {
	out := make(map[int64][]ir.Facility)
	for rows.Next() {
		var owner int64
		var f ir.Facility
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&owner, &f.ID, &f.CanonicalID, &f.Name, &f.City, &f.State, &f.Country, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scan facility row: %w", err)
		}
		f.Latitude = nullFloatPtr(lat)
		f.Longitude = nullFloatPtr(lon)
		out[owner] = append(out[owner], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facility rows: %w", err)
	}
	return out, nil
}

// joinedDescriptor and joinedFacility scan the nullable column groups of a
// joined search; all columns are NULL when the entity has no related row.
type joinedDescriptor struct {
	id       sql.NullInt64
	ui, name sql.NullString
}

type joinedFacility struct {
	id, canonical              sql.NullInt64
	name, city, state, country sql.NullString
	lat, lon                   sql.NullFloat64
}

// ScanJoinedEntities reads the rows of a CompileJoinedSearch statement and
// folds the multiplied rows back into one entity each, in first-seen order.
// fields must be the plan's Fields.
func ScanJoinedEntities(kind ir.EntityKind, fields []ir.Relation, rows *sql.Rows) ([]ir.Entity, error) {
	var order []int64
	entities := make(map[int64]*ir.Entity)
	seenDesc := make(map[int64]map[int64]bool)
	seenFac := make(map[int64]map[int64]bool)

	for rows.Next() {
		var r entityRow
		targets := r.targets()
		descs := make([]*joinedDescriptor, len(fields))
		facs := make([]*joinedFacility, len(fields))
		for i, rel := range fields {
			switch rel {
			case ir.RelationDescriptors:
				d := &joinedDescriptor{}
				descs[i] = d
				targets = append(targets, &d.id, &d.ui, &d.name)
			case ir.RelationFacilities:
				f := &joinedFacility{}
				facs[i] = f
				targets = append(targets, &f.id, &f.canonical, &f.name, &f.city, &f.state, &f.country, &f.lat, &f.lon)
			default:
				return nil, fmt.Errorf("unsupported relation %q", rel)
			}
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan joined %s row: %w", kind, err)
		}

		e, ok := entities[r.e.ID]
		if !ok {
			ent := r.entity(kind)
			e = &ent
			entities[ent.ID] = e
			seenDesc[ent.ID] = make(map[int64]bool)
			seenFac[ent.ID] = make(map[int64]bool)
			order = append(order, ent.ID)
		}

		for _, d := range descs {
			if d == nil || !d.id.Valid || seenDesc[e.ID][d.id.Int64] {
				continue
			}
			seenDesc[e.ID][d.id.Int64] = true
			e.Descriptors = append(e.Descriptors, ir.Descriptor{ID: d.id.Int64, UI: d.ui.String, Name: d.name.String})
		}
		for _, f := range facs {
			if f == nil || !f.id.Valid || seenFac[e.ID][f.id.Int64] {
				continue
			}
			seenFac[e.ID][f.id.Int64] = true
			e.Facilities = append(e.Facilities, ir.Facility{
				ID:          f.id.Int64,
				CanonicalID: f.canonical.Int64,
				Name:        f.name.String,
				City:        f.city.String,
				State:       f.state.String,
				Country:     f.country.String,
				Latitude:    nullFloatPtr(f.lat),
				Longitude:   nullFloatPtr(f.lon),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate joined %s rows: %w", kind, err)
	}

	out := make([]ir.Entity, 0, len(order))
	for _, id := range order {
		out = append(out, *entities[id])
	}
	return out, nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
