package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
)

// LoadStats counts the records written by LoadDataset.
type LoadStats struct {
	Descriptors int `json:"descriptors"`
	Qualifiers  int `json:"qualifiers"`
	Facilities  int `json:"facilities"`
	Studies     int `json:"studies"`
	Citations   int `json:"citations"`
}

// execer is satisfied by *sql.Tx and *sql.Conn.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// LoadDataset upserts every record of ds in one transaction.
//
// Records are keyed by their IDs: loading the same dataset twice leaves the
// store unchanged. The link rows of a study or citation (descriptors,
// facilities, interventions) are replaced wholesale by the loaded record.
// Either the whole dataset is written or nothing is.
func (s *Store) LoadDataset(ctx context.Context, ds *ir.Dataset) (LoadStats, error) {
	var stats LoadStats
	if ds == nil {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("load dataset: begin: %w", err)
	}
	defer tx.Rollback()

	for _, d := range ds.Descriptors {
		if err := writeDescriptor(ctx, tx, d); err != nil {
			return stats, fmt.Errorf("load dataset: %w", err)
		}
		stats.Descriptors++
	}
	for _, q := range ds.Qualifiers {
		if err := writeQualifier(ctx, tx, q); err != nil {
			return stats, fmt.Errorf("load dataset: %w", err)
		}
		stats.Qualifiers++
	}
	for _, f := range ds.Facilities {
		if err := writeFacility(ctx, tx, f); err != nil {
			return stats, fmt.Errorf("load dataset: %w", err)
		}
		stats.Facilities++
	}
	for _, st := range ds.Studies {
		if err := writeStudy(ctx, tx, st); err != nil {
			return stats, fmt.Errorf("load dataset: %w", err)
		}
		stats.Studies++
	}
	for _, c := range ds.Citations {
		if err := writeCitation(ctx, tx, c); err != nil {
			return stats, fmt.Errorf("load dataset: %w", err)
		}
		stats.Citations++
	}

	if err := tx.Commit(); err != nil {
		return LoadStats{}, fmt.Errorf("load dataset: commit: %w", err)
	}
	return stats, nil
}

func writeDescriptor(ctx context.Context, db execer, d ir.Descriptor) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO descriptors (descriptor_id, ui, name)
		VALUES (?, ?, ?)
		ON CONFLICT(descriptor_id) DO UPDATE SET ui = excluded.ui, name = excluded.name
	`, d.ID, d.UI, d.Name)
	if err != nil {
		return fmt.Errorf("write descriptor %d: %w", d.ID, err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM descriptor_tree_numbers WHERE descriptor_id = ?`, d.ID); err != nil {
		return fmt.Errorf("write descriptor %d: %w", d.ID, err)
	}
	for _, tn := range d.TreeNumbers {
		_, err := db.ExecContext(ctx, `
			INSERT INTO descriptor_tree_numbers (descriptor_id, tree_number)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, d.ID, tn)
		if err != nil {
			return fmt.Errorf("write descriptor %d tree number %s: %w", d.ID, tn, err)
		}
	}
	return nil
}

func writeQualifier(ctx context.Context, db execer, q ir.Qualifier) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO qualifiers (qualifier_id, ui, name)
		VALUES (?, ?, ?)
		ON CONFLICT(qualifier_id) DO UPDATE SET ui = excluded.ui, name = excluded.name
	`, q.ID, q.UI, q.Name)
	if err != nil {
		return fmt.Errorf("write qualifier %d: %w", q.ID, err)
	}
	return nil
}

func writeFacility(ctx context.Context, db execer, f ir.Facility) error {
	canonical := f.CanonicalID
	if canonical == 0 {
		canonical = f.ID
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO facilities (facility_id, canonical_id, name, city, state, country, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id) DO UPDATE SET
			canonical_id = excluded.canonical_id,
			name = excluded.name,
			city = excluded.city,
			state = excluded.state,
			country = excluded.country,
			latitude = excluded.latitude,
			longitude = excluded.longitude
	`, f.ID, canonical, f.Name, f.City, f.State, f.Country, nullFloat(f.Latitude), nullFloat(f.Longitude))
	if err != nil {
		return fmt.Errorf("write facility %d: %w", f.ID, err)
	}
	return nil
}

func writeStudy(ctx context.Context, db execer, st ir.Study) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO studies (study_id, nct_id, title, summary, overall_status, phase, study_type, start_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(study_id) DO UPDATE SET
			nct_id = excluded.nct_id,
			title = excluded.title,
			summary = excluded.summary,
			overall_status = excluded.overall_status,
			phase = excluded.phase,
			study_type = excluded.study_type,
			start_date = excluded.start_date
	`, st.ID, st.NCTID, st.Title, st.Summary, st.OverallStatus, st.Phase, st.StudyType, nullString(st.StartDate))
	if err != nil {
		return fmt.Errorf("write study %d: %w", st.ID, err)
	}

	for _, table := range []string{"eligibilities", "interventions", "study_descriptors", "study_facilities"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE study_id = ?", st.ID); err != nil {
			return fmt.Errorf("write study %d: clear %s: %w", st.ID, table, err)
		}
	}

	if el := st.Eligibility; el != nil {
		gender := el.Gender
		if gender == "" {
			gender = ir.GenderAll
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO eligibilities (study_id, gender, minimum_age, maximum_age)
			VALUES (?, ?, ?, ?)
		`, st.ID, string(gender), nullInt(el.MinimumAge), nullInt(el.MaximumAge))
		if err != nil {
			return fmt.Errorf("write study %d eligibility: %w", st.ID, err)
		}
	}

	for _, it := range st.InterventionTypes {
		_, err := db.ExecContext(ctx, `
			INSERT INTO interventions (study_id, intervention_type) VALUES (?, ?)
		`, st.ID, it)
		if err != nil {
			return fmt.Errorf("write study %d intervention: %w", st.ID, err)
		}
	}

	if err := writeLinks(ctx, db, "study_descriptors", "study_id", st.ID, st.Descriptors); err != nil {
		return fmt.Errorf("write study %d: %w", st.ID, err)
	}
	if err := writeFacilityLinks(ctx, db, "study_facilities", "study_id", st.ID, st.FacilityIDs); err != nil {
		return fmt.Errorf("write study %d: %w", st.ID, err)
	}
	return nil
}

func writeCitation(ctx context.Context, db execer, c ir.Citation) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO citations (citation_id, pmid, title, abstract, publication_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(citation_id) DO UPDATE SET
			pmid = excluded.pmid,
			title = excluded.title,
			abstract = excluded.abstract,
			publication_date = excluded.publication_date
	`, c.ID, c.PMID, c.Title, c.Abstract, nullString(c.PublicationDate))
	if err != nil {
		return fmt.Errorf("write citation %d: %w", c.ID, err)
	}

	for _, table := range []string{"citation_descriptors", "citation_affiliations"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE citation_id = ?", c.ID); err != nil {
			return fmt.Errorf("write citation %d: clear %s: %w", c.ID, table, err)
		}
	}

	if err := writeLinks(ctx, db, "citation_descriptors", "citation_id", c.ID, c.Descriptors); err != nil {
		return fmt.Errorf("write citation %d: %w", c.ID, err)
	}
	if err := writeFacilityLinks(ctx, db, "citation_affiliations", "citation_id", c.ID, c.AffiliationIDs); err != nil {
		return fmt.Errorf("write citation %d: %w", c.ID, err)
	}
	return nil
}

// writeLinks inserts descriptor link rows. Table and column names come from
// the callers above, never from input.
func writeLinks(ctx context.Context, db execer, table, fk string, id int64, links []ir.DescriptorLink) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, descriptor_id, qualifier_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, table, fk)
	for _, l := range links {
		if _, err := db.ExecContext(ctx, query, id, l.DescriptorID, l.QualifierID); err != nil {
			return fmt.Errorf("link descriptor %d: %w", l.DescriptorID, err)
		}
	}
	return nil
}

func writeFacilityLinks(ctx context.Context, db execer, table, fk string, id int64, facilityIDs []int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, facility_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, table, fk)
	for _, fid := range facilityIDs {
		if _, err := db.ExecContext(ctx, query, id, fid); err != nil {
			return fmt.Errorf("link facility %d: %w", fid, err)
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
