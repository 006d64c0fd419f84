package store

import (
	"context"
	"fmt"
)

// TableCounts reports the number of rows per primary table.
type TableCounts struct {
	Descriptors int64 `json:"descriptors"`
	Qualifiers  int64 `json:"qualifiers"`
	Facilities  int64 `json:"facilities"`
	Studies     int64 `json:"studies"`
	Citations   int64 `json:"citations"`
}

// Counts returns the row count of each primary table.
func (s *Store) Counts(ctx context.Context) (TableCounts, error) {
	var c TableCounts
	targets := []struct {
		table string
		dst   *int64
	}{
		{"descriptors", &c.Descriptors},
		{"qualifiers", &c.Qualifiers},
		{"facilities", &c.Facilities},
		{"studies", &c.Studies},
		{"citations", &c.Citations},
	}
	for _, t := range targets {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return TableCounts{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
