package store

import (
	"fmt"
	"math"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ffquery/internal/ir"
)

// registerFunctions installs the Go functions the query compiler relies on.
// Runs for every new pool connection.
//
// Arguments are declared as any so NULL arrives as nil instead of failing
// the type check; NULL text reads as "" and a NULL coordinate as "unknown".
func registerFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := []struct {
		name string
		impl any
	}{
		{"is_fallback_match", sqlIsFallbackMatch},
		{"fold_text", sqlFoldText},
		{"distance_km", sqlDistanceKM},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
			return fmt.Errorf("register %s: %w", f.name, err)
		}
	}
	return nil
}

// sqlIsFallbackMatch is ir.IsFallbackName for SQL rows.
func sqlIsFallbackMatch(name, city, state, country any) bool {
	return ir.IsFallbackName(sqlText(name), sqlText(city), sqlText(state), sqlText(country))
}

// sqlFoldText is ir.Fold for SQL values.
func sqlFoldText(v any) string {
	return ir.Fold(sqlText(v))
}

// sqlDistanceKM returns the distance between two points, or +Inf when any
// coordinate is missing so radius comparisons never match.
func sqlDistanceKM(lat1, lon1, lat2, lon2 any) float64 {
	coords := make([]float64, 0, 4)
	for _, v := range []any{lat1, lon1, lat2, lon2} {
		f, ok := sqlFloat(v)
		if !ok {
			return math.Inf(1)
		}
		coords = append(coords, f)
	}
	return ir.DistanceKM(coords[0], coords[1], coords[2], coords[3])
}

func sqlText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func sqlFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
