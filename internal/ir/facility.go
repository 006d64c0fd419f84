package ir

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Facility is a physical site a study runs at, or an institution a citation
// author is affiliated with.
//
// Several facility rows may share a CanonicalID: they are naming variants of
// the same site after deduplication.
type Facility struct {
	ID          int64    `json:"id" yaml:"id"`
	CanonicalID int64    `json:"canonical_id" yaml:"canonical_id"`
	Name        string   `json:"name" yaml:"name"`
	City        string   `json:"city,omitempty" yaml:"city,omitempty"`
	State       string   `json:"state,omitempty" yaml:"state,omitempty"`
	Country     string   `json:"country,omitempty" yaml:"country,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
}

// GeoLevel selects one level of the facility geography.
type GeoLevel int

const (
	GeoCountry GeoLevel = iota
	GeoState
	GeoCity
)

// GeoLevels lists the levels from coarsest to finest.
var GeoLevels = []GeoLevel{GeoCountry, GeoState, GeoCity}

// String returns the level name used in flags and JSON.
func (l GeoLevel) String() string {
	switch l {
	case GeoCountry:
		return "country"
	case GeoState:
		return "state"
	case GeoCity:
		return "city"
	default:
		return fmt.Sprintf("GeoLevel(%d)", int(l))
	}
}

// Ancestors returns the levels that qualify this one, coarsest first,
// including the level itself. A state is only unique within its country and
// a city within its state.
func (l GeoLevel) Ancestors() []GeoLevel {
	if l < GeoCountry || l > GeoCity {
		return nil
	}
	return GeoLevels[:l+1]
}

// Fold normalises free text for comparison: Unicode NFC, full case folding,
// surrounding whitespace trimmed.
//
// The store registers Fold as the SQLite function fold_text, so Go and SQL
// comparisons agree byte for byte.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// IsFallbackMatch reports whether a facility record is a geocoding fallback:
// its name equals its own city, state or country, meaning no specific site
// was resolved and the record was named after the containing region.
//
// Fallback matches must never count as canonical facilities. Every filter and
// aggregate that touches facilities goes through this function, either
// directly or as the SQLite function is_fallback_match.
func IsFallbackMatch(f Facility) bool {
	return IsFallbackName(f.Name, f.City, f.State, f.Country)
}

// IsFallbackName is IsFallbackMatch over bare columns.
// Empty geography values never match; an empty name matches nothing either.
func IsFallbackName(name, city, state, country string) bool {
	n := Fold(name)
	if n == "" {
		return false
	}
	for _, region := range []string{city, state, country} {
		if r := Fold(region); r != "" && r == n {
			return true
		}
	}
	return false
}

// earthRadiusKM is the mean Earth radius (IUGG).
const earthRadiusKM = 6371.0088

// DistanceKM returns the great-circle distance between two points in
// kilometres (haversine). The store registers it as the SQLite function
// distance_km.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}
