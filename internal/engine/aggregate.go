package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// GeoCount is one geography group. Levels finer than the requested one are
// empty.
type GeoCount struct {
	Country string `json:"country" yaml:"country"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	Count   int64  `json:"count" yaml:"count"`
}

// FacilityCount is the number of matching entities at one canonical
// facility.
type FacilityCount struct {
	CanonicalID int64  `json:"canonical_id" yaml:"canonical_id"`
	Name        string `json:"name" yaml:"name"`
	City        string `json:"city,omitempty" yaml:"city,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
	Country     string `json:"country,omitempty" yaml:"country,omitempty"`
	Count       int64  `json:"count" yaml:"count"`
}

// DescriptorCount is the number of matching entities linked to one
// descriptor. LatestDate is the most recent date among them.
type DescriptorCount struct {
	DescriptorID int64  `json:"descriptor_id" yaml:"descriptor_id"`
	UI           string `json:"ui" yaml:"ui"`
	Name         string `json:"name" yaml:"name"`
	Count        int64  `json:"count" yaml:"count"`
	LatestDate   string `json:"latest_date,omitempty" yaml:"latest_date,omitempty"`
}

// QualifierCount is the number of matching entities with at least one
// descriptor link carrying the qualifier.
type QualifierCount struct {
	QualifierID int64  `json:"qualifier_id" yaml:"qualifier_id"`
	UI          string `json:"ui" yaml:"ui"`
	Name        string `json:"name" yaml:"name"`
	Count       int64  `json:"count" yaml:"count"`
}

// AgeRange is the widest eligibility range over the matching studies. A nil
// bound is open.
type AgeRange struct {
	Count      int64 `json:"count" yaml:"count"`
	MinimumAge *int  `json:"minimum_age,omitempty" yaml:"minimum_age,omitempty"`
	MaximumAge *int  `json:"maximum_age,omitempty" yaml:"maximum_age,omitempty"`
}

// AggregateResult holds the groups of one aggregate. Exactly one of the
// group fields is populated, according to Kind.
type AggregateResult struct {
	Kind   queryir.AggregateKind `json:"kind" yaml:"kind"`
	Entity ir.EntityKind         `json:"entity" yaml:"entity"`

	Geography   []GeoCount        `json:"geography,omitempty" yaml:"geography,omitempty"`
	Facilities  []FacilityCount   `json:"facilities,omitempty" yaml:"facilities,omitempty"`
	Descriptors []DescriptorCount `json:"descriptors,omitempty" yaml:"descriptors,omitempty"`
	Qualifiers  []QualifierCount  `json:"qualifiers,omitempty" yaml:"qualifiers,omitempty"`
	AgeRange    *AgeRange         `json:"age_range,omitempty" yaml:"age_range,omitempty"`
}

// Len returns the number of groups.
func (r *AggregateResult) Len() int {
	switch {
	case r.AgeRange != nil:
		if r.AgeRange.Count == 0 {
			return 0
		}
		return 1
	default:
		return len(r.Geography) + len(r.Facilities) + len(r.Descriptors) + len(r.Qualifiers)
	}
}

// neutralAggregate is the result of an aggregate over no entities.
func neutralAggregate(entity ir.EntityKind, kind queryir.AggregateKind) *AggregateResult {
	r := &AggregateResult{Kind: kind, Entity: entity}
	switch {
	case kind == queryir.AggAgeRange:
		r.AgeRange = &AgeRange{}
	case kind.IsFacilityKind():
		r.Facilities = []FacilityCount{}
	case kind.IsDescriptorKind():
		r.Descriptors = []DescriptorCount{}
	case kind == queryir.AggQualifierFrequency:
		r.Qualifiers = []QualifierCount{}
	default:
		r.Geography = []GeoCount{}
	}
	return r
}

// Aggregate groups the entities matching p by the dimension of kind.
//
// The entities aggregated are exactly those a search with p returns; an
// explicit empty ID set yields a neutral result without a query. Facilities
// whose name is only a restatement of their own geography never contribute
// to geography or facility groups.
func (e *Engine) Aggregate(ctx context.Context, entity ir.EntityKind, kind queryir.AggregateKind, p queryir.Predicate, params queryir.AggregateParams) (*AggregateResult, error) {
	o := e.begin("aggregate", entity)
	o.log = o.log.With("aggregate", string(kind))

	if err := queryir.ValidateAggregate(entity, kind, p, params); err != nil {
		return nil, o.finish(0, err)
	}
	if err := (queryir.Page{Limit: params.Limit}).Validate(e.maxLimit); err != nil {
		return nil, o.finish(0, err)
	}

	ap, err := queryir.PlanAggregate(entity, kind, p, params, e.planOptions(queryir.PurposeMatch))
	if err != nil {
		return nil, o.finish(0, err)
	}
	if err := e.checkPlan(ap.Match); err != nil {
		return nil, o.finish(0, err)
	}
	if ap.MatchesNothing() {
		o.empty()
		return neutralAggregate(entity, kind), nil
	}

	stmt, err := e.compiler.CompileAggregate(ap)
	if err != nil {
		return nil, o.finish(0, fmt.Errorf("compile aggregate: %w", err))
	}

	conn, err := e.conn(ctx, o)
	if err != nil {
		return nil, o.finish(0, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, o.finish(0, &StoreError{Op: o.op, Entity: entity, Aggregate: kind, Err: err})
	}
	defer rows.Close()

	result := neutralAggregate(entity, kind)
	if err := scanAggregate(result, rows); err != nil {
		return nil, o.finish(0, &StoreError{Op: o.op, Entity: entity, Aggregate: kind, Err: err})
	}
	return result, o.finish(result.Len(), nil)
}

func scanAggregate(r *AggregateResult, rows *sql.Rows) error {
	for rows.Next() {
		var err error
		switch {
		case r.AgeRange != nil:
			var minAge, maxAge sql.NullInt64
			err = rows.Scan(&r.AgeRange.Count, &minAge, &maxAge)
			r.AgeRange.MinimumAge = nullInt(minAge)
			r.AgeRange.MaximumAge = nullInt(maxAge)
		case r.Facilities != nil:
			var f FacilityCount
			err = rows.Scan(&f.CanonicalID, &f.Name, &f.City, &f.State, &f.Country, &f.Count)
			r.Facilities = append(r.Facilities, f)
		case r.Descriptors != nil:
			var d DescriptorCount
			err = rows.Scan(&d.DescriptorID, &d.UI, &d.Name, &d.Count, &d.LatestDate)
			r.Descriptors = append(r.Descriptors, d)
		case r.Qualifiers != nil:
			var q QualifierCount
			err = rows.Scan(&q.QualifierID, &q.UI, &q.Name, &q.Count)
			r.Qualifiers = append(r.Qualifiers, q)
		default:
			var g GeoCount
			err = rows.Scan(&g.Country, &g.State, &g.City, &g.Count)
			r.Geography = append(r.Geography, g)
		}
		if err != nil {
			return fmt.Errorf("scan %s row: %w", r.Kind, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s rows: %w", r.Kind, err)
	}
	return nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
