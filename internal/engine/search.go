package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
	"github.com/roach88/ffquery/internal/querysql"
)

// SearchOptions shapes a search result.
type SearchOptions struct {
	Page  queryir.Page
	Order []queryir.OrderTerm

	// Fields lists the relations to load into each entity.
	Fields []ir.Relation
}

// LoadStrategy reports how eager relations were loaded.
type LoadStrategy string

const (
	// LoadNone means no relation was requested.
	LoadNone LoadStrategy = ""

	// LoadJoined loads relations in the page statement itself.
	LoadJoined LoadStrategy = "joined"

	// LoadSecondary loads relations with one ID-scoped statement per
	// relation after the page statement.
	LoadSecondary LoadStrategy = "secondary"
)

// SearchResult is one page of entities.
type SearchResult struct {
	Entities []ir.Entity

	// HasEagerFields is true when Fields were requested; every entity then
	// carries a non-nil slice for each requested relation.
	HasEagerFields bool

	Strategy LoadStrategy
}

// Search returns the entities matching p, in the requested order, windowed
// by the requested page.
//
// Unpaginated searches with Fields load relations in the same statement.
// Paginated searches never do: joined relation rows would be counted by
// LIMIT and OFFSET. They load the page first and then each relation with an
// ID-scoped statement, on the same connection.
func (e *Engine) Search(ctx context.Context, kind ir.EntityKind, p queryir.Predicate, opts SearchOptions) (*SearchResult, error) {
	o := e.begin("search", kind)

	if err := queryir.Validate(kind, p); err != nil {
		return nil, o.finish(0, err)
	}
	if err := opts.Page.Validate(e.maxLimit); err != nil {
		return nil, o.finish(0, err)
	}

	planOpts := e.planOptions(queryir.PurposeSearch)
	planOpts.Order = opts.Order
	planOpts.Fields = opts.Fields
	plan, err := queryir.Plan(kind, p, planOpts)
	if err != nil {
		return nil, o.finish(0, err)
	}
	plan.ApplyPage(opts.Page)
	if err := e.checkPlan(plan); err != nil {
		return nil, o.finish(0, err)
	}

	result := &SearchResult{
		Entities:       []ir.Entity{},
		HasEagerFields: len(plan.Fields) > 0,
	}
	if plan.MatchesNothing() {
		o.empty()
		return result, nil
	}

	conn, err := e.conn(ctx, o)
	if err != nil {
		return nil, o.finish(0, err)
	}
	defer conn.Close()

	if plan.AllowJoinEagerLoad && len(plan.Fields) > 0 {
		result.Strategy = LoadJoined
		result.Entities, err = e.searchJoined(ctx, conn, plan)
	} else {
		result.Entities, err = e.searchPage(ctx, conn, plan)
		if err == nil && len(plan.Fields) > 0 {
			result.Strategy = LoadSecondary
			err = e.loadRelations(ctx, conn, kind, plan.Fields, result.Entities)
		}
	}
	if err != nil {
		return nil, o.finish(0, err)
	}

	if result.Strategy != LoadNone {
		eagerLoads.WithLabelValues(string(result.Strategy)).Inc()
	}
	normalizeRelations(result.Entities, plan.Fields)
	return result, o.finish(len(result.Entities), nil)
}

func (e *Engine) searchJoined(ctx context.Context, conn *sql.Conn, plan *queryir.QueryPlan) ([]ir.Entity, error) {
	stmt, err := e.compiler.CompileJoinedSearch(plan)
	if err != nil {
		return nil, fmt.Errorf("compile joined search: %w", err)
	}
	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, &StoreError{Op: "search", Entity: plan.Entity, Err: err}
	}
	defer rows.Close()

	entities, err := querysql.ScanJoinedEntities(plan.Entity, plan.Fields, rows)
	if err != nil {
		return nil, &StoreError{Op: "search", Entity: plan.Entity, Err: err}
	}
	return entities, nil
}

func (e *Engine) searchPage(ctx context.Context, conn *sql.Conn, plan *queryir.QueryPlan) ([]ir.Entity, error) {
	stmt, err := e.compiler.CompileSearch(plan)
	if err != nil {
		return nil, fmt.Errorf("compile search: %w", err)
	}
	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, &StoreError{Op: "search", Entity: plan.Entity, Err: err}
	}
	defer rows.Close()

	entities, err := querysql.ScanEntities(plan.Entity, rows)
	if err != nil {
		return nil, &StoreError{Op: "search", Entity: plan.Entity, Err: err}
	}
	return entities, nil
}

// loadRelations fills the requested relations of entities with ID-scoped
// statements, eagerChunkSize IDs at a time.
func (e *Engine) loadRelations(ctx context.Context, conn *sql.Conn, kind ir.EntityKind, fields []ir.Relation, entities []ir.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	index := make(map[int64]int, len(entities))
	ids := make([]int64, len(entities))
	for i, ent := range entities {
		index[ent.ID] = i
		ids[i] = ent.ID
	}

	for _, rel := range fields {
		for start := 0; start < len(ids); start += eagerChunkSize {
			end := min(start+eagerChunkSize, len(ids))
			if err := e.loadRelationChunk(ctx, conn, kind, rel, ids[start:end], index, entities); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) loadRelationChunk(ctx context.Context, conn *sql.Conn, kind ir.EntityKind, rel ir.Relation, ids []int64, index map[int64]int, entities []ir.Entity) error {
	stmt, err := e.compiler.CompileEager(kind, rel, ids)
	if err != nil {
		return fmt.Errorf("compile %s load: %w", rel, err)
	}
	rows, err := conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return &StoreError{Op: "search", Entity: kind, Err: err}
	}
	defer rows.Close()

	switch rel {
	case ir.RelationDescriptors:
		byOwner, err := querysql.ScanDescriptors(rows)
		if err != nil {
			return &StoreError{Op: "search", Entity: kind, Err: err}
		}
		for owner, descs := range byOwner {
			if i, ok := index[owner]; ok {
				entities[i].Descriptors = descs
			}
		}
	case ir.RelationFacilities:
		byOwner, err := querysql.ScanFacilities(rows)
		if err != nil {
			return &StoreError{Op: "search", Entity: kind, Err: err}
		}
		for owner, facs := range byOwner {
			if i, ok := index[owner]; ok {
				entities[i].Facilities = facs
			}
		}
	default:
		return fmt.Errorf("unsupported relation %q", rel)
	}
	return nil
}

// normalizeRelations gives every entity an empty, non-nil slice for each
// requested relation it has no rows for.
func normalizeRelations(entities []ir.Entity, fields []ir.Relation) {
	for i := range entities {
		for _, rel := range fields {
			switch rel {
			case ir.RelationDescriptors:
				if entities[i].Descriptors == nil {
					entities[i].Descriptors = []ir.Descriptor{}
				}
			case ir.RelationFacilities:
				if entities[i].Facilities == nil {
					entities[i].Facilities = []ir.Facility{}
				}
			}
		}
	}
}
