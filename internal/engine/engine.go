package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
	"github.com/roach88/ffquery/internal/querysql"
	"github.com/roach88/ffquery/internal/store"
)

// DefaultMaxLimit is the largest page size accepted when no other limit is
// configured.
const DefaultMaxLimit = 1000

// eagerChunkSize bounds the number of IDs bound into one eager-load
// statement.
const eagerChunkSize = 500

// Engine answers search, count and aggregate requests over a store.
//
// Engine holds no per-request state and is safe for concurrent use. Each
// operation takes one pooled connection for all of its statements and
// releases it before returning.
type Engine struct {
	store    *store.Store
	compiler *querysql.Compiler
	ids      RequestIDGenerator

	maxLimit           int
	combinator         queryir.Combinator
	strategy           queryir.MatchStrategy
	includeDescendants bool
	strictPlans        bool
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMaxLimit sets the largest accepted page size. Zero disables the bound.
func WithMaxLimit(n int) Option {
	return func(e *Engine) {
		e.maxLimit = n
	}
}

// WithTextCombinator sets how free text combines with descriptors when a
// predicate does not say. Default: AND.
func WithTextCombinator(c queryir.Combinator) Option {
	return func(e *Engine) {
		e.combinator = c
	}
}

// WithDescriptorStrategy selects the taxonomy matcher. Default: exists.
func WithDescriptorStrategy(s queryir.MatchStrategy) Option {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithIncludeDescendants expands every descriptor clause to its taxonomy
// descendants.
func WithIncludeDescendants(on bool) Option {
	return func(e *Engine) {
		e.includeDescendants = on
	}
}

// WithStrictPlans makes the engine panic on planner invariant violations
// instead of returning them. Intended for tests and development.
func WithStrictPlans(on bool) Option {
	return func(e *Engine) {
		e.strictPlans = on
	}
}

// WithRequestIDGenerator replaces the UUIDv7 request ID generator.
func WithRequestIDGenerator(g RequestIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		compiler:   querysql.NewCompiler(),
		ids:        UUIDv7Generator{},
		maxLimit:   DefaultMaxLimit,
		combinator: queryir.CombineAnd,
		strategy:   queryir.MatchExists,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxLimit returns the largest accepted page size; zero means unbounded.
func (e *Engine) MaxLimit() int {
	return e.maxLimit
}

func (e *Engine) planOptions(purpose queryir.Purpose) queryir.PlanOptions {
	return queryir.PlanOptions{
		Purpose:            purpose,
		Strategy:           e.strategy,
		DefaultCombinator:  e.combinator,
		IncludeDescendants: e.includeDescendants,
	}
}

// checkPlan verifies planner invariants. A violation is a bug in the
// planner, never in the request; in strict mode it panics.
func (e *Engine) checkPlan(plan *queryir.QueryPlan) error {
	if err := plan.Check(); err != nil {
		if e.strictPlans {
			panic(err)
		}
		return err
	}
	return nil
}

// operation carries the logging and metrics context of one request.
type operation struct {
	op     string
	entity ir.EntityKind
	start  time.Time
	log    *slog.Logger
}

func (e *Engine) begin(op string, entity ir.EntityKind) *operation {
	return &operation{
		op:     op,
		entity: entity,
		start:  time.Now(),
		log:    slog.With("request_id", e.ids.Generate(), "op", op, "entity", string(entity)),
	}
}

// finish records the outcome of an operation and returns err unchanged.
func (o *operation) finish(rows int, err error) error {
	outcome := outcomeOK
	switch {
	case err == nil:
	case queryir.IsInvalidPredicate(err):
		outcome = outcomeInvalidPredicate
	case queryir.IsInconsistentPlan(err):
		outcome = outcomePlanError
	default:
		outcome = outcomeStoreError
	}

	observe(o.op, string(o.entity), outcome, o.start, rows)

	elapsed := time.Since(o.start)
	switch outcome {
	case outcomeOK:
		o.log.Debug("operation complete", "rows", rows, "duration", elapsed)
	case outcomeInvalidPredicate:
		o.log.Debug("invalid predicate", "error", err)
	default:
		o.log.Error("operation failed", "error", err, "duration", elapsed)
	}
	return err
}

// empty records an operation answered without touching the store.
func (o *operation) empty() {
	observe(o.op, string(o.entity), outcomeEmptyIDs, o.start, 0)
	o.log.Debug("explicit empty id set, skipping store")
}

// conn acquires one pooled connection for the operation.
func (e *Engine) conn(ctx context.Context, o *operation) (*sql.Conn, error) {
	c, err := e.store.Conn(ctx)
	if err != nil {
		return nil, &StoreError{Op: o.op, Entity: o.entity, Err: err}
	}
	return c, nil
}

// Count returns the number of distinct entities matching p.
//
// Count agrees with Search: for any predicate it equals the number of
// entities an unpaginated search returns.
func (e *Engine) Count(ctx context.Context, kind ir.EntityKind, p queryir.Predicate) (int64, error) {
	o := e.begin("count", kind)

	if err := queryir.Validate(kind, p); err != nil {
		return 0, o.finish(0, err)
	}

	plan, err := queryir.Plan(kind, p, e.planOptions(queryir.PurposeCount))
	if err != nil {
		return 0, o.finish(0, err)
	}
	if err := e.checkPlan(plan); err != nil {
		return 0, o.finish(0, err)
	}
	if plan.MatchesNothing() {
		o.empty()
		return 0, nil
	}

	stmt, err := e.compiler.CompileCount(plan)
	if err != nil {
		return 0, o.finish(0, fmt.Errorf("compile count: %w", err))
	}

	conn, err := e.conn(ctx, o)
	if err != nil {
		return 0, o.finish(0, err)
	}
	defer conn.Close()

	var n int64
	if err := conn.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, o.finish(0, &StoreError{Op: o.op, Entity: kind, Err: err})
	}
	return n, o.finish(1, nil)
}
