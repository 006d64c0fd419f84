package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
	"github.com/roach88/ffquery/internal/store"
	"github.com/roach88/ffquery/internal/testutil"
)

// checkPageSize is the page size of the pagination_stable check.
const checkPageSize = 2

// Harness executes the steps of one scenario.
type Harness struct {
	engine *engine.Engine
	result *Result
}

// Run executes a scenario on a fresh store and returns the result.
//
// Execution flow:
//  1. Create a store in a private temp directory
//  2. Load the scenario's dataset
//  3. Execute the steps in order, checking expectations and checks
//
// Failed expectations are reported in the result; an error is returned only
// when the scenario cannot run at all.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "ffquery-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	ds, err := scenarioDataset(scenario)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if _, err := st.LoadDataset(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	eng, err := newEngine(st, scenario.Engine)
	if err != nil {
		return nil, err
	}

	h := &Harness{engine: eng, result: NewResult()}
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return h.result, nil
}

func scenarioDataset(s *Scenario) (*ir.Dataset, error) {
	switch {
	case s.Data != nil:
		return s.Data, nil
	case s.Dataset != "":
		ds, err := ir.LoadDataset(s.Dataset)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		return ds, nil
	default:
		return testutil.SampleDataset(), nil
	}
}

func newEngine(st *store.Store, es EngineSettings) (*engine.Engine, error) {
	opts := []engine.Option{
		engine.WithStrictPlans(true),
		engine.WithRequestIDGenerator(engine.NewFixedGenerator("harness")),
		engine.WithIncludeDescendants(es.IncludeDescendants),
	}
	if es.DescriptorStrategy != "" {
		strategy, err := queryir.ParseMatchStrategy(es.DescriptorStrategy)
		if err != nil {
			return nil, fmt.Errorf("engine.descriptor_strategy: %w", err)
		}
		opts = append(opts, engine.WithDescriptorStrategy(strategy))
	}
	switch queryir.Combinator(es.TextCombinator) {
	case queryir.CombineDefault:
	case queryir.CombineAnd, queryir.CombineOr:
		opts = append(opts, engine.WithTextCombinator(queryir.Combinator(es.TextCombinator)))
	default:
		return nil, fmt.Errorf("engine.text_combinator: unknown combinator %q", es.TextCombinator)
	}
	if es.MaxLimit > 0 {
		opts = append(opts, engine.WithMaxLimit(es.MaxLimit))
	}
	return engine.New(st, opts...), nil
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	kind, err := ir.ParseEntityKind(step.Entity)
	if err != nil {
		return err
	}
	sr := StepResult{Op: step.Op, Entity: step.Entity, Aggregate: step.Aggregate}

	var runErr error
	switch step.Op {
	case OpSearch:
		var res *engine.SearchResult
		res, runErr = h.search(ctx, kind, step, step.Page)
		if runErr == nil {
			sr.IDs = entityIDs(res.Entities)
			sr.Strategy = string(res.Strategy)
			h.runChecks(ctx, index, kind, step, res)
		}
	case OpCount:
		var n int64
		n, runErr = h.engine.Count(ctx, kind, step.Predicate)
		if runErr == nil {
			sr.Count = &n
		}
	case OpAggregate:
		var res *engine.AggregateResult
		res, runErr = h.engine.Aggregate(ctx, kind, queryir.AggregateKind(step.Aggregate), step.Predicate, step.Params)
		if runErr == nil {
			sr.Groups = GroupLabels(res)
		}
	}

	if runErr != nil {
		class, ok := errorClass(runErr)
		if !ok {
			return runErr
		}
		sr.Error = class
	}

	h.result.Steps = append(h.result.Steps, sr)
	for _, msg := range checkExpect(step.Expect, sr) {
		h.result.AddError(fmt.Sprintf("steps[%d]: %s", index, msg))
	}
	return nil
}

func (h *Harness) search(ctx context.Context, kind ir.EntityKind, step Step, page queryir.Page) (*engine.SearchResult, error) {
	order, err := queryir.ParseOrder(step.Order)
	if err != nil {
		return nil, err
	}
	return h.engine.Search(ctx, kind, step.Predicate, engine.SearchOptions{
		Page:   page,
		Order:  order,
		Fields: step.Fields,
	})
}

// runChecks verifies the step's property checks against the unpaginated
// result of the same search.
func (h *Harness) runChecks(ctx context.Context, index int, kind ir.EntityKind, step Step, res *engine.SearchResult) {
	if len(step.Checks) == 0 {
		return
	}
	full := res
	if step.Page.Paginated() {
		var err error
		if full, err = h.search(ctx, kind, step, queryir.Page{}); err != nil {
			h.result.AddError(fmt.Sprintf("steps[%d]: unpaginated search: %v", index, err))
			return
		}
	}

	for _, c := range step.Checks {
		switch c {
		case CheckCountMatchesSearch:
			n, err := h.engine.Count(ctx, kind, step.Predicate)
			if err != nil {
				h.result.AddError(fmt.Sprintf("steps[%d]: %s: %v", index, c, err))
				continue
			}
			if n != int64(len(full.Entities)) {
				h.result.AddError(fmt.Sprintf("steps[%d]: %s: count %d, search returned %d", index, c, n, len(full.Entities)))
			}
		case CheckPaginationStable:
			var pages []ir.Entity
			for offset := 0; offset <= len(full.Entities); offset += checkPageSize {
				page, err := h.search(ctx, kind, step, queryir.Page{Limit: checkPageSize, Offset: offset})
				if err != nil {
					h.result.AddError(fmt.Sprintf("steps[%d]: %s: %v", index, c, err))
					break
				}
				pages = append(pages, page.Entities...)
			}
			if diff := diffEntities(full.Entities, pages); diff != "" {
				h.result.AddError(fmt.Sprintf("steps[%d]: %s: %s", index, c, diff))
			}
		}
	}
}

func errorClass(err error) (string, bool) {
	switch {
	case engine.IsInvalidPredicate(err):
		return ErrInvalidPredicate, true
	case engine.IsStoreError(err):
		return ErrStoreError, true
	default:
		return "", false
	}
}

func entityIDs(entities []ir.Entity) []int64 {
	out := make([]int64, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}
