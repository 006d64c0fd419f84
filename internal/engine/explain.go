package engine

import (
	"fmt"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
	"github.com/roach88/ffquery/internal/querysql"
)

// Explanation describes how an operation would run without running it.
type Explanation struct {
	Op     string        `json:"op" yaml:"op"`
	Entity ir.EntityKind `json:"entity" yaml:"entity"`

	// Joins lists the plan's joins as "kind:mode".
	Joins []string `json:"joins,omitempty" yaml:"joins,omitempty"`

	// Strategy is the eager load strategy of a search.
	Strategy LoadStrategy `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// MatchesNothing is set when the operation is answered without a query.
	MatchesNothing bool `json:"matches_nothing,omitempty" yaml:"matches_nothing,omitempty"`

	// Statements are the statements the operation would execute, in order.
	// Secondary relation loads depend on the page's IDs and are listed
	// in Deferred instead.
	Statements []querysql.Statement `json:"statements" yaml:"statements"`
	Deferred   []ir.Relation        `json:"deferred,omitempty" yaml:"deferred,omitempty"`
}

func explainJoins(plan *queryir.QueryPlan) []string {
	var out []string
	for _, j := range plan.Joins {
		out = append(out, fmt.Sprintf("%s:%s", j.Kind, j.Mode))
	}
	return out
}

// ExplainSearch plans and compiles a search.
func (e *Engine) ExplainSearch(kind ir.EntityKind, p queryir.Predicate, opts SearchOptions) (*Explanation, error) {
	if err := queryir.Validate(kind, p); err != nil {
		return nil, err
	}
	if err := opts.Page.Validate(e.maxLimit); err != nil {
		return nil, err
	}
	planOpts := e.planOptions(queryir.PurposeSearch)
	planOpts.Order = opts.Order
	planOpts.Fields = opts.Fields
	plan, err := queryir.Plan(kind, p, planOpts)
	if err != nil {
		return nil, err
	}
	plan.ApplyPage(opts.Page)
	if err := e.checkPlan(plan); err != nil {
		return nil, err
	}

	x := &Explanation{Op: "search", Entity: kind, Joins: explainJoins(plan), MatchesNothing: plan.MatchesNothing()}
	if x.MatchesNothing {
		return x, nil
	}

	var stmt querysql.Statement
	switch {
	case plan.AllowJoinEagerLoad && len(plan.Fields) > 0:
		x.Strategy = LoadJoined
		stmt, err = e.compiler.CompileJoinedSearch(plan)
	default:
		if len(plan.Fields) > 0 {
			x.Strategy = LoadSecondary
			x.Deferred = plan.Fields
		}
		stmt, err = e.compiler.CompileSearch(plan)
	}
	if err != nil {
		return nil, err
	}
	x.Statements = []querysql.Statement{stmt}
	return x, nil
}

// ExplainCount plans and compiles a count.
func (e *Engine) ExplainCount(kind ir.EntityKind, p queryir.Predicate) (*Explanation, error) {
	if err := queryir.Validate(kind, p); err != nil {
		return nil, err
	}
	plan, err := queryir.Plan(kind, p, e.planOptions(queryir.PurposeCount))
	if err != nil {
		return nil, err
	}
	if err := e.checkPlan(plan); err != nil {
		return nil, err
	}

	x := &Explanation{Op: "count", Entity: kind, Joins: explainJoins(plan), MatchesNothing: plan.MatchesNothing()}
	if x.MatchesNothing {
		return x, nil
	}
	stmt, err := e.compiler.CompileCount(plan)
	if err != nil {
		return nil, err
	}
	x.Statements = []querysql.Statement{stmt}
	return x, nil
}

// ExplainAggregate plans and compiles an aggregate.
func (e *Engine) ExplainAggregate(entity ir.EntityKind, kind queryir.AggregateKind, p queryir.Predicate, params queryir.AggregateParams) (*Explanation, error) {
	if err := queryir.ValidateAggregate(entity, kind, p, params); err != nil {
		return nil, err
	}
	ap, err := queryir.PlanAggregate(entity, kind, p, params, e.planOptions(queryir.PurposeMatch))
	if err != nil {
		return nil, err
	}
	if err := e.checkPlan(ap.Match); err != nil {
		return nil, err
	}

	x := &Explanation{Op: "aggregate", Entity: entity, Joins: explainJoins(ap.Match), MatchesNothing: ap.MatchesNothing()}
	if x.MatchesNothing {
		return x, nil
	}
	stmt, err := e.compiler.CompileAggregate(ap)
	if err != nil {
		return nil, err
	}
	x.Statements = []querysql.Statement{stmt}
	return x, nil
}
