package queryir

import "fmt"

// Page selects a window of a search result. Limit 0 means unlimited.
type Page struct {
	Limit  int `json:"limit,omitempty" yaml:"limit,omitempty"`
	Offset int `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Paginated reports whether the page restricts the result window.
func (pg Page) Paginated() bool {
	return pg.Limit > 0 || pg.Offset > 0
}

// Validate rejects negative values and limits above max. A max of zero
// disables the upper bound.
func (pg Page) Validate(max int) error {
	if pg.Limit < 0 {
		return &PredicateError{Clause: "limit", Value: fmt.Sprint(pg.Limit), Message: "must not be negative"}
	}
	if pg.Offset < 0 {
		return &PredicateError{Clause: "offset", Value: fmt.Sprint(pg.Offset), Message: "must not be negative"}
	}
	if max > 0 && pg.Limit > max {
		return &PredicateError{Clause: "limit", Value: fmt.Sprint(pg.Limit), Message: fmt.Sprintf("must not exceed %d", max)}
	}
	return nil
}

// ApplyPage sets the result window of a search plan.
//
// Joining to-many relations for eager loading multiplies base rows before
// LIMIT and OFFSET apply, so any paginated plan loses AllowJoinEagerLoad and
// its relations are loaded by a second, ID-scoped query instead.
func (p *QueryPlan) ApplyPage(pg Page) {
	p.Limit = pg.Limit
	p.Offset = pg.Offset
	if p.Paginated() {
		p.AllowJoinEagerLoad = false
	}
}
