package queryir

import (
	"fmt"
	"strings"
)

// OrderField is a whitelisted sort column of a search.
type OrderField string

const (
	OrderByID        OrderField = "id"
	OrderByAccession OrderField = "accession"
	OrderByTitle     OrderField = "title"
	OrderByDate      OrderField = "date"
)

// OrderFields lists the accepted order fields.
var OrderFields = []OrderField{OrderByID, OrderByAccession, OrderByTitle, OrderByDate}

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Field OrderField `json:"field" yaml:"field"`
	Desc  bool       `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// String renders the term in the form ParseOrder accepts.
func (t OrderTerm) String() string {
	if t.Desc {
		return string(t.Field) + ":desc"
	}
	return string(t.Field) + ":asc"
}

// ParseOrder parses a comma separated order list such as "date:desc,title".
// A term without direction sorts ascending. An empty string yields nil.
func ParseOrder(s string) ([]OrderTerm, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var terms []OrderTerm
	for _, part := range strings.Split(s, ",") {
		field, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		term := OrderTerm{Field: OrderField(strings.TrimSpace(field))}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			term.Desc = true
		default:
			return nil, &PredicateError{Clause: "order", Value: part, Message: "direction must be asc or desc"}
		}
		if err := term.validate(); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

func (t OrderTerm) validate() error {
	for _, f := range OrderFields {
		if t.Field == f {
			return nil
		}
	}
	return &PredicateError{
		Clause:  "order",
		Value:   string(t.Field),
		Message: fmt.Sprintf("unknown order field (want one of %v)", OrderFields),
	}
}

// normalizeOrder drops repeated fields; the first occurrence wins.
func normalizeOrder(terms []OrderTerm) []OrderTerm {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[OrderField]bool, len(terms))
	out := make([]OrderTerm, 0, len(terms))
	for _, t := range terms {
		if seen[t.Field] {
			continue
		}
		seen[t.Field] = true
		out = append(out, t)
	}
	return out
}
