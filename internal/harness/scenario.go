package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// Scenario is one conformance scenario: a dataset, engine settings and a
// sequence of query steps with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dataset is a dataset file path, relative to the scenario file.
	Dataset string `yaml:"dataset,omitempty"`

	// Data is an inline dataset. When neither Dataset nor Data is set the
	// sample dataset is used.
	Data *ir.Dataset `yaml:"data,omitempty"`

	Engine EngineSettings `yaml:"engine,omitempty"`

	Steps []Step `yaml:"steps"`
}

// EngineSettings are the engine options a scenario may change.
type EngineSettings struct {
	DescriptorStrategy string `yaml:"descriptor_strategy,omitempty"`
	TextCombinator     string `yaml:"text_combinator,omitempty"`
	IncludeDescendants bool   `yaml:"include_descendants,omitempty"`
	MaxLimit           int    `yaml:"max_limit,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op is search, count or aggregate.
	Op string `yaml:"op"`

	// Entity is study or citation.
	Entity string `yaml:"entity"`

	Predicate queryir.Predicate `yaml:"predicate,omitempty"`

	// Search shape.
	Page   queryir.Page  `yaml:"page,omitempty"`
	Order  string        `yaml:"order,omitempty"`
	Fields []ir.Relation `yaml:"fields,omitempty"`

	// Aggregate shape.
	Aggregate string                  `yaml:"aggregate,omitempty"`
	Params    queryir.AggregateParams `yaml:"params,omitempty"`

	Checks []string `yaml:"checks,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect lists what a step must produce. Unset fields are not checked.
type Expect struct {
	// IDs are the search result IDs, in order.
	IDs []int64 `yaml:"ids,omitempty"`

	// Empty requires a search or aggregate with no rows.
	Empty bool `yaml:"empty,omitempty"`

	// Count is the result of a count step.
	Count *int64 `yaml:"count,omitempty"`

	// Groups are aggregate groups as "label=count", in order.
	Groups []string `yaml:"groups,omitempty"`

	// Absent are aggregate labels that must not appear.
	Absent []string `yaml:"absent,omitempty"`

	// Error is the expected error class: invalid_predicate or store_error.
	Error string `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpSearch    = "search"
	OpCount     = "count"
	OpAggregate = "aggregate"
)

// Step checks.
const (
	CheckCountMatchesSearch = "count_matches_search"
	CheckPaginationStable   = "pagination_stable"
)

// Expected error classes.
const (
	ErrInvalidPredicate = "invalid_predicate"
	ErrStoreError       = "store_error"
)

// LoadScenario reads and parses a scenario YAML file. A relative Dataset
// path is resolved against the scenario's directory.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Dataset != "" && !filepath.IsAbs(s.Dataset) {
		s.Dataset = filepath.Join(filepath.Dir(path), s.Dataset)
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks the scenario's shape. Predicates themselves are
// validated by the engine, so a step can expect invalid_predicate.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Dataset != "" && s.Data != nil {
		return fmt.Errorf("dataset and data are mutually exclusive")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	if _, err := ir.ParseEntityKind(st.Entity); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}

	switch st.Op {
	case OpSearch:
		if st.Aggregate != "" {
			return fmt.Errorf("steps[%d]: aggregate is only valid for aggregate steps", index)
		}
	case OpCount:
		if st.Order != "" || len(st.Fields) > 0 || st.Page.Paginated() {
			return fmt.Errorf("steps[%d]: count steps take no order, fields or page", index)
		}
	case OpAggregate:
		if st.Aggregate == "" {
			return fmt.Errorf("steps[%d]: aggregate is required for aggregate steps", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	for _, c := range st.Checks {
		switch c {
		case CheckCountMatchesSearch, CheckPaginationStable:
			if st.Op != OpSearch {
				return fmt.Errorf("steps[%d]: check %q needs a search step", index, c)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown check %q", index, c)
		}
	}

	switch st.Expect.Error {
	case "", ErrInvalidPredicate, ErrStoreError:
	default:
		return fmt.Errorf("steps[%d].expect: unknown error class %q", index, st.Expect.Error)
	}
	if st.Expect.Count != nil && st.Op != OpCount {
		return fmt.Errorf("steps[%d].expect: count needs a count step", index)
	}
	if (len(st.Expect.Groups) > 0 || len(st.Expect.Absent) > 0) && st.Op != OpAggregate {
		return fmt.Errorf("steps[%d].expect: groups need an aggregate step", index)
	}
	if len(st.Expect.IDs) > 0 && st.Op != OpSearch {
		return fmt.Errorf("steps[%d].expect: ids need a search step", index)
	}
	return nil
}
