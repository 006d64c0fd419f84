package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: ok
description: one count
engine: {descriptor_strategy: exists, include_descendants: true}
steps:
  - op: count
    entity: study
    predicate: {entity_ids: []}
    expect: {count: 0}
`))
	require.NoError(t, err)
	assert.Equal(t, "exists", s.Engine.DescriptorStrategy)
	assert.True(t, s.Engine.IncludeDescendants)
	require.Len(t, s.Steps, 1)

	// An empty list decodes to an explicit empty ID set, not an absent clause.
	assert.NotNil(t, s.Steps[0].Predicate.EntityIDs)
	assert.True(t, s.Steps[0].Predicate.HasExplicitEmptyIDs())
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: d\nsteps: [{op: count, entity: study}]", "name is required"},
		{"missing description", "name: n\nsteps: [{op: count, entity: study}]", "description is required"},
		{"no steps", "name: n\ndescription: d", "steps list is required"},
		{"unknown field", "name: n\ndescription: d\nflow: []\nsteps: [{op: count, entity: study}]", "field flow not found"},
		{"unknown op", "name: n\ndescription: d\nsteps: [{op: delete, entity: study}]", `unknown op "delete"`},
		{"unknown entity", "name: n\ndescription: d\nsteps: [{op: count, entity: trial}]", "steps[0]"},
		{"aggregate without kind", "name: n\ndescription: d\nsteps: [{op: aggregate, entity: study}]", "aggregate is required"},
		{"count with page", "name: n\ndescription: d\nsteps: [{op: count, entity: study, page: {limit: 1}}]", "count steps take no"},
		{"check on count", "name: n\ndescription: d\nsteps: [{op: count, entity: study, checks: [pagination_stable]}]", "needs a search step"},
		{"unknown check", "name: n\ndescription: d\nsteps: [{op: search, entity: study, checks: [fast]}]", `unknown check "fast"`},
		{"unknown error class", "name: n\ndescription: d\nsteps: [{op: search, entity: study, expect: {error: boom}}]", `unknown error class "boom"`},
		{"ids on count", "name: n\ndescription: d\nsteps: [{op: count, entity: study, expect: {ids: [1]}}]", "ids need a search step"},
		{"dataset and data", "name: n\ndescription: d\ndataset: x.yaml\ndata: {}\nsteps: [{op: count, entity: study}]", "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesDatasetPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: s
description: d
dataset: data/ds.yaml
steps: [{op: count, entity: study}]
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "ds.yaml"), s.Dataset)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}
