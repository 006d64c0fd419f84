package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "ffquery.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout())
	assert.Equal(t, 1000, cfg.Query.MaxLimit)
	assert.Equal(t, 50, cfg.Query.DefaultLimit)
	assert.Equal(t, "and", cfg.Query.TextCombinator)
	assert.Equal(t, "exists", cfg.Query.DescriptorStrategy)
	assert.False(t, cfg.Query.StrictPlans)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ReadTimeout())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_CUE(t *testing.T) {
	cfg, err := Parse("ffquery.cue", []byte(`
database: path: "/var/lib/ffquery/data.db"
query: {
	descriptor_strategy: "group_count"
	max_limit:           200
}
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ffquery/data.db", cfg.Database.Path)
	assert.Equal(t, "group_count", cfg.Query.DescriptorStrategy)
	assert.Equal(t, 200, cfg.Query.MaxLimit)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.Query.DefaultLimit)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse("ffquery.json", []byte(`{"log": {"level": "debug", "format": "json"}}`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_YAML(t *testing.T) {
	cfg, err := Parse("ffquery.yaml", []byte("http:\n  addr: \":9090\"\nquery:\n  text_combinator: or\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "or", cfg.Query.TextCombinator)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"unknown key", "c.cue", `query: page_size: 10`},
		{"unknown combinator", "c.cue", `query: text_combinator: "xor"`},
		{"unknown strategy", "c.json", `{"query": {"descriptor_strategy": "join"}}`},
		{"default above max", "c.cue", "query: {max_limit: 10, default_limit: 20}"},
		{"too many connections", "c.yaml", "database:\n  max_open_conns: 100\n"},
		{"bad log level", "c.cue", `log: level: "trace"`},
		{"syntax", "c.cue", `query: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.data))
			require.Error(t, err)
			var cerr *Error
			assert.ErrorAs(t, err, &cerr)
		})
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "ffquery.cue")
	require.NoError(t, os.WriteFile(path, []byte(`query: strict_plans: true`), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Query.StrictPlans)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
