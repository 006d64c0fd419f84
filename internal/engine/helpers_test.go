package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
	"github.com/roach88/ffquery/internal/testutil"
)

// newTestEngine returns a strict engine over a temp store seeded with ds, or
// with the sample dataset when ds is nil.
func newTestEngine(t *testing.T, ds *ir.Dataset, opts ...Option) *Engine {
	t.Helper()
	s := testutil.SeededStore(t, ds)
	opts = append([]Option{WithStrictPlans(true), WithRequestIDGenerator(NewFixedGenerator("test-request"))}, opts...)
	return New(s, opts...)
}

func intPtr(v int) *int { return &v }

func ids(entities []ir.Entity) []int64 {
	out := make([]int64, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

// searchIDs runs an unpaginated search and returns the matched IDs in order.
func searchIDs(t *testing.T, e *Engine, kind ir.EntityKind, p queryir.Predicate) []int64 {
	t.Helper()
	res, err := e.Search(context.Background(), kind, p, SearchOptions{})
	require.NoError(t, err)
	return ids(res.Entities)
}
