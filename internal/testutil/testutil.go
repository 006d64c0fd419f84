// Package testutil provides shared fixtures for tests across packages.
package testutil

import (
	"context"
	_ "embed"
	"path/filepath"
	"testing"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/store"
)

//go:embed sample.yaml
var sampleYAML []byte

// SampleYAML returns the raw sample dataset.
func SampleYAML() []byte {
	return append([]byte(nil), sampleYAML...)
}

// SampleDataset returns a fresh copy of the sample dataset.
//
// Panics if the embedded fixture does not parse.
func SampleDataset() *ir.Dataset {
	ds, err := ir.ParseDataset(sampleYAML)
	if err != nil {
		panic(err)
	}
	return ds
}

// NewStore opens an empty file-backed store in a temp dir. The store is
// closed when the test ends.
func NewStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ffquery.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeededStore opens a temp store loaded with ds, or with the sample dataset
// when ds is nil.
func SeededStore(t testing.TB, ds *ir.Dataset, opts ...store.Option) *store.Store {
	t.Helper()
	if ds == nil {
		ds = SampleDataset()
	}
	s := NewStore(t, opts...)
	if _, err := s.LoadDataset(context.Background(), ds); err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	return s
}
