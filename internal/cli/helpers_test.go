package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ffquery/internal/testutil"
)

// runCLI executes the root command and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seededDB loads the sample dataset through the load command and returns
// the database path.
func seededDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dataset := filepath.Join(dir, "sample.yaml")
	require.NoError(t, os.WriteFile(dataset, testutil.SampleYAML(), 0644))

	db := filepath.Join(dir, "ffquery.db")
	_, err := runCLI(t, "load", "--db", db, dataset)
	require.NoError(t, err)
	return db
}
