package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ffquery", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"load", "search", "count", "aggregate", "explain", "test", "serve"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	searchCmd, _, err := cmd.Find([]string{"search"})
	require.NoError(t, err)

	limitFlag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "-1", limitFlag.DefValue)

	predicateFlag := searchCmd.Flags().Lookup("predicate")
	require.NotNil(t, predicateFlag)
	assert.Equal(t, "p", predicateFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "count", "study", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ffquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query:\n  max_limit: 0\n"), 0644))

	_, err := runCLI(t, "count", "study", "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestConfigDefaultLimit(t *testing.T) {
	db := seededDB(t)
	path := filepath.Join(t.TempDir(), "ffquery.cue")
	require.NoError(t, os.WriteFile(path, []byte("query: default_limit: 2\n"), 0644))

	out, err := runCLI(t, "search", "study", "--db", db, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 rows)")

	// An explicit limit wins over the configured default.
	out, err = runCLI(t, "search", "study", "--db", db, "--config", path, "--limit", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "(5 rows)")
}
