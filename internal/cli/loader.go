package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/queryir"
	"github.com/roach88/ffquery/internal/store"
)

// PredicateFlags are the predicate inputs shared by the query commands.
type PredicateFlags struct {
	Inline string // --predicate
	File   string // --predicate-file, "-" for stdin
}

func (p *PredicateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.Inline, "predicate", "p", "", "predicate as inline JSON or YAML")
	cmd.Flags().StringVar(&p.File, "predicate-file", "", "predicate file (JSON or YAML, - for stdin)")
}

// read decodes the predicate. With neither flag set the zero predicate
// matches every entity.
func (p *PredicateFlags) read(stdin io.Reader) (queryir.Predicate, error) {
	var pred queryir.Predicate
	var data []byte
	switch {
	case p.Inline != "" && p.File != "":
		return pred, NewExitError(ExitCommandError, "--predicate and --predicate-file are mutually exclusive")
	case p.Inline != "":
		data = []byte(p.Inline)
	case p.File == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return pred, WrapExitError(ExitCommandError, "failed to read predicate", err)
		}
		data = b
	case p.File != "":
		b, err := os.ReadFile(p.File)
		if err != nil {
			return pred, WrapExitError(ExitCommandError, "failed to read predicate", err)
		}
		data = b
	default:
		return pred, nil
	}
	if err := decodeStrict(data, &pred); err != nil {
		return pred, WrapExitError(ExitCommandError, "failed to parse predicate", err)
	}
	return pred, nil
}

// decodeStrict decodes JSON or YAML, rejecting unknown fields. Empty input
// leaves v untouched.
func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// openStore opens the configured database.
func (o *RootOptions) openStore() (*store.Store, error) {
	db := o.Config.Database
	st, err := store.Open(db.Path,
		store.WithMaxOpenConns(db.MaxOpenConns),
		store.WithBusyTimeout(db.BusyTimeout()),
	)
	if err != nil {
		return nil, WrapExitError(ExitStoreError, fmt.Sprintf("failed to open database %s", db.Path), err)
	}
	return st, nil
}

// newEngine builds an engine with the configured query defaults.
func (o *RootOptions) newEngine(st *store.Store) (*engine.Engine, error) {
	q := o.Config.Query
	strategy, err := queryir.ParseMatchStrategy(q.DescriptorStrategy)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return engine.New(st,
		engine.WithMaxLimit(q.MaxLimit),
		engine.WithTextCombinator(queryir.Combinator(q.TextCombinator)),
		engine.WithDescriptorStrategy(strategy),
		engine.WithIncludeDescendants(q.IncludeDescendants),
		engine.WithStrictPlans(q.StrictPlans),
	), nil
}

// withEngine opens the store, runs fn and closes the store.
func (o *RootOptions) withEngine(fn func(*engine.Engine) error) error {
	st, err := o.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := o.newEngine(st)
	if err != nil {
		return err
	}
	return fn(eng)
}

// engineError maps an engine failure to an exit code and reports it through
// the formatter.
func (o *RootOptions) engineError(f *OutputFormatter, err error) error {
	code, exit := "internal", ExitFailure
	switch {
	case engine.IsInvalidPredicate(err):
		code, exit = "invalid_predicate", ExitCommandError
	case engine.IsStoreError(err):
		code, exit = "store_error", ExitStoreError
	}
	if f.JSON() {
		if ferr := f.Error(code, err.Error(), nil); ferr != nil {
			return ferr
		}
	}
	return WrapExitError(exit, code, err)
}
