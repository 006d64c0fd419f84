package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	Search    SearchOptions
	Aggregate AggregateOptions
	Op        string
	Kind      string
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{
		Search:    SearchOptions{RootOptions: rootOpts},
		Aggregate: AggregateOptions{RootOptions: rootOpts},
	}

	cmd := &cobra.Command{
		Use:   "explain <study|citation>",
		Short: "Show the SQL an operation would run",
		Long: `Show the plan and compiled SQL of a search, count or aggregate without
running it. No database is opened.

Examples:
  ffquery explain study -p '{cities: [Boston], gender: female}'
  ffquery explain study --op search --limit 10 --fields facilities
  ffquery explain citation --op aggregate --kind unique_countries`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, cmd, args[0])
		},
	}

	opts.Search.Predicate.register(cmd)
	cmd.Flags().StringVar(&opts.Op, "op", "search", "operation (search, count, aggregate)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "aggregate kind for --op aggregate")
	cmd.Flags().IntVarP(&opts.Search.Limit, "limit", "l", -1, "search page size")
	cmd.Flags().IntVar(&opts.Search.Offset, "offset", 0, "search rows to skip")
	cmd.Flags().StringVar(&opts.Search.Order, "order", "", "search order terms")
	cmd.Flags().StringSliceVar(&opts.Search.Fields, "fields", nil, "search relations to load")
	cmd.Flags().StringVar(&opts.Aggregate.Params, "params", "", "aggregate params as inline JSON or YAML")

	return cmd
}

func runExplain(opts *ExplainOptions, cmd *cobra.Command, entity string) error {
	root := opts.Search.RootOptions
	kind, err := ir.ParseEntityKind(entity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid entity", err)
	}
	pred, err := opts.Search.Predicate.read(cmd.InOrStdin())
	if err != nil {
		return err
	}
	f := root.formatter(cmd)

	// Explaining never touches the store.
	eng, err := root.newEngine(nil)
	if err != nil {
		return err
	}

	var x *engine.Explanation
	switch opts.Op {
	case "search":
		var searchOpts engine.SearchOptions
		if searchOpts, err = opts.Search.searchOptions(); err == nil {
			x, err = eng.ExplainSearch(kind, pred, searchOpts)
		}
	case "count":
		x, err = eng.ExplainCount(kind, pred)
	case "aggregate":
		var (
			agg    queryir.AggregateKind
			params queryir.AggregateParams
		)
		if params, err = opts.Aggregate.params(); err != nil {
			return err
		}
		if agg, err = queryir.ParseAggregateKind(opts.Kind); err == nil {
			x, err = eng.ExplainAggregate(kind, agg, pred, params)
		}
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown op %q: must be search, count or aggregate", opts.Op))
	}
	if err != nil {
		return root.engineError(f, err)
	}

	return f.Success(x, func(w io.Writer) error {
		return writeExplanation(w, x)
	})
}

func writeExplanation(w io.Writer, x *engine.Explanation) error {
	fmt.Fprintf(w, "%s %s\n", x.Op, x.Entity)
	if len(x.Joins) > 0 {
		fmt.Fprintf(w, "joins: %s\n", strings.Join(x.Joins, ", "))
	}
	if x.Strategy != engine.LoadNone {
		fmt.Fprintf(w, "eager load: %s\n", x.Strategy)
	}
	if x.MatchesNothing {
		fmt.Fprintln(w, "matches nothing: no statement runs")
	}
	for i, st := range x.Statements {
		fmt.Fprintf(w, "\n-- statement %d\n%s;\n", i+1, st.SQL)
		if len(st.Args) > 0 {
			fmt.Fprintf(w, "-- args: %v\n", st.Args)
		}
	}
	for _, rel := range x.Deferred {
		fmt.Fprintf(w, "\n-- %s: loaded per page by ID\n", rel)
	}
	return nil
}
