package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/harness"
	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// AggregateOptions holds flags for the aggregate command.
type AggregateOptions struct {
	*RootOptions
	Predicate PredicateFlags
	Params    string // inline JSON or YAML AggregateParams
	Limit     int
	Order     string
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AggregateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "aggregate <study|citation> <kind>",
		Short: "Compute an aggregate over matching entities",
		Long: `Compute an aggregate over the entities matching a predicate.

Kinds: unique_countries, unique_states, unique_cities, unique_facilities,
facility_study_counts, unique_descriptors, descriptor_frequency,
qualifier_frequency, age_range.

The predicate selects the entities; --params filters and orders the groups.

Examples:
  ffquery aggregate study unique_countries -p '{descriptor_ids: [1]}'
  ffquery aggregate citation descriptor_frequency --order recent --limit 10
  ffquery aggregate study unique_cities --params '{countries: [France]}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd.Context(), opts, cmd, args[0], args[1])
		},
	}

	opts.Predicate.register(cmd)
	cmd.Flags().StringVar(&opts.Params, "params", "", "aggregate params as inline JSON or YAML")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 0, "maximum number of groups (0 = all)")
	cmd.Flags().StringVar(&opts.Order, "order", "", "group order (count, recent, name)")

	return cmd
}

func (o *AggregateOptions) params() (queryir.AggregateParams, error) {
	var params queryir.AggregateParams
	if err := decodeStrict([]byte(o.Params), &params); err != nil {
		return params, WrapExitError(ExitCommandError, "failed to parse params", err)
	}
	if o.Limit != 0 {
		params.Limit = o.Limit
	}
	if o.Order != "" {
		params.Order = queryir.AggregateOrder(o.Order)
	}
	return params, nil
}

func runAggregate(ctx context.Context, opts *AggregateOptions, cmd *cobra.Command, entity, kindName string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kind, err := ir.ParseEntityKind(entity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid entity", err)
	}
	f := opts.formatter(cmd)
	agg, err := queryir.ParseAggregateKind(kindName)
	if err != nil {
		return opts.engineError(f, err)
	}
	pred, err := opts.Predicate.read(cmd.InOrStdin())
	if err != nil {
		return err
	}
	params, err := opts.params()
	if err != nil {
		return err
	}

	return opts.withEngine(func(eng *engine.Engine) error {
		res, err := eng.Aggregate(ctx, kind, agg, pred, params)
		if err != nil {
			return opts.engineError(f, err)
		}
		return f.Success(res, func(w io.Writer) error {
			for _, g := range harness.GroupLabels(res) {
				if _, err := fmt.Fprintln(w, g); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
