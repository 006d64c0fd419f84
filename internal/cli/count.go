package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
)

// CountOutput is the JSON payload of a count.
type CountOutput struct {
	Entity ir.EntityKind `json:"entity"`
	Count  int64         `json:"count"`
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	var pred PredicateFlags

	cmd := &cobra.Command{
		Use:   "count <study|citation>",
		Short: "Count entities matching a predicate",
		Long: `Count the distinct studies or citations matching a predicate.

The count always equals the length of the unpaginated search with the
same predicate.

Examples:
  ffquery count study -p '{countries: [Canada], gender: female}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd.Context(), rootOpts, &pred, cmd, args[0])
		},
	}
	pred.register(cmd)
	return cmd
}

func runCount(ctx context.Context, opts *RootOptions, predFlags *PredicateFlags, cmd *cobra.Command, entity string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kind, err := ir.ParseEntityKind(entity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid entity", err)
	}
	pred, err := predFlags.read(cmd.InOrStdin())
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)

	return opts.withEngine(func(eng *engine.Engine) error {
		n, err := eng.Count(ctx, kind, pred)
		if err != nil {
			return opts.engineError(f, err)
		}
		return f.Success(CountOutput{Entity: kind, Count: n}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, n)
			return err
		})
	})
}
