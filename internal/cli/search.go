package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/ffquery/internal/engine"
	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/queryir"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Predicate PredicateFlags
	Limit     int // -1 uses query.default_limit
	Offset    int
	Order     string
	Fields    []string
}

// SearchOutput is the JSON payload of a search.
type SearchOutput struct {
	Entity   ir.EntityKind `json:"entity"`
	Count    int           `json:"count"`
	Strategy string        `json:"strategy,omitempty"`
	Results  []ir.Entity   `json:"results"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <study|citation>",
		Short: "List entities matching a predicate",
		Long: `List the studies or citations matching a predicate.

Examples:
  ffquery search study -p '{descriptor_ids: [1, 2], countries: [France]}'
  ffquery search citation --order date:desc --limit 20 --fields descriptors
  ffquery search study --predicate-file filter.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), opts, cmd, args[0])
		},
	}

	opts.Predicate.register(cmd)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", -1, "page size (0 = unlimited, default query.default_limit)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.Flags().StringVar(&opts.Order, "order", "", "order terms, e.g. date:desc,title")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "relations to load (descriptors, facilities)")

	return cmd
}

func runSearch(ctx context.Context, opts *SearchOptions, cmd *cobra.Command, entity string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kind, err := ir.ParseEntityKind(entity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid entity", err)
	}
	pred, err := opts.Predicate.read(cmd.InOrStdin())
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)

	searchOpts, err := opts.searchOptions()
	if err != nil {
		return opts.engineError(f, err)
	}

	return opts.withEngine(func(eng *engine.Engine) error {
		res, err := eng.Search(ctx, kind, pred, searchOpts)
		if err != nil {
			return opts.engineError(f, err)
		}
		out := SearchOutput{
			Entity:   kind,
			Count:    len(res.Entities),
			Strategy: string(res.Strategy),
			Results:  res.Entities,
		}
		return f.Success(out, func(w io.Writer) error {
			return writeEntities(w, res.Entities, searchOpts.Fields)
		})
	})
}

func (o *SearchOptions) searchOptions() (engine.SearchOptions, error) {
	var out engine.SearchOptions
	order, err := queryir.ParseOrder(o.Order)
	if err != nil {
		return out, err
	}
	for _, name := range o.Fields {
		rel, err := ir.ParseRelation(strings.TrimSpace(name))
		if err != nil {
			return out, &queryir.PredicateError{Clause: "fields", Value: name, Message: "unknown relation"}
		}
		out.Fields = append(out.Fields, rel)
	}
	limit := o.Limit
	if limit < 0 {
		limit = o.Config.Query.DefaultLimit
	}
	out.Page = queryir.Page{Limit: limit, Offset: o.Offset}
	out.Order = order
	return out, nil
}

func writeEntities(w io.Writer, entities []ir.Entity, fields []ir.Relation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tACCESSION\tDATE\tTITLE")
	for _, e := range entities {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Accession, e.Date, e.Title)
		for _, rel := range fields {
			switch rel {
			case ir.RelationDescriptors:
				names := make([]string, 0, len(e.Descriptors))
				for _, d := range e.Descriptors {
					names = append(names, d.Name)
				}
				fmt.Fprintf(tw, "\t\t\tdescriptors: %s\n", strings.Join(names, "; "))
			case ir.RelationFacilities:
				names := make([]string, 0, len(e.Facilities))
				for _, fc := range e.Facilities {
					names = append(names, fc.Name)
				}
				fmt.Fprintf(tw, "\t\t\tfacilities: %s\n", strings.Join(names, "; "))
			}
		}
	}
	fmt.Fprintf(tw, "(%d rows)\n", len(entities))
	return tw.Flush()
}
