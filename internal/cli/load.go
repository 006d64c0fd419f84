package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffquery/internal/ir"
	"github.com/roach88/ffquery/internal/store"
)

// LoadResult reports what a load wrote and the resulting table sizes.
type LoadResult struct {
	Path    string            `json:"path"`
	Written store.LoadStats   `json:"written"`
	Tables  store.TableCounts `json:"tables"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <dataset.yaml>...",
		Short: "Load datasets into the database",
		Long: `Load one or more YAML datasets into the database.

Records are upserted by ID, so loading a dataset twice leaves the
database unchanged. Each dataset is written in one transaction.

Examples:
  ffquery load --db trials.db studies.yaml citations.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), rootOpts, cmd, args)
		},
	}
}

func runLoad(ctx context.Context, opts *RootOptions, cmd *cobra.Command, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var total store.LoadStats
	for _, path := range paths {
		ds, err := ir.LoadDataset(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read dataset %s", path), err)
		}
		stats, err := st.LoadDataset(ctx, ds)
		if err != nil {
			return WrapExitError(ExitStoreError, fmt.Sprintf("failed to load dataset %s", path), err)
		}
		opts.Logger.Debug("dataset loaded", "path", path, "studies", stats.Studies, "citations", stats.Citations)
		total.Descriptors += stats.Descriptors
		total.Qualifiers += stats.Qualifiers
		total.Facilities += stats.Facilities
		total.Studies += stats.Studies
		total.Citations += stats.Citations
	}

	tables, err := st.Counts(ctx)
	if err != nil {
		return WrapExitError(ExitStoreError, "failed to count tables", err)
	}

	result := LoadResult{Path: st.Path(), Written: total, Tables: tables}
	return opts.formatter(cmd).Success(result, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Loaded %d studies, %d citations, %d descriptors, %d qualifiers, %d facilities into %s\n",
			total.Studies, total.Citations, total.Descriptors, total.Qualifiers, total.Facilities, result.Path)
		return err
	})
}
