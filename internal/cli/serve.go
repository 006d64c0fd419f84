package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/ffquery/internal/httpapi"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API over HTTP",
		Long: `Serve search, count, aggregate and explain as a JSON API, with
Prometheus metrics on /metrics and a health check on /healthz.

Stops gracefully on SIGINT or SIGTERM.

Examples:
  ffquery serve --db trials.db
  ffquery serve --config ffquery.cue --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, addr string) error {
	cfg := opts.Config
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	eng, err := opts.newEngine(st)
	if err != nil {
		return err
	}

	api := httpapi.New(eng, st,
		httpapi.WithDefaultLimit(cfg.Query.DefaultLimit),
		httpapi.WithLogger(opts.Logger),
	)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout(),
		WriteTimeout: cfg.HTTP.WriteTimeout(),
	}

	opts.Logger.Info("serving", "addr", addr, "db", cfg.Database.Path)
	if err := httpapi.ListenAndServe(ctx, srv); err != nil {
		return WrapExitError(ExitCommandError, "server failed", err)
	}
	opts.Logger.Info("server stopped")
	return nil
}
