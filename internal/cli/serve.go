package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/trajgroups/pkg/api"
	"github.com/matzehuels/trajgroups/pkg/observability"
	"github.com/matzehuels/trajgroups/pkg/session"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		runsDir  string
		datasets []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the grouping pipeline over HTTP",
		Long: `Serve the grouping pipeline over HTTP.

Datasets are uploaded as CSV to POST /v1/datasets/{name} and ordered with
POST /v1/datasets/{name}/orderings; runs are polled at GET /v1/runs/{id}.
Prometheus metrics are exposed at /metrics.

The cache and result store backends come from the configuration, so
several servers can share a Redis cache and a MongoDB store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("runs-dir") {
				runsDir = cfg.Server.RunsDir
			}
			return c.runServe(cmd.Context(), addr, runsDir, datasets)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&runsDir, "runs-dir", "", "persist run records in this directory (default: in memory)")
	cmd.Flags().StringSliceVar(&datasets, "dataset", nil, "preload CSV datasets (repeatable)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, runsDir string, datasets []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks := observability.NewPrometheusHooks(reg)
	observability.SetPipelineHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}

	var runs session.Store
	if runsDir != "" {
		fs, err := session.NewFileStore(runsDir)
		if err != nil {
			runner.Close()
			return fmt.Errorf("open run store: %w", err)
		}
		runs = fs
	}
	sess := session.New(runner, runs)
	defer func() {
		if err := sess.Close(context.WithoutCancel(ctx)); err != nil {
			c.Logger.Warn("close session", "error", err)
		}
	}()

	for _, path := range datasets {
		ds, err := loadDataset(ctx, path)
		if err != nil {
			return err
		}
		sess.PutDataset(ds)
		c.Logger.Info("preloaded dataset", "name", ds.Name, "entities", ds.Entities(), "frames", ds.Frames())
	}

	c.Logger.Info("starting server", "backends", c.config().String())
	err = api.New(sess, api.Options{Gatherer: reg}).ListenAndServe(ctx, addr)
	if errors.Is(err, context.Canceled) {
		c.Logger.Info("server stopped")
		return nil
	}
	return err
}
