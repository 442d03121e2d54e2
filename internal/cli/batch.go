package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trajgroups/pkg/pipeline"
)

// batchCommand creates the batch command for sweeping epsilon values.
func (c *CLI) batchCommand() *cobra.Command {
	var (
		flags    pipelineFlags
		epsilons []float64
		workers  int
		output   string
	)

	cmd := &cobra.Command{
		Use:   "batch [dataset.csv]",
		Short: "Order groups for several epsilon values concurrently",
		Long: `Order groups for several epsilon values concurrently.

Runs the pipeline once per value of --epsilons and writes each result to
<output>/eps<epsilon>/ in the same layout as 'order'. The first failing run
cancels the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, c.config())
			return c.runBatch(cmd.Context(), args[0], opts, flags.noCache, epsilons, workers, output)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().Float64SliceVar(&epsilons, "epsilons", nil, "epsilon values (comma-separated)")
	cmd.Flags().IntVarP(&workers, "workers", "w", pipeline.DefaultBatchWorkers, "concurrent runs")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: <input>-batch)")
	_ = cmd.MarkFlagRequired("epsilons")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, input string, opts pipeline.Options, noCache bool, epsilons []float64, workers int, output string) error {
	ds, err := loadDataset(ctx, input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	p := newProgress(c.Logger)
	results, err := runner.Batch(ctx, ds, epsilons, opts, workers)
	if err != nil {
		return err
	}
	p.done(fmt.Sprintf("Ordered %s at %d epsilon values", ds.Name, len(results)))

	if output == "" {
		output = basePath(input) + "-batch"
	}

	t := newTable("Epsilon", "Vertices", "Groups", "Layers", "Crossings", "Status", "Cached")
	for _, res := range results {
		dir := filepath.Join(output, fmt.Sprintf("eps%g", res.Epsilon))
		if err := writeResult(dir, res); err != nil {
			return err
		}
		ord := res.Ordering
		t.Row(
			strconv.FormatFloat(res.Epsilon, 'g', -1, 64),
			strconv.Itoa(res.Stats.Vertices),
			strconv.Itoa(len(ord.Groups)),
			strconv.Itoa(len(ord.Layers)),
			strconv.Itoa(ord.Crossings),
			ord.Status.String(),
			strconv.FormatBool(res.CacheInfo.ResultHit),
		)
	}

	printSuccess("Batch complete")
	printFile(output)
	fmt.Println(t.String())
	return nil
}
