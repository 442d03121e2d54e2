package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	trajio "github.com/matzehuels/trajgroups/pkg/io"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
	"github.com/matzehuels/trajgroups/pkg/store"
)

// orderCommand creates the order command for computing group orderings.
func (c *CLI) orderCommand() *cobra.Command {
	var (
		flags  pipelineFlags
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "order [dataset.csv]",
		Short: "Compute crossing-minimized group orderings",
		Long: `Compute crossing-minimized group orderings.

Runs the full pipeline: critical graph, group selection and the layered
ordering. Three files are written to the output directory:

  orderings.txt   one line per layer: "Layer <frame>: <group ids>"
  groups.txt      one line per group: "ID: <id> Group: [<entities>]"
  layers.txt      the layer frames, one per line

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, c.config())
			return c.runOrder(cmd.Context(), args[0], opts, flags.noCache, output, quiet)
		},
	}

	flags.register(cmd, true)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: <input>-eps<epsilon>)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the order table")

	return cmd
}

// runOrder runs the pipeline and writes the three result files.
func (c *CLI) runOrder(ctx context.Context, input string, opts pipeline.Options, noCache bool, output string, quiet bool) error {
	ds, err := loadDataset(ctx, input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Ordering groups of %s...", ds.Name))
	spinner.Start()

	res, err := runner.Run(ctx, ds, opts)
	if err != nil {
		spinner.StopWithError("Ordering failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	dir := output
	if dir == "" {
		dir = outputDir(input, opts.Epsilon)
	}
	if err := writeResult(dir, res); err != nil {
		return err
	}

	ord := res.Ordering
	printSuccess("Ordered %d groups in %d layers", len(ord.Groups), len(ord.Layers))
	printFile(dir)
	printKeyValue("Crossings", StyleNumber.Render(fmt.Sprint(ord.Crossings)))
	printKeyValue("Objective", StyleNumber.Render(fmt.Sprintf("%g", ord.Objective)))
	printKeyValue("Status", ord.Status.String())
	if !ord.Trivial && ord.Nodes > 0 {
		printDetail("%d solver nodes", ord.Nodes)
	}
	printStats(res.Stats.Vertices, res.Stats.Edges, res.CacheInfo.GraphHit && res.CacheInfo.ResultHit)

	if !quiet && len(ord.Layers) > 0 {
		printNewline()
		fmt.Println(orderTable(ord))
	}
	return nil
}

// outputDir derives the default result directory from the input path.
func outputDir(input string, eps float64) string {
	return fmt.Sprintf("%s-eps%g", basePath(input), eps)
}

// writeResult writes the orderings, groups and layers files into dir.
func writeResult(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	ord := res.Ordering
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{store.OrderingsName, func(w io.Writer) error { return trajio.WriteOrders(w, ord.Layers, ord.Orders) }},
		{store.GroupsName, func(w io.Writer) error { return trajio.WriteGroups(w, ord.Groups) }},
		{store.LayersName, func(w io.Writer) error { return trajio.WriteLayers(w, ord.Layers) }},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

// writeFile creates path and fills it with write.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
