package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	trajio "github.com/matzehuels/trajgroups/pkg/io"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
)

// graphCommand creates the graph command for building critical graphs.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		flags      pipelineFlags
		output     string
		formatsStr string
		detailed   bool
	)

	cmd := &cobra.Command{
		Use:   "graph [dataset.csv]",
		Short: "Build the critical graph of a dataset",
		Long: `Build the critical graph of a dataset.

The dataset is a CSV file with one row per entity and frame:
frame,id,x,y. The critical graph is written in the text format read back
by the other commands (default: <input>.graph.txt). With -f the graph is
also rendered through Graphviz as dot, svg or png for inspection.

Graphs are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(formats); err != nil {
				return err
			}
			opts := flags.options(cmd, c.config())
			opts.SkipOrdering = true
			return c.runGraph(cmd.Context(), args[0], opts, flags.noCache, output, formats, detailed)
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.graph.txt)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "also render: dot, svg, png (comma-separated)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label rendered vertices with kind and frame")

	return cmd
}

// runGraph builds the graph and writes it with any requested renderings.
func (c *CLI) runGraph(ctx context.Context, input string, opts pipeline.Options, noCache bool, output string, formats []string, detailed bool) error {
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
	res, err := runner.Run(ctx, ds, opts)
	if err != nil {
		return err
	}

	base := basePath(input)
	if output == "" {
		output = base + ".graph.txt"
	}
	if err := trajio.ExportGraph(res.Graph, output); err != nil {
		return fmt.Errorf("write graph %s: %w", output, err)
	}
	p.done(fmt.Sprintf("Built critical graph of %s", ds.Name))

	printSuccess("Critical graph at eps=%g", opts.Epsilon)
	printFile(output)

	if len(formats) > 0 {
		artifacts, err := pipeline.RenderGraph(ctx, res.Graph, formats, detailed)
		if err != nil {
			return err
		}
		for _, f := range formats {
			path := base + ".graph." + f
			if err := os.WriteFile(path, artifacts[f], 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			printFile(path)
		}
	}

	printStats(res.Stats.Vertices, res.Stats.Edges, res.CacheInfo.GraphHit)
	printNewline()
	printNextStep("Order groups", appName+" order "+input)
	return nil
}
