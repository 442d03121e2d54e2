package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trajgroups/pkg/groups"
	trajio "github.com/matzehuels/trajgroups/pkg/io"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
)

// groupsCommand creates the groups command for listing the selected groups.
func (c *CLI) groupsCommand() *cobra.Command {
	var (
		flags  pipelineFlags
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "groups [dataset.csv]",
		Short: "List the groups of a dataset",
		Long: `List the groups of a dataset.

Builds the critical graph, extracts the maximal groups and applies the
selection policy and size/duration filters. The selected groups are printed
as a table and, with -o, written in the groups text format.

Use --all to list every maximal group regardless of the policy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, c.config())
			opts.SkipOrdering = true
			return c.runGroups(cmd.Context(), args[0], opts, flags.noCache, output, all)
		},
	}

	flags.register(cmd, false)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write groups to file")
	cmd.Flags().BoolVar(&all, "all", false, "list every maximal group")

	return cmd
}

func (c *CLI) runGroups(ctx context.Context, input string, opts pipeline.Options, noCache bool, output string, all bool) error {
	ds, err := loadDataset(ctx, input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, err := runner.Run(ctx, ds, opts)
	if err != nil {
		return err
	}

	gs := res.Selected
	policy := opts.Policy
	if policy == "" {
		policy = pipeline.DefaultPolicy
	}
	title := fmt.Sprintf("%d groups selected by %s", len(gs), policy)
	if all {
		gs = res.Structure.Groups
		title = fmt.Sprintf("%d maximal groups", len(gs))
	}

	if len(gs) == 0 {
		printWarning("No groups at eps=%g", opts.Epsilon)
	} else {
		fmt.Println(StyleTitle.Render(title))
		fmt.Println(groupTable(gs))
	}
	printStats(res.Stats.Vertices, res.Stats.Edges, res.CacheInfo.GraphHit)

	if output != "" {
		if err := writeGroupsFile(output, gs); err != nil {
			return err
		}
		printFile(output)
	}
	return nil
}

func writeGroupsFile(path string, gs []groups.Group) error {
	return writeFile(path, func(w io.Writer) error { return trajio.WriteGroups(w, gs) })
}
