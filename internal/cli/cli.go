package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/trajgroups/pkg/buildinfo"
	"github.com/matzehuels/trajgroups/pkg/config"
	"github.com/matzehuels/trajgroups/pkg/dataset"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "trajgroups"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Trajgroups finds and orders groups of moving entities",
		Long: `Trajgroups computes the trajectory grouping structure of a set of moving
entities: it builds the critical graph of an epsilon-proximity relation,
extracts the maximal groups and orders them into crossing-minimized layers.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+config.DefaultPath()+")")

	// Register all subcommands
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.groupsCommand())
	root.AddCommand(c.orderCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	c.Logger.Debug("loaded config", "path", c.configPath, "backends", cfg.String())
	return nil
}

// config returns the loaded configuration, or the defaults when no command
// has loaded one yet.
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner on the configured backends.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg := c.config()
	cc := cfg.Cache
	if noCache {
		cc.Backend = config.BackendNone
	}
	ch, err := cc.OpenCache(ctx)
	if err != nil {
		return nil, err
	}
	st, err := cfg.Store.OpenStore(ctx, ch, cfg.Cache.TTL)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, st, c.Logger), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// pipelineFlags are the flags shared by every command that runs the
// pipeline. Flags the user set override the configuration.
type pipelineFlags struct {
	epsilon     float64
	raw         bool
	policy      string
	minSize     int
	minDuration int
	nested      float64
	transition  float64
	crossing    float64
	nodeLimit   int
	candidates  int
	refresh     bool
	noCache     bool
}

func (f *pipelineFlags) register(cmd *cobra.Command, ordering bool) {
	def := config.Default()
	fl := cmd.Flags()
	fl.Float64VarP(&f.epsilon, "epsilon", "e", def.Grouping.Epsilon, "proximity threshold")
	fl.BoolVar(&f.raw, "raw", false, "keep zero-duration edges in the critical graph")
	fl.BoolVar(&f.noCache, "no-cache", false, "disable caching")
	fl.BoolVar(&f.refresh, "refresh", false, "recompute cached artifacts")
	fl.StringVarP(&f.policy, "policy", "p", def.Grouping.Policy, "group selection policy: "+strings.Join(groups.PolicyNames, ", "))
	fl.IntVar(&f.minSize, "min-size", 0, "drop groups with fewer entities")
	fl.IntVar(&f.minDuration, "min-duration", 0, "drop groups lasting fewer frames")
	if !ordering {
		return
	}
	fl.Float64Var(&f.nested, "nested-weight", def.Ordering.Weights.Nested, "weight of nested-group flips")
	fl.Float64Var(&f.transition, "transition-weight", def.Ordering.Weights.Transition, "weight of flips across transitions")
	fl.Float64Var(&f.crossing, "crossing-weight", def.Ordering.Weights.Crossing, "weight of crossings")
	fl.IntVar(&f.nodeLimit, "node-limit", def.Ordering.NodeLimit, "solver node limit")
	fl.IntVar(&f.candidates, "candidates", def.Ordering.Candidates, "warm-start candidates per layer")
}

// options returns the configured pipeline options with the changed flags
// applied on top.
func (f *pipelineFlags) options(cmd *cobra.Command, cfg *config.Config) pipeline.Options {
	opts := cfg.PipelineOptions()
	fl := cmd.Flags()
	changed := func(name string) bool {
		return fl.Lookup(name) != nil && fl.Changed(name)
	}
	if changed("epsilon") {
		opts.Epsilon = f.epsilon
	}
	if changed("policy") {
		opts.Policy = f.policy
	}
	if changed("min-size") {
		opts.MinSize = f.minSize
	}
	if changed("min-duration") {
		opts.MinDuration = f.minDuration
	}
	if changed("nested-weight") {
		opts.Weights.Nested = f.nested
	}
	if changed("transition-weight") {
		opts.Weights.Transition = f.transition
	}
	if changed("crossing-weight") {
		opts.Weights.Crossing = f.crossing
	}
	if changed("node-limit") {
		opts.NodeLimit = f.nodeLimit
	}
	if changed("candidates") {
		opts.Candidates = f.candidates
	}
	opts.Raw = f.raw
	opts.Refresh = f.refresh
	return opts
}

// loadDataset reads a CSV dataset and logs its shape.
func loadDataset(ctx context.Context, path string) (*dataset.Dataset, error) {
	ds, err := dataset.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	loggerFromContext(ctx).Debug("loaded dataset", "name", ds.Name, "entities", ds.Entities(), "frames", ds.Frames())
	return ds, nil
}

// =============================================================================
// Paths
// =============================================================================

// basePath strips the extension from input.
func basePath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input))
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
