package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/trajgroups/pkg/cache"
	"github.com/matzehuels/trajgroups/pkg/dataset"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/events"
	"github.com/matzehuels/trajgroups/pkg/groups"
	trajio "github.com/matzehuels/trajgroups/pkg/io"
	"github.com/matzehuels/trajgroups/pkg/observability"
	"github.com/matzehuels/trajgroups/pkg/ordering"
	"github.com/matzehuels/trajgroups/pkg/reeb"
	"github.com/matzehuels/trajgroups/pkg/store"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner holds no per-run state: every run owns its tracker, graph and
// ordering instance. Multiple goroutines can safely use the same Runner
// with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.ResultStore
	Logger *log.Logger
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (graph caching disabled).
// If st is nil, results are kept in c.
func NewRunner(c cache.Cache, keyer cache.Keyer, st store.ResultStore, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if st == nil {
		st = store.NewCacheStore(c, TTLResult)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  st,
		Logger: logger,
	}
}

// Run executes the complete build → select → order pipeline with caching.
func (r *Runner) Run(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger.With("dataset", ds.Name, "eps", opts.Epsilon)

	result := &Result{
		Dataset:     ds.Name,
		DatasetHash: ds.Hash(),
		Epsilon:     opts.Epsilon,
	}

	// Stage 1: Build
	buildStart := time.Now()
	observability.Pipeline().OnBuildStart(ctx, ds.Name, opts.Epsilon)
	g, key, hit, err := r.buildWithCacheInfo(ctx, ds, result.DatasetHash, &opts, &result.Stats)
	result.Stats.BuildTime = time.Since(buildStart)
	if err != nil {
		observability.Pipeline().OnBuildComplete(ctx, ds.Name, 0, 0, result.Stats.BuildTime, err)
		return nil, fmt.Errorf("build: %w", err)
	}
	result.Graph, result.GraphKey = g, key
	result.CacheInfo.GraphHit = hit
	result.Stats.Vertices = g.VertexCount()
	result.Stats.Edges = g.EdgeCount()
	observability.Pipeline().OnBuildComplete(ctx, ds.Name, result.Stats.Vertices, result.Stats.Edges, result.Stats.BuildTime, nil)

	logger.Info("built critical graph",
		"vertices", result.Stats.Vertices,
		"edges", result.Stats.Edges,
		"cached", hit,
		"duration", result.Stats.BuildTime)

	// Stage 2: Select
	extractStart := time.Now()
	st, selected, err := r.Select(g, opts)
	result.Stats.ExtractTime = time.Since(extractStart)
	observability.Pipeline().OnExtractComplete(ctx, len(selected), result.Stats.ExtractTime, err)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	result.Structure, result.Selected = st, selected
	result.Stats.Groups = len(st.Groups)
	result.Stats.Selected = len(selected)

	logger.Info("extracted groups",
		"maximal", result.Stats.Groups,
		"selected", result.Stats.Selected,
		"policy", opts.Policy,
		"duration", result.Stats.ExtractTime)

	if opts.SkipOrdering {
		return result, nil
	}

	// Stage 3: Order
	orderStart := time.Now()
	observability.Pipeline().OnOrderStart(ctx, len(selected))
	result.ResultKey = r.Keyer.ResultKey(key, opts.ResultKeyOpts())
	ord, hit, err := r.orderWithCacheInfo(ctx, g, selected, result.ResultKey, opts)
	result.Stats.OrderTime = time.Since(orderStart)
	if err != nil {
		observability.Pipeline().OnOrderComplete(ctx, "", 0, result.Stats.OrderTime, err)
		return nil, fmt.Errorf("order: %w", err)
	}
	result.Ordering = ord
	result.CacheInfo.ResultHit = hit
	observability.Pipeline().OnOrderComplete(ctx, ord.Status.String(), ord.Crossings, result.Stats.OrderTime, nil)

	logger.Info("ordered groups",
		"layers", len(ord.Layers),
		"crossings", ord.Crossings,
		"objective", ord.Objective,
		"status", ord.Status,
		"cached", hit,
		"duration", result.Stats.OrderTime)

	return result, nil
}

// Build returns the critical graph of ds, from the cache when possible.
func (r *Runner) Build(ctx context.Context, ds *dataset.Dataset, opts Options) (*reeb.Graph, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	var stats Stats
	g, _, _, err := r.buildWithCacheInfo(ctx, ds, ds.Hash(), &opts, &stats)
	return g, err
}

func (r *Runner) buildWithCacheInfo(ctx context.Context, ds *dataset.Dataset, hash string, opts *Options, stats *Stats) (*reeb.Graph, string, bool, error) {
	key := r.Keyer.GraphKey(hash, opts.GraphKeyOpts())

	if !opts.Refresh {
		if g, ok := r.cachedGraph(ctx, key, opts.Logger); ok {
			observability.Cache().OnCacheHit(ctx, "graph")
			return g, key, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "graph")
	}

	s, err := events.Generate(ctx, ds, opts.Epsilon)
	if err != nil {
		return nil, key, false, err
	}
	stats.Events = len(s.Events)
	g, bs, err := reeb.Build(s, reeb.Options{Compact: !opts.Raw})
	if err != nil {
		return nil, key, false, err
	}
	stats.Build = bs
	opts.Logger.Debug("replayed events",
		"events", bs.Events,
		"merges", bs.Merges,
		"splits", bs.Splits,
		"redundant", bs.Redundant,
		"ignored", bs.Ignored,
		"collapsed", bs.Collapsed)

	var buf bytes.Buffer
	if err := trajio.WriteGraph(g, &buf); err != nil {
		return nil, key, false, err
	}
	if err := r.Cache.Set(ctx, key, buf.Bytes(), TTLGraph); err != nil {
		opts.Logger.Warn("cache graph failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "graph", buf.Len())
	}
	return g, key, false, nil
}

func (r *Runner) cachedGraph(ctx context.Context, key string, logger *log.Logger) (*reeb.Graph, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache lookup failed", "error", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	g, err := trajio.ReadGraph(bytes.NewReader(data))
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		logger.Warn("discarding corrupt cached graph", "key", key, "error",
			trajerr.Wrap(trajerr.ErrCodeCacheCorrupt, err, "graph %s", key))
		return nil, false
	}
	return g, true
}

// Select extracts the maximal groups of g and applies the policy and filter.
func (r *Runner) Select(g *reeb.Graph, opts Options) (*groups.Structure, []groups.Group, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	st, err := groups.Extract(g)
	if err != nil {
		return nil, nil, err
	}
	selected := opts.Filter().Apply(opts.policy.Select(g, st))
	return st, selected, nil
}

// Order returns the ordering of selected, from the result store when
// possible.
func (r *Runner) Order(ctx context.Context, g *reeb.Graph, selected []groups.Group, key string, opts Options) (*ordering.Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	res, _, err := r.orderWithCacheInfo(ctx, g, selected, key, opts)
	return res, err
}

func (r *Runner) orderWithCacheInfo(ctx context.Context, g *reeb.Graph, selected []groups.Group, key string, opts Options) (*ordering.Result, bool, error) {
	if !opts.Refresh {
		if res, ok := r.storedResult(ctx, g, selected, key, opts); ok {
			observability.Cache().OnCacheHit(ctx, "result")
			return res, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "result")
	}

	res, err := ordering.Optimize(ctx, g, selected, opts.OrderingOptions())
	if err != nil {
		return nil, false, err
	}

	a := &store.Artifacts{Layers: res.Layers, Orders: res.Orders, Groups: res.Groups}
	if err := r.Store.Save(ctx, key, a); err != nil {
		opts.Logger.Warn("store result failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "result", len(res.Layers))
	}
	return res, false, nil
}

// storedResult loads a stored result and checks it against the freshly
// selected groups. Anything that does not fit is treated as a miss.
func (r *Runner) storedResult(ctx context.Context, g *reeb.Graph, selected []groups.Group, key string, opts Options) (*ordering.Result, bool) {
	a, ok, err := r.Store.Load(ctx, key)
	if err != nil {
		if trajerr.Is(err, trajerr.ErrCodeCacheCorrupt) {
			opts.Logger.Warn("discarding corrupt stored result", "key", key, "error", err)
		} else {
			opts.Logger.Warn("result lookup failed", "error", err)
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if !sameGroups(a.Groups, selected) {
		opts.Logger.Warn("discarding stored result for different groups", "key", key)
		return nil, false
	}
	res, err := ordering.Evaluate(g, selected, a.Orders, opts.Weights)
	if err != nil {
		opts.Logger.Warn("discarding stored result", "key", key, "error",
			trajerr.Wrap(trajerr.ErrCodeCacheCorrupt, err, "result %s", key))
		return nil, false
	}
	return res, true
}

func sameGroups(a, b []groups.Group) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Start != b[i].Start || a[i].End != b[i].End || !slices.Equal(a[i].Entities, b[i].Entities) {
			return false
		}
	}
	return true
}

// Batch runs the pipeline once per epsilon, concurrently. Results are
// returned in the order of epsilons. The first failure cancels the
// remaining runs.
func (r *Runner) Batch(ctx context.Context, ds *dataset.Dataset, epsilons []float64, opts Options, workers int) ([]*Result, error) {
	if len(epsilons) == 0 {
		return nil, trajerr.New(trajerr.ErrCodeInvalidOption, "no epsilon values given")
	}
	for _, eps := range epsilons {
		if err := ValidateEpsilon(eps); err != nil {
			return nil, err
		}
	}
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	results := make([]*Result, len(epsilons))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, eps := range epsilons {
		runOpts := opts
		runOpts.Epsilon = eps
		runOpts.validated = false
		eg.Go(func() error {
			res, err := r.Run(ctx, ds, runOpts)
			if err != nil {
				return fmt.Errorf("eps %g: %w", eps, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	return errors.Join(errs...)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
