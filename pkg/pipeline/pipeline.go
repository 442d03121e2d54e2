// Package pipeline runs the grouping pipeline for the CLI and the API.
//
// This package chains the stages that turn trajectories into ordered
// groups, so every entry point behaves the same and shares one caching
// strategy.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Build: generate the proximity events of a dataset and build the
//     compacted critical graph
//  2. Select: extract the maximal groups and apply the selection policy and
//     size/duration filter
//  3. Order: compute crossing-minimized per-layer orders of the selected
//     groups
//
// The critical graph is cached (package cache) under a key derived from the
// dataset hash and epsilon. Ordering results are persisted in a
// [store.ResultStore] under a key derived from the graph key and the
// selection and ordering options. A corrupt artifact is logged and
// recomputed.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, store, logger)
//	result, err := runner.Run(ctx, ds, pipeline.Options{Epsilon: 1.5})
//	if err != nil {
//	    return err
//	}
//	for _, layer := range result.Ordering.Layers {
//	    fmt.Println(layer, result.Ordering.Orders[layer])
//	}
//
// Several epsilons can be run concurrently with [Runner.Batch].
package pipeline

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trajgroups/pkg/cache"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/ordering"
	"github.com/matzehuels/trajgroups/pkg/reeb"
	"github.com/matzehuels/trajgroups/pkg/solver"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultPolicy is the group-selection policy used when none is given.
	DefaultPolicy = groups.PolicyPersistent

	// DefaultBatchWorkers bounds the runs Batch executes concurrently.
	DefaultBatchWorkers = 4

	// TTLGraph is how long a cached critical graph is kept.
	TTLGraph = 7 * 24 * time.Hour

	// TTLResult is how long a cached ordering result is kept.
	TTLResult = 7 * 24 * time.Hour
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Build options
	Epsilon float64 `json:"epsilon"`
	Raw     bool    `json:"raw,omitempty"` // keep zero-duration edges

	// Selection options
	Policy      string `json:"policy,omitempty"`
	MinSize     int    `json:"min_size,omitempty"`
	MinDuration int    `json:"min_duration,omitempty"`

	// Ordering options
	Weights      ordering.Weights `json:"weights"`
	NodeLimit    int              `json:"node_limit,omitempty"`
	Candidates   int              `json:"candidates,omitempty"`
	SkipOrdering bool             `json:"skip_ordering,omitempty"`

	// Refresh bypasses cached graphs and stored results.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger   `json:"-"`
	Solver solver.Solver `json:"-"`

	policy    groups.Policy
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Dataset is the name of the input dataset.
	Dataset string `json:"dataset"`

	// DatasetHash is the content hash of the trajectories.
	DatasetHash string `json:"dataset_hash"`

	// Epsilon is the proximity threshold of the run.
	Epsilon float64 `json:"epsilon"`

	// Graph is the critical graph.
	Graph *reeb.Graph `json:"-"`

	// GraphKey and ResultKey identify the cached artifacts.
	GraphKey  string `json:"graph_key"`
	ResultKey string `json:"result_key,omitempty"`

	// Structure holds every maximal group of the graph.
	Structure *groups.Structure `json:"-"`

	// Selected are the groups chosen by the policy and filter.
	Selected []groups.Group `json:"groups"`

	// Ordering is nil when Options.SkipOrdering is set.
	Ordering *ordering.Result `json:"ordering,omitempty"`

	// Stats contains timing and size information.
	Stats Stats `json:"stats"`

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo `json:"cache"`
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Events      int           `json:"events"`
	Vertices    int           `json:"vertices"`
	Edges       int           `json:"edges"`
	Groups      int           `json:"maximal_groups"`
	Selected    int           `json:"selected_groups"`
	Build       reeb.Stats    `json:"-"`
	BuildTime   time.Duration `json:"build_ns"`
	ExtractTime time.Duration `json:"extract_ns"`
	OrderTime   time.Duration `json:"order_ns"`
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	GraphHit  bool `json:"graph_hit"`  // critical graph came from the cache
	ResultHit bool `json:"result_hit"` // ordering came from the result store
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := ValidateEpsilon(o.Epsilon); err != nil {
		return err
	}
	if o.Policy == "" {
		o.Policy = DefaultPolicy
	}
	p, err := groups.PolicyByName(o.Policy)
	if err != nil {
		return trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "policy")
	}
	o.policy = p
	o.Policy = p.Name()
	if o.MinSize < 0 || o.MinDuration < 0 {
		return trajerr.New(trajerr.ErrCodeInvalidOption, "min_size and min_duration must be non-negative")
	}

	oo := o.OrderingOptions()
	if err := oo.ValidateAndSetDefaults(); err != nil {
		return err
	}
	o.Weights, o.NodeLimit, o.Candidates = oo.Weights, oo.NodeLimit, oo.Candidates

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ValidateEpsilon checks that eps is a usable proximity threshold.
func ValidateEpsilon(eps float64) error {
	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return trajerr.New(trajerr.ErrCodeInvalidOption, "epsilon must be a positive number, got %v", eps)
	}
	return nil
}

// OrderingOptions returns the options passed to ordering.Optimize.
func (o *Options) OrderingOptions() ordering.Options {
	return ordering.Options{
		Weights:    o.Weights,
		Solver:     o.Solver,
		NodeLimit:  o.NodeLimit,
		Candidates: o.Candidates,
	}
}

// Filter returns the size/duration filter applied after the policy.
func (o *Options) Filter() groups.Filter {
	return groups.Filter{MinSize: o.MinSize, MinDuration: o.MinDuration}
}

// GraphKeyOpts returns cache key options for the critical graph.
func (o *Options) GraphKeyOpts() cache.GraphKeyOpts {
	return cache.GraphKeyOpts{Epsilon: o.Epsilon, Compact: !o.Raw}
}

// ResultKeyOpts returns cache key options for the ordering result.
func (o *Options) ResultKeyOpts() cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		Policy:      o.Policy,
		MinSize:     o.MinSize,
		MinDuration: o.MinDuration,
		Weights:     [3]float64{o.Weights.Nested, o.Weights.Transition, o.Weights.Crossing},
		NodeLimit:   o.NodeLimit,
		Candidates:  o.Candidates,
	}
}

// String summarizes the options for log lines.
func (o *Options) String() string {
	return fmt.Sprintf("eps=%g policy=%s min_size=%d min_duration=%d", o.Epsilon, o.Policy, o.MinSize, o.MinDuration)
}
