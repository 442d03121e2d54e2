package pipeline

import (
	"context"
	"io"
	"math"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trajgroups/pkg/cache"
	"github.com/matzehuels/trajgroups/pkg/dataset"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/observability"
	"github.com/matzehuels/trajgroups/pkg/ordering"
)

// approach returns three entities over ten frames: 0 and 1 stay side by
// side while 2 walks towards them from x=10.
func approach(t *testing.T) *dataset.Dataset {
	t.Helper()
	pos := make([][]dataset.Point, 10)
	for f := range pos {
		pos[f] = []dataset.Point{{X: 0}, {X: 1}, {X: float64(10 - f)}}
	}
	ds, err := dataset.FromPositions("approach", 0, pos)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil, quietLogger())
	t.Cleanup(func() { r.Close() })
	return r
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"dot", false},
		{"svg", false},
		{"png", false},
		{"pdf", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}

	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Epsilon: 1.5}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("Valid options should pass: %v", err)
	}
	if opts.Policy != groups.PolicyPersistent {
		t.Errorf("Policy should be %q, got %q", groups.PolicyPersistent, opts.Policy)
	}
	if opts.Weights != ordering.DefaultWeights() {
		t.Errorf("Weights should default, got %+v", opts.Weights)
	}
	if opts.NodeLimit == 0 || opts.Candidates == 0 || opts.Logger == nil {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"zero epsilon", Options{}},
		{"negative epsilon", Options{Epsilon: -1}},
		{"NaN epsilon", Options{Epsilon: math.NaN()}},
		{"unknown policy", Options{Epsilon: 1, Policy: "largest"}},
		{"negative min size", Options{Epsilon: 1, MinSize: -1}},
		{"negative weight", Options{Epsilon: 1, Weights: ordering.Weights{Crossing: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !trajerr.Is(err, trajerr.ErrCodeInvalidOption) {
				t.Errorf("err = %v, want INVALID_OPTION", err)
			}
		})
	}
}

func TestResultKeyOpts_DependOnOrderingOptions(t *testing.T) {
	a := Options{Epsilon: 1}
	b := Options{Epsilon: 1, NodeLimit: 10}
	for _, o := range []*Options{&a, &b} {
		if err := o.ValidateAndSetDefaults(); err != nil {
			t.Fatal(err)
		}
	}
	k := cache.NewDefaultKeyer()
	if k.ResultKey("g", a.ResultKeyOpts()) == k.ResultKey("g", b.ResultKeyOpts()) {
		t.Error("node limit should change the result key")
	}
	if k.GraphKey("d", a.GraphKeyOpts()) != k.GraphKey("d", b.GraphKeyOpts()) {
		t.Error("ordering options should not change the graph key")
	}
}

func TestRunner_RunUsesCache(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	ds := approach(t)
	opts := Options{Epsilon: 1.5, Policy: groups.PolicyMaximal}

	first, err := r.Run(ctx, ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.GraphHit || first.CacheInfo.ResultHit {
		t.Errorf("first run hit the cache: %+v", first.CacheInfo)
	}
	if first.Ordering == nil || len(first.Selected) == 0 {
		t.Fatalf("first run produced no ordering: %+v", first)
	}

	second, err := r.Run(ctx, ds, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.GraphHit || !second.CacheInfo.ResultHit {
		t.Errorf("second run missed the cache: %+v", second.CacheInfo)
	}
	if second.GraphKey != first.GraphKey || second.ResultKey != first.ResultKey {
		t.Error("keys changed between identical runs")
	}
	if !slices.Equal(second.Ordering.Layers, first.Ordering.Layers) {
		t.Fatalf("layers = %v, want %v", second.Ordering.Layers, first.Ordering.Layers)
	}
	for _, layer := range first.Ordering.Layers {
		if !slices.Equal(second.Ordering.Orders[layer], first.Ordering.Orders[layer]) {
			t.Errorf("layer %d: cached order %v, want %v", layer, second.Ordering.Orders[layer], first.Ordering.Orders[layer])
		}
	}
	if second.Ordering.Crossings != first.Ordering.Crossings {
		t.Errorf("crossings = %d, want %d", second.Ordering.Crossings, first.Ordering.Crossings)
	}

	third, err := r.Run(ctx, ds, Options{Epsilon: 1.5, Policy: groups.PolicyMaximal, Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.GraphHit || third.CacheInfo.ResultHit {
		t.Errorf("refresh run hit the cache: %+v", third.CacheInfo)
	}
}

func TestRunner_CorruptGraphIsRecomputed(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	ds := approach(t)

	key := r.Keyer.GraphKey(ds.Hash(), cache.GraphKeyOpts{Epsilon: 1.5, Compact: true})
	if err := r.Cache.Set(ctx, key, []byte("v 0 0 nonsense\n"), time.Hour); err != nil {
		t.Fatal(err)
	}

	res, err := r.Run(ctx, ds, Options{Epsilon: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheInfo.GraphHit {
		t.Error("corrupt graph was used")
	}
	if res.GraphKey != key {
		t.Errorf("GraphKey = %s, want %s", res.GraphKey, key)
	}
}

func TestRunner_SkipOrdering(t *testing.T) {
	r := NewRunner(nil, nil, nil, quietLogger())
	res, err := r.Run(context.Background(), approach(t), Options{Epsilon: 1.5, SkipOrdering: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Ordering != nil || res.ResultKey != "" {
		t.Errorf("ordering ran: %+v", res.Ordering)
	}
	if res.Stats.Groups == 0 || res.Structure == nil {
		t.Error("groups not extracted")
	}
}

func TestRunner_Batch(t *testing.T) {
	r := newRunner(t)
	epsilons := []float64{0.5, 1.5, 5}
	results, err := r.Batch(context.Background(), approach(t), epsilons, Options{Policy: groups.PolicyMaximal}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(epsilons) {
		t.Fatalf("got %d results, want %d", len(results), len(epsilons))
	}
	for i, res := range results {
		if res.Epsilon != epsilons[i] {
			t.Errorf("results[%d].Epsilon = %v, want %v", i, res.Epsilon, epsilons[i])
		}
	}
	if results[0].GraphKey == results[1].GraphKey {
		t.Error("different epsilons share a graph key")
	}

	if _, err := r.Batch(context.Background(), approach(t), []float64{1, 0}, Options{}, 0); !trajerr.Is(err, trajerr.ErrCodeInvalidOption) {
		t.Errorf("err = %v, want INVALID_OPTION", err)
	}
	if _, err := r.Batch(context.Background(), approach(t), nil, Options{}, 0); err == nil {
		t.Error("empty batch should fail")
	}
}

func TestRunner_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(nil, nil, nil, quietLogger())
	if _, err := r.Run(ctx, approach(t), Options{Epsilon: 1.5}); err == nil {
		t.Error("canceled run should fail")
	}
}

func TestRenderGraph_DOT(t *testing.T) {
	r := NewRunner(nil, nil, nil, quietLogger())
	g, err := r.Build(context.Background(), approach(t), Options{Epsilon: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	out, err := RenderGraph(context.Background(), g, []string{FormatDOT}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(out[FormatDOT]), "digraph G {") {
		t.Errorf("unexpected DOT output:\n%s", out[FormatDOT])
	}
	if _, err := RenderGraph(context.Background(), g, []string{"gif"}, false); err == nil {
		t.Error("unknown format should fail")
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu     sync.Mutex
	stages []string
}

func (h *recordingHooks) record(stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stages = append(h.stages, stage)
}

func (h *recordingHooks) OnBuildComplete(context.Context, string, int, int, time.Duration, error) {
	h.record("build")
}

func (h *recordingHooks) OnExtractComplete(context.Context, int, time.Duration, error) {
	h.record("extract")
}

func (h *recordingHooks) OnOrderComplete(context.Context, string, int, time.Duration, error) {
	h.record("order")
}

func TestRunner_EmitsPipelineHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	r := NewRunner(nil, nil, nil, quietLogger())
	if _, err := r.Run(context.Background(), approach(t), Options{Epsilon: 1.5}); err != nil {
		t.Fatal(err)
	}
	if want := []string{"build", "extract", "order"}; !slices.Equal(hooks.stages, want) {
		t.Errorf("stages = %v, want %v", hooks.stages, want)
	}
}
