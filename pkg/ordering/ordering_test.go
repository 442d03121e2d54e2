package ordering

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/matzehuels/trajgroups/pkg/dataset"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/events"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/perm"
	"github.com/matzehuels/trajgroups/pkg/reeb"
	"github.com/matzehuels/trajgroups/pkg/solver"
)

func prepare(t *testing.T, s *events.Stream, p groups.Policy) (*reeb.Graph, []groups.Group) {
	t.Helper()
	g, _, err := reeb.Build(s, reeb.Options{Compact: true})
	if err != nil {
		t.Fatal(err)
	}
	st, err := groups.Extract(g)
	if err != nil {
		t.Fatal(err)
	}
	return g, p.Select(g, st)
}

func mergeStream() *events.Stream {
	return &events.Stream{Entities: 2, FirstFrame: 0, LastFrame: 10,
		Events: []events.Event{{Time: 4.5, A: 0, B: 1, Kind: events.Connect}}}
}

func TestOptimize_SinglePersistentGroupIsTrivial(t *testing.T) {
	g, selected := prepare(t, &events.Stream{Entities: 2, FirstFrame: 0, LastFrame: 10,
		Initial: []events.Pair{{A: 0, B: 1}}}, groups.GloballyPersistent{})
	if len(selected) != 1 {
		t.Fatalf("selected = %v, want one group", selected)
	}

	called := false
	res, err := Optimize(context.Background(), g, selected, Options{
		Solver: solver.SolverFunc(func(context.Context, *solver.Model) (*solver.Solution, error) {
			called = true
			return nil, errors.New("unexpected solve")
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if called || !res.Trivial {
		t.Errorf("trivial instance was solved (called=%v, Trivial=%v)", called, res.Trivial)
	}
	if !slices.Equal(res.Layers, []int{0, 9}) {
		t.Errorf("Layers = %v, want [0 9]", res.Layers)
	}
	for _, layer := range res.Layers {
		if !slices.Equal(res.Orders[layer], []int{0}) {
			t.Errorf("Orders[%d] = %v, want [0]", layer, res.Orders[layer])
		}
	}
}

func TestOptimize_Merge(t *testing.T) {
	g, selected := prepare(t, mergeStream(), groups.Maximal{})
	res, err := Optimize(context.Background(), g, selected, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Trivial {
		t.Fatal("three groups on one layer must be solved")
	}
	if !slices.Equal(res.Layers, []int{0, 4, 5, 9}) {
		t.Errorf("Layers = %v, want [0 4 5 9]", res.Layers)
	}
	if res.Objective != 0 || res.Crossings != 0 || res.Status != solver.Optimal {
		t.Errorf("objective %v crossings %d status %v, want 0 0 optimal", res.Objective, res.Crossings, res.Status)
	}
	checkOrders(t, NewInstance(g, selected), res)
	if len(res.Orders[5]) != 3 {
		t.Errorf("Orders[5] = %v, want all three groups", res.Orders[5])
	}
}

func TestOptimize_Infeasible(t *testing.T) {
	g, selected := prepare(t, mergeStream(), groups.Maximal{})
	_, err := Optimize(context.Background(), g, selected, Options{
		Solver: solver.SolverFunc(func(context.Context, *solver.Model) (*solver.Solution, error) {
			return nil, solver.ErrInfeasible
		}),
	})
	if !trajerr.Is(err, trajerr.ErrCodeSolverInfeasible) {
		t.Fatalf("err = %v, want SOLVER_INFEASIBLE", err)
	}
	if !errors.Is(err, solver.ErrInfeasible) {
		t.Error("cause not preserved")
	}
}

func TestOptions_RejectNegativeWeights(t *testing.T) {
	opts := Options{Weights: Weights{Nested: 1, Transition: -1, Crossing: 1}}
	if err := opts.ValidateAndSetDefaults(); !trajerr.Is(err, trajerr.ErrCodeInvalidOption) {
		t.Errorf("err = %v, want INVALID_OPTION", err)
	}
	opts = Options{}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Weights != DefaultWeights() || opts.Solver == nil {
		t.Errorf("defaults not applied: %+v", opts)
	}
}

func TestNewInstance_SplitTrees(t *testing.T) {
	g, selected := prepare(t, &events.Stream{Entities: 3, FirstFrame: 0, LastFrame: 20,
		Initial: []events.Pair{{A: 0, B: 1}, {A: 1, B: 2}},
		Events:  []events.Event{{Time: 9.5, A: 1, B: 2, Kind: events.Disconnect}}}, groups.Maximal{})
	inst := NewInstance(g, selected)

	if !slices.Equal(inst.Layers, []int{0, 9, 10, 19}) {
		t.Fatalf("Layers = %v, want [0 9 10 19]", inst.Layers)
	}

	before := inst.Trees[0]
	if before.Synthetic || len(before.Loose) != 0 {
		t.Errorf("layer 0 tree = %+v, want one node and no loose vertices", before)
	}
	members := 0
	for _, n := range before.Nodes {
		members += len(n.Members)
	}
	if members != 3 {
		t.Errorf("layer 0 holds %d vertices in nodes, want 3", members)
	}

	after := inst.Trees[10]
	if !after.Synthetic || len(after.Loose) != 1 {
		t.Fatalf("layer 10 tree = %+v, want synthetic root with one loose vertex", after)
	}
	loose := inst.Groups[inst.Vertices[after.Loose[0]].Group]
	if !slices.Equal(loose.Entities, []int{0, 1, 2}) {
		t.Errorf("loose group = %v, want the closing [0 1 2]", loose)
	}
}

func TestBuildModel_Counts(t *testing.T) {
	g, selected := prepare(t, &events.Stream{Entities: 3, FirstFrame: 0, LastFrame: 5}, groups.Maximal{})
	inst := NewInstance(g, selected)
	m := BuildModel(inst, DefaultWeights())

	// Two layers with three groups: three pairs each, one triple each.
	if m.QP.NumVars != 6 || len(m.QP.Constraints) != 2 || len(m.QP.Quad) != 3 {
		t.Errorf("vars %d constraints %d quads %d, want 6 2 3", m.QP.NumVars, len(m.QP.Constraints), len(m.QP.Quad))
	}
	for k, c := range m.QP.Linear {
		if c != DefaultWeights().Crossing {
			t.Errorf("Linear[%d] = %v, want crossing weight", k, c)
		}
	}
}

func TestExtractOrders(t *testing.T) {
	g, selected := prepare(t, &events.Stream{Entities: 3, FirstFrame: 0, LastFrame: 5}, groups.Maximal{})
	m := BuildModel(NewInstance(g, selected), DefaultWeights())

	orders, err := ExtractOrders(m, []int{1, 1, 1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(orders[0], []int{0, 1, 2}) || !slices.Equal(orders[4], []int{2, 1, 0}) {
		t.Errorf("orders = %v", orders)
	}

	// 0 above 1, 1 above 2, 2 above 0.
	_, err = ExtractOrders(m, []int{1, 0, 1, 1, 1, 1})
	if !errors.Is(err, ErrCyclicRelation) {
		t.Errorf("err = %v, want ErrCyclicRelation", err)
	}
	if m.QP.Feasible([]int{1, 0, 1, 1, 1, 1}) {
		t.Error("cyclic assignment passed the transitivity constraints")
	}
}

func TestOptimize_ValidOrdersOnGeneratedData(t *testing.T) {
	for seed := range uint64(4) {
		g, selected := prepare(t, randomStream(t, seed), groups.Maximal{})
		inst := NewInstance(g, selected)

		m := BuildModel(inst, DefaultWeights())
		start := m.Assignment(WarmStart(inst, DefaultWeights(), 0))
		if !m.QP.Feasible(start) {
			t.Errorf("seed %d: warm start infeasible", seed)
		}

		res, err := Optimize(context.Background(), g, selected, Options{NodeLimit: 5000})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		checkOrders(t, inst, res)
		if !res.Trivial && res.Objective > m.QP.Objective(start)+1e-9 {
			t.Errorf("seed %d: objective %v worse than warm start %v", seed, res.Objective, m.QP.Objective(start))
		}
	}
}

// checkOrders asserts every layer order is a permutation of the groups
// present, with tree siblings contiguous.
func checkOrders(t *testing.T, inst *Instance, res *Result) {
	t.Helper()
	for _, layer := range inst.Layers {
		var want []int
		for _, gi := range inst.At(layer) {
			want = append(want, inst.Groups[gi].ID)
		}
		got := slices.Sorted(slices.Values(res.Orders[layer]))
		if !slices.Equal(got, want) {
			t.Errorf("layer %d: order %v is not a permutation of %v", layer, res.Orders[layer], want)
			continue
		}
		pos := perm.Positions(res.Orders[layer])
		for _, n := range inst.Trees[layer].Nodes {
			if len(n.Members) < 2 {
				continue
			}
			var ps []int
			for _, vi := range n.Members {
				ps = append(ps, pos[inst.Groups[inst.Vertices[vi].Group].ID])
			}
			lo, hi := slices.Min(ps), slices.Max(ps)
			if hi-lo+1 != len(ps) {
				t.Errorf("layer %d: siblings at positions %v are not contiguous", layer, ps)
			}
		}
	}
}

func TestModel_AboveIsComplete(t *testing.T) {
	g, selected := prepare(t, mergeStream(), groups.Maximal{})
	inst := NewInstance(g, selected)
	m := BuildModel(inst, DefaultWeights())
	x := m.Assignment(WarmStart(inst, DefaultWeights(), 0))
	for _, layer := range inst.Layers {
		present := inst.At(layer)
		for _, a := range present {
			for _, b := range present {
				if a != b && m.Above(x, layer, a, b) == m.Above(x, layer, b, a) {
					t.Errorf("layer %d: above(%d,%d) and above(%d,%d) agree", layer, a, b, b, a)
				}
			}
		}
	}
}

func ExampleCountCrossings() {
	orders := map[int][]int{
		0: {0, 1, 2},
		1: {1, 0, 2},
		2: {1, 0, 2},
	}
	fmt.Println(CountCrossings([]int{0, 1, 2}, orders))
	// Output: 1
}

func randomStream(t *testing.T, seed uint64) *events.Stream {
	t.Helper()
	r := rand.New(rand.NewPCG(seed, 5))
	const n, frames = 5, 20
	pos := make([][]dataset.Point, frames)
	cur := make([]dataset.Point, n)
	for i := range cur {
		cur[i] = dataset.Point{X: float64(r.IntN(6)), Y: float64(r.IntN(6))}
	}
	for f := range pos {
		pos[f] = slices.Clone(cur)
		for i := range cur {
			cur[i].X += float64(r.IntN(3) - 1)
			cur[i].Y += float64(r.IntN(3) - 1)
		}
	}
	ds, err := dataset.FromPositions("random", 0, pos)
	if err != nil {
		t.Fatal(err)
	}
	s, err := events.Generate(context.Background(), ds, 2.1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEvaluate(t *testing.T) {
	g, selected := prepare(t, mergeStream(), groups.Maximal{})
	res, err := Optimize(context.Background(), g, selected, Options{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := Evaluate(g, selected, res.Orders, DefaultWeights())
	if err != nil {
		t.Fatal(err)
	}
	if got.Objective != res.Objective || got.Crossings != res.Crossings || got.Status != solver.Feasible {
		t.Errorf("Evaluate = objective %v crossings %d status %v, want %v %d feasible",
			got.Objective, got.Crossings, got.Status, res.Objective, res.Crossings)
	}

	broken := make(map[int][]int, len(res.Orders))
	for layer, order := range res.Orders {
		broken[layer] = order
	}
	broken[5] = broken[5][:1]
	if _, err := Evaluate(g, selected, broken, DefaultWeights()); !errors.Is(err, ErrOrderMismatch) {
		t.Errorf("err = %v, want ErrOrderMismatch", err)
	}
}
