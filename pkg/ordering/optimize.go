package ordering

import (
	"context"
	"errors"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/reeb"
	"github.com/matzehuels/trajgroups/pkg/solver"
)

// Options configures Optimize.
type Options struct {
	// Weights of the flip penalty. Zero value means DefaultWeights.
	Weights Weights

	// Solver solves the model. Nil means BranchAndBound with NodeLimit.
	Solver solver.Solver

	// NodeLimit bounds the default solver's search tree.
	NodeLimit int

	// Candidates bounds the block permutations tried by WarmStart.
	Candidates int
}

// ValidateAndSetDefaults fills unset fields and rejects negative weights.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights()
	}
	if o.Weights.Nested < 0 || o.Weights.Transition < 0 || o.Weights.Crossing < 0 {
		return trajerr.New(trajerr.ErrCodeInvalidOption, "ordering weights must be non-negative: %+v", o.Weights)
	}
	if o.NodeLimit <= 0 {
		o.NodeLimit = solver.DefaultNodeLimit
	}
	if o.Candidates <= 0 {
		o.Candidates = DefaultCandidates
	}
	if o.Solver == nil {
		o.Solver = solver.BranchAndBound{NodeLimit: o.NodeLimit}
	}
	return nil
}

// Result is the outcome of an ordering run.
type Result struct {
	// Layers are the ordered frames.
	Layers []int `json:"layers"`
	// Orders maps each layer to group ids, top to bottom.
	Orders map[int][]int `json:"orders"`
	// Groups are the ordered groups; ids index Orders.
	Groups []groups.Group `json:"groups"`

	Objective float64       `json:"objective"`
	Crossings int           `json:"crossings"`
	Status    solver.Status `json:"status"`
	Nodes     int           `json:"nodes"`
	// Trivial is set when no model was solved.
	Trivial bool `json:"trivial"`
}

// Optimize computes crossing-minimized orders of the selected groups.
//
// With at most one group, or at most one group per layer, the trivial
// orders are returned without building a model. Otherwise the instance is
// translated with BuildModel, seeded with WarmStart and handed to the
// solver. An infeasible model is reported as SOLVER_INFEASIBLE, any other
// solver failure as SOLVER_ERROR.
func Optimize(ctx context.Context, g *reeb.Graph, selected []groups.Group, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	inst := NewInstance(g, selected)
	res := &Result{Layers: inst.Layers, Groups: selected, Status: solver.Optimal}

	if len(selected) <= 1 || inst.Trivial() {
		res.Trivial = true
		res.Orders = inst.groupIDs(inst.trivialOrders())
		return res, nil
	}

	m := BuildModel(inst, opts.Weights)
	m.QP.Start = m.Assignment(WarmStart(inst, opts.Weights, opts.Candidates))

	sol, err := opts.Solver.Solve(ctx, m.QP)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, solver.ErrInfeasible) {
			return nil, trajerr.Wrap(trajerr.ErrCodeSolverInfeasible, err,
				"ordering model with %d variables and %d constraints", m.QP.NumVars, len(m.QP.Constraints))
		}
		return nil, trajerr.Wrap(trajerr.ErrCodeSolverError, err, "solve ordering model")
	}

	orders, err := ExtractOrders(m, sol.Values)
	if err != nil {
		return nil, trajerr.Wrap(trajerr.ErrCodeSolverError, err, "extract orders")
	}

	res.Orders = inst.groupIDs(orders)
	res.Objective = sol.Objective
	res.Status = sol.Status
	res.Nodes = sol.Nodes
	res.Crossings = CountCrossings(res.Layers, res.Orders)
	return res, nil
}

func (inst *Instance) trivialOrders() map[int][]int {
	out := make(map[int][]int, len(inst.Layers))
	for _, layer := range inst.Layers {
		out[layer] = inst.At(layer)
	}
	return out
}

// groupIDs maps orders of group indices to orders of group ids.
func (inst *Instance) groupIDs(orders map[int][]int) map[int][]int {
	out := make(map[int][]int, len(orders))
	for layer, order := range orders {
		ids := make([]int, len(order))
		for i, gi := range order {
			ids[i] = inst.Groups[gi].ID
		}
		out[layer] = ids
	}
	return out
}
