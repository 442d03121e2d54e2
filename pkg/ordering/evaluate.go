package ordering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/reeb"
	"github.com/matzehuels/trajgroups/pkg/solver"
)

// ErrOrderMismatch is returned by Evaluate when the orders do not fit the
// instance.
var ErrOrderMismatch = errors.New("orders do not match the instance")

// Evaluate scores previously computed orders (group ids, top to bottom)
// against the instance of g and selected. It checks that every layer holds
// exactly the groups present there and that the orders respect the
// containment trees. The result has Status Feasible: a stored ordering is
// not re-proven optimal.
func Evaluate(g *reeb.Graph, selected []groups.Group, orders map[int][]int, w Weights) (*Result, error) {
	inst := NewInstance(g, selected)
	index := make(map[int]int, len(selected))
	for i, gr := range selected {
		index[gr.ID] = i
	}

	if len(orders) != len(inst.Layers) {
		return nil, fmt.Errorf("%w: %d layers, want %d", ErrOrderMismatch, len(orders), len(inst.Layers))
	}
	byIndex := make(map[int][]int, len(orders))
	for _, layer := range inst.Layers {
		ids, ok := orders[layer]
		if !ok {
			return nil, fmt.Errorf("%w: layer %d missing", ErrOrderMismatch, layer)
		}
		order := make([]int, len(ids))
		for i, id := range ids {
			gi, ok := index[id]
			if !ok {
				return nil, fmt.Errorf("%w: layer %d: unknown group %d", ErrOrderMismatch, layer, id)
			}
			order[i] = gi
		}
		if !slices.Equal(slices.Sorted(slices.Values(order)), inst.At(layer)) {
			return nil, fmt.Errorf("%w: layer %d: %v is not a permutation of the groups present", ErrOrderMismatch, layer, ids)
		}
		byIndex[layer] = order
	}

	res := &Result{
		Layers:    inst.Layers,
		Orders:    orders,
		Groups:    selected,
		Status:    solver.Feasible,
		Crossings: CountCrossings(inst.Layers, orders),
	}
	if len(selected) <= 1 || inst.Trivial() {
		res.Trivial = true
		return res, nil
	}

	m := BuildModel(inst, w)
	x := m.Assignment(byIndex)
	if !m.QP.Feasible(x) {
		return nil, fmt.Errorf("%w: containment trees violated", ErrOrderMismatch)
	}
	res.Objective = m.QP.Objective(x)
	return res, nil
}
