package ordering

import (
	"math"
	"slices"

	"github.com/matzehuels/trajgroups/pkg/perm"
)

// DefaultCandidates bounds the block permutations WarmStart tries per layer.
const DefaultCandidates = 120

// WarmStart orders every layer greedily, sweeping layers left to right.
//
// Each layer's candidates keep tree siblings contiguous: the order
// inherited from the previous layer (blocks by their topmost inherited
// member, members by inherited position) and up to limit permutations of
// the blocks. The candidate with the smallest weighted flip cost against
// the previous layer wins; ties keep the inherited order. The result maps
// layers to group indices, top to bottom.
func WarmStart(inst *Instance, w Weights, limit int) map[int][]int {
	if limit <= 0 {
		limit = DefaultCandidates
	}
	orders := make(map[int][]int, len(inst.Layers))
	var prev []int
	prevLayer := 0
	for li, layer := range inst.Layers {
		blocks := inst.blocks(layer)
		inherited := inherit(blocks, perm.Positions(prev))
		best := flatten(inherited)
		if li > 0 {
			bestCost := inst.flipCost(w, prev, best, prevLayer, layer)
			for _, p := range perm.Generate(len(inherited), limit) {
				cand := flatten(perm.Apply(p, inherited))
				if c := inst.flipCost(w, prev, cand, prevLayer, layer); c < bestCost {
					best, bestCost = cand, c
				}
			}
		}
		orders[layer] = best
		prev, prevLayer = best, layer
	}
	return orders
}

// inherit sorts members within blocks and blocks among themselves by their
// position in the previous order. Unknown groups sort last by index.
func inherit(blocks [][]int, pos map[int]int) [][]int {
	rank := func(g int) int {
		if p, ok := pos[g]; ok {
			return p
		}
		return math.MaxInt
	}
	cmp := func(a, b int) int {
		if ra, rb := rank(a), rank(b); ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		return a - b
	}
	out := make([][]int, len(blocks))
	for i, b := range blocks {
		out[i] = slices.Clone(b)
		slices.SortFunc(out[i], cmp)
	}
	slices.SortStableFunc(out, func(a, b []int) int { return cmp(a[0], b[0]) })
	return out
}

func flatten(blocks [][]int) []int {
	var out []int
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// flipCost sums the weights of the shared pairs whose relative order
// differs between prev (at layer r) and next (at layer s).
func (inst *Instance) flipCost(w Weights, prev, next []int, r, s int) float64 {
	pos := perm.Positions(next)
	cost := 0.0
	for i, a := range prev {
		pa, ok := pos[a]
		if !ok {
			continue
		}
		for _, b := range prev[i+1:] {
			if pb, ok := pos[b]; ok && pb < pa {
				lo, hi := min(a, b), max(a, b)
				cost += inst.weight(w, lo, hi, r, s)
			}
		}
	}
	return cost
}
