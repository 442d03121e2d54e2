package ordering

import (
	"fmt"

	"github.com/matzehuels/trajgroups/pkg/perm"
	"github.com/matzehuels/trajgroups/pkg/solver"
)

// Weights scale the flip penalty of a pair between consecutive layers.
type Weights struct {
	// Nested applies when both groups share a tree parent on both layers.
	Nested float64 `json:"nested" toml:"nested"`
	// Transition applies when either group changes its containing edge.
	Transition float64 `json:"transition" toml:"transition"`
	// Crossing applies to every other flip: an avoidable crossing.
	Crossing float64 `json:"crossing" toml:"crossing"`
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{Nested: 1, Transition: 1, Crossing: 10}
}

// weight returns the flip penalty of groups a and b between layers r and s.
func (inst *Instance) weight(w Weights, a, b, r, s int) float64 {
	ea, okA := inst.container(a, r)
	eb, okB := inst.container(b, r)
	fa, okFA := inst.container(a, s)
	fb, okFB := inst.container(b, s)
	if okA && okB && okFA && okFB && ea == eb && fa == fb {
		return w.Nested
	}
	if !okA || !okFA || ea != fa || !okB || !okFB || eb != fb {
		return w.Transition
	}
	return w.Crossing
}

type pairKey struct{ layer, a, b int }

// Model is the binary quadratic program of an instance together with the
// map from group pairs to variables.
type Model struct {
	QP   *solver.Model
	Inst *Instance
	vars map[pairKey]int
}

// Var returns the variable encoding above(a, b) at layer. flip is true when
// the variable stores above(b, a), so above(a, b) = 1 - x.
func (m *Model) Var(layer, a, b int) (v int, flip bool, ok bool) {
	if a > b {
		v, ok = m.vars[pairKey{layer, b, a}]
		return v, true, ok
	}
	v, ok = m.vars[pairKey{layer, a, b}]
	return v, false, ok
}

// Above reports whether group a is above group b at layer under the
// assignment x.
func (m *Model) Above(x []int, layer, a, b int) bool {
	v, flip, ok := m.Var(layer, a, b)
	if !ok {
		return false
	}
	if flip {
		return x[v] == 0
	}
	return x[v] == 1
}

// expr accumulates a linear expression over above() literals.
type expr struct {
	terms    []solver.Term
	constant float64
}

func (m *Model) lit(e *expr, coef float64, layer, a, b int) {
	v, flip, _ := m.Var(layer, a, b)
	if flip {
		e.constant += coef
		e.terms = append(e.terms, solver.Term{Var: v, Coef: -coef})
		return
	}
	e.terms = append(e.terms, solver.Term{Var: v, Coef: coef})
}

func (m *Model) constrain(name string, e expr, lo, hi float64) {
	m.QP.AddConstraint(solver.Constraint{
		Name:  name,
		Terms: e.terms,
		Lo:    lo - e.constant,
		Hi:    hi - e.constant,
	})
}

// BuildModel translates the instance into a binary quadratic program.
//
// For every layer and every triple of coexisting groups a < b < c it adds
// 0 ≤ above(a,b) + above(b,c) − above(a,c) ≤ 1, which is equivalent to
// transitivity over all six orderings of the triple. For every tree node
// with members h < i (consecutive) and every group j outside the node it
// adds above(h,j) = above(i,j).
func BuildModel(inst *Instance, w Weights) *Model {
	m := &Model{QP: &solver.Model{}, Inst: inst, vars: make(map[pairKey]int)}

	for _, layer := range inst.Layers {
		present := inst.At(layer)
		for i, a := range present {
			for _, b := range present[i+1:] {
				m.vars[pairKey{layer, a, b}] = m.QP.AddVar(fmt.Sprintf("above[%d,%d,%d]", a, b, layer))
			}
		}
	}

	for _, layer := range inst.Layers {
		present := inst.At(layer)
		for i, a := range present {
			for j := i + 1; j < len(present); j++ {
				b := present[j]
				for _, c := range present[j+1:] {
					var e expr
					m.lit(&e, 1, layer, a, b)
					m.lit(&e, 1, layer, b, c)
					m.lit(&e, -1, layer, a, c)
					m.constrain(fmt.Sprintf("trans[%d,%d,%d,%d]", a, b, c, layer), e, 0, 1)
				}
			}
		}

		inNode := make(map[int]int)
		for ni, n := range inst.Trees[layer].Nodes {
			for _, vi := range n.Members {
				inNode[inst.Vertices[vi].Group] = ni
			}
		}
		for ni, block := range inst.blocks(layer) {
			if len(block) < 2 {
				continue
			}
			for k := 0; k+1 < len(block); k++ {
				h, i := block[k], block[k+1]
				for _, j := range present {
					if nj, ok := inNode[j]; ok && nj == inNode[h] {
						continue
					}
					var e expr
					m.lit(&e, 1, layer, h, j)
					m.lit(&e, -1, layer, i, j)
					m.constrain(fmt.Sprintf("tree[%d,%d,%d,%d,%d]", h, i, j, layer, ni), e, 0, 0)
				}
			}
		}
	}

	for li := 0; li+1 < len(inst.Layers); li++ {
		r, s := inst.Layers[li], inst.Layers[li+1]
		present := inst.At(r)
		next := make(map[int]bool)
		for _, g := range inst.At(s) {
			next[g] = true
		}
		for i, a := range present {
			if !next[a] {
				continue
			}
			for _, b := range present[i+1:] {
				if !next[b] {
					continue
				}
				wt := inst.weight(w, a, b, r, s)
				x := m.vars[pairKey{r, a, b}]
				y := m.vars[pairKey{s, a, b}]
				m.QP.Linear[x] += wt
				m.QP.Linear[y] += wt
				m.QP.Quad = append(m.QP.Quad, solver.Quad{I: x, J: y, Coef: -2 * wt})
			}
		}
	}
	return m
}

// Assignment converts per-layer orders of group indices into variable
// values.
func (m *Model) Assignment(orders map[int][]int) []int {
	x := make([]int, m.QP.NumVars)
	pos := make(map[int]map[int]int, len(orders))
	for layer, order := range orders {
		pos[layer] = perm.Positions(order)
	}
	for k, v := range m.vars {
		if p := pos[k.layer]; p[k.a] < p[k.b] {
			x[v] = 1
		}
	}
	return x
}
