package solver

import (
	"context"
	"math"
)

// DefaultNodeLimit bounds the search tree of BranchAndBound.
const DefaultNodeLimit = 200_000

// BranchAndBound is a depth-first branch-and-bound solver over binary
// variables.
//
// Variables are fixed in index order. After each assignment every
// constraint touching the variable is checked against the range its
// unassigned terms can still reach, and the branch is cut as soon as a
// constraint can no longer be met. The objective bound adds the negative
// parts of all undetermined terms to the value already fixed, so a branch
// is also cut when it cannot beat the incumbent.
//
// A feasible warm start in Model.Start becomes the first incumbent and its
// values are tried first at every branch. If NodeLimit nodes are explored
// before the search finishes, the incumbent is returned with status
// Feasible.
type BranchAndBound struct {
	NodeLimit int
}

// Solve implements Solver.
func (b BranchAndBound) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	limit := b.NodeLimit
	if limit <= 0 {
		limit = DefaultNodeLimit
	}
	for _, c := range m.Constraints {
		if len(c.Terms) == 0 && (c.Lo > tolerance || c.Hi < -tolerance) {
			return nil, ErrInfeasible
		}
	}
	s := newSearch(ctx, m, limit)

	if m.Start != nil && m.Feasible(m.Start) {
		s.best = append([]int(nil), m.Start...)
		s.bestObj = m.Objective(m.Start)
	}

	if err := s.branch(0); err != nil {
		return nil, err
	}

	if s.best == nil {
		if s.stopped {
			return nil, ErrNodeLimit
		}
		return nil, ErrInfeasible
	}
	status := Optimal
	if s.stopped {
		status = Feasible
	}
	return &Solution{
		Values:    s.best,
		Objective: m.Objective(s.best),
		Status:    status,
		Nodes:     s.nodes,
	}, nil
}

type search struct {
	ctx   context.Context
	m     *Model
	limit int

	x      []int // -1 = unassigned
	linear []float64
	quads  []Quad

	varCons  [][]int     // constraints per variable
	varCoef  [][]float64 // matching coefficients
	varQuads [][]int     // quadratic terms per variable

	assigned []float64 // per-constraint sum of assigned terms
	posLeft  []float64 // per-constraint sum of positive unassigned coefs
	negLeft  []float64 // per-constraint sum of negative unassigned coefs

	fixed      float64 // objective value of determined terms
	optimistic float64 // sum of negative parts of undetermined terms

	best    []int
	bestObj float64
	nodes   int
	stopped bool
}

func newSearch(ctx context.Context, m *Model, limit int) *search {
	n := m.NumVars
	s := &search{
		ctx:      ctx,
		m:        m,
		limit:    limit,
		x:        make([]int, n),
		linear:   make([]float64, n),
		varCons:  make([][]int, n),
		varCoef:  make([][]float64, n),
		varQuads: make([][]int, n),
		assigned: make([]float64, len(m.Constraints)),
		posLeft:  make([]float64, len(m.Constraints)),
		negLeft:  make([]float64, len(m.Constraints)),
		fixed:    m.Constant,
		bestObj:  math.Inf(1),
	}
	for k := range s.x {
		s.x[k] = -1
	}
	copy(s.linear, m.Linear)
	for _, q := range m.Quad {
		if q.I == q.J {
			// x·x == x for binaries.
			s.linear[q.I] += q.Coef
			continue
		}
		s.quads = append(s.quads, q)
	}
	for _, c := range s.linear {
		s.optimistic += negPart(c)
	}
	for i, q := range s.quads {
		s.varQuads[q.I] = append(s.varQuads[q.I], i)
		s.varQuads[q.J] = append(s.varQuads[q.J], i)
		s.optimistic += negPart(q.Coef)
	}
	for ci, c := range m.Constraints {
		for _, t := range c.Terms {
			s.varCons[t.Var] = append(s.varCons[t.Var], ci)
			s.varCoef[t.Var] = append(s.varCoef[t.Var], t.Coef)
			if t.Coef > 0 {
				s.posLeft[ci] += t.Coef
			} else {
				s.negLeft[ci] += t.Coef
			}
		}
	}
	return s
}

func (s *search) branch(k int) error {
	if k == len(s.x) {
		if s.fixed < s.bestObj-tolerance {
			s.bestObj = s.fixed
			if s.best == nil {
				s.best = make([]int, len(s.x))
			}
			copy(s.best, s.x)
		}
		return nil
	}
	if s.stopped {
		return nil
	}
	s.nodes++
	if s.nodes >= s.limit {
		s.stopped = true
		return nil
	}
	if s.nodes&1023 == 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}
	}

	first := 0
	if s.best != nil {
		first = s.best[k]
	} else if s.m.Start != nil {
		first = s.m.Start[k]
	}
	for _, v := range [2]int{first, 1 - first} {
		dFixed, dOpt, ok := s.assign(k, v)
		if ok && s.fixed+s.optimistic < s.bestObj-tolerance {
			if err := s.branch(k + 1); err != nil {
				return err
			}
		}
		s.unassign(k, v, dFixed, dOpt)
		if s.stopped {
			return nil
		}
	}
	return nil
}

// assign fixes x[k] = v and reports whether all touched constraints can
// still be satisfied. The objective deltas are returned for unassign.
func (s *search) assign(k, v int) (dFixed, dOpt float64, ok bool) {
	before := s.undetermined(k)
	s.x[k] = v

	dFixed += s.linear[k] * float64(v)
	dOpt -= negPart(s.linear[k])
	for i, qi := range s.varQuads[k] {
		q := s.quads[qi]
		if before[i] && !s.quadUndetermined(q) {
			dOpt -= negPart(q.Coef)
			if s.x[q.I] == 1 && s.x[q.J] == 1 {
				dFixed += q.Coef
			}
		}
	}
	s.fixed += dFixed
	s.optimistic += dOpt

	ok = true
	for i, ci := range s.varCons[k] {
		c := s.varCoef[k][i]
		if c > 0 {
			s.posLeft[ci] -= c
		} else {
			s.negLeft[ci] -= c
		}
		s.assigned[ci] += c * float64(v)
		con := s.m.Constraints[ci]
		if s.assigned[ci]+s.posLeft[ci] < con.Lo-tolerance || s.assigned[ci]+s.negLeft[ci] > con.Hi+tolerance {
			ok = false
		}
	}
	return dFixed, dOpt, ok
}

func (s *search) unassign(k, v int, dFixed, dOpt float64) {
	for i, ci := range s.varCons[k] {
		c := s.varCoef[k][i]
		if c > 0 {
			s.posLeft[ci] += c
		} else {
			s.negLeft[ci] += c
		}
		s.assigned[ci] -= c * float64(v)
	}
	s.fixed -= dFixed
	s.optimistic -= dOpt
	s.x[k] = -1
}

func (s *search) undetermined(k int) []bool {
	out := make([]bool, len(s.varQuads[k]))
	for i, qi := range s.varQuads[k] {
		out[i] = s.quadUndetermined(s.quads[qi])
	}
	return out
}

// quadUndetermined reports whether the term's value can still change: no
// factor is 0 and at least one factor is unassigned.
func (s *search) quadUndetermined(q Quad) bool {
	a, b := s.x[q.I], s.x[q.J]
	if a == 0 || b == 0 {
		return false
	}
	return a < 0 || b < 0
}

var _ Solver = BranchAndBound{}
