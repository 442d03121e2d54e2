// Package solver defines a minimal binary quadratic program and a reference
// branch-and-bound solver for it.
//
// A [Model] minimizes
//
//	Constant + Σ Linear[k]·x[k] + Σ Quad.Coef·x[I]·x[J]
//
// over binary x subject to two-sided linear constraints Lo ≤ Σ c·x ≤ Hi.
// Any [Solver] can be plugged into the ordering stage; [BranchAndBound] is
// the in-process default.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInfeasible is returned when no assignment satisfies the constraints.
	ErrInfeasible = errors.New("model is infeasible")

	// ErrNodeLimit is returned when the search budget ran out before any
	// feasible assignment was found.
	ErrNodeLimit = errors.New("node limit reached without a feasible solution")

	// ErrInvalidModel is returned by [Model.Validate].
	ErrInvalidModel = errors.New("invalid model")
)

// Term is one coefficient of a linear expression.
type Term struct {
	Var  int
	Coef float64
}

// Quad is one bilinear objective term Coef·x[I]·x[J].
type Quad struct {
	I, J int
	Coef float64
}

// Constraint requires Lo ≤ Σ Terms ≤ Hi. Use Lo == Hi for an equality.
type Constraint struct {
	Name   string
	Terms  []Term
	Lo, Hi float64
}

// Model is a binary quadratic program.
type Model struct {
	NumVars     int
	Names       []string // optional, one per variable
	Constant    float64
	Linear      []float64 // len NumVars, nil means all zero
	Quad        []Quad
	Constraints []Constraint

	// Start is an optional warm start (len NumVars, values 0/1).
	Start []int
}

// AddVar appends a variable and returns its index.
func (m *Model) AddVar(name string) int {
	m.NumVars++
	m.Names = append(m.Names, name)
	m.Linear = append(m.Linear, 0)
	return m.NumVars - 1
}

// AddConstraint appends a constraint.
func (m *Model) AddConstraint(c Constraint) {
	m.Constraints = append(m.Constraints, c)
}

// Validate checks variable indices and bounds.
func (m *Model) Validate() error {
	if m.Linear != nil && len(m.Linear) != m.NumVars {
		return fmt.Errorf("%w: %d linear coefficients for %d variables", ErrInvalidModel, len(m.Linear), m.NumVars)
	}
	if m.Start != nil && len(m.Start) != m.NumVars {
		return fmt.Errorf("%w: warm start has %d values for %d variables", ErrInvalidModel, len(m.Start), m.NumVars)
	}
	for _, q := range m.Quad {
		if q.I < 0 || q.I >= m.NumVars || q.J < 0 || q.J >= m.NumVars {
			return fmt.Errorf("%w: quadratic term (%d,%d) out of range", ErrInvalidModel, q.I, q.J)
		}
	}
	for _, c := range m.Constraints {
		if c.Lo > c.Hi {
			return fmt.Errorf("%w: constraint %q has Lo > Hi", ErrInvalidModel, c.Name)
		}
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= m.NumVars {
				return fmt.Errorf("%w: constraint %q references variable %d", ErrInvalidModel, c.Name, t.Var)
			}
		}
	}
	return nil
}

// Objective evaluates the objective at x.
func (m *Model) Objective(x []int) float64 {
	obj := m.Constant
	for k, c := range m.Linear {
		obj += c * float64(x[k])
	}
	for _, q := range m.Quad {
		obj += q.Coef * float64(x[q.I]*x[q.J])
	}
	return obj
}

// Feasible reports whether x satisfies every constraint.
func (m *Model) Feasible(x []int) bool {
	if len(x) != m.NumVars {
		return false
	}
	for _, v := range x {
		if v != 0 && v != 1 {
			return false
		}
	}
	for _, c := range m.Constraints {
		sum := 0.0
		for _, t := range c.Terms {
			sum += t.Coef * float64(x[t.Var])
		}
		if sum < c.Lo-tolerance || sum > c.Hi+tolerance {
			return false
		}
	}
	return true
}

const tolerance = 1e-9

// Status describes the quality of a solution.
type Status int

const (
	// Optimal means the search proved no better assignment exists.
	Optimal Status = iota
	// Feasible means the search stopped early with a valid assignment.
	Feasible
)

// String returns "optimal" or "feasible".
func (s Status) String() string {
	if s == Optimal {
		return "optimal"
	}
	return "feasible"
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "optimal":
		*s = Optimal
	case "feasible":
		*s = Feasible
	default:
		return fmt.Errorf("unknown solver status %q", b)
	}
	return nil
}

// Solution is a solver result.
type Solution struct {
	Values    []int
	Objective float64
	Status    Status
	Nodes     int
}

// Solver solves binary quadratic programs.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) { return f(ctx, m) }

func negPart(x float64) float64 { return math.Min(0, x) }
