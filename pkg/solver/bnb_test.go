package solver

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestBranchAndBound_Quadratic(t *testing.T) {
	m := &Model{NumVars: 2, Linear: []float64{1, 1}, Quad: []Quad{{I: 0, J: 1, Coef: -3}}}
	sol, err := BranchAndBound{}.Solve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Values[0] != 1 || sol.Values[1] != 1 {
		t.Errorf("Values = %v, want [1 1]", sol.Values)
	}
	if sol.Objective != -1 || sol.Status != Optimal {
		t.Errorf("Objective = %v status %v, want -1 optimal", sol.Objective, sol.Status)
	}
}

func TestBranchAndBound_Constraints(t *testing.T) {
	// Pick exactly two of three with costs 3, 1, 2.
	m := &Model{
		NumVars: 3,
		Linear:  []float64{3, 1, 2},
		Constraints: []Constraint{{
			Name:  "two",
			Terms: []Term{{0, 1}, {1, 1}, {2, 1}},
			Lo:    2, Hi: 2,
		}},
	}
	sol, err := BranchAndBound{}.Solve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 1, 1}
	for k := range want {
		if sol.Values[k] != want[k] {
			t.Fatalf("Values = %v, want %v", sol.Values, want)
		}
	}
}

func TestBranchAndBound_Infeasible(t *testing.T) {
	m := &Model{
		NumVars: 1,
		Constraints: []Constraint{
			{Name: "ge", Terms: []Term{{0, 1}}, Lo: 1, Hi: 1},
			{Name: "le", Terms: []Term{{0, 1}}, Lo: 0, Hi: 0},
		},
	}
	if _, err := (BranchAndBound{}).Solve(context.Background(), m); !errors.Is(err, ErrInfeasible) {
		t.Errorf("err = %v, want ErrInfeasible", err)
	}
}

func TestBranchAndBound_EmptyModel(t *testing.T) {
	sol, err := BranchAndBound{}.Solve(context.Background(), &Model{Constant: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(sol.Values) != 0 || sol.Objective != 4 {
		t.Errorf("sol = %+v", sol)
	}
}

func TestBranchAndBound_NodeLimitKeepsWarmStart(t *testing.T) {
	n := 16
	m := &Model{NumVars: n, Linear: make([]float64, n), Start: make([]int, n)}
	for k := range n {
		m.Linear[k] = -1
	}
	sol, err := BranchAndBound{NodeLimit: 3}.Solve(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if sol.Status != Feasible {
		t.Errorf("Status = %v, want feasible", sol.Status)
	}

	m.Start = nil
	m.Constraints = []Constraint{{Name: "cap", Terms: []Term{{0, 1}}, Lo: 0, Hi: 0}}
	if _, err := (BranchAndBound{NodeLimit: 1}).Solve(context.Background(), m); !errors.Is(err, ErrNodeLimit) {
		t.Errorf("err = %v, want ErrNodeLimit", err)
	}
}

func TestBranchAndBound_InvalidModel(t *testing.T) {
	m := &Model{NumVars: 1, Quad: []Quad{{I: 0, J: 2, Coef: 1}}}
	if _, err := (BranchAndBound{}).Solve(context.Background(), m); !errors.Is(err, ErrInvalidModel) {
		t.Errorf("err = %v, want ErrInvalidModel", err)
	}
}

func TestBranchAndBound_MatchesBruteForce(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for trial := range 30 {
		n := 2 + r.IntN(7)
		m := &Model{NumVars: n, Linear: make([]float64, n)}
		for k := range n {
			m.Linear[k] = float64(r.IntN(11) - 5)
		}
		for range n {
			i, j := r.IntN(n), r.IntN(n)
			m.Quad = append(m.Quad, Quad{I: i, J: j, Coef: float64(r.IntN(11) - 5)})
		}
		for range 2 {
			var terms []Term
			for k := range n {
				if r.IntN(2) == 0 {
					terms = append(terms, Term{Var: k, Coef: float64(r.IntN(5) - 2)})
				}
			}
			m.AddConstraint(Constraint{Terms: terms, Lo: -1, Hi: 2})
		}

		want, feasible := bruteForce(m)
		sol, err := BranchAndBound{}.Solve(context.Background(), m)
		if !feasible {
			if !errors.Is(err, ErrInfeasible) {
				t.Errorf("trial %d: err = %v, want ErrInfeasible", trial, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		if math.Abs(sol.Objective-want) > 1e-9 {
			t.Errorf("trial %d: objective %v, brute force %v", trial, sol.Objective, want)
		}
		if !m.Feasible(sol.Values) {
			t.Errorf("trial %d: solution violates constraints", trial)
		}
	}
}

func bruteForce(m *Model) (float64, bool) {
	best, found := math.Inf(1), false
	x := make([]int, m.NumVars)
	for mask := 0; mask < 1<<m.NumVars; mask++ {
		for k := range x {
			x[k] = (mask >> k) & 1
		}
		if m.Feasible(x) {
			found = true
			best = math.Min(best, m.Objective(x))
		}
	}
	return best, found
}

func TestSolverFunc(t *testing.T) {
	var called bool
	var s Solver = SolverFunc(func(ctx context.Context, m *Model) (*Solution, error) {
		called = true
		return &Solution{}, nil
	})
	_, _ = s.Solve(context.Background(), &Model{})
	if !called {
		t.Error("SolverFunc did not call through")
	}
}
