package events

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/matzehuels/trajgroups/pkg/dataset"
	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
)

var (
	// ErrInvalidStream is returned by [Stream.Validate] for malformed feeds.
	ErrInvalidStream = errors.New("invalid event stream")

	// ErrInvalidEpsilon is returned by [Generate] when epsilon is not a
	// positive finite number.
	ErrInvalidEpsilon = errors.New("epsilon must be positive and finite")
)

// Generate sweeps the dataset frame by frame and emits the exact threshold
// crossings of every pairwise distance.
//
// Between consecutive frames entities move linearly, so the squared distance
// of a pair is a quadratic a·t² + b·t + c in t ∈ [0,1]. Crossings are the
// roots of a·t² + b·t + c = ε². At every integer frame the emitted state
// matches the sampled distance (d ≤ ε means connected), so the stream never
// drifts from the data even when roots are numerically close to a frame.
//
// The context is checked once per frame.
func Generate(ctx context.Context, ds *dataset.Dataset, epsilon float64) (*Stream, error) {
	if !(epsilon > 0) || math.IsInf(epsilon, 0) {
		return nil, trajerr.Wrap(trajerr.ErrCodeInvalidOption, ErrInvalidEpsilon, "epsilon %v", epsilon)
	}
	n := ds.Entities()
	s := &Stream{
		Entities:   n,
		FirstFrame: ds.First,
		LastFrame:  ds.LastFrame(),
		Epsilon:    epsilon,
	}
	eps2 := epsilon * epsilon

	state := make([]bool, n*n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			if within(ds.At(ds.First, i), ds.At(ds.First, j), eps2) {
				state[i*n+j] = true
				s.Initial = append(s.Initial, Pair{i, j})
			}
		}
	}

	for f := ds.First; f < s.LastFrame; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range n {
			for j := i + 1; j < n; j++ {
				s.Events = sweepPair(s.Events, ds, f, i, j, eps2, &state[i*n+j])
			}
		}
	}

	Sort(s.Events)
	return s, nil
}

// sweepPair appends the crossings of pair (i,j) in [f, f+1] and updates its
// connected state.
func sweepPair(out []Event, ds *dataset.Dataset, f, i, j int, eps2 float64, connected *bool) []Event {
	p0, q0 := ds.At(f, i), ds.At(f, j)
	p1, q1 := ds.At(f+1, i), ds.At(f+1, j)

	dx, dy := q0.X-p0.X, q0.Y-p0.Y
	vx, vy := (q1.X-p1.X)-dx, (q1.Y-p1.Y)-dy

	a := vx*vx + vy*vy
	b := 2 * (dx*vx + dy*vy)
	c := dx*dx + dy*dy - eps2
	g := func(t float64) float64 { return (a*t+b)*t + c }

	emit := func(t float64, now bool) {
		if now == *connected {
			return
		}
		kind := Disconnect
		if now {
			kind = Connect
		}
		out = append(out, Event{Time: float64(f) + t, A: i, B: j, Kind: kind})
		*connected = now
	}

	roots := interiorRoots(a, b, c)
	for k, t := range roots {
		next := 1.0
		if k+1 < len(roots) {
			next = roots[k+1]
		}
		emit(t, g((t+next)/2) <= 0)
	}
	emit(1, within(p1, q1, eps2))
	return out
}

func within(p, q dataset.Point, eps2 float64) bool {
	dx, dy := q.X-p.X, q.Y-p.Y
	return dx*dx+dy*dy-eps2 <= 0
}

// interiorRoots returns the real roots of a·t² + b·t + c strictly inside
// (0, 1), ascending.
func interiorRoots(a, b, c float64) []float64 {
	if a == 0 {
		return nil
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return nil
	}
	sq := math.Sqrt(disc)
	q := -0.5 * (b + math.Copysign(sq, b))
	var roots []float64
	for _, r := range []float64{q / a, c / q} {
		if r > 0 && r < 1 && !math.IsNaN(r) && !slices.Contains(roots, r) {
			roots = append(roots, r)
		}
	}
	slices.Sort(roots)
	return roots
}
