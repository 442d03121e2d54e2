package reeb

import (
	"slices"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
)

// Validate checks the structural invariants and returns nil if they hold:
//
//  1. Every edge is terminated and points forward in time
//     (src.Frame <= dst.Frame, strictly after compaction).
//  2. At every vertex with incoming edges, the outgoing components are
//     pairwise disjoint and their union equals the union of the incoming
//     components. Across all sources the outgoing components partition the
//     full entity set, and likewise across all sinks for the incoming ones.
//  3. Before compaction, each vertex kind has its expected degree.
//
// Violations are INVALID_STRUCTURE errors wrapping one of the package
// sentinels, so both trajerr.Is and errors.Is work on the result.
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if e == nil {
			continue
		}
		if e.Dst == NoVertex {
			return invariant(ErrPendingEdge, "edge %d (reeb %d)", e.ID, e.ReebID)
		}
		src, dst := g.vertices[e.Src], g.vertices[e.Dst]
		if dst.Frame < src.Frame || (g.compacted && dst.Frame == src.Frame) {
			return invariant(ErrBackwardEdge, "edge %d from frame %d to %d", e.ID, src.Frame, dst.Frame)
		}
	}

	var sourceOut, sinkIn [][]int
	for _, v := range g.Vertices() {
		in := g.components(g.in[v.ID])
		out := g.components(g.out[v.ID])
		if !g.compacted {
			if err := checkDegree(v, len(in), len(out)); err != nil {
				return err
			}
		}
		switch {
		case len(in) == 0:
			sourceOut = append(sourceOut, out...)
		case len(out) == 0:
			sinkIn = append(sinkIn, in...)
		default:
			if !samePartition(in, out) {
				return invariant(ErrPartition, "vertex %d (%s at frame %d)", v.Label, v.Kind, v.Frame)
			}
		}
	}

	all := make([]int, g.Entities)
	for i := range all {
		all[i] = i
	}
	whole := [][]int{all}
	if g.VertexCount() > 0 && !samePartition(whole, sourceOut) {
		return invariant(ErrPartition, "start components do not cover %d entities", g.Entities)
	}
	if g.VertexCount() > 0 && !samePartition(whole, sinkIn) {
		return invariant(ErrPartition, "end components do not cover %d entities", g.Entities)
	}
	return nil
}

func checkDegree(v *Vertex, in, out int) error {
	ok := true
	switch v.Kind {
	case Start:
		ok = in == 0 && out == 1
	case Merge:
		ok = in == 2 && out == 1
	case Split:
		ok = in == 1 && out == 2
	case End:
		ok = in >= 1 && out == 0
	}
	if !ok {
		return invariant(ErrDegree, "%s vertex %d has %d in, %d out", v.Kind, v.Label, in, out)
	}
	return nil
}

func (g *Graph) components(ids []EdgeID) [][]int {
	comps := make([][]int, 0, len(ids))
	for _, id := range ids {
		e := g.edges[id]
		if e.Src == e.Dst {
			continue
		}
		comps = append(comps, e.Component)
	}
	return comps
}

// samePartition reports whether both families are pairwise disjoint and
// cover the same entities.
func samePartition(a, b [][]int) bool {
	ua, okA := disjointUnion(a)
	ub, okB := disjointUnion(b)
	return okA && okB && slices.Equal(ua, ub)
}

func disjointUnion(family [][]int) ([]int, bool) {
	var u []int
	for _, c := range family {
		u = append(u, c...)
	}
	slices.Sort(u)
	for i := 1; i < len(u); i++ {
		if u[i] == u[i-1] {
			return nil, false
		}
	}
	return u, true
}

func invariant(sentinel error, format string, args ...any) error {
	return trajerr.Wrap(trajerr.ErrCodeInvalidStructure, sentinel, format, args...)
}

func errInvariant(format string, args ...any) error {
	return trajerr.Invariant(format, args...)
}
