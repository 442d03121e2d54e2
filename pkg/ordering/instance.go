package ordering

import (
	"slices"

	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/reeb"
)

// Vertex is one group at one layer. Group indexes Instance.Groups.
type Vertex struct {
	Group int
	Layer int
}

// Node is an internal containment-tree node: a critical edge spanning the
// layer and the vertices whose group lies inside its component.
type Node struct {
	Edge    reeb.EdgeID
	Members []int // vertex indices, ascending group index
}

// Tree is the containment tree of one layer. The root is implicit; its
// children are Nodes and Loose vertices (groups inside no spanning edge,
// such as a group closing at a split on that frame). Synthetic is set when
// the root has more than one child.
type Tree struct {
	Layer     int
	Nodes     []Node
	Loose     []int
	Synthetic bool
}

// Instance is an ordering problem over selected groups.
type Instance struct {
	Graph    *reeb.Graph
	Groups   []groups.Group
	Layers   []int
	Vertices []Vertex
	Trees    map[int]*Tree

	byLayer map[int][]int // layer -> vertex indices, ascending group index
	at      map[Vertex]int
	parent  []int // vertex -> node index in its layer's tree, -1 if loose
}

// Layers returns the sorted distinct frames {src.Frame, dst.Frame-1} over
// all edges of g with a non-empty validity window.
func Layers(g *reeb.Graph) []int {
	seen := make(map[int]struct{})
	for _, e := range g.Edges() {
		if e.Dst == reeb.NoVertex {
			continue
		}
		lo, hi := g.Span(e)
		if hi < lo {
			continue
		}
		seen[lo] = struct{}{}
		seen[hi] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// NewInstance builds the ordering instance for the selected groups.
func NewInstance(g *reeb.Graph, selected []groups.Group) *Instance {
	inst := &Instance{
		Graph:   g,
		Groups:  selected,
		Layers:  Layers(g),
		Trees:   make(map[int]*Tree),
		byLayer: make(map[int][]int),
		at:      make(map[Vertex]int),
	}

	for _, layer := range inst.Layers {
		for gi, grp := range selected {
			if !grp.Active(layer) {
				continue
			}
			v := Vertex{Group: gi, Layer: layer}
			idx := len(inst.Vertices)
			inst.Vertices = append(inst.Vertices, v)
			inst.at[v] = idx
			inst.byLayer[layer] = append(inst.byLayer[layer], idx)
		}
	}

	inst.parent = make([]int, len(inst.Vertices))
	edges := g.Edges()
	for _, layer := range inst.Layers {
		tree := &Tree{Layer: layer}
		for _, e := range edges {
			if lo, hi := g.Span(e); lo <= layer && layer <= hi {
				tree.Nodes = append(tree.Nodes, Node{Edge: e.ID})
			}
		}
		for _, vi := range inst.byLayer[layer] {
			inst.parent[vi] = -1
			grp := selected[inst.Vertices[vi].Group]
			for ni := range tree.Nodes {
				e, _ := g.Edge(tree.Nodes[ni].Edge)
				if grp.SubsetOf(e.Component) {
					tree.Nodes[ni].Members = append(tree.Nodes[ni].Members, vi)
					inst.parent[vi] = ni
					break
				}
			}
			if inst.parent[vi] < 0 {
				tree.Loose = append(tree.Loose, vi)
			}
		}
		tree.Synthetic = len(tree.Nodes)+len(tree.Loose) > 1
		inst.Trees[layer] = tree
	}
	return inst
}

// At returns the group indices present at layer in ascending order.
func (inst *Instance) At(layer int) []int {
	vs := inst.byLayer[layer]
	out := make([]int, len(vs))
	for i, vi := range vs {
		out[i] = inst.Vertices[vi].Group
	}
	return out
}

// Trivial reports whether no layer holds more than one group.
func (inst *Instance) Trivial() bool {
	for _, vs := range inst.byLayer {
		if len(vs) > 1 {
			return false
		}
	}
	return true
}

// container returns the edge whose tree node holds group gi at layer, or
// false when the group is absent or loose.
func (inst *Instance) container(gi, layer int) (reeb.EdgeID, bool) {
	vi, ok := inst.at[Vertex{Group: gi, Layer: layer}]
	if !ok || inst.parent[vi] < 0 {
		return 0, false
	}
	return inst.Trees[layer].Nodes[inst.parent[vi]].Edge, true
}

// blocks returns the root's children at layer as lists of group indices:
// one block per non-empty node, one singleton per loose vertex.
func (inst *Instance) blocks(layer int) [][]int {
	tree := inst.Trees[layer]
	var out [][]int
	for _, n := range tree.Nodes {
		if len(n.Members) == 0 {
			continue
		}
		b := make([]int, len(n.Members))
		for i, vi := range n.Members {
			b[i] = inst.Vertices[vi].Group
		}
		out = append(out, b)
	}
	for _, vi := range tree.Loose {
		out = append(out, []int{inst.Vertices[vi].Group})
	}
	return out
}
