package reeb

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownVertex is returned when a handle does not name a live vertex.
	ErrUnknownVertex = errors.New("unknown vertex")

	// ErrUnknownEdge is returned when a handle does not name a live edge.
	ErrUnknownEdge = errors.New("unknown edge")

	// ErrPendingEdge is returned by [Graph.Validate] when an edge was never
	// terminated at a destination vertex.
	ErrPendingEdge = errors.New("edge has no destination")

	// ErrBackwardEdge is returned by [Graph.Validate] when an edge points
	// backwards in time, or has zero duration after compaction.
	ErrBackwardEdge = errors.New("edge does not point forward in time")

	// ErrPartition is returned by [Graph.Validate] when the components on a
	// vertex's outgoing edges do not partition the entities arriving on its
	// incoming edges.
	ErrPartition = errors.New("partition invariant violated")

	// ErrDegree is returned by [Graph.Validate] when a vertex's degree does
	// not match its kind.
	ErrDegree = errors.New("degree invariant violated")

	// ErrGraphHasCycle is returned by [Graph.Topological] when the edges
	// contain a directed cycle.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Kind is the type of critical event a vertex records.
type Kind int

const (
	// Start vertices open the initial components at the first frame.
	Start Kind = iota
	// Merge vertices join two components (2 in, 1 out).
	Merge
	// Split vertices divide one component in two (1 in, 2 out).
	Split
	// End vertices close every remaining component at the last frame.
	End
)

var kindNames = [...]string{"start", "merge", "split", "end"}

// String returns the lowercase kind name used in the text format.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of [Kind.String].
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown vertex kind %q", s)
}

// VertexID is a stable handle into the graph's vertex arena.
type VertexID int

// EdgeID is a stable handle into the graph's edge arena.
type EdgeID int

// NoVertex is the destination of an edge that is still pending.
const NoVertex VertexID = -1

// Vertex is a critical event.
//
// ID is the arena handle and never changes. Label is the display id written
// to the text format; [Graph.Renumber] reassigns labels densely in
// topological order without touching handles.
type Vertex struct {
	ID    VertexID
	Label int
	Frame int
	Kind  Kind
}

// Edge is a maximal interval during which Component stays connected.
// The component is valid on frames [src.Frame, dst.Frame-1].
type Edge struct {
	ID        EdgeID
	Src, Dst  VertexID
	ReebID    int
	Component []int // sorted entity ids
}

// Graph is the critical graph: an arena of vertices and edges addressed by
// stable handles. Removed slots stay nil so handles are never reused.
//
// The zero value is not usable; use New. A Graph is not safe for concurrent
// mutation, but once built and compacted it is only read.
type Graph struct {
	Entities   int
	FirstFrame int
	LastFrame  int

	vertices  []*Vertex
	edges     []*Edge
	out       [][]EdgeID
	in        [][]EdgeID
	compacted bool
}

// New creates an empty graph over entities 0..entities-1 and the inclusive
// frame range [first, last].
func New(entities, first, last int) *Graph {
	return &Graph{Entities: entities, FirstFrame: first, LastFrame: last}
}

// AddVertex appends a vertex and returns its handle. Its label defaults to
// the handle value.
func (g *Graph) AddVertex(frame int, kind Kind) VertexID {
	id := VertexID(len(g.vertices))
	g.vertices = append(g.vertices, &Vertex{ID: id, Label: int(id), Frame: frame, Kind: kind})
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return id
}

// AddEdge appends an edge from src. dst may be NoVertex for an edge whose
// end is not yet known; use [Graph.Terminate] to close it later.
func (g *Graph) AddEdge(src, dst VertexID, reebID int, component []int) (EdgeID, error) {
	if !g.liveVertex(src) {
		return 0, fmt.Errorf("%w: source %d", ErrUnknownVertex, src)
	}
	if dst != NoVertex && !g.liveVertex(dst) {
		return 0, fmt.Errorf("%w: destination %d", ErrUnknownVertex, dst)
	}
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, &Edge{
		ID:        id,
		Src:       src,
		Dst:       dst,
		ReebID:    reebID,
		Component: slices.Clone(component),
	})
	g.out[src] = append(g.out[src], id)
	if dst != NoVertex {
		g.in[dst] = append(g.in[dst], id)
	}
	return id, nil
}

// Terminate sets the destination of a pending edge.
func (g *Graph) Terminate(e EdgeID, dst VertexID) error {
	edge, ok := g.Edge(e)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEdge, e)
	}
	if !g.liveVertex(dst) {
		return fmt.Errorf("%w: destination %d", ErrUnknownVertex, dst)
	}
	if edge.Dst != NoVertex {
		g.in[edge.Dst] = slices.DeleteFunc(g.in[edge.Dst], func(x EdgeID) bool { return x == e })
	}
	edge.Dst = dst
	g.in[dst] = append(g.in[dst], e)
	return nil
}

// SetSource moves the source of edge e to vertex src.
func (g *Graph) SetSource(e EdgeID, src VertexID) error {
	edge, ok := g.Edge(e)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEdge, e)
	}
	if !g.liveVertex(src) {
		return fmt.Errorf("%w: source %d", ErrUnknownVertex, src)
	}
	g.out[edge.Src] = slices.DeleteFunc(g.out[edge.Src], func(x EdgeID) bool { return x == e })
	edge.Src = src
	g.out[src] = append(g.out[src], e)
	return nil
}

// RemoveEdge deletes an edge. Removing an unknown edge is a no-op.
func (g *Graph) RemoveEdge(e EdgeID) {
	edge, ok := g.Edge(e)
	if !ok {
		return
	}
	g.out[edge.Src] = slices.DeleteFunc(g.out[edge.Src], func(x EdgeID) bool { return x == e })
	if edge.Dst != NoVertex {
		g.in[edge.Dst] = slices.DeleteFunc(g.in[edge.Dst], func(x EdgeID) bool { return x == e })
	}
	g.edges[e] = nil
}

// RemoveVertex deletes a vertex together with all edges touching it.
func (g *Graph) RemoveVertex(v VertexID) {
	if !g.liveVertex(v) {
		return
	}
	for _, e := range slices.Clone(g.out[v]) {
		g.RemoveEdge(e)
	}
	for _, e := range slices.Clone(g.in[v]) {
		g.RemoveEdge(e)
	}
	g.vertices[v] = nil
	g.out[v], g.in[v] = nil, nil
}

// Vertex returns the vertex with handle v.
func (g *Graph) Vertex(v VertexID) (*Vertex, bool) {
	if !g.liveVertex(v) {
		return nil, false
	}
	return g.vertices[v], true
}

// Edge returns the edge with handle e.
func (g *Graph) Edge(e EdgeID) (*Edge, bool) {
	if e < 0 || int(e) >= len(g.edges) || g.edges[e] == nil {
		return nil, false
	}
	return g.edges[e], true
}

// Out returns the handles of v's outgoing edges in insertion order.
// The slice must not be modified.
func (g *Graph) Out(v VertexID) []EdgeID {
	if !g.liveVertex(v) {
		return nil
	}
	return g.out[v]
}

// In returns the handles of v's incoming edges in insertion order.
// The slice must not be modified.
func (g *Graph) In(v VertexID) []EdgeID {
	if !g.liveVertex(v) {
		return nil
	}
	return g.in[v]
}

// Vertices returns all live vertices ordered by (frame, label).
func (g *Graph) Vertices() []*Vertex {
	vs := make([]*Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		if v != nil {
			vs = append(vs, v)
		}
	}
	slices.SortFunc(vs, compareVertices)
	return vs
}

// Edges returns all live edges ordered by source (frame, label), then by
// destination (frame, label). Pending edges sort last.
func (g *Graph) Edges() []*Edge {
	es := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e != nil {
			es = append(es, e)
		}
	}
	slices.SortStableFunc(es, func(a, b *Edge) int {
		if c := compareVertices(g.vertices[a.Src], g.vertices[b.Src]); c != 0 {
			return c
		}
		switch {
		case a.Dst == b.Dst:
			return 0
		case a.Dst == NoVertex:
			return 1
		case b.Dst == NoVertex:
			return -1
		}
		return compareVertices(g.vertices[a.Dst], g.vertices[b.Dst])
	})
	return es
}

// VertexCount returns the number of live vertices.
func (g *Graph) VertexCount() int {
	n := 0
	for _, v := range g.vertices {
		if v != nil {
			n++
		}
	}
	return n
}

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, e := range g.edges {
		if e != nil {
			n++
		}
	}
	return n
}

// MaxFrame returns the largest vertex frame, or FirstFrame for an empty graph.
func (g *Graph) MaxFrame() int {
	m := g.FirstFrame
	for _, v := range g.vertices {
		if v != nil && v.Frame > m {
			m = v.Frame
		}
	}
	return m
}

// Span returns the inclusive frame window [src.Frame, dst.Frame-1] on
// which the edge's component is valid.
func (g *Graph) Span(e *Edge) (lo, hi int) {
	return g.vertices[e.Src].Frame, g.vertices[e.Dst].Frame - 1
}

// Compacted reports whether zero-duration edges have been removed.
func (g *Graph) Compacted() bool { return g.compacted }

// SetCompacted marks the graph as compacted. Decoders use it for graphs
// that were compacted before they were written.
func (g *Graph) SetCompacted(v bool) { g.compacted = v }

// Renumber assigns labels 0..n-1 in (frame, label) order. Handles are
// unchanged.
func (g *Graph) Renumber() {
	for i, v := range g.Vertices() {
		v.Label = i
	}
}

// Topological returns the live vertices in a topological order of the
// edges, breaking ties by (frame, label). Self-loops are ignored.
func (g *Graph) Topological() ([]*Vertex, error) {
	indeg := make([]int, len(g.vertices))
	var ready []*Vertex
	total := 0
	for _, v := range g.vertices {
		if v == nil {
			continue
		}
		total++
		for _, e := range g.in[v.ID] {
			if g.edges[e].Src != v.ID {
				indeg[v.ID]++
			}
		}
		if indeg[v.ID] == 0 {
			ready = append(ready, v)
		}
	}
	slices.SortFunc(ready, compareVertices)

	order := make([]*Vertex, 0, total)
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, e := range g.out[v.ID] {
			dst := g.edges[e].Dst
			if dst == NoVertex || dst == v.ID {
				continue
			}
			if indeg[dst]--; indeg[dst] == 0 {
				w := g.vertices[dst]
				i, _ := slices.BinarySearchFunc(ready, w, compareVertices)
				ready = slices.Insert(ready, i, w)
			}
		}
	}
	if len(order) != total {
		return nil, ErrGraphHasCycle
	}
	return order, nil
}

func (g *Graph) liveVertex(v VertexID) bool {
	return v >= 0 && int(v) < len(g.vertices) && g.vertices[v] != nil
}

func compareVertices(a, b *Vertex) int {
	if a.Frame != b.Frame {
		return a.Frame - b.Frame
	}
	return a.Label - b.Label
}
