// Package proximity tracks which entities are currently within the distance
// threshold of each other.
//
// The [Tracker] is a dynamic undirected graph: one status vertex per entity,
// with an adjacency set of current proximity neighbors and a component tag
// assigned by the critical-graph builder. Connectivity is answered by graph
// search rather than union-find because edges are removed as well as added.
// Every query costs O(entities + edges), which is correct at any scale and
// fast enough for the datasets the pipeline targets.
//
// A Tracker is owned by a single build run and is not safe for concurrent use.
package proximity

import (
	"slices"
)

// Tracker maintains the proximity graph between entities.
type Tracker struct {
	adj  []map[int]struct{}
	tags []int
}

// New creates a tracker for entities 0..n-1 with no proximity edges.
// Every entity starts with tag -1 (untagged).
func New(n int) *Tracker {
	t := &Tracker{
		adj:  make([]map[int]struct{}, n),
		tags: make([]int, n),
	}
	for i := range t.adj {
		t.adj[i] = make(map[int]struct{})
		t.tags[i] = -1
	}
	return t
}

// Len returns the number of entities tracked.
func (t *Tracker) Len() int { return len(t.adj) }

// Connect adds the undirected edge a–b. It reports whether the edge was new;
// connecting an already adjacent pair or an entity to itself is a no-op.
func (t *Tracker) Connect(a, b int) bool {
	if a == b || !t.valid(a) || !t.valid(b) {
		return false
	}
	if _, ok := t.adj[a][b]; ok {
		return false
	}
	t.adj[a][b] = struct{}{}
	t.adj[b][a] = struct{}{}
	return true
}

// Disconnect removes the undirected edge a–b. It reports whether the edge
// existed; removing an absent edge is a no-op and returns false.
func (t *Tracker) Disconnect(a, b int) bool {
	if !t.valid(a) || !t.valid(b) {
		return false
	}
	if _, ok := t.adj[a][b]; !ok {
		return false
	}
	delete(t.adj[a], b)
	delete(t.adj[b], a)
	return true
}

// Adjacent reports whether a and b share a direct proximity edge.
func (t *Tracker) Adjacent(a, b int) bool {
	if !t.valid(a) || !t.valid(b) {
		return false
	}
	_, ok := t.adj[a][b]
	return ok
}

// Neighbors returns the direct neighbors of a in ascending order.
func (t *Tracker) Neighbors(a int) []int {
	if !t.valid(a) {
		return nil
	}
	out := make([]int, 0, len(t.adj[a]))
	for n := range t.adj[a] {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Connected reports whether a path exists between a and b.
func (t *Tracker) Connected(a, b int) bool {
	if !t.valid(a) || !t.valid(b) {
		return false
	}
	if a == b {
		return true
	}
	found := false
	t.walk(a, func(v int) bool {
		if v == b {
			found = true
			return false
		}
		return true
	})
	return found
}

// Component returns the sorted ids of all entities reachable from a,
// including a itself.
func (t *Tracker) Component(a int) []int {
	if !t.valid(a) {
		return nil
	}
	var comp []int
	t.walk(a, func(v int) bool {
		comp = append(comp, v)
		return true
	})
	slices.Sort(comp)
	return comp
}

// Components returns the current partition of entities into connected sets.
// Each component is sorted, and components are ordered by their smallest id.
func (t *Tracker) Components() [][]int {
	seen := make([]bool, len(t.adj))
	var comps [][]int
	for v := range t.adj {
		if seen[v] {
			continue
		}
		comp := t.Component(v)
		for _, u := range comp {
			seen[u] = true
		}
		comps = append(comps, comp)
	}
	return comps
}

// Tag returns the component tag currently assigned to entity a.
func (t *Tracker) Tag(a int) int {
	if !t.valid(a) {
		return -1
	}
	return t.tags[a]
}

// SetTag assigns tag to every entity in ids.
func (t *Tracker) SetTag(ids []int, tag int) {
	for _, id := range ids {
		if t.valid(id) {
			t.tags[id] = tag
		}
	}
}

// walk visits every entity reachable from start with an explicit stack,
// stopping early when visit returns false.
func (t *Tracker) walk(start int, visit func(int) bool) {
	seen := map[int]struct{}{start: {}}
	stack := []int{start}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(v) {
			return
		}
		for n := range t.adj[v] {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			stack = append(stack, n)
		}
	}
}

func (t *Tracker) valid(a int) bool { return a >= 0 && a < len(t.adj) }
