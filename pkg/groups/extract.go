package groups

import (
	"slices"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/reeb"
)

// extractor holds the per-walk state. Groups are stored by id; open groups
// have end == -1 until a vertex closes them.
type extractor struct {
	g      *reeb.Graph
	groups []*Group
	onEdge map[reeb.EdgeID][]int
}

// Extract walks the critical graph in topological order and returns every
// maximal group.
//
// At each vertex, the groups carried by the incoming edges are pushed to the
// outgoing edges:
//
//   - a group contained in an outgoing component passes through unchanged;
//   - a group that only partly overlaps an outgoing component is closed at
//     the vertex frame, and the overlap continues as a group with the
//     original start frame (if the edge already carries that entity set, the
//     earlier start wins);
//   - if no group on an outgoing edge equals its component, a new group
//     equal to the component starts at the vertex frame;
//   - groups that reach no outgoing edge are closed at the vertex frame.
//
// For Start, Merge, Split and End vertices these reduce to the textbook
// rules; the general form also covers the fused vertices left by
// compaction. An entity that enters a vertex but leaves on no edge is a
// structural defect and aborts extraction with INVALID_STRUCTURE.
func Extract(g *reeb.Graph) (*Structure, error) {
	order, err := g.Topological()
	if err != nil {
		return nil, trajerr.Wrap(trajerr.ErrCodeInvalidStructure, err, "extract groups")
	}
	x := &extractor{g: g, onEdge: make(map[reeb.EdgeID][]int)}
	for _, v := range order {
		if err := x.visit(v); err != nil {
			return nil, err
		}
	}
	for _, grp := range x.groups {
		if grp.End < 0 {
			return nil, trajerr.Invariant("group %d never closed", grp.ID)
		}
	}
	return x.finish(), nil
}

func (x *extractor) visit(v *reeb.Vertex) error {
	var carried []int
	var arriving []int
	for _, id := range x.g.In(v.ID) {
		e, _ := x.g.Edge(id)
		carried = append(carried, x.onEdge[id]...)
		arriving = append(arriving, e.Component...)
	}
	slices.Sort(carried)
	carried = slices.Compact(carried)

	outs := x.g.Out(v.ID)
	if len(outs) > 0 {
		var leaving []int
		for _, id := range outs {
			e, _ := x.g.Edge(id)
			leaving = append(leaving, e.Component...)
		}
		slices.Sort(leaving)
		slices.Sort(arriving)
		if !subset(slices.Compact(arriving), leaving) {
			return trajerr.Invariant("vertex %d (%s at frame %d): entities lost", v.Label, v.Kind, v.Frame)
		}
	}

	passed := make(map[int]bool, len(carried))
	for _, id := range outs {
		e, _ := x.g.Edge(id)
		comp := e.Component
		bySet := make(map[string]int)
		var attached []int
		attach := func(gid int) {
			bySet[key(x.groups[gid].Entities)] = gid
			attached = append(attached, gid)
		}

		for _, gid := range carried {
			if subset(x.groups[gid].Entities, comp) {
				passed[gid] = true
				attach(gid)
			}
		}
		for _, gid := range carried {
			if passed[gid] {
				continue
			}
			grp := x.groups[gid]
			part := intersect(grp.Entities, comp)
			if len(part) == 0 {
				continue
			}
			if have, ok := bySet[key(part)]; ok {
				x.groups[have].Start = min(x.groups[have].Start, grp.Start)
				continue
			}
			attach(x.open(part, grp.Start))
		}
		if _, ok := bySet[key(comp)]; !ok {
			attach(x.open(comp, v.Frame))
		}

		slices.Sort(attached)
		x.onEdge[id] = attached
	}

	for _, gid := range carried {
		if !passed[gid] {
			x.groups[gid].End = v.Frame
		}
	}
	return nil
}

func (x *extractor) open(entities []int, start int) int {
	id := len(x.groups)
	x.groups = append(x.groups, &Group{ID: id, Entities: slices.Clone(entities), Start: start, End: -1})
	return id
}

// finish merges groups with identical entity sets whose intervals overlap
// or abut, then renumbers groups densely in (start, entities) order.
func (x *extractor) finish() *Structure {
	alias := make([]int, len(x.groups))
	for i := range alias {
		alias[i] = i
	}
	byStart := slices.Clone(x.groups)
	slices.SortStableFunc(byStart, compareGroups)
	last := make(map[string]*Group)
	var kept []*Group
	for _, grp := range byStart {
		k := key(grp.Entities)
		if prev, ok := last[k]; ok && grp.Start <= prev.End+1 {
			prev.End = max(prev.End, grp.End)
			alias[grp.ID] = prev.ID
			continue
		}
		last[k] = grp
		kept = append(kept, grp)
	}

	renum := make(map[int]int, len(kept))
	s := &Structure{
		Groups:     make([]Group, len(kept)),
		EdgeGroups: make(map[reeb.EdgeID][]int, len(x.onEdge)),
	}
	for i, grp := range kept {
		renum[grp.ID] = i
		s.Groups[i] = Group{ID: i, Entities: grp.Entities, Start: grp.Start, End: grp.End}
	}
	for e, ids := range x.onEdge {
		out := make([]int, 0, len(ids))
		for _, id := range ids {
			out = append(out, renum[alias[id]])
		}
		slices.Sort(out)
		s.EdgeGroups[e] = slices.Compact(out)
	}
	return s
}

func compareGroups(a, b *Group) int {
	if a.Start != b.Start {
		return a.Start - b.Start
	}
	if c := slices.Compare(a.Entities, b.Entities); c != 0 {
		return c
	}
	return a.ID - b.ID
}
