package reeb

// Compact removes zero-duration edges and returns the number of vertices
// collapsed.
//
// Events that land on the same discrete frame produce edges whose source
// and destination share a frame. Each such edge is handled in turn, the
// first one in topological order first:
//
//   - a self-loop is removed;
//   - otherwise the destination is collapsed into the source: its outgoing
//     edges are re-sourced at the source, its other incoming edges are
//     redirected to the source, and the destination and the edge are
//     removed.
//
// Every step removes one vertex or one self-loop, so the loop terminates.
// The collapsed vertex keeps the source's kind unless it lost all incoming
// edges (Start) or all outgoing edges (End). Labels are renumbered at the
// end. Compacting a compacted graph is a no-op.
func Compact(g *Graph) int {
	collapsed := 0
	for {
		e, ok := firstZeroDuration(g)
		if !ok {
			break
		}
		if e.Src == e.Dst {
			g.RemoveEdge(e.ID)
			continue
		}
		src, dst := e.Src, e.Dst
		g.RemoveEdge(e.ID)
		for _, out := range append([]EdgeID(nil), g.Out(dst)...) {
			_ = g.SetSource(out, src)
		}
		for _, in := range append([]EdgeID(nil), g.In(dst)...) {
			_ = g.Terminate(in, src)
		}
		g.RemoveVertex(dst)
		reclassify(g, src)
		collapsed++
	}
	g.Renumber()
	g.compacted = true
	return collapsed
}

func firstZeroDuration(g *Graph) (*Edge, bool) {
	order, err := g.Topological()
	if err != nil {
		order = g.Vertices()
	}
	for _, v := range order {
		for _, id := range g.Out(v.ID) {
			e, _ := g.Edge(id)
			if e.Dst == NoVertex {
				continue
			}
			if dst, _ := g.Vertex(e.Dst); dst.Frame == v.Frame {
				return e, true
			}
		}
	}
	return nil, false
}

func reclassify(g *Graph, v VertexID) {
	vx, _ := g.Vertex(v)
	switch {
	case len(g.In(v)) == 0:
		vx.Kind = Start
	case len(g.Out(v)) == 0:
		vx.Kind = End
	}
}
