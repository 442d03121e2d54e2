// Package dot renders critical graphs as Graphviz diagrams for debugging.
//
// # Usage
//
// Convert a graph to DOT, then render it in-process:
//
//	src := dot.ToDOT(g, dot.Options{Detailed: true})
//	svg, err := dot.RenderSVG(ctx, src)
//
// Vertices are ranked by frame, so the diagram reads left to right in time.
// Edge labels show the reeb id and, when Detailed is set, the component.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for rendering. No
// external Graphviz installation is required.
package dot
