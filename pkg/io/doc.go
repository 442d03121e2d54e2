// Package io reads and writes the plain-text artifacts of a grouping run.
//
// # Critical Graph
//
// [WriteGraph] emits an optional header, one line per vertex and one line
// per edge:
//
//	g <entities> <firstFrame> <lastFrame> compacted
//	v <id> <frame> <kind>
//	<srcId> <dstId> <reebId> [<c1>,<c2>,...]
//
// Kinds are start, merge, split and end. Vertex ids are display labels;
// [ReadGraph] maps them back to fresh handles. Without a header, the entity
// count is taken from the largest component id and the frame range from
// the vertex frames; the graph counts as compacted when every edge moves
// strictly forward in time.
//
// # Run Results
//
// A run is persisted as three artifacts that are only meaningful together:
//
//	Layer <r>: <id> <id> ...          (orderings, top to bottom)
//	ID: <id> Group: [<e1>,<e2>,...] Frames: [<start>,<end>]
//	<r>                               (layers, one per line)
//
// The Frames field of a group line is optional when reading.
//
// Malformed input is reported as an INVALID_FORMAT error naming the line.
package io
