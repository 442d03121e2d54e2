// Package reeb builds the critical graph of a trajectory grouping structure.
//
// # Overview
//
// The critical graph is a Reeb-graph-like DAG over time. Vertices are the
// frames at which the partition of entities into proximity components
// changes (start, merge, split, end). Each edge carries the component that
// stays connected between its two endpoints, valid on frames
// [src.Frame, dst.Frame-1].
//
// The graph is built in three steps:
//
//  1. [Build] replays an [events.Stream] through a [proximity.Tracker],
//     creating Merge and Split vertices whenever two components join or one
//     component falls apart.
//  2. [Compact] collapses zero-duration edges created when several events
//     land on the same discrete frame.
//  3. [Graph.Validate] checks the structural invariants: forward edges and
//     the partition property at every vertex.
//
// # Arena
//
// Vertices and edges live in an arena addressed by stable handles
// ([VertexID], [EdgeID]). Removing an element leaves a hole; handles are
// never reused. Display ids are a separate Label field that [Graph.Renumber]
// reassigns after compaction, so callers holding handles are never
// invalidated by renumbering.
//
// # Degree Invariants
//
// Builder output satisfies Merge = 2 in / 1 out, Split = 1 in / 2 out,
// Start = 0 in, End = 0 out. Compaction can fuse several same-frame events
// into one vertex with larger degree, so Validate checks the degree
// invariants only on graphs that have not been compacted. The partition
// invariant holds either way.
//
// [events.Stream]: github.com/matzehuels/trajgroups/pkg/events.Stream
// [proximity.Tracker]: github.com/matzehuels/trajgroups/pkg/proximity.Tracker
package reeb
