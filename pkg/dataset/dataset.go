// Package dataset loads per-frame entity positions and enforces the input
// contract the grouping pipeline relies on.
//
// A dataset is a dense matrix of positions: every frame in [First, Last]
// holds exactly one position for every entity 0..n-1. Datasets that violate
// this (gaps in entity ids, missing frames, incomplete frames) are rejected
// with an INVALID_DATASET error before any algorithm runs.
//
// # CSV Format
//
// One row per (frame, entity) observation with an optional header:
//
//	frame,id,x,y
//	0,0,1.5,2.0
//	0,1,3.0,2.0
//	1,0,1.6,2.1
//	...
//
// Rows may appear in any order.
package dataset

import (
	"encoding/binary"
	"math"

	"github.com/matzehuels/trajgroups/pkg/cache"
)

// Point is an entity position in the plane.
type Point struct {
	X, Y float64
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Dataset holds validated trajectories.
//
// Positions[f][id] is the position of entity id at frame First+f.
type Dataset struct {
	Name      string
	First     int
	Positions [][]Point
}

// Entities returns the number of entities.
func (d *Dataset) Entities() int {
	if len(d.Positions) == 0 {
		return 0
	}
	return len(d.Positions[0])
}

// Frames returns the number of frames.
func (d *Dataset) Frames() int { return len(d.Positions) }

// LastFrame returns the final frame number.
func (d *Dataset) LastFrame() int { return d.First + len(d.Positions) - 1 }

// At returns the position of entity id at the given absolute frame.
func (d *Dataset) At(frame, id int) Point {
	return d.Positions[frame-d.First][id]
}

// Hash returns a content hash of the trajectories, used to key cached
// critical graphs and ordering results. The name is not part of the hash.
func (d *Dataset) Hash() string {
	buf := make([]byte, 0, 16+d.Frames()*d.Entities()*16)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.First))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(d.Entities()))
	for _, frame := range d.Positions {
		for _, p := range frame {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.X))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p.Y))
		}
	}
	return cache.Hash(buf)
}
