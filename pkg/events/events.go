// Package events defines the proximity event stream consumed by the
// critical-graph builder and a reference generator that derives it from
// trajectories.
//
// # Ordering
//
// Events are processed strictly by time. Several events may share a
// timestamp (for example when three entities meet at one point); they are
// then processed in a fixed order: every Disconnect before any Connect, and
// within a kind by entity pair (A, B) ascending. [Sort] applies this rule and
// the builder assumes it.
//
// # Frames
//
// Event times are real-valued. The builder maps a time to an integer frame
// with [Stream.Frame]: ceil(time), clamped to the stream's frame range. A
// pair that crosses the threshold between frames f and f+1 is therefore
// first observed in its new state at frame f+1.
package events

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
)

// Kind distinguishes the two proximity transitions.
type Kind int

const (
	// Disconnect means two entities stop being within epsilon.
	Disconnect Kind = iota
	// Connect means two entities come within epsilon.
	Connect
)

// String returns "connect" or "disconnect".
func (k Kind) String() string {
	switch k {
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is a single proximity transition between entities A and B (A < B).
type Event struct {
	Time float64
	A, B int
	Kind Kind
}

// Pair is an unordered entity pair with A < B.
type Pair struct{ A, B int }

// NewPair normalizes (a, b) so that A < B.
func NewPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{a, b}
}

// Stream is an ordered event feed over a fixed entity set and frame range.
type Stream struct {
	Entities   int
	FirstFrame int
	LastFrame  int
	Epsilon    float64

	// Initial lists the pairs already within epsilon at FirstFrame.
	Initial []Pair

	// Events are the transitions after FirstFrame, sorted with Sort.
	Events []Event
}

// Frame maps an event time to the integer frame at which the builder
// records it.
func (s *Stream) Frame(t float64) int {
	f := int(math.Ceil(t))
	if f < s.FirstFrame {
		return s.FirstFrame
	}
	if f > s.LastFrame {
		return s.LastFrame
	}
	return f
}

// Compare orders events by time, then Disconnect before Connect, then by pair.
func Compare(a, b Event) int {
	if c := cmp.Compare(a.Time, b.Time); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.A, b.A); c != 0 {
		return c
	}
	return cmp.Compare(a.B, b.B)
}

// Sort orders events in place with Compare.
func Sort(evs []Event) {
	slices.SortStableFunc(evs, Compare)
}

// Validate checks that the stream is well formed: entity ids in range,
// A < B, times inside the frame range and events sorted.
func (s *Stream) Validate() error {
	if s.Entities <= 0 {
		return invalid("stream has no entities")
	}
	if s.LastFrame < s.FirstFrame {
		return invalid("last frame %d before first frame %d", s.LastFrame, s.FirstFrame)
	}
	for _, p := range s.Initial {
		if err := s.checkPair(p.A, p.B); err != nil {
			return err
		}
	}
	for i, e := range s.Events {
		if err := s.checkPair(e.A, e.B); err != nil {
			return err
		}
		if e.Time < float64(s.FirstFrame) || e.Time > float64(s.LastFrame) {
			return invalid("event %d at time %g outside [%d,%d]", i, e.Time, s.FirstFrame, s.LastFrame)
		}
		if i > 0 && Compare(s.Events[i-1], e) > 0 {
			return invalid("event %d out of order", i)
		}
	}
	return nil
}

// invalid wraps ErrInvalidStream with the input-contract error code.
func invalid(format string, args ...any) error {
	return trajerr.Wrap(trajerr.ErrCodeInvalidInput, ErrInvalidStream, format, args...)
}

func (s *Stream) checkPair(a, b int) error {
	if a < 0 || b >= s.Entities || a >= b {
		return invalid("bad entity pair (%d,%d)", a, b)
	}
	return nil
}
