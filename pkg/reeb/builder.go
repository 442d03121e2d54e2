package reeb

import (
	"slices"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/events"
	"github.com/matzehuels/trajgroups/pkg/proximity"
)

// Options configures Build.
type Options struct {
	// Compact collapses zero-duration edges after building.
	Compact bool

	// SkipValidation disables the invariant check that Build runs on its
	// output. Only tests that inspect broken graphs set it.
	SkipValidation bool
}

// Stats summarizes a build.
type Stats struct {
	Events    int // events consumed
	Merges    int // Merge vertices created
	Splits    int // Split vertices created
	Redundant int // Connects inside one component and Disconnects that left a cycle
	Ignored   int // Disconnects of pairs that were not connected
	Collapsed int // vertices removed by compaction
}

// builder holds the per-run state: the tracker and the pending edge of each
// live component, keyed by the component's reeb id.
type builder struct {
	g       *Graph
	s       *events.Stream
	tracker *proximity.Tracker
	pending map[int]EdgeID
	nextID  int
	stats   Stats
}

// Build replays the stream and returns its critical graph.
//
// Initial pairs are connected first, and one Start vertex is emitted per
// initial component. A Connect between two components creates a Merge; a
// Disconnect that breaks the last path between two entities creates a
// Split. A Disconnect for a pair that was never connected is a caller
// contract violation: the tracker ignores it and the build counts it in
// Stats.Ignored without changing the graph. All edges still open after the
// last event end at one End vertex at the stream's last frame.
func Build(s *events.Stream, opts Options) (*Graph, Stats, error) {
	if err := s.Validate(); err != nil {
		return nil, Stats{}, err
	}
	b := &builder{
		g:       New(s.Entities, s.FirstFrame, s.LastFrame),
		s:       s,
		tracker: proximity.New(s.Entities),
		pending: make(map[int]EdgeID),
	}
	if err := b.run(); err != nil {
		return nil, b.stats, err
	}
	if opts.Compact {
		b.stats.Collapsed = Compact(b.g)
	}
	if !opts.SkipValidation {
		if err := b.g.Validate(); err != nil {
			return nil, b.stats, err
		}
	}
	return b.g, b.stats, nil
}

func (b *builder) run() error {
	for _, p := range b.s.Initial {
		b.tracker.Connect(p.A, p.B)
	}
	for _, comp := range b.tracker.Components() {
		v := b.g.AddVertex(b.s.FirstFrame, Start)
		if err := b.open(v, comp); err != nil {
			return err
		}
	}

	for _, e := range b.s.Events {
		b.stats.Events++
		frame := b.s.Frame(e.Time)
		var err error
		switch e.Kind {
		case events.Connect:
			err = b.connect(frame, e.A, e.B)
		case events.Disconnect:
			err = b.disconnect(frame, e.A, e.B)
		default:
			err = trajerr.Wrap(trajerr.ErrCodeInvalidInput, events.ErrInvalidStream, "unknown event kind %v", e.Kind)
		}
		if err != nil {
			return err
		}
	}

	return b.finish()
}

func (b *builder) connect(frame, a, c int) error {
	if b.tracker.Connected(a, c) {
		b.tracker.Connect(a, c)
		b.stats.Redundant++
		return nil
	}
	ta, tc := b.tracker.Tag(a), b.tracker.Tag(c)
	b.tracker.Connect(a, c)

	v := b.g.AddVertex(frame, Merge)
	b.stats.Merges++
	if err := b.close(ta, v); err != nil {
		return err
	}
	if err := b.close(tc, v); err != nil {
		return err
	}
	return b.open(v, b.tracker.Component(a))
}

func (b *builder) disconnect(frame, a, c int) error {
	if !b.tracker.Disconnect(a, c) {
		b.stats.Ignored++
		return nil
	}
	if b.tracker.Connected(a, c) {
		b.stats.Redundant++
		return nil
	}
	tag := b.tracker.Tag(a)

	v := b.g.AddVertex(frame, Split)
	b.stats.Splits++
	if err := b.close(tag, v); err != nil {
		return err
	}
	parts := [][]int{b.tracker.Component(a), b.tracker.Component(c)}
	slices.SortFunc(parts, func(x, y []int) int { return x[0] - y[0] })
	for _, comp := range parts {
		if err := b.open(v, comp); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) finish() error {
	if len(b.pending) == 0 {
		return nil
	}
	end := b.g.AddVertex(b.s.LastFrame, End)
	tags := make([]int, 0, len(b.pending))
	for tag := range b.pending {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	for _, tag := range tags {
		if err := b.close(tag, end); err != nil {
			return err
		}
	}
	return nil
}

// open starts a pending edge at v carrying comp under a fresh reeb id, and
// tags the component's entities with it.
func (b *builder) open(v VertexID, comp []int) error {
	id := b.nextID
	b.nextID++
	e, err := b.g.AddEdge(v, NoVertex, id, comp)
	if err != nil {
		return err
	}
	b.tracker.SetTag(comp, id)
	b.pending[id] = e
	return nil
}

// close terminates the pending edge of the component tagged tag at v.
func (b *builder) close(tag int, v VertexID) error {
	e, ok := b.pending[tag]
	if !ok {
		return errInvariant("no pending edge for component tag %d", tag)
	}
	delete(b.pending, tag)
	return b.g.Terminate(e, v)
}
