package groups

import (
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/trajgroups/pkg/reeb"
)

// Policy picks the groups that feed the ordering stage. Policies never
// change the critical graph or the extracted structure.
type Policy interface {
	// Name returns the identifier used in configuration and cache keys.
	Name() string

	// Select returns the chosen groups, renumbered 0..n-1.
	Select(g *reeb.Graph, s *Structure) []Group
}

// Policy names accepted by PolicyByName.
const (
	PolicyAllIntervals = "all-intervals"
	PolicyPersistent   = "persistent"
	PolicyMaximal      = "maximal"
)

// PolicyNames lists the registered policies in display order.
var PolicyNames = []string{PolicyPersistent, PolicyAllIntervals, PolicyMaximal}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyAllIntervals:
		return AllIntervals{}, nil
	case PolicyPersistent, "":
		return GloballyPersistent{}, nil
	case PolicyMaximal:
		return Maximal{}, nil
	default:
		return nil, fmt.Errorf("unknown group policy %q (want one of %s)", name, strings.Join(PolicyNames, ", "))
	}
}

// AllIntervals selects one group per critical edge: the edge's component on
// its validity window [src.Frame, dst.Frame-1]. Zero-length windows are
// skipped and identical (component, window) pairs are reported once.
type AllIntervals struct{}

// Name returns "all-intervals".
func (AllIntervals) Name() string { return PolicyAllIntervals }

// Select implements Policy.
func (AllIntervals) Select(g *reeb.Graph, _ *Structure) []Group {
	seen := make(map[string]bool)
	var out []Group
	for _, e := range g.Edges() {
		lo, hi := g.Span(e)
		if hi < lo {
			continue
		}
		k := fmt.Sprintf("%s|%d|%d", key(e.Component), lo, hi)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Group{Entities: slices.Clone(e.Component), Start: lo, End: hi})
	}
	return renumber(out)
}

// GloballyPersistent selects the maximal groups that exist for the whole
// timeline: Start at the first frame and End at the graph's last frame.
type GloballyPersistent struct{}

// Name returns "persistent".
func (GloballyPersistent) Name() string { return PolicyPersistent }

// Select implements Policy.
func (GloballyPersistent) Select(g *reeb.Graph, s *Structure) []Group {
	last := g.MaxFrame()
	var out []Group
	for _, grp := range s.Groups {
		if grp.Start == g.FirstFrame && grp.End == last {
			out = append(out, grp)
		}
	}
	return renumber(out)
}

// Maximal selects every maximal group.
type Maximal struct{}

// Name returns "maximal".
func (Maximal) Name() string { return PolicyMaximal }

// Select implements Policy.
func (Maximal) Select(_ *reeb.Graph, s *Structure) []Group {
	return renumber(slices.Clone(s.Groups))
}

// Filter drops groups below a size or duration threshold. Zero values keep
// everything.
type Filter struct {
	MinSize     int
	MinDuration int
}

// Apply returns the groups that pass the filter, renumbered 0..n-1.
func (f Filter) Apply(gs []Group) []Group {
	var out []Group
	for _, g := range gs {
		if g.Size() >= f.MinSize && g.Duration() >= f.MinDuration {
			out = append(out, g)
		}
	}
	return renumber(out)
}

func renumber(gs []Group) []Group {
	for i := range gs {
		gs[i].ID = i
	}
	return gs
}

var (
	_ Policy = AllIntervals{}
	_ Policy = GloballyPersistent{}
	_ Policy = Maximal{}
)
