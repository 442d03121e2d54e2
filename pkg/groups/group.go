// Package groups derives maximal groups from a critical graph and selects the
// ones that feed the ordering stage.
//
// A maximal group is a set of entities that stay in one connected component
// for a maximal contiguous interval of frames. [Extract] computes every
// maximal group by walking the critical graph in topological order and
// propagating groups forward along its edges. A [Policy] then picks the
// groups to order.
package groups

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/trajgroups/pkg/reeb"
)

// Group is a set of entities together on the inclusive frame interval
// [Start, End].
type Group struct {
	ID       int   `json:"id"`
	Entities []int `json:"entities"` // sorted
	Start    int   `json:"start"`
	End      int   `json:"end"`
}

// Size returns the number of entities in the group.
func (g Group) Size() int { return len(g.Entities) }

// Duration returns the number of frames spanned, End - Start.
func (g Group) Duration() int { return g.End - g.Start }

// Active reports whether the group's interval contains frame.
func (g Group) Active(frame int) bool { return g.Start <= frame && frame <= g.End }

// SubsetOf reports whether every entity of the group is in the sorted set.
func (g Group) SubsetOf(set []int) bool { return subset(g.Entities, set) }

// String formats the group as "#id [entities] [start,end]".
func (g Group) String() string {
	return fmt.Sprintf("#%d %v [%d,%d]", g.ID, g.Entities, g.Start, g.End)
}

// Structure is the trajectory grouping structure: every maximal group and
// the groups carried by each critical edge.
type Structure struct {
	Groups     []Group
	EdgeGroups map[reeb.EdgeID][]int
}

// Group returns the group with the given id.
func (s *Structure) Group(id int) (Group, bool) {
	i, ok := slices.BinarySearchFunc(s.Groups, id, func(g Group, id int) int { return g.ID - id })
	if !ok {
		return Group{}, false
	}
	return s.Groups[i], true
}

// key returns a map key for a sorted entity set.
func key(entities []int) string {
	var sb strings.Builder
	for i, e := range entities {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(e))
	}
	return sb.String()
}

// subset reports whether sorted a ⊆ sorted b.
func subset(a, b []int) bool {
	j := 0
	for _, x := range a {
		for j < len(b) && b[j] < x {
			j++
		}
		if j == len(b) || b[j] != x {
			return false
		}
	}
	return true
}

// intersect returns sorted a ∩ sorted b.
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
