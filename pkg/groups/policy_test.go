package groups

import (
	"slices"
	"testing"

	"github.com/matzehuels/trajgroups/pkg/events"
)

func TestPolicyByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"all-intervals", PolicyAllIntervals, false},
		{"Persistent", PolicyPersistent, false},
		{"", PolicyPersistent, false},
		{" maximal ", PolicyMaximal, false},
		{"pca", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PolicyByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PolicyByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && p.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.want)
			}
		})
	}
}

func TestPolicies_Merge(t *testing.T) {
	g := build(t, &events.Stream{Entities: 2, FirstFrame: 0, LastFrame: 10,
		Events: []events.Event{{Time: 4.5, A: 0, B: 1, Kind: events.Connect}}})
	s, err := Extract(g)
	if err != nil {
		t.Fatal(err)
	}

	persistent := GloballyPersistent{}.Select(g, s)
	if len(persistent) != 2 {
		t.Fatalf("persistent = %v, want the two singletons", persistent)
	}
	for i, grp := range persistent {
		if grp.ID != i || grp.Size() != 1 {
			t.Errorf("persistent[%d] = %v", i, grp)
		}
	}

	intervals := AllIntervals{}.Select(g, s)
	if len(intervals) != 3 {
		t.Fatalf("intervals = %v, want one per edge", intervals)
	}
	var merged Group
	for _, grp := range intervals {
		if grp.Size() == 2 {
			merged = grp
		}
	}
	if merged.Start != 5 || merged.End != 9 {
		t.Errorf("merged interval = [%d,%d], want [5,9]", merged.Start, merged.End)
	}

	if got := (Maximal{}).Select(g, s); len(got) != len(s.Groups) {
		t.Errorf("maximal selected %d of %d groups", len(got), len(s.Groups))
	}
}

func TestFilter(t *testing.T) {
	in := []Group{
		{ID: 0, Entities: []int{0}, Start: 0, End: 10},
		{ID: 1, Entities: []int{0, 1}, Start: 2, End: 4},
		{ID: 2, Entities: []int{0, 1, 2}, Start: 0, End: 9},
	}
	got := Filter{MinSize: 2, MinDuration: 5}.Apply(in)
	if len(got) != 1 || !slices.Equal(got[0].Entities, []int{0, 1, 2}) || got[0].ID != 0 {
		t.Errorf("Apply = %v, want only the triple renumbered to 0", got)
	}
	if all := (Filter{}).Apply(in); len(all) != 3 {
		t.Errorf("zero filter kept %d groups, want 3", len(all))
	}
}
