package io

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/events"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/reeb"
)

func splitGraph(t *testing.T) *reeb.Graph {
	t.Helper()
	g, _, err := reeb.Build(&events.Stream{Entities: 3, FirstFrame: 0, LastFrame: 20,
		Initial: []events.Pair{{A: 0, B: 1}, {A: 1, B: 2}},
		Events:  []events.Event{{Time: 9.5, A: 1, B: 2, Kind: events.Disconnect}}},
		reeb.Options{Compact: true})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGraph_RoundTrip(t *testing.T) {
	g := splitGraph(t)
	var first bytes.Buffer
	if err := WriteGraph(g, &first); err != nil {
		t.Fatal(err)
	}

	back, err := ReadGraph(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("ReadGraph: %v\n%s", err, first.String())
	}
	if !back.Compacted() || back.Entities != 3 || back.LastFrame != 20 {
		t.Errorf("header lost: compacted=%v entities=%d last=%d", back.Compacted(), back.Entities, back.LastFrame)
	}
	if err := back.Validate(); err != nil {
		t.Errorf("decoded graph invalid: %v", err)
	}

	var second bytes.Buffer
	if err := WriteGraph(back, &second); err != nil {
		t.Fatal(err)
	}
	if first.String() != second.String() {
		t.Errorf("round trip changed output:\n%s\nvs\n%s", first.String(), second.String())
	}
}

func TestGraph_Format(t *testing.T) {
	g := reeb.New(2, 0, 10)
	s := g.AddVertex(0, reeb.Start)
	e := g.AddVertex(10, reeb.End)
	_, _ = g.AddEdge(s, e, 0, []int{0, 1})
	g.SetCompacted(true)

	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		t.Fatal(err)
	}
	want := "g 2 0 10 compacted\nv 0 0 start\nv 1 10 end\n0 1 0 [0,1]\n"
	if buf.String() != want {
		t.Errorf("WriteGraph =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestReadGraph_WithoutHeader(t *testing.T) {
	in := "v 0 0 start\nv 1 0 start\nv 2 5 merge\nv 3 10 end\n0 2 0 [0]\n1 2 1 [ 1 ]\n2 3 2 [0, 1]\n"
	g, err := ReadGraph(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if g.Entities != 2 || g.FirstFrame != 0 || g.LastFrame != 10 || !g.Compacted() {
		t.Errorf("inferred header = %d [%d,%d] compacted=%v", g.Entities, g.FirstFrame, g.LastFrame, g.Compacted())
	}
	if g.VertexCount() != 4 || g.EdgeCount() != 3 {
		t.Errorf("counts = %d/%d, want 4/3", g.VertexCount(), g.EdgeCount())
	}
	if err := g.Validate(); err != nil {
		t.Error(err)
	}
}

func TestReadGraph_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad kind", "v 0 0 begin\n"},
		{"short vertex", "v 0 0\n"},
		{"duplicate vertex", "v 0 0 start\nv 0 1 end\n"},
		{"unknown vertex", "v 0 0 start\n0 1 0 [0]\n"},
		{"unbracketed", "v 0 0 start\nv 1 3 end\n0 1 0 0,1\n"},
		{"bad header", "g 2 0 compacted\n"},
		{"not a number", "v x 0 start\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGraph(strings.NewReader(tt.in))
			if !trajerr.Is(err, trajerr.ErrCodeInvalidFormat) {
				t.Errorf("err = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestExportImportGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.txt")
	if err := ExportGraph(splitGraph(t), path); err != nil {
		t.Fatal(err)
	}
	g, err := ImportGraph(path)
	if err != nil {
		t.Fatal(err)
	}
	if g.VertexCount() == 0 {
		t.Error("imported empty graph")
	}
	if _, err := ImportGraph(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestResults_RoundTrip(t *testing.T) {
	layers := []int{0, 4, 5, 9}
	orders := map[int][]int{0: {1, 0}, 4: {1, 0}, 5: {1, 2, 0}, 9: {}}
	gs := []groups.Group{
		{ID: 0, Entities: []int{0}, Start: 0, End: 10},
		{ID: 1, Entities: []int{1}, Start: 0, End: 10},
		{ID: 2, Entities: []int{0, 1}, Start: 5, End: 10},
	}

	var ob, gb, lb bytes.Buffer
	if err := WriteOrders(&ob, layers, orders); err != nil {
		t.Fatal(err)
	}
	if err := WriteGroups(&gb, gs); err != nil {
		t.Fatal(err)
	}
	if err := WriteLayers(&lb, layers); err != nil {
		t.Fatal(err)
	}

	gotLayers, gotOrders, err := ReadOrders(&ob)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(gotLayers, layers) {
		t.Errorf("layers = %v, want %v", gotLayers, layers)
	}
	for _, l := range layers {
		if !slices.Equal(gotOrders[l], orders[l]) {
			t.Errorf("order[%d] = %v, want %v", l, gotOrders[l], orders[l])
		}
	}

	gotGroups, err := ReadGroups(&gb)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotGroups) != len(gs) {
		t.Fatalf("groups = %v", gotGroups)
	}
	for i := range gs {
		a, b := gotGroups[i], gs[i]
		if a.ID != b.ID || a.Start != b.Start || a.End != b.End || !slices.Equal(a.Entities, b.Entities) {
			t.Errorf("group %d = %v, want %v", i, a, b)
		}
	}

	gotList, err := ReadLayers(&lb)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(gotList, layers) {
		t.Errorf("layer list = %v, want %v", gotList, layers)
	}
}

func TestReadGroups_WithoutFrames(t *testing.T) {
	gs, err := ReadGroups(strings.NewReader("ID: 3 Group: [2,4]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(gs) != 1 || gs[0].ID != 3 || !slices.Equal(gs[0].Entities, []int{2, 4}) {
		t.Errorf("groups = %v", gs)
	}
}

func TestReadResults_Malformed(t *testing.T) {
	if _, _, err := ReadOrders(strings.NewReader("Layer x: 1 2\n")); !trajerr.Is(err, trajerr.ErrCodeInvalidFormat) {
		t.Errorf("orders err = %v", err)
	}
	if _, _, err := ReadOrders(strings.NewReader("Layer 1: 1\nLayer 1: 2\n")); !trajerr.Is(err, trajerr.ErrCodeInvalidFormat) {
		t.Errorf("duplicate layer err = %v", err)
	}
	if _, err := ReadGroups(strings.NewReader("Group: [1]\n")); !trajerr.Is(err, trajerr.ErrCodeInvalidFormat) {
		t.Errorf("groups err = %v", err)
	}
	if _, err := ReadLayers(strings.NewReader("1\ntwo\n")); !trajerr.Is(err, trajerr.ErrCodeInvalidFormat) {
		t.Errorf("layers err = %v", err)
	}
}

func ExampleWriteOrders() {
	_ = WriteOrders(os.Stdout, []int{0, 5}, map[int][]int{0: {1, 0}, 5: {2, 1, 0}})
	// Output:
	// Layer 0: 1 0
	// Layer 5: 2 1 0
}
