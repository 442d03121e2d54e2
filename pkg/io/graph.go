package io

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/reeb"
)

// WriteGraph encodes g in the critical-graph text format.
func WriteGraph(g *reeb.Graph, w io.Writer) error {
	bw := bufio.NewWriter(w)
	state := "raw"
	if g.Compacted() {
		state = "compacted"
	}
	fmt.Fprintf(bw, "g %d %d %d %s\n", g.Entities, g.FirstFrame, g.LastFrame, state)
	for _, v := range g.Vertices() {
		fmt.Fprintf(bw, "v %d %d %s\n", v.Label, v.Frame, v.Kind)
	}
	for _, e := range g.Edges() {
		if e.Dst == reeb.NoVertex {
			return trajerr.Wrap(trajerr.ErrCodeInvalidStructure, reeb.ErrPendingEdge, "write edge %d", e.ID)
		}
		src, _ := g.Vertex(e.Src)
		dst, _ := g.Vertex(e.Dst)
		fmt.Fprintf(bw, "%d %d %d %s\n", src.Label, dst.Label, e.ReebID, FormatIDs(e.Component))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

// ExportGraph writes g to a file at path.
func ExportGraph(g *reeb.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}

type header struct {
	entities, first, last int
	compacted            bool
}

// ReadGraph decodes a critical graph. Vertex lines must precede the edges
// that reference them.
func ReadGraph(r io.Reader) (*reeb.Graph, error) {
	var (
		hdr      *header
		vertices []reeb.Vertex
		edges    []edgeLine
	)
	labels := make(map[int]int)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "g":
			h, err := parseHeader(fields)
			if err != nil {
				return nil, lineErr(lineNo, err)
			}
			hdr = &h
		case "v":
			v, err := parseVertex(fields)
			if err != nil {
				return nil, lineErr(lineNo, err)
			}
			if _, dup := labels[v.Label]; dup {
				return nil, lineErr(lineNo, fmt.Errorf("duplicate vertex %d", v.Label))
			}
			labels[v.Label] = len(vertices)
			vertices = append(vertices, v)
		default:
			e, err := parseEdge(line)
			if err != nil {
				return nil, lineErr(lineNo, err)
			}
			for _, l := range [2]int{e.src, e.dst} {
				if _, ok := labels[l]; !ok {
					return nil, lineErr(lineNo, fmt.Errorf("%w: %d", reeb.ErrUnknownVertex, l))
				}
			}
			edges = append(edges, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}

	if hdr == nil {
		h := inferHeader(vertices, edges, labels)
		hdr = &h
	}
	g := reeb.New(hdr.entities, hdr.first, hdr.last)
	handles := make([]reeb.VertexID, len(vertices))
	for i, v := range vertices {
		handles[i] = g.AddVertex(v.Frame, v.Kind)
		vv, _ := g.Vertex(handles[i])
		vv.Label = v.Label
	}
	for _, e := range edges {
		if _, err := g.AddEdge(handles[labels[e.src]], handles[labels[e.dst]], e.reebID, e.component); err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeInvalidFormat, err, "edge %d->%d", e.src, e.dst)
		}
	}
	g.SetCompacted(hdr.compacted)
	return g, nil
}

// ImportGraph reads a critical graph from a file at path.
func ImportGraph(path string) (*reeb.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}

type edgeLine struct {
	src, dst, reebID int
	component        []int
}

func parseHeader(fields []string) (header, error) {
	if len(fields) != 5 {
		return header{}, fmt.Errorf("want 'g <entities> <first> <last> compacted|raw', got %d fields", len(fields))
	}
	nums, err := atois(fields[1:4])
	if err != nil {
		return header{}, err
	}
	var compacted bool
	switch fields[4] {
	case "compacted":
		compacted = true
	case "raw":
	default:
		return header{}, fmt.Errorf("unknown graph state %q", fields[4])
	}
	return header{entities: nums[0], first: nums[1], last: nums[2], compacted: compacted}, nil
}

func parseVertex(fields []string) (reeb.Vertex, error) {
	if len(fields) != 4 {
		return reeb.Vertex{}, fmt.Errorf("want 'v <id> <frame> <kind>', got %d fields", len(fields))
	}
	nums, err := atois(fields[1:3])
	if err != nil {
		return reeb.Vertex{}, err
	}
	kind, err := reeb.ParseKind(fields[3])
	if err != nil {
		return reeb.Vertex{}, err
	}
	return reeb.Vertex{Label: nums[0], Frame: nums[1], Kind: kind}, nil
}

func parseEdge(line string) (edgeLine, error) {
	open := strings.IndexByte(line, '[')
	if open < 0 {
		return edgeLine{}, errors.New("want '<src> <dst> <reebId> [<ids>]'")
	}
	head := strings.Fields(line[:open])
	if len(head) != 3 {
		return edgeLine{}, fmt.Errorf("want '<src> <dst> <reebId> [<ids>]', got %d leading fields", len(head))
	}
	nums, err := atois(head)
	if err != nil {
		return edgeLine{}, err
	}
	comp, err := ParseIDs(line[open:])
	if err != nil {
		return edgeLine{}, err
	}
	return edgeLine{src: nums[0], dst: nums[1], reebID: nums[2], component: comp}, nil
}

func inferHeader(vertices []reeb.Vertex, edges []edgeLine, labels map[int]int) header {
	h := header{compacted: true}
	for i, v := range vertices {
		if i == 0 || v.Frame < h.first {
			h.first = v.Frame
		}
		if i == 0 || v.Frame > h.last {
			h.last = v.Frame
		}
	}
	for _, e := range edges {
		for _, id := range e.component {
			h.entities = max(h.entities, id+1)
		}
		if vertices[labels[e.dst]].Frame <= vertices[labels[e.src]].Frame {
			h.compacted = false
		}
	}
	return h
}

// FormatIDs renders ids as "[a,b,c]".
func FormatIDs(ids []int) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(id))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseIDs parses "[a,b,c]". Whitespace around ids is ignored.
func ParseIDs(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("id list %q is not bracketed", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []int{}, nil
	}
	parts := strings.Split(body, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return atois(parts)
}

func atois(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", f)
		}
		out[i] = n
	}
	return out, nil
}

func lineErr(lineNo int, err error) error {
	return trajerr.Wrap(trajerr.ErrCodeInvalidFormat, err, "line %d", lineNo)
}
