package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/trajgroups/pkg/reeb"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds frames to vertex labels and components to edge labels.
	Detailed bool
}

var kindStyle = map[reeb.Kind]string{
	reeb.Start: `shape=circle, fillcolor="#d8f3dc"`,
	reeb.Merge: `shape=invtriangle, fillcolor="#bde0fe"`,
	reeb.Split: `shape=triangle, fillcolor="#ffd6a5"`,
	reeb.End:   `shape=doublecircle, fillcolor="#e5e5e5"`,
}

// ToDOT converts g to Graphviz DOT source.
func ToDOT(g *reeb.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [style=filled, fontsize=12];\n\n")

	byFrame := make(map[int][]int)
	var frames []int
	for _, v := range g.Vertices() {
		label := strconv.Itoa(v.Label)
		if opts.Detailed {
			label = fmt.Sprintf("%d\\n%s@%d", v.Label, v.Kind, v.Frame)
		}
		fmt.Fprintf(&buf, "  v%d [label=\"%s\", %s];\n", v.Label, label, kindStyle[v.Kind])
		if _, ok := byFrame[v.Frame]; !ok {
			frames = append(frames, v.Frame)
		}
		byFrame[v.Frame] = append(byFrame[v.Frame], v.Label)
	}

	// Vertices() is sorted by frame, so frames is too.
	for _, f := range frames {
		if len(byFrame[f]) < 2 {
			continue
		}
		ids := make([]string, len(byFrame[f]))
		for i, l := range byFrame[f] {
			ids[i] = "v" + strconv.Itoa(l)
		}
		fmt.Fprintf(&buf, "  { rank=same; %s; }\n", strings.Join(ids, "; "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if e.Dst == reeb.NoVertex {
			continue
		}
		src, _ := g.Vertex(e.Src)
		dst, _ := g.Vertex(e.Dst)
		label := "r" + strconv.Itoa(e.ReebID)
		if opts.Detailed {
			label += " " + fmtComponent(e.Component)
		}
		fmt.Fprintf(&buf, "  v%d -> v%d [label=%q, penwidth=%d];\n", src.Label, dst.Label, label, min(1+len(e.Component)/2, 6))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtComponent(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// RenderSVG renders DOT source to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	out, err := render(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(out), nil
}

// RenderPNG renders DOT source to PNG.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return render(ctx, dot, graphviz.PNG)
}

func render(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// whose size matches its viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
