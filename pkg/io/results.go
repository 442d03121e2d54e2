package io

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matzehuels/trajgroups/pkg/groups"
)

// WriteOrders writes one "Layer <r>: <ids>" line per layer, in the order of
// layers.
func WriteOrders(w io.Writer, layers []int, orders map[int][]int) error {
	bw := bufio.NewWriter(w)
	for _, layer := range layers {
		fmt.Fprintf(bw, "Layer %d:", layer)
		for _, id := range orders[layer] {
			fmt.Fprintf(bw, " %d", id)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write orders: %w", err)
	}
	return nil
}

// ReadOrders parses orderings written by WriteOrders. It returns the layers
// in file order along with the per-layer orders.
func ReadOrders(r io.Reader) ([]int, map[int][]int, error) {
	var layers []int
	orders := make(map[int][]int)
	err := eachLine(r, func(lineNo int, line string) error {
		rest, ok := strings.CutPrefix(line, "Layer ")
		if !ok {
			return lineErr(lineNo, errors.New("want 'Layer <r>: <ids>'"))
		}
		head, body, ok := strings.Cut(rest, ":")
		if !ok {
			return lineErr(lineNo, errors.New("missing ':' after layer"))
		}
		layer, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			return lineErr(lineNo, fmt.Errorf("not an integer: %q", head))
		}
		if _, dup := orders[layer]; dup {
			return lineErr(lineNo, fmt.Errorf("duplicate layer %d", layer))
		}
		ids, err := atois(strings.Fields(body))
		if err != nil {
			return lineErr(lineNo, err)
		}
		layers = append(layers, layer)
		orders[layer] = ids
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return layers, orders, nil
}

// WriteGroups writes one "ID: <id> Group: [<entities>] Frames: [<s>,<e>]"
// line per group.
func WriteGroups(w io.Writer, gs []groups.Group) error {
	bw := bufio.NewWriter(w)
	for _, g := range gs {
		fmt.Fprintf(bw, "ID: %d Group: %s Frames: [%d,%d]\n", g.ID, FormatIDs(g.Entities), g.Start, g.End)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write groups: %w", err)
	}
	return nil
}

// ReadGroups parses groups written by WriteGroups. Lines without a Frames
// field yield groups with a zero interval.
func ReadGroups(r io.Reader) ([]groups.Group, error) {
	var out []groups.Group
	err := eachLine(r, func(lineNo int, line string) error {
		rest, ok := strings.CutPrefix(line, "ID:")
		if !ok {
			return lineErr(lineNo, errors.New("want 'ID: <id> Group: [<entities>]'"))
		}
		idPart, rest, ok := strings.Cut(rest, "Group:")
		if !ok {
			return lineErr(lineNo, errors.New("missing 'Group:'"))
		}
		id, err := strconv.Atoi(strings.TrimSpace(idPart))
		if err != nil {
			return lineErr(lineNo, fmt.Errorf("not an integer: %q", idPart))
		}
		entPart, framePart, hasFrames := strings.Cut(rest, "Frames:")
		ents, err := ParseIDs(entPart)
		if err != nil {
			return lineErr(lineNo, err)
		}
		g := groups.Group{ID: id, Entities: ents}
		if hasFrames {
			span, err := ParseIDs(framePart)
			if err != nil {
				return lineErr(lineNo, err)
			}
			if len(span) != 2 {
				return lineErr(lineNo, errors.New("want 'Frames: [<start>,<end>]'"))
			}
			g.Start, g.End = span[0], span[1]
		}
		out = append(out, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteLayers writes one layer per line.
func WriteLayers(w io.Writer, layers []int) error {
	bw := bufio.NewWriter(w)
	for _, l := range layers {
		fmt.Fprintln(bw, l)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write layers: %w", err)
	}
	return nil
}

// ReadLayers parses one integer per line.
func ReadLayers(r io.Reader) ([]int, error) {
	var out []int
	err := eachLine(r, func(lineNo int, line string) error {
		n, err := strconv.Atoi(line)
		if err != nil {
			return lineErr(lineNo, fmt.Errorf("not an integer: %q", line))
		}
		out = append(out, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachLine calls fn for every non-blank line, trimmed.
func eachLine(r io.Reader, fn func(lineNo int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return nil
}
