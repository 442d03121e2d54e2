package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
)

type observation struct {
	frame, id int
	p         Point
}

// Load reads a CSV dataset from r and validates it.
// All contract violations are reported as INVALID_DATASET errors.
func Load(r io.Reader, name string) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var obs []observation
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeInvalidDataset, err, "read %s", name)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		o, err := parseRecord(rec)
		if err != nil {
			return nil, trajerr.Wrap(trajerr.ErrCodeInvalidDataset, err, "%s line %d", name, line)
		}
		obs = append(obs, o)
	}
	return build(name, obs)
}

// LoadFile reads a CSV dataset from disk. The dataset name defaults to the
// file name without extension.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Load(f, name)
}

// FromPositions builds a dataset from an in-memory matrix, validating that
// every frame holds the same number of entities.
func FromPositions(name string, first int, positions [][]Point) (*Dataset, error) {
	if len(positions) == 0 {
		return nil, trajerr.New(trajerr.ErrCodeInvalidDataset, "%s: no frames", name)
	}
	n := len(positions[0])
	if n == 0 {
		return nil, trajerr.New(trajerr.ErrCodeInvalidDataset, "%s: no entities", name)
	}
	for f, frame := range positions {
		if len(frame) != n {
			return nil, trajerr.New(trajerr.ErrCodeInvalidDataset,
				"%s: frame %d has %d entities, want %d", name, first+f, len(frame), n)
		}
	}
	return &Dataset{Name: name, First: first, Positions: positions}, nil
}

func isHeader(rec []string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	return err != nil
}

func parseRecord(rec []string) (observation, error) {
	var o observation
	var err error
	if o.frame, err = strconv.Atoi(strings.TrimSpace(rec[0])); err != nil {
		return o, err
	}
	if o.id, err = strconv.Atoi(strings.TrimSpace(rec[1])); err != nil {
		return o, err
	}
	if o.p.X, err = strconv.ParseFloat(strings.TrimSpace(rec[2]), 64); err != nil {
		return o, err
	}
	if o.p.Y, err = strconv.ParseFloat(strings.TrimSpace(rec[3]), 64); err != nil {
		return o, err
	}
	return o, nil
}

// build checks the contract and lays observations out densely:
// ids gapless from 0, frames contiguous, every (frame, id) exactly once.
func build(name string, obs []observation) (*Dataset, error) {
	if len(obs) == 0 {
		return nil, trajerr.New(trajerr.ErrCodeInvalidDataset, "%s: no observations", name)
	}

	frames := make(map[int]struct{})
	ids := make(map[int]struct{})
	for _, o := range obs {
		if o.id < 0 {
			return nil, trajerr.New(trajerr.ErrCodeInvalidDataset, "%s: negative entity id %d", name, o.id)
		}
		frames[o.frame] = struct{}{}
		ids[o.id] = struct{}{}
	}

	n := len(ids)
	for id := range n {
		if _, ok := ids[id]; !ok {
			return nil, trajerr.New(trajerr.ErrCodeInvalidDataset, "%s: entity ids not gapless: missing %d", name, id)
		}
	}

	sorted := make([]int, 0, len(frames))
	for f := range frames {
		sorted = append(sorted, f)
	}
	slices.Sort(sorted)
	first, last := sorted[0], sorted[len(sorted)-1]
	if last-first+1 != len(sorted) {
		for i := 1; i < len(sorted); i++ {
			if sorted[i] != sorted[i-1]+1 {
				return nil, trajerr.New(trajerr.ErrCodeInvalidDataset,
					"%s: frames not uniformly sampled: gap after frame %d", name, sorted[i-1])
			}
		}
	}

	positions := make([][]Point, len(sorted))
	seen := make([][]bool, len(sorted))
	for f := range positions {
		positions[f] = make([]Point, n)
		seen[f] = make([]bool, n)
	}
	for _, o := range obs {
		f := o.frame - first
		if seen[f][o.id] {
			return nil, trajerr.New(trajerr.ErrCodeInvalidDataset,
				"%s: duplicate observation for entity %d at frame %d", name, o.id, o.frame)
		}
		seen[f][o.id] = true
		positions[f][o.id] = o.p
	}
	for f := range seen {
		for id, ok := range seen[f] {
			if !ok {
				return nil, trajerr.New(trajerr.ErrCodeInvalidDataset,
					"%s: entity %d missing at frame %d", name, id, first+f)
			}
		}
	}

	return &Dataset{Name: name, First: first, Positions: positions}, nil
}
