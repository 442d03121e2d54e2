// Package store persists ordering results.
//
// A result is three text artifacts (orderings, groups, layers; see package
// io) that are written together and trusted only together: a load that
// finds fewer than three artifacts, or one that fails to parse, is a miss.
// Parse failures are reported as CACHE_CORRUPT so callers can log them
// before recomputing.
package store

import (
	"bytes"
	"context"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/groups"
	trajio "github.com/matzehuels/trajgroups/pkg/io"
)

// Artifact file names, also used as key suffixes by the cache-backed store.
const (
	OrderingsName = "orderings.txt"
	GroupsName    = "groups.txt"
	LayersName    = "layers.txt"
)

// Artifacts is a persisted ordering result.
type Artifacts struct {
	Layers []int
	Orders map[int][]int
	Groups []groups.Group
}

// ResultStore saves and loads artifacts by key.
type ResultStore interface {
	// Save writes all three artifacts, replacing any previous set.
	Save(ctx context.Context, key string, a *Artifacts) error

	// Load returns the artifacts and whether a complete set was found.
	Load(ctx context.Context, key string) (*Artifacts, bool, error)

	// Delete removes the artifacts. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// encoded holds the three serialized artifacts.
type encoded struct {
	orderings, groups, layers []byte
}

func encode(a *Artifacts) (encoded, error) {
	var o, g, l bytes.Buffer
	if err := trajio.WriteOrders(&o, a.Layers, a.Orders); err != nil {
		return encoded{}, err
	}
	if err := trajio.WriteGroups(&g, a.Groups); err != nil {
		return encoded{}, err
	}
	if err := trajio.WriteLayers(&l, a.Layers); err != nil {
		return encoded{}, err
	}
	return encoded{orderings: o.Bytes(), groups: g.Bytes(), layers: l.Bytes()}, nil
}

// decode parses a complete artifact set. The layer list must agree with the
// layers named in the orderings.
func decode(key string, e encoded) (*Artifacts, error) {
	orderLayers, orders, err := trajio.ReadOrders(bytes.NewReader(e.orderings))
	if err != nil {
		return nil, corrupt(key, OrderingsName, err)
	}
	gs, err := trajio.ReadGroups(bytes.NewReader(e.groups))
	if err != nil {
		return nil, corrupt(key, GroupsName, err)
	}
	layers, err := trajio.ReadLayers(bytes.NewReader(e.layers))
	if err != nil {
		return nil, corrupt(key, LayersName, err)
	}
	if len(layers) != len(orderLayers) {
		return nil, trajerr.New(trajerr.ErrCodeCacheCorrupt,
			"result %s: %d layers listed but %d ordered", key, len(layers), len(orderLayers))
	}
	for i := range layers {
		if layers[i] != orderLayers[i] {
			return nil, trajerr.New(trajerr.ErrCodeCacheCorrupt,
				"result %s: layer %d listed as %d but ordered as %d", key, i, layers[i], orderLayers[i])
		}
	}
	return &Artifacts{Layers: layers, Orders: orders, Groups: gs}, nil
}

func corrupt(key, name string, err error) error {
	return trajerr.Wrap(trajerr.ErrCodeCacheCorrupt, err, "result %s: %s", key, name)
}
