// Package cache stores intermediate pipeline artifacts under content-derived
// keys.
//
// Two artifacts are cached: the compacted critical graph of a dataset at a
// given epsilon, and the ordering result computed from that graph. Keys are
// built by a [Keyer] from the dataset's content hash and every option that
// influences the artifact, so a hit is always safe to reuse.
//
// Backends:
//   - [FileCache]: JSON entries on disk, used by the CLI
//   - [RedisCache]: shared cache for the API server
//   - [NullCache]: disables caching
//
// An unreadable entry is treated as a miss and recomputed. Backends never
// retry.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the stored data and whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// Keyer derives cache keys for pipeline artifacts.
type Keyer interface {
	// GraphKey identifies a critical graph built from a dataset.
	GraphKey(datasetHash string, opts GraphKeyOpts) string

	// ResultKey identifies an ordering result computed from a cached graph.
	ResultKey(graphKey string, opts ResultKeyOpts) string
}

// GraphKeyOpts are the options that change a critical graph.
type GraphKeyOpts struct {
	Epsilon float64 `json:"epsilon"`
	Compact bool    `json:"compact"`
}

// ResultKeyOpts are the options that change an ordering result.
type ResultKeyOpts struct {
	Policy      string     `json:"policy"`
	MinSize     int        `json:"min_size"`
	MinDuration int        `json:"min_duration"`
	Weights     [3]float64 `json:"weights"`
	NodeLimit   int        `json:"node_limit"`
	Candidates  int        `json:"candidates"`
}

// DefaultKeyer builds keys as "<kind>:<sha256 of the inputs>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// GraphKey implements Keyer.
func (DefaultKeyer) GraphKey(datasetHash string, opts GraphKeyOpts) string {
	return hashKey("graph", datasetHash, opts)
}

// ResultKey implements Keyer.
func (DefaultKeyer) ResultKey(graphKey string, opts ResultKeyOpts) string {
	return hashKey("result", graphKey, opts)
}

var _ Keyer = DefaultKeyer{}
