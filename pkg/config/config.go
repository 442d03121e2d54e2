// Package config loads trajgroups settings from a TOML file and the
// environment.
//
// Settings are resolved in three layers, later layers winning:
//
//  1. Defaults ([Default])
//  2. The TOML file (~/.config/trajgroups/config.toml unless a path is given)
//  3. TRAJGROUPS_* environment variables ([Config.ApplyEnv])
//
// Command-line flags are applied on top by the CLI.
//
// # File Format
//
//	[grouping]
//	epsilon = 1.5
//	policy = "persistent"   # persistent | all-intervals | maximal
//	min_size = 2
//	min_duration = 0
//
//	[ordering]
//	node_limit = 200000
//	candidates = 120
//	[ordering.weights]
//	nested = 1.0
//	transition = 1.0
//	crossing = 10.0
//
//	[cache]
//	backend = "file"        # file | redis | none
//	dir = "~/.cache/trajgroups"
//	redis_addr = "localhost:6379"
//	ttl = "168h"
//
//	[store]
//	backend = "cache"       # cache | file | mongo
//	dir = "~/.local/share/trajgroups/results"
//	mongo_uri = "mongodb://localhost:27017"
//	mongo_database = "trajgroups"
//
//	[server]
//	addr = ":8080"
//	runs_dir = ""           # empty keeps run records in memory
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	trajerr "github.com/matzehuels/trajgroups/pkg/errors"
	"github.com/matzehuels/trajgroups/pkg/groups"
	"github.com/matzehuels/trajgroups/pkg/ordering"
	"github.com/matzehuels/trajgroups/pkg/pipeline"
	"github.com/matzehuels/trajgroups/pkg/solver"
)

// appName is the directory name used under the XDG base directories.
const appName = "trajgroups"

// Backend names.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendCache = "cache"
	BackendMongo = "mongo"
)

// Config is the complete configuration.
type Config struct {
	Grouping GroupingConfig `toml:"grouping"`
	Ordering OrderingConfig `toml:"ordering"`
	Cache    CacheConfig    `toml:"cache"`
	Store    StoreConfig    `toml:"store"`
	Server   ServerConfig   `toml:"server"`
}

// GroupingConfig configures graph construction and group selection.
type GroupingConfig struct {
	Epsilon     float64 `toml:"epsilon"`
	Policy      string  `toml:"policy"`
	MinSize     int     `toml:"min_size"`
	MinDuration int     `toml:"min_duration"`
}

// OrderingConfig configures the ordering stage.
type OrderingConfig struct {
	Weights    ordering.Weights `toml:"weights"`
	NodeLimit  int              `toml:"node_limit"`
	Candidates int              `toml:"candidates"`
}

// CacheConfig selects the critical-graph cache.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

// StoreConfig selects the result store.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	RunsDir string `toml:"runs_dir"`
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Grouping: GroupingConfig{
			Epsilon: 1,
			Policy:  pipeline.DefaultPolicy,
		},
		Ordering: OrderingConfig{
			Weights:    ordering.DefaultWeights(),
			NodeLimit:  solver.DefaultNodeLimit,
			Candidates: ordering.DefaultCandidates,
		},
		Cache: CacheConfig{
			Backend:   BackendFile,
			Dir:       xdgDir("XDG_CACHE_HOME", ".cache"),
			RedisAddr: "localhost:6379",
			TTL:       Duration{pipeline.TTLGraph},
		},
		Store: StoreConfig{
			Backend:       BackendCache,
			Dir:           filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "results"),
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: appName,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// DefaultPath returns ~/.config/trajgroups/config.toml, honoring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.toml")
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, fallback, appName)
}

// Load reads the configuration. An empty path means DefaultPath, which may
// be absent; an explicit path must exist. Environment overrides are
// applied and the result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return finish(cfg)
		}
		return nil, trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "config %s", path)
	}
	return finish(cfg)
}

// Parse decodes TOML from r on top of the defaults and validates the
// result. The environment is not consulted.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// ApplyEnv overrides settings from TRAJGROUPS_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"TRAJGROUPS_POLICY":         &c.Grouping.Policy,
		"TRAJGROUPS_CACHE_BACKEND":  &c.Cache.Backend,
		"TRAJGROUPS_CACHE_DIR":      &c.Cache.Dir,
		"TRAJGROUPS_REDIS_ADDR":     &c.Cache.RedisAddr,
		"TRAJGROUPS_STORE_BACKEND":  &c.Store.Backend,
		"TRAJGROUPS_STORE_DIR":      &c.Store.Dir,
		"TRAJGROUPS_MONGO_URI":      &c.Store.MongoURI,
		"TRAJGROUPS_MONGO_DATABASE": &c.Store.MongoDatabase,
		"TRAJGROUPS_ADDR":           &c.Server.Addr,
		"TRAJGROUPS_RUNS_DIR":       &c.Server.RunsDir,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TRAJGROUPS_MIN_SIZE":     &c.Grouping.MinSize,
		"TRAJGROUPS_MIN_DURATION": &c.Grouping.MinDuration,
		"TRAJGROUPS_NODE_LIMIT":   &c.Ordering.NodeLimit,
		"TRAJGROUPS_CANDIDATES":   &c.Ordering.Candidates,
	}
	for name, dst := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "%s", name)
			}
			*dst = n
		}
	}

	if v, ok := lookup("TRAJGROUPS_EPSILON"); ok {
		eps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "TRAJGROUPS_EPSILON")
		}
		c.Grouping.Epsilon = eps
	}
	if v, ok := lookup("TRAJGROUPS_CACHE_TTL"); ok {
		if err := c.Cache.TTL.UnmarshalText([]byte(v)); err != nil {
			return trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "TRAJGROUPS_CACHE_TTL")
		}
	}
	return nil
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	if err := pipeline.ValidateEpsilon(c.Grouping.Epsilon); err != nil {
		return err
	}
	if _, err := groups.PolicyByName(c.Grouping.Policy); err != nil {
		return trajerr.Wrap(trajerr.ErrCodeInvalidOption, err, "grouping.policy")
	}
	w := c.Ordering.Weights
	if w.Nested < 0 || w.Transition < 0 || w.Crossing < 0 {
		return trajerr.New(trajerr.ErrCodeInvalidOption, "ordering.weights must be non-negative")
	}
	switch c.Cache.Backend {
	case BackendNone, BackendFile, BackendRedis:
	default:
		return trajerr.New(trajerr.ErrCodeInvalidOption, "cache.backend %q (want none, file or redis)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case BackendCache, BackendFile, BackendMongo:
	default:
		return trajerr.New(trajerr.ErrCodeInvalidOption, "store.backend %q (want cache, file or mongo)", c.Store.Backend)
	}
	return nil
}

// PipelineOptions returns the pipeline options described by the grouping
// and ordering sections.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Epsilon:     c.Grouping.Epsilon,
		Policy:      c.Grouping.Policy,
		MinSize:     c.Grouping.MinSize,
		MinDuration: c.Grouping.MinDuration,
		Weights:     c.Ordering.Weights,
		NodeLimit:   c.Ordering.NodeLimit,
		Candidates:  c.Ordering.Candidates,
	}
}

// String summarizes the backends for log lines.
func (c *Config) String() string {
	return fmt.Sprintf("cache=%s store=%s", c.Cache.Backend, c.Store.Backend)
}
