// Package config loads flowmerge settings from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file, FLOWMERGE_*
// environment variables, then command-line flags (applied by the caller).
//
//	[server]
//	addr = ":8080"
//	read_timeout = "15s"
//
//	[store]
//	backend = "sqlite"
//	dsn = "/var/lib/flowmerge/workflows.db"
//
//	[cache]
//	backend = "redis"
//	addr = "localhost:6379"
//	ttl = "168h"
//
//	[layout]
//	engine = "graphviz"
//	direction = "LR"
//
//	[merge]
//	require_acyclic = true
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/flowmerge/pkg/cache"
	"github.com/matzehuels/flowmerge/pkg/errors"
	"github.com/matzehuels/flowmerge/pkg/layout"
	"github.com/matzehuels/flowmerge/pkg/pipeline"
	"github.com/matzehuels/flowmerge/pkg/store"
)

// AppName names the config, cache and data directories.
const AppName = "flowmerge"

// Environment variables read by [Config.ApplyEnv].
const (
	EnvStore        = "FLOWMERGE_STORE"
	EnvStoreDSN     = "FLOWMERGE_STORE_DSN"
	EnvCache        = "FLOWMERGE_CACHE"
	EnvRedisAddr    = "FLOWMERGE_REDIS_ADDR"
	EnvLayoutEngine = "FLOWMERGE_LAYOUT_ENGINE"
	EnvAddr         = "FLOWMERGE_ADDR"
)

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultReadTimeout    = 15 * time.Second
	DefaultRequestTimeout = 60 * time.Second
)

// Config is the full set of settings.
type Config struct {
	Server ServerConfig `toml:"server"`
	Store  store.Config `toml:"store"`
	Cache  CacheConfig  `toml:"cache"`
	Layout LayoutConfig `toml:"layout"`
	Merge  MergeConfig  `toml:"merge"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `toml:"addr"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// CacheConfig configures the layout cache.
type CacheConfig struct {
	Backend string        `toml:"backend"`
	Dir     string        `toml:"dir"`
	TTL     time.Duration `toml:"ttl"`
	Addr    string        `toml:"addr"`
	Prefix  string        `toml:"prefix"`
}

// LayoutConfig configures the layout engine and geometry.
type LayoutConfig struct {
	Engine     string  `toml:"engine"`
	Direction  string  `toml:"direction"`
	NodeWidth  float64 `toml:"node_width"`
	NodeHeight float64 `toml:"node_height"`
	NodeSep    float64 `toml:"node_sep"`
	RankSep    float64 `toml:"rank_sep"`
}

// MergeConfig configures merge policy.
type MergeConfig struct {
	RequireAcyclic bool `toml:"require_acyclic"`
	// Tools is a tool catalog file. Tool nodes that only name a tool id
	// are completed from it.
	Tools string `toml:"tools"`
}

// Default returns the built-in settings: file store, file cache, graphviz
// layout left to right.
func Default() Config {
	geo := layout.DefaultOptions()
	return Config{
		Server: ServerConfig{
			Addr:           DefaultAddr,
			ReadTimeout:    DefaultReadTimeout,
			RequestTimeout: DefaultRequestTimeout,
		},
		Store: store.Config{Backend: store.BackendFile},
		Cache: CacheConfig{Backend: cache.BackendFile, TTL: pipeline.DefaultLayoutTTL},
		Layout: LayoutConfig{
			Engine:     pipeline.DefaultLayoutEngine,
			Direction:  geo.Direction,
			NodeWidth:  geo.NodeWidth,
			NodeHeight: geo.NodeHeight,
			NodeSep:    geo.NodeSep,
			RankSep:    geo.RankSep,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/flowmerge/config.toml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns $XDG_CACHE_HOME/flowmerge, falling back to ~/.cache.
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}

// Load reads defaults, then path, then the environment. An empty path
// means [DefaultPath], which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.Decode(string(data)); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// Decode overlays TOML text onto cfg. Keys the text does not mention keep
// their current values; unknown keys are an error.
func (c *Config) Decode(text string) error {
	md, err := toml.Decode(text, c)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return errors.New(errors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overlays FLOWMERGE_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvStore, &c.Store.Backend)
	set(EnvStoreDSN, &c.Store.DSN)
	set(EnvCache, &c.Cache.Backend)
	set(EnvRedisAddr, &c.Cache.Addr)
	set(EnvLayoutEngine, &c.Layout.Engine)
	set(EnvAddr, &c.Server.Addr)
}

// Validate rejects unknown backends, engines and directions.
func (c Config) Validate() error {
	if !slices.Contains(store.Backends, c.Store.Backend) {
		return invalid("store.backend", c.Store.Backend, store.Backends)
	}
	cacheBackends := []string{cache.BackendNone, cache.BackendFile, cache.BackendRedis}
	if !slices.Contains(cacheBackends, c.Cache.Backend) {
		return invalid("cache.backend", c.Cache.Backend, cacheBackends)
	}
	engines := []string{"graphviz", "dot", "layered"}
	if !slices.Contains(engines, strings.ToLower(c.Layout.Engine)) {
		return invalid("layout.engine", c.Layout.Engine, engines)
	}
	directions := []string{layout.DirectionLR, layout.DirectionTB}
	if !slices.Contains(directions, strings.ToUpper(c.Layout.Direction)) {
		return invalid("layout.direction", c.Layout.Direction, directions)
	}
	for key, v := range map[string]float64{
		"layout.node_width":  c.Layout.NodeWidth,
		"layout.node_height": c.Layout.NodeHeight,
		"layout.node_sep":    c.Layout.NodeSep,
		"layout.rank_sep":    c.Layout.RankSep,
	} {
		if v < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "%s must not be negative, got %s", key, strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return nil
}

func invalid(key, got string, want []string) error {
	return errors.New(errors.ErrCodeInvalidInput, "%s must be one of %s, got %q", key, strings.Join(want, ", "), got)
}

// LayoutOptions returns the layout geometry.
func (c Config) LayoutOptions() layout.Options {
	return layout.Options{
		Direction:  c.Layout.Direction,
		NodeWidth:  c.Layout.NodeWidth,
		NodeHeight: c.Layout.NodeHeight,
		NodeSep:    c.Layout.NodeSep,
		RankSep:    c.Layout.RankSep,
	}.WithDefaults()
}

// PipelineOptions returns the runner options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		LayoutEngine:   strings.ToLower(c.Layout.Engine),
		Layout:         c.LayoutOptions(),
		LayoutTTL:      c.Cache.TTL,
		RequireAcyclic: c.Merge.RequireAcyclic,
	}
}

// CacheConfig returns the cache backend settings. The file backend
// defaults to [CacheDir].
func (c Config) CacheConfig() cache.Config {
	dir := c.Cache.Dir
	if dir == "" && c.Cache.Backend == cache.BackendFile {
		if d, err := CacheDir(); err == nil {
			dir = d
		}
	}
	return cache.Config{
		Backend: c.Cache.Backend,
		Dir:     dir,
		Addr:    c.Cache.Addr,
		Prefix:  c.Cache.Prefix,
	}
}
