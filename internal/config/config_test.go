package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/flowmerge/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Layout.NodeWidth != 288 || cfg.Layout.NodeHeight != 160 || cfg.Layout.Direction != "LR" {
		t.Errorf("layout defaults = %+v", cfg.Layout)
	}
}

func TestDecodeOverlaysFile(t *testing.T) {
	cfg := Default()
	err := cfg.Decode(`
[server]
addr = ":9090"
read_timeout = "5s"

[store]
backend = "sqlite"
dsn = "wf.db"

[cache]
backend = "none"

[layout]
engine = "layered"
direction = "TB"

[merge]
require_acyclic = true
tools = "tools.yaml"
`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("unset key lost its default: %v", cfg.Server.RequestTimeout)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.DSN != "wf.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Layout.NodeWidth != 288 {
		t.Errorf("node width = %v, want default kept", cfg.Layout.NodeWidth)
	}
	if cfg.Merge.Tools != "tools.yaml" {
		t.Errorf("merge tools = %q", cfg.Merge.Tools)
	}
	opts := cfg.PipelineOptions()
	if !opts.RequireAcyclic || opts.LayoutEngine != "layered" || opts.Layout.Direction != "TB" {
		t.Errorf("pipeline options = %+v", opts)
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	err := cfg.Decode("[store]\nbackend = \"file\"\nflavour = \"x\"\n")
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvStore:        "redis",
		EnvStoreDSN:     "localhost:6379",
		EnvCache:        "redis",
		EnvRedisAddr:    "cache:6379",
		EnvLayoutEngine: "layered",
		EnvAddr:         ":7000",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Store.Backend != "redis" || cfg.Store.DSN != "localhost:6379" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Addr != "cache:6379" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Layout.Engine != "layered" || cfg.Server.Addr != ":7000" {
		t.Errorf("layout/server = %q %q", cfg.Layout.Engine, cfg.Server.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"store backend", func(c *Config) { c.Store.Backend = "etcd" }},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"layout engine", func(c *Config) { c.Layout.Engine = "neato" }},
		{"direction", func(c *Config) { c.Layout.Direction = "RL" }},
		{"negative size", func(c *Config) { c.Layout.NodeWidth = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Validate() = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv(EnvAddr, "")

	// Missing default file is fine.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if cfg.Store.Backend != "file" {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}

	// Missing explicit file is not.
	if _, err := Load(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("missing explicit config accepted")
	}

	path := filepath.Join(dir, AppName, "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[store]\nbackend = \"memory\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLayoutEngine, "layered")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Backend != "memory" || cfg.Layout.Engine != "layered" {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("[layout]\ndirection = \"diagonal\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(""); !errors.IsInvalid(err) {
		t.Errorf("invalid file err = %v", err)
	}
}

func TestCacheConfigDefaultsDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	cc := Default().CacheConfig()
	if cc.Dir != filepath.Join("/tmp/xdg-cache", AppName) {
		t.Errorf("cache dir = %q", cc.Dir)
	}
}
