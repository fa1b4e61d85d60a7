package cache

import (
	"context"
	"fmt"
	"strings"
)

// Backends.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Dir     string // file backend
	Addr    string // redis backend
	Prefix  string // redis backend
}

// Open creates the configured cache. An empty backend disables caching.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file cache needs a directory")
		}
		c, err := NewFileCache(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendRedis:
		c, err := DialRedis(ctx, cfg.Addr, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q (want none, file or redis)", cfg.Backend)
}
