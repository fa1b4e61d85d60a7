package store

import (
	"context"

	"github.com/matzehuels/flowmerge/pkg/cache"
	"github.com/matzehuels/flowmerge/pkg/errors"
)

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Backends lists every backend name in display order.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendRedis, BackendMongo}

// Config selects and configures a backend.
type Config struct {
	Backend  string `toml:"backend"`
	DSN      string `toml:"dsn"`      // sqlite path, redis address or mongodb uri
	Dir      string `toml:"dir"`      // file backend directory
	Database string `toml:"database"` // mongodb database
	Prefix   string `toml:"prefix"`   // redis key prefix
}

// Open creates the configured store. An empty backend means file.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		s, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "open file store")
		}
		return s, nil
	case BackendSQLite:
		path := cfg.DSN
		if path == "" {
			path = "flowmerge.db"
		}
		s, err := NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		client, err := cache.NewRedisClient(cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "redis store address")
		}
		if err := cache.Ping(ctx, client); err != nil {
			client.Close()
			return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect redis store")
		}
		s := NewRedisStore(client, cfg.Prefix)
		s.owned = true
		return s, nil
	case BackendMongo:
		var s *MongoStore
		err := cache.RetryWithBackoff(ctx, func() error {
			var err error
			s, err = ConnectMongo(ctx, cfg.DSN, cfg.Database)
			if errors.Is(err, errors.ErrCodeStorage) {
				return cache.Retryable(err)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown store backend %q (want one of %v)", cfg.Backend, Backends)
}
