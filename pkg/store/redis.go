package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// RedisStore keeps each document as a JSON string at <prefix>workflow:<id>
// and tracks ids in the set <prefix>workflows. Saves run under WATCH so a
// concurrent writer aborts the transaction instead of overwriting.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// NewRedisStore wraps an existing client. The caller keeps ownership.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string { return s.prefix + "workflow:" + id }
func (s *RedisStore) index() string        { return s.prefix + "workflows" }

func (s *RedisStore) Get(ctx context.Context, id string) (*workflow.Document, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storageErr(err, "redis get %q", id)
	}
	return restore(data)
}

func (s *RedisStore) Save(ctx context.Context, doc *workflow.Document) error {
	if err := prepare(doc); err != nil {
		return err
	}
	key := s.key(doc.ID)
	out := doc.Clone()

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		var stored int64
		data, err := tx.Get(ctx, key).Bytes()
		exists := err == nil
		switch {
		case err == redis.Nil:
		case err != nil:
			return err
		default:
			prev, err := restore(data)
			if err != nil {
				return err
			}
			stored = prev.Version
		}
		if err := checkVersion(doc, exists, stored); err != nil {
			return err
		}

		out.Version, out.UpdatedAt = next(doc)
		payload, err := snapshot(out)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.index(), doc.ID)
			return nil
		})
		return err
	}, key)

	if err == redis.TxFailedErr {
		return raced(doc.ID)
	}
	if err != nil {
		return storageErr(err, "redis save %q", doc.ID)
	}
	doc.Version, doc.UpdatedAt = out.Version, out.UpdatedAt
	return nil
}

func (s *RedisStore) SaveStructure(ctx context.Context, id string, st Structure) (*workflow.Document, error) {
	return saveStructure(ctx, s, id, st)
}

func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, storageErr(err, "redis list")
	}
	out := make([]Summary, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storageErr(err, "redis list")
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := restore([]byte(raw))
		if err != nil {
			continue
		}
		out = append(out, Summarize(doc))
	}
	sortSummaries(out)
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return storageErr(err, "redis delete %q", id)
	}
	if err := s.client.SRem(ctx, s.index(), id).Err(); err != nil {
		return storageErr(err, "redis delete %q", id)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// Close closes the client if the store created it.
func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
