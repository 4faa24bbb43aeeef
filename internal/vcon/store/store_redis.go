package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vcon/pkg/vcon"
)

const redisKeyPrefix = "vcon:doc:"

// RedisStore keeps documents as string values under vcon:doc:<uuid>.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTL expires documents after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Create uses SET NX so concurrent creates of one uuid have a single winner.
func (s *RedisStore) Create(ctx context.Context, v *vcon.Vcon) error {
	id, doc, err := encode(v)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKey(id), doc, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create vcon: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// Update uses SET XX and keeps the remaining TTL.
func (s *RedisStore) Update(ctx context.Context, v *vcon.Vcon) error {
	id, doc, err := encode(v)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, redisKey(id), doc, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("update vcon: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*vcon.Vcon, error) {
	doc, err := s.client.Get(ctx, redisKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vcon: %w", err)
	}
	return decode(id, doc)
}

// GetMany issues a single MGET.
func (s *RedisStore) GetMany(ctx context.Context, ids []string) (map[string]*vcon.Vcon, error) {
	out := make(map[string]*vcon.Vcon, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get vcons: %w", err)
	}
	for i, val := range vals {
		doc, ok := val.(string)
		if !ok {
			continue
		}
		v, err := decode(ids[i], doc)
		if err != nil {
			return nil, err
		}
		out[ids[i]] = v
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete vcon: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
