package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"QuantSentinel/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares snapshots between instances. Values are JSON; Expiry
// bounds how long a snapshot may be served stale, not its freshness.
type RedisStore struct {
	client *redis.Client
	prefix string
	expiry time.Duration
}

// NewRedisStore connects to addr and pings it once.
func NewRedisStore(ctx context.Context, addr, password string, db int, expiry time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: "quant:snapshot:", expiry: expiry}, nil
}

func (r *RedisStore) key(symbol string, kind model.Kind) string {
	return r.prefix + string(kind) + ":" + symbol
}

func (r *RedisStore) Load(ctx context.Context, symbol string, kind model.Kind) (*model.Snapshot, error) {
	raw, err := r.client.Get(ctx, r.key(symbol, kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisStore) Save(ctx context.Context, snap *model.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key(snap.Symbol, snap.Kind), raw, r.expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
