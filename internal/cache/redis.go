package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"blackout-watch/internal/models"
)

const snapshotPrefix = "sched:"

// snapshotTTL bounds how long a stale snapshot survives a dead worker. It is
// far longer than any poll interval, so a healthy worker always refreshes first.
const snapshotTTL = 48 * time.Hour

// Redis is a Store backed by Redis, shared between the worker processes.
type Redis struct {
	Client *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

func (r *Redis) Put(ctx context.Context, key models.AddressKey, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	return r.Client.Set(ctx, snapshotPrefix+key.String(), data, snapshotTTL).Err()
}

func (r *Redis) Get(ctx context.Context, key models.AddressKey) (Entry, bool, error) {
	val, err := r.Client.Get(ctx, snapshotPrefix+key.String()).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return Entry{}, false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return e, true, nil
}

// Keys returns every cached address key (without the storage prefix).
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.Client.Scan(ctx, 0, snapshotPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(snapshotPrefix):])
	}
	return keys, iter.Err()
}
