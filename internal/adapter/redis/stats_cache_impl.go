package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/pkg/utils"
)

const (
	statsKeyPrefix   = "stats:"
	versionKeyPrefix = "stats-version:"
)

// StatsCacheRepoImpl implements repository.StatsCacheRepository with Redis strings.
type StatsCacheRepoImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient creates a Redis client and checks the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewStatsCacheRepo creates a new instance of StatsCacheRepoImpl.
func NewStatsCacheRepo(client *redis.Client, ttl time.Duration) *StatsCacheRepoImpl {
	return &StatsCacheRepoImpl{client: client, ttl: ttl}
}

// itemPrefix hashes the item key so names containing glob characters can be
// matched safely by SCAN.
func itemPrefix(key entity.ItemKey) string {
	return statsKeyPrefix + utils.HashKey(key.String()) + ":"
}

// versionKey lives outside itemPrefix so Invalidate never deletes it.
func versionKey(key entity.ItemKey) string {
	return versionKeyPrefix + utils.HashKey(key.String())
}

func generateKey(key entity.ItemKey, since *time.Time) string {
	window := "all"
	if since != nil {
		window = since.Format(time.DateOnly)
	}
	return itemPrefix(key) + window
}

// Get returns the cached statistics, or nil on a miss.
func (r *StatsCacheRepoImpl) Get(ctx context.Context, key entity.ItemKey, since *time.Time) (*entity.AggregateStats, error) {
	raw, err := r.client.Get(ctx, generateKey(key, since)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached stats for %s: %w", key, err)
	}
	var stats entity.AggregateStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decode cached stats for %s: %w", key, err)
	}
	return &stats, nil
}

// Version returns the invalidation generation of key, zero if never invalidated.
func (r *StatsCacheRepoImpl) Version(ctx context.Context, key entity.ItemKey) (int64, error) {
	return readVersion(ctx, r.client, key)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readVersion(ctx context.Context, c getter, key entity.ItemKey) (int64, error) {
	v, err := c.Get(ctx, versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stats version for %s: %w", key, err)
	}
	return v, nil
}

// Set caches stats with the configured TTL. The write is dropped when key
// was invalidated after version was read.
func (r *StatsCacheRepoImpl) Set(ctx context.Context, key entity.ItemKey, since *time.Time, version int64, stats *entity.AggregateStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats for %s: %w", key, err)
	}
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := readVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, generateKey(key, since), raw, r.ttl)
			return nil
		})
		return err
	}, versionKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// Invalidate bumps the version of key, then deletes every cached window.
func (r *StatsCacheRepoImpl) Invalidate(ctx context.Context, key entity.ItemKey) error {
	if err := r.client.Incr(ctx, versionKey(key)).Err(); err != nil {
		return fmt.Errorf("bump stats version for %s: %w", key, err)
	}
	iter := r.client.Scan(ctx, 0, itemPrefix(key)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached stats for %s: %w", key, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Ping checks the Redis connection.
func (r *StatsCacheRepoImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NopStatsCache is used when no Redis address is configured. Every lookup
// misses.
type NopStatsCache struct{}

func (NopStatsCache) Get(context.Context, entity.ItemKey, *time.Time) (*entity.AggregateStats, error) {
	return nil, nil
}

func (NopStatsCache) Version(context.Context, entity.ItemKey) (int64, error) { return 0, nil }

func (NopStatsCache) Set(context.Context, entity.ItemKey, *time.Time, int64, *entity.AggregateStats) error {
	return nil
}

func (NopStatsCache) Invalidate(context.Context, entity.ItemKey) error { return nil }

func (NopStatsCache) Ping(context.Context) error { return nil }
