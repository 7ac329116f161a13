package repository

import (
	"context"
	"time"

	"github.com/user/soldprice-service/internal/entity"
)

// StatsCacheRepository caches aggregate statistics per item-variant.
type StatsCacheRepository interface {
	// Get reports a miss with a nil result and nil error.
	Get(ctx context.Context, key entity.ItemKey, since *time.Time) (*entity.AggregateStats, error)
	// Version returns the invalidation generation of key.
	Version(ctx context.Context, key entity.ItemKey) (int64, error)
	// Set stores stats only while key is still at version, so a read that
	// raced an Invalidate is not cached.
	Set(ctx context.Context, key entity.ItemKey, since *time.Time, version int64, stats *entity.AggregateStats) error
	// Invalidate bumps the version of key and drops every cached entry of it.
	Invalidate(ctx context.Context, key entity.ItemKey) error
	Ping(ctx context.Context) error
}
