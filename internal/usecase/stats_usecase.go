package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/soldprice-service/internal/aggregate"
	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/pkg/metrics"
	"github.com/user/soldprice-service/pkg/money"
)

// DefaultRecentListings is the per-item window of the cross-section.
const DefaultRecentListings = 30

// StatsService serves outlier-filtered price statistics.
type StatsService interface {
	ItemStats(ctx context.Context, key entity.ItemKey, since *time.Time) (*entity.AggregateStats, error)
	CrossSection(ctx context.Context, recent int) ([]entity.AggregateStats, error)
}

type statsUseCase struct {
	reader   repository.CatalogReader
	cache    repository.StatsCacheRepository
	currency *money.Currency
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewStatsService creates a new StatsService.
func NewStatsService(
	reader repository.CatalogReader,
	cache repository.StatsCacheRepository,
	currency *money.Currency,
	m *metrics.Metrics,
	logger *zap.Logger,
) StatsService {
	return &statsUseCase{
		reader:   reader,
		cache:    cache,
		currency: currency,
		metrics:  m,
		logger:   logger,
	}
}

// ItemStats summarises the listings of key sold on or after since. Results
// are cached until the scraper commits new listings for key.
func (uc *statsUseCase) ItemStats(ctx context.Context, key entity.ItemKey, since *time.Time) (*entity.AggregateStats, error) {
	if _, err := uc.reader.GetItem(ctx, key); err != nil {
		return nil, err
	}

	version, versionErr := uc.cache.Version(ctx, key)
	cached, err := uc.cache.Get(ctx, key, since)
	switch {
	case err != nil:
		// A cache outage degrades to reading the store.
		uc.metrics.StatsCacheLookups.WithLabelValues("error").Inc()
		uc.logger.Warn("stats cache lookup failed", zap.String("item", key.String()), zap.Error(err))
	case cached != nil:
		uc.metrics.StatsCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		uc.metrics.StatsCacheLookups.WithLabelValues("miss").Inc()
	}

	listings, err := uc.reader.ListingsFor(ctx, key, since)
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", key, err)
	}
	prices := make([]int64, len(listings))
	for i, l := range listings {
		prices[i] = l.Price.Minor()
	}
	stats := uc.toAggregate(key, aggregate.Summarize(prices))

	if versionErr != nil {
		return stats, nil
	}
	if err := uc.cache.Set(ctx, key, since, version, stats); err != nil {
		uc.logger.Warn("stats cache store failed", zap.String("item", key.String()), zap.Error(err))
	}
	return stats, nil
}

// CrossSection summarises, for every item-variant with listings, its recent
// newest listings.
func (uc *statsUseCase) CrossSection(ctx context.Context, recent int) ([]entity.AggregateStats, error) {
	if recent <= 0 {
		recent = DefaultRecentListings
	}
	points, err := uc.reader.RecentPrices(ctx, recent)
	if err != nil {
		return nil, fmt.Errorf("cross-section: %w", err)
	}

	order, grouped := aggregate.GroupAndSummarize(points)
	out := make([]entity.AggregateStats, 0, len(order))
	for _, key := range order {
		out = append(out, *uc.toAggregate(key, grouped[key]))
	}
	return out, nil
}

func (uc *statsUseCase) toAggregate(key entity.ItemKey, st aggregate.Stats) *entity.AggregateStats {
	out := &entity.AggregateStats{
		Key:      key,
		Currency: uc.currency.Code,
		Total:    st.Total,
		Retained: len(st.Retained),
	}
	if st.HasData {
		mean := st.Mean
		out.MeanMinor = &mean
		out.Mean = money.New(mean, uc.currency).String()
		out.Q1Minor = st.Q1
		out.Q3Minor = st.Q3
	}
	return out
}
