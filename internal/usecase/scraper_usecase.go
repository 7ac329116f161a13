package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/pkg/metrics"
)

// UnitExtractor extracts the listings of one item-variant.
type UnitExtractor interface {
	Extract(ctx context.Context, session repository.Session, item entity.CatalogItem, watermark *time.Time) (*Extraction, error)
}

// ScraperConfig controls sweep pacing and failure handling.
type ScraperConfig struct {
	SleepInterval time.Duration
	ScreenshotDir string
	// ContinueOnError starts a new sweep from the checkpoint after a failed
	// one instead of stopping the scraper.
	ContinueOnError bool
}

// Scraper sweeps the catalog repeatedly, committing new listings for every
// item-variant and recording progress so a restart resumes mid-sweep.
type Scraper struct {
	catalog     *entity.Catalog
	listings    repository.ListingRepository
	checkpoints repository.CheckpointRepository
	cache       repository.StatsCacheRepository
	sessions    repository.SessionFactory
	extractor   UnitExtractor
	cfg         ScraperConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewScraper creates a new Scraper.
func NewScraper(
	catalog *entity.Catalog,
	listings repository.ListingRepository,
	checkpoints repository.CheckpointRepository,
	cache repository.StatsCacheRepository,
	sessions repository.SessionFactory,
	extractor UnitExtractor,
	cfg ScraperConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scraper {
	return &Scraper{
		catalog:     catalog,
		listings:    listings,
		checkpoints: checkpoints,
		cache:       cache,
		sessions:    sessions,
		extractor:   extractor,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Run sweeps until ctx is cancelled or a sweep fails. Cancellation is a
// clean stop and returns nil.
func (s *Scraper) Run(ctx context.Context) error {
	if err := s.listings.EnsureCatalogLoaded(ctx, s.catalog); err != nil {
		return fmt.Errorf("load catalog into store: %w", err)
	}
	units := s.catalog.Units()
	if len(units) == 0 {
		return errors.New("catalog has no item-variants to scrape")
	}

	start, err := s.resumeIndex(ctx, units)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := s.sweep(ctx, units, start)
		if err != nil && ctx.Err() != nil {
			s.metrics.SweepsTotal.WithLabelValues("cancelled").Inc()
			s.logger.Info("scraper stopped during sweep")
			return nil
		}
		if err != nil {
			s.metrics.SweepsTotal.WithLabelValues("failed").Inc()
			if !s.cfg.ContinueOnError {
				return err
			}
			s.logger.Error("sweep failed, resuming from checkpoint after sleep", zap.Error(err))
			if !s.sleep(ctx) {
				return nil
			}
			if start, err = s.resumeIndex(ctx, units); err != nil {
				return err
			}
			continue
		}

		s.metrics.SweepsTotal.WithLabelValues("completed").Inc()
		start = 0
		if !s.sleep(ctx) {
			s.logger.Info("scraper stopped")
			return nil
		}
	}
}

func (s *Scraper) resumeIndex(ctx context.Context, units []entity.CatalogItem) (int, error) {
	cp, err := s.checkpoints.LoadCheckpoint(ctx)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}
	idx, ok := entity.ResumeIndex(units, cp)
	if !ok {
		s.logger.Warn("checkpoint names an item-variant missing from the catalog, starting from the top",
			zap.String("checkpoint", cp.Key().String()))
	} else if cp != nil {
		s.logger.Info("resuming sweep", zap.String("after", cp.Key().String()), zap.Int("index", idx))
	}
	return idx, nil
}

// sweep processes units[start:] on one fresh browser session.
func (s *Scraper) sweep(ctx context.Context, units []entity.CatalogItem, start int) error {
	log := s.logger.With(zap.String("sweep_id", uuid.NewString()))

	session, err := s.sessions.Open(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("close browser session", zap.Error(err))
		}
	}()

	log.Info("sweep started", zap.Int("from", start), zap.Int("units", len(units)))
	for i := start; i < len(units); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.metrics.SweepPosition.Set(float64(i))
		if err := s.scrapeUnit(ctx, session, units[i], log); err != nil {
			return err
		}
	}

	if err := s.checkpoints.ClearCheckpoint(ctx); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	log.Info("sweep completed")
	return nil
}

func (s *Scraper) scrapeUnit(ctx context.Context, session repository.Session, unit entity.CatalogItem, log *zap.Logger) error {
	key := unit.Key()
	log = log.With(zap.String("item", key.String()))

	watermark, err := s.listings.LastKnownListingDate(ctx, key)
	if err != nil {
		s.metrics.UnitsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return fmt.Errorf("watermark for %s: %w", key, err)
	}

	started := s.now()
	res, err := s.extractor.Extract(ctx, session, unit, watermark)
	if err != nil {
		s.metrics.UnitsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		if ctx.Err() == nil {
			s.captureScreenshot(ctx, session, log)
		}
		return fmt.Errorf("extract %s: %w", key, err)
	}
	s.metrics.UnitDuration.WithLabelValues(string(res.State)).Observe(s.now().Sub(started).Seconds())

	if len(res.Listings) == 0 {
		s.metrics.UnitsTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		log.Debug("no new listings", zap.String("state", string(res.State)))
		return nil
	}

	if err := s.listings.CommitListings(ctx, key, res.Listings); err != nil {
		s.metrics.UnitsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return err
	}
	s.metrics.UnitsTotal.WithLabelValues(metrics.OutcomeCommitted).Inc()
	s.metrics.ListingsCommitted.Add(float64(len(res.Listings)))
	log.Info("listings committed", zap.Int("count", len(res.Listings)), zap.Int("pages", res.Pages))

	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Warn("invalidate cached stats", zap.Error(err))
	}
	return nil
}

// captureScreenshot saves the current page as <ScreenshotDir>/<RFC3339>.png.
// Failures are logged and otherwise ignored.
func (s *Scraper) captureScreenshot(ctx context.Context, session repository.Session, log *zap.Logger) {
	if s.cfg.ScreenshotDir == "" {
		return
	}
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	png, err := session.Screenshot(shotCtx)
	if err != nil {
		log.Warn("capture screenshot", zap.Error(err))
		return
	}
	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0o755); err != nil {
		log.Warn("create screenshot dir", zap.Error(err))
		return
	}
	path := filepath.Join(s.cfg.ScreenshotDir, s.now().UTC().Format(time.RFC3339)+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		log.Warn("write screenshot", zap.Error(err))
		return
	}
	log.Info("screenshot saved", zap.String("path", path))
}

// sleep waits for the sweep interval. It reports false when ctx ended first.
func (s *Scraper) sleep(ctx context.Context) bool {
	if s.cfg.SleepInterval <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(s.cfg.SleepInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
