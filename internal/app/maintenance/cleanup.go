package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/simplenotify/internal/models"
	"github.com/charlesng35/simplenotify/internal/monitoring"
	"github.com/charlesng35/simplenotify/pkg/logger"
)

const (
	defaultCacheSpec       = "@every 15m"
	defaultPreferencesSpec = "@daily"

	jobCacheCleanup      = "cache_cleanup"
	jobPreferenceCleanup = "preference_cleanup"
)

// CachePurger removes expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: purging expired SQL cache rows and
// removing preference records whose subscription no longer exists.
type Cleaner struct {
	db    *gorm.DB
	cache CachePurger
	cron  *cron.Cron
	now   func() time.Time
	log   *zap.Logger

	cacheSchedule       string
	preferencesSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithPreferencesSchedule overrides the cron specification for orphaned preference cleanup.
func WithPreferencesSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.preferencesSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(db *gorm.DB, cache CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                  db,
		cache:               cache,
		now:                 time.Now,
		cacheSchedule:       defaultCacheSpec,
		preferencesSchedule: defaultPreferencesSpec,
		log:                 logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if c.cache == nil && c.db == nil {
		return nil
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			_ = c.runJob(context.Background(), jobCacheCleanup, c.purgeCache)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule cache cleanup: %w", err)
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.preferencesSchedule, func() {
			_ = c.runJob(context.Background(), jobPreferenceCleanup, c.purgePreferences)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule preference cleanup: %w", err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.cache != nil {
		errs = multierr.Append(errs, c.runJob(ctx, jobCacheCleanup, c.purgeCache))
	}
	if c.db != nil {
		errs = multierr.Append(errs, c.runJob(ctx, jobPreferenceCleanup, c.purgePreferences))
	}
	return errs
}

func (c *Cleaner) runJob(ctx context.Context, job string, fn func(context.Context) (int64, error)) error {
	start := time.Now()
	removed, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		monitoring.RecordMaintenanceRun(job, monitoring.MaintenanceResultFailure, err.Error(), duration)
		c.log.Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
		return err
	}

	monitoring.RecordMaintenanceRun(job, monitoring.MaintenanceResultSuccess, "", duration)
	if removed > 0 {
		c.log.Debug("maintenance job removed rows", zap.String("job", job), zap.Int64("removed", removed))
	}
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) (int64, error) {
	removed, err := c.cache.PurgeExpired(ctx, c.now())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return removed, nil
}

func (c *Cleaner) purgePreferences(ctx context.Context) (int64, error) {
	return CleanupOrphanedPreferences(ctx, c.db)
}

// CleanupOrphanedPreferences deletes subscription-level preference rows whose subscription is gone.
func CleanupOrphanedPreferences(ctx context.Context, db *gorm.DB) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup preferences: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	live := db.Model(&models.PushSubscription{}).Select("id")
	result := db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id NOT IN (?)", models.OwnerKindSubscription, live).
		Delete(&models.NotificationPreferences{})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup preferences: %w", result.Error)
	}
	return result.RowsAffected, nil
}
