package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/retroludo/retrodex/internal/media"
	"github.com/retroludo/retrodex/internal/services"
	"github.com/retroludo/retrodex/pkg/logger"
	"github.com/retroludo/retrodex/pkg/metrics"
)

const (
	defaultPurgeGrace  = 7 * 24 * time.Hour
	defaultMediaSpec   = "@daily"
	defaultSessionSpec = "@hourly"
)

// Cleaner coordinates background maintenance: deleting media cache rows that
// expired past the grace window and removing stale auth sessions. A nil
// dependency skips the corresponding job.
type Cleaner struct {
	store    media.Store
	sessions *services.SessionService
	cron     *cron.Cron
	log      *zap.Logger

	purgeGrace      time.Duration
	mediaSchedule   string
	sessionSchedule string
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

// WithPurgeGrace adjusts how long expired media cache rows linger before the
// purge removes them.
func WithPurgeGrace(grace time.Duration) Option {
	return func(cleaner *Cleaner) {
		if grace >= 0 {
			cleaner.purgeGrace = grace
		}
	}
}

// WithMediaSchedule overrides the cron specification for media cache purging.
func WithMediaSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.mediaSchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(store media.Store, sessions *services.SessionService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:           store,
		sessions:        sessions,
		purgeGrace:      defaultPurgeGrace,
		mediaSchedule:   defaultMediaSpec,
		sessionSchedule: defaultSessionSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler if at least one
// job is enabled.
func (c *Cleaner) Start() error {
	if c.store == nil && c.sessions == nil {
		return nil
	}

	if c.store != nil {
		if _, err := c.cron.AddFunc(c.mediaSchedule, func() {
			if _, err := c.purgeMediaCache(context.Background()); err != nil {
				c.log.Warn("media cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			if _, err := c.sessions.CleanupExpired(context.Background()); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.store != nil {
		if _, err := c.purgeMediaCache(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) purgeMediaCache(ctx context.Context) (int64, error) {
	removed, err := c.store.PurgeExpired(ctx, c.purgeGrace)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		metrics.MediaCachePurged.Add(float64(removed))
		c.log.Info("purged expired media cache entries", zap.Int64("removed", removed))
	}
	return removed, nil
}
