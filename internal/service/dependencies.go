package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-census/internal/domain"
	"wisefido-census/internal/metrics"
	"wisefido-census/internal/notify"
	"wisefido-census/internal/repository"
	"wisefido-census/internal/store"
)

// Dependencies collaborators shared by the census services.
// Cache, Publisher and Metrics are optional.
type Dependencies struct {
	Records   repository.ShiftRecordsRepository
	Summaries repository.DailySummariesRepository
	Wards     repository.WardsRepository

	Cache    store.KV
	CacheTTL time.Duration

	Publisher notify.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// Now defaults to time.Now().UTC.
	Now func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string

	// RollupConcurrency caps per-ward summary computations running at once (default 4).
	RollupConcurrency int
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = notify.Nop{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	if d.RollupConcurrency <= 0 {
		d.RollupConcurrency = 4
	}
	return d
}

// rollupCache KV-backed rollup cache; every failure is logged and treated as a miss.
// invalidate also stamps the date, and a cached rollup whose build started at or
// before that stamp is discarded, so a build racing a write never outlives it.
type rollupCache struct {
	kv      store.KV
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func newRollupCache(d Dependencies) *rollupCache {
	return &rollupCache{kv: d.Cache, ttl: d.CacheTTL, now: d.Now, logger: d.Logger, metrics: d.Metrics}
}

func (c *rollupCache) get(ctx context.Context, date string) (*domain.DailyRollup, bool) {
	if c.kv == nil {
		return nil, false
	}
	raw, err := c.kv.Get(ctx, store.RollupKey(date))
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			c.metrics.RollupCache("miss")
		} else {
			c.metrics.RollupCache("error")
			c.logger.Warn("Rollup cache read failed", zap.String("date", date), zap.Error(err))
		}
		return nil, false
	}
	var r domain.DailyRollup
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		c.metrics.RollupCache("error")
		c.logger.Warn("Discarding undecodable cached rollup", zap.String("date", date), zap.Error(err))
		return nil, false
	}
	if c.stale(ctx, &r) {
		c.metrics.RollupCache("stale")
		return nil, false
	}
	c.metrics.RollupCache("hit")
	return &r, true
}

// stale reports whether the date was invalidated after r's build started.
func (c *rollupCache) stale(ctx context.Context, r *domain.DailyRollup) bool {
	raw, err := c.kv.Get(ctx, store.RollupStampKey(r.Date))
	switch {
	case errors.Is(err, store.ErrMiss):
		return false
	case err != nil:
		c.logger.Warn("Rollup invalidation stamp read failed", zap.String("date", r.Date), zap.Error(err))
		return true
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true
	}
	return !time.Unix(0, nanos).Before(r.GeneratedAt)
}

func (c *rollupCache) set(ctx context.Context, r *domain.DailyRollup) {
	if c.kv == nil {
		return
	}
	b, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("Failed to encode rollup for cache", zap.String("date", r.Date), zap.Error(err))
		return
	}
	if err := c.kv.Set(ctx, store.RollupKey(r.Date), string(b), c.ttl); err != nil {
		c.logger.Warn("Rollup cache write failed", zap.String("date", r.Date), zap.Error(err))
	}
}

func (c *rollupCache) invalidate(ctx context.Context, date string) {
	if c.kv == nil {
		return
	}
	// the stamp outlives any rollup a racing build may still write
	stamp := strconv.FormatInt(c.now().UnixNano(), 10)
	if err := c.kv.Set(ctx, store.RollupStampKey(date), stamp, 2*c.ttl); err != nil {
		c.logger.Warn("Rollup invalidation stamp write failed", zap.String("date", date), zap.Error(err))
	}
	if err := c.kv.Delete(ctx, store.RollupKey(date)); err != nil {
		c.logger.Warn("Rollup cache invalidation failed", zap.String("date", date), zap.Error(err))
	}
}

// publish delivers ev after the write committed. Failures are logged only.
func publish(ctx context.Context, p notify.Publisher, logger *zap.Logger, ev notify.Event) {
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("Failed to publish census event",
			zap.String("type", ev.Type),
			zap.String("ward_id", ev.WardID),
			zap.String("date", ev.Date),
			zap.Error(err),
		)
	}
}

// outcome maps an operation result onto a metrics outcome label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrVersionConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSequenceViolation),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNegativeCensus),
		errors.Is(err, domain.ErrIncomplete),
		errors.Is(err, domain.ErrAlreadyAttested),
		errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
