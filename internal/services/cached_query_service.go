package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"weather-yield/internal/models"
	"weather-yield/pkg/metrics"
)

// CachedQueryService serves repeated reads from a short-lived in-memory
// cache. Tables only change during out-of-band batch runs, so entries may be
// stale for at most the TTL.
type CachedQueryService struct {
	next    Querier
	cache   *cache.Cache
	ttl     time.Duration
	metrics *metrics.Collector
}

var _ Querier = (*CachedQueryService)(nil)

// NewCachedQueryService wraps next. A ttl <= 0 returns next unchanged.
func NewCachedQueryService(next Querier, ttl time.Duration, metricsCollector *metrics.Collector) Querier {
	if ttl <= 0 {
		return next
	}
	return &CachedQueryService{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		ttl:     ttl,
		metrics: metricsCollector,
	}
}

func getOrLoad[T any](c *CachedQueryService, table, key string, load func() (*PageResult[T], error)) (*PageResult[T], error) {
	if v, ok := c.cache.Get(key); ok {
		if page, ok := v.(*PageResult[T]); ok {
			c.metrics.RecordCacheLookup(table, true)
			return page, nil
		}
	}
	c.metrics.RecordCacheLookup(table, false)

	page, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, page, c.ttl)
	return page, nil
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

// ListReadings implements Querier
func (c *CachedQueryService) ListReadings(ctx context.Context, q ReadingQuery) (*PageResult[models.ReadingView], error) {
	date := "-"
	if q.Date != nil {
		date = q.Date.Format(models.APIDateLayout)
	}
	key := fmt.Sprintf("readings|%s|%s|%d|%d", q.StationID, date, q.Page.Offset, q.Page.Limit)
	return getOrLoad(c, "readings", key, func() (*PageResult[models.ReadingView], error) {
		return c.next.ListReadings(ctx, q)
	})
}

// ListStats implements Querier
func (c *CachedQueryService) ListStats(ctx context.Context, q StatsQuery) (*PageResult[models.StatsView], error) {
	key := fmt.Sprintf("stats|%s|%s|%d|%d", q.StationID, optInt(q.Year), q.Page.Offset, q.Page.Limit)
	return getOrLoad(c, "stats", key, func() (*PageResult[models.StatsView], error) {
		return c.next.ListStats(ctx, q)
	})
}

// ListYield implements Querier
func (c *CachedQueryService) ListYield(ctx context.Context, q YieldQuery) (*PageResult[models.YieldRecord], error) {
	key := fmt.Sprintf("yield|%s|%d|%d", optInt(q.Year), q.Page.Offset, q.Page.Limit)
	return getOrLoad(c, "yield", key, func() (*PageResult[models.YieldRecord], error) {
		return c.next.ListYield(ctx, q)
	})
}

// HealthCheck is never cached
func (c *CachedQueryService) HealthCheck(ctx context.Context) error {
	return c.next.HealthCheck(ctx)
}
