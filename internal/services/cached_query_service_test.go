package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-yield/internal/models"
	"weather-yield/pkg/metrics"
)

// countingQuerier records how often each read reaches it
type countingQuerier struct {
	calls  int
	err    error
	health error
}

func (c *countingQuerier) ListReadings(_ context.Context, q ReadingQuery) (*PageResult[models.ReadingView], error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return newPageResult([]models.ReadingView{{WeatherStation: q.StationID}}, 1, q.Page), nil
}

func (c *countingQuerier) ListStats(_ context.Context, q StatsQuery) (*PageResult[models.StatsView], error) {
	c.calls++
	return newPageResult([]models.StatsView{}, 0, q.Page), nil
}

func (c *countingQuerier) ListYield(_ context.Context, q YieldQuery) (*PageResult[models.YieldRecord], error) {
	c.calls++
	return newPageResult([]models.YieldRecord{{RecordYear: 1985, TotalYield: 1}}, 1, q.Page), nil
}

func (c *countingQuerier) HealthCheck(context.Context) error {
	return c.health
}

func TestCachedQueryServiceServesRepeatReads(t *testing.T) {
	ctx := context.Background()
	inner := &countingQuerier{}
	svc := NewCachedQueryService(inner, time.Minute, metrics.NewCollector("test", prometheus.NewRegistry()))

	q := ReadingQuery{StationID: "USC00110072", Page: Page{Offset: 1, Limit: 10}}
	first, err := svc.ListReadings(ctx, q)
	require.NoError(t, err)
	second, err := svc.ListReadings(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Same(t, first, second)

	// a different page is a different key
	q.Page.Offset = 2
	_, err = svc.ListReadings(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	_, err = svc.ListYield(ctx, YieldQuery{Year: intPtr(1985), Page: Page{Offset: 1, Limit: 5}})
	require.NoError(t, err)
	_, err = svc.ListYield(ctx, YieldQuery{Page: Page{Offset: 1, Limit: 5}})
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)
}

func TestCachedQueryServiceDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &countingQuerier{err: errors.New("db down")}
	svc := NewCachedQueryService(inner, time.Minute, metrics.NewCollector("test", prometheus.NewRegistry()))

	q := ReadingQuery{Page: Page{Offset: 1, Limit: 10}}
	_, err := svc.ListReadings(ctx, q)
	require.Error(t, err)

	inner.err = nil
	res, err := svc.ListReadings(ctx, q)
	require.NoError(t, err)
	assert.Len(t, res.Data, 1)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedQueryServiceDisabled(t *testing.T) {
	inner := &countingQuerier{}
	svc := NewCachedQueryService(inner, 0, metrics.NewCollector("test", prometheus.NewRegistry()))
	assert.Same(t, inner, svc)
}

func TestCachedQueryServiceHealthPassesThrough(t *testing.T) {
	inner := &countingQuerier{health: errors.New("down")}
	svc := NewCachedQueryService(inner, time.Minute, metrics.NewCollector("test", prometheus.NewRegistry()))
	assert.EqualError(t, svc.HealthCheck(context.Background()), "down")
}
