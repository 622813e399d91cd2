package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIsolatedPerRegistry(t *testing.T) {
	// same namespace twice must not panic on duplicate registration
	a := NewCollector("test", prometheus.NewRegistry())
	b := NewCollector("test", prometheus.NewRegistry())

	a.RecordAPIRequest("/api/weather", "GET", "200")

	assert.Equal(t, float64(1), testutil.ToFloat64(a.APIRequestsTotal.WithLabelValues("/api/weather", "GET", "200")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.APIRequestsTotal.WithLabelValues("/api/weather", "GET", "200")))
}

func TestRecordCacheLookup(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordCacheLookup("readings", true)
	c.RecordCacheLookup("readings", false)
	c.RecordCacheLookup("readings", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.QueryCacheLookups.WithLabelValues("readings", "hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.QueryCacheLookups.WithLabelValues("readings", "miss")))
}

func TestUpdateDBConnectionPool(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())
	c.UpdateDBConnectionPool(3, 2, 5)

	assert.Equal(t, float64(3), testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("in_use")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("idle")))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}

func TestTimerObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg)

	d := c.NewTimer(c.StatsCalculationDuration).ObserveDuration()
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))

	n, err := testutil.GatherAndCount(reg, "test_stats_calculation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
