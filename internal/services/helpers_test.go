package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"weather-yield/internal/repository"
	"weather-yield/pkg/database"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

type testEnv struct {
	db      *database.DB
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlxDB, err := sqlx.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	sqlxDB.SetMaxOpenConns(1)

	logger := logging.NewNop()
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	db := database.New(sqlxDB, logger, m)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repository.EnsureSchema(context.Background(), db, logger))

	return &testEnv{
		db:      db,
		repo:    repository.NewWeatherRepository(db, logger, m),
		logger:  logger,
		metrics: m,
	}
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.GetContext(context.Background(), "count", &n, "SELECT COUNT(*) FROM "+table))
	return n
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func intPtr(v int) *int { return &v }
