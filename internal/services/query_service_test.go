package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-yield/internal/models"
)

func TestPagingValidate(t *testing.T) {
	tests := []struct {
		name    string
		paging  Paging
		page    Page
		wantErr bool
	}{
		{"default readings page", ReadingsPaging, Page{Offset: 1, Limit: 1000}, false},
		{"max readings limit", ReadingsPaging, Page{Offset: 3, Limit: 10000}, false},
		{"readings limit too large", ReadingsPaging, Page{Offset: 1, Limit: 10001}, true},
		{"stats limit too large", StatsPaging, Page{Offset: 1, Limit: 1001}, true},
		{"zero offset", YieldPaging, Page{Offset: 0, Limit: 5}, true},
		{"negative offset", YieldPaging, Page{Offset: -1, Limit: 5}, true},
		{"zero limit", YieldPaging, Page{Offset: 1, Limit: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.paging.Validate(tt.page)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPageRowOffset(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want int
	}{
		{"first page", Page{Offset: 1, Limit: 10}, 0},
		{"third page", Page{Offset: 3, Limit: 10}, 20},
		{"page number overflows", Page{Offset: 9223372036854775, Limit: 10000}, math.MaxInt - 10000},
		{"max page number", Page{Offset: math.MaxInt, Limit: 1}, math.MaxInt - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.page.rowOffset()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func seedStation(t *testing.T, env *testEnv, station string, days int) {
	t.Helper()
	readings := make([]*models.Reading, 0, days)
	start := time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		readings = append(readings, &models.Reading{
			RecordDate:     start.AddDate(0, 0, i),
			WeatherStation: station,
			MaxTemp:        i64(int64(i)),
		})
	}
	_, err := env.repo.InsertStationReadings(context.Background(), station, time.Now().UTC(), readings, 0)
	require.NoError(t, err)
}

func TestListReadingsPagesConcatenate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedStation(t, env, "USC00110072", 25)
	seedStation(t, env, "USC00339312", 25)

	svc := NewQueryService(env.repo, env.logger, env.metrics)

	whole, err := svc.ListReadings(ctx, ReadingQuery{Page: Page{Offset: 1, Limit: 20}})
	require.NoError(t, err)
	p1, err := svc.ListReadings(ctx, ReadingQuery{Page: Page{Offset: 1, Limit: 10}})
	require.NoError(t, err)
	p2, err := svc.ListReadings(ctx, ReadingQuery{Page: Page{Offset: 2, Limit: 10}})
	require.NoError(t, err)

	assert.Equal(t, whole.Data, append(p1.Data, p2.Data...))
	assert.Equal(t, 50, whole.Total)
	assert.Equal(t, 3, whole.TotalPages)
	assert.Equal(t, 5, p1.TotalPages)

	past, err := svc.ListReadings(ctx, ReadingQuery{Page: Page{Offset: 99, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 50, past.Total)
	assert.NotNil(t, past.Data)
	assert.Empty(t, past.Data)
	assert.Equal(t, 99, past.Offset)
}

func TestListReadingsHugePageIsEmpty(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedStation(t, env, "USC00110072", 25)

	svc := NewQueryService(env.repo, env.logger, env.metrics)

	res, err := svc.ListReadings(ctx, ReadingQuery{Page: Page{Offset: 9223372036854775, Limit: 10000}})
	require.NoError(t, err)
	assert.Equal(t, 25, res.Total)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Equal(t, 9223372036854775, res.Offset)

	stats, err := svc.ListStats(ctx, StatsQuery{Page: Page{Offset: math.MaxInt, Limit: 1000}})
	require.NoError(t, err)
	assert.Empty(t, stats.Data)
}

func TestListReadingsFilters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedStation(t, env, "USC00110072", 3)
	seedStation(t, env, "USC00339312", 3)

	svc := NewQueryService(env.repo, env.logger, env.metrics)

	res, err := svc.ListReadings(ctx, ReadingQuery{StationID: "USC00339312", Page: Page{Offset: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	for _, rd := range res.Data {
		assert.Equal(t, "USC00339312", rd.WeatherStation)
	}

	date := time.Date(1990, time.January, 2, 0, 0, 0, 0, time.UTC)
	res, err = svc.ListReadings(ctx, ReadingQuery{Date: &date, Page: Page{Offset: 1, Limit: 10}})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "1990-01-02", res.Data[0].RecordDate)
	assert.InDelta(t, 0.1, *res.Data[0].MaxTemp, 1e-9)

	res, err = svc.ListReadings(ctx, ReadingQuery{StationID: "NOPE", Page: Page{Offset: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Data)
}

func TestQueryServiceRejectsInvalidPage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := NewQueryService(env.repo, env.logger, env.metrics)

	_, err := svc.ListReadings(ctx, ReadingQuery{Page: Page{Offset: 0, Limit: 10}})
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = svc.ListStats(ctx, StatsQuery{Page: Page{Offset: 1, Limit: 5000}})
	assert.ErrorIs(t, err, ErrInvalidPage)

	_, err = svc.ListYield(ctx, YieldQuery{Page: Page{Offset: 1, Limit: -1}})
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestStationYearScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	path := writeFile(t, t.TempDir(), "USC00110072.txt",
		"20200101\t-9999\t-50\t00",
		"20200102\t300\t100\t10",
	)

	_, err := NewIngestionService(env.repo, env.logger, env.metrics, 0).IngestFile(ctx, path)
	require.NoError(t, err)

	svc := NewQueryService(env.repo, env.logger, env.metrics)

	readings, err := svc.ListReadings(ctx, ReadingQuery{StationID: "USC00110072", Page: Page{Offset: 1, Limit: 1000}})
	require.NoError(t, err)
	require.Len(t, readings.Data, 2)
	assert.Nil(t, readings.Data[0].MaxTemp)
	assert.InDelta(t, -5.0, *readings.Data[0].MinTemp, 1e-9)
	assert.InDelta(t, 30.0, *readings.Data[1].MaxTemp, 1e-9)

	_, err = NewStatisticsService(env.repo, env.logger, env.metrics).CalculateAllStatistics(ctx)
	require.NoError(t, err)

	stats, err := svc.ListStats(ctx, StatsQuery{StationID: "USC00110072", Year: intPtr(2020), Page: Page{Offset: 1, Limit: 500}})
	require.NoError(t, err)
	require.Len(t, stats.Data, 1)
	assert.InDelta(t, 30.0, *stats.Data[0].AvgMaxTemp, 1e-9)
	assert.InDelta(t, 2.5, *stats.Data[0].AvgMinTemp, 1e-9)
	assert.InDelta(t, 0.05, *stats.Data[0].AvgPrecipitation, 1e-9)
}

func TestListYieldDefaultOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	lines := make([]string, 0, 8)
	for year := 1992; year >= 1985; year-- {
		lines = append(lines, fmt.Sprintf("%d\t%d", year, year*10))
	}
	_, err := NewYieldService(env.repo, env.logger, env.metrics).IngestFile(ctx, writeFile(t, t.TempDir(), "yield.txt", lines...))
	require.NoError(t, err)

	svc := NewQueryService(env.repo, env.logger, env.metrics)
	res, err := svc.ListYield(ctx, YieldQuery{Page: Page{Offset: 2, Limit: YieldPaging.DefaultLimit}})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Total)
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Data, 3)
	assert.Equal(t, 1990, res.Data[0].RecordYear)
	assert.Equal(t, 19920, res.Data[2].TotalYield)
}
