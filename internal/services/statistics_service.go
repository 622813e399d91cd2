package services

import (
	"context"
	"fmt"
	"time"

	"weather-yield/internal/models"
	"weather-yield/internal/repository"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// StatisticsService computes per-station yearly averages from readings
type StatisticsService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// StatisticsResult summarises one recomputation
type StatisticsResult struct {
	Stations int
	Rows     int
	Readings int
	Duration time.Duration
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// fieldMean accumulates the non-null values of one field. Sums stay integral
// so the mean does not depend on accumulation order.
type fieldMean struct {
	sum   int64
	count int64
}

func (m *fieldMean) add(v *int64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.count++
}

func (m *fieldMean) value() *float64 {
	if m.count == 0 {
		return nil
	}
	avg := float64(m.sum) / float64(m.count)
	return &avg
}

type stationYear struct {
	station string
	year    int
}

type yearAccumulator struct {
	maxTemp, minTemp, precip fieldMean
}

// Aggregate groups readings by station and calendar year. Groups are
// returned in first-seen order.
func Aggregate(readings func(emit func(*models.Reading) error) error) ([]*models.StationYearStats, int, error) {
	groups := make(map[stationYear]*yearAccumulator)
	order := make([]stationYear, 0)
	seen := 0

	err := readings(func(rd *models.Reading) error {
		seen++
		key := stationYear{station: rd.WeatherStation, year: rd.RecordDate.Year()}
		acc, ok := groups[key]
		if !ok {
			acc = &yearAccumulator{}
			groups[key] = acc
			order = append(order, key)
		}
		acc.maxTemp.add(rd.MaxTemp)
		acc.minTemp.add(rd.MinTemp)
		acc.precip.add(rd.Precipitation)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	stats := make([]*models.StationYearStats, 0, len(order))
	for _, key := range order {
		acc := groups[key]
		stats = append(stats, &models.StationYearStats{
			WeatherStation:   key.station,
			RecordYear:       key.year,
			AvgMaxTemp:       acc.maxTemp.value(),
			AvgMinTemp:       acc.minTemp.value(),
			AvgPrecipitation: acc.precip.value(),
		})
	}

	return stats, seen, nil
}

// CalculateAllStatistics recomputes the stats row of every station and year
// present in the readings table and upserts them. Running it again without
// new readings writes identical values.
func (s *StatisticsService) CalculateAllStatistics(ctx context.Context) (*StatisticsResult, error) {
	timer := s.metrics.NewTimer(s.metrics.StatsCalculationDuration)

	s.logger.Info(ctx, "[STATS_CALC_START] Starting statistics calculation", logging.Fields{
		"stage": "INITIALIZATION",
	})

	stats, seen, err := Aggregate(func(emit func(*models.Reading) error) error {
		return s.repo.ForEachReading(ctx, emit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate readings: %w", err)
	}

	if err := s.repo.UpsertStatistics(ctx, stats); err != nil {
		return nil, fmt.Errorf("failed to save statistics: %w", err)
	}

	stations := make(map[string]struct{})
	for _, st := range stats {
		stations[st.WeatherStation] = struct{}{}
	}

	result := &StatisticsResult{
		Stations: len(stations),
		Rows:     len(stats),
		Readings: seen,
		Duration: timer.ObserveDuration(),
	}

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Statistics calculation completed", logging.Fields{
		"total_stations":   result.Stations,
		"total_statistics": result.Rows,
		"total_readings":   result.Readings,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}
