package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"weather-yield/internal/models"
	"weather-yield/internal/repository"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// YieldService loads the yearly crop yield file
type YieldService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// YieldIngestionResult summarises one yield file load
type YieldIngestionResult struct {
	TotalLines     int
	MalformedLines int
	Upserted       int
	Duration       time.Duration
}

// NewYieldService creates a new yield service
func NewYieldService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *YieldService {
	return &YieldService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestFile upserts every well-formed "year total" line of filePath
func (s *YieldService) IngestFile(ctx context.Context, filePath string) (*YieldIngestionResult, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open yield file: %w", err)
	}
	defer file.Close()

	result := &YieldIngestionResult{}
	records := make([]*models.YieldRecord, 0, 64)
	byYear := make(map[int]int) // year -> index in records

	lines := newLineReader(file)
	for lines.Next() {
		if err := lines.LineErr(); err != nil {
			result.TotalLines++
			result.MalformedLines++
			s.metrics.RecordIngestionError("yield_line_too_long")
			s.logger.Debug(ctx, "[YIELD_LINE_SKIPPED] Oversized yield line skipped", logging.Fields{
				"line_number": lines.LineNo(),
				"reason":      err.Error(),
			})
			continue
		}

		line := lines.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.TotalLines++

		rec, err := models.ParseYieldLine(line)
		if err != nil {
			result.MalformedLines++
			s.metrics.RecordIngestionError("yield_parse_error")
			s.logger.Debug(ctx, "[YIELD_LINE_SKIPPED] Malformed yield line skipped", logging.Fields{
				"line":   line,
				"reason": err.Error(),
			})
			continue
		}

		// a repeated year keeps its last value, as a re-upsert would
		if i, ok := byYear[rec.RecordYear]; ok {
			records[i] = rec
			continue
		}
		byYear[rec.RecordYear] = len(records)
		records = append(records, rec)
	}

	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("error reading yield file: %w", err)
	}

	n, err := s.repo.UpsertYield(ctx, records)
	if err != nil {
		return nil, err
	}
	result.Upserted = n
	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[YIELD_COMPLETE] Yield data ingestion completed", logging.Fields{
		"file_path":        filePath,
		"total_lines":      result.TotalLines,
		"upserted":         result.Upserted,
		"malformed_lines":  result.MalformedLines,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}
