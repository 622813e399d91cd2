package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"weather-yield/internal/models"
	"weather-yield/internal/repository"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// DefaultBatchSize is the number of readings per multi-row insert
const DefaultBatchSize = 1000

// IngestionService loads per-station weather files into the readings table
type IngestionService struct {
	repo      repository.WeatherRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	batchSize int
}

// IngestionResult contains run-level ingestion statistics
type IngestionResult struct {
	TotalFiles       int
	FailedFiles      int
	TotalLines       int
	MalformedLines   int
	InsertedRecords  int
	DuplicateRecords int
	Duration         time.Duration
	Errors           []string
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	StationID        string
	TotalLines       int
	MalformedLines   int
	InsertedRecords  int
	DuplicateRecords int
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, batchSize int) *IngestionService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IngestionService{
		repo:      repo,
		logger:    logger,
		metrics:   metricsCollector,
		batchSize: batchSize,
	}
}

// IngestDirectory ingests every *.txt file in dataDir. A failing file is
// logged and recorded in the result; the remaining files still run.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting weather data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": s.batchSize,
		"stage":      "INITIALIZATION",
	})

	if info, err := os.Stat(dataDir); err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dataDir)
	}

	files, err := filepath.Glob(filepath.Join(dataDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}
	sort.Strings(files)

	result := &IngestionResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, filePath := range files {
		fileResult, err := s.IngestFile(ctx, filePath)
		if err != nil {
			result.FailedFiles++
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", filePath, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.TotalLines += fileResult.TotalLines
		result.MalformedLines += fileResult.MalformedLines
		result.InsertedRecords += fileResult.InsertedRecords
		result.DuplicateRecords += fileResult.DuplicateRecords
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Weather data ingestion completed", logging.Fields{
		"total_files":       result.TotalFiles,
		"failed_files":      result.FailedFiles,
		"total_lines":       result.TotalLines,
		"inserted_records":  result.InsertedRecords,
		"duplicate_records": result.DuplicateRecords,
		"malformed_lines":   result.MalformedLines,
		"duration_seconds":  result.Duration.Seconds(),
		"stage":             "COMPLETE",
	})

	return result, nil
}

// IngestFile loads one station file. Malformed lines are counted and
// skipped. On failure nothing from the file is kept and a zero-count audit
// entry records the attempt.
func (s *IngestionService) IngestFile(ctx context.Context, filePath string) (*FileIngestionResult, error) {
	startTime := time.Now().UTC()

	stationID, err := models.StationIDFromPath(filePath)
	if err != nil {
		return nil, fmt.Errorf("invalid station file name: %w", err)
	}

	result, readings, err := s.readFile(ctx, filePath, stationID)
	if err != nil {
		s.recordFailedAttempt(ctx, stationID, startTime)
		return nil, err
	}

	entry, err := s.repo.InsertStationReadings(ctx, stationID, startTime, readings, s.batchSize)
	if err != nil {
		s.recordFailedAttempt(ctx, stationID, startTime)
		return nil, err
	}

	result.InsertedRecords = entry.RecordsProcessed
	result.DuplicateRecords = len(readings) - entry.RecordsProcessed

	s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested", logging.Fields{
		"file_path":         filePath,
		"station_id":        stationID,
		"total_lines":       result.TotalLines,
		"inserted_records":  result.InsertedRecords,
		"duplicate_records": result.DuplicateRecords,
		"malformed_lines":   result.MalformedLines,
		"stage":             "FILE_COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) readFile(ctx context.Context, filePath, stationID string) (*FileIngestionResult, []*models.Reading, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &FileIngestionResult{StationID: stationID}
	readings := make([]*models.Reading, 0, 1024)

	lines := newLineReader(file)
	for lines.Next() {
		lineNo := lines.LineNo()
		if err := lines.LineErr(); err != nil {
			result.TotalLines++
			s.skipLine(ctx, stationID, lineNo, "line_too_long", err)
			result.MalformedLines++
			continue
		}

		line := lines.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.TotalLines++

		raw, err := models.ParseWeatherLine(line)
		if err != nil {
			s.skipLine(ctx, stationID, lineNo, "parse_error", err)
			result.MalformedLines++
			continue
		}

		reading, err := raw.ToReading(stationID)
		if err != nil {
			s.skipLine(ctx, stationID, lineNo, "conversion_error", err)
			result.MalformedLines++
			continue
		}

		readings = append(readings, reading)
	}

	if err := lines.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading file: %w", err)
	}

	return result, readings, nil
}

func (s *IngestionService) skipLine(ctx context.Context, stationID string, lineNo int, kind string, err error) {
	s.metrics.RecordIngestionError(kind)
	s.logger.Debug(ctx, "[INGEST_LINE_SKIPPED] Malformed line skipped", logging.Fields{
		"station_id": stationID,
		"line":       lineNo,
		"reason":     err.Error(),
	})
}

// recordFailedAttempt appends a zero-count audit entry; its own failure is
// only logged since the file error is already being reported.
func (s *IngestionService) recordFailedAttempt(ctx context.Context, stationID string, startTime time.Time) {
	entry := &models.IngestionLogEntry{
		StartTime:        startTime,
		EndTime:          time.Now().UTC(),
		RecordsProcessed: 0,
		WeatherStation:   stationID,
	}
	if err := s.repo.AppendIngestionLog(ctx, entry); err != nil {
		s.logger.Error(ctx, "[INGEST_AUDIT_ERROR] Failed to record failed attempt", logging.Fields{
			"station_id": stationID,
		}, err)
	}
}
