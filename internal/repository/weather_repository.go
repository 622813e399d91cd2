package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"weather-yield/internal/models"
	"weather-yield/pkg/database"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// WeatherRepository provides data access for readings, stats, audit logs and yield
type WeatherRepository interface {
	// Ingestion operations
	InsertStationReadings(ctx context.Context, stationID string, startTime time.Time, readings []*models.Reading, batchSize int) (*models.IngestionLogEntry, error)
	AppendIngestionLog(ctx context.Context, entry *models.IngestionLogEntry) error
	UpsertYield(ctx context.Context, records []*models.YieldRecord) (int, error)

	// Statistics operations
	ForEachReading(ctx context.Context, fn func(*models.Reading) error) error
	UpsertStatistics(ctx context.Context, stats []*models.StationYearStats) error

	// Query operations
	ListReadings(ctx context.Context, filter ReadingFilter) ([]*models.Reading, int, error)
	ListStatistics(ctx context.Context, filter StatisticsFilter) ([]*models.StationYearStats, int, error)
	ListYield(ctx context.Context, filter YieldFilter) ([]*models.YieldRecord, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ReadingFilter defines filters for querying readings
type ReadingFilter struct {
	StationID *string
	Date      *time.Time
	Limit     int
	Offset    int // rows to skip
}

// StatisticsFilter defines filters for querying statistics
type StatisticsFilter struct {
	StationID *string
	Year      *int
	Limit     int
	Offset    int
}

// YieldFilter defines filters for querying yield rows
type YieldFilter struct {
	Year   *int
	Limit  int
	Offset int
}

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewWeatherRepository creates a new weather repository
func NewWeatherRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	return &weatherRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const readingColumns = "record_date, max_temp, min_temp, precipitation, weather_station"

// maxBatchRows keeps a multi-row insert under PostgreSQL's 65535 bind parameters
const maxBatchRows = 65535 / 5

// InsertStationReadings inserts one file's readings and its audit entry in a
// single transaction. Rows whose (record_date, weather_station) already exist
// are skipped, never updated.
func (r *weatherRepository) InsertStationReadings(ctx context.Context, stationID string, startTime time.Time, readings []*models.Reading, batchSize int) (*models.IngestionLogEntry, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if batchSize > maxBatchRows {
		batchSize = maxBatchRows
	}

	entry := &models.IngestionLogEntry{
		StartTime:      startTime,
		WeatherStation: stationID,
	}

	err := r.db.WithTx(ctx, "insert_station_readings", func(tx *sqlx.Tx) error {
		inserted := 0
		for start := 0; start < len(readings); start += batchSize {
			end := start + batchSize
			if end > len(readings) {
				end = len(readings)
			}

			n, err := r.insertReadingBatch(ctx, tx, readings[start:end])
			if err != nil {
				return err
			}
			inserted += n
		}

		entry.RecordsProcessed = inserted
		entry.EndTime = r.now()
		return insertLogEntry(ctx, tx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ingest readings for %s: %w", stationID, err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(entry.RecordsProcessed))
	r.metrics.IngestionDuplicatesTotal.Add(float64(len(readings) - entry.RecordsProcessed))

	return entry, nil
}

func (r *weatherRepository) insertReadingBatch(ctx context.Context, tx *sqlx.Tx, batch []*models.Reading) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	timer := time.Now()
	defer func() {
		r.metrics.IngestionBatchSize.Observe(float64(len(batch)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(batch),
			"duration_ms": time.Since(timer).Milliseconds(),
		})
	}()

	var sb strings.Builder
	sb.WriteString("INSERT INTO weather_data (" + readingColumns + ") VALUES ")
	args := make([]interface{}, 0, len(batch)*5)
	for i, rd := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, rd.RecordDate, rd.MaxTemp, rd.MinTemp, rd.Precipitation, rd.WeatherStation)
	}
	sb.WriteString(" ON CONFLICT (record_date, weather_station) DO NOTHING")

	res, err := tx.ExecContext(ctx, tx.Rebind(sb.String()), args...)
	if err != nil {
		r.metrics.RecordDBError("exec_error")
		return 0, fmt.Errorf("failed to insert readings: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return int(n), nil
}

const insertLogEntrySQL = `
	INSERT INTO weather_logs (start_time, end_time, records, weather_station)
	VALUES (?, ?, ?, ?)
`

func logEntryArgs(entry *models.IngestionLogEntry) []interface{} {
	return []interface{}{entry.StartTime, entry.EndTime, entry.RecordsProcessed, entry.WeatherStation}
}

func insertLogEntry(ctx context.Context, tx *sqlx.Tx, entry *models.IngestionLogEntry) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(insertLogEntrySQL), logEntryArgs(entry)...); err != nil {
		return fmt.Errorf("failed to append ingestion log: %w", err)
	}
	return nil
}

// AppendIngestionLog appends an audit entry outside any ingestion transaction
func (r *weatherRepository) AppendIngestionLog(ctx context.Context, entry *models.IngestionLogEntry) error {
	if _, err := r.db.ExecContext(ctx, "append_ingestion_log", insertLogEntrySQL, logEntryArgs(entry)...); err != nil {
		return fmt.Errorf("failed to append ingestion log: %w", err)
	}
	return nil
}

// UpsertYield writes yield rows, replacing the total of an existing year
func (r *weatherRepository) UpsertYield(ctx context.Context, records []*models.YieldRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	err := r.db.WithTx(ctx, "upsert_yield", func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO yield_data (record_year, total_yield)
			VALUES (?, ?)
			ON CONFLICT (record_year) DO UPDATE SET
				total_yield = EXCLUDED.total_yield
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.RecordYear, rec.TotalYield); err != nil {
				return fmt.Errorf("failed to upsert yield for %d: %w", rec.RecordYear, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.metrics.YieldRecordsTotal.Add(float64(len(records)))

	return len(records), nil
}

// ForEachReading streams every reading ordered by station then date
func (r *weatherRepository) ForEachReading(ctx context.Context, fn func(*models.Reading) error) error {
	rows, err := r.db.QueryContext(ctx, "scan_readings", `
		SELECT `+readingColumns+`
		FROM weather_data
		ORDER BY weather_station, record_date
	`)
	if err != nil {
		return fmt.Errorf("failed to scan readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rd models.Reading
		if err := rows.StructScan(&rd); err != nil {
			return fmt.Errorf("failed to decode reading: %w", err)
		}
		if err := fn(&rd); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate readings: %w", err)
	}

	return nil
}

// UpsertStatistics writes all stats rows in one transaction, overwriting
// existing rows for the same (record_year, weather_station)
func (r *weatherRepository) UpsertStatistics(ctx context.Context, stats []*models.StationYearStats) error {
	if len(stats) == 0 {
		return nil
	}

	err := r.db.WithTx(ctx, "upsert_statistics", func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO weather_stats (
				weather_station, record_year,
				avg_min_temp, avg_max_temp, avg_precipitation
			)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (record_year, weather_station) DO UPDATE SET
				avg_min_temp = EXCLUDED.avg_min_temp,
				avg_max_temp = EXCLUDED.avg_max_temp,
				avg_precipitation = EXCLUDED.avg_precipitation
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, s := range stats {
			_, err := stmt.ExecContext(ctx,
				s.WeatherStation,
				s.RecordYear,
				s.AvgMinTemp,
				s.AvgMaxTemp,
				s.AvgPrecipitation,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert statistics for %s/%d: %w", s.WeatherStation, s.RecordYear, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.metrics.StatsRowsUpserted.Add(float64(len(stats)))

	return nil
}

// whereBuilder accumulates equality filters
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) eq(column string, value interface{}) {
	w.clauses = append(w.clauses, column+" = ?")
	w.args = append(w.args, value)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page runs the count and the page query for a filtered table
func (r *weatherRepository) page(ctx context.Context, name, columns, table string, where *whereBuilder, orderBy string, limit, offset int, dest interface{}) (int, error) {
	var total int
	countQuery := "SELECT COUNT(*) FROM " + table + where.String()
	if err := r.db.GetContext(ctx, "count_"+name, &total, countQuery, where.args...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", name, err)
	}

	query := "SELECT " + columns + " FROM " + table + where.String() +
		" ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	args := append(append([]interface{}{}, where.args...), limit, offset)

	if err := r.db.SelectContext(ctx, "list_"+name, dest, query, args...); err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", name, err)
	}

	return total, nil
}

// ListReadings retrieves readings with filtering and pagination
func (r *weatherRepository) ListReadings(ctx context.Context, filter ReadingFilter) ([]*models.Reading, int, error) {
	where := &whereBuilder{}
	if filter.StationID != nil {
		where.eq("weather_station", *filter.StationID)
	}
	if filter.Date != nil {
		where.eq("record_date", *filter.Date)
	}

	readings := []*models.Reading{}
	total, err := r.page(ctx, "readings", readingColumns, "weather_data", where,
		"record_date, weather_station", filter.Limit, filter.Offset, &readings)
	if err != nil {
		return nil, 0, err
	}

	return readings, total, nil
}

// ListStatistics retrieves yearly statistics with filtering and pagination
func (r *weatherRepository) ListStatistics(ctx context.Context, filter StatisticsFilter) ([]*models.StationYearStats, int, error) {
	where := &whereBuilder{}
	if filter.StationID != nil {
		where.eq("weather_station", *filter.StationID)
	}
	if filter.Year != nil {
		where.eq("record_year", *filter.Year)
	}

	stats := []*models.StationYearStats{}
	total, err := r.page(ctx, "statistics",
		"weather_station, record_year, avg_min_temp, avg_max_temp, avg_precipitation",
		"weather_stats", where, "record_year, weather_station", filter.Limit, filter.Offset, &stats)
	if err != nil {
		return nil, 0, err
	}

	return stats, total, nil
}

// ListYield retrieves yield rows with filtering and pagination
func (r *weatherRepository) ListYield(ctx context.Context, filter YieldFilter) ([]*models.YieldRecord, int, error) {
	where := &whereBuilder{}
	if filter.Year != nil {
		where.eq("record_year", *filter.Year)
	}

	records := []*models.YieldRecord{}
	total, err := r.page(ctx, "yield", "record_year, total_yield", "yield_data", where,
		"record_year", filter.Limit, filter.Offset, &records)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// HealthCheck performs a repository health check
func (r *weatherRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
