package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"weather-yield/pkg/database"
	"weather-yield/pkg/logging"
)

// schemaLockID serialises schema creation across processes on PostgreSQL
const schemaLockID = 123456

var schemaStatements = []struct {
	table string
	ddl   string
}{
	{
		table: "weather_data",
		ddl: `
		CREATE TABLE IF NOT EXISTS weather_data (
			record_date        DATE        NOT NULL,
			max_temp           NUMERIC,
			min_temp           NUMERIC,
			precipitation      NUMERIC,
			weather_station    CHAR(11)    NOT NULL,
			PRIMARY KEY (record_date, weather_station)
		)`,
	},
	{
		table: "yield_data",
		ddl: `
		CREATE TABLE IF NOT EXISTS yield_data (
			record_year   SMALLINT    NOT NULL,
			total_yield   INTEGER     NOT NULL,
			PRIMARY KEY (record_year)
		)`,
	},
	{
		table: "weather_logs",
		ddl: `
		CREATE TABLE IF NOT EXISTS weather_logs (
			start_time        TIMESTAMP    NOT NULL,
			end_time          TIMESTAMP    NOT NULL,
			records           INTEGER      NOT NULL,
			weather_station   CHAR(11)     NOT NULL
		)`,
	},
	{
		table: "weather_stats",
		ddl: `
		CREATE TABLE IF NOT EXISTS weather_stats (
			weather_station      CHAR(11)   NOT NULL,
			record_year          SMALLINT   NOT NULL,
			avg_min_temp         NUMERIC,
			avg_max_temp         NUMERIC,
			avg_precipitation    NUMERIC,
			PRIMARY KEY (record_year, weather_station)
		)`,
	},
}

// EnsureSchema creates any missing table. Existing tables and their data are
// left untouched, so it is safe to call on every start.
func EnsureSchema(ctx context.Context, db *database.DB, logger *logging.StructuredLogger) error {
	err := db.WithTx(ctx, "ensure_schema", func(tx *sqlx.Tx) error {
		if db.DriverName() == database.DriverPostgres {
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockID); err != nil {
				return fmt.Errorf("failed to acquire schema lock: %w", err)
			}
		}

		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt.ddl); err != nil {
				return fmt.Errorf("failed to create table %s: %w", stmt.table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "[SCHEMA_READY] Storage schema ensured", logging.Fields{
		"tables": len(schemaStatements),
		"driver": db.DriverName(),
	})

	return nil
}
