package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"weather-yield/internal/config"
	"weather-yield/internal/repository"
	"weather-yield/internal/services"
	"weather-yield/pkg/database"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

const version = "1.0.0"

// Exit codes
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return exitFatal
	}

	// Parse command-line flags, defaulting to the configured values
	dataDir := flag.String("data-dir", cfg.Ingest.DataDir, "Directory containing weather data files")
	yieldFile := flag.String("yield-file", cfg.Ingest.YieldFile, "Crop yield data file")
	batchSize := flag.Int("batch-size", cfg.Ingest.BatchSize, "Number of records per multi-row insert")
	skipWeather := flag.Bool("skip-weather", false, "Skip weather file ingestion")
	skipYield := flag.Bool("skip-yield", false, "Skip yield file ingestion")
	calculateStats := flag.Bool("calculate-stats", true, "Recompute yearly statistics after ingestion")
	flag.Parse()

	cfg.Ingest.BatchSize = *batchSize
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return exitFatal
	}

	logger := logging.NewStructuredLogger("weather-ingester", version, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[INGESTER_START] Starting batch ingestion", logging.Fields{
		"version":         version,
		"data_dir":        *dataDir,
		"yield_file":      *yieldFile,
		"batch_size":      *batchSize,
		"skip_weather":    *skipWeather,
		"skip_yield":      *skipYield,
		"calculate_stats": *calculateStats,
	})

	metricsCollector := metrics.NewCollector("weather_ingester", prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.DBConfig(), logger, metricsCollector)
	if err != nil {
		logger.Error(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
		return exitFatal
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db, logger); err != nil {
		logger.Error(ctx, "[INGESTER_ERROR] Failed to ensure schema", logging.Fields{}, err)
		return exitFatal
	}

	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)

	code := exitOK

	if !*skipWeather {
		ingestionService := services.NewIngestionService(weatherRepo, logger, metricsCollector, *batchSize)

		result, err := ingestionService.IngestDirectory(ctx, *dataDir)
		if err != nil {
			logger.Error(ctx, "[INGESTION_ERROR] Weather ingestion failed", logging.Fields{
				"data_dir": *dataDir,
			}, err)
			return exitFatal
		}
		printWeatherResult(result)

		if result.FailedFiles > 0 {
			code = exitPartial
		}
	}

	if !*skipYield {
		yieldService := services.NewYieldService(weatherRepo, logger, metricsCollector)

		result, err := yieldService.IngestFile(ctx, *yieldFile)
		if err != nil {
			logger.Error(ctx, "[YIELD_ERROR] Yield ingestion failed", logging.Fields{
				"yield_file": *yieldFile,
			}, err)
			code = exitPartial
		} else {
			fmt.Printf("\nYield: %d lines, %d upserted, %d malformed (%v)\n",
				result.TotalLines, result.Upserted, result.MalformedLines, result.Duration)
		}
	}

	if *calculateStats {
		statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)

		result, err := statsService.CalculateAllStatistics(ctx)
		if err != nil {
			logger.Error(ctx, "[STATS_ERROR] Statistics calculation failed", logging.Fields{}, err)
			return exitFatal
		}
		fmt.Printf("\nStatistics: %d rows for %d stations from %d readings (%v)\n",
			result.Rows, result.Stations, result.Readings, result.Duration)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Batch ingestion finished", logging.Fields{
		"exit_code": code,
	})

	return code
}

func printWeatherResult(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("WEATHER INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Failed Files:       %d\n", result.FailedFiles)
	fmt.Printf("Total Lines:        %d\n", result.TotalLines)
	fmt.Printf("Malformed Lines:    %d\n", result.MalformedLines)
	fmt.Printf("Inserted Records:   %d\n", result.InsertedRecords)
	fmt.Printf("Duplicate Records:  %d\n", result.DuplicateRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}
}
