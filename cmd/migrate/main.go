package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"weather-yield/internal/config"
	"weather-yield/internal/repository"
	"weather-yield/pkg/database"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("weather-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx := context.Background()
	metricsCollector := metrics.NewCollector("weather_migrate", prometheus.NewRegistry())

	db, err := database.Open(cfg.DBConfig(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	if err := repository.EnsureSchema(ctx, db, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to ensure schema: %v\n", err)
		db.Close()
		os.Exit(1)
	}

	db.Close()
	fmt.Println("Schema is up to date")
}
