package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"weather-yield/internal/config"
	"weather-yield/internal/handlers"
	"weather-yield/internal/repository"
	"weather-yield/internal/services"
	"weather-yield/pkg/database"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("weather-api", version, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[STARTUP] Starting weather API server", logging.Fields{
		"version":     version,
		"environment": cfg.Logging.Environment,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("weather_yield", prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.DBConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db, logger); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to ensure schema", logging.Fields{}, err)
	}

	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)

	queryService := services.NewCachedQueryService(
		services.NewQueryService(weatherRepo, logger, metricsCollector),
		cfg.API.CacheTTL,
		metricsCollector,
	)

	weatherHandler := handlers.NewWeatherHandler(queryService, logger, metricsCollector)

	router := handlers.NewRouter(weatherHandler, handlers.RouterConfig{
		AllowedOrigins: cfg.API.AllowedOrigins,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
		MetricsHandler: promhttp.Handler(),
	}, logger, metricsCollector)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "[SERVER_ERROR] Server stopped with error", logging.Fields{}, err)
		db.Close()
		os.Exit(1)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
