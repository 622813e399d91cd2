package handlers

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// RouterConfig controls the middleware around the read API
type RouterConfig struct {
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	// MetricsHandler is mounted at /metrics when set
	MetricsHandler http.Handler
}

// NewRouter builds the full HTTP handler: routes, metrics and middleware
func NewRouter(h *WeatherHandler, cfg RouterConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) http.Handler {
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	if cfg.MetricsHandler != nil {
		router.Handle("/metrics", cfg.MetricsHandler).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, metricsCollector)

	router.Use(RequestID)
	router.Use(AccessLog(logger))
	router.Use(limiter.Middleware)

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})(router)
}
