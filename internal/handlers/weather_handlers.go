package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"weather-yield/internal/models"
	"weather-yield/internal/services"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// WeatherHandler handles the read API endpoints
type WeatherHandler struct {
	query   services.Querier
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	query services.Querier,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		query:   query,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Count      int         `json:"count"`
	Total      int         `json:"total"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

func paginated[T any](page *services.PageResult[T]) PaginatedResponse {
	return PaginatedResponse{
		Data:       page.Data,
		Count:      len(page.Data),
		Total:      page.Total,
		Offset:     page.Offset,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
	}
}

// badRequest carries a message safe to return to the client
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

// parseInt reads an optional integer query parameter
func parseInt(values url.Values, name string) (int, bool, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, &badRequest{msg: fmt.Sprintf("invalid %s %q, expected an integer", name, raw)}
	}
	return v, true, nil
}

// parsePage reads offset and limit, applying the endpoint defaults only when
// a parameter is absent
func parsePage(values url.Values, paging services.Paging) (services.Page, error) {
	page := services.Page{Offset: 1, Limit: paging.DefaultLimit}

	if v, ok, err := parseInt(values, "offset"); err != nil {
		return page, err
	} else if ok {
		page.Offset = v
	}

	if v, ok, err := parseInt(values, "limit"); err != nil {
		return page, err
	} else if ok {
		page.Limit = v
	}

	return page, nil
}

// parseYear reads an optional year. Years are stored as SMALLINT, so values
// outside that range can never match and are rejected up front.
func parseYear(values url.Values) (*int, error) {
	year, ok, err := parseInt(values, "year")
	if err != nil || !ok {
		return nil, err
	}
	if year < math.MinInt16 || year > math.MaxInt16 {
		return nil, &badRequest{msg: fmt.Sprintf("invalid year %d, expected a value between %d and %d", year, math.MinInt16, math.MaxInt16)}
	}
	return &year, nil
}

// GetReadings handles GET /api/weather
func (h *WeatherHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weather"
	timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
	defer timer.ObserveDuration()

	values := r.URL.Query()
	page, err := parsePage(values, services.ReadingsPaging)
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	q := services.ReadingQuery{
		StationID: values.Get("station_id"),
		Page:      page,
	}

	if dateStr := values.Get("date"); dateStr != "" {
		date, err := time.Parse(models.APIDateLayout, dateStr)
		if err != nil {
			h.sendError(w, r, endpoint, &badRequest{msg: "invalid date format, expected YYYY-MM-DD"})
			return
		}
		q.Date = &date
	}

	result, err := h.query.ListReadings(r.Context(), q)
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, paginated(result), http.StatusOK)
}

// GetStatistics handles GET /api/weather/stats
func (h *WeatherHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weather/stats"
	timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
	defer timer.ObserveDuration()

	values := r.URL.Query()
	page, err := parsePage(values, services.StatsPaging)
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	year, err := parseYear(values)
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	result, err := h.query.ListStats(r.Context(), services.StatsQuery{
		StationID: values.Get("station_id"),
		Year:      year,
		Page:      page,
	})
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, paginated(result), http.StatusOK)
}

// GetYield handles GET /api/yield
func (h *WeatherHandler) GetYield(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/yield"
	timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
	defer timer.ObserveDuration()

	values := r.URL.Query()
	page, err := parsePage(values, services.YieldPaging)
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	year, err := parseYear(values)
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	result, err := h.query.ListYield(r.Context(), services.YieldQuery{Year: year, Page: page})
	if err != nil {
		h.sendError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, paginated(result), http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.query.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.sendJSON(w, status, http.StatusOK)
}

// writeJSON writes data as the JSON body with the given status
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	if err := writeJSON(w, data, statusCode); err != nil {
		h.logger.Warn(context.Background(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{
			"error": err.Error(),
		})
	}
}

// sendError maps err onto a status code and writes the error body. Client
// mistakes become 400; anything else is logged and reported as 500.
func (h *WeatherHandler) sendError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	statusCode := http.StatusInternalServerError
	message := "failed to retrieve data"

	var br *badRequest
	switch {
	case errors.As(err, &br):
		statusCode = http.StatusBadRequest
		message = br.msg
		h.metrics.RecordAPIError("bad_request", endpoint)
	case errors.Is(err, services.ErrInvalidPage):
		statusCode = http.StatusBadRequest
		message = err.Error()
		h.metrics.RecordAPIError("bad_request", endpoint)
	default:
		h.logger.Error(r.Context(), "[API_QUERY_ERROR] Failed to query data", logging.Fields{
			"endpoint": endpoint,
			"query":    r.URL.RawQuery,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(statusCode))

	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// RegisterRoutes registers all read API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/weather", h.GetReadings).Methods(http.MethodGet)
	router.HandleFunc("/api/weather/stats", h.GetStatistics).Methods(http.MethodGet)
	router.HandleFunc("/api/yield", h.GetYield).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
