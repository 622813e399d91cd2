package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"weather-yield/internal/models"
	"weather-yield/internal/repository"
	"weather-yield/pkg/logging"
	"weather-yield/pkg/metrics"
)

// ErrInvalidPage is returned for an offset below 1 or a limit out of range
var ErrInvalidPage = errors.New("invalid pagination")

// Paging holds the per-endpoint page size rules
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

var (
	ReadingsPaging = Paging{DefaultLimit: 1000, MaxLimit: 10000}
	StatsPaging    = Paging{DefaultLimit: 500, MaxLimit: 1000}
	YieldPaging    = Paging{DefaultLimit: 5, MaxLimit: 1000}
)

// Page selects a 1-based page number and a page size
type Page struct {
	Offset int
	Limit  int
}

// Validate checks the page against the rules
func (p Paging) Validate(page Page) error {
	if page.Offset < 1 {
		return fmt.Errorf("%w: offset must be >= 1", ErrInvalidPage)
	}
	if page.Limit < 1 || page.Limit > p.MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPage, p.MaxLimit)
	}
	return nil
}

// rowOffset converts a page number into rows to skip. A page number whose
// offset does not fit in an int saturates, so the page comes back empty.
// The saturated value leaves room for offset+limit inside the database.
func (page Page) rowOffset() int {
	if page.Offset-1 > (math.MaxInt-page.Limit)/page.Limit {
		return math.MaxInt - page.Limit
	}
	return (page.Offset - 1) * page.Limit
}

// PageResult is one page of rows plus what a client needs to keep paging
type PageResult[T any] struct {
	Data       []T
	Total      int
	Offset     int
	Limit      int
	TotalPages int
}

func newPageResult[T any](data []T, total int, page Page) *PageResult[T] {
	if data == nil {
		data = []T{}
	}
	return &PageResult[T]{
		Data:       data,
		Total:      total,
		Offset:     page.Offset,
		Limit:      page.Limit,
		TotalPages: (total + page.Limit - 1) / page.Limit,
	}
}

// ReadingQuery filters readings; zero values mean "no filter"
type ReadingQuery struct {
	StationID string
	Date      *time.Time
	Page      Page
}

// StatsQuery filters yearly stats
type StatsQuery struct {
	StationID string
	Year      *int
	Page      Page
}

// YieldQuery filters yield rows
type YieldQuery struct {
	Year *int
	Page Page
}

// Querier is the read side consumed by the HTTP handlers
type Querier interface {
	ListReadings(ctx context.Context, q ReadingQuery) (*PageResult[models.ReadingView], error)
	ListStats(ctx context.Context, q StatsQuery) (*PageResult[models.StatsView], error)
	ListYield(ctx context.Context, q YieldQuery) (*PageResult[models.YieldRecord], error)
	HealthCheck(ctx context.Context) error
}

// QueryService answers filtered, paginated reads. It holds no state between calls.
type QueryService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

var _ Querier = (*QueryService)(nil)

// NewQueryService creates a new query service
func NewQueryService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *QueryService {
	return &QueryService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ListReadings returns a page of readings ordered by date then station
func (s *QueryService) ListReadings(ctx context.Context, q ReadingQuery) (*PageResult[models.ReadingView], error) {
	if err := ReadingsPaging.Validate(q.Page); err != nil {
		return nil, err
	}

	filter := repository.ReadingFilter{
		Date:   q.Date,
		Limit:  q.Page.Limit,
		Offset: q.Page.rowOffset(),
	}
	if q.StationID != "" {
		filter.StationID = &q.StationID
	}

	readings, total, err := s.repo.ListReadings(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]models.ReadingView, 0, len(readings))
	for _, rd := range readings {
		views = append(views, rd.View())
	}

	return newPageResult(views, total, q.Page), nil
}

// ListStats returns a page of yearly stats ordered by year then station
func (s *QueryService) ListStats(ctx context.Context, q StatsQuery) (*PageResult[models.StatsView], error) {
	if err := StatsPaging.Validate(q.Page); err != nil {
		return nil, err
	}

	filter := repository.StatisticsFilter{
		Year:   q.Year,
		Limit:  q.Page.Limit,
		Offset: q.Page.rowOffset(),
	}
	if q.StationID != "" {
		filter.StationID = &q.StationID
	}

	stats, total, err := s.repo.ListStatistics(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]models.StatsView, 0, len(stats))
	for _, st := range stats {
		views = append(views, st.View())
	}

	return newPageResult(views, total, q.Page), nil
}

// ListYield returns a page of yield rows ordered by year
func (s *QueryService) ListYield(ctx context.Context, q YieldQuery) (*PageResult[models.YieldRecord], error) {
	if err := YieldPaging.Validate(q.Page); err != nil {
		return nil, err
	}

	records, total, err := s.repo.ListYield(ctx, repository.YieldFilter{
		Year:   q.Year,
		Limit:  q.Page.Limit,
		Offset: q.Page.rowOffset(),
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.YieldRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}

	return newPageResult(out, total, q.Page), nil
}

// HealthCheck reports whether the store is reachable
func (s *QueryService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
