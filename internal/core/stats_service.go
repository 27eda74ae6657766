package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StatsService answers cross-entity dashboard queries.
type StatsService struct {
	store  DataStore
	logger *logrus.Logger
}

func NewStatsService(store DataStore, logger *logrus.Logger) *StatsService {
	return &StatsService{store: store, logger: logger}
}

// Overview returns the system-wide count snapshot shown on the dashboard.
func (s *StatsService) Overview(ctx context.Context) (*SystemOverview, error) {
	return s.store.Overview(ctx)
}

// DeviceStatistics groups controllers by status and ranks the top five by
// attached sensors, raised alerts and hosted plantations.
func (s *StatsService) DeviceStatistics(ctx context.Context) (*DeviceStats, error) {
	return s.store.DeviceStatistics(ctx)
}

// GrowthPerformance reports harvest outcomes per plant category and alert
// resolution times for plantations planted within the period. Period is one
// of month, year or all; empty defaults to year.
func (s *StatsService) GrowthPerformance(ctx context.Context, period string) (*GrowthPerformance, error) {
	since, err := periodStart(period)
	if err != nil {
		return nil, err
	}

	byCategory, err := s.store.HarvestSuccessByCategory(ctx, since)
	if err != nil {
		return nil, err
	}
	resolution, err := s.store.AlertResolutionTime(ctx, since)
	if err != nil {
		return nil, err
	}

	return &GrowthPerformance{
		ByCategory:      byCategory,
		AlertResolution: resolution,
	}, nil
}

func periodStart(period string) (time.Time, error) {
	now := time.Now()
	switch period {
	case "", "year":
		return now.AddDate(-1, 0, 0), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	case "all":
		return time.Time{}, nil
	}
	return time.Time{}, NewValidationError("period", "unsupported period %q", period)
}
