package service

import (
	"context"
	"fmt"
	"time"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"
)

const topRankings = 5

type DashboardService interface {
	GetDashboard(ctx context.Context, scope Scope, start, end time.Time) (*model.DashboardStats, error)
}

type dashboardService struct {
	repo repository.StatisticsRepository
}

func NewDashboardService(repo repository.StatisticsRepository) DashboardService {
	return &dashboardService{repo: repo}
}

// GetDashboard aggregates bookings by activity date and invoices by issue
// date within [start, end]. Zero bounds default to the current month.
func (s *dashboardService) GetDashboard(ctx context.Context, scope Scope, start, end time.Time) (*model.DashboardStats, error) {
	today := scope.Today()
	if start.IsZero() {
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = start.AddDate(0, 1, -1)
	}
	if end.Before(start) {
		return nil, invalid("end date is before start date")
	}

	stats := &model.DashboardStats{RangeStart: start, RangeEnd: end}
	var err error
	if stats.BookingsByState, err = s.repo.CountByStatus(ctx, scope.CompanyID, start, end); err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	if stats.TotalPax, stats.CollectRevenue, err = s.repo.PaxAndCollect(ctx, scope.CompanyID, start, end); err != nil {
		return nil, fmt.Errorf("failed to sum pax: %w", err)
	}
	if stats.OnlineRevenue, err = s.repo.OnlineRevenue(ctx, scope.CompanyID, start, end); err != nil {
		return nil, fmt.Errorf("failed to sum online payments: %w", err)
	}
	if stats.InvoicedTotal, stats.OutstandingDue, err = s.repo.InvoiceTotals(ctx, scope.CompanyID, start, end); err != nil {
		return nil, fmt.Errorf("failed to sum invoices: %w", err)
	}
	if stats.TopPrograms, err = s.repo.TopPrograms(ctx, scope.CompanyID, start, end, topRankings); err != nil {
		return nil, fmt.Errorf("failed to rank programs: %w", err)
	}
	if stats.TopAgents, err = s.repo.TopAgents(ctx, scope.CompanyID, start, end, topRankings); err != nil {
		return nil, fmt.Errorf("failed to rank agents: %w", err)
	}
	return stats, nil
}
