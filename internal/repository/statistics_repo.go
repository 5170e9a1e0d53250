package repository

import (
	"context"
	"fmt"
	"time"

	"tourdesk/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatisticsRepository aggregates bookings and invoices for the dashboard
type StatisticsRepository interface {
	CountByStatus(ctx context.Context, companyID uuid.UUID, start, end time.Time) (map[string]int64, error)
	PaxAndCollect(ctx context.Context, companyID uuid.UUID, start, end time.Time) (int64, decimal.Decimal, error)
	OnlineRevenue(ctx context.Context, companyID uuid.UUID, start, end time.Time) (decimal.Decimal, error)
	InvoiceTotals(ctx context.Context, companyID uuid.UUID, start, end time.Time) (invoiced, outstanding decimal.Decimal, err error)
	TopPrograms(ctx context.Context, companyID uuid.UUID, start, end time.Time, limit int) ([]model.ProgramRanking, error)
	TopAgents(ctx context.Context, companyID uuid.UUID, start, end time.Time, limit int) ([]model.AgentRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

var excludedStatuses = []string{model.BookingCancelled, model.BookingVoid}

func (r *statisticsRepository) CountByStatus(ctx context.Context, companyID uuid.UUID, start, end time.Time) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Booking{}).
		Select("status, COUNT(*) as count").
		Where("company_id = ? AND activity_date >= ? AND activity_date <= ?", companyID, start, end).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// PaxAndCollect sums guests and collect amounts of live bookings.
func (r *statisticsRepository) PaxAndCollect(ctx context.Context, companyID uuid.UUID, start, end time.Time) (int64, decimal.Decimal, error) {
	var result struct {
		Pax     int64
		Collect decimal.Decimal
	}
	if err := GetDB(ctx, r.db).Model(&model.Booking{}).
		Select("COALESCE(SUM(adults + children + infants), 0) as pax, COALESCE(SUM(collect_amount), 0) as collect").
		Where("company_id = ? AND activity_date >= ? AND activity_date <= ? AND status NOT IN ?", companyID, start, end, excludedStatuses).
		Scan(&result).Error; err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to sum bookings: %w", err)
	}
	return result.Pax, result.Collect, nil
}

// OnlineRevenue sums what guests paid through the booking page.
func (r *statisticsRepository) OnlineRevenue(ctx context.Context, companyID uuid.UUID, start, end time.Time) (decimal.Decimal, error) {
	var result struct {
		Online decimal.Decimal
	}
	if err := GetDB(ctx, r.db).Model(&model.Booking{}).
		Select("COALESCE(SUM(online_amount), 0) as online").
		Where("company_id = ? AND activity_date >= ? AND activity_date <= ? AND payment_status = ? AND status NOT IN ?",
			companyID, start, end, model.PaymentPaid, excludedStatuses).
		Scan(&result).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum online payments: %w", err)
	}
	return result.Online, nil
}

// InvoiceTotals sums invoices created in the range, and the part of them not paid yet.
func (r *statisticsRepository) InvoiceTotals(ctx context.Context, companyID uuid.UUID, start, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var result struct {
		Invoiced    decimal.Decimal
		Outstanding decimal.Decimal
	}
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("COALESCE(SUM(total_amount), 0) as invoiced, COALESCE(SUM(CASE WHEN status <> ? THEN total_amount ELSE 0 END), 0) as outstanding", model.InvoicePaid).
		Where("company_id = ? AND created_at >= ? AND created_at < ?", companyID, start, end.AddDate(0, 0, 1)).
		Scan(&result).Error; err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum invoices: %w", err)
	}
	return result.Invoiced, result.Outstanding, nil
}

func (r *statisticsRepository) TopPrograms(ctx context.Context, companyID uuid.UUID, start, end time.Time, limit int) ([]model.ProgramRanking, error) {
	var rankings []model.ProgramRanking
	if err := GetDB(ctx, r.db).Table("bookings").
		Select("programs.id as program_id, programs.name as program_name, COUNT(bookings.id) as bookings, SUM(bookings.adults + bookings.children) as pax").
		Joins("JOIN programs ON programs.id = bookings.program_id").
		Where("bookings.company_id = ? AND bookings.activity_date >= ? AND bookings.activity_date <= ? AND bookings.status NOT IN ?", companyID, start, end, excludedStatuses).
		Group("programs.id, programs.name").
		Order("pax DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top programs: %w", err)
	}
	return rankings, nil
}

func (r *statisticsRepository) TopAgents(ctx context.Context, companyID uuid.UUID, start, end time.Time, limit int) ([]model.AgentRanking, error) {
	var rankings []model.AgentRanking
	if err := GetDB(ctx, r.db).Table("bookings").
		Select("agents.id as agent_id, agents.name as agent_name, COUNT(bookings.id) as bookings, SUM(bookings.adults + bookings.children) as pax").
		Joins("JOIN agents ON agents.id = bookings.agent_id").
		Where("bookings.company_id = ? AND bookings.activity_date >= ? AND bookings.activity_date <= ? AND bookings.status NOT IN ?", companyID, start, end, excludedStatuses).
		Group("agents.id, agents.name").
		Order("COUNT(bookings.id) DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top agents: %w", err)
	}
	return rankings, nil
}
