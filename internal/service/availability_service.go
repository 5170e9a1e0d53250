package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourdesk/internal/availability"
	"tourdesk/internal/model"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SlotInput struct {
	Date       string `json:"date" binding:"required,datetime=2006-01-02"`
	TotalSlots int    `json:"total_slots" binding:"min=0"`
	IsOpen     *bool  `json:"is_open" binding:"required"`
}

type UpsertSlotsRequest struct {
	Slots []SlotInput `json:"slots" binding:"required,min=1,max=366,dive"`
}

type AvailabilityService interface {
	DayStatus(ctx context.Context, scope Scope, programID uuid.UUID, date time.Time) (*availability.Day, error)
	Calendar(ctx context.Context, scope Scope, programID uuid.UUID, year int, month time.Month) ([]availability.Day, error)
	UpsertSlots(ctx context.Context, scope Scope, programID uuid.UUID, req UpsertSlotsRequest) ([]availability.Day, error)
}

type availabilityService struct {
	availRepo   repository.AvailabilityRepository
	programRepo repository.ProgramRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewAvailabilityService(
	availRepo repository.AvailabilityRepository,
	programRepo repository.ProgramRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) AvailabilityService {
	return &availabilityService{
		availRepo:   availRepo,
		programRepo: programRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// evaluateDate reads one date's slot row and booked pax. Set lock inside a
// transaction to hold the slot row until it ends.
func evaluateDate(ctx context.Context, repo repository.AvailabilityRepository, programID uuid.UUID, date, today time.Time, lock bool) (availability.Day, error) {
	find := repo.Find
	if lock {
		find = repo.FindForUpdate
	}

	var slot *availability.Slot
	row, err := find(ctx, programID, date)
	switch {
	case err == nil:
		slot = &availability.Slot{TotalSlots: row.TotalSlots, IsOpen: row.IsOpen}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return availability.Day{}, fmt.Errorf("failed to load availability: %w", err)
	}

	booked, err := repo.BookedPax(ctx, programID, date)
	if err != nil {
		return availability.Day{}, fmt.Errorf("failed to count booked pax: %w", err)
	}
	return availability.Evaluate(slot, booked, date, today), nil
}

// monthCalendar evaluates every date of a month in two queries.
func monthCalendar(ctx context.Context, repo repository.AvailabilityRepository, programID uuid.UUID, year int, month time.Month, loc *time.Location, today time.Time) ([]availability.Day, error) {
	if month < time.January || month > time.December {
		return nil, invalid("month must be between 1 and 12")
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := repo.Range(ctx, programID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to load availability: %w", err)
	}
	slots := make(map[string]availability.Slot, len(rows))
	for _, row := range rows {
		slots[availability.DateKey(row.Date.UTC())] = availability.Slot{TotalSlots: row.TotalSlots, IsOpen: row.IsOpen}
	}

	pax, err := repo.BookedPaxByDate(ctx, programID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to count booked pax: %w", err)
	}
	booked := make(map[string]int, len(pax))
	for date, n := range pax {
		booked[availability.DateKey(date)] = n
	}

	return availability.Month(year, month, loc, slots, booked, today), nil
}

func (s *availabilityService) program(ctx context.Context, scope Scope, programID uuid.UUID) (*model.Program, error) {
	program, err := s.programRepo.FindByID(ctx, scope.CompanyID, programID)
	if err != nil {
		return nil, lookupErr("program", err)
	}
	return program, nil
}

// DayStatus evaluates one date. The result is advisory and reserves nothing.
func (s *availabilityService) DayStatus(ctx context.Context, scope Scope, programID uuid.UUID, date time.Time) (*availability.Day, error) {
	if _, err := s.program(ctx, scope, programID); err != nil {
		return nil, err
	}
	day, err := evaluateDate(ctx, s.availRepo, programID, availability.CalendarDate(date), scope.Today(), false)
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (s *availabilityService) Calendar(ctx context.Context, scope Scope, programID uuid.UUID, year int, month time.Month) ([]availability.Day, error) {
	if _, err := s.program(ctx, scope, programID); err != nil {
		return nil, err
	}
	return monthCalendar(ctx, s.availRepo, programID, year, month, scope.loc(), scope.Today())
}

// UpsertSlots sets the capacity of each listed date and returns their new
// state. A later entry for the same date wins.
func (s *availabilityService) UpsertSlots(ctx context.Context, scope Scope, programID uuid.UUID, req UpsertSlotsRequest) ([]availability.Day, error) {
	program, err := s.program(ctx, scope, programID)
	if err != nil {
		return nil, err
	}

	byDate := map[string]int{}
	rows := make([]model.ProgramAvailability, 0, len(req.Slots))
	for _, in := range req.Slots {
		date, err := availability.ParseDate(in.Date)
		if err != nil {
			return nil, invalid("invalid date %q", in.Date)
		}
		if in.TotalSlots < 0 {
			return nil, invalid("total slots must not be negative")
		}
		row := model.ProgramAvailability{
			CompanyID:  scope.CompanyID,
			ProgramID:  program.ID,
			Date:       date,
			TotalSlots: in.TotalSlots,
			IsOpen:     in.IsOpen != nil && *in.IsOpen,
		}
		if i, ok := byDate[in.Date]; ok {
			rows[i] = row
			continue
		}
		byDate[in.Date] = len(rows)
		rows = append(rows, row)
	}

	today := scope.Today()
	days := make([]availability.Day, 0, len(rows))
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.availRepo.Upsert(txCtx, rows); err != nil {
			return fmt.Errorf("failed to save availability: %w", err)
		}
		for _, row := range rows {
			day, err := evaluateDate(txCtx, s.availRepo, program.ID, row.Date, today, false)
			if err != nil {
				return err
			}
			days = append(days, day)
		}
		entry := newAuditLog(scope, model.ActionUpsertAvailability, program.ID.String(), program.Name, req)
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return days, nil
}
