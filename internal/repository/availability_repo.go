package repository

import (
	"context"
	"time"

	"tourdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AvailabilityRepository reads slot rows and the pax already booked against them
type AvailabilityRepository interface {
	Find(ctx context.Context, programID uuid.UUID, date time.Time) (*model.ProgramAvailability, error)
	FindForUpdate(ctx context.Context, programID uuid.UUID, date time.Time) (*model.ProgramAvailability, error)
	Range(ctx context.Context, programID uuid.UUID, from, to time.Time) ([]model.ProgramAvailability, error)
	Upsert(ctx context.Context, rows []model.ProgramAvailability) error
	BookedPax(ctx context.Context, programID uuid.UUID, date time.Time) (int, error)
	BookedPaxByDate(ctx context.Context, programID uuid.UUID, from, to time.Time) (map[time.Time]int, error)
}

type availabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func (r *availabilityRepository) Find(ctx context.Context, programID uuid.UUID, date time.Time) (*model.ProgramAvailability, error) {
	var row model.ProgramAvailability
	if err := GetDB(ctx, r.db).First(&row, "program_id = ? AND date = ?", programID, date).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindForUpdate locks the slot row until the surrounding transaction ends.
func (r *availabilityRepository) FindForUpdate(ctx context.Context, programID uuid.UUID, date time.Time) (*model.ProgramAvailability, error) {
	var row model.ProgramAvailability
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "program_id = ? AND date = ?", programID, date).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *availabilityRepository) Range(ctx context.Context, programID uuid.UUID, from, to time.Time) ([]model.ProgramAvailability, error) {
	var rows []model.ProgramAvailability
	err := GetDB(ctx, r.db).
		Where("program_id = ? AND date >= ? AND date <= ?", programID, from, to).
		Order("date asc").
		Find(&rows).Error
	return rows, err
}

func (r *availabilityRepository) Upsert(ctx context.Context, rows []model.ProgramAvailability) error {
	if len(rows) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "program_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_slots", "is_open", "updated_at"}),
	}).Create(&rows).Error
}

// BookedPax sums adults and children of every booking on the date that is not
// cancelled.
func (r *availabilityRepository) BookedPax(ctx context.Context, programID uuid.UUID, date time.Time) (int, error) {
	var booked int
	err := GetDB(ctx, r.db).Model(&model.Booking{}).
		Select("COALESCE(SUM(adults + children), 0)").
		Where("program_id = ? AND activity_date = ? AND status <> ?", programID, date, model.BookingCancelled).
		Scan(&booked).Error
	return booked, err
}

type paxRow struct {
	ActivityDate time.Time
	Adults       int
	Children     int
}

// BookedPaxByDate is BookedPax for every date of a range, keyed by the
// calendar date at midnight UTC.
func (r *availabilityRepository) BookedPaxByDate(ctx context.Context, programID uuid.UUID, from, to time.Time) (map[time.Time]int, error) {
	var rows []paxRow
	err := GetDB(ctx, r.db).Model(&model.Booking{}).
		Select("activity_date, adults, children").
		Where("program_id = ? AND activity_date >= ? AND activity_date <= ? AND status <> ?", programID, from, to, model.BookingCancelled).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	booked := make(map[time.Time]int, len(rows))
	for _, row := range rows {
		y, m, d := row.ActivityDate.UTC().Date()
		booked[time.Date(y, m, d, 0, 0, 0, 0, time.UTC)] += row.Adults + row.Children
	}
	return booked, nil
}
