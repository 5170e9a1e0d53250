package repository

import (
	"context"
	"time"

	"tourdesk/internal/model"
	"tourdesk/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingFilter narrows booking listings. Zero values mean "any".
type BookingFilter struct {
	From      *time.Time
	To        *time.Time
	Status    string
	AgentID   *uuid.UUID
	ProgramID *uuid.UUID
	Search    string // booking ref, customer name or hotel
	Invoiced  *bool
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	Update(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Booking, error)
	FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]model.Booking, error)
	FindByPaymentRef(ctx context.Context, ref string) (*model.Booking, error)
	List(ctx context.Context, companyID uuid.UUID, filter BookingFilter, page pagination.Params) ([]model.Booking, int64, error)
	ListAll(ctx context.Context, companyID uuid.UUID, filter BookingFilter) ([]model.Booking, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdatePayment(ctx context.Context, id uuid.UUID, paymentStatus, status string) error
	LinkInvoice(ctx context.Context, invoiceID uuid.UUID, bookingIDs []uuid.UUID) (int64, error)
	UnlinkInvoice(ctx context.Context, invoiceID uuid.UUID) error
	ReassignAgent(ctx context.Context, fromID, toID uuid.UUID) (int64, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return GetDB(ctx, r.db).Omit("Program", "Agent").Create(booking).Error
}

func (r *bookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	return GetDB(ctx, r.db).Omit("Program", "Agent").Save(booking).Error
}

func (r *bookingRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Booking, error) {
	var booking model.Booking
	if err := GetDB(ctx, r.db).Scopes(withRefs).
		First(&booking, "company_id = ? AND id = ?", companyID, id).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	if len(ids) == 0 {
		return bookings, nil
	}
	err := GetDB(ctx, r.db).Scopes(withRefs).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Order("activity_date asc, created_at asc").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) FindByPaymentRef(ctx context.Context, ref string) (*model.Booking, error) {
	var booking model.Booking
	if err := GetDB(ctx, r.db).Scopes(withRefs).First(&booking, "payment_ref = ?", ref).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

// withRefs preloads the program and agent, soft-deleted ones included, so
// history still renders their names.
func withRefs(db *gorm.DB) *gorm.DB {
	unscoped := func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }
	return db.Preload("Program", unscoped).Preload("Agent", unscoped)
}

func (r *bookingRepository) filtered(ctx context.Context, companyID uuid.UUID, f BookingFilter) *gorm.DB {
	query := GetDB(ctx, r.db).Model(&model.Booking{}).Where("company_id = ?", companyID)
	if f.From != nil {
		query = query.Where("activity_date >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("activity_date <= ?", *f.To)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.AgentID != nil {
		query = query.Where("agent_id = ?", *f.AgentID)
	}
	if f.ProgramID != nil {
		query = query.Where("program_id = ?", *f.ProgramID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("booking_ref LIKE ? OR customer_name LIKE ? OR hotel LIKE ?", like, like, like)
	}
	if f.Invoiced != nil {
		if *f.Invoiced {
			query = query.Where("invoice_id IS NOT NULL")
		} else {
			query = query.Where("invoice_id IS NULL")
		}
	}
	return query.Session(&gorm.Session{})
}

func (r *bookingRepository) List(ctx context.Context, companyID uuid.UUID, filter BookingFilter, page pagination.Params) ([]model.Booking, int64, error) {
	var bookings []model.Booking
	var total int64

	query := r.filtered(ctx, companyID, filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := page.OrderClause()
	if order == "" {
		order = "activity_date DESC"
	}
	if err := query.Scopes(withRefs).
		Order(order).Offset(page.Offset).Limit(page.Limit).
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// ListAll returns every matching booking, oldest activity first.
func (r *bookingRepository) ListAll(ctx context.Context, companyID uuid.UUID, filter BookingFilter) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.filtered(ctx, companyID, filter).Scopes(withRefs).
		Order("activity_date asc, pickup_time asc").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Booking{}).Where("id = ?", id).Update("status", status).Error
}

func (r *bookingRepository) UpdatePayment(ctx context.Context, id uuid.UUID, paymentStatus, status string) error {
	return GetDB(ctx, r.db).Model(&model.Booking{}).Where("id = ?", id).Updates(map[string]interface{}{
		"payment_status": paymentStatus,
		"status":         status,
	}).Error
}

// LinkInvoice attaches bookings that are not invoiced yet and reports how many
// rows it touched. A short count means another invoice claimed some of them.
func (r *bookingRepository) LinkInvoice(ctx context.Context, invoiceID uuid.UUID, bookingIDs []uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Booking{}).
		Where("id IN ? AND invoice_id IS NULL", bookingIDs).
		Update("invoice_id", invoiceID)
	return res.RowsAffected, res.Error
}

func (r *bookingRepository) UnlinkInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Booking{}).
		Where("invoice_id = ?", invoiceID).
		Update("invoice_id", nil).Error
}

func (r *bookingRepository) ReassignAgent(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Booking{}).Where("agent_id = ?", fromID).Update("agent_id", toID)
	return res.RowsAffected, res.Error
}
