package repository

import (
	"context"
	"time"

	"tourdesk/internal/model"
	"tourdesk/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceFilter narrows invoice listings. Status matches the effective status,
// so "overdue" also finds sent invoices whose due date is before Today.
type InvoiceFilter struct {
	Status    string
	AgentID   *uuid.UUID
	InvoiceNo string // partial match
	Today     time.Time
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, companyID uuid.UUID, filter InvoiceFilter, page pagination.Params) ([]model.Invoice, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	NumbersWithPrefix(ctx context.Context, companyID uuid.UUID, prefix string) ([]string, error)
	MarkOverdue(ctx context.Context, companyID uuid.UUID, today time.Time) (int64, error)
	ReassignAgent(ctx context.Context, fromID, toID uuid.UUID) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create inserts the invoice together with its items.
func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Omit("Agent").Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("Agent", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		First(&invoice, "company_id = ? AND id = ?", companyID, id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, companyID uuid.UUID, filter InvoiceFilter, page pagination.Params) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("company_id = ?", companyID)
	switch filter.Status {
	case "":
	case model.InvoiceOverdue:
		query = query.Where("status = ? OR (status = ? AND due_date < ?)", model.InvoiceOverdue, model.InvoiceSent, filter.Today)
	case model.InvoiceSent:
		query = query.Where("status = ? AND due_date >= ?", model.InvoiceSent, filter.Today)
	default:
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AgentID != nil {
		query = query.Where("agent_id = ?", *filter.AgentID)
	}
	if filter.InvoiceNo != "" {
		query = query.Where("invoice_no LIKE ?", "%"+filter.InvoiceNo+"%")
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := page.OrderClause()
	if order == "" {
		order = "created_at DESC"
	}
	if err := query.Preload("Agent", func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }).
		Order(order).Offset(page.Offset).Limit(page.Limit).
		Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *invoiceRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return GetDB(ctx, r.db).Model(&model.Invoice{}).Where("id = ?", id).Updates(fields).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("invoice_id = ?", id).Delete(&model.InvoiceItem{}).Error; err != nil {
		return err
	}
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Invoice{}).Error
}

// NumbersWithPrefix lists every invoice number of a company starting with prefix.
func (r *invoiceRepository) NumbersWithPrefix(ctx context.Context, companyID uuid.UUID, prefix string) ([]string, error) {
	var numbers []string
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("company_id = ? AND invoice_no LIKE ?", companyID, prefix+"%").
		Pluck("invoice_no", &numbers).Error
	return numbers, err
}

// MarkOverdue persists the overdue status of every sent invoice due before today.
func (r *invoiceRepository) MarkOverdue(ctx context.Context, companyID uuid.UUID, today time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("company_id = ? AND status = ? AND due_date < ?", companyID, model.InvoiceSent, today).
		Update("status", model.InvoiceOverdue)
	return res.RowsAffected, res.Error
}

func (r *invoiceRepository) ReassignAgent(ctx context.Context, fromID, toID uuid.UUID) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("agent_id = ?", fromID).Update("agent_id", toID)
	return res.RowsAffected, res.Error
}
