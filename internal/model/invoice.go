package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants. Overdue is normally derived from DueDate and
// only persisted by the overdue sweep.
const (
	InvoiceDraft   = "draft"
	InvoiceSent    = "sent"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
)

// Invoice groups the bookings of one agent
type Invoice struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_company_invoice_no" json:"company_id"`
	InvoiceNo   string          `gorm:"type:varchar(30);not null;uniqueIndex:idx_company_invoice_no" json:"invoice_no"`
	AgentID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"agent_id"`
	Agent       *Agent          `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	PeriodStart time.Time       `gorm:"type:date" json:"period_start"`
	PeriodEnd   time.Time       `gorm:"type:date" json:"period_end"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"tax_rate"`
	TaxAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"tax_amount"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status      string          `gorm:"type:varchar(20);not null;index" json:"status"`
	DueDate     time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	SentAt      *time.Time      `json:"sent_at"`
	PaidAt      *time.Time      `json:"paid_at"`
	CreatedBy   *uuid.UUID      `gorm:"type:uuid" json:"created_by"`
	Items       []InvoiceItem   `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// InvoiceItem is one booking line on an invoice
type InvoiceItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	BookingID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"booking_id"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
	Pax         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"pax"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (i *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// InvoiceSequence is the database-backed invoice counter for one company and
// month, used when no Redis counter is configured.
type InvoiceSequence struct {
	CompanyID uuid.UUID `gorm:"type:uuid;primaryKey" json:"company_id"`
	Period    string    `gorm:"type:varchar(6);primaryKey" json:"period"` // YYYYMM
	LastValue int64     `gorm:"not null" json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}
