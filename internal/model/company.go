package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Company is a tenant. Every other row is scoped by company_id.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"` // public booking page path
	Timezone  string    `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	Currency  string    `gorm:"type:varchar(3);not null;default:'THB'" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// Location resolves the company's time zone, falling back to UTC.
func (c *Company) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CompanySettings holds per-tenant configuration edited from the settings screen.
type CompanySettings struct {
	CompanyID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"company_id"`
	InvoiceTaxRate     decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"invoice_tax_rate"` // 0.07 = 7%
	DefaultDueDays     int             `gorm:"not null;default:14" json:"default_due_days"`
	NotifyEmail        string          `gorm:"type:varchar(255)" json:"notify_email"` // OP report recipient
	BookingPageEnabled bool            `json:"booking_page_enabled"`
	InvoiceFooter      string          `gorm:"type:text" json:"invoice_footer"`
	PickupEmailSubject string          `gorm:"type:varchar(255)" json:"pickup_email_subject"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DefaultSettings returns the settings a company starts with.
func DefaultSettings(companyID uuid.UUID) CompanySettings {
	return CompanySettings{
		CompanyID:          companyID,
		InvoiceTaxRate:     decimal.Zero,
		DefaultDueDays:     14,
		BookingPageEnabled: true,
		PickupEmailSubject: "Your pickup time",
	}
}
