package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateBooking      = "CREATE_BOOKING"
	ActionUpdateBooking      = "UPDATE_BOOKING"
	ActionBookingTransition  = "BOOKING_STATUS"
	ActionUpsertPricing      = "UPSERT_AGENT_PRICING"
	ActionBulkPricing        = "BULK_AGENT_PRICING"
	ActionCreateInvoice      = "CREATE_INVOICE"
	ActionInvoiceStatus      = "INVOICE_STATUS"
	ActionDeleteInvoice      = "DELETE_INVOICE"
	ActionMergeAgents        = "MERGE_AGENTS"
	ActionUpdateSettings     = "UPDATE_SETTINGS"
	ActionTeamChange         = "TEAM_CHANGE"
	ActionUpsertAvailability = "UPSERT_AVAILABILITY"
	ActionPaymentUpdate      = "PAYMENT_UPDATE"
)

// AuditLog tracks Who, What, and When for critical back-office changes
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for guests and background jobs
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
