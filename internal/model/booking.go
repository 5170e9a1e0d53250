package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BookingStatus enum constants
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
	BookingVoid      = "void"
)

// PaymentStatus enum constants
const (
	PaymentUnpaid  = "unpaid"
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Transport arrangements; a booking has exactly one
const (
	TransportPickup     = "pickup"
	TransportComeDirect = "come_direct"
)

// Booking sources
const (
	SourceStaff  = "staff"
	SourcePublic = "public"
)

// Booking is a reservation of a program on one activity date
type Booking struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	BookingRef    string          `gorm:"type:varchar(30);not null;index" json:"booking_ref"`
	ProgramID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"program_id"`
	Program       *Program        `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	AgentID       *uuid.UUID      `gorm:"type:uuid;index" json:"agent_id"`
	Agent         *Agent          `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	CustomerName  string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail string          `gorm:"type:varchar(255)" json:"customer_email"`
	CustomerPhone string          `gorm:"type:varchar(50)" json:"customer_phone"`
	Hotel         string          `gorm:"type:varchar(255)" json:"hotel"`
	RoomNo        string          `gorm:"type:varchar(30)" json:"room_no"`
	Transport     string          `gorm:"type:varchar(20);not null" json:"transport"`
	PickupTime    string          `gorm:"type:varchar(5)" json:"pickup_time"` // HH:MM
	Adults        int             `gorm:"not null" json:"adults"`
	Children      int             `gorm:"not null" json:"children"`
	Infants       int             `gorm:"not null" json:"infants"`
	ActivityDate  time.Time       `gorm:"type:date;not null;index" json:"activity_date"`
	CollectAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"collect_amount"`
	OnlineAmount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"online_amount"` // charged through the booking page
	Status        string          `gorm:"type:varchar(20);not null;index" json:"status"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"`
	PaymentStatus string          `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentRef    string          `gorm:"type:varchar(100);index" json:"payment_ref"`
	Source        string          `gorm:"type:varchar(20);not null" json:"source"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Extras        datatypes.JSON  `json:"extras,omitempty"` // free-form add-ons captured by the booking form
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// SlotPax returns the head count that occupies slots (infants ride free).
func (b *Booking) SlotPax() int {
	return b.Adults + b.Children
}
