package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricingType enum constants
const (
	PricingSingle     = "single"
	PricingAdultChild = "adult_child"
)

// Program is a tour product
type Program struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	Code              string          `gorm:"type:varchar(50);not null" json:"code"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	PricingType       string          `gorm:"type:varchar(20);not null" json:"pricing_type"`
	SellingPrice      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"selling_price"`
	AdultSellingPrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"adult_selling_price"`
	ChildSellingPrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"child_selling_price"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (p *Program) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// AgentPricing is an agent's override price for one program.
// It has no identity beyond the (agent_id, program_id) pair.
type AgentPricing struct {
	AgentID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"agent_id"`
	ProgramID       uuid.UUID       `gorm:"type:uuid;primaryKey" json:"program_id"`
	CompanyID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"company_id"`
	AgentPrice      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"agent_price"`
	AdultAgentPrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"adult_agent_price"`
	ChildAgentPrice decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"child_agent_price"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProgramAvailability is the slot capacity of a program on one date
type ProgramAvailability struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID  uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	ProgramID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_program_date" json:"program_id"`
	Date       time.Time `gorm:"type:date;not null;uniqueIndex:idx_program_date" json:"date"`
	TotalSlots int       `gorm:"not null" json:"total_slots"`
	IsOpen     bool      `gorm:"not null" json:"is_open"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (a *ProgramAvailability) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
