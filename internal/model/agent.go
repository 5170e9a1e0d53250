package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agent is a booking partner: a travel agent, or the "direct" agent that stands
// for the company's own website.
type Agent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Email     string         `gorm:"type:varchar(255)" json:"email"`
	Phone     string         `gorm:"type:varchar(50)" json:"phone"`
	IsDirect  bool           `gorm:"not null" json:"is_direct"`
	IsActive  bool           `gorm:"not null" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
