package database

import (
	"log"

	"tourdesk/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection opens the Postgres pool and migrates the schema
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// Migrate creates or updates every table. Tests call it on SQLite.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Company{},
		&model.CompanySettings{},
		&model.User{},
		&model.Agent{},
		&model.Program{},
		&model.AgentPricing{},
		&model.ProgramAvailability{},
		&model.Booking{},
		&model.Invoice{},
		&model.InvoiceItem{},
		&model.InvoiceSequence{},
		&model.AuditLog{},
	)
}
