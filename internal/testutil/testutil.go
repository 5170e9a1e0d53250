// Package testutil opens throwaway SQLite databases and seeds the rows most
// tests start from.
package testutil

import (
	"fmt"
	"testing"

	"tourdesk/internal/database"
	"tourdesk/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an in-memory database named after the test and migrates it.
// A single connection keeps the memory database alive and serialises writers.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Company creates a tenant with default settings.
func Company(t *testing.T, db *gorm.DB, slug string) model.Company {
	t.Helper()
	company := model.Company{Name: "Company " + slug, Slug: slug, Timezone: "UTC", Currency: "THB"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("company: %v", err)
	}
	settings := model.DefaultSettings(company.ID)
	if err := db.Create(&settings).Error; err != nil {
		t.Fatalf("settings: %v", err)
	}
	return company
}

// Agent creates an active agent.
func Agent(t *testing.T, db *gorm.DB, company model.Company, name string, direct bool) model.Agent {
	t.Helper()
	agent := model.Agent{CompanyID: company.ID, Name: name, IsDirect: direct, IsActive: true}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("agent: %v", err)
	}
	return agent
}

// Program creates an active single-price program.
func Program(t *testing.T, db *gorm.DB, company model.Company, code string, price string) model.Program {
	t.Helper()
	program := model.Program{
		CompanyID:    company.ID,
		Code:         code,
		Name:         "Program " + code,
		PricingType:  model.PricingSingle,
		SellingPrice: decimal.RequireFromString(price),
		IsActive:     true,
	}
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("program: %v", err)
	}
	return program
}

// Booking inserts b after filling the fields every booking needs.
func Booking(t *testing.T, db *gorm.DB, b model.Booking) model.Booking {
	t.Helper()
	if b.BookingRef == "" {
		b.BookingRef = fmt.Sprintf("BK-T%d", len(b.CustomerName)+b.Adults*10+b.Children*100)
	}
	if b.CustomerName == "" {
		b.CustomerName = "Guest"
	}
	if b.Status == "" {
		b.Status = model.BookingConfirmed
	}
	if b.Transport == "" {
		b.Transport = model.TransportComeDirect
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = model.PaymentUnpaid
	}
	if b.Source == "" {
		b.Source = model.SourceStaff
	}
	if err := db.Omit("Program", "Agent").Create(&b).Error; err != nil {
		t.Fatalf("booking: %v", err)
	}
	return b
}
