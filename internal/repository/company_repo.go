package repository

import (
	"context"

	"tourdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompanyRepository reads tenants and their settings
type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	Update(ctx context.Context, company *model.Company) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	FindBySlug(ctx context.Context, slug string) (*model.Company, error)
	ListAll(ctx context.Context) ([]model.Company, error)
	GetSettings(ctx context.Context, companyID uuid.UUID) (*model.CompanySettings, error)
	SaveSettings(ctx context.Context, settings *model.CompanySettings) error
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Create(company).Error
}

func (r *companyRepository) Update(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Save(company).Error
}

func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindBySlug(ctx context.Context, slug string) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) ListAll(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	err := GetDB(ctx, r.db).Order("name asc").Find(&companies).Error
	return companies, err
}

func (r *companyRepository) GetSettings(ctx context.Context, companyID uuid.UUID) (*model.CompanySettings, error) {
	var settings model.CompanySettings
	if err := GetDB(ctx, r.db).First(&settings, "company_id = ?", companyID).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettings inserts or fully replaces the settings row of a company.
func (r *companyRepository) SaveSettings(ctx context.Context, settings *model.CompanySettings) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}},
		UpdateAll: true,
	}).Create(settings).Error
}
