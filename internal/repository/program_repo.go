package repository

import (
	"context"

	"tourdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProgramRepository interface {
	Create(ctx context.Context, program *model.Program) error
	Update(ctx context.Context, program *model.Program) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Program, error)
	FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]model.Program, error)
	List(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.Program, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

type programRepository struct {
	db *gorm.DB
}

func NewProgramRepository(db *gorm.DB) ProgramRepository {
	return &programRepository{db: db}
}

func (r *programRepository) Create(ctx context.Context, program *model.Program) error {
	return GetDB(ctx, r.db).Create(program).Error
}

func (r *programRepository) Update(ctx context.Context, program *model.Program) error {
	return GetDB(ctx, r.db).Save(program).Error
}

func (r *programRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Program, error) {
	var program model.Program
	if err := GetDB(ctx, r.db).First(&program, "company_id = ? AND id = ?", companyID, id).Error; err != nil {
		return nil, err
	}
	return &program, nil
}

func (r *programRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]model.Program, error) {
	var programs []model.Program
	if len(ids) == 0 {
		return programs, nil
	}
	err := GetDB(ctx, r.db).Where("company_id = ? AND id IN ?", companyID, ids).Order("code asc").Find(&programs).Error
	return programs, err
}

func (r *programRepository) List(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.Program, error) {
	var programs []model.Program
	query := GetDB(ctx, r.db).Where("company_id = ?", companyID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code asc").Find(&programs).Error
	return programs, err
}

func (r *programRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("company_id = ? AND id = ?", companyID, id).Delete(&model.Program{}).Error
}
