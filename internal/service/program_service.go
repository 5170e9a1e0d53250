package service

import (
	"context"
	"fmt"
	"strings"

	"tourdesk/internal/model"
	"tourdesk/internal/pricing"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProgramRequest struct {
	Code              string          `json:"code" binding:"required,max=50"`
	Name              string          `json:"name" binding:"required,max=255"`
	PricingType       string          `json:"pricing_type" binding:"required,oneof=single adult_child"`
	SellingPrice      decimal.Decimal `json:"selling_price" swaggertype:"string"`
	AdultSellingPrice decimal.Decimal `json:"adult_selling_price" swaggertype:"string"`
	ChildSellingPrice decimal.Decimal `json:"child_selling_price" swaggertype:"string"`
	IsActive          *bool           `json:"is_active"`
}

type ProgramService interface {
	ListPrograms(ctx context.Context, scope Scope, activeOnly bool) ([]model.Program, error)
	GetProgram(ctx context.Context, scope Scope, id uuid.UUID) (*model.Program, error)
	CreateProgram(ctx context.Context, scope Scope, req ProgramRequest) (*model.Program, error)
	UpdateProgram(ctx context.Context, scope Scope, id uuid.UUID, req ProgramRequest) (*model.Program, error)
	DeleteProgram(ctx context.Context, scope Scope, id uuid.UUID) error
}

type programService struct {
	programRepo repository.ProgramRepository
}

func NewProgramService(programRepo repository.ProgramRepository) ProgramService {
	return &programService{programRepo: programRepo}
}

func applyProgram(p *model.Program, req ProgramRequest) error {
	if !pricing.ValidType(req.PricingType) {
		return invalid("unknown pricing type %q", req.PricingType)
	}
	if req.SellingPrice.IsNegative() || req.AdultSellingPrice.IsNegative() || req.ChildSellingPrice.IsNegative() {
		return invalid("prices must not be negative")
	}
	p.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	p.Name = strings.TrimSpace(req.Name)
	p.PricingType = req.PricingType
	// Only the fields of the chosen mode are kept.
	if req.PricingType == model.PricingAdultChild {
		p.SellingPrice = decimal.Zero
		p.AdultSellingPrice = req.AdultSellingPrice
		p.ChildSellingPrice = req.ChildSellingPrice
	} else {
		p.SellingPrice = req.SellingPrice
		p.AdultSellingPrice = decimal.Zero
		p.ChildSellingPrice = decimal.Zero
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return nil
}

func (s *programService) ListPrograms(ctx context.Context, scope Scope, activeOnly bool) ([]model.Program, error) {
	programs, err := s.programRepo.List(ctx, scope.CompanyID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	return programs, nil
}

func (s *programService) GetProgram(ctx context.Context, scope Scope, id uuid.UUID) (*model.Program, error) {
	program, err := s.programRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, lookupErr("program", err)
	}
	return program, nil
}

func (s *programService) CreateProgram(ctx context.Context, scope Scope, req ProgramRequest) (*model.Program, error) {
	program := model.Program{CompanyID: scope.CompanyID, IsActive: true}
	if err := applyProgram(&program, req); err != nil {
		return nil, err
	}
	if err := s.programRepo.Create(ctx, &program); err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}
	return &program, nil
}

func (s *programService) UpdateProgram(ctx context.Context, scope Scope, id uuid.UUID, req ProgramRequest) (*model.Program, error) {
	program, err := s.programRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, lookupErr("program", err)
	}
	if err := applyProgram(program, req); err != nil {
		return nil, err
	}
	if err := s.programRepo.Update(ctx, program); err != nil {
		return nil, fmt.Errorf("failed to update program: %w", err)
	}
	return program, nil
}

func (s *programService) DeleteProgram(ctx context.Context, scope Scope, id uuid.UUID) error {
	if _, err := s.programRepo.FindByID(ctx, scope.CompanyID, id); err != nil {
		return lookupErr("program", err)
	}
	return s.programRepo.Delete(ctx, scope.CompanyID, id)
}
