package service

import (
	"context"
	"fmt"
	"time"

	"tourdesk/internal/invoicing"
	"tourdesk/internal/model"
	"tourdesk/internal/repository"

	"github.com/shopspring/decimal"
)

type UpdateSettingsRequest struct {
	CompanyName        *string          `json:"company_name" binding:"omitempty,max=255"`
	Timezone           *string          `json:"timezone"`
	InvoiceTaxRate     *decimal.Decimal `json:"invoice_tax_rate" swaggertype:"string"`
	DefaultDueDays     *int             `json:"default_due_days" binding:"omitempty,due_days"`
	NotifyEmail        *string          `json:"notify_email" binding:"omitempty,email"`
	BookingPageEnabled *bool            `json:"booking_page_enabled"`
	InvoiceFooter      *string          `json:"invoice_footer"`
	PickupEmailSubject *string          `json:"pickup_email_subject" binding:"omitempty,max=255"`
}

type SettingsResponse struct {
	model.CompanySettings
	CompanyName   string `json:"company_name"`
	Slug          string `json:"slug"`
	Timezone      string `json:"timezone"`
	Currency      string `json:"currency"`
	DueDayOptions []int  `json:"due_day_options"`
}

type SettingsService interface {
	GetSettings(ctx context.Context, scope Scope) (*SettingsResponse, error)
	UpdateSettings(ctx context.Context, scope Scope, req UpdateSettingsRequest) (*SettingsResponse, error)
}

type settingsService struct {
	companyRepo repository.CompanyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewSettingsService(companyRepo repository.CompanyRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) SettingsService {
	return &settingsService{companyRepo: companyRepo, auditRepo: auditRepo, txManager: txManager}
}

func toSettingsResponse(company *model.Company, settings model.CompanySettings) *SettingsResponse {
	return &SettingsResponse{
		CompanySettings: settings,
		CompanyName:     company.Name,
		Slug:            company.Slug,
		Timezone:        company.Timezone,
		Currency:        company.Currency,
		DueDayOptions:   invoicing.DueDayOptions,
	}
}

func (s *settingsService) GetSettings(ctx context.Context, scope Scope) (*SettingsResponse, error) {
	company, err := s.companyRepo.FindByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, lookupErr("company", err)
	}
	settings, err := loadSettings(ctx, s.companyRepo, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	return toSettingsResponse(company, settings), nil
}

// UpdateSettings applies the fields present in req. Owners and admins only.
func (s *settingsService) UpdateSettings(ctx context.Context, scope Scope, req UpdateSettingsRequest) (*SettingsResponse, error) {
	if !scope.CanManage() {
		return nil, fmt.Errorf("%w: only owners and admins can change settings", ErrForbidden)
	}
	if req.InvoiceTaxRate != nil && (req.InvoiceTaxRate.IsNegative() || req.InvoiceTaxRate.GreaterThanOrEqual(decimal.NewFromInt(1))) {
		return nil, invalid("tax rate must be a fraction between 0 and 1")
	}
	if req.DefaultDueDays != nil && !invoicing.ValidDueDays(*req.DefaultDueDays) {
		return nil, invalid("due days must be one of %v", invoicing.DueDayOptions)
	}
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, invalid("unknown timezone %q", *req.Timezone)
		}
	}

	var res *SettingsResponse
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		company, err := s.companyRepo.FindByID(txCtx, scope.CompanyID)
		if err != nil {
			return lookupErr("company", err)
		}
		settings, err := loadSettings(txCtx, s.companyRepo, scope.CompanyID)
		if err != nil {
			return err
		}

		if req.CompanyName != nil || req.Timezone != nil {
			if req.CompanyName != nil && *req.CompanyName != "" {
				company.Name = *req.CompanyName
			}
			if req.Timezone != nil {
				company.Timezone = *req.Timezone
			}
			if err := s.companyRepo.Update(txCtx, company); err != nil {
				return fmt.Errorf("failed to update company: %w", err)
			}
		}
		if req.InvoiceTaxRate != nil {
			settings.InvoiceTaxRate = *req.InvoiceTaxRate
		}
		if req.DefaultDueDays != nil {
			settings.DefaultDueDays = *req.DefaultDueDays
		}
		if req.NotifyEmail != nil {
			settings.NotifyEmail = *req.NotifyEmail
		}
		if req.BookingPageEnabled != nil {
			settings.BookingPageEnabled = *req.BookingPageEnabled
		}
		if req.InvoiceFooter != nil {
			settings.InvoiceFooter = *req.InvoiceFooter
		}
		if req.PickupEmailSubject != nil {
			settings.PickupEmailSubject = *req.PickupEmailSubject
		}
		if err := s.companyRepo.SaveSettings(txCtx, &settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}

		entry := newAuditLog(scope, model.ActionUpdateSettings, company.ID.String(), company.Name, req)
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		res = toSettingsResponse(company, settings)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
