package service

import (
	"context"
	"errors"
	"fmt"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// loadSettings returns the company's settings, or the defaults when none
// were saved yet.
func loadSettings(ctx context.Context, repo repository.CompanyRepository, companyID uuid.UUID) (model.CompanySettings, error) {
	settings, err := repo.GetSettings(ctx, companyID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultSettings(companyID), nil
	}
	if err != nil {
		return model.CompanySettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return *settings, nil
}
