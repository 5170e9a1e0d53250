package service

import (
	"context"
	"encoding/json"
	"log"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"
	"tourdesk/pkg/pagination"

	"gorm.io/datatypes"
)

func newAuditLog(scope Scope, action, entityID, entityName string, details interface{}) *model.AuditLog {
	raw, _ := json.Marshal(details)
	return &model.AuditLog{
		CompanyID:  scope.CompanyID,
		UserID:     scope.UserID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    datatypes.JSON(raw),
	}
}

// logBestEffort writes an audit entry whose failure must not undo the change.
func logBestEffort(ctx context.Context, repo repository.AuditRepository, entry *model.AuditLog) {
	if err := repo.Log(ctx, entry); err != nil {
		log.Printf("[AUDIT] failed to write %s for %s: %v", entry.Action, entry.EntityID, err)
	}
}

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Details    json.RawMessage `json:"details" swaggertype:"object"`
	CreatedAt  string          `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, scope Scope, action string, page pagination.Params) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs lists the company's audit trail, newest first
func (s *auditService) GetAuditLogs(ctx context.Context, scope Scope, action string, page pagination.Params) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, scope.CompanyID, action, page)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		details := json.RawMessage(l.Details)
		if len(details) == 0 {
			details = json.RawMessage("null")
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
