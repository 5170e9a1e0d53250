package service

import (
	"context"
	"fmt"
	"strings"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"
	"tourdesk/pkg/pagination"

	"github.com/google/uuid"
)

type AgentRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"omitempty,email"`
	Phone    string `json:"phone" binding:"max=50"`
	IsDirect bool   `json:"is_direct"`
	IsActive *bool  `json:"is_active"` // defaults to true
}

type MergeAgentsRequest struct {
	TargetID  string   `json:"target_id" binding:"required,uuid"`
	SourceIDs []string `json:"source_ids" binding:"required,min=1,dive,uuid"`
}

type AgentService interface {
	ListAgents(ctx context.Context, scope Scope, filter repository.AgentFilter, page pagination.Params) ([]model.Agent, int64, error)
	GetAgent(ctx context.Context, scope Scope, id uuid.UUID) (*model.Agent, error)
	CreateAgent(ctx context.Context, scope Scope, req AgentRequest) (*model.Agent, error)
	UpdateAgent(ctx context.Context, scope Scope, id uuid.UUID, req AgentRequest) (*model.Agent, error)
	DeleteAgent(ctx context.Context, scope Scope, id uuid.UUID) error
	MergeDuplicates(ctx context.Context, scope Scope, req MergeAgentsRequest) (*BatchResult, error)
}

type agentService struct {
	agentRepo   repository.AgentRepository
	bookingRepo repository.BookingRepository
	invoiceRepo repository.InvoiceRepository
	pricingRepo repository.AgentPricingRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewAgentService(
	agentRepo repository.AgentRepository,
	bookingRepo repository.BookingRepository,
	invoiceRepo repository.InvoiceRepository,
	pricingRepo repository.AgentPricingRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) AgentService {
	return &agentService{
		agentRepo:   agentRepo,
		bookingRepo: bookingRepo,
		invoiceRepo: invoiceRepo,
		pricingRepo: pricingRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func (s *agentService) ListAgents(ctx context.Context, scope Scope, filter repository.AgentFilter, page pagination.Params) ([]model.Agent, int64, error) {
	agents, total, err := s.agentRepo.List(ctx, scope.CompanyID, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, total, nil
}

func (s *agentService) GetAgent(ctx context.Context, scope Scope, id uuid.UUID) (*model.Agent, error) {
	agent, err := s.agentRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, lookupErr("agent", err)
	}
	return agent, nil
}

func (s *agentService) CreateAgent(ctx context.Context, scope Scope, req AgentRequest) (*model.Agent, error) {
	agent := model.Agent{
		CompanyID: scope.CompanyID,
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Phone:     req.Phone,
		IsDirect:  req.IsDirect,
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	if agent.Name == "" {
		return nil, invalid("agent name is required")
	}
	if err := s.agentRepo.Create(ctx, &agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return &agent, nil
}

func (s *agentService) UpdateAgent(ctx context.Context, scope Scope, id uuid.UUID, req AgentRequest) (*model.Agent, error) {
	agent, err := s.agentRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, lookupErr("agent", err)
	}
	agent.Name = strings.TrimSpace(req.Name)
	agent.Email = req.Email
	agent.Phone = req.Phone
	agent.IsDirect = req.IsDirect
	if req.IsActive != nil {
		agent.IsActive = *req.IsActive
	}
	if agent.Name == "" {
		return nil, invalid("agent name is required")
	}
	if err := s.agentRepo.Update(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	return agent, nil
}

// DeleteAgent soft-deletes the agent; past bookings and invoices keep it.
func (s *agentService) DeleteAgent(ctx context.Context, scope Scope, id uuid.UUID) error {
	if _, err := s.agentRepo.FindByID(ctx, scope.CompanyID, id); err != nil {
		return lookupErr("agent", err)
	}
	return s.agentRepo.Delete(ctx, scope.CompanyID, id)
}

// MergeDuplicates folds each source agent into the target: bookings, invoices
// and prices move over and the source is deleted. Sources merge one
// transaction each and are reported separately.
func (s *agentService) MergeDuplicates(ctx context.Context, scope Scope, req MergeAgentsRequest) (*BatchResult, error) {
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		return nil, invalid("invalid target id")
	}
	target, err := s.agentRepo.FindByID(ctx, scope.CompanyID, targetID)
	if err != nil {
		return nil, lookupErr("target agent", err)
	}

	result := &BatchResult{}
	for _, raw := range req.SourceIDs {
		sourceID, err := uuid.Parse(raw)
		if err != nil {
			result.fail(raw, invalid("invalid agent id"))
			continue
		}
		if sourceID == target.ID {
			result.skip(raw, "source is the target")
			continue
		}

		var bookings, invoices int64
		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			source, err := s.agentRepo.FindByID(txCtx, scope.CompanyID, sourceID)
			if err != nil {
				return lookupErr("agent", err)
			}
			if bookings, err = s.bookingRepo.ReassignAgent(txCtx, source.ID, target.ID); err != nil {
				return fmt.Errorf("failed to move bookings: %w", err)
			}
			if invoices, err = s.invoiceRepo.ReassignAgent(txCtx, source.ID, target.ID); err != nil {
				return fmt.Errorf("failed to move invoices: %w", err)
			}
			if err := s.pricingRepo.MoveToAgent(txCtx, source.ID, target.ID); err != nil {
				return fmt.Errorf("failed to move prices: %w", err)
			}
			if err := s.agentRepo.Delete(txCtx, scope.CompanyID, source.ID); err != nil {
				return fmt.Errorf("failed to delete agent: %w", err)
			}
			entry := newAuditLog(scope, model.ActionMergeAgents, target.ID.String(), target.Name, map[string]interface{}{
				"source_id":   source.ID.String(),
				"source_name": source.Name,
				"bookings":    bookings,
				"invoices":    invoices,
			})
			return s.auditRepo.Log(txCtx, entry)
		})
		if err != nil {
			result.fail(raw, err)
			continue
		}
		result.ok(raw, fmt.Sprintf("moved %d bookings and %d invoices", bookings, invoices))
	}
	return result, nil
}
