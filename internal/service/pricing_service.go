package service

import (
	"context"
	"fmt"

	"tourdesk/internal/model"
	"tourdesk/internal/pricing"
	"tourdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type PriceInput struct {
	ProgramID       string          `json:"program_id" binding:"required,uuid"`
	AgentPrice      decimal.Decimal `json:"agent_price" swaggertype:"string"`
	AdultAgentPrice decimal.Decimal `json:"adult_agent_price" swaggertype:"string"`
	ChildAgentPrice decimal.Decimal `json:"child_agent_price" swaggertype:"string"`
}

type UpsertPricingRequest struct {
	Prices []PriceInput `json:"prices" binding:"required,min=1,dive"`
}

type BulkPricingRequest struct {
	AgentIDs   []string     `json:"agent_ids" binding:"required,min=1,dive,uuid"`
	ProgramIDs []string     `json:"program_ids" binding:"omitempty,dive,uuid"` // empty means every active program
	Prices     []PriceInput `json:"prices" binding:"omitempty,dive"`           // replace the selling-price defaults of the programs named
}

// ProgramPricingResponse is one row of an agent's pricing table.
type ProgramPricingResponse struct {
	ProgramID   string `json:"program_id"`
	ProgramCode string `json:"program_code"`
	ProgramName string `json:"program_name"`
	pricing.Quote
	Commission         decimal.Decimal `json:"commission" swaggertype:"string"`
	AdultCommission    decimal.Decimal `json:"adult_commission" swaggertype:"string"`
	ChildCommission    decimal.Decimal `json:"child_commission" swaggertype:"string"`
	NegativeCommission bool            `json:"negative_commission"`
}

type PricingService interface {
	GetAgentPricing(ctx context.Context, scope Scope, agentID uuid.UUID) ([]ProgramPricingResponse, error)
	UpsertAgentPricing(ctx context.Context, scope Scope, agentID uuid.UUID, req UpsertPricingRequest) ([]ProgramPricingResponse, error)
	BulkApplyDefaults(ctx context.Context, scope Scope, req BulkPricingRequest) (*BatchResult, error)
}

type pricingService struct {
	agentRepo   repository.AgentRepository
	programRepo repository.ProgramRepository
	pricingRepo repository.AgentPricingRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewPricingService(
	agentRepo repository.AgentRepository,
	programRepo repository.ProgramRepository,
	pricingRepo repository.AgentPricingRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) PricingService {
	return &pricingService{
		agentRepo:   agentRepo,
		programRepo: programRepo,
		pricingRepo: pricingRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

func programPrice(p model.Program) pricing.ProgramPrice {
	return pricing.ProgramPrice{
		PricingType:       p.PricingType,
		SellingPrice:      p.SellingPrice,
		AdultSellingPrice: p.AdultSellingPrice,
		ChildSellingPrice: p.ChildSellingPrice,
	}
}

func overrideOf(row model.AgentPricing) *pricing.Override {
	return &pricing.Override{
		AgentPrice:      row.AgentPrice,
		AdultAgentPrice: row.AdultAgentPrice,
		ChildAgentPrice: row.ChildAgentPrice,
	}
}

func toPricingResponse(p model.Program, q pricing.Quote) ProgramPricingResponse {
	return ProgramPricingResponse{
		ProgramID:          p.ID.String(),
		ProgramCode:        p.Code,
		ProgramName:        p.Name,
		Quote:              q,
		Commission:         q.Commission(),
		AdultCommission:    q.AdultCommission(),
		ChildCommission:    q.ChildCommission(),
		NegativeCommission: q.NegativeCommission(),
	}
}

// GetAgentPricing resolves the agent's price for every active program.
// Programs without an override show the selling price and zero commission.
func (s *pricingService) GetAgentPricing(ctx context.Context, scope Scope, agentID uuid.UUID) ([]ProgramPricingResponse, error) {
	if _, err := s.agentRepo.FindByID(ctx, scope.CompanyID, agentID); err != nil {
		return nil, lookupErr("agent", err)
	}

	programs, err := s.programRepo.List(ctx, scope.CompanyID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	rows, err := s.pricingRepo.ListByAgent(ctx, scope.CompanyID, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent pricing: %w", err)
	}
	overrides := make(map[uuid.UUID]model.AgentPricing, len(rows))
	for _, row := range rows {
		overrides[row.ProgramID] = row
	}

	res := make([]ProgramPricingResponse, 0, len(programs))
	for _, p := range programs {
		var o *pricing.Override
		if row, ok := overrides[p.ID]; ok {
			o = overrideOf(row)
		}
		res = append(res, toPricingResponse(p, pricing.Resolve(programPrice(p), o)))
	}
	return res, nil
}

// UpsertAgentPricing saves the submitted overrides in one transaction. Prices
// are stored as given; a price above the selling price only shows up as a
// negative commission.
func (s *pricingService) UpsertAgentPricing(ctx context.Context, scope Scope, agentID uuid.UUID, req UpsertPricingRequest) ([]ProgramPricingResponse, error) {
	agent, err := s.agentRepo.FindByID(ctx, scope.CompanyID, agentID)
	if err != nil {
		return nil, lookupErr("agent", err)
	}

	ids := make([]uuid.UUID, 0, len(req.Prices))
	for _, in := range req.Prices {
		id, err := uuid.Parse(in.ProgramID)
		if err != nil {
			return nil, invalid("invalid program id %q", in.ProgramID)
		}
		ids = append(ids, id)
	}
	programs, err := s.programRepo.FindByIDs(ctx, scope.CompanyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load programs: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(programs))
	for _, p := range programs {
		known[p.ID] = true
	}

	rows := make([]model.AgentPricing, 0, len(req.Prices))
	for i, in := range req.Prices {
		if !known[ids[i]] {
			return nil, fmt.Errorf("program %s %w", in.ProgramID, ErrNotFound)
		}
		rows = append(rows, model.AgentPricing{
			AgentID:         agent.ID,
			ProgramID:       ids[i],
			CompanyID:       scope.CompanyID,
			AgentPrice:      in.AgentPrice,
			AdultAgentPrice: in.AdultAgentPrice,
			ChildAgentPrice: in.ChildAgentPrice,
		})
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.pricingRepo.Upsert(txCtx, rows); err != nil {
			return fmt.Errorf("failed to save agent pricing: %w", err)
		}
		entry := newAuditLog(scope, model.ActionUpsertPricing, agent.ID.String(), agent.Name, req)
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetAgentPricing(ctx, scope, agentID)
}

// BulkApplyDefaults resets the selected agents to the programs' selling
// prices, or to the submitted prices for the programs they name. Existing
// overrides are always overwritten. Each agent is written in its own
// transaction and reported separately, so one bad agent does not block the
// others.
func (s *pricingService) BulkApplyDefaults(ctx context.Context, scope Scope, req BulkPricingRequest) (*BatchResult, error) {
	programs, err := s.bulkPrograms(ctx, scope, req.ProgramIDs)
	if err != nil {
		return nil, err
	}
	if len(programs) == 0 {
		return nil, invalid("no programs to price")
	}
	prices, err := bulkPrices(programs, req.Prices)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, raw := range req.AgentIDs {
		agentID, err := uuid.Parse(raw)
		if err != nil {
			result.fail(raw, invalid("invalid agent id"))
			continue
		}
		agent, err := s.agentRepo.FindByID(ctx, scope.CompanyID, agentID)
		if err != nil {
			result.fail(raw, lookupErr("agent", err))
			continue
		}
		if agent.IsDirect {
			result.skip(raw, "direct agent is never invoiced")
			continue
		}

		rows := make([]model.AgentPricing, 0, len(programs))
		for _, p := range programs {
			o := prices[p.ID]
			rows = append(rows, model.AgentPricing{
				AgentID:         agent.ID,
				ProgramID:       p.ID,
				CompanyID:       scope.CompanyID,
				AgentPrice:      o.AgentPrice,
				AdultAgentPrice: o.AdultAgentPrice,
				ChildAgentPrice: o.ChildAgentPrice,
			})
		}

		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.pricingRepo.Upsert(txCtx, rows); err != nil {
				return fmt.Errorf("failed to save agent pricing: %w", err)
			}
			entry := newAuditLog(scope, model.ActionBulkPricing, agent.ID.String(), agent.Name,
				map[string]interface{}{"programs": len(rows)})
			return s.auditRepo.Log(txCtx, entry)
		})
		if err != nil {
			result.fail(raw, err)
			continue
		}
		result.ok(raw, fmt.Sprintf("%d programs priced", len(rows)))
	}
	return result, nil
}

// bulkPrices starts every program from its selling-price defaults and applies
// the submitted edits on top.
func bulkPrices(programs []model.Program, edits []PriceInput) (map[uuid.UUID]pricing.Override, error) {
	prices := make(map[uuid.UUID]pricing.Override, len(programs))
	for _, p := range programs {
		prices[p.ID] = pricing.Defaults(programPrice(p)).Override()
	}
	for _, in := range edits {
		id, err := uuid.Parse(in.ProgramID)
		if err != nil {
			return nil, invalid("invalid program id %q", in.ProgramID)
		}
		if _, ok := prices[id]; !ok {
			return nil, invalid("program %s is not part of the selection", in.ProgramID)
		}
		prices[id] = pricing.Override{
			AgentPrice:      in.AgentPrice,
			AdultAgentPrice: in.AdultAgentPrice,
			ChildAgentPrice: in.ChildAgentPrice,
		}
	}
	return prices, nil
}

func (s *pricingService) bulkPrograms(ctx context.Context, scope Scope, rawIDs []string) ([]model.Program, error) {
	if len(rawIDs) == 0 {
		programs, err := s.programRepo.List(ctx, scope.CompanyID, true)
		if err != nil {
			return nil, fmt.Errorf("failed to list programs: %w", err)
		}
		return programs, nil
	}
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, invalid("invalid program id %q", raw)
		}
		ids = append(ids, id)
	}
	programs, err := s.programRepo.FindByIDs(ctx, scope.CompanyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load programs: %w", err)
	}
	return programs, nil
}
