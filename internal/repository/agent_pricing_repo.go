package repository

import (
	"context"

	"tourdesk/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentPricingRepository stores agent price overrides keyed by (agent, program)
type AgentPricingRepository interface {
	ListByAgent(ctx context.Context, companyID, agentID uuid.UUID) ([]model.AgentPricing, error)
	ListByAgents(ctx context.Context, companyID uuid.UUID, agentIDs []uuid.UUID) ([]model.AgentPricing, error)
	Upsert(ctx context.Context, rows []model.AgentPricing) error
	MoveToAgent(ctx context.Context, fromID, toID uuid.UUID) error
}

type agentPricingRepository struct {
	db *gorm.DB
}

func NewAgentPricingRepository(db *gorm.DB) AgentPricingRepository {
	return &agentPricingRepository{db: db}
}

func (r *agentPricingRepository) ListByAgent(ctx context.Context, companyID, agentID uuid.UUID) ([]model.AgentPricing, error) {
	var rows []model.AgentPricing
	err := GetDB(ctx, r.db).Where("company_id = ? AND agent_id = ?", companyID, agentID).Find(&rows).Error
	return rows, err
}

func (r *agentPricingRepository) ListByAgents(ctx context.Context, companyID uuid.UUID, agentIDs []uuid.UUID) ([]model.AgentPricing, error) {
	var rows []model.AgentPricing
	if len(agentIDs) == 0 {
		return rows, nil
	}
	err := GetDB(ctx, r.db).Where("company_id = ? AND agent_id IN ?", companyID, agentIDs).Find(&rows).Error
	return rows, err
}

// Upsert writes the rows, replacing the prices of pairs that already exist.
func (r *agentPricingRepository) Upsert(ctx context.Context, rows []model.AgentPricing) error {
	if len(rows) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}, {Name: "program_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"agent_price", "adult_agent_price", "child_agent_price", "updated_at"}),
	}).Create(&rows).Error
}

// MoveToAgent hands the overrides of one agent to another. Where both agents
// price the same program the target's row wins.
func (r *agentPricingRepository) MoveToAgent(ctx context.Context, fromID, toID uuid.UUID) error {
	taken := GetDB(ctx, r.db).Model(&model.AgentPricing{}).Select("program_id").Where("agent_id = ?", toID)
	if err := GetDB(ctx, r.db).
		Where("agent_id = ? AND program_id IN (?)", fromID, taken).
		Delete(&model.AgentPricing{}).Error; err != nil {
		return err
	}
	return GetDB(ctx, r.db).Model(&model.AgentPricing{}).
		Where("agent_id = ?", fromID).
		Update("agent_id", toID).Error
}
