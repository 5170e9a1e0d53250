package repository

import (
	"context"

	"tourdesk/internal/model"
	"tourdesk/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AgentFilter narrows agent listings
type AgentFilter struct {
	Search     string
	ActiveOnly bool
}

type AgentRepository interface {
	Create(ctx context.Context, agent *model.Agent) error
	Update(ctx context.Context, agent *model.Agent) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Agent, error)
	FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]model.Agent, error)
	FindDirect(ctx context.Context, companyID uuid.UUID) (*model.Agent, error)
	List(ctx context.Context, companyID uuid.UUID, filter AgentFilter, page pagination.Params) ([]model.Agent, int64, error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

type agentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) Create(ctx context.Context, agent *model.Agent) error {
	return GetDB(ctx, r.db).Create(agent).Error
}

func (r *agentRepository) Update(ctx context.Context, agent *model.Agent) error {
	return GetDB(ctx, r.db).Save(agent).Error
}

func (r *agentRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.Agent, error) {
	var agent model.Agent
	if err := GetDB(ctx, r.db).First(&agent, "company_id = ? AND id = ?", companyID, id).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]model.Agent, error) {
	var agents []model.Agent
	if len(ids) == 0 {
		return agents, nil
	}
	err := GetDB(ctx, r.db).Where("company_id = ? AND id IN ?", companyID, ids).Find(&agents).Error
	return agents, err
}

// FindDirect returns the agent that stands for the company's own website.
func (r *agentRepository) FindDirect(ctx context.Context, companyID uuid.UUID) (*model.Agent, error) {
	var agent model.Agent
	if err := GetDB(ctx, r.db).Where("company_id = ? AND is_direct = ?", companyID, true).
		Order("created_at asc").First(&agent).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}

func (r *agentRepository) List(ctx context.Context, companyID uuid.UUID, filter AgentFilter, page pagination.Params) ([]model.Agent, int64, error) {
	var agents []model.Agent
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Agent{}).Where("company_id = ?", companyID)
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", like, like)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := page.OrderClause()
	if order == "" {
		order = "name ASC"
	}
	if err := query.Order(order).Offset(page.Offset).Limit(page.Limit).Find(&agents).Error; err != nil {
		return nil, 0, err
	}
	return agents, total, nil
}

func (r *agentRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("company_id = ? AND id = ?", companyID, id).Delete(&model.Agent{}).Error
}
