package handler

import (
	"net/http"

	"tourdesk/internal/middleware"
	"tourdesk/internal/repository"
	"tourdesk/internal/service"
	"tourdesk/pkg/pagination"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type AgentHandler struct {
	agentService   service.AgentService
	pricingService service.PricingService
	auth           *middleware.Auth
}

func NewAgentHandler(agentService service.AgentService, pricingService service.PricingService, auth *middleware.Auth) *AgentHandler {
	return &AgentHandler{agentService: agentService, pricingService: pricingService, auth: auth}
}

func (h *AgentHandler) RegisterRoutes(router *gin.RouterGroup) {
	agents := router.Group("/api/agents", h.auth.RequireRole())
	{
		agents.GET("", h.ListAgents)
		agents.GET("/:id", h.GetAgent)
		agents.POST("", h.CreateAgent)
		agents.PUT("/:id", h.UpdateAgent)
		agents.DELETE("/:id", h.auth.RequireRole(managers...), h.DeleteAgent)
		agents.POST("/merge", h.auth.RequireRole(managers...), h.MergeAgents)
		agents.GET("/:id/pricing", h.GetPricing)
		agents.PUT("/:id/pricing", h.UpsertPricing)
	}

	router.POST("/api/pricing/bulk", h.auth.RequireRole(managers...), h.BulkPricing)
}

// ListAgents handles GET /api/agents
// @Summary      List agents
// @Tags         agents
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Name, email or phone"
// @Param        active  query     bool    false  "Only active agents"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Param        sort    query     string  false  "name, created_at; prefix - for descending"
// @Success      200     {object}  response.Response{data=response.Page{items=[]model.Agent}}
// @Router       /api/agents [get]
func (h *AgentHandler) ListAgents(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	page := pagination.Parse(c, "name", "created_at")
	if c.Query("sort") == "" {
		page.Desc = false
	}
	filter := repository.AgentFilter{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("active") == "true",
	}

	agents, total, err := h.agentService.ListAgents(c.Request.Context(), scope, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, agents, total, page.Page, page.Limit))
}

// GetAgent handles GET /api/agents/:id
// @Summary      Get agent
// @Tags         agents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Agent ID"
// @Success      200  {object}  response.Response{data=model.Agent}
// @Failure      404  {object}  response.Response
// @Router       /api/agents/{id} [get]
func (h *AgentHandler) GetAgent(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	agent, err := h.agentService.GetAgent(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, agent)
}

// CreateAgent handles POST /api/agents
// @Summary      Create agent
// @Tags         agents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.AgentRequest  true  "Agent"
// @Success      201      {object}  response.Response{data=model.Agent}
// @Failure      400      {object}  response.Response
// @Router       /api/agents [post]
func (h *AgentHandler) CreateAgent(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.AgentRequest
	if !bindJSON(c, &req) {
		return
	}

	agent, err := h.agentService.CreateAgent(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, agent)
}

// UpdateAgent handles PUT /api/agents/:id
// @Summary      Update agent
// @Tags         agents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                true  "Agent ID"
// @Param        payload  body      service.AgentRequest  true  "Agent"
// @Success      200      {object}  response.Response{data=model.Agent}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/agents/{id} [put]
func (h *AgentHandler) UpdateAgent(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AgentRequest
	if !bindJSON(c, &req) {
		return
	}

	agent, err := h.agentService.UpdateAgent(c.Request.Context(), scope, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, agent)
}

// DeleteAgent handles DELETE /api/agents/:id
// @Summary      Delete agent
// @Description  Soft-deletes an agent; its bookings and invoices keep referencing it
// @Tags         agents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Agent ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/agents/{id} [delete]
func (h *AgentHandler) DeleteAgent(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.agentService.DeleteAgent(c.Request.Context(), scope, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Agent deleted"})
}

// MergeAgents handles POST /api/agents/merge
// @Summary      Merge duplicate agents
// @Description  Moves bookings, invoices and prices of each source onto the target, then deletes the source
// @Tags         agents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.MergeAgentsRequest  true  "Merge"
// @Success      200      {object}  response.Response{data=service.BatchResult}
// @Failure      400      {object}  response.Response
// @Router       /api/agents/merge [post]
func (h *AgentHandler) MergeAgents(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.MergeAgentsRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.agentService.MergeDuplicates(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// GetPricing handles GET /api/agents/:id/pricing
// @Summary      Get agent pricing
// @Description  Resolved price and commission for every program. Programs without an override show selling prices.
// @Tags         pricing
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Agent ID"
// @Success      200  {object}  response.Response{data=[]service.ProgramPricingResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/agents/{id}/pricing [get]
func (h *AgentHandler) GetPricing(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	rows, err := h.pricingService.GetAgentPricing(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// UpsertPricing handles PUT /api/agents/:id/pricing
// @Summary      Save agent pricing
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Agent ID"
// @Param        payload  body      service.UpsertPricingRequest  true  "Prices"
// @Success      200      {object}  response.Response{data=[]service.ProgramPricingResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/agents/{id}/pricing [put]
func (h *AgentHandler) UpsertPricing(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpsertPricingRequest
	if !bindJSON(c, &req) {
		return
	}

	rows, err := h.pricingService.UpsertAgentPricing(c.Request.Context(), scope, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, rows)
}

// BulkPricing handles POST /api/pricing/bulk
// @Summary      Bulk-edit agent prices
// @Description  Overwrites each selected agent's prices with the selling prices, or with the submitted prices for the programs they name
// @Tags         pricing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.BulkPricingRequest  true  "Selection"
// @Success      200      {object}  response.Response{data=service.BatchResult}
// @Failure      400      {object}  response.Response
// @Router       /api/pricing/bulk [post]
func (h *AgentHandler) BulkPricing(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.BulkPricingRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.pricingService.BulkApplyDefaults(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}
