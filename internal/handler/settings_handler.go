package handler

import (
	"tourdesk/internal/middleware"
	"tourdesk/internal/service"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	settingsService     service.SettingsService
	notificationService service.NotificationService
	auth                *middleware.Auth
}

func NewSettingsHandler(settingsService service.SettingsService, notificationService service.NotificationService, auth *middleware.Auth) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, notificationService: notificationService, auth: auth}
}

func (h *SettingsHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/settings")
	{
		group.GET("", h.auth.RequireRole(), h.GetSettings)
		group.PUT("", h.auth.RequireRole(managers...), h.UpdateSettings)
		group.POST("/test-email", h.auth.RequireRole(managers...), h.SendTestEmail)
	}
}

// GetSettings handles GET /api/settings
// @Summary      Get company settings
// @Tags         settings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.SettingsResponse}
// @Router       /api/settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}

	settings, err := h.settingsService.GetSettings(c.Request.Context(), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, settings)
}

// UpdateSettings handles PUT /api/settings
// @Summary      Update company settings
// @Description  Partial update; omitted fields keep their value
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.UpdateSettingsRequest  true  "Settings"
// @Success      200      {object}  response.Response{data=service.SettingsResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.UpdateSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	settings, err := h.settingsService.UpdateSettings(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, settings)
}

// SendTestEmail handles POST /api/settings/test-email
// @Summary      Send a test email
// @Description  Sends a test message through the configured SMTP relay
// @Tags         settings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.TestEmailRequest  true  "Recipient"
// @Success      200      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/settings/test-email [post]
func (h *SettingsHandler) SendTestEmail(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.TestEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.notificationService.SendTestEmail(c.Request.Context(), scope, req.To); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Test email sent"})
}
