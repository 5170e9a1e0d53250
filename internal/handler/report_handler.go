package handler

import (
	"net/http"
	"time"

	"tourdesk/internal/availability"
	"tourdesk/internal/middleware"
	"tourdesk/internal/service"
	"tourdesk/pkg/pagination"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReportHandler serves the operations report, the dashboard and the audit log.
type ReportHandler struct {
	notificationService service.NotificationService
	dashboardService    service.DashboardService
	auditService        service.AuditService
	auth                *middleware.Auth
}

func NewReportHandler(
	notificationService service.NotificationService,
	dashboardService service.DashboardService,
	auditService service.AuditService,
	auth *middleware.Auth,
) *ReportHandler {
	return &ReportHandler{
		notificationService: notificationService,
		dashboardService:    dashboardService,
		auditService:        auditService,
		auth:                auth,
	}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/reports/op", h.auth.RequireRole(), h.GetOPReport)
	router.POST("/api/reports/op", h.auth.RequireRole(managers...), h.SendOPReport)
	router.GET("/api/dashboard", h.auth.RequireRole(), h.GetDashboard)
	router.GET("/api/audit-logs", h.auth.RequireRole(managers...), h.GetAuditLogs)
}

// reportDate reads ?date=, defaulting to the company's today.
func reportDate(c *gin.Context, scope service.Scope) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return scope.Today(), true
	}
	date, err := availability.ParseDate(raw)
	if err != nil {
		badRequest(c, "Invalid date, expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

// GetOPReport handles GET /api/reports/op
// @Summary      Operations report
// @Description  Bookings of one activity date grouped by program, with pickup and collect totals
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        date  query     string  false  "Activity date (YYYY-MM-DD, default today)"
// @Success      200   {object}  response.Response{data=service.OPReport}
// @Failure      400   {object}  response.Response
// @Router       /api/reports/op [get]
func (h *ReportHandler) GetOPReport(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	date, ok := reportDate(c, scope)
	if !ok {
		return
	}

	report, err := h.notificationService.BuildOPReport(c.Request.Context(), scope, date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

// SendOPReport handles POST /api/reports/op
// @Summary      Email operations report
// @Description  Sends the report to the company's notification address
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        date  query     string  false  "Activity date (YYYY-MM-DD, default today)"
// @Success      200   {object}  response.Response{data=service.OPReport}
// @Failure      400   {object}  response.Response "No notification address"
// @Failure      502   {object}  response.Response
// @Router       /api/reports/op [post]
func (h *ReportHandler) SendOPReport(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	date, ok := reportDate(c, scope)
	if !ok {
		return
	}

	report, err := h.notificationService.SendOPReport(c.Request.Context(), scope, date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

// GetDashboard handles GET /api/dashboard
// @Summary      Get Dashboard Statistics
// @Description  Booking counts, pax, collect and invoice totals with top programs and agents
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        start_date  query     string  false  "Start date (YYYY-MM-DD, default first of month)"
// @Param        end_date    query     string  false  "End date (YYYY-MM-DD, default end of month)"
// @Success      200         {object}  response.Response{data=model.DashboardStats}
// @Failure      400         {object}  response.Response "Invalid date format"
// @Router       /api/dashboard [get]
func (h *ReportHandler) GetDashboard(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}

	var start, end time.Time
	var err error
	if raw := c.Query("start_date"); raw != "" {
		if start, err = availability.ParseDate(raw); err != nil {
			badRequest(c, "invalid start_date format, expected YYYY-MM-DD")
			return
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if end, err = availability.ParseDate(raw); err != nil {
			badRequest(c, "invalid end_date format, expected YYYY-MM-DD")
			return
		}
	}

	stats, err := h.dashboardService.GetDashboard(c.Request.Context(), scope, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

// GetAuditLogs retrieves paginated records with their users preloaded
// @Summary      Get audit logs
// @Description  Who changed what in the caller's company, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action  query     string  false  "Filter by action"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page{items=[]service.AuditLogResponse}}
// @Router       /api/audit-logs [get]
func (h *ReportHandler) GetAuditLogs(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	page := pagination.Parse(c, "created_at")

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), scope, c.Query("action"), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, total, page.Page, page.Limit))
}
