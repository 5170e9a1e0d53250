package handler

import (
	"strconv"
	"time"

	"tourdesk/internal/availability"
	"tourdesk/internal/middleware"
	"tourdesk/internal/service"

	"github.com/gin-gonic/gin"
)

type ProgramHandler struct {
	programService      service.ProgramService
	availabilityService service.AvailabilityService
	auth                *middleware.Auth
}

func NewProgramHandler(programService service.ProgramService, availabilityService service.AvailabilityService, auth *middleware.Auth) *ProgramHandler {
	return &ProgramHandler{programService: programService, availabilityService: availabilityService, auth: auth}
}

func (h *ProgramHandler) RegisterRoutes(router *gin.RouterGroup) {
	programs := router.Group("/api/programs", h.auth.RequireRole())
	{
		programs.GET("", h.ListPrograms)
		programs.GET("/:id", h.GetProgram)
		programs.POST("", h.auth.RequireRole(managers...), h.CreateProgram)
		programs.PUT("/:id", h.auth.RequireRole(managers...), h.UpdateProgram)
		programs.DELETE("/:id", h.auth.RequireRole(managers...), h.DeleteProgram)

		programs.GET("/:id/availability", h.Calendar)
		programs.PUT("/:id/availability", h.auth.RequireRole(managers...), h.UpsertSlots)
		programs.GET("/:id/availability/:date", h.DayStatus)
	}
}

// monthQuery reads ?year=&month=, defaulting to the month of now.
func monthQuery(c *gin.Context, now time.Time) (int, time.Month, bool) {
	year, month := now.Year(), now.Month()
	if raw := c.Query("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 2000 || y > 2100 {
			badRequest(c, "Invalid year")
			return 0, 0, false
		}
		year = y
	}
	if raw := c.Query("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			badRequest(c, "Invalid month")
			return 0, 0, false
		}
		month = time.Month(m)
	}
	return year, month, true
}

// ListPrograms handles GET /api/programs
// @Summary      List programs
// @Tags         programs
// @Produce      json
// @Security     BearerAuth
// @Param        active  query     bool  false  "Only active programs"
// @Success      200     {object}  response.Response{data=[]model.Program}
// @Router       /api/programs [get]
func (h *ProgramHandler) ListPrograms(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}

	programs, err := h.programService.ListPrograms(c.Request.Context(), scope, c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, programs)
}

// GetProgram handles GET /api/programs/:id
// @Summary      Get program
// @Tags         programs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Program ID"
// @Success      200  {object}  response.Response{data=model.Program}
// @Failure      404  {object}  response.Response
// @Router       /api/programs/{id} [get]
func (h *ProgramHandler) GetProgram(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	program, err := h.programService.GetProgram(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, program)
}

// CreateProgram handles POST /api/programs
// @Summary      Create program
// @Tags         programs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ProgramRequest  true  "Program"
// @Success      201      {object}  response.Response{data=model.Program}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/programs [post]
func (h *ProgramHandler) CreateProgram(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.ProgramRequest
	if !bindJSON(c, &req) {
		return
	}

	program, err := h.programService.CreateProgram(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, program)
}

// UpdateProgram handles PUT /api/programs/:id
// @Summary      Update program
// @Tags         programs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Program ID"
// @Param        payload  body      service.ProgramRequest  true  "Program"
// @Success      200      {object}  response.Response{data=model.Program}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/programs/{id} [put]
func (h *ProgramHandler) UpdateProgram(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ProgramRequest
	if !bindJSON(c, &req) {
		return
	}

	program, err := h.programService.UpdateProgram(c.Request.Context(), scope, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, program)
}

// DeleteProgram handles DELETE /api/programs/:id
// @Summary      Delete program
// @Tags         programs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Program ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/programs/{id} [delete]
func (h *ProgramHandler) DeleteProgram(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.programService.DeleteProgram(c.Request.Context(), scope, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Program deleted"})
}

// Calendar handles GET /api/programs/:id/availability
// @Summary      Program availability calendar
// @Description  Status of every date of a month. Dates without a slot row are unlimited.
// @Tags         availability
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Program ID"
// @Param        year   query     int     false  "Year (default current)"
// @Param        month  query     int     false  "Month 1-12 (default current)"
// @Success      200    {object}  response.Response{data=[]availability.Day}
// @Failure      404    {object}  response.Response
// @Router       /api/programs/{id}/availability [get]
func (h *ProgramHandler) Calendar(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	year, month, ok := monthQuery(c, scope.Today())
	if !ok {
		return
	}

	days, err := h.availabilityService.Calendar(c.Request.Context(), scope, id, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, days)
}

// UpsertSlots handles PUT /api/programs/:id/availability
// @Summary      Set date capacity
// @Description  Creates or replaces slot rows. A later entry for the same date wins.
// @Tags         availability
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Program ID"
// @Param        payload  body      service.UpsertSlotsRequest  true  "Slots"
// @Success      200      {object}  response.Response{data=[]availability.Day}
// @Failure      400      {object}  response.Response
// @Router       /api/programs/{id}/availability [put]
func (h *ProgramHandler) UpsertSlots(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpsertSlotsRequest
	if !bindJSON(c, &req) {
		return
	}

	days, err := h.availabilityService.UpsertSlots(c.Request.Context(), scope, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, days)
}

// DayStatus handles GET /api/programs/:id/availability/:date
// @Summary      Availability of one date
// @Tags         availability
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true  "Program ID"
// @Param        date  path      string  true  "Date (YYYY-MM-DD)"
// @Success      200   {object}  response.Response{data=availability.Day}
// @Failure      400   {object}  response.Response
// @Router       /api/programs/{id}/availability/{date} [get]
func (h *ProgramHandler) DayStatus(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	date, err := availability.ParseDate(c.Param("date"))
	if err != nil {
		badRequest(c, "Invalid date, expected YYYY-MM-DD")
		return
	}

	day, err := h.availabilityService.DayStatus(c.Request.Context(), scope, id, date)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, day)
}
