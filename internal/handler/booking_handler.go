package handler

import (
	"fmt"
	"net/http"
	"strings"

	"tourdesk/internal/availability"
	"tourdesk/internal/middleware"
	"tourdesk/internal/model"
	"tourdesk/internal/repository"
	"tourdesk/internal/service"
	"tourdesk/pkg/pagination"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type BookingHandler struct {
	bookingService      service.BookingService
	notificationService service.NotificationService
	auth                *middleware.Auth
}

func NewBookingHandler(bookingService service.BookingService, notificationService service.NotificationService, auth *middleware.Auth) *BookingHandler {
	return &BookingHandler{bookingService: bookingService, notificationService: notificationService, auth: auth}
}

func (h *BookingHandler) RegisterRoutes(router *gin.RouterGroup) {
	bookings := router.Group("/api/bookings", h.auth.RequireRole())
	{
		bookings.GET("", h.ListBookings)
		bookings.GET("/export", h.ExportCSV)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("", h.CreateBooking)
		bookings.PUT("/:id", h.UpdateBooking)
		bookings.POST("/:id/confirm", h.transition(model.BookingConfirmed))
		bookings.POST("/:id/complete", h.transition(model.BookingCompleted))
		bookings.POST("/:id/cancel", h.transition(model.BookingCancelled))
		bookings.POST("/:id/void", h.auth.RequireRole(managers...), h.transition(model.BookingVoid))
		bookings.GET("/:id/voucher", h.Voucher)
		bookings.POST("/:id/pickup-email", h.SendPickupEmail)
	}
}

// bookingFilter reads the list and export query parameters.
func bookingFilter(c *gin.Context) (repository.BookingFilter, error) {
	var f repository.BookingFilter
	if raw := c.Query("from"); raw != "" {
		t, err := availability.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid from date %q", raw)
		}
		f.From = &t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := availability.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid to date %q", raw)
		}
		f.To = &t
	}
	for name, dst := range map[string]**uuid.UUID{"agent_id": &f.AgentID, "program_id": &f.ProgramID} {
		if raw := c.Query(name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return f, fmt.Errorf("invalid %s", name)
			}
			*dst = &id
		}
	}
	switch c.Query("invoiced") {
	case "true":
		v := true
		f.Invoiced = &v
	case "false":
		v := false
		f.Invoiced = &v
	}
	f.Status = c.Query("status")
	f.Search = strings.TrimSpace(c.Query("search"))
	return f, nil
}

// ListBookings handles GET /api/bookings
// @Summary      List bookings
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        from        query     string  false  "Activity date from (YYYY-MM-DD)"
// @Param        to          query     string  false  "Activity date to (YYYY-MM-DD)"
// @Param        status      query     string  false  "Booking status"
// @Param        agent_id    query     string  false  "Agent ID"
// @Param        program_id  query     string  false  "Program ID"
// @Param        invoiced    query     bool    false  "Invoiced or not"
// @Param        search      query     string  false  "Booking ref, customer or hotel"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Param        sort        query     string  false  "activity_date, created_at, booking_ref; prefix - for descending"
// @Success      200         {object}  response.Response{data=response.Page{items=[]service.BookingResponse}}
// @Failure      400         {object}  response.Response
// @Router       /api/bookings [get]
func (h *BookingHandler) ListBookings(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	filter, err := bookingFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	page := pagination.Parse(c, "activity_date", "created_at", "booking_ref")

	bookings, total, err := h.bookingService.ListBookings(c.Request.Context(), scope, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, bookings, total, page.Page, page.Limit))
}

// GetBooking handles GET /api/bookings/:id
// @Summary      Get booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {object}  response.Response{data=service.BookingResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/bookings/{id} [get]
func (h *BookingHandler) GetBooking(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookingService.GetBooking(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, booking)
}

// CreateBooking handles POST /api/bookings
// @Summary      Create booking
// @Description  Capacity is advisory for staff: an overbooked date returns a warning instead of an error
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.BookingRequest  true  "Booking"
// @Success      201      {object}  response.Response{data=service.BookingResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.BookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, booking)
}

// UpdateBooking handles PUT /api/bookings/:id
// @Summary      Update booking
// @Description  Invoiced bookings only accept edits that leave the invoice amounts unchanged
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                  true  "Booking ID"
// @Param        payload  body      service.BookingRequest  true  "Booking"
// @Success      200      {object}  response.Response{data=service.BookingResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/bookings/{id} [put]
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.BookingRequest
	if !bindJSON(c, &req) {
		return
	}

	booking, err := h.bookingService.UpdateBooking(c.Request.Context(), scope, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, booking)
}

// transition returns the handler moving a booking to status to.
// @Summary      Change booking status
// @Description  confirm, complete, cancel or void. Invoiced bookings cannot be cancelled or voided.
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true  "Booking ID"
// @Param        action  path      string  true  "confirm, complete, cancel or void"
// @Success      200     {object}  response.Response{data=service.BookingResponse}
// @Failure      409     {object}  response.Response
// @Router       /api/bookings/{id}/{action} [post]
func (h *BookingHandler) transition(to string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := scopeOf(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		booking, err := h.bookingService.Transition(c.Request.Context(), scope, id, to)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, booking)
	}
}

// ExportCSV handles GET /api/bookings/export
// @Summary      Export bookings
// @Description  Same filters as the list, without paging
// @Tags         bookings
// @Produce      text/csv
// @Security     BearerAuth
// @Param        from    query     string  false  "Activity date from (YYYY-MM-DD)"
// @Param        to      query     string  false  "Activity date to (YYYY-MM-DD)"
// @Param        status  query     string  false  "Booking status"
// @Success      200     {file}    file
// @Router       /api/bookings/export [get]
func (h *BookingHandler) ExportCSV(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	filter, err := bookingFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	data, err := h.bookingService.ExportCSV(c.Request.Context(), scope, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	filename := "bookings-" + scope.Today().Format("20060102") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// Voucher handles GET /api/bookings/:id/voucher
// @Summary      Booking voucher
// @Tags         bookings
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/bookings/{id}/voucher [get]
func (h *BookingHandler) Voucher(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	pdf, filename, err := h.bookingService.VoucherPDF(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, pdf, filename)
}

// SendPickupEmail handles POST /api/bookings/:id/pickup-email
// @Summary      Email pickup time
// @Description  Sends the pickup time to the guest. Bookings without a pickup are rejected.
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      502  {object}  response.Response
// @Router       /api/bookings/{id}/pickup-email [post]
func (h *BookingHandler) SendPickupEmail(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.SendPickupNotification(c.Request.Context(), scope, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Pickup email sent"})
}

func sendPDF(c *gin.Context, pdf []byte, filename string) {
	disposition := "attachment"
	if c.Query("inline") == "true" {
		disposition = "inline"
	}
	c.Header("Content-Disposition", disposition+`; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
