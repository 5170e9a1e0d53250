package handler

import (
	"time"

	"tourdesk/internal/payment"
	"tourdesk/internal/service"

	"github.com/gin-gonic/gin"
)

// PublicHandler serves the unauthenticated booking page and the payment
// gateway callback.
type PublicHandler struct {
	publicService service.PublicBookingService
	now           func() time.Time
}

func NewPublicHandler(publicService service.PublicBookingService) *PublicHandler {
	return &PublicHandler{publicService: publicService, now: time.Now}
}

func (h *PublicHandler) RegisterRoutes(router *gin.RouterGroup) {
	public := router.Group("/api/public")
	{
		public.POST("/payments/notify", h.PaymentNotification)
		public.GET("/:slug", h.Page)
		public.GET("/:slug/programs/:id/calendar", h.Calendar)
		public.POST("/:slug/bookings", h.Book)
	}
}

// Page handles GET /api/public/:slug
// @Summary      Public booking page
// @Description  Company name and bookable programs. Disabled pages are not found.
// @Tags         public
// @Produce      json
// @Param        slug  path      string  true  "Company slug"
// @Success      200   {object}  response.Response{data=service.PublicPage}
// @Failure      404   {object}  response.Response
// @Router       /api/public/{slug} [get]
func (h *PublicHandler) Page(c *gin.Context) {
	page, err := h.publicService.Page(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, page)
}

// Calendar handles GET /api/public/:slug/programs/:id/calendar
// @Summary      Public availability calendar
// @Tags         public
// @Produce      json
// @Param        slug   path      string  true   "Company slug"
// @Param        id     path      string  true   "Program ID"
// @Param        year   query     int     false  "Year (default current)"
// @Param        month  query     int     false  "Month 1-12 (default current)"
// @Success      200    {object}  response.Response{data=[]availability.Day}
// @Failure      404    {object}  response.Response
// @Router       /api/public/{slug}/programs/{id}/calendar [get]
func (h *PublicHandler) Calendar(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	year, month, ok := monthQuery(c, h.now())
	if !ok {
		return
	}

	days, err := h.publicService.Calendar(c.Request.Context(), c.Param("slug"), id, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, days)
}

// Book handles POST /api/public/:slug/bookings
// @Summary      Book as a guest
// @Description  Paid programs return a checkout token for the payment page; free programs are confirmed at once
// @Tags         public
// @Accept       json
// @Produce      json
// @Param        slug     path      string                        true  "Company slug"
// @Param        payload  body      service.PublicBookingRequest  true  "Booking"
// @Success      201      {object}  response.Response{data=service.PublicBookingResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response "Date closed or full"
// @Failure      502      {object}  response.Response "Payment gateway unavailable"
// @Router       /api/public/{slug}/bookings [post]
func (h *PublicHandler) Book(c *gin.Context) {
	var req service.PublicBookingRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.publicService.Book(c.Request.Context(), c.Param("slug"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, res)
}

// PaymentNotification handles POST /api/public/payments/notify
// @Summary      Payment gateway callback
// @Description  Verifies the signature and applies the payment status. Unknown orders are acknowledged.
// @Tags         public
// @Accept       json
// @Produce      json
// @Param        payload  body      payment.Notification  true  "Notification"
// @Success      200      {object}  response.Response
// @Failure      403      {object}  response.Response "Bad signature"
// @Router       /api/public/payments/notify [post]
func (h *PublicHandler) PaymentNotification(c *gin.Context) {
	var n payment.Notification
	if !bindJSON(c, &n) {
		return
	}

	if err := h.publicService.HandlePaymentNotification(c.Request.Context(), n); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "ok"})
}
