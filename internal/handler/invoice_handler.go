package handler

import (
	"context"
	"net/http"
	"strings"

	"tourdesk/internal/invoicing"
	"tourdesk/internal/middleware"
	"tourdesk/internal/service"
	"tourdesk/pkg/pagination"
	"tourdesk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	auth           *middleware.Auth
}

func NewInvoiceHandler(invoiceService service.InvoiceService, auth *middleware.Auth) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, auth: auth}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices", h.auth.RequireRole())
	{
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/:id/pdf", h.DownloadPDF)
		invoices.POST("/preview", h.Preview)
		invoices.POST("", h.auth.RequireRole(managers...), h.CreateInvoices)
		invoices.POST("/:id/send", h.auth.RequireRole(managers...), h.MarkSent)
		invoices.POST("/:id/pay", h.auth.RequireRole(managers...), h.MarkPaid)
		invoices.DELETE("/:id", h.auth.RequireRole(managers...), h.DeleteInvoice)
	}
}

// Preview handles POST /api/invoices/preview
// @Summary      Preview invoices
// @Description  Groups the selected bookings per agent and prices them without saving anything
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.InvoiceSelectionRequest  true  "Selection"
// @Success      200      {object}  response.Response{data=service.InvoicePreview}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/preview [post]
func (h *InvoiceHandler) Preview(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.InvoiceSelectionRequest
	if !bindJSON(c, &req) {
		return
	}

	preview, err := h.invoiceService.Preview(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, preview)
}

// CreateInvoices handles POST /api/invoices
// @Summary      Create invoices
// @Description  Issues one draft invoice per agent. Selections with nothing invoiceable are rejected.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.InvoiceSelectionRequest  true  "Selection"
// @Success      201      {object}  response.Response{data=service.CreateInvoicesResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoices(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	var req service.InvoiceSelectionRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.invoiceService.CreateInvoices(c.Request.Context(), scope, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, res)
}

// ListInvoices handles GET /api/invoices
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "draft, sent, paid or overdue"
// @Param        agent_id    query     string  false  "Agent ID"
// @Param        invoice_no  query     string  false  "Partial invoice number"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Param        sort        query     string  false  "created_at, due_date, invoice_no, total_amount; prefix - for descending"
// @Success      200         {object}  response.Response{data=response.Page{items=[]service.InvoiceResponse}}
// @Failure      400         {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	filter := service.InvoiceListFilter{
		Status:    c.Query("status"),
		InvoiceNo: strings.TrimSpace(c.Query("invoice_no")),
	}
	switch filter.Status {
	case "", invoicing.Draft, invoicing.Sent, invoicing.Paid, invoicing.Overdue:
	default:
		badRequest(c, "Invalid status")
		return
	}
	if raw := c.Query("agent_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid agent_id")
			return
		}
		filter.AgentID = &id
	}
	page := pagination.Parse(c, "created_at", "due_date", "invoice_no", "total_amount")

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), scope, filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, invoices, total, page.Page, page.Limit))
}

// GetInvoice handles GET /api/invoices/:id
// @Summary      Get invoice
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, inv)
}

// MarkSent handles POST /api/invoices/:id/send
// @Summary      Mark invoice sent
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/send [post]
func (h *InvoiceHandler) MarkSent(c *gin.Context) {
	h.lifecycle(c, h.invoiceService.MarkSent)
}

// MarkPaid handles POST /api/invoices/:id/pay
// @Summary      Mark invoice paid
// @Description  Sent and overdue invoices can be paid; drafts must be sent first
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id}/pay [post]
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	h.lifecycle(c, h.invoiceService.MarkPaid)
}

func (h *InvoiceHandler) lifecycle(c *gin.Context, step func(context.Context, service.Scope, uuid.UUID) (*service.InvoiceResponse, error)) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	inv, err := step(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, inv)
}

// DeleteInvoice handles DELETE /api/invoices/:id
// @Summary      Delete draft invoice
// @Description  Only drafts can be deleted; their bookings become invoiceable again
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), scope, id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"message": "Invoice deleted"})
}

// DownloadPDF handles GET /api/invoices/:id/pdf
// @Summary      Invoice PDF
// @Tags         invoices
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id      path      string  true   "Invoice ID"
// @Param        inline  query     bool    false  "Display inline instead of download"
// @Success      200     {file}    file
// @Failure      404     {object}  response.Response
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	scope, ok := scopeOf(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	pdf, filename, err := h.invoiceService.InvoicePDF(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	sendPDF(c, pdf, filename)
}
