package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"tourdesk/internal/document"
	"tourdesk/internal/invoicing"
	"tourdesk/internal/model"
	"tourdesk/internal/pricing"
	"tourdesk/internal/repository"
	"tourdesk/internal/sequence"
	"tourdesk/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const skipNotFound = "not found"

// --- DTOs ---

type InvoiceSelectionRequest struct {
	BookingIDs []string `json:"booking_ids" binding:"required,min=1,dive,uuid"`
	DueDays    int      `json:"due_days" binding:"omitempty,due_days"` // 0 uses the company default
}

type InvoiceListFilter struct {
	Status    string
	AgentID   *uuid.UUID
	InvoiceNo string
}

type InvoicePreviewGroup struct {
	invoicing.Group
	AgentName string `json:"agent_name"`
	DueDate   string `json:"due_date"`
}

type InvoicePreview struct {
	Groups  []InvoicePreviewGroup `json:"groups"`
	Skipped []invoicing.Skipped   `json:"skipped"`
}

// InvoiceGroupResult reports the outcome of one agent's invoice.
type InvoiceGroupResult struct {
	AgentID   string          `json:"agent_id"`
	AgentName string          `json:"agent_name"`
	Outcome   string          `json:"outcome"`
	InvoiceID string          `json:"invoice_id,omitempty"`
	InvoiceNo string          `json:"invoice_no,omitempty"`
	Total     decimal.Decimal `json:"total" swaggertype:"string"`
	Error     string          `json:"error,omitempty"`
}

type CreateInvoicesResponse struct {
	Created int                  `json:"created"`
	Failed  int                  `json:"failed"`
	Groups  []InvoiceGroupResult `json:"groups"`
	Skipped []invoicing.Skipped  `json:"skipped"`
}

type InvoiceResponse struct {
	ID          string              `json:"id"`
	InvoiceNo   string              `json:"invoice_no"`
	AgentID     string              `json:"agent_id"`
	AgentName   string              `json:"agent_name"`
	PeriodStart string              `json:"period_start"`
	PeriodEnd   string              `json:"period_end"`
	DueDate     string              `json:"due_date"`
	Status      string              `json:"status"`
	Subtotal    decimal.Decimal     `json:"subtotal" swaggertype:"string"`
	TaxRate     decimal.Decimal     `json:"tax_rate" swaggertype:"string"`
	TaxAmount   decimal.Decimal     `json:"tax_amount" swaggertype:"string"`
	TotalAmount decimal.Decimal     `json:"total_amount" swaggertype:"string"`
	SentAt      *time.Time          `json:"sent_at"`
	PaidAt      *time.Time          `json:"paid_at"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []model.InvoiceItem `json:"items,omitempty"`
}

type InvoiceService interface {
	Preview(ctx context.Context, scope Scope, req InvoiceSelectionRequest) (*InvoicePreview, error)
	CreateInvoices(ctx context.Context, scope Scope, req InvoiceSelectionRequest) (*CreateInvoicesResponse, error)
	ListInvoices(ctx context.Context, scope Scope, filter InvoiceListFilter, page pagination.Params) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, scope Scope, id uuid.UUID) (*InvoiceResponse, error)
	MarkSent(ctx context.Context, scope Scope, id uuid.UUID) (*InvoiceResponse, error)
	MarkPaid(ctx context.Context, scope Scope, id uuid.UUID) (*InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, scope Scope, id uuid.UUID) error
	MarkOverdue(ctx context.Context, scope Scope) (int64, error)
	InvoicePDF(ctx context.Context, scope Scope, id uuid.UUID) ([]byte, string, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	bookingRepo repository.BookingRepository
	agentRepo   repository.AgentRepository
	pricingRepo repository.AgentPricingRepository
	companyRepo repository.CompanyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	counter     sequence.Counter
	events      Broadcaster
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	bookingRepo repository.BookingRepository,
	agentRepo repository.AgentRepository,
	pricingRepo repository.AgentPricingRepository,
	companyRepo repository.CompanyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	counter sequence.Counter,
	events Broadcaster,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		bookingRepo: bookingRepo,
		agentRepo:   agentRepo,
		pricingRepo: pricingRepo,
		companyRepo: companyRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		counter:     counter,
		events:      broadcasterOrNop(events),
	}
}

type invoicePlan struct {
	groups  []invoicing.Group
	skipped []invoicing.Skipped
	agents  map[uuid.UUID]model.Agent
	dueDays int
}

// plan loads the selected bookings and the agents' stored prices and runs
// the aggregator. Nothing is written.
func (s *invoiceService) plan(ctx context.Context, scope Scope, req InvoiceSelectionRequest) (*invoicePlan, error) {
	settings, err := loadSettings(ctx, s.companyRepo, scope.CompanyID)
	if err != nil {
		return nil, err
	}
	dueDays := req.DueDays
	if dueDays == 0 {
		dueDays = settings.DefaultDueDays
	}
	if !invoicing.ValidDueDays(dueDays) {
		return nil, invalid("due days must be one of %v", invoicing.DueDayOptions)
	}

	ids := make([]uuid.UUID, 0, len(req.BookingIDs))
	seen := make(map[uuid.UUID]bool, len(req.BookingIDs))
	for _, raw := range req.BookingIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, invalid("invalid booking id %q", raw)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	bookings, err := s.bookingRepo.FindByIDs(ctx, scope.CompanyID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}

	p := &invoicePlan{agents: map[uuid.UUID]model.Agent{}, dueDays: dueDays}
	found := make(map[uuid.UUID]bool, len(bookings))
	lines := make([]invoicing.BookingLine, 0, len(bookings))
	pricingTypes := map[uuid.UUID]string{}
	var agentIDs []uuid.UUID

	for _, b := range bookings {
		found[b.ID] = true
		line := invoicing.BookingLine{
			BookingID:    b.ID,
			BookingRef:   b.BookingRef,
			ProgramID:    b.ProgramID,
			AgentID:      b.AgentID,
			InvoiceID:    b.InvoiceID,
			Status:       b.Status,
			Adults:       b.Adults,
			Children:     b.Children,
			Infants:      b.Infants,
			ActivityDate: b.ActivityDate,
		}
		if b.Program != nil {
			line.ProgramName = b.Program.Name
			pricingTypes[b.ProgramID] = b.Program.PricingType
		}
		if b.Agent != nil {
			line.AgentIsDirect = b.Agent.IsDirect
			if _, ok := p.agents[b.Agent.ID]; !ok {
				p.agents[b.Agent.ID] = *b.Agent
				agentIDs = append(agentIDs, b.Agent.ID)
			}
		}
		lines = append(lines, line)
	}
	for _, id := range ids {
		if !found[id] {
			p.skipped = append(p.skipped, invoicing.Skipped{BookingID: id, Reason: skipNotFound})
		}
	}

	rows, err := s.pricingRepo.ListByAgents(ctx, scope.CompanyID, agentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent pricing: %w", err)
	}
	overrides := make(map[[2]uuid.UUID]model.AgentPricing, len(rows))
	for _, row := range rows {
		overrides[[2]uuid.UUID{row.AgentID, row.ProgramID}] = row
	}
	price := func(agentID, programID uuid.UUID) decimal.Decimal {
		row, ok := overrides[[2]uuid.UUID{agentID, programID}]
		if !ok {
			return pricing.InvoiceUnitPrice(pricingTypes[programID], nil)
		}
		return pricing.InvoiceUnitPrice(pricingTypes[programID], overrideOf(row))
	}

	groups, skipped := invoicing.Plan(lines, price, settings.InvoiceTaxRate)
	p.groups = groups
	p.skipped = append(p.skipped, skipped...)
	return p, nil
}

// Preview shows the invoices a selection would produce without issuing them.
func (s *invoiceService) Preview(ctx context.Context, scope Scope, req InvoiceSelectionRequest) (*InvoicePreview, error) {
	p, err := s.plan(ctx, scope, req)
	if err != nil {
		return nil, err
	}
	due := invoicing.DueDate(scope.Today(), p.dueDays).Format("2006-01-02")
	res := &InvoicePreview{Groups: []InvoicePreviewGroup{}, Skipped: p.skipped}
	for _, g := range p.groups {
		res.Groups = append(res.Groups, InvoicePreviewGroup{Group: g, AgentName: p.agents[g.AgentID].Name, DueDate: due})
	}
	return res, nil
}

// CreateInvoices issues one draft invoice per agent. Every group runs in its
// own transaction: a failing group is reported and rolled back while the
// others still commit.
func (s *invoiceService) CreateInvoices(ctx context.Context, scope Scope, req InvoiceSelectionRequest) (*CreateInvoicesResponse, error) {
	p, err := s.plan(ctx, scope, req)
	if err != nil {
		return nil, err
	}
	if len(p.groups) == 0 {
		return nil, invalid("none of the selected bookings can be invoiced")
	}

	today := scope.Today()
	period := invoicing.Period(today)
	due := invoicing.DueDate(today, p.dueDays)
	res := &CreateInvoicesResponse{Groups: []InvoiceGroupResult{}, Skipped: p.skipped}

	for _, g := range p.groups {
		agent := p.agents[g.AgentID]
		result := InvoiceGroupResult{AgentID: g.AgentID.String(), AgentName: agent.Name, Total: g.Total}

		invoice, err := s.issue(ctx, scope, g, agent, period, due)
		if err != nil {
			log.Printf("[INVOICE] failed to invoice agent %s: %v", agent.Name, err)
			result.Outcome = OutcomeFailed
			result.Error = err.Error()
			res.Failed++
			res.Groups = append(res.Groups, result)
			continue
		}

		result.Outcome = OutcomeOK
		result.InvoiceID = invoice.ID.String()
		result.InvoiceNo = invoice.InvoiceNo
		res.Created++
		res.Groups = append(res.Groups, result)
		s.events.Publish(scope.CompanyID, EventInvoiceCreated, toInvoiceResponse(invoice, today))
	}
	return res, nil
}

func (s *invoiceService) issue(ctx context.Context, scope Scope, g invoicing.Group, agent model.Agent, period string, due time.Time) (*model.Invoice, error) {
	var invoice model.Invoice
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		seq, err := s.counter.Next(txCtx, scope.CompanyID, period)
		if err != nil {
			return fmt.Errorf("failed to allocate invoice number: %w", err)
		}

		invoice = model.Invoice{
			CompanyID:   scope.CompanyID,
			InvoiceNo:   invoicing.FormatNumber(period, seq),
			AgentID:     g.AgentID,
			PeriodStart: g.PeriodStart,
			PeriodEnd:   g.PeriodEnd,
			Subtotal:    g.Subtotal,
			TaxRate:     g.TaxRate,
			TaxAmount:   g.TaxAmount,
			TotalAmount: g.Total,
			Status:      model.InvoiceDraft,
			DueDate:     due,
			CreatedBy:   scope.UserID,
		}
		for _, l := range g.Lines {
			invoice.Items = append(invoice.Items, model.InvoiceItem{
				BookingID:   l.BookingID,
				Description: l.Description,
				Pax:         l.Pax,
				UnitPrice:   l.UnitPrice,
				Amount:      l.Amount,
			})
		}
		if err := s.invoiceRepo.Create(txCtx, &invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		ids := g.BookingIDs()
		linked, err := s.bookingRepo.LinkInvoice(txCtx, invoice.ID, ids)
		if err != nil {
			return fmt.Errorf("failed to link bookings: %w", err)
		}
		if linked != int64(len(ids)) {
			return conflict("%d of %d bookings were invoiced by someone else", int64(len(ids))-linked, len(ids))
		}

		entry := newAuditLog(scope, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNo, map[string]interface{}{
			"agent":    agent.Name,
			"bookings": len(ids),
			"total":    g.Total.StringFixed(2),
		})
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invoice.Agent = &agent
	return &invoice, nil
}

func toInvoiceResponse(inv *model.Invoice, today time.Time) InvoiceResponse {
	res := InvoiceResponse{
		ID:          inv.ID.String(),
		InvoiceNo:   inv.InvoiceNo,
		AgentID:     inv.AgentID.String(),
		PeriodStart: inv.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   inv.PeriodEnd.Format("2006-01-02"),
		DueDate:     inv.DueDate.Format("2006-01-02"),
		Status:      invoicing.EffectiveStatus(inv.Status, inv.DueDate, today),
		Subtotal:    inv.Subtotal,
		TaxRate:     inv.TaxRate,
		TaxAmount:   inv.TaxAmount,
		TotalAmount: inv.TotalAmount,
		SentAt:      inv.SentAt,
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt,
		Items:       inv.Items,
	}
	if inv.Agent != nil {
		res.AgentName = inv.Agent.Name
	}
	return res
}

func (s *invoiceService) ListInvoices(ctx context.Context, scope Scope, filter InvoiceListFilter, page pagination.Params) ([]InvoiceResponse, int64, error) {
	today := scope.Today()
	invoices, total, err := s.invoiceRepo.List(ctx, scope.CompanyID, repository.InvoiceFilter{
		Status:    filter.Status,
		AgentID:   filter.AgentID,
		InvoiceNo: filter.InvoiceNo,
		Today:     today,
	}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	res := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		r := toInvoiceResponse(&invoices[i], today)
		r.Items = nil
		res = append(res, r)
	}
	return res, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, scope Scope, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, lookupErr("invoice", err)
	}
	res := toInvoiceResponse(inv, scope.Today())
	return &res, nil
}

func (s *invoiceService) MarkSent(ctx context.Context, scope Scope, id uuid.UUID) (*InvoiceResponse, error) {
	return s.transition(ctx, scope, id, model.InvoiceSent)
}

func (s *invoiceService) MarkPaid(ctx context.Context, scope Scope, id uuid.UUID) (*InvoiceResponse, error) {
	return s.transition(ctx, scope, id, model.InvoicePaid)
}

func (s *invoiceService) transition(ctx context.Context, scope Scope, id uuid.UUID, to string) (*InvoiceResponse, error) {
	today := scope.Today()
	var res InvoiceResponse

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByID(txCtx, scope.CompanyID, id)
		if err != nil {
			return lookupErr("invoice", err)
		}
		if !invoicing.CanTransition(inv.Status, to) {
			return conflict("invoice %s is %s and cannot be marked %s",
				inv.InvoiceNo, invoicing.EffectiveStatus(inv.Status, inv.DueDate, today), to)
		}

		from := inv.Status
		now := scope.Now
		fields := map[string]interface{}{"status": to}
		switch to {
		case model.InvoiceSent:
			fields["sent_at"] = now
			inv.SentAt = &now
		case model.InvoicePaid:
			fields["paid_at"] = now
			inv.PaidAt = &now
		}
		if err := s.invoiceRepo.UpdateFields(txCtx, inv.ID, fields); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		inv.Status = to

		entry := newAuditLog(scope, model.ActionInvoiceStatus, inv.ID.String(), inv.InvoiceNo,
			map[string]string{"from": from, "to": to})
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		res = toInvoiceResponse(inv, today)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(scope.CompanyID, EventInvoiceUpdated, res)
	return &res, nil
}

// DeleteInvoice removes a draft and releases its bookings for re-invoicing.
func (s *invoiceService) DeleteInvoice(ctx context.Context, scope Scope, id uuid.UUID) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inv, err := s.invoiceRepo.FindByID(txCtx, scope.CompanyID, id)
		if err != nil {
			return lookupErr("invoice", err)
		}
		if inv.Status != model.InvoiceDraft {
			return conflict("only draft invoices can be deleted, %s is %s", inv.InvoiceNo, inv.Status)
		}
		if err := s.bookingRepo.UnlinkInvoice(txCtx, inv.ID); err != nil {
			return fmt.Errorf("failed to release bookings: %w", err)
		}
		if err := s.invoiceRepo.Delete(txCtx, inv.ID); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		entry := newAuditLog(scope, model.ActionDeleteInvoice, inv.ID.String(), inv.InvoiceNo, nil)
		if err := s.auditRepo.Log(txCtx, entry); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	})
}

// MarkOverdue persists the overdue status the listings already derive.
func (s *invoiceService) MarkOverdue(ctx context.Context, scope Scope) (int64, error) {
	n, err := s.invoiceRepo.MarkOverdue(ctx, scope.CompanyID, scope.Today())
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	return n, nil
}

// InvoicePDF renders the invoice and returns it with a download file name.
func (s *invoiceService) InvoicePDF(ctx context.Context, scope Scope, id uuid.UUID) ([]byte, string, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, scope.CompanyID, id)
	if err != nil {
		return nil, "", lookupErr("invoice", err)
	}
	company, err := s.companyRepo.FindByID(ctx, scope.CompanyID)
	if err != nil {
		return nil, "", lookupErr("company", err)
	}
	settings, err := loadSettings(ctx, s.companyRepo, scope.CompanyID)
	if err != nil {
		return nil, "", err
	}

	doc := document.Invoice{
		CompanyName: company.Name,
		Currency:    company.Currency,
		InvoiceNo:   inv.InvoiceNo,
		IssuedAt:    inv.CreatedAt,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		DueDate:     inv.DueDate,
		Status:      invoicing.EffectiveStatus(inv.Status, inv.DueDate, scope.Today()),
		Subtotal:    inv.Subtotal,
		TaxRate:     inv.TaxRate,
		TaxAmount:   inv.TaxAmount,
		Total:       inv.TotalAmount,
		Footer:      settings.InvoiceFooter,
	}
	if inv.Agent != nil {
		doc.AgentName = inv.Agent.Name
		doc.AgentEmail = inv.Agent.Email
	}
	for _, item := range inv.Items {
		doc.Lines = append(doc.Lines, document.InvoiceLine{
			Description: item.Description,
			Pax:         item.Pax,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}

	pdf, err := document.InvoicePDF(doc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to render invoice: %w", err)
	}
	return pdf, inv.InvoiceNo + ".pdf", nil
}
