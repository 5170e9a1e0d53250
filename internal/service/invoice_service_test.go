package service

import (
	"context"
	"testing"

	"tourdesk/internal/invoicing"
	"tourdesk/internal/model"
	"tourdesk/internal/repository"
	"tourdesk/internal/sequence"
	"tourdesk/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func ids(bookings ...model.Booking) []string {
	out := make([]string, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, b.ID.String())
	}
	return out
}

func TestCreateInvoicesGroupsByAgent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	a := testutil.Agent(t, e.db, company, "Agent A", false)
	b := testutil.Agent(t, e.db, company, "Agent B", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	e.price(t, company, a, program, "1000")
	e.price(t, company, b, program, "800")

	b1 := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &a.ID, Adults: 2, Children: 2, ActivityDate: date(3)})
	b2 := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &b.ID, Adults: 1, ActivityDate: date(3)})
	b3 := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &a.ID, Adults: 2, Children: 2, ActivityDate: date(7)})

	scope := scopeFor(company, model.RoleAdmin)
	res, err := e.invoices.CreateInvoices(ctx, scope, InvoiceSelectionRequest{BookingIDs: ids(b1, b2, b3), DueDays: 14})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Created != 2 || res.Failed != 0 {
		t.Fatalf("got %+v", res)
	}
	if res.Groups[0].InvoiceNo != "INV-202610-001" || !res.Groups[0].Total.Equal(d("6000")) {
		t.Fatalf("agent A: %s %s", res.Groups[0].InvoiceNo, res.Groups[0].Total)
	}
	if res.Groups[1].InvoiceNo != "INV-202610-002" || !res.Groups[1].Total.Equal(d("800")) {
		t.Fatalf("agent B: %s %s", res.Groups[1].InvoiceNo, res.Groups[1].Total)
	}

	invID := uuid.MustParse(res.Groups[0].InvoiceID)
	inv, err := e.invoices.GetInvoice(ctx, scope, invID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(inv.Items) != 2 || inv.Status != model.InvoiceDraft || inv.DueDate != "2026-10-28" {
		t.Fatalf("invoice %+v", inv)
	}
	if inv.PeriodStart != "2026-10-03" || inv.PeriodEnd != "2026-10-07" {
		t.Fatalf("period %s..%s", inv.PeriodStart, inv.PeriodEnd)
	}
	if !e.events.has(EventInvoiceCreated) {
		t.Fatal("expected invoice.created broadcast")
	}

	// The same selection now has nothing left to invoice.
	_, err = e.invoices.CreateInvoices(ctx, scope, InvoiceSelectionRequest{BookingIDs: ids(b1, b2, b3), DueDays: 14})
	wantErr(t, err, ErrInvalidInput)
}

func TestCreateInvoicesContinuesPastFailedGroup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	a := testutil.Agent(t, e.db, company, "Agent A", false)
	b := testutil.Agent(t, e.db, company, "Agent B", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	e.price(t, company, a, program, "1000")
	e.price(t, company, b, program, "800")

	ba := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &a.ID, Adults: 2, ActivityDate: date(3)})
	bb := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &b.ID, Adults: 1, ActivityDate: date(4)})

	counter := &failingCounter{next: sequence.NewDBCounter(e.db, sequence.MaxIssued(repository.NewInvoiceRepository(e.db)))}
	invoices := e.invoicesWith(counter)
	res, err := invoices.CreateInvoices(ctx, scopeFor(company, model.RoleAdmin), InvoiceSelectionRequest{BookingIDs: ids(ba, bb), DueDays: 14})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Created != 1 || res.Failed != 1 {
		t.Fatalf("got %+v", res)
	}
	if res.Groups[0].AgentID != a.ID.String() || res.Groups[0].Outcome != OutcomeFailed || res.Groups[0].Error == "" {
		t.Fatalf("agent A group %+v", res.Groups[0])
	}
	if res.Groups[1].Outcome != OutcomeOK || res.Groups[1].InvoiceNo != "INV-202610-001" {
		t.Fatalf("agent B group %+v", res.Groups[1])
	}

	storedA, err := e.bookingRepo.FindByID(ctx, company.ID, ba.ID)
	if err != nil {
		t.Fatalf("find A: %v", err)
	}
	if storedA.InvoiceID != nil {
		t.Fatalf("failed group's booking linked to %s", storedA.InvoiceID)
	}
	storedB, err := e.bookingRepo.FindByID(ctx, company.ID, bb.ID)
	if err != nil {
		t.Fatalf("find B: %v", err)
	}
	if storedB.InvoiceID == nil || storedB.InvoiceID.String() != res.Groups[1].InvoiceID {
		t.Fatalf("agent B booking invoice %v, want %s", storedB.InvoiceID, res.Groups[1].InvoiceID)
	}
}

func TestPreviewSkipsExcludedBookings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "Agent A", false)
	direct := testutil.Agent(t, e.db, company, "Website", true)
	program := testutil.Program(t, e.db, company, "ISL", "1500")

	ok := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 3, ActivityDate: date(3)})
	void := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 1, Status: model.BookingVoid, ActivityDate: date(3)})
	web := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &direct.ID, Adults: 1, ActivityDate: date(3)})
	none := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 1, ActivityDate: date(3)})

	preview, err := e.invoices.Preview(ctx, scopeFor(company, model.RoleStaff), InvoiceSelectionRequest{
		BookingIDs: append(ids(ok, void, web, none), uuid.NewString()),
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(preview.Groups) != 1 || len(preview.Groups[0].Lines) != 1 {
		t.Fatalf("groups %+v", preview.Groups)
	}
	// No stored override: the unit price is zero, not the selling price.
	if !preview.Groups[0].Total.IsZero() {
		t.Fatalf("total %s, want 0", preview.Groups[0].Total)
	}
	if preview.Groups[0].DueDate != "2026-10-28" {
		t.Fatalf("default due date %s", preview.Groups[0].DueDate)
	}
	reasons := map[string]int{}
	for _, s := range preview.Skipped {
		reasons[s.Reason]++
	}
	if reasons[invoicing.SkipStatus] != 1 || reasons[invoicing.SkipDirect] != 1 || reasons[invoicing.SkipNoAgent] != 1 || reasons[skipNotFound] != 1 {
		t.Fatalf("skipped %+v", preview.Skipped)
	}
}

func TestInvoiceTaxUsesCompanySetting(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "Agent A", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	e.price(t, company, agent, program, "1000")
	rate := decimal.RequireFromString("0.07")
	if _, err := e.settings.UpdateSettings(ctx, scopeFor(company, model.RoleOwner), UpdateSettingsRequest{InvoiceTaxRate: &rate}); err != nil {
		t.Fatalf("settings: %v", err)
	}

	bk := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 1, ActivityDate: date(3)})
	preview, err := e.invoices.Preview(ctx, scopeFor(company, model.RoleStaff), InvoiceSelectionRequest{BookingIDs: ids(bk), DueDays: 7})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	g := preview.Groups[0]
	if !g.TaxAmount.Equal(d("70")) || !g.Total.Equal(d("1070")) {
		t.Fatalf("tax %s total %s", g.TaxAmount, g.Total)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "Agent A", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	e.price(t, company, agent, program, "1000")
	scope := scopeFor(company, model.RoleAdmin)

	bk := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 1, ActivityDate: date(3)})
	res, err := e.invoices.CreateInvoices(ctx, scope, InvoiceSelectionRequest{BookingIDs: ids(bk), DueDays: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := uuid.MustParse(res.Groups[0].InvoiceID)

	_, err = e.invoices.MarkPaid(ctx, scope, id)
	wantErr(t, err, ErrConflict)

	sent, err := e.invoices.MarkSent(ctx, scope, id)
	if err != nil || sent.Status != model.InvoiceSent || sent.SentAt == nil {
		t.Fatalf("mark sent: %+v %v", sent, err)
	}

	// Two days later the invoice reads as overdue and can still be paid.
	later := scope
	later.Now = testNow.AddDate(0, 0, 2)
	inv, err := e.invoices.GetInvoice(ctx, later, id)
	if err != nil || inv.Status != model.InvoiceOverdue {
		t.Fatalf("derived status %s err %v", inv.Status, err)
	}
	if err := e.invoices.DeleteInvoice(ctx, later, id); err == nil {
		t.Fatal("sent invoices must not be deletable")
	}
	paid, err := e.invoices.MarkPaid(ctx, later, id)
	if err != nil || paid.Status != model.InvoicePaid {
		t.Fatalf("mark paid: %+v %v", paid, err)
	}
}

func TestDeleteDraftReleasesBookings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "Agent A", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	scope := scopeFor(company, model.RoleAdmin)

	bk := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 1, ActivityDate: date(3)})
	res, err := e.invoices.CreateInvoices(ctx, scope, InvoiceSelectionRequest{BookingIDs: ids(bk), DueDays: 7})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.invoices.DeleteInvoice(ctx, scope, uuid.MustParse(res.Groups[0].InvoiceID)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	again, err := e.invoices.CreateInvoices(ctx, scope, InvoiceSelectionRequest{BookingIDs: ids(bk), DueDays: 7})
	if err != nil || again.Created != 1 {
		t.Fatalf("re-invoice: %+v %v", again, err)
	}
	// Numbering continues past the deleted draft's number.
	if again.Groups[0].InvoiceNo != "INV-202610-002" {
		t.Fatalf("number %s", again.Groups[0].InvoiceNo)
	}
}

func TestMarkOverduePersistsStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "Agent A", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	scope := scopeFor(company, model.RoleAdmin)

	bk := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 1, ActivityDate: date(3)})
	res, err := e.invoices.CreateInvoices(ctx, scope, InvoiceSelectionRequest{BookingIDs: ids(bk), DueDays: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.invoices.MarkSent(ctx, scope, uuid.MustParse(res.Groups[0].InvoiceID)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if n, err := e.invoices.MarkOverdue(ctx, scope); err != nil || n != 0 {
		t.Fatalf("not yet due: n=%d err=%v", n, err)
	}
	later := scope
	later.Now = testNow.AddDate(0, 0, 3)
	if n, err := e.invoices.MarkOverdue(ctx, later); err != nil || n != 1 {
		t.Fatalf("overdue: n=%d err=%v", n, err)
	}
}
