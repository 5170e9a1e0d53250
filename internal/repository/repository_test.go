package repository_test

import (
	"context"
	"testing"
	"time"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"
	"tourdesk/internal/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func day(d int) time.Time { return time.Date(2026, 10, d, 0, 0, 0, 0, time.UTC) }

func TestAgentPricingUpsertReplacesPrices(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	agent := testutil.Agent(t, db, company, "ABC Travel", false)
	program := testutil.Program(t, db, company, "ISL", "1500")
	repo := repository.NewAgentPricingRepository(db)

	row := model.AgentPricing{AgentID: agent.ID, ProgramID: program.ID, CompanyID: company.ID, AgentPrice: decimal.NewFromInt(1200)}
	if err := repo.Upsert(ctx, []model.AgentPricing{row}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	row.AgentPrice = decimal.NewFromInt(1100)
	if err := repo.Upsert(ctx, []model.AgentPricing{row}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := repo.ListByAgent(ctx, company.ID, agent.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || !rows[0].AgentPrice.Equal(decimal.NewFromInt(1100)) {
		t.Fatalf("expected one row at 1100, got %+v", rows)
	}
}

func TestAgentPricingMoveKeepsTargetRows(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	source := testutil.Agent(t, db, company, "ABC", false)
	target := testutil.Agent(t, db, company, "ABC Travel", false)
	shared := testutil.Program(t, db, company, "ISL", "1500")
	only := testutil.Program(t, db, company, "SNK", "900")
	repo := repository.NewAgentPricingRepository(db)

	err := repo.Upsert(ctx, []model.AgentPricing{
		{AgentID: source.ID, ProgramID: shared.ID, CompanyID: company.ID, AgentPrice: decimal.NewFromInt(1000)},
		{AgentID: source.ID, ProgramID: only.ID, CompanyID: company.ID, AgentPrice: decimal.NewFromInt(700)},
		{AgentID: target.ID, ProgramID: shared.ID, CompanyID: company.ID, AgentPrice: decimal.NewFromInt(1300)},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.MoveToAgent(ctx, source.ID, target.ID); err != nil {
		t.Fatalf("move: %v", err)
	}

	rows, _ := repo.ListByAgent(ctx, company.ID, target.ID)
	prices := map[uuid.UUID]decimal.Decimal{}
	for _, r := range rows {
		prices[r.ProgramID] = r.AgentPrice
	}
	if len(prices) != 2 || !prices[shared.ID].Equal(decimal.NewFromInt(1300)) || !prices[only.ID].Equal(decimal.NewFromInt(700)) {
		t.Fatalf("unexpected target prices %v", prices)
	}
	if left, _ := repo.ListByAgent(ctx, company.ID, source.ID); len(left) != 0 {
		t.Fatalf("source still has %d rows", len(left))
	}
}

func TestBookedPaxExcludesCancelledAndInfants(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	program := testutil.Program(t, db, company, "ISL", "1500")
	repo := repository.NewAvailabilityRepository(db)

	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 2, Children: 1, Infants: 3, ActivityDate: day(3)})
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 4, ActivityDate: day(3), Status: model.BookingCancelled})
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 1, ActivityDate: day(3), Status: model.BookingVoid})
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 5, ActivityDate: day(4)})

	booked, err := repo.BookedPax(ctx, program.ID, day(3))
	if err != nil {
		t.Fatalf("booked: %v", err)
	}
	if booked != 4 {
		t.Fatalf("booked %d, want 4", booked)
	}

	byDate, err := repo.BookedPaxByDate(ctx, program.ID, day(1), day(31))
	if err != nil {
		t.Fatalf("by date: %v", err)
	}
	if byDate[day(3)] != 4 || byDate[day(4)] != 5 {
		t.Fatalf("by date %v", byDate)
	}
}

func TestAvailabilityUpsertByProgramAndDate(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	program := testutil.Program(t, db, company, "ISL", "1500")
	repo := repository.NewAvailabilityRepository(db)

	slot := model.ProgramAvailability{CompanyID: company.ID, ProgramID: program.ID, Date: day(5), TotalSlots: 20, IsOpen: true}
	if err := repo.Upsert(ctx, []model.ProgramAvailability{slot}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	closed := model.ProgramAvailability{CompanyID: company.ID, ProgramID: program.ID, Date: day(5), TotalSlots: 10, IsOpen: false}
	if err := repo.Upsert(ctx, []model.ProgramAvailability{closed}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Find(ctx, program.ID, day(5))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.TotalSlots != 10 || got.IsOpen {
		t.Fatalf("row not replaced: %+v", got)
	}
	rows, _ := repo.Range(ctx, program.ID, day(1), day(31))
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
}

func TestLinkInvoiceSkipsInvoicedBookings(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	program := testutil.Program(t, db, company, "ISL", "1500")
	repo := repository.NewBookingRepository(db)

	first := testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 1, ActivityDate: day(3)})
	second := testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 1, ActivityDate: day(3)})

	invA, invB := uuid.New(), uuid.New()
	n, err := repo.LinkInvoice(ctx, invA, []uuid.UUID{first.ID})
	if err != nil || n != 1 {
		t.Fatalf("link first: n=%d err=%v", n, err)
	}
	n, err = repo.LinkInvoice(ctx, invB, []uuid.UUID{first.ID, second.ID})
	if err != nil {
		t.Fatalf("link again: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the free booking to link, got %d", n)
	}

	if err := repo.UnlinkInvoice(ctx, invA); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	got, _ := repo.FindByID(ctx, company.ID, first.ID)
	if got.InvoiceID != nil {
		t.Fatalf("expected booking to be free again")
	}
}

func TestBookingFilterByInvoicedAndSearch(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	other := testutil.Company(t, db, "other")
	program := testutil.Program(t, db, company, "ISL", "1500")
	repo := repository.NewBookingRepository(db)

	inv := uuid.New()
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, CustomerName: "Alice", Hotel: "Sea View", Adults: 1, ActivityDate: day(3), InvoiceID: &inv})
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, CustomerName: "Bob", Hotel: "Hill Top", Adults: 1, ActivityDate: day(9)})
	testutil.Booking(t, db, model.Booking{CompanyID: other.ID, ProgramID: program.ID, CustomerName: "Bob", Adults: 1, ActivityDate: day(9)})

	no := false
	list, err := repo.ListAll(ctx, company.ID, repository.BookingFilter{Invoiced: &no})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].CustomerName != "Bob" {
		t.Fatalf("uninvoiced filter returned %+v", list)
	}

	list, _ = repo.ListAll(ctx, company.ID, repository.BookingFilter{Search: "Sea"})
	if len(list) != 1 || list[0].CustomerName != "Alice" {
		t.Fatalf("search returned %d rows", len(list))
	}

	from, to := day(5), day(10)
	list, _ = repo.ListAll(ctx, company.ID, repository.BookingFilter{From: &from, To: &to})
	if len(list) != 1 || list[0].Program == nil || list[0].Program.Code != "ISL" {
		t.Fatalf("date filter returned %+v", list)
	}
}

func TestInvoiceMarkOverdueAndStatusFilter(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	agent := testutil.Agent(t, db, company, "ABC", false)
	repo := repository.NewInvoiceRepository(db)

	mk := func(no, status string, due time.Time) {
		inv := model.Invoice{CompanyID: company.ID, InvoiceNo: no, AgentID: agent.ID, Status: status, DueDate: due, Subtotal: decimal.Zero, TotalAmount: decimal.Zero}
		if err := repo.Create(ctx, &inv); err != nil {
			t.Fatalf("create %s: %v", no, err)
		}
	}
	mk("INV-202610-001", model.InvoiceSent, day(1))
	mk("INV-202610-002", model.InvoiceSent, day(20))
	mk("INV-202610-003", model.InvoicePaid, day(1))

	filter := repository.InvoiceFilter{Status: model.InvoiceOverdue, Today: day(10)}
	list, total, err := repo.List(ctx, company.ID, filter, paginationAll())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || list[0].InvoiceNo != "INV-202610-001" {
		t.Fatalf("derived overdue filter returned %d", total)
	}

	n, err := repo.MarkOverdue(ctx, company.ID, day(10))
	if err != nil || n != 1 {
		t.Fatalf("mark overdue: n=%d err=%v", n, err)
	}

	numbers, _ := repo.NumbersWithPrefix(ctx, company.ID, "INV-202610-")
	if len(numbers) != 3 {
		t.Fatalf("expected 3 numbers, got %v", numbers)
	}
}

func TestDashboardSeparatesCollectAndOnlineRevenue(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	company := testutil.Company(t, db, "acme")
	program := testutil.Program(t, db, company, "ISL", "1500")
	repo := repository.NewStatisticsRepository(db)

	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 2, ActivityDate: day(3), CollectAmount: decimal.NewFromInt(500)})
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 2, ActivityDate: day(4),
		Source: model.SourcePublic, PaymentStatus: model.PaymentPaid, OnlineAmount: decimal.NewFromInt(3000)})
	testutil.Booking(t, db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 1, ActivityDate: day(4),
		Source: model.SourcePublic, Status: model.BookingPending, PaymentStatus: model.PaymentPending, OnlineAmount: decimal.NewFromInt(1500)})

	pax, collect, err := repo.PaxAndCollect(ctx, company.ID, day(1), day(31))
	if err != nil {
		t.Fatalf("pax and collect: %v", err)
	}
	if pax != 5 || !collect.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("pax %d collect %s", pax, collect)
	}

	online, err := repo.OnlineRevenue(ctx, company.ID, day(1), day(31))
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if !online.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("online %s, want 3000 (unpaid orders excluded)", online)
	}
}
