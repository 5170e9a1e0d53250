package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"tourdesk/internal/model"
	"tourdesk/internal/repository"
	"tourdesk/internal/testutil"

	"github.com/google/uuid"
)

func bookingRequest(program model.Program, agent *model.Agent, day string, adults int) BookingRequest {
	req := BookingRequest{
		ProgramID:    program.ID.String(),
		CustomerName: "Somchai",
		Transport:    model.TransportComeDirect,
		Adults:       adults,
		ActivityDate: day,
	}
	if agent != nil {
		req.AgentID = agent.ID.String()
	}
	return req
}

func TestCreateBookingDefaultsToPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "ABC Travel", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")

	res, err := e.bookings.CreateBooking(ctx, scopeFor(company, model.RoleStaff), bookingRequest(program, &agent, "2026-10-20", 2))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Status != model.BookingPending || res.AgentName != "ABC Travel" || res.ProgramName != "Program ISL" {
		t.Fatalf("got %+v", res)
	}
	if !strings.HasPrefix(res.BookingRef, "BK261014-") {
		t.Fatalf("ref %s", res.BookingRef)
	}
	if len(e.publisher.events) != 0 {
		t.Fatal("pending bookings are not announced")
	}
	if !e.events.has(EventBookingCreated) {
		t.Fatal("expected booking.created broadcast")
	}
}

func TestCreateBookingValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	scope := scopeFor(company, model.RoleStaff)

	_, err := e.bookings.CreateBooking(ctx, scope, bookingRequest(program, nil, "2026-10-20", 0))
	wantErr(t, err, ErrInvalidInput)

	pickup := bookingRequest(program, nil, "2026-10-20", 1)
	pickup.Transport = model.TransportPickup
	_, err = e.bookings.CreateBooking(ctx, scope, pickup)
	wantErr(t, err, ErrInvalidInput)

	other := testutil.Program(t, e.db, testutil.Company(t, e.db, "other"), "ISL", "1")
	_, err = e.bookings.CreateBooking(ctx, scope, bookingRequest(other, nil, "2026-10-20", 1))
	wantErr(t, err, ErrNotFound)
}

func TestStaffBookingMayOverbookWithWarning(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	e.slot(t, company, program, date(20), 2, true)

	res, err := e.bookings.CreateBooking(ctx, scopeFor(company, model.RoleStaff), bookingRequest(program, nil, "2026-10-20", 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Warning != "date is overbooked by 1 pax" {
		t.Fatalf("warning %q", res.Warning)
	}
}

func TestBookingTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	scope := scopeFor(company, model.RoleStaff)

	bk := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, Adults: 1, Status: model.BookingPending, ActivityDate: date(20)})

	steps := []struct {
		to string
		ok bool
	}{
		{model.BookingCompleted, false},
		{model.BookingConfirmed, true},
		{model.BookingPending, false},
		{model.BookingCompleted, true},
		{model.BookingCancelled, false},
		{model.BookingVoid, true},
		{model.BookingConfirmed, false},
	}
	for _, step := range steps {
		_, err := e.bookings.Transition(ctx, scope, bk.ID, step.to)
		if step.ok && err != nil {
			t.Fatalf("-> %s: %v", step.to, err)
		}
		if !step.ok && err == nil {
			t.Fatalf("-> %s should be rejected", step.to)
		}
	}
	if len(e.publisher.events) != 1 || e.publisher.events[0].BookingRef != bk.BookingRef {
		t.Fatalf("expected one confirmation event, got %+v", e.publisher.events)
	}
}

func TestInvoicedBookingIsLocked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	agent := testutil.Agent(t, e.db, company, "ABC Travel", false)
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	scope := scopeFor(company, model.RoleStaff)

	invoiceID := uuid.New()
	bk := testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, AgentID: &agent.ID, Adults: 2, ActivityDate: date(20), InvoiceID: &invoiceID})

	_, err := e.bookings.Transition(ctx, scope, bk.ID, model.BookingCancelled)
	wantErr(t, err, ErrConflict)
	_, err = e.bookings.Transition(ctx, scope, bk.ID, model.BookingVoid)
	wantErr(t, err, ErrConflict)

	_, err = e.bookings.UpdateBooking(ctx, scope, bk.ID, bookingRequest(program, &agent, "2026-10-20", 3))
	wantErr(t, err, ErrConflict)

	// Fields the invoice line does not depend on stay editable.
	req := bookingRequest(program, &agent, "2026-10-20", 2)
	req.RoomNo = "1204"
	res, err := e.bookings.UpdateBooking(ctx, scope, bk.ID, req)
	if err != nil || res.RoomNo != "1204" || !res.Invoiced {
		t.Fatalf("update: %+v %v", res, err)
	}
}

func TestExportCSV(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	company := testutil.Company(t, e.db, "acme")
	program := testutil.Program(t, e.db, company, "ISL", "1500")
	testutil.Booking(t, e.db, model.Booking{CompanyID: company.ID, ProgramID: program.ID, BookingRef: "BK-CSV", Adults: 2, ActivityDate: date(20)})

	out, err := e.bookings.ExportCSV(ctx, scopeFor(company, model.RoleStaff), repository.BookingFilter{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !bytes.HasPrefix(lines[1], []byte("BK-CSV,2026-10-20,Program ISL,")) {
		t.Fatalf("row %s", lines[1])
	}
}
