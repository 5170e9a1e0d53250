package invoicing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestInvoiceableFilters(t *testing.T) {
	agent := uuid.New()
	inv := uuid.New()
	cases := []struct {
		name   string
		line   BookingLine
		ok     bool
		reason string
	}{
		{"confirmed with agent", BookingLine{AgentID: &agent, Status: "confirmed"}, true, ""},
		{"pending with agent", BookingLine{AgentID: &agent, Status: "pending"}, true, ""},
		{"completed with agent", BookingLine{AgentID: &agent, Status: "completed"}, true, ""},
		{"no agent", BookingLine{Status: "confirmed"}, false, SkipNoAgent},
		{"direct agent", BookingLine{AgentID: &agent, AgentIsDirect: true, Status: "confirmed"}, false, SkipDirect},
		{"already invoiced", BookingLine{AgentID: &agent, InvoiceID: &inv, Status: "confirmed"}, false, SkipAlreadyInvoiced},
		{"void", BookingLine{AgentID: &agent, Status: StatusVoid}, false, SkipStatus},
		{"cancelled", BookingLine{AgentID: &agent, Status: StatusCancelled}, false, SkipStatus},
	}
	for _, tc := range cases {
		ok, reason := Invoiceable(tc.line)
		if ok != tc.ok || reason != tc.reason {
			t.Errorf("%s: got (%v, %q), want (%v, %q)", tc.name, ok, reason, tc.ok, tc.reason)
		}
	}
}

func TestPlanNeverIncludesExcludedBookings(t *testing.T) {
	agent := uuid.New()
	inv := uuid.New()
	lines := []BookingLine{
		{BookingID: uuid.New(), AgentID: &agent, Status: StatusVoid, Adults: 1},
		{BookingID: uuid.New(), AgentID: &agent, Status: StatusCancelled, Adults: 1},
		{BookingID: uuid.New(), Status: "confirmed", Adults: 1},
		{BookingID: uuid.New(), AgentID: &agent, InvoiceID: &inv, Status: "confirmed", Adults: 1},
	}
	groups, skipped := Plan(lines, func(uuid.UUID, uuid.UUID) decimal.Decimal { return d("100") }, decimal.Zero)
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
	if len(skipped) != len(lines) {
		t.Fatalf("expected %d skipped, got %d", len(lines), len(skipped))
	}
}

func TestPaxExcludesInfantsAndHalvesChildren(t *testing.T) {
	cases := []struct {
		adults, children int
		want             string
	}{
		{2, 2, "3"},
		{1, 0, "1"},
		{0, 1, "0.5"},
		{3, 3, "4.5"},
	}
	for _, tc := range cases {
		if got := Pax(tc.adults, tc.children); !got.Equal(d(tc.want)) {
			t.Errorf("Pax(%d,%d) = %s, want %s", tc.adults, tc.children, got, tc.want)
		}
	}
}

func TestLineAmountIgnoresInfants(t *testing.T) {
	agent := uuid.New()
	program := uuid.New()
	lines := []BookingLine{
		{BookingID: uuid.New(), AgentID: &agent, ProgramID: program, Status: "confirmed", Adults: 2, Children: 1, Infants: 5},
	}
	groups, _ := Plan(lines, func(uuid.UUID, uuid.UUID) decimal.Decimal { return d("1000") }, decimal.Zero)
	if got := groups[0].Lines[0].Amount; !got.Equal(d("2500")) {
		t.Fatalf("amount %s, want 2500", got)
	}
}

func TestPlanTwoAgentsScenario(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()
	program := uuid.New()
	prices := map[uuid.UUID]decimal.Decimal{agentA: d("1000"), agentB: d("800")}
	lookup := func(agentID, _ uuid.UUID) decimal.Decimal { return prices[agentID] }

	day := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)
	lines := []BookingLine{
		{BookingID: uuid.New(), AgentID: ptr(agentA), ProgramID: program, Status: "confirmed", Adults: 2, Children: 2, ActivityDate: day},
		{BookingID: uuid.New(), AgentID: ptr(agentB), ProgramID: program, Status: "confirmed", Adults: 1, ActivityDate: day},
		{BookingID: uuid.New(), AgentID: ptr(agentA), ProgramID: program, Status: "confirmed", Adults: 2, Children: 2, ActivityDate: day.AddDate(0, 0, 4)},
	}

	groups, skipped := Plan(lines, lookup, decimal.Zero)
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped: %+v", skipped)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].AgentID != agentA || !groups[0].Total.Equal(d("6000")) {
		t.Fatalf("agent A group %s total %s, want 6000", groups[0].AgentID, groups[0].Total)
	}
	if groups[1].AgentID != agentB || !groups[1].Total.Equal(d("800")) {
		t.Fatalf("agent B group total %s, want 800", groups[1].Total)
	}
	if !groups[0].PeriodEnd.Equal(day.AddDate(0, 0, 4)) || !groups[0].PeriodStart.Equal(day) {
		t.Fatalf("period %s..%s", groups[0].PeriodStart, groups[0].PeriodEnd)
	}
}

func TestPlanMissingPriceIsZero(t *testing.T) {
	agent := uuid.New()
	lines := []BookingLine{{BookingID: uuid.New(), AgentID: &agent, Status: "confirmed", Adults: 3}}
	groups, _ := Plan(lines, func(uuid.UUID, uuid.UUID) decimal.Decimal { return decimal.Zero }, decimal.Zero)
	if !groups[0].Total.IsZero() {
		t.Fatalf("expected zero total, got %s", groups[0].Total)
	}
}

func TestPlanAppliesTax(t *testing.T) {
	agent := uuid.New()
	lines := []BookingLine{{BookingID: uuid.New(), AgentID: &agent, Status: "confirmed", Adults: 1}}
	groups, _ := Plan(lines, func(uuid.UUID, uuid.UUID) decimal.Decimal { return d("1000") }, d("0.07"))
	g := groups[0]
	if !g.Subtotal.Equal(d("1000")) || !g.TaxAmount.Equal(d("70")) || !g.Total.Equal(d("1070")) {
		t.Fatalf("got subtotal %s tax %s total %s", g.Subtotal, g.TaxAmount, g.Total)
	}
}

func TestNumbering(t *testing.T) {
	period := Period(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if period != "202603" {
		t.Fatalf("period %q", period)
	}
	if got := FormatNumber(period, 7); got != "INV-202603-007" {
		t.Fatalf("got %q", got)
	}
	if n, ok := ParseSequence("INV-202603-042"); !ok || n != 42 {
		t.Fatalf("parse: %d %v", n, ok)
	}
	if _, ok := ParseSequence("INV-202603-"); ok {
		t.Fatal("empty suffix should not parse")
	}
	if got := MaxSequence([]string{"INV-202603-999", "INV-202603-1000", "garbage", "INV-202603-010"}); got != 1000 {
		t.Fatalf("max %d, want 1000", got)
	}
}

func TestDueDays(t *testing.T) {
	for _, n := range DueDayOptions {
		if !ValidDueDays(n) {
			t.Fatalf("%d should be valid", n)
		}
	}
	for _, n := range []int{0, 2, 10, 90, -1} {
		if ValidDueDays(n) {
			t.Fatalf("%d should be invalid", n)
		}
	}
	today := time.Date(2026, 1, 30, 15, 4, 0, 0, time.UTC)
	if got := DueDate(today, 3); !got.Equal(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("due %s", got)
	}
}

func TestEffectiveStatus(t *testing.T) {
	today := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	if got := EffectiveStatus(Sent, yesterday, today); got != Overdue {
		t.Fatalf("got %s", got)
	}
	if got := EffectiveStatus(Sent, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), today); got != Sent {
		t.Fatalf("due today is not overdue, got %s", got)
	}
	if got := EffectiveStatus(Paid, yesterday, today); got != Paid {
		t.Fatalf("got %s", got)
	}
	if got := EffectiveStatus(Draft, yesterday, today); got != Draft {
		t.Fatalf("got %s", got)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{{Draft, Sent}, {Sent, Paid}, {Overdue, Paid}, {Sent, Overdue}}
	for _, tr := range allowed {
		if !CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be allowed", tr[0], tr[1])
		}
	}
	denied := [][2]string{{Draft, Paid}, {Paid, Sent}, {Paid, Draft}, {Sent, Draft}}
	for _, tr := range denied {
		if CanTransition(tr[0], tr[1]) {
			t.Errorf("%s -> %s should be denied", tr[0], tr[1])
		}
	}
}
