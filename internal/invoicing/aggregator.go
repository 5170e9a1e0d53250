// Package invoicing turns a selection of bookings into one invoice plan per
// agent. It performs no I/O; numbering and persistence live in the service.
package invoicing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking statuses that can never be invoiced
const (
	StatusVoid      = "void"
	StatusCancelled = "cancelled"
)

// Skip reasons reported for bookings left out of a plan
const (
	SkipNoAgent         = "no agent"
	SkipDirect          = "direct booking"
	SkipAlreadyInvoiced = "already invoiced"
	SkipStatus          = "status not invoiceable"
)

var half = decimal.NewFromFloat(0.5)

// BookingLine is the slice of a booking the aggregator needs.
type BookingLine struct {
	BookingID     uuid.UUID
	BookingRef    string
	ProgramID     uuid.UUID
	ProgramName   string
	AgentID       *uuid.UUID
	AgentIsDirect bool
	InvoiceID     *uuid.UUID
	Status        string
	Adults        int
	Children      int
	Infants       int
	ActivityDate  time.Time
}

// PriceLookup returns the invoice unit price of a program for an agent.
type PriceLookup func(agentID, programID uuid.UUID) decimal.Decimal

// Line is one planned invoice item.
type Line struct {
	BookingID    uuid.UUID       `json:"booking_id"`
	ProgramID    uuid.UUID       `json:"program_id"`
	Description  string          `json:"description"`
	ActivityDate time.Time       `json:"activity_date"`
	Pax          decimal.Decimal `json:"pax"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
}

// Group is the plan for one agent's invoice.
type Group struct {
	AgentID     uuid.UUID       `json:"agent_id"`
	Lines       []Line          `json:"lines"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Total       decimal.Decimal `json:"total"`
}

// BookingIDs lists the bookings the group covers.
func (g Group) BookingIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(g.Lines))
	for _, l := range g.Lines {
		ids = append(ids, l.BookingID)
	}
	return ids
}

// Skipped records a selected booking that was filtered out.
type Skipped struct {
	BookingID  uuid.UUID `json:"booking_id"`
	BookingRef string    `json:"booking_ref"`
	Reason     string    `json:"reason"`
}

// Invoiceable reports whether b may go on a new invoice, and why not otherwise.
func Invoiceable(b BookingLine) (bool, string) {
	switch {
	case b.AgentID == nil:
		return false, SkipNoAgent
	case b.AgentIsDirect:
		return false, SkipDirect
	case b.InvoiceID != nil:
		return false, SkipAlreadyInvoiced
	case b.Status == StatusVoid || b.Status == StatusCancelled:
		return false, SkipStatus
	}
	return true, ""
}

// Pax is the weighted guest count: adults count fully, children by half,
// infants not at all.
func Pax(adults, children int) decimal.Decimal {
	return decimal.NewFromInt(int64(adults)).Add(decimal.NewFromInt(int64(children)).Mul(half))
}

// Plan filters the selection and partitions it by agent. Groups come out in
// the order their agent first appears in the selection.
func Plan(bookings []BookingLine, price PriceLookup, taxRate decimal.Decimal) ([]Group, []Skipped) {
	var (
		groups  []Group
		skipped []Skipped
		index   = map[uuid.UUID]int{}
	)

	for _, b := range bookings {
		if ok, reason := Invoiceable(b); !ok {
			skipped = append(skipped, Skipped{BookingID: b.BookingID, BookingRef: b.BookingRef, Reason: reason})
			continue
		}

		agentID := *b.AgentID
		i, seen := index[agentID]
		if !seen {
			i = len(groups)
			index[agentID] = i
			groups = append(groups, Group{AgentID: agentID, PeriodStart: b.ActivityDate, PeriodEnd: b.ActivityDate})
		}

		unit := price(agentID, b.ProgramID)
		pax := Pax(b.Adults, b.Children)
		g := &groups[i]
		g.Lines = append(g.Lines, Line{
			BookingID:    b.BookingID,
			ProgramID:    b.ProgramID,
			Description:  describe(b),
			ActivityDate: b.ActivityDate,
			Pax:          pax,
			UnitPrice:    unit,
			Amount:       unit.Mul(pax),
		})
		if b.ActivityDate.Before(g.PeriodStart) {
			g.PeriodStart = b.ActivityDate
		}
		if b.ActivityDate.After(g.PeriodEnd) {
			g.PeriodEnd = b.ActivityDate
		}
	}

	for i := range groups {
		groups[i].total(taxRate)
	}
	return groups, skipped
}

func (g *Group) total(taxRate decimal.Decimal) {
	subtotal := decimal.Zero
	for _, l := range g.Lines {
		subtotal = subtotal.Add(l.Amount)
	}
	g.Subtotal = subtotal
	g.TaxRate = taxRate
	g.TaxAmount = subtotal.Mul(taxRate).Round(2)
	g.Total = subtotal.Add(g.TaxAmount)
}

func describe(b BookingLine) string {
	parts := []string{}
	if b.BookingRef != "" {
		parts = append(parts, b.BookingRef)
	}
	if b.ProgramName != "" {
		parts = append(parts, b.ProgramName)
	}
	if !b.ActivityDate.IsZero() {
		parts = append(parts, b.ActivityDate.Format("2006-01-02"))
	}
	parts = append(parts, fmt.Sprintf("%dA/%dC/%dI", b.Adults, b.Children, b.Infants))
	return strings.Join(parts, " · ")
}

// --- Numbering ---

const numberPrefix = "INV-"

// Period is the numbering scope of a date: year and month, YYYYMM.
func Period(t time.Time) string {
	return t.Format("200601")
}

// NumberPrefix is the prefix shared by every invoice of a period.
func NumberPrefix(period string) string {
	return numberPrefix + period + "-"
}

// FormatNumber renders INV-{YYYY}{MM}-{seq}.
func FormatNumber(period string, seq int64) string {
	return fmt.Sprintf("%s%03d", NumberPrefix(period), seq)
}

// ParseSequence extracts the integer suffix of an invoice number.
func ParseSequence(invoiceNo string) (int64, bool) {
	i := strings.LastIndex(invoiceNo, "-")
	if i < 0 || i == len(invoiceNo)-1 {
		return 0, false
	}
	n, err := strconv.ParseInt(invoiceNo[i+1:], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// MaxSequence is the highest parsable suffix among numbers, 0 if none.
// Suffixes are compared as integers so "-1000" sorts above "-999".
func MaxSequence(numbers []string) int64 {
	var max int64
	for _, no := range numbers {
		if n, ok := ParseSequence(no); ok && n > max {
			max = n
		}
	}
	return max
}

// --- Due dates & status ---

// DueDayOptions are the payment terms offered when invoicing.
var DueDayOptions = []int{1, 3, 7, 14, 21, 30, 45, 60}

// ValidDueDays reports whether n is one of DueDayOptions.
func ValidDueDays(n int) bool {
	for _, o := range DueDayOptions {
		if o == n {
			return true
		}
	}
	return false
}

// DueDate is today plus the payment term, at midnight.
func DueDate(today time.Time, days int) time.Time {
	y, m, dd := today.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, today.Location()).AddDate(0, 0, days)
}

// Invoice statuses
const (
	Draft   = "draft"
	Sent    = "sent"
	Paid    = "paid"
	Overdue = "overdue"
)

// EffectiveStatus derives overdue for a sent invoice whose due date is before
// today. Paid and draft invoices are never overdue.
func EffectiveStatus(status string, due, today time.Time) string {
	if status == Sent {
		y, m, dd := today.Date()
		startOfToday := time.Date(y, m, dd, 0, 0, 0, 0, today.Location())
		if due.Before(startOfToday) {
			return Overdue
		}
	}
	return status
}

// CanTransition reports whether an invoice may move from one stored status to
// another. Overdue invoices can still be paid.
func CanTransition(from, to string) bool {
	switch to {
	case Sent:
		return from == Draft
	case Paid:
		return from == Sent || from == Overdue
	case Overdue:
		return from == Sent
	}
	return false
}
