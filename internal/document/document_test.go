package document

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestInvoicePDF(t *testing.T) {
	day := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)
	pdf, err := InvoicePDF(Invoice{
		CompanyName: "Acme Tours",
		Currency:    "THB",
		InvoiceNo:   "INV-202610-001",
		AgentName:   "ABC Travel",
		IssuedAt:    day,
		PeriodStart: day,
		PeriodEnd:   day.AddDate(0, 0, 4),
		DueDate:     day.AddDate(0, 0, 14),
		Status:      "draft",
		Lines: []InvoiceLine{
			{Description: "BK-1 Island Tour", Pax: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(1000), Amount: decimal.NewFromInt(3000)},
		},
		Subtotal:  decimal.NewFromInt(3000),
		TaxRate:   decimal.RequireFromString("0.07"),
		TaxAmount: decimal.NewFromInt(210),
		Total:     decimal.NewFromInt(3210),
		Footer:    "Thank you",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", pdf[:8])
	}
}

func TestVoucherPDF(t *testing.T) {
	pdf, err := VoucherPDF(Voucher{
		CompanyName:   "Acme Tours",
		Currency:      "THB",
		BookingRef:    "BK-1",
		ProgramName:   "Island Tour",
		ActivityDate:  time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		CustomerName:  "Ann",
		Adults:        2,
		Transport:     "pickup",
		Hotel:         "Sea View",
		PickupTime:    "07:45",
		CollectAmount: decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(pdf) == 0 || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatal("not a pdf")
	}
}
