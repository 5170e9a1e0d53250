// Package document renders invoices and booking vouchers as PDF.
package document

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

const dateLayout = "02 Jan 2006"

var (
	title   = props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}
	label   = props.Text{Size: 9, Style: fontstyle.Bold}
	value   = props.Text{Size: 9}
	head    = props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Left}
	headR   = props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	cell    = props.Text{Size: 9}
	cellR   = props.Text{Size: 9, Align: align.Right}
	small   = props.Text{Size: 8, Align: align.Center}
	totalsR = props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}
)

// InvoiceLine is one printed invoice item.
type InvoiceLine struct {
	Description string
	Pax         decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// Invoice is everything printed on an invoice.
type Invoice struct {
	CompanyName string
	Currency    string
	InvoiceNo   string
	AgentName   string
	AgentEmail  string
	IssuedAt    time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	DueDate     time.Time
	Status      string
	Lines       []InvoiceLine
	Subtotal    decimal.Decimal
	TaxRate     decimal.Decimal
	TaxAmount   decimal.Decimal
	Total       decimal.Decimal
	Footer      string
}

// Voucher is the guest's proof of booking.
type Voucher struct {
	CompanyName   string
	Currency      string
	BookingRef    string
	ProgramName   string
	ActivityDate  time.Time
	CustomerName  string
	CustomerPhone string
	Adults        int
	Children      int
	Infants       int
	Transport     string
	PickupTime    string
	Hotel         string
	RoomNo        string
	AgentName     string
	CollectAmount decimal.Decimal
	Notes         string
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithLeftMargin(12).
		WithTopMargin(15).
		WithRightMargin(12).
		Build()
	return maroto.New(cfg)
}

func field(name, val string) core.Row {
	return row.New(6).Add(
		text.NewCol(4, name, label),
		text.NewCol(8, val, value),
	)
}

func money(currency string, d decimal.Decimal) string {
	return fmt.Sprintf("%s %s", currency, d.StringFixed(2))
}

// InvoicePDF renders an invoice.
func InvoicePDF(inv Invoice) ([]byte, error) {
	m := newDocument()

	m.AddRows(
		text.NewRow(10, inv.CompanyName, title),
		text.NewRow(8, "INVOICE "+inv.InvoiceNo, props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Center}),
		row.New(4),
		field("Bill to", inv.AgentName),
	)
	if inv.AgentEmail != "" {
		m.AddRows(field("Email", inv.AgentEmail))
	}
	m.AddRows(
		field("Issued", inv.IssuedAt.Format(dateLayout)),
		field("Service period", inv.PeriodStart.Format(dateLayout)+" - "+inv.PeriodEnd.Format(dateLayout)),
		field("Due date", inv.DueDate.Format(dateLayout)),
		field("Status", inv.Status),
		row.New(6),
	)

	m.AddRow(7,
		text.NewCol(6, "Description", head),
		text.NewCol(2, "Pax", headR),
		text.NewCol(2, "Unit price", headR),
		text.NewCol(2, "Amount", headR),
	)
	for _, l := range inv.Lines {
		m.AddRow(6,
			text.NewCol(6, l.Description, cell),
			text.NewCol(2, l.Pax.String(), cellR),
			text.NewCol(2, l.UnitPrice.StringFixed(2), cellR),
			text.NewCol(2, l.Amount.StringFixed(2), cellR),
		)
	}

	taxLabel := fmt.Sprintf("Tax (%s%%)", inv.TaxRate.Mul(decimal.NewFromInt(100)).String())
	m.AddRows(
		row.New(4),
		totalRow("Subtotal", money(inv.Currency, inv.Subtotal)),
		totalRow(taxLabel, money(inv.Currency, inv.TaxAmount)),
		totalRow("Total", money(inv.Currency, inv.Total)),
	)
	if inv.Footer != "" {
		m.AddRows(row.New(8), text.NewRow(6, inv.Footer, small))
	}

	return generate(m)
}

func totalRow(name, amount string) core.Row {
	return row.New(7).Add(
		text.NewCol(8, name, totalsR),
		text.NewCol(4, amount, totalsR),
	)
}

// VoucherPDF renders a booking voucher.
func VoucherPDF(v Voucher) ([]byte, error) {
	m := newDocument()

	m.AddRows(
		text.NewRow(10, v.CompanyName, title),
		text.NewRow(8, "BOOKING VOUCHER", props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Center}),
		row.New(4),
		field("Booking ref", v.BookingRef),
		field("Program", v.ProgramName),
		field("Date", v.ActivityDate.Format(dateLayout)),
		field("Guest", v.CustomerName),
		field("Phone", v.CustomerPhone),
		field("Guests", fmt.Sprintf("%d adult(s), %d child(ren), %d infant(s)", v.Adults, v.Children, v.Infants)),
	)
	if v.Transport == "pickup" {
		pickup := v.Hotel
		if v.RoomNo != "" {
			pickup += ", room " + v.RoomNo
		}
		if v.PickupTime != "" {
			pickup += " at " + v.PickupTime
		}
		m.AddRows(field("Pickup", pickup))
	} else {
		m.AddRows(field("Transport", "Come direct to the meeting point"))
	}
	if v.AgentName != "" {
		m.AddRows(field("Agent", v.AgentName))
	}
	if v.CollectAmount.IsPositive() {
		m.AddRows(field("Collect on the day", money(v.Currency, v.CollectAmount)))
	}
	if v.Notes != "" {
		m.AddRows(field("Notes", v.Notes))
	}
	m.AddRows(row.New(10), text.NewRow(6, "Please show this voucher to your guide.", small))

	return generate(m)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
