// Package pricing resolves what an agent pays for a program and the
// commission left to the agent on each guest tier.
package pricing

import "github.com/shopspring/decimal"

// Pricing modes of a program
const (
	Single     = "single"
	AdultChild = "adult_child"
)

// ProgramPrice is the selling side of a program.
type ProgramPrice struct {
	PricingType       string
	SellingPrice      decimal.Decimal
	AdultSellingPrice decimal.Decimal
	ChildSellingPrice decimal.Decimal
}

// Override is an agent's stored price for a program.
type Override struct {
	AgentPrice      decimal.Decimal
	AdultAgentPrice decimal.Decimal
	ChildAgentPrice decimal.Decimal
}

// Quote is the resolved price pair for one (agent, program). Only the fields of
// the program's pricing mode are populated.
type Quote struct {
	PricingType       string          `json:"pricing_type"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	AgentPrice        decimal.Decimal `json:"agent_price"`
	AdultSellingPrice decimal.Decimal `json:"adult_selling_price"`
	AdultAgentPrice   decimal.Decimal `json:"adult_agent_price"`
	ChildSellingPrice decimal.Decimal `json:"child_selling_price"`
	ChildAgentPrice   decimal.Decimal `json:"child_agent_price"`
	HasOverride       bool            `json:"has_override"`
}

// Resolve returns the quote for a program given the agent's existing override.
// Without an override the agent price defaults to the selling price, so the
// commission starts at zero rather than at the full selling price.
func Resolve(p ProgramPrice, o *Override) Quote {
	q := Quote{PricingType: normalizeType(p.PricingType), HasOverride: o != nil}

	if q.PricingType == AdultChild {
		q.AdultSellingPrice = p.AdultSellingPrice
		q.ChildSellingPrice = p.ChildSellingPrice
		q.AdultAgentPrice = p.AdultSellingPrice
		q.ChildAgentPrice = p.ChildSellingPrice
		if o != nil {
			q.AdultAgentPrice = o.AdultAgentPrice
			q.ChildAgentPrice = o.ChildAgentPrice
		}
		return q
	}

	q.SellingPrice = p.SellingPrice
	q.AgentPrice = p.SellingPrice
	if o != nil {
		q.AgentPrice = o.AgentPrice
	}
	return q
}

// Defaults is the bulk-edit quote: existing overrides are ignored and every
// agent is reset to the program's selling prices.
func Defaults(p ProgramPrice) Quote {
	return Resolve(p, nil)
}

// Commission is selling minus agent price in single mode.
func (q Quote) Commission() decimal.Decimal {
	return q.SellingPrice.Sub(q.AgentPrice)
}

// AdultCommission is the adult-tier commission in adult_child mode.
func (q Quote) AdultCommission() decimal.Decimal {
	return q.AdultSellingPrice.Sub(q.AdultAgentPrice)
}

// ChildCommission is the child-tier commission in adult_child mode.
func (q Quote) ChildCommission() decimal.Decimal {
	return q.ChildSellingPrice.Sub(q.ChildAgentPrice)
}

// NegativeCommission reports a misconfigured quote where the agent pays more
// than the selling price on some tier. It is flagged, never clamped.
func (q Quote) NegativeCommission() bool {
	if q.PricingType == AdultChild {
		return q.AdultCommission().IsNegative() || q.ChildCommission().IsNegative()
	}
	return q.Commission().IsNegative()
}

// Override converts the quote back into the stored override shape.
func (q Quote) Override() Override {
	return Override{
		AgentPrice:      q.AgentPrice,
		AdultAgentPrice: q.AdultAgentPrice,
		ChildAgentPrice: q.ChildAgentPrice,
	}
}

// InvoiceUnitPrice is the per-pax price used on invoices. It reads only the
// stored override and is zero when the agent has none; unlike Resolve there is
// no fallback to the selling price. In adult_child mode the adult tier price is
// the unit price, children being weighted through pax.
func InvoiceUnitPrice(pricingType string, o *Override) decimal.Decimal {
	if o == nil {
		return decimal.Zero
	}
	if normalizeType(pricingType) == AdultChild {
		return o.AdultAgentPrice
	}
	return o.AgentPrice
}

// SellingTotal prices a guest party at selling prices (infants are free).
func SellingTotal(p ProgramPrice, adults, children int) decimal.Decimal {
	if normalizeType(p.PricingType) == AdultChild {
		return p.AdultSellingPrice.Mul(decimal.NewFromInt(int64(adults))).
			Add(p.ChildSellingPrice.Mul(decimal.NewFromInt(int64(children))))
	}
	return p.SellingPrice.Mul(decimal.NewFromInt(int64(adults + children)))
}

// ValidType reports whether t is a known pricing mode.
func ValidType(t string) bool {
	return t == Single || t == AdultChild
}

func normalizeType(t string) string {
	if t == AdultChild {
		return AdultChild
	}
	return Single
}
