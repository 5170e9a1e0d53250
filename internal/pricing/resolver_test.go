package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveSingleWithoutOverrideDefaultsToSellingPrice(t *testing.T) {
	cases := []string{"0", "1", "1500", "99.50"}
	for _, price := range cases {
		q := Resolve(ProgramPrice{PricingType: Single, SellingPrice: d(price)}, nil)
		if !q.AgentPrice.Equal(d(price)) {
			t.Fatalf("selling %s: agent price %s, want selling price", price, q.AgentPrice)
		}
		if !q.Commission().IsZero() {
			t.Fatalf("selling %s: commission %s, want 0", price, q.Commission())
		}
		if q.HasOverride {
			t.Fatalf("selling %s: HasOverride should be false", price)
		}
	}
}

func TestResolveIslandTourScenario(t *testing.T) {
	program := ProgramPrice{PricingType: Single, SellingPrice: d("1500")}
	q := Resolve(program, nil)
	if !q.AgentPrice.Equal(d("1500")) || !q.Commission().IsZero() {
		t.Fatalf("got agent %s commission %s", q.AgentPrice, q.Commission())
	}
}

func TestResolveSingleWithOverride(t *testing.T) {
	q := Resolve(ProgramPrice{PricingType: Single, SellingPrice: d("1500")}, &Override{AgentPrice: d("1200")})
	if !q.Commission().Equal(d("300")) {
		t.Fatalf("commission %s, want 300", q.Commission())
	}
}

func TestResolveAdultChildCommissionPerTier(t *testing.T) {
	program := ProgramPrice{PricingType: AdultChild, AdultSellingPrice: d("2000"), ChildSellingPrice: d("1000")}
	overrides := []Override{
		{AdultAgentPrice: d("1700"), ChildAgentPrice: d("900")},
		{AdultAgentPrice: d("2000"), ChildAgentPrice: d("400")},
		{AdultAgentPrice: d("0"), ChildAgentPrice: d("1000")},
	}
	for _, o := range overrides {
		o := o
		q := Resolve(program, &o)
		if want := d("2000").Sub(o.AdultAgentPrice); !q.AdultCommission().Equal(want) {
			t.Fatalf("adult commission %s, want %s", q.AdultCommission(), want)
		}
		if want := d("1000").Sub(o.ChildAgentPrice); !q.ChildCommission().Equal(want) {
			t.Fatalf("child commission %s, want %s", q.ChildCommission(), want)
		}
		if !q.SellingPrice.IsZero() || !q.AgentPrice.IsZero() {
			t.Fatalf("single-mode fields should stay empty in adult_child mode")
		}
	}
}

func TestResolveAdultChildWithoutOverride(t *testing.T) {
	q := Resolve(ProgramPrice{PricingType: AdultChild, AdultSellingPrice: d("2000"), ChildSellingPrice: d("1000")}, nil)
	if !q.AdultAgentPrice.Equal(d("2000")) || !q.ChildAgentPrice.Equal(d("1000")) {
		t.Fatalf("got %s/%s", q.AdultAgentPrice, q.ChildAgentPrice)
	}
}

func TestNegativeCommissionIsRepresentable(t *testing.T) {
	q := Resolve(ProgramPrice{PricingType: Single, SellingPrice: d("1000")}, &Override{AgentPrice: d("1100")})
	if !q.Commission().Equal(d("-100")) {
		t.Fatalf("commission %s, want -100", q.Commission())
	}
	if !q.NegativeCommission() {
		t.Fatal("expected negative commission flag")
	}
}

func TestDefaultsIgnoresOverride(t *testing.T) {
	program := ProgramPrice{PricingType: Single, SellingPrice: d("800")}
	if q := Defaults(program); !q.AgentPrice.Equal(d("800")) || q.HasOverride {
		t.Fatalf("defaults quote %+v", q)
	}
}

func TestInvoiceUnitPriceHasNoSellingFallback(t *testing.T) {
	if p := InvoiceUnitPrice(Single, nil); !p.IsZero() {
		t.Fatalf("no override should price at 0, got %s", p)
	}
	if p := InvoiceUnitPrice(Single, &Override{AgentPrice: d("1000")}); !p.Equal(d("1000")) {
		t.Fatalf("got %s", p)
	}
	if p := InvoiceUnitPrice(AdultChild, &Override{AdultAgentPrice: d("900"), ChildAgentPrice: d("100")}); !p.Equal(d("900")) {
		t.Fatalf("got %s", p)
	}
}

func TestSellingTotal(t *testing.T) {
	single := ProgramPrice{PricingType: Single, SellingPrice: d("1500")}
	if got := SellingTotal(single, 2, 1); !got.Equal(d("4500")) {
		t.Fatalf("single total %s", got)
	}
	split := ProgramPrice{PricingType: AdultChild, AdultSellingPrice: d("2000"), ChildSellingPrice: d("1000")}
	if got := SellingTotal(split, 2, 1); !got.Equal(d("5000")) {
		t.Fatalf("split total %s", got)
	}
}
