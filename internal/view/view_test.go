package view

import (
	"math"
	"strings"
	"testing"

	"tapeview/internal/catalog"
)

func TestDiscount(t *testing.T) {
	cases := []struct {
		name       string
		price, old *catalog.Number
		want       float64
		ok         bool
	}{
		{"twenty percent", catalog.Num(80), catalog.Num(100), 20, true},
		{"rounds to two decimals", catalog.Num(2), catalog.Num(3), 33.33, true},
		{"equal prices", catalog.Num(100), catalog.Num(100), 0, false},
		{"price above old", catalog.Num(100), catalog.Num(80), 0, false},
		{"no old price", catalog.Num(100), nil, 0, false},
		{"unknown price", nil, catalog.Num(100), 0, false},
		{"zero old", catalog.Num(-5), catalog.Num(0), 0, false},
		{"nan old", catalog.Num(1), catalog.Num(math.NaN()), 0, false},
		{"infinite old", catalog.Num(1), catalog.Num(math.Inf(1)), 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Discount(c.price, c.old)
			if ok != c.ok || got != c.want {
				t.Fatalf("Discount = %v, %v; want %v, %v", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestBuildEmptyStates(t *testing.T) {
	r := NewRenderer("en")

	m := r.Build(nil, 0, "import: empty.json")
	if m.Empty != EmptyCatalog {
		t.Fatalf("expected empty catalog state, got %v", m.Empty)
	}
	if !strings.Contains(m.Empty.Message(), "catalog is empty") {
		t.Fatalf("unexpected message %q", m.Empty.Message())
	}

	m = r.Build(nil, 7, "products.json")
	if m.Empty != EmptyNoMatches {
		t.Fatalf("expected no matches state, got %v", m.Empty)
	}
	if m.Empty.Message() == EmptyCatalog.Message() {
		t.Fatalf("no-match and empty-catalog messages must differ")
	}
	if got := m.Summary.String(); got != "0 / 7 • source: products.json" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestBuildRows(t *testing.T) {
	r := NewRenderer("en")
	view := []catalog.Item{
		{ID: "A", Title: "Roll", URL: "https://example.com/a", Spec: catalog.Spec{WidthMM: catalog.Num(48), LengthM: catalog.Num(66)}, PriceUAH: catalog.Num(80), OldPriceUAH: catalog.Num(100), InStock: true, BoxQty: catalog.Num(36)},
		{ID: "B", PriceUAH: catalog.Num(120), OldPriceUAH: catalog.Num(100)},
		{Title: "No price"},
	}
	m := r.Build(view, 10, "products.json")

	if m.Empty != EmptyNone || len(m.Rows) != 3 {
		t.Fatalf("unexpected model %+v", m)
	}
	a := m.Rows[0]
	if a.Spec != "— g/m² • 48 mm • core — mm • 66 m" {
		t.Fatalf("unexpected spec label %q", a.Spec)
	}
	if a.Discount != "20.00%" {
		t.Fatalf("expected 20.00%% discount, got %q", a.Discount)
	}
	if a.BoxQty != "36" || a.PackQty != "—" {
		t.Fatalf("unexpected quantities %q %q", a.BoxQty, a.PackQty)
	}
	if m.Rows[1].Discount != "—" {
		t.Fatalf("expected no discount when price exceeds old price, got %q", m.Rows[1].Discount)
	}
	if m.Rows[2].ID != "—" || m.Rows[2].Price != "—" {
		t.Fatalf("expected dashes for unknown values, got %+v", m.Rows[2])
	}

	if !m.Summary.HasPrices || m.Summary.Shown != 3 || m.Summary.Total != 10 {
		t.Fatalf("unexpected summary %+v", m.Summary)
	}
	if m.Summary.MinPrice != r.Money(80) || m.Summary.MaxPrice != r.Money(120) {
		t.Fatalf("unexpected price range %s — %s", m.Summary.MinPrice, m.Summary.MaxPrice)
	}
	if !strings.HasSuffix(m.Summary.MaxPrice, " грн") {
		t.Fatalf("expected currency suffix, got %q", m.Summary.MaxPrice)
	}
}

func TestDiscountIgnoresLocale(t *testing.T) {
	r := NewRenderer("uk")
	row := r.Build([]catalog.Item{{ID: "A", PriceUAH: catalog.Num(80), OldPriceUAH: catalog.Num(100)}}, 1, "test").Rows[0]
	if row.Discount != "20.00%" {
		t.Fatalf("expected 20.00%%, got %q", row.Discount)
	}
}

func TestNewRendererFallsBackOnBadLocale(t *testing.T) {
	r := NewRenderer("!!")
	if got := r.Money(1); !strings.HasSuffix(got, "грн") {
		t.Fatalf("expected formatted money, got %q", got)
	}
}
