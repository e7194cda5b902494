// Package view projects a filtered catalog into what the page shows: one row
// per item plus a count and price summary.
package view

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tapeview/internal/catalog"
)

const currency = "грн"

type EmptyState int

const (
	EmptyNone EmptyState = iota
	EmptyNoMatches
	EmptyCatalog
)

func (e EmptyState) Message() string {
	switch e {
	case EmptyNoMatches:
		return "No results for these filters."
	case EmptyCatalog:
		return "The catalog is empty. Add an item or import JSON."
	}
	return ""
}

type Row struct {
	ID       string
	Title    string
	URL      string
	Spec     string
	Price    string
	OldPrice string
	Discount string
	InStock  bool
	BoxQty   string
	PackQty  string
}

type Summary struct {
	Shown     int
	Total     int
	HasPrices bool
	MinPrice  string
	MaxPrice  string
	Source    string
}

func (s Summary) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.Shown))
	b.WriteString(" / ")
	b.WriteString(strconv.Itoa(s.Total))
	if s.HasPrices {
		b.WriteString(" • price: ")
		b.WriteString(s.MinPrice)
		b.WriteString(" — ")
		b.WriteString(s.MaxPrice)
	}
	b.WriteString(" • source: ")
	b.WriteString(s.Source)
	return b.String()
}

type Model struct {
	Rows    []Row
	Summary Summary
	Empty   EmptyState
}

// Renderer formats numbers for one locale.
type Renderer struct {
	printer *message.Printer
}

func NewRenderer(locale string) *Renderer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Ukrainian
	}
	return &Renderer{printer: message.NewPrinter(tag)}
}

func (r *Renderer) Money(v float64) string {
	return r.printer.Sprintf("%.2f", v) + " " + currency
}

// Build projects view, the filtered and sorted subsequence of a catalog of
// total items.
func (r *Renderer) Build(view []catalog.Item, total int, source string) Model {
	m := Model{
		Rows: make([]Row, 0, len(view)),
		Summary: Summary{
			Shown:  len(view),
			Total:  total,
			Source: source,
		},
	}
	switch {
	case total == 0:
		m.Empty = EmptyCatalog
	case len(view) == 0:
		m.Empty = EmptyNoMatches
	}
	if len(view) == 0 {
		return m
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range view {
		if p, ok := x.PriceUAH.Finite(); ok {
			lo, hi = math.Min(lo, p), math.Max(hi, p)
		}
		m.Rows = append(m.Rows, r.row(x))
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	m.Summary.HasPrices = true
	m.Summary.MinPrice = r.Money(lo)
	m.Summary.MaxPrice = r.Money(hi)
	return m
}

func (r *Renderer) row(x catalog.Item) Row {
	row := Row{
		ID:       dash(x.ID),
		Title:    dash(x.Title),
		URL:      x.URL,
		Spec:     SpecLabel(x.Spec),
		Price:    "—",
		OldPrice: "—",
		Discount: "—",
		InStock:  x.InStock,
		BoxQty:   number(x.BoxQty),
		PackQty:  number(x.PackQty),
	}
	if p, ok := x.PriceUAH.Finite(); ok {
		row.Price = r.Money(p)
	}
	if o, ok := x.OldPriceUAH.Finite(); ok && o != 0 {
		row.OldPrice = r.Money(o)
	}
	if d, ok := Discount(x.PriceUAH, x.OldPriceUAH); ok {
		row.Discount = strconv.FormatFloat(d, 'f', 2, 64) + "%"
	}
	return row
}

// Discount is the markdown percentage rounded to two decimals. It is only
// defined when old is a finite positive amount strictly above price.
func Discount(price, old *catalog.Number) (float64, bool) {
	p, ok := price.Finite()
	if !ok {
		return 0, false
	}
	o, ok := old.Finite()
	if !ok || o <= 0 || p >= o {
		return 0, false
	}
	return math.Round(((o-p)/o)*10000) / 100, true
}

// SpecLabel is "<density> g/m² • <width> mm • core <core> mm • <length> m".
func SpecLabel(s catalog.Spec) string {
	return number(s.DensityGSM) + " g/m² • " +
		number(s.WidthMM) + " mm • core " +
		number(s.CoreMM) + " mm • " +
		number(s.LengthM) + " m"
}

func number(n *catalog.Number) string {
	if n == nil {
		return "—"
	}
	return n.String()
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
