package catalog

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

type SortMode string

const (
	SortPriceAsc   SortMode = "price_asc"
	SortPriceDesc  SortMode = "price_desc"
	SortLengthAsc  SortMode = "len_asc"
	SortLengthDesc SortMode = "len_desc"
	SortTitleAsc   SortMode = "title_asc"
	SortTitleDesc  SortMode = "title_desc"
)

var SortModes = []SortMode{SortPriceAsc, SortPriceDesc, SortLengthAsc, SortLengthDesc, SortTitleAsc, SortTitleDesc}

func (m SortMode) Valid() bool {
	return slices.Contains(SortModes, m)
}

func (m SortMode) desc() bool {
	return strings.HasSuffix(string(m), "_desc")
}

// Query is the complete filter and sort state. Nil exact-match filters
// impose no constraint.
type Query struct {
	Text        string
	Width       *float64
	Core        *float64
	Length      *float64
	InStockOnly bool
	Sort        SortMode
}

func DefaultQuery() Query {
	return Query{Sort: SortPriceAsc}
}

// Apply filters items with AND semantics and sorts the survivors stably.
// The input slice is not modified.
func Apply(items []Item, q Query) []Item {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	view := make([]Item, 0, len(items))
	for _, x := range items {
		if text != "" && !strings.Contains(strings.ToLower(x.ID+" "+x.Title), text) {
			continue
		}
		if !matches(x.Spec.WidthMM, q.Width) || !matches(x.Spec.CoreMM, q.Core) || !matches(x.Spec.LengthM, q.Length) {
			continue
		}
		if q.InStockOnly && !x.InStock {
			continue
		}
		view = append(view, x)
	}

	mode := q.Sort
	if !mode.Valid() {
		mode = SortPriceAsc
	}
	compare := comparator(mode)
	if mode.desc() {
		asc := compare
		compare = func(a, b Item) int { return -asc(a, b) }
	}
	slices.SortStableFunc(view, compare)
	return view
}

func matches(have *Number, want *float64) bool {
	if want == nil {
		return true
	}
	f, ok := have.Finite()
	return ok && f == *want
}

func comparator(mode SortMode) func(a, b Item) int {
	switch mode {
	case SortLengthAsc, SortLengthDesc:
		return func(a, b Item) int { return cmp.Compare(a.Spec.LengthM.OrZero(), b.Spec.LengthM.OrZero()) }
	case SortTitleAsc, SortTitleDesc:
		return func(a, b Item) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	}
	return func(a, b Item) int { return cmp.Compare(a.PriceUAH.OrZero(), b.PriceUAH.OrZero()) }
}

// FilterOptions are the distinct values offered for the exact-match
// filters. They describe the whole catalog, not the current view.
type FilterOptions struct {
	Widths  []float64
	Cores   []float64
	Lengths []float64
}

func Options(items []Item) FilterOptions {
	return FilterOptions{
		Widths:  distinct(items, func(x Item) *Number { return x.Spec.WidthMM }),
		Cores:   distinct(items, func(x Item) *Number { return x.Spec.CoreMM }),
		Lengths: distinct(items, func(x Item) *Number { return x.Spec.LengthM }),
	}
}

func distinct(items []Item, field func(Item) *Number) []float64 {
	values := lo.FilterMap(items, func(x Item, _ int) (float64, bool) {
		return field(x).Finite()
	})
	values = lo.Uniq(values)
	slices.Sort(values)
	return values
}

// ParseQuery reads the filter form. The second result is false when none of
// the filter fields are present, so a bare page load keeps the current state.
func ParseQuery(v url.Values) (Query, bool) {
	present := false
	for _, key := range []string{"q", "width", "core", "length", "in_stock", "sort"} {
		if v.Has(key) {
			present = true
			break
		}
	}
	q := DefaultQuery()
	if !present {
		return q, false
	}
	q.Text = v.Get("q")
	q.Width = parseFilter(v.Get("width"))
	q.Core = parseFilter(v.Get("core"))
	q.Length = parseFilter(v.Get("length"))
	q.InStockOnly = lo.Contains([]string{"1", "on", "true"}, v.Get("in_stock"))
	if mode := SortMode(v.Get("sort")); mode.Valid() {
		q.Sort = mode
	}
	return q, true
}

func parseFilter(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Values is the inverse of ParseQuery.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("q", q.Text)
	v.Set("sort", string(q.Sort))
	for key, f := range map[string]*float64{"width": q.Width, "core": q.Core, "length": q.Length} {
		if f != nil {
			v.Set(key, strconv.FormatFloat(*f, 'f', -1, 64))
		}
	}
	if q.InStockOnly {
		v.Set("in_stock", "1")
	}
	return v
}
