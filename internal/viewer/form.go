package viewer

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"tapeview/internal/catalog"
)

var formFields = []string{
	"id", "title", "density_gsm", "width_mm", "core_mm", "length_m",
	"price_uah", "old_price_uah", "box_qty", "pack_qty", "url", "in_stock",
}

// itemFromForm reads the add form. Numbers accept a decimal comma, blank
// or unparsable fields are unknown, and the price defaults to zero.
func itemFromForm(v url.Values) catalog.Item {
	price := formNumber(v.Get("price_uah"))
	if price == nil {
		price = catalog.Num(0)
	}
	return catalog.Item{
		ID:    strings.TrimSpace(v.Get("id")),
		Title: strings.TrimSpace(v.Get("title")),
		Spec: catalog.Spec{
			DensityGSM: formNumber(v.Get("density_gsm")),
			WidthMM:    formNumber(v.Get("width_mm")),
			CoreMM:     formNumber(v.Get("core_mm")),
			LengthM:    formNumber(v.Get("length_m")),
		},
		PriceUAH:    price,
		OldPriceUAH: formNumber(v.Get("old_price_uah")),
		InStock:     v.Get("in_stock") != "",
		BoxQty:      formNumber(v.Get("box_qty")),
		PackQty:     formNumber(v.Get("pack_qty")),
		URL:         strings.TrimSpace(v.Get("url")),
	}
}

func formNumber(s string) *catalog.Number {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return catalog.Num(f)
}

// formEcho returns the submitted values so a rejected form can be redrawn.
func formEcho(v url.Values) map[string]string {
	echo := make(map[string]string, len(formFields))
	for _, k := range formFields {
		echo[k] = v.Get(k)
	}
	return echo
}
