package catalog

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var ErrNotArray = errors.New("catalog data must be a JSON array of items")

// Normalize coerces a decoded JSON value into items. Only a non-array top
// level is an error; entries that are not objects, or have neither id nor
// title, are dropped without complaint.
func Normalize(v any) ([]Item, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	return lo.FilterMap(arr, func(x any, _ int) (Item, bool) {
		return NormalizeItem(x)
	}), nil
}

// NormalizeItem reports false when v is not an object or the result has
// neither an id nor a title.
func NormalizeItem(v any) (Item, bool) {
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return Item{}, false
	}
	spec, _ := m["spec"].(map[string]any)

	it := Item{
		ID:    looseString(m["id"]),
		Title: looseString(m["title"]),
		Spec: Spec{
			DensityGSM: optNumber(spec["density_gsm"]),
			WidthMM:    optNumber(spec["width_mm"]),
			CoreMM:     optNumber(spec["core_mm"]),
			LengthM:    optNumber(spec["length_m"]),
		},
		PriceUAH:    optNumber(m["price_uah"]),
		OldPriceUAH: optNumber(m["old_price_uah"]),
		InStock:     truthy(m["in_stock"]),
		BoxQty:      optNumber(m["box_qty"]),
		PackQty:     optNumber(m["pack_qty"]),
	}
	if truthy(m["url"]) {
		it.URL = looseString(m["url"])
	}
	return it, it.ID != "" || it.Title != ""
}

func optNumber(v any) *Number {
	if v == nil {
		return nil
	}
	return Num(looseNumber(v))
}

func looseString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = looseString(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// 1e-07 -> 1e-7
		mant, exp, _ := strings.Cut(s, "e")
		sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func looseNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case json.Number:
		return parseNumber(x.String())
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return parseNumber(x)
	case []any:
		switch len(x) {
		case 0:
			return 0
		case 1:
			return parseNumber(looseString(x[0]))
		}
	}
	return math.NaN()
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(s, "_") {
		return math.NaN()
	}
	if strings.HasPrefix(lower, "0x") {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case json.Number:
		f := parseNumber(x.String())
		return f != 0 && !math.IsNaN(f)
	case string:
		return x != ""
	}
	return true
}
