package catalog

import (
	"encoding/json"
	"math"
)

// Number is an optional measurement or amount. A nil *Number means unknown.
// NaN survives normalization and is written back out as null.
type Number float64

func Num(f float64) *Number {
	n := Number(f)
	return &n
}

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Finite reports the value when it is known and a finite number.
func (n *Number) Finite() (float64, bool) {
	if n == nil {
		return 0, false
	}
	f := float64(*n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// OrZero is the sort key for a measurement: unknown and NaN count as 0.
func (n *Number) OrZero() float64 {
	f, _ := n.Finite()
	return f
}

type Spec struct {
	DensityGSM *Number `json:"density_gsm" jsonschema:"description=Adhesive density in g/m²"`
	WidthMM    *Number `json:"width_mm" jsonschema:"description=Roll width in millimetres"`
	CoreMM     *Number `json:"core_mm" jsonschema:"description=Core diameter in millimetres"`
	LengthM    *Number `json:"length_m" jsonschema:"description=Roll length in metres"`
}

// Item is one tape roll. Items are replaced wholesale, never edited in place.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Spec        Spec    `json:"spec"`
	PriceUAH    *Number `json:"price_uah"`
	OldPriceUAH *Number `json:"old_price_uah"`
	InStock     bool    `json:"in_stock"`
	BoxQty      *Number `json:"box_qty"`
	PackQty     *Number `json:"pack_qty"`
	URL         string  `json:"url"`
}

// String renders the value the way a browser would print a JS number.
func (n Number) String() string {
	return formatNumber(float64(n))
}
