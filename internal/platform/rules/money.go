package rules

import (
	"github.com/shopspring/decimal"

	"github.com/medicorex/hms/internal/platform/apperr"
)

// Places is the number of decimal places of the currency's minimal unit.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds d half away from zero to the minimal currency unit.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Amounts are the money fields of a bill.
type Amounts struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotal returns subtotal - discount + tax at currency precision.
func ComputeTotal(subtotal, discount, tax decimal.Decimal) decimal.Decimal {
	return Round(Round(subtotal).Sub(Round(discount)).Add(Round(tax)))
}

// TaxFromRate returns ratePercent percent of (subtotal - discount).
func TaxFromRate(subtotal, discount, ratePercent decimal.Decimal) decimal.Decimal {
	base := Round(subtotal).Sub(Round(discount))
	return Round(base.Mul(ratePercent).Div(hundred))
}

// SumItems adds item amounts at currency precision.
func SumItems(amounts []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(Round(a))
	}
	return sum
}

// CheckAmounts enforces the bill invariant for bill id:
// every component is non-negative, the total equals subtotal - discount + tax
// exactly at currency precision, and the total is not negative.
func CheckAmounts(id string, a Amounts) error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"subtotal", a.Subtotal},
		{"discount", a.Discount},
		{"tax", a.Tax},
	} {
		if f.v.IsNegative() {
			return apperr.InvalidAmount("bill", id, f.name, "must not be negative, got %s", f.v.StringFixed(Places))
		}
		if !f.v.Equal(Round(f.v)) {
			return apperr.InvalidAmount("bill", id, f.name, "has more than %d decimal places: %s", Places, f.v.String())
		}
	}

	want := ComputeTotal(a.Subtotal, a.Discount, a.Tax)
	if want.IsNegative() {
		return apperr.InvalidAmount("bill", id, "discount",
			"discount %s exceeds subtotal plus tax", a.Discount.StringFixed(Places))
	}
	if !a.Total.Equal(want) {
		return apperr.InvalidAmount("bill", id, "total_amount",
			"expected %s (subtotal %s - discount %s + tax %s), got %s",
			want.StringFixed(Places), a.Subtotal.StringFixed(Places), a.Discount.StringFixed(Places),
			a.Tax.StringFixed(Places), a.Total.StringFixed(Places))
	}
	return nil
}

// CheckItemsSubtotal enforces that a bill with line items carries their sum as
// its subtotal. Bills without items keep whatever subtotal they were given.
func CheckItemsSubtotal(id string, subtotal decimal.Decimal, items []decimal.Decimal) error {
	if len(items) == 0 {
		return nil
	}
	for _, it := range items {
		if it.IsNegative() {
			return apperr.InvalidAmount("bill", id, "items.amount", "must not be negative, got %s", it.StringFixed(Places))
		}
	}
	sum := SumItems(items)
	if !Round(subtotal).Equal(sum) {
		return apperr.InvalidAmount("bill", id, "subtotal",
			"expected %s (sum of %d items), got %s", sum.StringFixed(Places), len(items), subtotal.StringFixed(Places))
	}
	return nil
}
