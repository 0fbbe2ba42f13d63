// Package billing computes order bills from line items.  All arithmetic is
// done in decimal so that repeated appends never drift the way binary
// floating point would.
package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/model"
)

// Scale limits match the storage columns.  Tax is subtotal × rate / 100,
// so a bill never carries more than MaxBillScale decimal places.
const (
	MaxPriceScale = 6
	MaxRateScale  = 4
	MaxBillScale  = MaxPriceScale + MaxRateScale + 2
)

var (
	hundred = decimal.NewFromInt(100)
	maxRate = decimal.NewFromInt(100000)
)

// FitsScale reports whether d has no more than places decimal places.
// Trailing zeros do not count: "2.500" fits a scale of 1.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// Compute turns a sequence of line items into a bill.  Subtotal is the sum
// of the line totals, tax is subtotal × rate / 100 and the total is their
// sum.  No rounding is applied.
func Compute(items []model.LineItem, taxRatePercent decimal.Decimal) model.Bill {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
	}
	tax := subtotal.Mul(taxRatePercent).Div(hundred)
	return model.Bill{
		Subtotal:     subtotal,
		Tax:          tax,
		TotalWithTax: subtotal.Add(tax),
	}
}

// LineTotal returns unitPrice × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// CheckRate rejects negative rates, rates of 100000 percent or more and
// rates with more than MaxRateScale decimal places.
func CheckRate(r decimal.Decimal) error {
	switch {
	case r.IsNegative():
		return fmt.Errorf("tax rate %s must not be negative", r)
	case r.GreaterThanOrEqual(maxRate):
		return fmt.Errorf("tax rate %s must be below %s", r, maxRate)
	case !FitsScale(r, MaxRateScale):
		return fmt.Errorf("tax rate %s has more than %d decimal places", r, MaxRateScale)
	}
	return nil
}

// ParseRate parses a tax rate given in percent, e.g. "5.25", and applies
// CheckRate.
func ParseRate(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", s, err)
	}
	if err := CheckRate(r); err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", s, err)
	}
	return r, nil
}
