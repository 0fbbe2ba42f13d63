// Package ledger accumulates line items into an order.  The ledger is
// append-only: items are concatenated in the order they arrive and never
// merged, so two additions of the same dish produce two entries.  It does
// not touch the bill; callers recompute it with the billing package.
package ledger

import (
	"strings"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/billing"
	"github.com/iliyamo/restaurant-pos/internal/model"
)

// Normalize trims names and fills in line totals that the caller left at
// zero.  It returns a new slice and leaves the input untouched.
func Normalize(items []model.LineItem) []model.LineItem {
	out := make([]model.LineItem, len(items))
	for i, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.LineTotal.IsZero() && it.Quantity > 0 {
			it.LineTotal = billing.LineTotal(it.UnitPrice, it.Quantity)
		}
		out[i] = it
	}
	return out
}

// Validate checks that items is non-empty and that every item is well
// formed: a name, quantity ≥ 1, a unit price ≥ 0 with at most
// billing.MaxPriceScale decimal places and a line total equal to unit
// price × quantity.
func Validate(items []model.LineItem) error {
	if len(items) == 0 {
		return apperr.Validation("items are required and cannot be empty")
	}
	for i, it := range items {
		if it.Name == "" {
			return apperr.Validation("item %d: name is required", i)
		}
		if it.Quantity < 1 {
			return apperr.Validation("item %d (%s): quantity must be at least 1", i, it.Name)
		}
		if it.UnitPrice.IsNegative() {
			return apperr.Validation("item %d (%s): unit price must not be negative", i, it.Name)
		}
		if !billing.FitsScale(it.UnitPrice, billing.MaxPriceScale) {
			return apperr.Validation("item %d (%s): unit price %s has more than %d decimal places",
				i, it.Name, it.UnitPrice, billing.MaxPriceScale)
		}
		if want := billing.LineTotal(it.UnitPrice, it.Quantity); !it.LineTotal.Equal(want) {
			return apperr.Validation("item %d (%s): line total %s does not equal %s × %d",
				i, it.Name, it.LineTotal, it.UnitPrice, it.Quantity)
		}
	}
	return nil
}

// Append validates newItems and concatenates them onto order.Items.  The
// order is left unchanged when validation fails.
func Append(order *model.Order, newItems []model.LineItem) error {
	if err := Validate(newItems); err != nil {
		return err
	}
	merged := make([]model.LineItem, 0, len(order.Items)+len(newItems))
	merged = append(merged, order.Items...)
	merged = append(merged, newItems...)
	order.Items = merged
	return nil
}
