package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/model"
)

func li(name, price string, qty int) model.LineItem {
	return model.LineItem{Name: name, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestAppendKeepsPrefixAndOrder(t *testing.T) {
	order := &model.Order{Items: Normalize([]model.LineItem{li("Soup", "10", 2)})}
	prev := append([]model.LineItem(nil), order.Items...)

	newItems := Normalize([]model.LineItem{li("Bread", "5", 1), li("Soup", "10", 2)})
	if err := Append(order, newItems); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(order.Items) != 3 {
		t.Fatalf("len = %d, want 3", len(order.Items))
	}
	if order.Items[0].Name != prev[0].Name {
		t.Fatalf("prefix changed: %+v", order.Items[0])
	}
	if order.Items[1].Name != "Bread" || order.Items[2].Name != "Soup" {
		t.Fatalf("order not preserved: %+v", order.Items)
	}
	// the same dish twice stays two entries
	if order.Items[0].Name != order.Items[2].Name {
		t.Fatal("expected duplicate entries to be kept apart")
	}
}

func TestAppendRejects(t *testing.T) {
	tests := []struct {
		name  string
		items []model.LineItem
	}{
		{"empty", nil},
		{"no name", Normalize([]model.LineItem{li("  ", "1", 1)})},
		{"zero quantity", Normalize([]model.LineItem{li("Soup", "1", 0)})},
		{"negative price", Normalize([]model.LineItem{li("Soup", "-1", 1)})},
		{"price below a millionth", Normalize([]model.LineItem{li("Soup", "0.0000001", 1)})},
		{"wrong line total", []model.LineItem{{
			Name: "Soup", UnitPrice: decimal.NewFromInt(10), Quantity: 2, LineTotal: decimal.NewFromInt(25),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &model.Order{Items: Normalize([]model.LineItem{li("Tea", "2", 1)})}
			err := Append(order, tt.items)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
			if len(order.Items) != 1 {
				t.Fatalf("order mutated on failure: %+v", order.Items)
			}
		})
	}
}

func TestValidatePriceScale(t *testing.T) {
	// Trailing zeros beyond the limit are not extra precision.
	for _, price := range []string{"9.99", "0.000001", "2.500000000"} {
		if err := Validate(Normalize([]model.LineItem{li("Soup", price, 3)})); err != nil {
			t.Errorf("%s: %v", price, err)
		}
	}
	if err := Validate(Normalize([]model.LineItem{li("Soup", "1.1234567", 1)})); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("seven decimal places: err = %v", err)
	}
}

func TestNormalizeFillsLineTotal(t *testing.T) {
	out := Normalize([]model.LineItem{li(" Soup ", "10.5", 3)})
	if out[0].Name != "Soup" {
		t.Fatalf("name = %q", out[0].Name)
	}
	if !out[0].LineTotal.Equal(decimal.RequireFromString("31.5")) {
		t.Fatalf("line total = %s", out[0].LineTotal)
	}
}
