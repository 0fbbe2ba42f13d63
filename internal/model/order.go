package model

import (
    "time"

    "github.com/shopspring/decimal"
)

func init() {
    // Money is rendered as plain JSON numbers (21.05, not "21.05").
    decimal.MarshalJSONWithoutQuotes = true
}

// Order status values.  In Progress is initial and Completed is terminal.
const (
    OrderInProgress = "In Progress"
    OrderCompleted  = "Completed"
)

// ValidOrderStatus reports whether s is one of the known order statuses.
func ValidOrderStatus(s string) bool {
    return s == OrderInProgress || s == OrderCompleted
}

// Defaults applied to orders created without explicit details.
const (
    DefaultCustomerName  = "Walk-in Customer"
    DefaultCustomerPhone = "N/A"
    DefaultGuests        = 1
    PaymentPending       = "Pending"
    DefaultPaymentMethod = "Cash"
)

// CustomerDetails describes who the order is for.
type CustomerDetails struct {
    Name   string `json:"name"`
    Phone  string `json:"phone"`
    Guests int    `json:"guests"`
}

// WithDefaults fills empty fields with the walk-in defaults.  Guests is only
// defaulted when zero; a negative count is left for validation to reject.
func (c CustomerDetails) WithDefaults() CustomerDetails {
    if c.Name == "" {
        c.Name = DefaultCustomerName
    }
    if c.Phone == "" {
        c.Phone = DefaultCustomerPhone
    }
    if c.Guests == 0 {
        c.Guests = DefaultGuests
    }
    return c
}

// LineItem is one priced, quantified entry in an order.  LineTotal must
// always equal UnitPrice × Quantity.
type LineItem struct {
    DishID    *uint64         `json:"dish_id,omitempty"`
    Name      string          `json:"name"`
    UnitPrice decimal.Decimal `json:"unit_price"`
    Quantity  int             `json:"quantity"`
    LineTotal decimal.Decimal `json:"line_total"`
}

// Bill is the derived money snapshot of an order.  It is recomputed from
// the items after every item mutation and never edited on its own.
type Bill struct {
    Subtotal     decimal.Decimal `json:"subtotal"`
    Tax          decimal.Decimal `json:"tax"`
    TotalWithTax decimal.Decimal `json:"total_with_tax"`
}

// Order is a customer's accumulating purchase against one table.  Rows live
// in `orders`; items live in `order_items` ordered by position.
//
// Fields:
//  ID             – primary key identifier.
//  TableID        – table the order was opened on; immutable.
//  Customer       – customer details with walk-in defaults.
//  Status         – In Progress or Completed.
//  Items          – line items in insertion order.
//  Bill           – subtotal, tax and total computed from Items.
//  TaxRatePercent – rate used for the current bill.
//  PaymentMethod  – "Pending" until the order is completed.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
//  CompletedAt    – when the order was completed (nil while open).
type Order struct {
    ID             uint64          `json:"id"`
    TableID        uint64          `json:"table_id"`
    Customer       CustomerDetails `json:"customer"`
    Status         string          `json:"status"`
    Items          []LineItem      `json:"items"`
    Bill           Bill            `json:"bill"`
    TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
    PaymentMethod  string          `json:"payment_method"`
    CreatedAt      time.Time       `json:"created_at"`
    UpdatedAt      time.Time       `json:"updated_at"`
    CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// IsOpen reports whether items may still be added to the order.
func (o *Order) IsOpen() bool { return o.Status == OrderInProgress }

// Clone returns a deep copy so callers can mutate the result without
// touching the original's item slice.
func (o *Order) Clone() *Order {
    cp := *o
    cp.Items = make([]LineItem, len(o.Items))
    copy(cp.Items, o.Items)
    if o.CompletedAt != nil {
        t := *o.CompletedAt
        cp.CompletedAt = &t
    }
    return &cp
}
