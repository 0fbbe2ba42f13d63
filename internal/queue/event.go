// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the consumer of those messages.
package queue

import (
    "time"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"
)

// Routing keys (queue names) for order lifecycle events.
const (
    OrderCreated    = "order.created"
    OrderItemsAdded = "order.items_added"
    OrderCompleted  = "order.completed"
)

// Queues lists every queue the publisher and consumer declare.
var Queues = []string{OrderCreated, OrderItemsAdded, OrderCompleted}

// OrderEvent is published after an order changes.  It carries enough for
// downstream consumers (kitchen display, order log, analytics) to act
// without querying the primary database.
type OrderEvent struct {
    EventID       string          `json:"event_id"`
    Type          string          `json:"type"`
    OrderID       uint64          `json:"order_id"`
    TableID       uint64          `json:"table_id"`
    TableNumber   int             `json:"table_number,omitempty"`
    Customer      string          `json:"customer"`
    Status        string          `json:"status"`
    PaymentMethod string          `json:"payment_method"`
    ItemCount     int             `json:"item_count"`
    Subtotal      decimal.Decimal `json:"subtotal"`
    TotalWithTax  decimal.Decimal `json:"total_with_tax"`
    OccurredAt    string          `json:"occurred_at"`
}

// NewOrderEvent stamps a fresh event id and the current UTC time.
func NewOrderEvent(eventType string) OrderEvent {
    return OrderEvent{
        EventID:    uuid.NewString(),
        Type:       eventType,
        OccurredAt: time.Now().UTC().Format(time.RFC3339),
    }
}
