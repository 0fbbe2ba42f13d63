package queue

import (
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/rs/zerolog"
    "github.com/shopspring/decimal"
)

func TestNewOrderEventStampsIDAndTime(t *testing.T) {
    a := NewOrderEvent(OrderCompleted)
    b := NewOrderEvent(OrderCompleted)
    if a.EventID == "" || a.EventID == b.EventID {
        t.Fatalf("event ids not unique: %q %q", a.EventID, b.EventID)
    }
    if a.Type != OrderCompleted || a.OccurredAt == "" {
        t.Fatalf("unexpected event: %+v", a)
    }
}

func TestHandleMessageAppendsLines(t *testing.T) {
    dir := filepath.Join(t.TempDir(), "logs")
    c := NewConsumer("", dir, zerolog.Nop())

    ev := NewOrderEvent(OrderCompleted)
    ev.OrderID = 7
    ev.TableID = 3
    ev.Customer = "Dana"
    ev.Status = "Completed"
    ev.PaymentMethod = "Card"
    ev.ItemCount = 2
    ev.TotalWithTax = decimal.RequireFromString("26.3125")
    body, err := json.Marshal(ev)
    if err != nil {
        t.Fatal(err)
    }
    for i := 0; i < 2; i++ {
        if err := c.HandleMessage(body); err != nil {
            t.Fatalf("HandleMessage: %v", err)
        }
    }

    data, err := os.ReadFile(filepath.Join(dir, OrderLogFile))
    if err != nil {
        t.Fatal(err)
    }
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    if len(lines) != 2 {
        t.Fatalf("got %d lines, want 2", len(lines))
    }
    for _, want := range []string{"order.completed", "order_id=7", "table_id=3", `customer="Dana"`, "total=26.31"} {
        if !strings.Contains(lines[0], want) {
            t.Errorf("line %q missing %q", lines[0], want)
        }
    }
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
    c := NewConsumer("", t.TempDir(), zerolog.Nop())
    for name, body := range map[string]string{
        "not json":     "{",
        "missing type": `{"order_id":1}`,
        "missing id":   `{"type":"order.created"}`,
    } {
        t.Run(name, func(t *testing.T) {
            if err := c.HandleMessage([]byte(body)); err == nil {
                t.Fatal("expected error")
            }
        })
    }
}
