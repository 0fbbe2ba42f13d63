package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"
)

// OrderLogFile is the file the consumer appends to inside its directory.
const OrderLogFile = "orders.log"

// Consumer listens on the order queues and appends one line per event to
// <dir>/orders.log.
type Consumer struct {
    url string
    dir string
    log zerolog.Logger

    mu sync.Mutex // serialises writes to the log file
}

// NewConsumer returns a Consumer writing into dir ("logs" when empty).
func NewConsumer(url, dir string, log zerolog.Logger) *Consumer {
    if url == "" {
        url = DefaultURL
    }
    if dir == "" {
        dir = "logs"
    }
    return &Consumer{url: url, dir: dir, log: log}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  It runs
// a reconnect loop with exponential backoff capped at 30s, so a broker
// outage never stops the server.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn().Err(err).Dur("retry_in", backoff).Msg("order-consumer: failed to dial broker")
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn().Err(err).Msg("order-consumer: consume loop ended; reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn().Err(err).Msg("order-consumer: set QoS failed")
    }

    merged := make(chan amqp.Delivery)
    var wg sync.WaitGroup
    for _, q := range Queues {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        wg.Add(1)
        go func(msgs <-chan amqp.Delivery) {
            defer wg.Done()
            for d := range msgs {
                select {
                case merged <- d:
                case <-ctx.Done():
                    return
                }
            }
        }(msgs)
    }
    go func() {
        wg.Wait()
        close(merged)
    }()

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-merged:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.HandleMessage(d.Body); err != nil {
                c.log.Error().Err(err).Str("queue", d.RoutingKey).Msg("order-consumer: handle message failed")
                _ = d.Nack(false, false) // reject, do not requeue
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// HandleMessage decodes one OrderEvent and appends it to the order log.
func (c *Consumer) HandleMessage(body []byte) error {
    var ev OrderEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.OrderID == 0 || ev.Type == "" {
        return errors.New("event missing order_id or type")
    }
    c.mu.Lock()
    defer c.mu.Unlock()
    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, OrderLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders an event as a single human-friendly log line.
func FormatLine(ev OrderEvent) string {
    return fmt.Sprintf("[%s] %s | order_id=%d | table_id=%d | customer=%q | status=%q | payment=%q | items=%d | total=%s | event_id=%s\n",
        ev.OccurredAt, ev.Type, ev.OrderID, ev.TableID, ev.Customer, ev.Status, ev.PaymentMethod,
        ev.ItemCount, ev.TotalWithTax.StringFixed(2), ev.EventID)
}
