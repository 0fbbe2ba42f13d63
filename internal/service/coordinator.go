package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/lock"
	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/queue"
	"github.com/iliyamo/restaurant-pos/internal/repository"
)

// DefaultLockWait bounds how long a request waits for a table lease.
const DefaultLockWait = 5 * time.Second

// Coordinator sequences the order and table services for the compound
// operations (start-or-append, append by order, close, status overrides).
// Each runs under the table's lease, writing the order before the table.
type Coordinator struct {
	tables   *TableService
	orders   *OrderService
	menu     DishCatalog
	locker   lock.Locker
	events   EventPublisher
	log      zerolog.Logger
	lockWait time.Duration
}

// NewCoordinator wires a Coordinator.  menu and events may be nil: item
// dish references are then not checked and no events are published.
func NewCoordinator(tables *TableService, orders *OrderService, menu DishCatalog, locker lock.Locker, events EventPublisher, log zerolog.Logger) *Coordinator {
	if tables == nil || orders == nil || locker == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	return &Coordinator{
		tables:   tables,
		orders:   orders,
		menu:     menu,
		locker:   locker,
		events:   events,
		log:      log,
		lockWait: DefaultLockWait,
	}
}

// SetLockWait overrides DefaultLockWait.
func (c *Coordinator) SetLockWait(d time.Duration) {
	if d > 0 {
		c.lockWait = d
	}
}

func (c *Coordinator) withTable(ctx context.Context, tableID uint64, fn func() error) error {
	actx, cancel := context.WithTimeout(ctx, c.lockWait)
	release, err := c.locker.Acquire(actx, lock.TableKey(tableID))
	cancel()
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			c.log.Warn().Uint64("table_id", tableID).Dur("waited", c.lockWait).Msg("table lease not acquired")
		}
		return err
	}
	defer release()
	return fn()
}

// resolveItems checks dish references against the menu and fills a
// missing name or price from the dish.
func (c *Coordinator) resolveItems(ctx context.Context, items []model.LineItem) ([]model.LineItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one item is required")
	}
	out := make([]model.LineItem, len(items))
	copy(out, items)
	if c.menu == nil {
		return out, nil
	}
	for i := range out {
		if out[i].DishID == nil {
			continue
		}
		d, err := c.menu.GetDishByID(ctx, *out[i].DishID)
		if err != nil {
			if errors.Is(err, repository.ErrDishNotFound) {
				return nil, apperr.NotFound("dish %d not found", *out[i].DishID)
			}
			return nil, err
		}
		if out[i].Name == "" {
			out[i].Name = d.Name
		}
		if out[i].UnitPrice.IsZero() {
			out[i].UnitPrice = d.Price
			out[i].LineTotal = decimal.Zero
		}
	}
	return out, nil
}

// StartOrAppendOrder creates an order on a table without one, or appends
// to the order the table already links.  The server decides which; created
// reports the branch taken.  A link to an order that is missing or already
// completed is stale and is replaced by a fresh order.
func (c *Coordinator) StartOrAppendOrder(ctx context.Context, tableID uint64, customer model.CustomerDetails, items []model.LineItem, rate decimal.Decimal) (*model.Order, bool, error) {
	items, err := c.resolveItems(ctx, items)
	if err != nil {
		return nil, false, err
	}
	var (
		order   *model.Order
		created bool
		table   *model.Table
	)
	err = c.withTable(ctx, tableID, func() error {
		t, err := c.tables.Get(ctx, tableID)
		if err != nil {
			return err
		}
		table = t
		if t.ActiveOrderID != nil {
			o, err := c.orders.AddItems(ctx, *t.ActiveOrderID, items, rate)
			if err == nil {
				order = o
				return nil
			}
			if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrInvalidState) {
				return err
			}
			c.log.Warn().Err(err).Uint64("table_id", t.ID).Uint64("order_id", *t.ActiveOrderID).
				Msg("stale order link; starting a new order")
		}
		o, err := c.orders.Create(ctx, customer, t.ID, items, rate)
		if err != nil {
			return err
		}
		if _, err := c.tables.LinkOrder(ctx, t.ID, o.ID); err != nil {
			c.log.Error().Err(err).Uint64("table_id", t.ID).Uint64("order_id", o.ID).
				Msg("order created but table link failed")
			return err
		}
		order, created = o, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		c.publish(ctx, queue.OrderCreated, order, table)
	} else {
		c.publish(ctx, queue.OrderItemsAdded, order, table)
	}
	return order, created, nil
}

// AppendToOrder appends items to orderID under its table's lease.
func (c *Coordinator) AppendToOrder(ctx context.Context, orderID uint64, items []model.LineItem, rate decimal.Decimal) (*model.Order, error) {
	items, err := c.resolveItems(ctx, items)
	if err != nil {
		return nil, err
	}
	current, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var order *model.Order
	err = c.withTable(ctx, current.TableID, func() error {
		o, err := c.orders.AddItems(ctx, orderID, items, rate)
		order = o
		return err
	})
	if err != nil {
		return nil, err
	}
	c.publish(ctx, queue.OrderItemsAdded, order, nil)
	return order, nil
}

// CloseTable settles the table's order and frees the table.
func (c *Coordinator) CloseTable(ctx context.Context, tableID uint64, paymentMethod string) (*model.Table, CloseOutcome, error) {
	var (
		table   *model.Table
		outcome CloseOutcome
		settled *model.Order
	)
	err := c.withTable(ctx, tableID, func() error {
		var err error
		table, outcome, settled, err = c.tables.Close(ctx, tableID, paymentMethod)
		return err
	})
	if err != nil {
		return nil, "", err
	}
	if settled != nil {
		c.publish(ctx, queue.OrderCompleted, settled, table)
	}
	return table, outcome, nil
}

// UpdateOrderStatus sets an order's status under its table's lease.
// In Progress is accepted only while the order is still open and changes
// nothing; Completed is terminal and never reopened.  Completing settles
// the order with paymentMethod and frees the table if it still links the
// order, so the table never points at a settled order.
func (c *Coordinator) UpdateOrderStatus(ctx context.Context, orderID uint64, status, paymentMethod string) (*model.Order, error) {
	if !model.ValidOrderStatus(status) {
		return nil, apperr.Validation("status must be one of %s, %s", model.OrderInProgress, model.OrderCompleted)
	}
	current, err := c.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var (
		order   *model.Order
		table   *model.Table
		changed bool
	)
	err = c.withTable(ctx, current.TableID, func() error {
		if status == model.OrderInProgress {
			o, err := c.orders.Get(ctx, orderID)
			if err != nil {
				return err
			}
			if !o.IsOpen() {
				return apperr.InvalidState("order %d is %s and cannot be reopened", o.ID, o.Status)
			}
			order = o
			return nil
		}
		o, ok, err := c.orders.settle(ctx, orderID, paymentMethod)
		if err != nil {
			return err
		}
		order, changed = o, ok
		t, err := c.tables.ReleaseOrder(ctx, o.TableID, o.ID)
		table = t
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		c.publish(ctx, queue.OrderCompleted, order, table)
	}
	return order, nil
}

// SetTableStatus applies the staff status override under the table's lease.
func (c *Coordinator) SetTableStatus(ctx context.Context, tableID uint64, status string, orderRef *uint64) (*model.Table, error) {
	var table *model.Table
	err := c.withTable(ctx, tableID, func() error {
		t, err := c.tables.SetStatus(ctx, tableID, status, orderRef)
		table = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (c *Coordinator) publish(ctx context.Context, eventType string, o *model.Order, t *model.Table) {
	if c.events == nil || o == nil {
		return
	}
	ev := queue.NewOrderEvent(eventType)
	ev.OrderID = o.ID
	ev.TableID = o.TableID
	if t != nil {
		ev.TableNumber = t.TableNumber
	}
	ev.Customer = o.Customer.Name
	ev.Status = o.Status
	ev.PaymentMethod = o.PaymentMethod
	ev.ItemCount = len(o.Items)
	ev.Subtotal = o.Bill.Subtotal
	ev.TotalWithTax = o.Bill.TotalWithTax
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn().Err(err).Str("type", eventType).Uint64("order_id", o.ID).Msg("event not published")
	}
}
