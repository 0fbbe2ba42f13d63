package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/lock"
	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/queue"
	"github.com/iliyamo/restaurant-pos/internal/repository"
)

var rate = decimal.RequireFromString("5.25")

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	db     *repository.MemoryDB
	orders *OrderService
	tables *TableService
	coord  *Coordinator
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repository.NewMemoryDB()
	log := zerolog.Nop()
	orders := NewOrderService(db.Orders(), log)
	tables := NewTableService(db.Tables(), orders, log)
	events := &recordingPublisher{}
	coord := NewCoordinator(tables, orders, db.Menu(), lock.NewLocalLocker(), events, log)
	return &fixture{db: db, orders: orders, tables: tables, coord: coord, events: events}
}

func item(name, price string, qty int) model.LineItem {
	return model.LineItem{Name: name, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func mustDec(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestScenariosEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	table, err := f.tables.Provision(ctx, 5, 4)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	// A: start an order
	order, created, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Soup", "10", 2)}, rate)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !created {
		t.Fatal("expected a new order")
	}
	mustDec(t, order.Bill.Subtotal, "20")
	mustDec(t, order.Bill.Tax, "1.05")
	mustDec(t, order.Bill.TotalWithTax, "21.05")
	if order.Customer.Name != model.DefaultCustomerName || order.Customer.Guests != 1 {
		t.Fatalf("customer defaults not applied: %+v", order.Customer)
	}
	got, _ := f.tables.Get(ctx, table.ID)
	if got.Status != model.TableOccupied || got.ActiveOrderID == nil || *got.ActiveOrderID != order.ID {
		t.Fatalf("table after start = %+v", got)
	}

	// B: the same call now appends
	order, created, err = f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Bread", "5", 1)}, rate)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if created {
		t.Fatal("expected append, got create")
	}
	if len(order.Items) != 2 || order.Items[0].Name != "Soup" || order.Items[1].Name != "Bread" {
		t.Fatalf("items = %+v", order.Items)
	}
	mustDec(t, order.Bill.Subtotal, "25")
	mustDec(t, order.Bill.Tax, "1.3125")
	mustDec(t, order.Bill.TotalWithTax, "26.3125")

	// C: close
	closed, outcome, err := f.coord.CloseTable(ctx, table.ID, "Cash")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if outcome != CloseSettled {
		t.Fatalf("outcome = %s", outcome)
	}
	if closed.Status != model.TableAvailable || closed.ActiveOrderID != nil {
		t.Fatalf("table after close = %+v", closed)
	}
	stored, err := f.orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.OrderCompleted || stored.PaymentMethod != "Cash" || stored.CompletedAt == nil {
		t.Fatalf("order after close = %+v", stored)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("stored items = %d", len(stored.Items))
	}

	// D: duplicate table number
	if _, err := f.tables.Provision(ctx, 5, 2); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate provision err = %v", err)
	}

	want := []string{queue.OrderCreated, queue.OrderItemsAdded, queue.OrderCompleted}
	if types := f.events.types(); len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	} else {
		for i := range want {
			if types[i] != want[i] {
				t.Fatalf("events = %v, want %v", types, want)
			}
		}
	}
}

func TestAddItemsToCompletedOrderFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 1, 2)
	order, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.orders.Complete(ctx, order.ID, ""); err != nil {
		t.Fatal(err)
	}

	_, err = f.coord.AppendToOrder(ctx, order.ID, []model.LineItem{item("Cake", "4", 1)}, rate)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	stored, _ := f.orders.Get(ctx, order.ID)
	if len(stored.Items) != 1 {
		t.Fatalf("completed order mutated: %d items", len(stored.Items))
	}
	mustDec(t, stored.Bill.Subtotal, "3")
	if stored.PaymentMethod != model.DefaultPaymentMethod {
		t.Fatalf("payment = %q, want default", stored.PaymentMethod)
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o, err := f.orders.Create(ctx, model.CustomerDetails{Name: "Ana"}, 1, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	first, err := f.orders.Complete(ctx, o.ID, "Card")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.orders.Complete(ctx, o.ID, "Cash")
	if err != nil {
		t.Fatal(err)
	}
	if second.PaymentMethod != "Card" || !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("second completion changed the order: %+v", second)
	}
	if _, err := f.orders.Complete(ctx, 999, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing order err = %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cases := []struct {
		name     string
		customer model.CustomerDetails
		items    []model.LineItem
		rate     decimal.Decimal
	}{
		{"no items", model.CustomerDetails{}, nil, rate},
		{"negative guests", model.CustomerDetails{Guests: -2}, []model.LineItem{item("Tea", "3", 1)}, rate},
		{"zero quantity", model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 0)}, rate},
		{"negative rate", model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, decimal.NewFromInt(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.orders.Create(ctx, tc.customer, 1, tc.items, tc.rate); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
	if list, _ := f.orders.List(ctx, 0); len(list) != 0 {
		t.Fatalf("invalid orders were persisted: %d", len(list))
	}
}

func TestCloseOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 2, 4)

	_, outcome, err := f.coord.CloseTable(ctx, table.ID, "")
	if err != nil || outcome != CloseAlreadyAvailable {
		t.Fatalf("close available: %s %v", outcome, err)
	}

	if _, err := f.coord.SetTableStatus(ctx, table.ID, model.TableOccupied, nil); err != nil {
		t.Fatal(err)
	}
	closed, outcome, err := f.coord.CloseTable(ctx, table.ID, "")
	if err != nil || outcome != CloseMarkedAvailable || closed.Status != model.TableAvailable {
		t.Fatalf("close occupied without order: %s %+v %v", outcome, closed, err)
	}

	if _, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate); err != nil {
		t.Fatal(err)
	}
	if _, outcome, _ := f.coord.CloseTable(ctx, table.ID, ""); outcome != CloseSettled {
		t.Fatalf("first close = %s", outcome)
	}
	if _, outcome, _ := f.coord.CloseTable(ctx, table.ID, ""); outcome != CloseAlreadyAvailable {
		t.Fatalf("second close = %s", outcome)
	}

	if _, _, err := f.coord.CloseTable(ctx, 12345, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown table err = %v", err)
	}
}

func TestCloseWithMissingOrderFreesTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 3, 4)
	ghost := uint64(777)
	if err := f.db.Tables().UpdateState(ctx, table.ID, model.TableOccupied, &ghost); err != nil {
		t.Fatal(err)
	}
	closed, outcome, err := f.coord.CloseTable(ctx, table.ID, "Cash")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if outcome != CloseSettled || closed.ActiveOrderID != nil || closed.Status != model.TableAvailable {
		t.Fatalf("close = %s %+v", outcome, closed)
	}
	if n := len(f.events.types()); n != 0 {
		t.Fatalf("published %d events for a missing order", n)
	}
}

func TestCloseKeepsEarlierSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 6, 2)
	order, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	// settled by card while the table still links the order
	paid, err := f.orders.Complete(ctx, order.ID, "Card")
	if err != nil {
		t.Fatal(err)
	}

	closed, outcome, err := f.coord.CloseTable(ctx, table.ID, "Cash")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if outcome != CloseSettled || closed.Status != model.TableAvailable || closed.ActiveOrderID != nil {
		t.Fatalf("close = %s %+v", outcome, closed)
	}
	stored, _ := f.orders.Get(ctx, order.ID)
	if stored.PaymentMethod != "Card" || !stored.CompletedAt.Equal(*paid.CompletedAt) {
		t.Fatalf("earlier settlement overwritten: %+v", stored)
	}
	for _, typ := range f.events.types() {
		if typ == queue.OrderCompleted {
			t.Fatalf("events = %v, close completed nothing", f.events.types())
		}
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 8, 4)
	order, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.coord.UpdateOrderStatus(ctx, order.ID, "Cancelled", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown status err = %v", err)
	}
	if _, err := f.coord.UpdateOrderStatus(ctx, 999, model.OrderCompleted, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing order err = %v", err)
	}
	same, err := f.coord.UpdateOrderStatus(ctx, order.ID, model.OrderInProgress, "")
	if err != nil || !same.IsOpen() {
		t.Fatalf("in progress on open order: %+v %v", same, err)
	}

	done, err := f.coord.UpdateOrderStatus(ctx, order.ID, model.OrderCompleted, "Card")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.OrderCompleted || done.PaymentMethod != "Card" {
		t.Fatalf("completed order = %+v", done)
	}
	got, _ := f.tables.Get(ctx, table.ID)
	if got.Status != model.TableAvailable || got.ActiveOrderID != nil {
		t.Fatalf("table still holds the settled order: %+v", got)
	}

	// Completed is terminal; repeating it is a no-op.
	if _, err := f.coord.UpdateOrderStatus(ctx, order.ID, model.OrderInProgress, ""); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("reopen err = %v", err)
	}
	again, err := f.coord.UpdateOrderStatus(ctx, order.ID, model.OrderCompleted, "Cash")
	if err != nil || again.PaymentMethod != "Card" {
		t.Fatalf("second completion: %+v %v", again, err)
	}

	want := []string{queue.OrderCreated, queue.OrderCompleted}
	if types := f.events.types(); len(types) != len(want) || types[0] != want[0] || types[1] != want[1] {
		t.Fatalf("events = %v, want %v", types, want)
	}
}

func TestUpdateOrderStatusLeavesOtherLinkAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 9, 4)
	first, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	// a stale first order is replaced by a second one on the same table
	if _, err := f.orders.Complete(ctx, first.ID, ""); err != nil {
		t.Fatal(err)
	}
	second, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Cake", "4", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.coord.UpdateOrderStatus(ctx, first.ID, model.OrderCompleted, ""); err != nil {
		t.Fatal(err)
	}
	got, _ := f.tables.Get(ctx, table.ID)
	if got.Status != model.TableOccupied || got.ActiveOrderID == nil || *got.ActiveOrderID != second.ID {
		t.Fatalf("table = %+v, want link to %d", got, second.ID)
	}
}

func TestStaleLinkIsHealed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 4, 4)
	first, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	// complete behind the coordinator's back, leaving the link in place
	if _, err := f.orders.Complete(ctx, first.ID, "Cash"); err != nil {
		t.Fatal(err)
	}
	second, created, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Cake", "4", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	if !created || second.ID == first.ID {
		t.Fatalf("expected a fresh order, got %d (created=%v)", second.ID, created)
	}
	got, _ := f.tables.Get(ctx, table.ID)
	if *got.ActiveOrderID != second.ID {
		t.Fatalf("table links %d, want %d", *got.ActiveOrderID, second.ID)
	}
}

func TestConcurrentStartsCreateOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	table, _ := f.tables.Provision(ctx, 9, 8)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
			if err != nil {
				t.Errorf("start: %v", err)
				return
			}
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("created %d orders, want 1", createdCount)
	}
	orders, _ := f.orders.List(ctx, 0)
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if len(orders[0].Items) != n {
		t.Fatalf("items = %d, want %d", len(orders[0].Items), n)
	}
	mustDec(t, orders[0].Bill.Subtotal, "48")
}

func TestDishReferencesAreResolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	menu := f.db.Menu()
	cat := &model.Category{Name: "Soups"}
	if err := menu.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	dish := &model.Dish{CategoryID: cat.ID, Name: "Lentil Soup", Price: decimal.RequireFromString("7.50")}
	if err := menu.CreateDish(ctx, dish); err != nil {
		t.Fatal(err)
	}
	table, _ := f.tables.Provision(ctx, 6, 2)

	order, _, err := f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{},
		[]model.LineItem{{DishID: &dish.ID, Quantity: 2}}, rate)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if order.Items[0].Name != "Lentil Soup" {
		t.Fatalf("name = %q", order.Items[0].Name)
	}
	mustDec(t, order.Items[0].LineTotal, "15")

	unknown := uint64(4242)
	_, _, err = f.coord.StartOrAppendOrder(ctx, table.ID, model.CustomerDetails{},
		[]model.LineItem{{DishID: &unknown, Name: "Mystery", UnitPrice: decimal.NewFromInt(1), Quantity: 1}}, rate)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown dish err = %v", err)
	}
}

func TestSetStatusChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	t1, _ := f.tables.Provision(ctx, 10, 2)
	t2, _ := f.tables.Provision(ctx, 11, 2)
	o1, _, err := f.coord.StartOrAppendOrder(ctx, t1.ID, model.CustomerDetails{}, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}
	other, err := f.orders.Create(ctx, model.CustomerDetails{}, t2.ID, []model.LineItem{item("Tea", "3", 1)}, rate)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		table   uint64
		status  string
		ref     *uint64
		wantErr error
	}{
		{"unknown status", t2.ID, "Dirty", nil, apperr.ErrValidation},
		{"available with order", t2.ID, model.TableAvailable, &other.ID, apperr.ErrValidation},
		{"force available over open order", t1.ID, model.TableAvailable, nil, apperr.ErrInvalidState},
		{"attach order of another table", t2.ID, model.TableOccupied, &o1.ID, apperr.ErrValidation},
		{"replace existing link", t1.ID, model.TableOccupied, &other.ID, apperr.ErrInvalidState},
		{"unknown order", t2.ID, model.TableOccupied, ptr(9999), apperr.ErrNotFound},
		{"unknown table", 9999, model.TableBooked, nil, apperr.ErrNotFound},
		{"booked without order", t2.ID, model.TableBooked, nil, nil},
		{"attach own open order", t2.ID, model.TableOccupied, &other.ID, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.coord.SetTableStatus(ctx, tc.table, tc.status, tc.ref)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	got, _ := f.tables.Get(ctx, t2.ID)
	if got.Status != model.TableOccupied || got.ActiveOrderID == nil || *got.ActiveOrderID != other.ID {
		t.Fatalf("t2 = %+v", got)
	}

	// a completed order cannot be attached
	if _, err := f.orders.Complete(ctx, o1.ID, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.coord.SetTableStatus(ctx, t1.ID, model.TableOccupied, &o1.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("attach completed err = %v", err)
	}
	// but a link to a completed order may be cleared by forcing Available
	if _, err := f.coord.SetTableStatus(ctx, t1.ID, model.TableAvailable, nil); err != nil {
		t.Fatalf("clear stale link: %v", err)
	}
}

func ptr(v uint64) *uint64 { return &v }

type blockingLocker struct{}

func (blockingLocker) Acquire(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, lock.ErrLockTimeout
}

func TestLeaseTimeoutIsReported(t *testing.T) {
	db := repository.NewMemoryDB()
	orders := NewOrderService(db.Orders(), zerolog.Nop())
	tables := NewTableService(db.Tables(), orders, zerolog.Nop())
	c := NewCoordinator(tables, orders, nil, blockingLocker{}, nil, zerolog.Nop())
	c.SetLockWait(10 * time.Millisecond)
	_, _, err := c.CloseTable(context.Background(), 1, "")
	if !errors.Is(err, lock.ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
}
