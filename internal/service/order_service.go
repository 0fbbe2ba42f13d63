package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/billing"
	"github.com/iliyamo/restaurant-pos/internal/ledger"
	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/repository"
)

// OrderService owns an order's status transitions and its item and bill
// state.  In Progress is initial; Completed is terminal and nothing moves
// an order back.
type OrderService struct {
	store OrderStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewOrderService constructs an OrderService over the given store.
func NewOrderService(store OrderStore, log zerolog.Logger) *OrderService {
	if store == nil {
		panic("nil store passed to NewOrderService")
	}
	return &OrderService{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func checkRate(rate decimal.Decimal) error {
	if err := billing.CheckRate(rate); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// Create builds and persists a new In Progress order for tableID.
func (s *OrderService) Create(ctx context.Context, customer model.CustomerDetails, tableID uint64, items []model.LineItem, rate decimal.Decimal) (*model.Order, error) {
	customer = customer.WithDefaults()
	if customer.Guests < 1 {
		return nil, apperr.Validation("guest count must be at least 1")
	}
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	o := &model.Order{
		TableID:        tableID,
		Customer:       customer,
		Status:         model.OrderInProgress,
		Items:          []model.LineItem{},
		TaxRatePercent: rate,
		PaymentMethod:  model.PaymentPending,
	}
	if err := ledger.Append(o, ledger.Normalize(items)); err != nil {
		return nil, err
	}
	o.Bill = billing.Compute(o.Items, rate)
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info().Uint64("order_id", o.ID).Uint64("table_id", tableID).
		Int("items", len(o.Items)).Str("total", o.Bill.TotalWithTax.String()).Msg("order created")
	return o, nil
}

// Get loads an order or returns an ErrNotFound.
func (s *OrderService) Get(ctx context.Context, orderID uint64) (*model.Order, error) {
	o, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	return o, nil
}

// List returns recent orders, newest first.
func (s *OrderService) List(ctx context.Context, limit int) ([]model.Order, error) {
	return s.store.List(ctx, limit)
}

// AddItems appends newItems to an In Progress order and recomputes its
// bill from the full item list.  A Completed order is rejected with
// ErrInvalidState and left untouched.
func (s *OrderService) AddItems(ctx context.Context, orderID uint64, newItems []model.LineItem, rate decimal.Decimal) (*model.Order, error) {
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsOpen() {
		return nil, apperr.InvalidState("cannot add items to order %d: status is %s", orderID, o.Status)
	}
	items := ledger.Normalize(newItems)
	if err := ledger.Append(o, items); err != nil {
		return nil, err
	}
	o.Bill = billing.Compute(o.Items, rate)
	o.TaxRatePercent = rate
	if err := s.store.AppendItems(ctx, o, items); err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotOpen):
			return nil, apperr.InvalidState("cannot add items to order %d: it was completed", orderID)
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	o.UpdatedAt = s.now()
	s.log.Info().Uint64("order_id", o.ID).Int("added", len(items)).
		Int("items", len(o.Items)).Str("total", o.Bill.TotalWithTax.String()).Msg("items appended")
	return o, nil
}

// Complete settles an order with paymentMethod ("Cash" when empty).
// Completing an already Completed order returns it unchanged.
func (s *OrderService) Complete(ctx context.Context, orderID uint64, paymentMethod string) (*model.Order, error) {
	o, _, err := s.settle(ctx, orderID, paymentMethod)
	return o, err
}

// settle is Complete that also reports whether this call moved the order
// to Completed.  It is false when the order was already Completed, even if
// a concurrent writer completed it between the read and the write.
func (s *OrderService) settle(ctx context.Context, orderID uint64, paymentMethod string) (*model.Order, bool, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if o.Status == model.OrderCompleted {
		return o, false, nil
	}
	if paymentMethod == "" {
		paymentMethod = model.DefaultPaymentMethod
	}
	at := s.now()
	if err := s.store.Complete(ctx, orderID, paymentMethod, at); err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotOpen):
			// completed concurrently; report what is stored
			o, err := s.Get(ctx, orderID)
			return o, false, err
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, false, apperr.NotFound("order %d not found", orderID)
		}
		return nil, false, err
	}
	o.Status = model.OrderCompleted
	o.PaymentMethod = paymentMethod
	o.CompletedAt = &at
	o.UpdatedAt = at
	s.log.Info().Uint64("order_id", o.ID).Str("payment_method", paymentMethod).
		Str("total", o.Bill.TotalWithTax.String()).Msg("order completed")
	return o, true, nil
}
