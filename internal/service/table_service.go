package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/repository"
)

// CloseOutcome tells the caller which branch of Close ran.
type CloseOutcome string

const (
	// CloseSettled: the linked order was completed and the table freed.
	CloseSettled CloseOutcome = "closed"
	// CloseMarkedAvailable: no order was linked; the table was set Available.
	CloseMarkedAvailable CloseOutcome = "marked_available"
	// CloseAlreadyAvailable: nothing to do.
	CloseAlreadyAvailable CloseOutcome = "already_available"
)

// Message is the human readable text returned with the outcome.
func (o CloseOutcome) Message() string {
	switch o {
	case CloseSettled:
		return "Table closed and order completed"
	case CloseMarkedAvailable:
		return "Table marked as Available"
	default:
		return "Table is already available"
	}
}

// TableService owns a table's status and its link to the active order.
// While a table is Occupied its ActiveOrderID names an In Progress order;
// an Available table carries no link.
type TableService struct {
	tables TableStore
	orders *OrderService
	log    zerolog.Logger
}

// NewTableService constructs a TableService.
func NewTableService(tables TableStore, orders *OrderService, log zerolog.Logger) *TableService {
	if tables == nil || orders == nil {
		panic("nil dependency passed to NewTableService")
	}
	return &TableService{tables: tables, orders: orders, log: log}
}

// Provision registers a new Available table.
func (s *TableService) Provision(ctx context.Context, number, seats int) (*model.Table, error) {
	if number < 1 {
		return nil, apperr.Validation("table_number must be a positive integer")
	}
	if seats < 1 {
		return nil, apperr.Validation("seat_count must be a positive integer")
	}
	t := &model.Table{TableNumber: number, SeatCount: seats, Status: model.TableAvailable}
	if err := s.tables.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrTableNumberExists) {
			return nil, apperr.Conflict("table number %d already exists", number)
		}
		return nil, err
	}
	return t, nil
}

// Get loads a table or returns an ErrNotFound.
func (s *TableService) Get(ctx context.Context, tableID uint64) (*model.Table, error) {
	t, err := s.tables.GetByID(ctx, tableID)
	if err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return nil, apperr.NotFound("table %d not found", tableID)
		}
		return nil, err
	}
	return t, nil
}

// List returns every table ordered by number.
func (s *TableService) List(ctx context.Context) ([]model.TableView, error) {
	return s.tables.List(ctx)
}

func (s *TableService) write(ctx context.Context, t *model.Table, status string, orderID *uint64) error {
	if err := s.tables.UpdateState(ctx, t.ID, status, orderID); err != nil {
		if errors.Is(err, repository.ErrTableNotFound) {
			return apperr.NotFound("table %d not found", t.ID)
		}
		return err
	}
	t.Status = status
	t.ActiveOrderID = orderID
	return nil
}

// LinkOrder marks the table Occupied by orderID.
func (s *TableService) LinkOrder(ctx context.Context, tableID, orderID uint64) (*model.Table, error) {
	t, err := s.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}
	id := orderID
	if err := s.write(ctx, t, model.TableOccupied, &id); err != nil {
		return nil, err
	}
	return t, nil
}

// ReleaseOrder frees the table when it still links orderID and leaves it
// alone otherwise.  A missing table is logged and reported as nil.
func (s *TableService) ReleaseOrder(ctx context.Context, tableID, orderID uint64) (*model.Table, error) {
	t, err := s.Get(ctx, tableID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn().Uint64("table_id", tableID).Uint64("order_id", orderID).
				Msg("table of completed order not found")
			return nil, nil
		}
		return nil, err
	}
	if t.ActiveOrderID == nil || *t.ActiveOrderID != orderID {
		return t, nil
	}
	if err := s.write(ctx, t, model.TableAvailable, nil); err != nil {
		return nil, err
	}
	return t, nil
}

// SetStatus is the staff override.  It is checked against the order
// store: an attached orderRef must name an In Progress order of this table
// that no other table links, Available never carries an order, and a table
// holding an open order cannot be forced Available (Close settles it).
func (s *TableService) SetStatus(ctx context.Context, tableID uint64, status string, orderRef *uint64) (*model.Table, error) {
	if !model.ValidTableStatus(status) {
		return nil, apperr.Validation("status must be one of Available, Booked, Occupied")
	}
	t, err := s.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}

	if status == model.TableAvailable {
		if orderRef != nil {
			return nil, apperr.Validation("an Available table cannot carry an order")
		}
		if t.ActiveOrderID != nil {
			o, err := s.orders.Get(ctx, *t.ActiveOrderID)
			switch {
			case err == nil && o.IsOpen():
				return nil, apperr.InvalidState("table %d still holds open order %d; close the table instead", t.TableNumber, o.ID)
			case err != nil && !errors.Is(err, apperr.ErrNotFound):
				return nil, err
			}
			s.log.Warn().Uint64("table_id", t.ID).Uint64("order_id", *t.ActiveOrderID).
				Msg("clearing stale order link on status override")
		}
		if err := s.write(ctx, t, model.TableAvailable, nil); err != nil {
			return nil, err
		}
		return t, nil
	}

	link := t.ActiveOrderID
	if orderRef != nil {
		if t.ActiveOrderID != nil && *t.ActiveOrderID != *orderRef {
			return nil, apperr.InvalidState("table %d is already linked to order %d", t.TableNumber, *t.ActiveOrderID)
		}
		o, err := s.orders.Get(ctx, *orderRef)
		if err != nil {
			return nil, err
		}
		if !o.IsOpen() {
			return nil, apperr.InvalidState("order %d is %s", o.ID, o.Status)
		}
		if o.TableID != t.ID {
			return nil, apperr.Validation("order %d belongs to another table", o.ID)
		}
		other, err := s.tables.FindByActiveOrder(ctx, o.ID)
		switch {
		case err == nil && other.ID != t.ID:
			return nil, apperr.InvalidState("order %d is already linked to table %d", o.ID, other.TableNumber)
		case err != nil && !errors.Is(err, repository.ErrTableNotFound):
			return nil, err
		}
		id := o.ID
		link = &id
	}
	if err := s.write(ctx, t, status, link); err != nil {
		return nil, err
	}
	return t, nil
}

// Close settles the table.  A linked order is completed with
// paymentMethod and the link cleared; an order that has disappeared or was
// already completed elsewhere is logged and the table freed anyway.  The
// returned order is the one this call completed, or nil when it completed
// none.
func (s *TableService) Close(ctx context.Context, tableID uint64, paymentMethod string) (*model.Table, CloseOutcome, *model.Order, error) {
	t, err := s.Get(ctx, tableID)
	if err != nil {
		return nil, "", nil, err
	}

	if t.ActiveOrderID == nil {
		if t.Status == model.TableAvailable {
			return t, CloseAlreadyAvailable, nil, nil
		}
		if err := s.write(ctx, t, model.TableAvailable, nil); err != nil {
			return nil, "", nil, err
		}
		return t, CloseMarkedAvailable, nil, nil
	}

	orderID := *t.ActiveOrderID
	settled, changed, err := s.orders.settle(ctx, orderID, paymentMethod)
	switch {
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return nil, "", nil, err
	case err != nil:
		s.log.Warn().Uint64("table_id", t.ID).Uint64("order_id", orderID).
			Msg("linked order missing while closing table; freeing table")
		settled = nil
	case !changed:
		s.log.Warn().Uint64("table_id", t.ID).Uint64("order_id", orderID).
			Str("payment_method", settled.PaymentMethod).
			Msg("linked order already completed; freeing table")
		settled = nil
	}
	if err := s.write(ctx, t, model.TableAvailable, nil); err != nil {
		return nil, "", nil, err
	}
	return t, CloseSettled, settled, nil
}
