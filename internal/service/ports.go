// Package service holds the table–order lifecycle: the order lifecycle,
// the table state machine and the coordinator that sequences the two.
// Persistence is reached through the narrow store interfaces below, which
// both the MySQL and the in-memory repositories satisfy.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/queue"
)

// TableStore persists tables.  Satisfied by *repository.TableRepo and
// *repository.MemoryTableRepo.
type TableStore interface {
	Create(ctx context.Context, t *model.Table) error
	GetByID(ctx context.Context, id uint64) (*model.Table, error)
	FindByActiveOrder(ctx context.Context, orderID uint64) (*model.Table, error)
	List(ctx context.Context) ([]model.TableView, error)
	UpdateState(ctx context.Context, id uint64, status string, activeOrderID *uint64) error
}

// OrderStore persists orders.  Satisfied by *repository.OrderRepo and
// *repository.MemoryOrderRepo.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	List(ctx context.Context, limit int) ([]model.Order, error)
	AppendItems(ctx context.Context, o *model.Order, newItems []model.LineItem) error
	Complete(ctx context.Context, id uint64, paymentMethod string, at time.Time) error
}

// DishCatalog is the part of the menu the coordinator needs to validate
// line items.
type DishCatalog interface {
	GetDishByID(ctx context.Context, id uint64) (*model.Dish, error)
}

// EventPublisher sends order events to the broker.  Satisfied by
// *queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.OrderEvent) error
}
