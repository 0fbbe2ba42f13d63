package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/service"
)

// Bounds of GET /v1/orders?limit=.
const (
	defaultOrderLimit = 100
	maxOrderLimit     = 500
)

// OrderHandler serves /v1/orders.
type OrderHandler struct {
	orders  *service.OrderService
	coord   *service.Coordinator
	taxRate decimal.Decimal
	log     zerolog.Logger
}

// NewOrderHandler panics if a dependency is nil.  taxRate is the percent
// applied to every bill.
func NewOrderHandler(orders *service.OrderService, coord *service.Coordinator, taxRate decimal.Decimal, log zerolog.Logger) *OrderHandler {
	if orders == nil || coord == nil {
		panic("nil service passed to NewOrderHandler")
	}
	return &OrderHandler{orders: orders, coord: coord, taxRate: taxRate, log: log}
}

// clientBills is the bill a client may send along with items.  The server
// recomputes the bill; the client copy is only checked for shape.
type clientBills struct {
	Total        *decimal.Decimal `json:"total"`
	Tax          *decimal.Decimal `json:"tax"`
	TotalWithTax *decimal.Decimal `json:"total_with_tax"`
}

func (b *clientBills) check() error {
	if b == nil {
		return nil
	}
	if b.Total == nil || b.Tax == nil || b.TotalWithTax == nil {
		return apperr.Validation("bills needs total, tax and total_with_tax")
	}
	if b.Total.IsNegative() || b.Tax.IsNegative() || b.TotalWithTax.IsNegative() {
		return apperr.Validation("bill amounts must not be negative")
	}
	if !b.Total.Add(*b.Tax).Round(2).Equal(b.TotalWithTax.Round(2)) {
		return apperr.Validation("bills.total + bills.tax must equal bills.total_with_tax")
	}
	return nil
}

type startOrderReq struct {
	TableID  uint64                `json:"table_id"`
	Customer model.CustomerDetails `json:"customer"`
	Items    []model.LineItem      `json:"items"`
	Bills    *clientBills          `json:"bills"`
}

type updateOrderReq struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
}

type addItemsReq struct {
	Items []model.LineItem `json:"items"`
	Bills *clientBills     `json:"bills"`
}

// Create starts an order on a table, or appends to the table's open order.
// The response is 201 when an order was created and 200 when items were
// appended.  POST /v1/orders
func (h *OrderHandler) Create(c echo.Context) error {
	var req startOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.TableID == 0 {
		return badRequest(c, "table_id is required")
	}
	if err := req.Bills.check(); err != nil {
		return writeError(c, h.log, err)
	}
	o, created, err := h.coord.StartOrAppendOrder(c.Request().Context(), req.TableID, req.Customer, req.Items, h.taxRate)
	if err != nil {
		return writeError(c, h.log, err)
	}
	if created {
		return respond(c, http.StatusCreated, "Order created!", o)
	}
	return respond(c, http.StatusOK, "Items added to order", o)
}

// AddItems appends items to a specific order.  PATCH /v1/orders/:id/items
func (h *OrderHandler) AddItems(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req addItemsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := req.Bills.check(); err != nil {
		return writeError(c, h.log, err)
	}
	o, err := h.coord.AppendToOrder(c.Request().Context(), id, req.Items, h.taxRate)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "Items added to order", o)
}

// Update sets an order's status.  Completing it frees the table it holds.
// PUT /v1/orders/:id
func (h *OrderHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req updateOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		return badRequest(c, "status is required")
	}
	o, err := h.coord.UpdateOrderStatus(c.Request().Context(), id, status, strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "Order updated", o)
}

// Get returns one order.  GET /v1/orders/:id
func (h *OrderHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	o, err := h.orders.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "", o)
}

// List returns recent orders, newest first.  GET /v1/orders?limit=
func (h *OrderHandler) List(c echo.Context) error {
	limit := defaultOrderLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = min(n, maxOrderLimit)
	}
	orders, err := h.orders.List(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "", orders)
}
