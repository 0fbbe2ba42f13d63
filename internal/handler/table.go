package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-pos/internal/service"
)

// TableHandler serves /v1/tables.
type TableHandler struct {
	tables *service.TableService
	coord  *service.Coordinator
	log    zerolog.Logger
}

// NewTableHandler panics if a dependency is nil.
func NewTableHandler(tables *service.TableService, coord *service.Coordinator, log zerolog.Logger) *TableHandler {
	if tables == nil || coord == nil {
		panic("nil service passed to NewTableHandler")
	}
	return &TableHandler{tables: tables, coord: coord, log: log}
}

type createTableReq struct {
	TableNumber int `json:"table_number"`
	SeatCount   int `json:"seat_count"`
}

type updateTableReq struct {
	Status  string  `json:"status"`
	OrderID *uint64 `json:"order_id"`
}

type closeTableReq struct {
	PaymentMethod string `json:"payment_method"`
}

// Create provisions a table.  POST /v1/tables
func (h *TableHandler) Create(c echo.Context) error {
	var req createTableReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.TableNumber == 0 {
		return badRequest(c, "table_number is required")
	}
	if req.SeatCount == 0 {
		req.SeatCount = 4
	}
	t, err := h.tables.Provision(c.Request().Context(), req.TableNumber, req.SeatCount)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusCreated, "Table added!", t)
}

// List returns every table with the linked order's customer name.
// GET /v1/tables
func (h *TableHandler) List(c echo.Context) error {
	tables, err := h.tables.List(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "", tables)
}

// Get returns one table.  GET /v1/tables/:id
func (h *TableHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	t, err := h.tables.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "", t)
}

// Update applies the staff status override.  PUT /v1/tables/:id
func (h *TableHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req updateTableReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	t, err := h.coord.SetTableStatus(c.Request().Context(), id, strings.TrimSpace(req.Status), req.OrderID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "Table updated!", t)
}

// Close settles the table's order and frees the table.
// PATCH /v1/tables/:id/close
func (h *TableHandler) Close(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return writeError(c, h.log, err)
	}
	var req closeTableReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	t, outcome, err := h.coord.CloseTable(c.Request().Context(), id, strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": outcome.Message(),
		"outcome": outcome,
		"data":    t,
	})
}
