package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/apperr"
	"github.com/iliyamo/restaurant-pos/internal/billing"
	"github.com/iliyamo/restaurant-pos/internal/model"
	"github.com/iliyamo/restaurant-pos/internal/repository"
)

// MenuStore is the menu persistence used by MenuHandler.  Both the MySQL
// and the in-memory menu repositories satisfy it, and it doubles as the
// coordinator's dish catalog.
type MenuStore interface {
	GetDishByID(ctx context.Context, id uint64) (*model.Dish, error)
	CreateCategory(ctx context.Context, c *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id uint64) (*model.Category, error)
	CreateDish(ctx context.Context, d *model.Dish) error
	ListDishes(ctx context.Context, categoryID *uint64) ([]model.Dish, error)
}

// MenuHandler serves /v1/categories and /v1/dishes.
type MenuHandler struct {
	menu MenuStore
	log  zerolog.Logger
}

func NewMenuHandler(menu MenuStore, log zerolog.Logger) *MenuHandler {
	return &MenuHandler{menu: menu, log: log}
}

type createCategoryReq struct {
	Name string `json:"name"`
}

type createDishReq struct {
	CategoryID  uint64           `json:"category_id"`
	Name        string           `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"`
}

func menuError(err error) error {
	switch {
	case errors.Is(err, repository.ErrCategoryExists):
		return apperr.Conflict("category already exists")
	case errors.Is(err, repository.ErrDishExists):
		return apperr.Conflict("dish already exists in category")
	case errors.Is(err, repository.ErrCategoryNotFound):
		return apperr.NotFound("category not found")
	}
	return err
}

// CreateCategory POST /v1/categories
func (h *MenuHandler) CreateCategory(c echo.Context) error {
	var req createCategoryReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	cat := model.Category{Name: name}
	if err := h.menu.CreateCategory(c.Request().Context(), &cat); err != nil {
		return writeError(c, h.log, menuError(err))
	}
	return respond(c, http.StatusCreated, "Category added!", cat)
}

// ListCategories GET /v1/categories
func (h *MenuHandler) ListCategories(c echo.Context) error {
	cats, err := h.menu.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "", cats)
}

// CreateDish adds a dish to an existing category.  POST /v1/dishes
func (h *MenuHandler) CreateDish(c echo.Context) error {
	var req createDishReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	name := strings.TrimSpace(req.Name)
	switch {
	case req.CategoryID == 0:
		return badRequest(c, "category_id is required")
	case name == "":
		return badRequest(c, "name is required")
	case req.Price == nil:
		return badRequest(c, "price is required")
	case req.Price.IsNegative():
		return badRequest(c, "price must not be negative")
	case !billing.FitsScale(*req.Price, billing.MaxPriceScale):
		return badRequest(c, fmt.Sprintf("price must have at most %d decimal places", billing.MaxPriceScale))
	}
	ctx := c.Request().Context()
	if _, err := h.menu.GetCategoryByID(ctx, req.CategoryID); err != nil {
		return writeError(c, h.log, menuError(err))
	}
	d := model.Dish{
		CategoryID:  req.CategoryID,
		Name:        name,
		Description: req.Description,
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
	}
	if err := h.menu.CreateDish(ctx, &d); err != nil {
		return writeError(c, h.log, menuError(err))
	}
	return respond(c, http.StatusCreated, "Dish added!", d)
}

// ListDishes GET /v1/dishes?category=
func (h *MenuHandler) ListDishes(c echo.Context) error {
	var categoryID *uint64
	if s := c.QueryParam("category"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil || id == 0 {
			return badRequest(c, "invalid category")
		}
		categoryID = &id
	}
	dishes, err := h.menu.ListDishes(c.Request().Context(), categoryID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return respond(c, http.StatusOK, "", dishes)
}
