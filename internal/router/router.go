// Package router registers the HTTP routes of the POS API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-pos/internal/config"
	"github.com/iliyamo/restaurant-pos/internal/handler"
	"github.com/iliyamo/restaurant-pos/internal/middleware"
	"github.com/iliyamo/restaurant-pos/internal/model"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Tables *handler.TableHandler
	Orders *handler.OrderHandler
	Menu   *handler.MenuHandler
}

// Options carries what the protected group's middleware needs.  Redis may
// be nil; caching and rate limiting are then disabled.
type Options struct {
	JWTSecret string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       zerolog.Logger
}

// Register mounts every route on e.
func Register(e *echo.Echo, h Handlers, opt Options) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth)

	g := e.Group("/v1",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleStaff),
		middleware.NewTokenBucket(opt.RateLimit, opt.Redis),
		middleware.NewCacheInvalidator(opt.Cache, opt.Redis, opt.Log),
	)
	cached := middleware.NewRedisCache(opt.Cache, opt.Redis)
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	g.GET("/me", h.Auth.Me)

	// ---- Tables ----
	g.GET("/tables", h.Tables.List, cached)
	g.GET("/tables/:id", h.Tables.Get, cached)
	g.POST("/tables", h.Tables.Create, adminOnly)
	g.PUT("/tables/:id", h.Tables.Update)
	g.PATCH("/tables/:id/close", h.Tables.Close)

	// ---- Orders ----
	g.POST("/orders", h.Orders.Create)
	g.GET("/orders", h.Orders.List, cached)
	g.GET("/orders/:id", h.Orders.Get, cached)
	g.PUT("/orders/:id", h.Orders.Update)
	g.PATCH("/orders/:id/items", h.Orders.AddItems)

	// ---- Menu ----
	g.GET("/categories", h.Menu.ListCategories, cached)
	g.POST("/categories", h.Menu.CreateCategory, adminOnly)
	g.GET("/dishes", h.Menu.ListDishes, cached)
	g.POST("/dishes", h.Menu.CreateDish, adminOnly)
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
}

// RegisterAuth registers the session endpoints under /v1/auth.  Register
// checks an ADMIN bearer itself once the first account exists, and logout
// works with either a bearer or a refresh token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	e.POST("/v1/logout", a.Logout)
}
