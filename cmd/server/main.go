package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/restaurant-pos/internal/config"
	"github.com/iliyamo/restaurant-pos/internal/database"
	"github.com/iliyamo/restaurant-pos/internal/handler"
	"github.com/iliyamo/restaurant-pos/internal/lock"
	"github.com/iliyamo/restaurant-pos/internal/logger"
	"github.com/iliyamo/restaurant-pos/internal/middleware"
	"github.com/iliyamo/restaurant-pos/internal/queue"
	"github.com/iliyamo/restaurant-pos/internal/repository"
	"github.com/iliyamo/restaurant-pos/internal/router"
	"github.com/iliyamo/restaurant-pos/internal/service"
)

// stores is the persistence picked by STORE_DRIVER.
type stores struct {
	tables service.TableStore
	orders service.OrderStore
	menu   handler.MenuStore
	users  handler.UserStore
	tokens handler.TokenStore
	db     *sql.DB
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store; data is lost on restart")
		m := repository.NewMemoryDB()
		return stores{tables: m.Tables(), orders: m.Orders(), menu: m.Menu(), users: m.Users(), tokens: m.Tokens()}, nil
	}
	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return stores{}, err
	}
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
		log.Info().Msg("schema migrated")
	}
	return stores{
		tables: repository.NewTableRepo(db),
		orders: repository.NewOrderRepo(db),
		menu:   repository.NewMenuRepo(db),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		db:     db,
	}, nil
}

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.Setup(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	if st.db != nil {
		defer st.db.Close()
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unreachable; cache and rate limit disabled")
	} else {
		defer rdb.Close()
	}

	lockCfg := config.LoadLockConfig()
	var locker lock.Locker = lock.NewLocalLocker()
	switch {
	case lockCfg.Driver == config.LockRedis && rdb != nil:
		locker = lock.NewRedisLocker(rdb, lockCfg.Prefix, lockCfg.TTL, lockCfg.Retry)
	case lockCfg.Driver == config.LockRedis:
		log.Warn().Msg("redis table lock unavailable; falling back to in-process lock")
	}

	var events service.EventPublisher
	if cfg.EventsEnabled {
		pub := queue.NewPublisher(cfg.RabbitURL, log.With().Str("component", "publisher").Logger())
		defer pub.Close()
		events = pub
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.OrderLogDir, log.With().Str("component", "order-consumer").Logger())
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("order consumer stopped")
			}
		}()
	}

	orders := service.NewOrderService(st.orders, log)
	tables := service.NewTableService(st.tables, orders, log)
	coord := service.NewCoordinator(tables, orders, st.menu, locker, events, log)
	coord.SetLockWait(lockCfg.Wait)

	deps := map[string]handler.Pinger{}
	if st.db != nil {
		deps["mysql"] = st.db
	}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.Register(e, router.Handlers{
		Health: handler.NewHealthHandler(deps),
		Auth:   handler.NewAuthHandler(cfg, st.users, st.tokens, log),
		Tables: handler.NewTableHandler(tables, coord, log),
		Orders: handler.NewOrderHandler(orders, coord, cfg.TaxRatePercent, log),
		Menu:   handler.NewMenuHandler(st.menu, log),
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}
