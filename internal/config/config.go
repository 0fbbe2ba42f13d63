// Package config loads application configuration from environment
// variables.  A .env file, when present, is read by cmd/server before Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-pos/internal/billing"
)

// Store drivers.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// DefaultTaxRatePercent applies when TAX_RATE_PERCENT is unset.
const DefaultTaxRatePercent = "5.25"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string          // APP_ENV (dev, test, prod)
	Port           string          // APP_PORT
	StoreDriver    string          // STORE_DRIVER: mysql (default) or memory
	DBUser         string          // DB_USER, required for mysql
	DBPass         string          // DB_PASS (empty allowed)
	DBHost         string          // DB_HOST, required for mysql
	DBPort         string          // DB_PORT, required for mysql
	DBName         string          // DB_NAME, required for mysql
	DBMigrate      bool            // DB_MIGRATE: create tables on start
	JWTSecret      string          // JWT_SECRET
	AccessTTLMin   int             // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays int             // REFRESH_TOKEN_TTL_DAYS
	BcryptCost     int             // BCRYPT_COST
	TaxRatePercent decimal.Decimal // TAX_RATE_PERCENT
	EventsEnabled  bool            // EVENTS_ENABLED
	RabbitURL      string          // RABBITMQ_URL (or AMQP_URL)
	OrderLogDir    string          // ORDER_LOG_DIR, where the consumer writes orders.log
	LogLevel       string          // LOG_LEVEL
}

// Load reads the configuration and exits the process when a required
// variable is missing or malformed.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// Parse reads the configuration from the environment and reports every
// missing or malformed variable at once.
func Parse() (Config, error) {
	p := &parser{}
	cfg := Config{
		Env:            p.must("APP_ENV"),
		Port:           p.must("APP_PORT"),
		StoreDriver:    strings.ToLower(getenv("STORE_DRIVER", StoreMySQL)),
		DBPass:         os.Getenv("DB_PASS"),
		DBMigrate:      envBool("DB_MIGRATE", false),
		JWTSecret:      p.must("JWT_SECRET"),
		AccessTTLMin:   p.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: p.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     p.mustInt("BCRYPT_COST"),
		EventsEnabled:  envBool("EVENTS_ENABLED", false),
		RabbitURL:      getenv("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		OrderLogDir:    getenv("ORDER_LOG_DIR", "logs"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = p.must("DB_USER")
		cfg.DBHost = p.must("DB_HOST")
		cfg.DBPort = p.must("DB_PORT")
		cfg.DBName = p.must("DB_NAME")
	case StoreMemory:
	default:
		p.fail("STORE_DRIVER must be mysql or memory, got %q", cfg.StoreDriver)
	}
	rate, err := billing.ParseRate(getenv("TAX_RATE_PERCENT", DefaultTaxRatePercent))
	if err != nil {
		p.fail("TAX_RATE_PERCENT: %v", err)
	}
	cfg.TaxRatePercent = rate
	return cfg, errors.Join(p.errs...)
}

type parser struct{ errs []error }

func (p *parser) fail(format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf(format, args...))
}

// must retrieves a required environment variable.
func (p *parser) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		p.fail("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must but converts the value to an integer.
func (p *parser) mustInt(key string) int {
	s := p.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail("invalid int for %s: %q", key, s)
	}
	return n
}
