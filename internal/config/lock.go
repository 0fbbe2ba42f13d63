package config

import (
	"strings"
	"time"
)

// Lock drivers.
const (
	LockRedis = "redis"
	LockLocal = "local"
)

// LockConfig configures the per-table lease.  TTL bounds how long a
// crashed holder keeps a table locked; a live holder renews it every TTL/3,
// so the critical section itself is not limited by TTL.  Wait bounds how
// long a request queues for the lease.
type LockConfig struct {
	Driver string
	Prefix string
	TTL    time.Duration
	Retry  time.Duration
	Wait   time.Duration
}

// LoadLockConfig reads TABLE_LOCK_* variables.
func LoadLockConfig() LockConfig {
	cfg := LockConfig{
		Driver: strings.ToLower(getenv("TABLE_LOCK_DRIVER", LockRedis)),
		Prefix: getenv("TABLE_LOCK_PREFIX", "pos:lock"),
		TTL:    envDur("TABLE_LOCK_TTL", 10*time.Second),
		Retry:  envDur("TABLE_LOCK_RETRY", 25*time.Millisecond),
		Wait:   envDur("TABLE_LOCK_WAIT", 5*time.Second),
	}
	if cfg.Driver != LockLocal {
		cfg.Driver = LockRedis
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	if cfg.TTL < cfg.Wait {
		cfg.TTL = 2 * cfg.Wait
	}
	return cfg
}
