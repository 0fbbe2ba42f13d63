package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lease that was taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// renewScript pushes the expiry out only while the key still holds our
// token.  It returns 0 once the lease has been lost.
var renewScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 0
`)

// RedisLocker is a Locker shared by every server instance.  A lease is a
// key set with NX and a TTL; the TTL bounds how long a crashed holder can
// block the table.  A live holder renews the TTL every third of it until
// release, so a slow critical section keeps its lease.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker builds a RedisLocker.  Keys are namespaced by prefix.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, retry time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: retry}
}

// Acquire polls SET NX until it wins the key or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	full := l.prefix + ":" + key
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err == nil && ok {
			break
		}
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(stop, renewInterval(l.ttl), func() (bool, error) {
			rctx, cancel := context.WithTimeout(context.Background(), renewInterval(l.ttl))
			defer cancel()
			n, err := renewScript.Run(rctx, l.rdb, []string{full}, token, l.ttl.Milliseconds()).Int()
			return n == 1, err
		})
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// release with a fresh context: the request context may be done
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(rctx, l.rdb, []string{full}, token).Err()
		})
	}, nil
}

func renewInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d > 0 {
		return d
	}
	return time.Millisecond
}

// keepAlive calls renew every interval until stop is closed or renew
// reports the lease lost.  A failed call is retried on the next tick; the
// TTL still covers two more attempts.
func keepAlive(stop <-chan struct{}, every time.Duration, renew func() (bool, error)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if held, err := renew(); err == nil && !held {
				return
			}
		}
	}
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
