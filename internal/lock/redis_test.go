package lock

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKeepAliveRenewsUntilStopped(t *testing.T) {
	stop := make(chan struct{})
	done := make(chan struct{})
	var calls int32
	go func() {
		defer close(done)
		keepAlive(stop, 5*time.Millisecond, func() (bool, error) {
			atomic.AddInt32(&calls, 1)
			return true, nil
		})
	}()
	time.Sleep(60 * time.Millisecond)
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive did not stop")
	}
	if n := atomic.LoadInt32(&calls); n < 3 {
		t.Fatalf("renewed %d times in 60ms at a 5ms interval", n)
	}
}

func TestKeepAliveStopsWhenLeaseLost(t *testing.T) {
	done := make(chan struct{})
	var calls int32
	go func() {
		defer close(done)
		keepAlive(make(chan struct{}), 2*time.Millisecond, func() (bool, error) {
			switch atomic.AddInt32(&calls, 1) {
			case 1:
				return false, errors.New("i/o timeout")
			case 2:
				return true, nil
			}
			return false, nil
		})
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive kept renewing a lost lease")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("renew called %d times, want 3 (a transient error is retried)", n)
	}
}

func TestRenewInterval(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		9 * time.Second:        3 * time.Second,
		300 * time.Millisecond: 100 * time.Millisecond,
		1:                      time.Millisecond,
	}
	for ttl, want := range cases {
		if got := renewInterval(ttl); got != want {
			t.Errorf("renewInterval(%s) = %s, want %s", ttl, got, want)
		}
	}
}

// TestRedisLeaseOutlivesTTL needs a Redis server; set LOCK_TEST_REDIS_ADDR
// to run it.
func TestRedisLeaseOutlivesTTL(t *testing.T) {
	addr := os.Getenv("LOCK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LOCK_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping %s: %v", addr, err)
	}
	prefix := "pos:locktest:" + time.Now().Format("150405.000000")
	l := NewRedisLocker(rdb, prefix, 150*time.Millisecond, 5*time.Millisecond)

	release, err := l.Acquire(ctx, TableKey(1))
	if err != nil {
		t.Fatal(err)
	}
	// hold well past the TTL; renewal must keep others out
	time.Sleep(500 * time.Millisecond)
	wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	_, err = l.Acquire(wctx, TableKey(1))
	cancel()
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second holder err = %v, want ErrLockTimeout", err)
	}

	release()
	release()
	if n, _ := rdb.Exists(ctx, prefix+":"+TableKey(1)).Result(); n != 0 {
		t.Fatal("lease key left behind after release")
	}
	release2, err := l.Acquire(ctx, TableKey(1))
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}
