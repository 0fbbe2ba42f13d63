// Package lock serializes compound operations on a single table.  Starting
// an order and closing a table each write an order row and then a table
// row; holding the table's lease across both writes keeps concurrent
// requests for the same table from interleaving.  Requests for different
// tables never wait on each other.
package lock

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// ErrLockTimeout is returned when the lease could not be acquired before
// the context expired.
var ErrLockTimeout = errors.New("timed out waiting for table lock")

// Locker hands out exclusive leases keyed by an arbitrary string.  The
// returned release function must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// TableKey is the lease key used for a dining table.
func TableKey(tableID uint64) string { return "table:" + strconv.FormatUint(tableID, 10) }

// LocalLocker is an in-process Locker backed by one channel per key.  It is
// suitable when a single server instance owns the database.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Acquire blocks until the key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
	}, nil
}

// drop forgets the slot once nobody holds or waits on it.
func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
