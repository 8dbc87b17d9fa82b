package substitution

import (
	"context"
	"sync"
)

// dateLocks serializes runs per date. Waiters give up when their context ends.
type dateLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newDateLocks() *dateLocks {
	return &dateLocks{slots: make(map[string]chan struct{})}
}

func (l *dateLocks) slot(date string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[date]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[date] = ch
	}
	return ch
}

func (l *dateLocks) acquire(ctx context.Context, date string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := l.slot(date)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// tryAcquire takes the lock of date only if it is free.
func (l *dateLocks) tryAcquire(date string) (func(), bool) {
	ch := l.slot(date)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}

// busy reports whether a run for date currently holds the lock.
func (l *dateLocks) busy(date string) bool {
	return len(l.slot(date)) > 0
}
