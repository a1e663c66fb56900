package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"warehouse-ops/internal/core"
)

// keyedLocks hands out one exclusive lock per key. Entries are reference
// counted and dropped when no holder or waiter remains.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: map[string]*lockEntry{}}
}

// acquire blocks until key is free, ctx is done, or timeout elapses.
// A timeout is reported as core contention so callers may retry.
func (l *keyedLocks) acquire(ctx context.Context, key string, timeout time.Duration) error {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.drop(key, e)
		return ctx.Err()
	case <-expired:
		l.drop(key, e)
		return core.Contention("lock "+key, fmt.Errorf("lock wait exceeded %s", timeout))
	}
}

func (l *keyedLocks) release(key string) {
	l.mu.Lock()
	e, ok := l.entries[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	<-e.sem
	l.drop(key, e)
}

func (l *keyedLocks) drop(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}
