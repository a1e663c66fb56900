package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"warehouse-ops/internal/core"
)

const publishTimeout = 5 * time.Second

// Async is a core.AuditSink that buffers entries and publishes them in
// order on a single worker. A full buffer drops the entry.
type Async struct {
	pub     Publisher
	log     *zap.Logger
	ch      chan core.AuditEntry
	done    chan struct{}
	dropped atomic.Int64
	onDrop  func()

	mu     sync.RWMutex
	closed bool
}

var _ core.AuditSink = (*Async)(nil)

// AsyncOption configures an Async sink.
type AsyncOption func(*Async)

// OnDrop registers a callback run for every dropped entry.
func OnDrop(fn func()) AsyncOption {
	return func(a *Async) { a.onDrop = fn }
}

func NewAsync(pub Publisher, buffer int, log *zap.Logger, opts ...AsyncOption) *Async {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{
		pub:  pub,
		log:  log.Named("audit"),
		ch:   make(chan core.AuditEntry, buffer),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	go a.run()
	return a
}

func (a *Async) Record(_ context.Context, e core.AuditEntry) {
	e = stamp(e)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop(e, "sink closed")
		return
	}
	select {
	case a.ch <- e:
	default:
		a.drop(e, "buffer full")
	}
}

func (a *Async) drop(e core.AuditEntry, reason string) {
	a.dropped.Add(1)
	if a.onDrop != nil {
		a.onDrop()
	}
	a.log.Warn("audit entry dropped", zap.String("reason", reason), zap.Stringer("entry", e))
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.pub.Publish(ctx, e); err != nil {
			a.log.Error("audit publish failed", zap.Stringer("entry", e), zap.Error(err))
		}
		cancel()
	}
}

// Dropped is the number of entries discarded so far.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close stops accepting entries and waits until the buffer is drained.
func (a *Async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}
