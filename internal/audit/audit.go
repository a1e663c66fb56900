// Package audit delivers audit entries to side channels. Delivery never
// blocks or fails an engine operation: Async queues entries and publishes
// them on a worker goroutine.
package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-ops/internal/core"
)

// Publisher writes one entry to a destination.
type Publisher interface {
	Publish(ctx context.Context, e core.AuditEntry) error
}

// Multi publishes to every destination and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e core.AuditEntry) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes entries as structured log lines.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Publish(_ context.Context, e core.AuditEntry) error {
	s.log.Info("audit",
		zap.String("id", e.ID),
		zap.String("action", string(e.Action)),
		zap.String("warehouse", e.WarehouseID),
		zap.String("tracking_id", e.TrackingID),
		zap.String("bin", e.BinCode),
		zap.String("actor", e.Actor),
		zap.String("details", e.Details),
		zap.Time("at", e.At),
	)
	return nil
}

// Recorder keeps entries in memory. It is both a Publisher and a core.AuditSink.
type Recorder struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (r *Recorder) Publish(_ context.Context, e core.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *Recorder) Record(ctx context.Context, e core.AuditEntry) {
	_ = r.Publish(ctx, stamp(e))
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []core.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.AuditEntry(nil), r.entries...)
}

// stamp gives the entry an ID when the engine did not.
func stamp(e core.AuditEntry) core.AuditEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return e
}
