package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"warehouse-ops/internal/core"
)

func entry(id string) core.AuditEntry {
	return core.AuditEntry{
		WarehouseID: "WH1",
		TrackingID:  id,
		BinCode:     "BIN-A001",
		Action:      core.AuditPutaway,
		Actor:       "OP-1",
		At:          time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release chan struct{}
	Recorder
}

func (b *blockingPublisher) Publish(ctx context.Context, e core.AuditEntry) error {
	<-b.release
	return b.Recorder.Publish(ctx, e)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, core.AuditEntry) error { return f.err }

// ── Async ─────────────────────────────────────────────────────────────────────

func TestAsync_CloseDrainsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := &Recorder{}
	a := NewAsync(rec, 16, nil)

	for _, id := range []string{"P1", "P2", "P3"} {
		a.Record(context.Background(), entry(id))
	}
	require.NoError(t, a.Close())

	got := rec.Entries()
	require.Len(t, got, 3)
	for i, id := range []string{"P1", "P2", "P3"} {
		assert.Equal(t, id, got[i].TrackingID)
		assert.NotEmpty(t, got[i].ID, "entries are stamped with an id")
	}
	assert.Zero(t, a.Dropped())
}

func TestAsync_FullBufferDrops(t *testing.T) {
	defer goleak.VerifyNone(t)
	pub := &blockingPublisher{release: make(chan struct{})}
	var drops int
	var mu sync.Mutex
	a := NewAsync(pub, 1, nil, OnDrop(func() { mu.Lock(); drops++; mu.Unlock() }))

	// The worker takes at most one entry and blocks on it; the buffer holds
	// one more. Everything past that is dropped.
	for i := 0; i < 10; i++ {
		a.Record(context.Background(), entry("P"))
	}
	assert.GreaterOrEqual(t, a.Dropped(), int64(8))

	close(pub.release)
	require.NoError(t, a.Close())
	assert.Equal(t, int64(10), a.Dropped()+int64(len(pub.Entries())))
	mu.Lock()
	assert.Equal(t, int(a.Dropped()), drops)
	mu.Unlock()
}

func TestAsync_RecordAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := &Recorder{}
	a := NewAsync(rec, 4, nil)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")

	a.Record(context.Background(), entry("LATE"))
	assert.Equal(t, int64(1), a.Dropped())
	assert.Empty(t, rec.Entries())
}

func TestAsync_PublishErrorsAreLoggedNotReturned(t *testing.T) {
	defer goleak.VerifyNone(t)
	obs, logs := observer.New(zap.ErrorLevel)
	a := NewAsync(failingPublisher{err: errors.New("broker down")}, 4, zap.New(obs))
	a.Record(context.Background(), entry("P1"))
	require.NoError(t, a.Close())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "audit publish failed", logs.All()[0].Message)
}

// ── Destinations ──────────────────────────────────────────────────────────────

func TestMulti_JoinsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("boom")
	err := Multi{rec, failingPublisher{err: boom}}.Publish(context.Background(), entry("P1"))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Entries(), 1, "healthy destinations still receive the entry")
}

func TestLogSink(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLogSink(zap.New(obs)).Publish(context.Background(), entry("P1")))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "putaway", fields["action"])
	assert.Equal(t, "P1", fields["tracking_id"])
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestKafkaSink(t *testing.T) {
	fw := &fakeWriter{}
	sink := NewKafkaSinkWithWriter(fw)
	require.NoError(t, sink.Publish(context.Background(), entry("P1")))
	require.NoError(t, sink.Close())

	require.Len(t, fw.msgs, 1)
	assert.Equal(t, "WH1/P1", string(fw.msgs[0].Key))
	var decoded core.AuditEntry
	require.NoError(t, json.Unmarshal(fw.msgs[0].Value, &decoded))
	assert.Equal(t, core.AuditPutaway, decoded.Action)
	assert.True(t, fw.closed)
}

type fakeExec struct {
	sql  string
	args []any
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPostgresSink(t *testing.T) {
	ex := &fakeExec{}
	e := entry("P1")
	e.ID = "id-1"
	e.BinCode = ""
	require.NoError(t, NewPostgresSink(ex).Publish(context.Background(), e))

	assert.Contains(t, ex.sql, "INSERT INTO audit_log")
	require.Len(t, ex.args, 8)
	assert.Equal(t, "id-1", ex.args[0])
	assert.Nil(t, ex.args[3], "empty bin is stored as NULL")
}
