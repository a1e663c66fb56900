package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"warehouse-ops/internal/core"
)

func seededStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	ctx := context.Background()
	s := New(opts...)
	require.NoError(t, s.UpsertWarehouse(ctx, core.Warehouse{ID: "WH1", Name: "Main", IsActive: true}))
	require.NoError(t, s.UpsertBin(ctx, core.Bin{Code: "BIN-A001", WarehouseID: "WH1", Capacity: 1}))
	return s
}

// holdBin keeps BIN-A001 locked in a transaction until the returned func is called.
func holdBin(t *testing.T, s *Store) (release func()) {
	t.Helper()
	locked := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		finished <- s.RunInTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
			if _, err := tx.LockBin(ctx, "BIN-A001"); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked
	return func() {
		close(done)
		require.NoError(t, <-finished)
	}
}

func TestLockWaitTimeoutIsContention(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := seededStore(t, WithLockTimeout(10*time.Millisecond))
	release := holdBin(t, s)

	start := time.Now()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		_, err := tx.LockBin(ctx, "BIN-A001")
		return err
	})
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err), "lock timeout must be retryable: %v", err)
	assert.Equal(t, core.KindContention, core.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)

	release()

	// Once released the bin is free again and no lock entry is left over.
	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		_, err := tx.LockBin(ctx, "BIN-A001")
		return err
	}))
	assert.Empty(t, s.locks.entries)
}

func TestLockWaitHonoursCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	s := seededStore(t, WithLockTimeout(time.Minute))
	release := holdBin(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- s.locks.acquire(ctx, binLockKey("BIN-A001"), s.lockTimeout)
	}()
	cancel()

	err := <-errc
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, core.IsRetryable(err))

	release()
	s.locks.mu.Lock()
	defer s.locks.mu.Unlock()
	assert.Empty(t, s.locks.entries, "a cancelled waiter must not leave its entry behind")
}

func TestKeyedLocks_ReleaseHandsOver(t *testing.T) {
	l := newKeyedLocks()
	ctx := context.Background()
	require.NoError(t, l.acquire(ctx, "k", 0))

	got := make(chan error, 1)
	go func() { got <- l.acquire(ctx, "k", time.Second) }()

	l.release("k")
	require.NoError(t, <-got)
	l.release("k")
	assert.Empty(t, l.entries)
}
