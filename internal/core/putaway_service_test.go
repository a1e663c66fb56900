package core_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"warehouse-ops/internal/core"
)

func TestValidateBin(t *testing.T) {
	e := newEngine(t, 2)
	ctx := context.Background()

	snap, err := e.putaway.ValidateBin(ctx, e.operator, " bin-a001 ")
	require.NoError(t, err)
	assert.Equal(t, "BIN-A001", snap.Code)
	assert.Equal(t, 0, snap.Used)
	assert.Equal(t, 2, snap.Capacity)

	_, err = e.putaway.ValidateBin(ctx, e.operator, "BIN-NOPE")
	assert.ErrorIs(t, err, core.ErrBinNotFound)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))

	_, err = e.putaway.ValidateBin(ctx, e.operator, "BIN-Z001")
	assert.ErrorIs(t, err, core.ErrWrongWarehouse)

	_, err = e.putaway.ValidateBin(ctx, e.operator, "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, "bin_code", core.FieldOf(err))
}

func TestValidateBin_MaintenanceBinIsRefused(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.store.UpsertBin(ctx, core.Bin{Code: "BIN-M001", WarehouseID: "WH1", Capacity: 3, Status: core.BinMaintenance}))

	snap, err := e.putaway.ValidateBin(ctx, e.operator, "bin-m001")
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, core.ErrBinUnavailable)
	assert.Equal(t, core.KindConflict, core.KindOf(err))
}

func TestPutaway_CapacitySequence(t *testing.T) {
	e := newEngine(t, 2)
	ctx := context.Background()

	r1, err := e.putaway.Putaway(ctx, e.operator, "BIN-A001", "PKG-1")
	require.NoError(t, err)
	assert.Equal(t, 1, r1.OccupancyUsed)
	assert.Equal(t, 2, r1.OccupancyTotal)
	assert.False(t, r1.WasManifested)
	assert.Equal(t, core.StatusPutaway, r1.Shipment.Status)

	r2, err := e.putaway.Putaway(ctx, e.operator, "BIN-A001", "PKG-2")
	require.NoError(t, err)
	assert.Equal(t, 2, r2.OccupancyUsed)

	_, err = e.putaway.Putaway(ctx, e.operator, "BIN-A001", "PKG-3")
	require.ErrorIs(t, err, core.ErrCapacityExceeded)
	assert.Equal(t, core.KindConflict, core.KindOf(err))

	_, err = e.store.GetShipment(ctx, "WH1", "PKG-3")
	assert.ErrorIs(t, err, core.ErrShipmentNotFound, "rejected shipment must not be created")
	assert.Equal(t, []core.AuditAction{core.AuditPutaway, core.AuditPutaway}, e.audit.actions())
}

func TestPutaway_AdoptsManifestedShipment(t *testing.T) {
	e := newEngine(t, 1)
	ctx := context.Background()

	_, err := e.reconcile.Reconcile(ctx, e.operator, core.ReconcileRequest{TrackingIDs: []string{"pkg-m1"}})
	require.NoError(t, err)

	res, err := e.putaway.Putaway(ctx, e.operator, "BIN-A001", "PKG-M1")
	require.NoError(t, err)
	assert.True(t, res.WasManifested)
	assert.Equal(t, "BIN-A001", res.Shipment.BinCode)
	require.NotNil(t, res.Shipment.TimeIn)
	assert.Equal(t, fixedNow, *res.Shipment.TimeIn)
}

func TestPutaway_RescanSameBinIsIdempotent(t *testing.T) {
	e := newEngine(t, 1)
	ctx := context.Background()

	e.mustPutaway(t, "BIN-A001", "PKG-1")
	res, err := e.putaway.Putaway(ctx, e.operator, "bin-a001", "pkg-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyStored)
	assert.Equal(t, 1, res.OccupancyUsed)
	assert.Len(t, e.audit.actions(), 1, "idempotent rescan is not audited")
}

func TestPutaway_Rejections(t *testing.T) {
	e := newEngine(t, 1, 1)
	ctx := context.Background()

	e.mustPutaway(t, "BIN-A001", "PKG-1")
	_, err := e.putaway.Putaway(ctx, e.operator, "BIN-A002", "PKG-1")
	assert.ErrorIs(t, err, core.ErrAlreadyOccupyingAnotherBin)

	e.mustPickup(t, "PKG-1")
	_, err = e.putaway.Putaway(ctx, e.operator, "BIN-A001", "PKG-1")
	assert.ErrorIs(t, err, core.ErrAlreadyProcessed)

	_, err = e.scan.Dispatch(ctx, e.operator, "BIN-A001", "BIN-A001")
	require.NoError(t, err)
	_, err = e.putaway.Putaway(ctx, e.operator, "BIN-A002", "PKG-1")
	assert.ErrorIs(t, err, core.ErrAlreadyProcessed)

	_, err = e.putaway.Putaway(ctx, e.operator, "BIN-NOPE", "PKG-2")
	assert.ErrorIs(t, err, core.ErrBinNotFound)

	_, err = e.putaway.Putaway(ctx, e.operator, "BIN-Z001", "PKG-2")
	assert.ErrorIs(t, err, core.ErrWrongWarehouse)

	_, err = e.putaway.Putaway(ctx, e.operator, "BIN-A002", "bad id!")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, "tracking_id", core.FieldOf(err))
}

func TestPutaway_MaintenanceBin(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.store.UpsertBin(ctx, core.Bin{Code: "BIN-M001", WarehouseID: "WH1", Capacity: 3, Status: core.BinMaintenance}))

	_, err := e.putaway.Putaway(ctx, e.operator, "BIN-M001", "PKG-1")
	assert.ErrorIs(t, err, core.ErrBinUnavailable)
}

func TestPutaway_PickedShipmentStillHoldsSlot(t *testing.T) {
	e := newEngine(t, 1)
	ctx := context.Background()

	e.mustPutaway(t, "BIN-A001", "PKG-1")
	e.mustPickup(t, "PKG-1")

	_, err := e.putaway.Putaway(ctx, e.operator, "BIN-A001", "PKG-2")
	require.ErrorIs(t, err, core.ErrCapacityExceeded)

	_, err = e.scan.Dispatch(ctx, e.operator, "BIN-A001", "BIN-A001")
	require.NoError(t, err)
	e.mustPutaway(t, "BIN-A001", "PKG-2")
	assert.Equal(t, 1, e.occupying(t, "BIN-A001"))
}

func TestPutaway_ConcurrentScansNeverExceedCapacity(t *testing.T) {
	defer goleak.VerifyNone(t)
	const capacity, scanners = 3, 24

	e := newEngine(t, capacity)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, full := 0, 0
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.putaway.Putaway(ctx, e.operator, "BIN-A001", fmt.Sprintf("PKG-%02d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case core.CodeOf(err) == core.CodeCapacityExceeded:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, scanners-capacity, full)
	assert.Equal(t, capacity, e.occupying(t, "BIN-A001"))
}
