package core_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/core"
)

func TestReconcile_DuplicatesEmptiesAndCase(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	report, err := e.reconcile.Reconcile(ctx, e.admin, core.ReconcileRequest{
		TrackingIDs: []string{"A1", "a1", "BAD", ""},
		Mode:        core.ModeManifest,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalProcessed)
	assert.Equal(t, report.TotalProcessed, report.CreatedCount+report.UpdatedCount+report.FailedCount)
	assert.Equal(t, []string{"BAD"}, report.CreatedIDs)
	assert.Equal(t, []string{"A1"}, report.UpdatedIDs)
	assert.Empty(t, report.Failed)

	want := []core.ReconcileItem{
		{TrackingID: "A1", Outcome: core.OutcomeCreated},
		{TrackingID: "A1", Outcome: core.OutcomeUpdated},
		{TrackingID: "BAD", Outcome: core.OutcomeCreated},
	}
	if diff := cmp.Diff(want, report.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	sh := e.shipment(t, "A1")
	assert.Equal(t, core.StatusManifested, sh.Status)
	assert.True(t, sh.WasManifested)
	assert.Empty(t, sh.BinCode)
}

func TestReconcile_ManifestModeRejectsProgressedShipments(t *testing.T) {
	e := newEngine(t, 2)
	ctx := context.Background()
	e.mustPutaway(t, "BIN-A001", "P1")

	report, err := e.reconcile.Reconcile(ctx, e.admin, core.ReconcileRequest{TrackingIDs: []string{"P1", "N1", "bad id"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"N1"}, report.CreatedIDs)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, core.FailedItem{TrackingID: "P1", Reason: core.ReasonProgressedBeyondManifest}, report.Failed[0])
	assert.Equal(t, "BAD ID", report.Failed[1].TrackingID)
	assert.Contains(t, report.Failed[1].Reason, "unsupported characters")
	assert.Equal(t, 3, report.TotalProcessed)

	sh := e.shipment(t, "P1")
	assert.Equal(t, core.StatusPutaway, sh.Status, "physical state is never reset")
	assert.False(t, sh.WasManifested)
}

func TestReconcile_StatusModeRegistered(t *testing.T) {
	e := newEngine(t, 2)
	ctx := context.Background()
	e.mustPutaway(t, "BIN-A001", "P1")

	report, err := e.reconcile.Reconcile(ctx, e.admin, core.ReconcileRequest{
		TrackingIDs: []string{"P1", "P1", "NEW"},
		Mode:        core.ModeStatus,
		Intent:      core.IntentRegistered,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalProcessed)
	assert.Equal(t, 2, report.UpdatedCount)
	assert.Equal(t, []string{"P1"}, report.UpdatedIDs)
	assert.Equal(t, []string{"NEW"}, report.CreatedIDs)

	sh := e.shipment(t, "P1")
	assert.True(t, sh.WasManifested)
	assert.Equal(t, core.StatusPutaway, sh.Status)
}

func TestReconcile_StatusModeDelivered(t *testing.T) {
	e := newEngine(t, 2)
	ctx := context.Background()
	e.mustPutaway(t, "BIN-A001", "OUT")
	e.mustPutaway(t, "BIN-A001", "STAY")
	e.mustPickup(t, "OUT")
	_, err := e.scan.Dispatch(ctx, e.operator, "BIN-A001", "BIN-A001")
	require.NoError(t, err)

	report, err := e.reconcile.Reconcile(ctx, e.admin, core.ReconcileRequest{
		TrackingIDs: []string{"OUT", "STAY", "OUT"},
		Mode:        core.ModeStatus,
		Intent:      core.IntentDelivered,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"OUT"}, report.UpdatedIDs)
	assert.Equal(t, []core.FailedItem{{TrackingID: "STAY", Reason: core.ReasonNotYetDispatched}}, report.Failed)
	assert.Equal(t, 2, report.UpdatedCount)
	assert.Equal(t, core.StatusDelivered, e.shipment(t, "OUT").Status)
}

func TestReconcile_InvalidRequest(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.reconcile.Reconcile(ctx, e.admin, core.ReconcileRequest{Mode: "sideways"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = e.reconcile.Reconcile(ctx, core.Actor{WarehouseID: "WH-404"}, core.ReconcileRequest{TrackingIDs: []string{"A"}})
	assert.ErrorIs(t, err, core.ErrWarehouseNotFound)
}

// failingStore fails every transaction touching one tracking ID.
type failingStore struct {
	core.Store
	poison string
}

type failingTx struct {
	core.Tx
	poison string
}

func (f failingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		return fn(ctx, failingTx{Tx: tx, poison: f.poison})
	})
}

func (f failingTx) LockShipment(ctx context.Context, wh, id string) (*core.Shipment, error) {
	if id == f.poison {
		panic("disk on fire")
	}
	return f.Tx.LockShipment(ctx, wh, id)
}

func (f failingTx) InsertShipment(ctx context.Context, s core.Shipment) error {
	if s.TrackingID == "CONFLICT" {
		return core.Contention("insert shipment", assert.AnError)
	}
	return f.Tx.InsertShipment(ctx, s)
}

func TestReconcile_ItemFailuresAreIsolated(t *testing.T) {
	e := newEngine(t)
	svc := core.NewReconcileService(failingStore{Store: e.store, poison: "BOOM"}, core.Options{})

	report, err := svc.Reconcile(context.Background(), e.admin, core.ReconcileRequest{
		TrackingIDs: []string{"OK-1", "BOOM", "CONFLICT", "OK-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"OK-1", "OK-2"}, report.CreatedIDs)
	require.Len(t, report.Failed, 2)
	assert.Contains(t, report.Failed[0].Reason, "disk on fire")
	assert.Contains(t, report.Failed[1].Reason, assert.AnError.Error())
	assert.Equal(t, 4, report.TotalProcessed)
}
