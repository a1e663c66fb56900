package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/core"
	"warehouse-ops/internal/store/memory"
)

// recorder collects audit entries in memory.
type recorder struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (r *recorder) Record(_ context.Context, e core.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recorder) actions() []core.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type engine struct {
	store     *memory.Store
	audit     *recorder
	putaway   core.PutawayService
	scan      core.ScanService
	assign    core.AssignmentService
	reconcile core.ReconcileService
	inventory core.InventoryService
	operator  core.Actor
	admin     core.Actor
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// newEngine seeds warehouse WH1 with bins of the given capacities
// (BIN-A001, BIN-A002, ...) and operators OP-1..OP-3.
func newEngine(t *testing.T, capacities ...int) *engine {
	t.Helper()
	ctx := context.Background()
	st := memory.New(memory.WithLockTimeout(time.Second))

	require.NoError(t, st.UpsertWarehouse(ctx, core.Warehouse{ID: "WH1", Name: "Main", IsActive: true}))
	require.NoError(t, st.UpsertWarehouse(ctx, core.Warehouse{ID: "WH2", Name: "Overflow", IsActive: true}))
	for i, c := range capacities {
		require.NoError(t, st.UpsertBin(ctx, core.Bin{
			Code:        binCode(i),
			WarehouseID: "WH1",
			Location:    "Row 1",
			Capacity:    c,
			Status:      core.BinAvailable,
		}))
	}
	require.NoError(t, st.UpsertBin(ctx, core.Bin{Code: "BIN-Z001", WarehouseID: "WH2", Capacity: 5, Status: core.BinAvailable}))
	for _, id := range []string{"OP-1", "OP-2", "OP-3"} {
		require.NoError(t, st.UpsertOperator(ctx, core.Operator{ID: id, Name: id, WarehouseID: "WH1", Role: core.RoleOperator, IsActive: true}))
	}
	require.NoError(t, st.UpsertOperator(ctx, core.Operator{ID: "ADM-1", WarehouseID: "WH1", Role: core.RoleWarehouseAdmin, IsActive: true}))
	require.NoError(t, st.UpsertOperator(ctx, core.Operator{ID: "OP-9", WarehouseID: "WH1", Role: core.RoleOperator, IsActive: false}))

	rec := &recorder{}
	opts := core.Options{Audit: rec, Now: func() time.Time { return fixedNow }}
	return &engine{
		store:     st,
		audit:     rec,
		putaway:   core.NewPutawayService(st, opts),
		scan:      core.NewScanService(st, opts),
		assign:    core.NewAssignmentService(st, opts),
		reconcile: core.NewReconcileService(st, opts),
		inventory: core.NewInventoryService(st),
		operator:  core.Actor{OperatorID: "OP-1", WarehouseID: "WH1", Role: core.RoleOperator},
		admin:     core.Actor{OperatorID: "ADM-1", WarehouseID: "WH1", Role: core.RoleWarehouseAdmin},
	}
}

func binCode(i int) string {
	return "BIN-A00" + string(rune('1'+i))
}

func (e *engine) shipment(t *testing.T, id string) core.Shipment {
	t.Helper()
	sh, err := e.store.GetShipment(context.Background(), "WH1", id)
	require.NoError(t, err)
	return *sh
}

func (e *engine) mustPutaway(t *testing.T, bin, id string) {
	t.Helper()
	_, err := e.putaway.Putaway(context.Background(), e.operator, bin, id)
	require.NoError(t, err)
}

func (e *engine) mustPickup(t *testing.T, id string) {
	t.Helper()
	_, err := e.scan.Pickup(context.Background(), e.operator, id, id)
	require.NoError(t, err)
}

// occupying counts shipments holding a slot in bin, straight from the ledger.
func (e *engine) occupying(t *testing.T, bin string) int {
	t.Helper()
	list, err := e.store.ListShipments(context.Background(), core.ShipmentFilter{BinCode: bin})
	require.NoError(t, err)
	n := 0
	for _, sh := range list {
		if sh.Status.Occupying() {
			n++
		}
	}
	return n
}
