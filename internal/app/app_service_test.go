package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"warehouse-ops/internal/audit"
	"warehouse-ops/internal/blob"
	"warehouse-ops/internal/config"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/reports"
	"warehouse-ops/internal/seed"
	"warehouse-ops/internal/store/memory"
)

type observation struct {
	op   string
	code string
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) Observe(op string, err error, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := "ok"
	if err != nil {
		code = string(core.CodeOf(err))
	}
	f.obs = append(f.obs, observation{op, code})
}

// flakyStore reports contention for the first n transactions.
type flakyStore struct {
	core.Store
	mu sync.Mutex
	n  int
}

func (f *flakyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	f.mu.Lock()
	fail := f.n > 0
	if fail {
		f.n--
	}
	f.mu.Unlock()
	if fail {
		return core.Contention("begin", errors.New("lock timeout"))
	}
	return f.Store.RunInTx(ctx, fn)
}

type fixture struct {
	svc      ApplicationService
	store    *memory.Store
	flaky    *flakyStore
	audit    *audit.Recorder
	observer *fakeObserver
	operator core.Actor
	admin    core.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New(memory.WithLockTimeout(time.Second))
	_, err := seed.Apply(context.Background(), st, seed.Default())
	require.NoError(t, err)

	f := &fixture{
		store:    st,
		flaky:    &flakyStore{Store: st},
		audit:    &audit.Recorder{},
		observer: &fakeObserver{},
		operator: core.Actor{OperatorID: "OP-1", WarehouseID: "WH1", Role: core.RoleOperator},
		admin:    core.Actor{OperatorID: "ADM-1", WarehouseID: "WH1", Role: core.RoleWarehouseAdmin},
	}
	f.svc = NewAppService(Deps{
		Store:   f.flaky,
		Options: core.Options{Audit: f.audit},
		Retry:   fastRetry,
		Metrics: f.observer,
		Archive: reports.NewArchive(blob.NewMemory(), time.Minute),
	})
	return f
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestScanLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap, err := f.svc.ValidateBin(ctx, f.operator, "bin-a001")
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Capacity)

	put, err := f.svc.Putaway(ctx, f.operator, PutawayRequest{BinCode: "BIN-A001", TrackingID: "pkg-1"})
	require.NoError(t, err)
	assert.Equal(t, "PKG-1", put.Shipment.TrackingID)

	_, err = f.svc.Pickup(ctx, f.operator, ScanRequest{TrackingID: "PKG-1", ExpectedTrackingID: "PKG-1"})
	require.NoError(t, err)

	out, err := f.svc.Dispatch(ctx, f.operator, DispatchRequest{BinCode: "BIN-A001", ExpectedBinCode: "BIN-A001"})
	require.NoError(t, err)
	assert.Equal(t, []string{"PKG-1"}, out.TrackingIDs)

	sh, err := f.svc.SearchShipment(ctx, f.operator, "PKG-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusDispatched, sh.Status)

	var actions []core.AuditAction
	for _, e := range f.audit.Entries() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []core.AuditAction{core.AuditPutaway, core.AuditPicked, core.AuditDispatched}, actions)
}

func TestPutaway_RetriesContention(t *testing.T) {
	f := newFixture(t)
	f.flaky.n = 2

	_, err := f.svc.Putaway(context.Background(), f.operator, PutawayRequest{BinCode: "BIN-A001", TrackingID: "PKG-R"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.flaky.n)

	f.flaky.n = 5
	_, err = f.svc.Putaway(context.Background(), f.operator, PutawayRequest{BinCode: "BIN-A001", TrackingID: "PKG-S"})
	assert.ErrorIs(t, err, core.ErrContention)
}

func TestObserverSeesOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.svc.Putaway(ctx, f.operator, PutawayRequest{BinCode: "BIN-B002", TrackingID: "PKG-1"})
	_, _ = f.svc.Pickup(ctx, f.operator, ScanRequest{TrackingID: "A", ExpectedTrackingID: "B"})
	_, _ = f.svc.WarehouseStats(ctx, f.operator)

	assert.Equal(t, []observation{
		{"putaway", "BIN_UNAVAILABLE"},
		{"pickup", "MISMATCH"},
		{"warehouse_stats", "ok"},
	}, f.observer.obs)
}

func TestReconcile_FileUploadIsArchived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Reconcile(ctx, f.admin, ReconcileRequest{
		TrackingIDs: []string{"IGNORED"},
		File:        &Upload{Filename: "manifest.csv", Data: []byte("Tracking ID,Carrier\nM-1,x\nM-2,y\nM-1,z\n")},
	})
	require.NoError(t, err)
	// M-1 appears twice: created, then updated. Lists keep the last outcome.
	assert.Equal(t, []string{"M-2"}, res.Report.CreatedIDs)
	assert.Equal(t, []string{"M-1"}, res.Report.UpdatedIDs)
	assert.Equal(t, 3, res.Report.CreatedCount+res.Report.UpdatedCount)
	assert.Equal(t, 3, res.Report.TotalProcessed)
	require.NotNil(t, res.Log)
	assert.True(t, strings.HasPrefix(res.Log.Key, "manifests/WH1/"))
	assert.Empty(t, res.Log.URL, "memory blobs cannot be presigned")

	list, err := f.svc.ListManifestReports(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, res.Log.Key, list.Reports[0].Key)

	_, err = f.svc.SearchShipment(ctx, f.admin, "IGNORED")
	assert.ErrorIs(t, err, core.ErrShipmentNotFound)
}

func TestReconcile_StatusMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Putaway(ctx, f.operator, PutawayRequest{BinCode: "BIN-A001", TrackingID: "S-1"})
	require.NoError(t, err)

	res, err := f.svc.Reconcile(ctx, f.admin, ReconcileRequest{TrackingIDs: []string{"S-1"}, Mode: "STATUS", Intent: "registered"})
	require.NoError(t, err)
	assert.Equal(t, []string{"S-1"}, res.Report.UpdatedIDs)

	_, err = f.svc.Reconcile(ctx, f.admin, ReconcileRequest{TrackingIDs: []string{"S-1"}, Mode: "status", Intent: "lost"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestUploadErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reconcile(context.Background(), f.admin, ReconcileRequest{
		File: &Upload{Filename: "empty.csv", Data: []byte("Tracking ID\n")},
	})
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Equal(t, "file", core.FieldOf(err))

	_, err = f.svc.LookupPicklist(context.Background(), f.admin, PicklistRequest{
		File: &Upload{Filename: "p.json", Data: []byte("{")},
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestAssign_FromPicklistFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Reconcile(ctx, f.admin, ReconcileRequest{TrackingIDs: []string{"P-1", "P-2", "P-3", "P-4"}})
	require.NoError(t, err)

	pick := &Upload{Filename: "picklist.txt", Data: []byte("P-1\nP-2\nP-3\nP-4\nP-404\n")}
	lookup, err := f.svc.LookupPicklist(ctx, f.admin, PicklistRequest{File: pick})
	require.NoError(t, err)
	assert.Len(t, lookup.Found, 4)
	assert.Equal(t, []string{"P-404"}, lookup.NotFound)

	res, err := f.svc.Assign(ctx, f.admin, AssignRequest{Target: "auto", File: pick})
	require.NoError(t, err)
	assert.Equal(t, 4, res.AssignedCount)
	assert.Equal(t, map[string]int{"OP-1": 2, "OP-2": 1, "OP-3": 1}, res.PerOperatorCounts)

	ops, err := f.svc.ListOperators(ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, ops.Operators, 3)
	assert.Equal(t, 2, ops.Operators[0].Open)
}

func TestListBins(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ListBins(context.Background(), core.Actor{WarehouseID: "WH2"})
	require.NoError(t, err)
	assert.Len(t, res.Bins, 2)
}

func TestBuild(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Blob.Driver = config.BlobFS
	cfg.Blob.FSRoot = t.TempDir()
	rt, err := Build(ctx, cfg, nil)
	require.NoError(t, err)

	_, err = seed.Apply(ctx, rt.Store, seed.Default())
	require.NoError(t, err)
	res, err := rt.Service.Reconcile(ctx, core.Actor{OperatorID: "ADM-1", WarehouseID: "WH1"}, ReconcileRequest{TrackingIDs: []string{"B-1"}})
	require.NoError(t, err)
	require.NotNil(t, res.Log)
	assert.FileExists(t, filepath.Join(cfg.Blob.FSRoot, filepath.FromSlash(res.Log.Key)))

	require.NoError(t, rt.Close())
}

func TestBuild_RejectsMisconfiguredAudit(t *testing.T) {
	defer goleak.VerifyNone(t)
	cfg := config.DefaultConfig()
	cfg.Audit.Sinks = []string{config.SinkPostgres}
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "requires the postgres store driver")

	cfg.Audit.Sinks = []string{"carrier-pigeon"}
	_, err = Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown audit sink")
}

func TestBuild_FailuresCloseWhatWasOpened(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	// A regular file where a directory is expected makes the open fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	t.Run("store", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.SQLitePath = filepath.Join(blocker, "w.db")

		var (
			rt  *Runtime
			err error
		)
		require.NotPanics(t, func() { rt, err = Build(ctx, cfg, nil) })
		assert.Nil(t, rt)
		assert.ErrorContains(t, err, "open store")
	})

	t.Run("report store after audit", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Blob.Driver = config.BlobFS
		cfg.Blob.FSRoot = filepath.Join(blocker, "reports")

		var (
			rt  *Runtime
			err error
		)
		require.NotPanics(t, func() { rt, err = Build(ctx, cfg, nil) })
		assert.Nil(t, rt)
		assert.ErrorContains(t, err, "open report store")
	})
}
