package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/app"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/seed"
	"warehouse-ops/internal/store/memory"
)

func newService(t *testing.T) (app.ApplicationService, *memory.Store) {
	t.Helper()
	st := memory.New(memory.WithLockTimeout(time.Second))
	_, err := seed.Apply(context.Background(), st, seed.Default())
	require.NoError(t, err)
	return app.NewAppService(app.Deps{Store: st}), st
}

func run(t *testing.T, svc app.ApplicationService, script ...string) string {
	t.Helper()
	var out bytes.Buffer
	actor := core.Actor{OperatorID: "OP-1", WarehouseID: "WH1", Role: core.RoleOperator}
	err := Run(context.Background(), svc, actor, strings.NewReader(strings.Join(script, "\n")+"\n"), &out)
	require.NoError(t, err)
	return out.String()
}

func TestScanSession(t *testing.T) {
	svc, st := newService(t)

	out := run(t, svc,
		"/putaway bin-b001",
		"PKG-1",
		"PKG-2",
		"/pickup",
		"PKG-1", "PKG-1",
		"/dispatch",
		"BIN-B001", "BIN-B001",
		"/exit",
	)

	assert.Contains(t, out, "Bin BIN-B001 selected (0/5 used).")
	assert.Contains(t, out, "Stored PKG-2 in BIN-B001 (2/5). Not on any manifest.")
	assert.Contains(t, out, "Picked PKG-1 from BIN-B001.")
	assert.Contains(t, out, "Dispatched 1 package(s) from BIN-B001: PKG-1")
	assert.Contains(t, out, "Goodbye!")

	sh, err := st.GetShipment(context.Background(), "WH1", "PKG-2")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPutaway, sh.Status)
}

func TestScanSession_MismatchIsReported(t *testing.T) {
	svc, st := newService(t)

	out := run(t, svc,
		"/putaway BIN-A001", "PKG-1",
		"/pickup", "PKG-1", "PKG-9",
		"/done", "PKG-1",
	)
	assert.Contains(t, out, "MISMATCH:")
	assert.Contains(t, out, "Not scanning.")

	sh, err := st.GetShipment(context.Background(), "WH1", "PKG-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPutaway, sh.Status)
}

func TestScanSession_Lookups(t *testing.T) {
	svc, _ := newService(t)

	out := run(t, svc,
		"/putaway BIN-A001", "PKG-1", "/done",
		"/bin BIN-A001",
		"/search pkg-1",
		"/stats",
		"/bin BIN-NOPE",
		"/frobnicate",
	)
	assert.Contains(t, out, "BIN BIN-A001")
	assert.Contains(t, out, "STATUS:      putaway")
	assert.Contains(t, out, "Capacity      : 1 of 30 used (3.3%)")
	assert.Contains(t, out, "Error [BIN_NOT_FOUND]")
	assert.Contains(t, out, "Unknown command: /frobnicate")
}
