package reports

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-ops/internal/blob"
	"warehouse-ops/internal/core"
)

func sampleReport() *core.ReconcileReport {
	return &core.ReconcileReport{
		WarehouseID:    "WH1",
		Mode:           core.ModeManifest,
		CreatedIDs:     []string{"BAD"},
		UpdatedIDs:     []string{"A1"},
		Failed:         []core.FailedItem{{TrackingID: "P1", Reason: "already progressed, beyond manifest"}},
		CreatedCount:   1,
		UpdatedCount:   1,
		FailedCount:    1,
		TotalProcessed: 3,
	}
}

func TestRenderCSV(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	out, err := RenderCSV(sampleReport(), at)
	require.NoError(t, err)

	want := strings.Join([]string{
		"Upload Summary - 2026-03-14T09:30:00Z",
		"Warehouse: WH1",
		"Mode: manifest",
		"Total Processed: 3",
		"Created: 1",
		"Updated: 1",
		"Failed: 1",
		"",
		"Tracking ID,Status,Details",
		"BAD,Created," + detailCreated,
		"A1,Updated," + detailUpdated,
		"P1,Failed,already progressed; beyond manifest",
		"",
	}, "\n")
	assert.Equal(t, want, string(out))
}

func TestArchive_Save(t *testing.T) {
	store := blob.NewMemory()
	a := NewArchive(store, time.Minute)
	a.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	saved, err := a.Save(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(saved.Key, "manifests/WH1/20260314T093000Z-"), saved.Key)
	assert.Empty(t, saved.URL, "memory driver cannot presign")

	_, rc, err := store.Get(context.Background(), saved.Key)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Total Processed: 3")

	list, err := a.List(context.Background(), "WH1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
