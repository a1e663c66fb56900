// Package reports renders reconciliation outcomes as downloadable CSV and
// archives them in blob storage.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"warehouse-ops/internal/blob"
	"warehouse-ops/internal/core"
)

const (
	detailCreated = "Successfully created new shipment record"
	detailUpdated = "Successfully updated existing shipment record"
)

// RenderCSV writes the summary block followed by one row per reported tracking ID.
func RenderCSV(r *core.ReconcileReport, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Upload Summary - %s\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Warehouse: %s\n", r.WarehouseID)
	fmt.Fprintf(&buf, "Mode: %s\n", r.Mode)
	fmt.Fprintf(&buf, "Total Processed: %d\n", r.TotalProcessed)
	fmt.Fprintf(&buf, "Created: %d\n", r.CreatedCount)
	fmt.Fprintf(&buf, "Updated: %d\n", r.UpdatedCount)
	fmt.Fprintf(&buf, "Failed: %d\n\n", r.FailedCount)

	w := csv.NewWriter(&buf)
	rows := [][]string{{"Tracking ID", "Status", "Details"}}
	for _, id := range r.CreatedIDs {
		rows = append(rows, []string{id, "Created", detailCreated})
	}
	for _, id := range r.UpdatedIDs {
		rows = append(rows, []string{id, "Updated", detailUpdated})
	}
	for _, f := range r.Failed {
		reason := f.Reason
		if reason == "" {
			reason = "Unknown error"
		}
		rows = append(rows, []string{f.TrackingID, "Failed", strings.ReplaceAll(reason, ",", ";")})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write report csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Saved locates an archived report. URL is empty when the blob driver
// cannot presign.
type Saved struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// Archive stores rendered reports under manifests/<warehouse>/.
type Archive struct {
	store      blob.Store
	presignTTL time.Duration
	now        func() time.Time
}

func NewArchive(store blob.Store, presignTTL time.Duration) *Archive {
	return &Archive{store: store, presignTTL: presignTTL, now: func() time.Time { return time.Now().UTC() }}
}

func (a *Archive) Save(ctx context.Context, r *core.ReconcileReport) (*Saved, error) {
	at := a.now()
	data, err := RenderCSV(r, at)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("manifests/%s/%s-%s.csv", r.WarehouseID, at.Format("20060102T150405Z"), uuid.NewString())
	if _, err := a.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "text/csv; charset=utf-8",
		Metadata:    map[string]string{"warehouse": r.WarehouseID, "mode": string(r.Mode)},
	}); err != nil {
		return nil, fmt.Errorf("archive report: %w", err)
	}

	saved := &Saved{Key: key}
	url, err := a.store.PresignURL(ctx, key, a.presignTTL)
	switch {
	case err == nil:
		saved.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return nil, fmt.Errorf("presign report: %w", err)
	}
	return saved, nil
}

// List returns the archived reports of a warehouse, oldest first.
func (a *Archive) List(ctx context.Context, warehouseID string) ([]blob.Info, error) {
	return a.store.List(ctx, "manifests/"+warehouseID+"/")
}
