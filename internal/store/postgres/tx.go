package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"warehouse-ops/internal/core"
)

type tx struct {
	tx pgx.Tx
	// locked maps every shipment key locked in this transaction to its
	// status at lock time; "" when the shipment did not exist.
	locked map[string]core.Status
}

var _ core.Tx = (*tx)(nil)

func (t *tx) LockBin(ctx context.Context, code string) (*core.Bin, error) {
	return getBin(ctx, t.tx, code, " FOR UPDATE")
}

func (t *tx) LockShipment(ctx context.Context, warehouseID, trackingID string) (*core.Shipment, error) {
	key := core.ShipmentKey(warehouseID, trackingID)
	if _, err := t.tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", "shipment:"+key); err != nil {
		return nil, fmt.Errorf("failed to lock shipment %s: %w", key, err)
	}
	sh, err := getShipment(ctx, t.tx, warehouseID, trackingID, " FOR UPDATE")
	if errors.Is(err, core.ErrShipmentNotFound) {
		if _, seen := t.locked[key]; !seen {
			t.locked[key] = ""
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	t.locked[key] = sh.Status
	return sh, nil
}

func (t *tx) BinShipments(ctx context.Context, code string) ([]core.Shipment, error) {
	return queryShipments(ctx, t.tx,
		"SELECT "+shipmentColumns+" FROM shipments WHERE bin_code = $1 ORDER BY warehouse_id, tracking_id", code)
}

func (t *tx) Operators(ctx context.Context, warehouseID string) ([]core.Operator, error) {
	return listOperators(ctx, t.tx, warehouseID)
}

func (t *tx) InsertShipment(ctx context.Context, sh core.Shipment) error {
	key := sh.Key()
	prev, ok := t.locked[key]
	if !ok {
		return fmt.Errorf("insert shipment %s: lock not held", key)
	}
	if prev != "" {
		return core.Contention("insert shipment", fmt.Errorf("shipment %s already exists", key))
	}
	if err := t.checkRefs(ctx, sh); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO shipments (`+shipmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sh.TrackingID, sh.WarehouseID, nullable(sh.BinCode), string(sh.Status), sh.WasManifested,
		nullable(sh.AssignedTo), sh.TimeIn, sh.TimeOut, sh.CreatedAt, sh.UpdatedAt)
	if err != nil {
		return classify("insert shipment", fmt.Errorf("failed to insert shipment %s: %w", key, err))
	}
	t.locked[key] = sh.Status
	return nil
}

func (t *tx) UpdateShipment(ctx context.Context, sh core.Shipment) error {
	key := sh.Key()
	prev, ok := t.locked[key]
	if !ok {
		return fmt.Errorf("update shipment %s: lock not held", key)
	}
	if prev == "" {
		return core.ShipmentNotFound(sh.WarehouseID, sh.TrackingID)
	}
	if !prev.CanAdvanceTo(sh.Status) {
		return fmt.Errorf("update shipment %s: status cannot move from %s to %s", key, prev, sh.Status)
	}
	if err := t.checkRefs(ctx, sh); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		UPDATE shipments
		SET bin_code = $3, status = $4, was_manifested = $5, assigned_to = $6,
		    time_in = $7, time_out = $8, updated_at = $9
		WHERE warehouse_id = $1 AND tracking_id = $2`,
		sh.WarehouseID, sh.TrackingID, nullable(sh.BinCode), string(sh.Status), sh.WasManifested,
		nullable(sh.AssignedTo), sh.TimeIn, sh.TimeOut, sh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update shipment %s: %w", key, err)
	}
	t.locked[key] = sh.Status
	return nil
}

func (t *tx) checkRefs(ctx context.Context, sh core.Shipment) error {
	var exists bool
	if err := t.tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM warehouses WHERE id = $1)", sh.WarehouseID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check warehouse %s: %w", sh.WarehouseID, err)
	}
	if !exists {
		return core.WarehouseNotFound(sh.WarehouseID)
	}
	if sh.BinCode == "" {
		return nil
	}
	bin, err := getBin(ctx, t.tx, sh.BinCode, "")
	if err != nil {
		return err
	}
	return core.CheckBinReference(sh, bin)
}
