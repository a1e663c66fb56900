package memory

import (
	"context"
	"fmt"

	"warehouse-ops/internal/core"
)

// RunInTx runs fn with staged writes. Locks are released when fn returns;
// writes are applied atomically only when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{
		store:  s,
		held:   map[string]bool{},
		writes: map[string]core.Shipment{},
	}
	defer t.releaseAll()

	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

type tx struct {
	store  *Store
	order  []string
	held   map[string]bool
	writes map[string]core.Shipment
	done   bool
}

var _ core.Tx = (*tx)(nil)

func binLockKey(code string) string     { return "bin:" + code }
func shipmentLockKey(key string) string { return "shipment:" + key }

func (t *tx) holds(lockKey string) bool { return t.held[lockKey] }

// lock takes k once per transaction and remembers the acquisition order.
func (t *tx) lock(ctx context.Context, k string) error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	if t.held[k] {
		return nil
	}
	if err := t.store.locks.acquire(ctx, k, t.store.lockTimeout); err != nil {
		return err
	}
	t.held[k] = true
	t.order = append(t.order, k)
	return nil
}

func (t *tx) releaseAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
	t.order = nil
	t.held = map[string]bool{}
	t.done = true
}

func (t *tx) LockBin(ctx context.Context, code string) (*core.Bin, error) {
	if err := t.lock(ctx, binLockKey(code)); err != nil {
		return nil, err
	}
	return t.store.GetBin(ctx, code)
}

func (t *tx) LockShipment(ctx context.Context, warehouseID, trackingID string) (*core.Shipment, error) {
	key := core.ShipmentKey(warehouseID, trackingID)
	if err := t.lock(ctx, shipmentLockKey(key)); err != nil {
		return nil, err
	}
	if sh, ok := t.writes[key]; ok {
		return &sh, nil
	}
	return t.store.GetShipment(ctx, warehouseID, trackingID)
}

func (t *tx) BinShipments(_ context.Context, code string) ([]core.Shipment, error) {
	t.store.mu.RLock()
	var out []core.Shipment
	for key, sh := range t.store.shipments {
		if _, staged := t.writes[key]; staged {
			continue
		}
		if sh.BinCode == code {
			out = append(out, sh)
		}
	}
	t.store.mu.RUnlock()

	for _, sh := range t.writes {
		if sh.BinCode == code {
			out = append(out, sh)
		}
	}
	sortShipments(out)
	return out, nil
}

func (t *tx) Operators(_ context.Context, warehouseID string) ([]core.Operator, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.operatorsOf(warehouseID), nil
}

func (t *tx) InsertShipment(ctx context.Context, sh core.Shipment) error {
	key := sh.Key()
	if !t.holds(shipmentLockKey(key)) {
		return fmt.Errorf("insert shipment %s: lock not held", key)
	}
	if _, ok := t.writes[key]; ok {
		return core.Contention("insert shipment", fmt.Errorf("shipment %s already exists", key))
	}
	if _, err := t.store.GetShipment(ctx, sh.WarehouseID, sh.TrackingID); err == nil {
		return core.Contention("insert shipment", fmt.Errorf("shipment %s already exists", key))
	}
	if err := t.checkRefs(ctx, sh); err != nil {
		return err
	}
	t.writes[key] = sh
	return nil
}

func (t *tx) UpdateShipment(ctx context.Context, sh core.Shipment) error {
	key := sh.Key()
	if !t.holds(shipmentLockKey(key)) {
		return fmt.Errorf("update shipment %s: lock not held", key)
	}
	prev, ok := t.writes[key]
	if !ok {
		current, err := t.store.GetShipment(ctx, sh.WarehouseID, sh.TrackingID)
		if err != nil {
			return err
		}
		prev = *current
	}
	if !prev.Status.CanAdvanceTo(sh.Status) {
		return fmt.Errorf("update shipment %s: status cannot move from %s to %s", key, prev.Status, sh.Status)
	}
	if err := t.checkRefs(ctx, sh); err != nil {
		return err
	}
	t.writes[key] = sh
	return nil
}

func (t *tx) checkRefs(ctx context.Context, sh core.Shipment) error {
	if _, err := t.store.GetWarehouse(ctx, sh.WarehouseID); err != nil {
		return err
	}
	if sh.BinCode == "" {
		return nil
	}
	bin, err := t.store.GetBin(ctx, sh.BinCode)
	if err != nil {
		return err
	}
	return core.CheckBinReference(sh, bin)
}

func (t *tx) commit() error {
	if len(t.writes) == 0 {
		return nil
	}
	return t.store.mutate(func() func() {
		type prior struct {
			sh  core.Shipment
			had bool
		}
		undo := make(map[string]prior, len(t.writes))
		for key, sh := range t.writes {
			old, had := t.store.shipments[key]
			undo[key] = prior{old, had}
			t.store.shipments[key] = sh
		}
		return func() {
			for key, p := range undo {
				if p.had {
					t.store.shipments[key] = p.sh
				} else {
					delete(t.store.shipments, key)
				}
			}
		}
	})
}
