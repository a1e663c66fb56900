// Package memory is an in-process ledger with per-key locks and staged
// transactional writes. It backs tests, the CLI's scratch mode and the
// sqlite snapshot store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"warehouse-ops/internal/core"
)

const defaultLockTimeout = 2 * time.Second

// Snapshot is the full ledger state, used for persistence.
type Snapshot struct {
	Warehouses []core.Warehouse `json:"warehouses"`
	Bins       []core.Bin       `json:"bins"`
	Operators  []core.Operator  `json:"operators"`
	Shipments  []core.Shipment  `json:"shipments"`
}

// CommitHook runs after every committed write with the new state. Returning
// an error undoes the write.
type CommitHook func(Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a bin or shipment lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithCommitHook installs a hook run under the write lock after each commit.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.hook = h }
}

// Store implements core.Store and core.Seeder.
type Store struct {
	mu          sync.RWMutex
	warehouses  map[string]core.Warehouse
	bins        map[string]core.Bin
	operators   map[string]core.Operator
	shipments   map[string]core.Shipment
	locks       *keyedLocks
	lockTimeout time.Duration
	hook        CommitHook
}

var (
	_ core.Store  = (*Store)(nil)
	_ core.Seeder = (*Store)(nil)
)

func New(opts ...Option) *Store {
	s := &Store{
		warehouses:  map[string]core.Warehouse{},
		bins:        map[string]core.Bin{},
		operators:   map[string]core.Operator{},
		shipments:   map[string]core.Shipment{},
		locks:       newKeyedLocks(),
		lockTimeout: defaultLockTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetCommitHook replaces the commit hook. Used by stores that load state
// before they start persisting.
func (s *Store) SetCommitHook(h CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

func (s *Store) Close() error { return nil }

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *Store) GetWarehouse(_ context.Context, id string) (*core.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.warehouses[id]
	if !ok {
		return nil, core.WarehouseNotFound(id)
	}
	return &w, nil
}

func (s *Store) GetBin(_ context.Context, code string) (*core.Bin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bins[code]
	if !ok {
		return nil, core.BinNotFound(code)
	}
	return &b, nil
}

func (s *Store) ListBins(_ context.Context, warehouseID string) ([]core.Bin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Bin
	for _, b := range s.bins {
		if warehouseID == "" || b.WarehouseID == warehouseID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetShipment(_ context.Context, warehouseID, trackingID string) (*core.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shipments[core.ShipmentKey(warehouseID, trackingID)]
	if !ok {
		return nil, core.ShipmentNotFound(warehouseID, trackingID)
	}
	return &sh, nil
}

func (s *Store) ListShipments(_ context.Context, filter core.ShipmentFilter) ([]core.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Shipment
	for _, sh := range s.shipments {
		if filter.Match(sh) {
			out = append(out, sh)
		}
	}
	sortShipments(out)
	return out, nil
}

func (s *Store) ListOperators(_ context.Context, warehouseID string) ([]core.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operatorsOf(warehouseID), nil
}

func (s *Store) operatorsOf(warehouseID string) []core.Operator {
	var out []core.Operator
	for _, o := range s.operators {
		if warehouseID == "" || o.WarehouseID == warehouseID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ── Administration ────────────────────────────────────────────────────────────

func (s *Store) UpsertWarehouse(_ context.Context, w core.Warehouse) error {
	if w.ID == "" {
		return fmt.Errorf("warehouse id is required")
	}
	return s.mutate(func() func() {
		prev, had := s.warehouses[w.ID]
		s.warehouses[w.ID] = w
		return func() {
			if had {
				s.warehouses[w.ID] = prev
			} else {
				delete(s.warehouses, w.ID)
			}
		}
	})
}

func (s *Store) UpsertBin(_ context.Context, b core.Bin) error {
	if b.Status == "" {
		b.Status = core.BinAvailable
	}
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.RLock()
	_, ok := s.warehouses[b.WarehouseID]
	s.mu.RUnlock()
	if !ok {
		return core.WarehouseNotFound(b.WarehouseID)
	}
	return s.mutate(func() func() {
		prev, had := s.bins[b.Code]
		s.bins[b.Code] = b
		return func() {
			if had {
				s.bins[b.Code] = prev
			} else {
				delete(s.bins, b.Code)
			}
		}
	})
}

func (s *Store) UpsertOperator(_ context.Context, o core.Operator) error {
	if o.ID == "" {
		return fmt.Errorf("operator id is required")
	}
	return s.mutate(func() func() {
		prev, had := s.operators[o.ID]
		s.operators[o.ID] = o
		return func() {
			if had {
				s.operators[o.ID] = prev
			} else {
				delete(s.operators, o.ID)
			}
		}
	})
}

// mutate applies change under the write lock and runs the commit hook,
// undoing the change if the hook fails.
func (s *Store) mutate(change func() (undo func())) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	undo := change()
	if s.hook != nil {
		if err := s.hook(s.exportLocked()); err != nil {
			undo()
			return fmt.Errorf("persist state: %w", err)
		}
	}
	return nil
}

// ── Snapshots ─────────────────────────────────────────────────────────────────

// ExportState returns a deterministic copy of the whole ledger.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exportLocked()
}

func (s *Store) exportLocked() Snapshot {
	snap := Snapshot{Operators: s.operatorsOf("")}
	for _, w := range s.warehouses {
		snap.Warehouses = append(snap.Warehouses, w)
	}
	sort.Slice(snap.Warehouses, func(i, j int) bool { return snap.Warehouses[i].ID < snap.Warehouses[j].ID })
	for _, b := range s.bins {
		snap.Bins = append(snap.Bins, b)
	}
	sort.Slice(snap.Bins, func(i, j int) bool { return snap.Bins[i].Code < snap.Bins[j].Code })
	for _, sh := range s.shipments {
		snap.Shipments = append(snap.Shipments, sh)
	}
	sortShipments(snap.Shipments)
	return snap
}

// ImportState replaces the ledger with snap without running the commit hook.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warehouses = map[string]core.Warehouse{}
	s.bins = map[string]core.Bin{}
	s.operators = map[string]core.Operator{}
	s.shipments = map[string]core.Shipment{}
	for _, w := range snap.Warehouses {
		s.warehouses[w.ID] = w
	}
	for _, b := range snap.Bins {
		s.bins[b.Code] = b
	}
	for _, o := range snap.Operators {
		s.operators[o.ID] = o
	}
	for _, sh := range snap.Shipments {
		s.shipments[sh.Key()] = sh
	}
}

func sortShipments(list []core.Shipment) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].WarehouseID != list[j].WarehouseID {
			return list[i].WarehouseID < list[j].WarehouseID
		}
		return list[i].TrackingID < list[j].TrackingID
	})
}
