package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the transactional ledger of bins and shipments.
// Reads outside RunInTx observe committed state only.
type Store interface {
	GetWarehouse(ctx context.Context, id string) (*Warehouse, error)
	GetBin(ctx context.Context, code string) (*Bin, error)
	ListBins(ctx context.Context, warehouseID string) ([]Bin, error)
	GetShipment(ctx context.Context, warehouseID, trackingID string) (*Shipment, error)
	ListShipments(ctx context.Context, filter ShipmentFilter) ([]Shipment, error)
	ListOperators(ctx context.Context, warehouseID string) ([]Operator, error)

	// RunInTx runs fn in a single-writer transaction. Locks taken through tx
	// are held until fn returns; writes become visible only if fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close() error
}

// Tx is the mutation surface available inside RunInTx.
// Callers lock a bin before any shipment of that bin.
type Tx interface {
	// LockBin takes the per-bin lock and returns the bin.
	LockBin(ctx context.Context, code string) (*Bin, error)
	// LockShipment takes the per-shipment lock. The lock is held even when
	// the shipment does not exist yet, in which case ErrShipmentNotFound is returned.
	LockShipment(ctx context.Context, warehouseID, trackingID string) (*Shipment, error)
	// BinShipments returns every shipment currently referencing the bin.
	BinShipments(ctx context.Context, code string) ([]Shipment, error)
	// Operators returns one consistent snapshot of the warehouse's operator directory.
	Operators(ctx context.Context, warehouseID string) ([]Operator, error)
	InsertShipment(ctx context.Context, s Shipment) error
	UpdateShipment(ctx context.Context, s Shipment) error
}

// Seeder is the administrative write surface used by fixtures and tests.
type Seeder interface {
	UpsertWarehouse(ctx context.Context, w Warehouse) error
	UpsertBin(ctx context.Context, b Bin) error
	UpsertOperator(ctx context.Context, o Operator) error
}

// AuditSink receives audit entries. It must not block the caller for long
// and never reports failures back to the engine.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, AuditEntry) {}

// Options carries the collaborators shared by the engine services.
type Options struct {
	Audit  AuditSink
	Now    func() time.Time
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Audit == nil {
		o.Audit = nopAudit{}
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// CheckBinReference verifies that a shipment's bin reference points to an
// existing bin in the shipment's warehouse. Stores call it before writes.
func CheckBinReference(s Shipment, bin *Bin) error {
	if s.BinCode == "" {
		return nil
	}
	if bin == nil {
		return BinNotFound(s.BinCode)
	}
	if bin.WarehouseID != s.WarehouseID {
		return newError(ErrWrongWarehouse, "bin %s belongs to warehouse %s, shipment %s to %s",
			bin.Code, bin.WarehouseID, s.TrackingID, s.WarehouseID)
	}
	return nil
}
