package app

import (
	"context"

	"warehouse-ops/internal/core"
)

// Upload is a tracking-ID file sent with a manifest or picklist request.
type Upload struct {
	Filename string // extension selects the parser: .csv, .json, .txt
	Data     []byte
}

// ApplicationService is the single interface all adapters (REPL, CLI, Web) call.
// It decouples presentation from the engine. Implementations contain no
// display logic; every method takes the caller's Actor explicitly.
type ApplicationService interface {
	// ValidateBin returns the bin's occupancy after checking it exists in the actor's warehouse.
	ValidateBin(ctx context.Context, actor core.Actor, binCode string) (*core.BinSnapshot, error)

	// BinContents returns the bin together with the shipments referencing it.
	BinContents(ctx context.Context, actor core.Actor, binCode string) (*core.BinContents, error)

	// ListBins returns every bin of the actor's warehouse with its occupancy.
	ListBins(ctx context.Context, actor core.Actor) (*BinListResult, error)

	// Putaway stores a shipment in a bin, creating it if it was never manifested.
	Putaway(ctx context.Context, actor core.Actor, req PutawayRequest) (*core.PutawayResult, error)

	// Pickup marks a stored shipment picked after a matching confirmation scan.
	Pickup(ctx context.Context, actor core.Actor, req ScanRequest) (*core.PickupResult, error)

	// Dispatch releases every picked shipment of a bin after a matching bin scan.
	Dispatch(ctx context.Context, actor core.Actor, req DispatchRequest) (*core.DispatchResult, error)

	// DispatchSingle releases one stored or picked shipment after a matching scan.
	DispatchSingle(ctx context.Context, actor core.Actor, req ScanRequest) (*core.DispatchResult, error)

	// Assign distributes shipments to one operator or round-robin across all eligible ones.
	Assign(ctx context.Context, actor core.Actor, req AssignRequest) (*core.AssignResult, error)

	// Reconcile diffs a manifest or status file against the ledger and
	// archives the rendered upload log when a report store is configured.
	Reconcile(ctx context.Context, actor core.Actor, req ReconcileRequest) (*ReconcileResult, error)

	// ListManifestReports returns the archived upload logs of the actor's warehouse.
	ListManifestReports(ctx context.Context, actor core.Actor) (*ReportListResult, error)

	// LookupPicklist splits a picklist into known and unknown shipments.
	LookupPicklist(ctx context.Context, actor core.Actor, req PicklistRequest) (*core.PicklistLookup, error)

	// SearchShipment returns one shipment of the actor's warehouse.
	SearchShipment(ctx context.Context, actor core.Actor, trackingID string) (*core.Shipment, error)

	// ListOperators returns eligible operators with their open assignment counts.
	ListOperators(ctx context.Context, actor core.Actor) (*OperatorListResult, error)

	// WarehouseStats summarizes bin utilization and shipment statuses.
	WarehouseStats(ctx context.Context, actor core.Actor) (*core.WarehouseStats, error)
}
