package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// InventoryService answers read-only questions about bins, shipments and operators.
// None of its methods take locks; results reflect committed state.
type InventoryService interface {
	GetWarehouse(ctx context.Context, actor Actor) (*Warehouse, error)
	SearchShipment(ctx context.Context, actor Actor, trackingID string) (*Shipment, error)
	BinContents(ctx context.Context, actor Actor, binCode string) (*BinContents, error)
	ListBins(ctx context.Context, actor Actor) ([]BinSnapshot, error)
	// PicklistLookup checks which tracking IDs of a picklist exist in the warehouse.
	PicklistLookup(ctx context.Context, actor Actor, trackingIDs []string) (*PicklistLookup, error)
	// WarehouseStats computes bin utilization and the shipment status distribution.
	WarehouseStats(ctx context.Context, actor Actor) (*WarehouseStats, error)
	// ListOperators returns the eligible operators with their open workload.
	ListOperators(ctx context.Context, actor Actor) ([]OperatorLoad, error)
}

type inventoryService struct {
	store Store
}

func NewInventoryService(store Store) InventoryService {
	return &inventoryService{store: store}
}

func (s *inventoryService) GetWarehouse(ctx context.Context, actor Actor) (*Warehouse, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	return s.store.GetWarehouse(ctx, actor.WarehouseID)
}

func (s *inventoryService) SearchShipment(ctx context.Context, actor Actor, trackingID string) (*Shipment, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	id, err := ParseTrackingID("tracking_id", trackingID)
	if err != nil {
		return nil, err
	}
	return s.store.GetShipment(ctx, actor.WarehouseID, id)
}

func (s *inventoryService) BinContents(ctx context.Context, actor Actor, binCode string) (*BinContents, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	code, err := ParseBinCode("bin_code", binCode)
	if err != nil {
		return nil, err
	}
	bin, err := s.store.GetBin(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkBinWarehouse(bin, actor); err != nil {
		return nil, err
	}
	shipments, err := s.store.ListShipments(ctx, ShipmentFilter{WarehouseID: actor.WarehouseID, BinCode: code})
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments of bin %s: %w", code, err)
	}
	return &BinContents{Bin: snapshotOf(*bin, shipments), Shipments: shipments}, nil
}

func (s *inventoryService) ListBins(ctx context.Context, actor Actor) ([]BinSnapshot, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	bins, err := s.store.ListBins(ctx, actor.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	shipments, err := s.store.ListShipments(ctx, ShipmentFilter{WarehouseID: actor.WarehouseID})
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	return snapshots(bins, shipments), nil
}

func (s *inventoryService) PicklistLookup(ctx context.Context, actor Actor, trackingIDs []string) (*PicklistLookup, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	ids, rejected := uniqueIDs(trackingIDs)
	out := &PicklistLookup{}
	for _, r := range rejected {
		out.NotFound = append(out.NotFound, r.TrackingID)
	}
	for _, id := range ids {
		sh, err := s.store.GetShipment(ctx, actor.WarehouseID, id)
		if errors.Is(err, ErrShipmentNotFound) {
			out.NotFound = append(out.NotFound, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Found = append(out.Found, *sh)
	}
	return out, nil
}

func (s *inventoryService) WarehouseStats(ctx context.Context, actor Actor) (*WarehouseStats, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	bins, err := s.store.ListBins(ctx, actor.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	shipments, err := s.store.ListShipments(ctx, ShipmentFilter{WarehouseID: actor.WarehouseID})
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}

	stats := &WarehouseStats{
		WarehouseID:     actor.WarehouseID,
		TotalBins:       len(bins),
		TotalShipments:  len(shipments),
		StatusCounts:    make(map[Status]int, len(statusRank)),
		UtilizationRate: decimal.Zero,
	}
	for _, st := range Statuses() {
		stats.StatusCounts[st] = 0
	}
	for _, sh := range shipments {
		stats.StatusCounts[sh.Status]++
	}
	for _, snap := range snapshots(bins, shipments) {
		stats.TotalCapacity += snap.Capacity
		stats.UsedCapacity += snap.Used
		if snap.Used > 0 {
			stats.BinsInUse++
		}
		if snap.Status == BinAvailable && !snap.Full() {
			stats.AvailableBins++
		}
	}
	if stats.TotalCapacity > 0 {
		stats.UtilizationRate = decimal.NewFromInt(int64(stats.UsedCapacity)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.TotalCapacity))).
			Round(1)
	}
	return stats, nil
}

func (s *inventoryService) ListOperators(ctx context.Context, actor Actor) ([]OperatorLoad, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	directory, err := s.store.ListOperators(ctx, actor.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	shipments, err := s.store.ListShipments(ctx, ShipmentFilter{WarehouseID: actor.WarehouseID})
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	open := map[string]int{}
	for _, sh := range shipments {
		if sh.AssignedTo != "" && !sh.Status.AtLeast(StatusDispatched) {
			open[sh.AssignedTo]++
		}
	}

	var out []OperatorLoad
	for _, op := range eligibleOperators(directory) {
		out = append(out, OperatorLoad{Operator: op, Open: open[op.ID]})
	}
	return out, nil
}

// snapshots computes every bin's occupancy in a single pass over the shipments.
func snapshots(bins []Bin, shipments []Shipment) []BinSnapshot {
	byBin := map[string][]Shipment{}
	for _, sh := range shipments {
		if sh.BinCode != "" {
			byBin[sh.BinCode] = append(byBin[sh.BinCode], sh)
		}
	}
	out := make([]BinSnapshot, 0, len(bins))
	for _, b := range bins {
		out = append(out, snapshotOf(b, byBin[b.Code]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
