package core

import (
	"github.com/shopspring/decimal"
)

// BinSnapshot is a read view of a bin with its live occupancy.
// Used counts shipments that still hold a slot (Stored + Staged).
type BinSnapshot struct {
	Code        string    `json:"code"`
	WarehouseID string    `json:"warehouse_id"`
	Location    string    `json:"location"`
	Status      BinStatus `json:"status"`
	Capacity    int       `json:"capacity"`
	Used        int       `json:"used"`
	Stored      int       `json:"stored"` // status putaway
	Staged      int       `json:"staged"` // status picked, awaiting dispatch
}

// Free is the number of slots still available for putaway.
func (b BinSnapshot) Free() int {
	if b.Used >= b.Capacity {
		return 0
	}
	return b.Capacity - b.Used
}

// Full reports whether a putaway into the bin would exceed its capacity.
func (b BinSnapshot) Full() bool { return b.Used >= b.Capacity }

// snapshotOf computes occupancy from the shipments currently referencing bin.
func snapshotOf(bin Bin, shipments []Shipment) BinSnapshot {
	snap := BinSnapshot{
		Code:        bin.Code,
		WarehouseID: bin.WarehouseID,
		Location:    bin.Location,
		Status:      bin.Status,
		Capacity:    bin.Capacity,
	}
	for _, s := range shipments {
		if s.BinCode != bin.Code {
			continue
		}
		switch s.Status {
		case StatusPutaway:
			snap.Stored++
		case StatusPicked:
			snap.Staged++
		}
	}
	snap.Used = snap.Stored + snap.Staged
	return snap
}

// BinContents is a bin snapshot together with the shipments referencing it.
type BinContents struct {
	Bin       BinSnapshot `json:"bin"`
	Shipments []Shipment  `json:"shipments"`
}

// WarehouseStats summarizes bin usage and the shipment status distribution.
type WarehouseStats struct {
	WarehouseID     string          `json:"warehouse_id"`
	TotalBins       int             `json:"total_bins"`
	BinsInUse       int             `json:"bins_in_use"`
	AvailableBins   int             `json:"available_bins"`
	TotalCapacity   int             `json:"total_capacity"`
	UsedCapacity    int             `json:"used_capacity"`
	UtilizationRate decimal.Decimal `json:"utilization_rate"` // percent, one decimal place
	TotalShipments  int             `json:"total_shipments"`
	StatusCounts    map[Status]int  `json:"status_counts"`
}

// OperatorLoad is an eligible operator with the number of open shipments assigned to them.
type OperatorLoad struct {
	Operator Operator `json:"operator"`
	Open     int      `json:"open"`
}

// PicklistLookup partitions a picklist into known and unknown tracking IDs.
type PicklistLookup struct {
	Found    []Shipment `json:"found"`
	NotFound []string   `json:"not_found"`
}
