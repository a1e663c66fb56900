package app

import (
	"warehouse-ops/internal/blob"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/reports"
)

// BinListResult holds the bins of a warehouse.
type BinListResult struct {
	WarehouseID string             `json:"warehouse_id"`
	Bins        []core.BinSnapshot `json:"bins"`
}

// ReconcileResult is a reconciliation report plus the archived upload log, if any.
type ReconcileResult struct {
	Report *core.ReconcileReport `json:"report"`
	Log    *reports.Saved        `json:"log,omitempty"`
}

// ReportListResult holds archived upload logs, oldest first.
type ReportListResult struct {
	WarehouseID string      `json:"warehouse_id"`
	Reports     []blob.Info `json:"reports"`
}

// OperatorListResult holds eligible operators and their open work.
type OperatorListResult struct {
	WarehouseID string              `json:"warehouse_id"`
	Operators   []core.OperatorLoad `json:"operators"`
}
