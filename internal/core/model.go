package core

import (
	"fmt"
	"strings"
	"time"
)

// Status is a shipment's position in the forward-only lifecycle
// manifested < putaway < picked < dispatched < delivered.
type Status string

const (
	StatusManifested Status = "manifested"
	StatusPutaway    Status = "putaway"
	StatusPicked     Status = "picked"
	StatusDispatched Status = "dispatched"
	StatusDelivered  Status = "delivered"
)

var statusRank = map[Status]int{
	StatusManifested: 1,
	StatusPutaway:    2,
	StatusPicked:     3,
	StatusDispatched: 4,
	StatusDelivered:  5,
}

// Statuses returns the lifecycle vocabulary in order.
func Statuses() []Status {
	return []Status{StatusManifested, StatusPutaway, StatusPicked, StatusDispatched, StatusDelivered}
}

// ParseStatus converts a case-insensitive string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", invalid("status", "unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank is the position of s in the lifecycle; 0 for unknown values.
func (s Status) Rank() int { return statusRank[s] }

// AtLeast reports whether s has reached other in the lifecycle.
func (s Status) AtLeast(other Status) bool { return s.Rank() >= other.Rank() }

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s Status) CanAdvanceTo(next Status) bool {
	return next.Valid() && next.Rank() >= s.Rank()
}

// Occupying reports whether a shipment in this status holds a slot in its bin.
// Picked shipments keep their slot until dispatch clears the bin reference.
func (s Status) Occupying() bool {
	return s == StatusPutaway || s == StatusPicked
}

// Warehouse is read-only to the engine; it is maintained by administration.
type Warehouse struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// BinStatus is the administrative state of a bin. Occupancy is never stored here.
type BinStatus string

const (
	BinAvailable   BinStatus = "available"
	BinMaintenance BinStatus = "maintenance"
)

// Bin is a physical storage location identified by a global, upper-case code.
type Bin struct {
	Code        string    `json:"code" yaml:"code"`
	WarehouseID string    `json:"warehouse_id" yaml:"warehouse_id"`
	Location    string    `json:"location" yaml:"location"`
	Capacity    int       `json:"capacity" yaml:"capacity"`
	Status      BinStatus `json:"status" yaml:"status"`
}

// Validate checks the administrative invariants of a bin record.
func (b Bin) Validate() error {
	if b.Code == "" {
		return invalid("code", "bin code is required")
	}
	if b.WarehouseID == "" {
		return invalid("warehouse_id", "bin %s has no warehouse", b.Code)
	}
	if b.Capacity < 1 {
		return invalid("capacity", "bin %s capacity must be at least 1, got %d", b.Code, b.Capacity)
	}
	switch b.Status {
	case BinAvailable, BinMaintenance:
	default:
		return invalid("status", "bin %s has unknown status %q", b.Code, b.Status)
	}
	return nil
}

// Shipment is a package tracked by (WarehouseID, TrackingID).
// BinCode is empty when the shipment is not in a bin; AssignedTo is empty when unassigned.
type Shipment struct {
	TrackingID    string     `json:"tracking_id"`
	WarehouseID   string     `json:"warehouse_id"`
	BinCode       string     `json:"bin_code,omitempty"`
	Status        Status     `json:"status"`
	WasManifested bool       `json:"was_manifested"`
	AssignedTo    string     `json:"assigned_to,omitempty"`
	TimeIn        *time.Time `json:"time_in,omitempty"`
	TimeOut       *time.Time `json:"time_out,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Key identifies the shipment inside the ledger.
func (s Shipment) Key() string { return ShipmentKey(s.WarehouseID, s.TrackingID) }

// ShipmentKey builds the ledger key for a tracking ID within a warehouse.
func ShipmentKey(warehouseID, trackingID string) string {
	return warehouseID + "/" + trackingID
}

// ShipmentFilter narrows ListShipments. Zero-valued fields do not filter.
type ShipmentFilter struct {
	WarehouseID string
	BinCode     string
	Status      Status
	AssignedTo  string
}

// Match reports whether s satisfies every non-zero field of f.
func (f ShipmentFilter) Match(s Shipment) bool {
	if f.WarehouseID != "" && s.WarehouseID != f.WarehouseID {
		return false
	}
	if f.BinCode != "" && s.BinCode != f.BinCode {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.AssignedTo != "" && s.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

// AuditAction names a state transition written to the audit side channel.
type AuditAction string

const (
	AuditPutaway    AuditAction = "putaway"
	AuditPicked     AuditAction = "picked"
	AuditDispatched AuditAction = "dispatched"
	AuditAssigned   AuditAction = "assigned"
	AuditManifested AuditAction = "manifested"
	AuditUpdated    AuditAction = "updated"
	AuditDelivered  AuditAction = "delivered"
)

// AuditEntry is appended after every committed state transition.
type AuditEntry struct {
	ID          string      `json:"id"`
	WarehouseID string      `json:"warehouse_id"`
	TrackingID  string      `json:"tracking_id"`
	BinCode     string      `json:"bin_code,omitempty"`
	Action      AuditAction `json:"action"`
	Actor       string      `json:"actor"`
	Details     string      `json:"details,omitempty"`
	At          time.Time   `json:"at"`
}

func (e AuditEntry) String() string {
	return fmt.Sprintf("%s %s/%s by %s", e.Action, e.WarehouseID, e.TrackingID, e.Actor)
}
