package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// AutoAssign is the Assign target that spreads work across all eligible operators.
const AutoAssign = "AUTO"

// AssignmentService distributes pending shipments across operators.
type AssignmentService interface {
	// Assign sets the assignment reference of every listed shipment. With
	// Target == AutoAssign the sorted batch is dealt round-robin over the
	// sorted eligible operators; otherwise every shipment goes to Target.
	// Prior assignments are overwritten.
	Assign(ctx context.Context, actor Actor, req AssignRequest) (*AssignResult, error)
}

// AssignRequest names the shipments to assign and the target operator or AutoAssign.
type AssignRequest struct {
	TrackingIDs []string
	Target      string
}

// Assignment is one realized shipment-to-operator pairing.
type Assignment struct {
	TrackingID string `json:"tracking_id"`
	OperatorID string `json:"operator_id"`
}

// SkippedItem is a listed shipment that could not be assigned.
type SkippedItem struct {
	TrackingID string `json:"tracking_id"`
	Reason     string `json:"reason"`
}

// AssignResult reports the realized distribution.
type AssignResult struct {
	Auto              bool           `json:"auto"`
	AssignedCount     int            `json:"assigned_count"`
	PerOperatorCounts map[string]int `json:"per_operator_counts"`
	Assignments       []Assignment   `json:"assignments"`
	Skipped           []SkippedItem  `json:"skipped,omitempty"`
}

type assignmentService struct {
	store Store
	opts  Options
}

func NewAssignmentService(store Store, opts Options) AssignmentService {
	return &assignmentService{store: store, opts: opts.withDefaults()}
}

func (s *assignmentService) Assign(ctx context.Context, actor Actor, req AssignRequest) (*AssignResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	target := strings.TrimSpace(req.Target)
	if target == "" {
		return nil, invalid("target", "target is required")
	}
	auto := strings.EqualFold(target, AutoAssign)

	ids, rejected := uniqueIDs(req.TrackingIDs)
	if len(ids) == 0 && len(rejected) == 0 {
		return nil, invalid("tracking_ids", "tracking_ids is required")
	}

	var result AssignResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		result = AssignResult{Auto: auto, PerOperatorCounts: map[string]int{}}
		result.Skipped = append(result.Skipped, rejected...)

		directory, err := tx.Operators(ctx, actor.WarehouseID)
		if err != nil {
			return fmt.Errorf("failed to load operator directory: %w", err)
		}
		operators := eligibleOperators(directory)

		if auto {
			if len(operators) == 0 {
				return newError(ErrNoOperators, "warehouse %s has no eligible operators", actor.WarehouseID)
			}
			for _, op := range operators {
				result.PerOperatorCounts[op.ID] = 0
			}
		} else {
			if !containsOperator(operators, target) {
				return newError(ErrUnknownOperator, "operator %s is not an active operator of warehouse %s", target, actor.WarehouseID)
			}
			result.PerOperatorCounts[target] = 0
		}

		next := 0
		for _, id := range ids {
			sh, err := tx.LockShipment(ctx, actor.WarehouseID, id)
			if errors.Is(err, ErrShipmentNotFound) {
				result.Skipped = append(result.Skipped, SkippedItem{TrackingID: id, Reason: "shipment not found"})
				continue
			}
			if err != nil {
				return err
			}
			if sh.Status.AtLeast(StatusDispatched) {
				result.Skipped = append(result.Skipped, SkippedItem{TrackingID: id, Reason: "shipment already " + string(sh.Status)})
				continue
			}

			operatorID := target
			if auto {
				operatorID = operators[next%len(operators)].ID
				next++
			}
			sh.AssignedTo = operatorID
			sh.UpdatedAt = s.opts.Now()
			if err := tx.UpdateShipment(ctx, *sh); err != nil {
				return err
			}
			result.Assignments = append(result.Assignments, Assignment{TrackingID: id, OperatorID: operatorID})
			result.PerOperatorCounts[operatorID]++
		}
		result.AssignedCount = len(result.Assignments)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range result.Assignments {
		s.opts.Audit.Record(ctx, AuditEntry{
			WarehouseID: actor.WarehouseID,
			TrackingID:  a.TrackingID,
			Action:      AuditAssigned,
			Actor:       actor.Name(),
			Details:     "assigned to " + a.OperatorID,
			At:          s.opts.Now(),
		})
	}
	s.opts.Logger.Debug("assign",
		zap.String("warehouse", actor.WarehouseID),
		zap.Bool("auto", auto),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("skipped", len(result.Skipped)),
	)
	return &result, nil
}

// uniqueIDs normalizes, drops empties, collapses duplicates and sorts the IDs.
// Malformed IDs come back as skipped items.
func uniqueIDs(raw []string) ([]string, []SkippedItem) {
	seen := make(map[string]bool, len(raw))
	var ids []string
	var rejected []SkippedItem
	for _, r := range raw {
		if NormalizeID(r) == "" {
			continue
		}
		id, err := ParseTrackingID("tracking_id", r)
		if err != nil {
			rejected = append(rejected, SkippedItem{TrackingID: NormalizeID(r), Reason: err.Error()})
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, rejected
}

// eligibleOperators filters the directory to active OPERATOR entries sorted by ID.
func eligibleOperators(directory []Operator) []Operator {
	var out []Operator
	for _, op := range directory {
		if op.Eligible() {
			out = append(out, op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsOperator(ops []Operator, id string) bool {
	for _, op := range ops {
		if op.ID == id {
			return true
		}
	}
	return false
}
