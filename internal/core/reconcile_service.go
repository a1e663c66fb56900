package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ReconcileMode selects how existing shipments are treated.
type ReconcileMode string

const (
	// ModeManifest registers expected shipments; shipments that already
	// progressed past manifested are rejected.
	ModeManifest ReconcileMode = "manifest"
	// ModeStatus applies a status intent to existing shipments.
	ModeStatus ReconcileMode = "status"
)

// StatusIntent is what a status-reconciliation file asserts about each shipment.
type StatusIntent string

const (
	IntentRegistered StatusIntent = "registered"
	IntentDelivered  StatusIntent = "delivered"
)

// Outcome of one reconciled tracking ID.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
)

const (
	ReasonProgressedBeyondManifest = "already progressed beyond manifest stage"
	ReasonNotYetDispatched         = "not yet dispatched"
	ReasonInvalidTrackingID        = "invalid tracking id"
)

// ReconcileRequest is one uploaded batch.
type ReconcileRequest struct {
	TrackingIDs []string
	Mode        ReconcileMode
	Intent      StatusIntent
}

// ReconcileItem is the outcome of one processed occurrence, in input order.
type ReconcileItem struct {
	TrackingID string  `json:"tracking_id"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
}

// FailedItem is a tracking ID that could not be reconciled.
type FailedItem struct {
	TrackingID string `json:"tracking_id"`
	Reason     string `json:"reason"`
}

// ReconcileReport partitions a batch. ID lists hold each tracking ID once,
// under the outcome of its last occurrence; counts tally every processed
// occurrence so TotalProcessed == CreatedCount + UpdatedCount + FailedCount.
type ReconcileReport struct {
	WarehouseID    string          `json:"warehouse_id"`
	Mode           ReconcileMode   `json:"mode"`
	Intent         StatusIntent    `json:"intent,omitempty"`
	CreatedIDs     []string        `json:"created_ids"`
	UpdatedIDs     []string        `json:"updated_ids"`
	Failed         []FailedItem    `json:"failed_ids"`
	CreatedCount   int             `json:"created_count"`
	UpdatedCount   int             `json:"updated_count"`
	FailedCount    int             `json:"failed_count"`
	TotalProcessed int             `json:"total_processed"`
	Items          []ReconcileItem `json:"items"`
}

// ReconcileService diffs a batch of tracking IDs against the ledger.
type ReconcileService interface {
	// Reconcile processes every non-empty ID in order, each in its own
	// transaction. Item failures land in the report; only an invalid request
	// fails the call.
	Reconcile(ctx context.Context, actor Actor, req ReconcileRequest) (*ReconcileReport, error)
}

type reconcileService struct {
	store Store
	opts  Options
}

func NewReconcileService(store Store, opts Options) ReconcileService {
	return &reconcileService{store: store, opts: opts.withDefaults()}
}

// ParseMode accepts "manifest" or "status"; empty means manifest.
func ParseMode(s string) (ReconcileMode, error) {
	switch m := ReconcileMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeManifest, nil
	case ModeManifest, ModeStatus:
		return m, nil
	}
	return "", invalid("mode", "unknown reconcile mode %q", s)
}

// ParseIntent accepts "registered" or "delivered"; empty means registered.
func ParseIntent(s string) (StatusIntent, error) {
	switch i := StatusIntent(strings.ToLower(strings.TrimSpace(s))); i {
	case "":
		return IntentRegistered, nil
	case IntentRegistered, IntentDelivered:
		return i, nil
	}
	return "", invalid("intent", "unknown status intent %q", s)
}

func (s *reconcileService) Reconcile(ctx context.Context, actor Actor, req ReconcileRequest) (*ReconcileReport, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	var intent StatusIntent
	if mode == ModeStatus {
		if intent, err = ParseIntent(string(req.Intent)); err != nil {
			return nil, err
		}
	}
	if _, err := s.store.GetWarehouse(ctx, actor.WarehouseID); err != nil {
		return nil, err
	}

	report := &ReconcileReport{WarehouseID: actor.WarehouseID, Mode: mode, Intent: intent}
	last := map[string]int{}
	for _, raw := range req.TrackingIDs {
		if NormalizeID(raw) == "" {
			continue
		}
		item := s.processItem(ctx, actor, mode, intent, raw)
		report.Items = append(report.Items, item)
		last[item.TrackingID] = len(report.Items) - 1

		switch item.Outcome {
		case OutcomeCreated:
			report.CreatedCount++
		case OutcomeUpdated:
			report.UpdatedCount++
		default:
			report.FailedCount++
		}
	}
	report.TotalProcessed = len(report.Items)

	for i, item := range report.Items {
		if last[item.TrackingID] != i {
			continue
		}
		switch item.Outcome {
		case OutcomeCreated:
			report.CreatedIDs = append(report.CreatedIDs, item.TrackingID)
		case OutcomeUpdated:
			report.UpdatedIDs = append(report.UpdatedIDs, item.TrackingID)
		default:
			report.Failed = append(report.Failed, FailedItem{TrackingID: item.TrackingID, Reason: item.Reason})
		}
	}

	s.opts.Logger.Info("reconcile",
		zap.String("warehouse", actor.WarehouseID),
		zap.String("mode", string(mode)),
		zap.Int("total", report.TotalProcessed),
		zap.Int("created", report.CreatedCount),
		zap.Int("updated", report.UpdatedCount),
		zap.Int("failed", report.FailedCount),
	)
	return report, nil
}

// processItem never returns an error: every failure, including a panic in a
// store, becomes a failed item.
func (s *reconcileService) processItem(ctx context.Context, actor Actor, mode ReconcileMode, intent StatusIntent, raw string) (item ReconcileItem) {
	item.TrackingID = NormalizeID(raw)
	defer func() {
		if r := recover(); r != nil {
			item.Outcome = OutcomeFailed
			item.Reason = fmt.Sprintf("internal error: %v", r)
			s.opts.Logger.Error("reconcile item panicked", zap.String("tracking_id", item.TrackingID), zap.Any("panic", r))
		}
	}()

	id, err := ParseTrackingID("tracking_id", raw)
	if err != nil {
		item.Outcome, item.Reason = OutcomeFailed, ReasonInvalidTrackingID+": "+err.Error()
		return item
	}

	var outcome Outcome
	var action AuditAction
	var reason string
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		outcome, action, reason = "", "", ""
		now := s.opts.Now()

		sh, err := tx.LockShipment(ctx, actor.WarehouseID, id)
		if errors.Is(err, ErrShipmentNotFound) {
			outcome, action = OutcomeCreated, AuditManifested
			return tx.InsertShipment(ctx, Shipment{
				TrackingID:    id,
				WarehouseID:   actor.WarehouseID,
				Status:        StatusManifested,
				WasManifested: true,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if err != nil {
			return err
		}

		switch mode {
		case ModeManifest:
			if sh.Status != StatusManifested {
				outcome, reason = OutcomeFailed, ReasonProgressedBeyondManifest
				return nil
			}
			sh.WasManifested = true
			action = AuditUpdated
		case ModeStatus:
			switch intent {
			case IntentDelivered:
				if !sh.Status.AtLeast(StatusDispatched) {
					outcome, reason = OutcomeFailed, ReasonNotYetDispatched
					return nil
				}
				if sh.Status == StatusDispatched {
					sh.Status = StatusDelivered
				}
				action = AuditDelivered
			default:
				sh.WasManifested = true
				action = AuditUpdated
			}
		}
		outcome = OutcomeUpdated
		sh.UpdatedAt = now
		return tx.UpdateShipment(ctx, *sh)
	})
	if err != nil {
		item.Outcome, item.Reason = OutcomeFailed, err.Error()
		return item
	}

	item.TrackingID, item.Outcome, item.Reason = id, outcome, reason
	if outcome != OutcomeFailed {
		s.opts.Audit.Record(ctx, AuditEntry{
			WarehouseID: actor.WarehouseID,
			TrackingID:  id,
			Action:      action,
			Actor:       actor.Name(),
			Details:     fmt.Sprintf("%s via %s upload", outcome, mode),
			At:          s.opts.Now(),
		})
	}
	return item
}
