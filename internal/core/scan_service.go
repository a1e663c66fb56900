package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ScanService implements the declare-then-confirm handshake used for pickup
// and dispatch. A scanned identifier that differs from the declared one is
// always rejected with ErrMismatch before any state is read.
type ScanService interface {
	// Pickup claims a stored package. Exactly one of two concurrent pickups of
	// the same package succeeds; the other observes ErrAlreadyPicked.
	Pickup(ctx context.Context, actor Actor, trackingID, expectedTrackingID string) (*PickupResult, error)

	// Dispatch moves every picked package of a bin out of the warehouse, all or nothing.
	Dispatch(ctx context.Context, actor Actor, binCode, expectedBinCode string) (*DispatchResult, error)

	// DispatchSingle dispatches one stored or picked package.
	DispatchSingle(ctx context.Context, actor Actor, trackingID, expectedTrackingID string) (*DispatchResult, error)
}

// PickupResult is returned by a successful pickup.
type PickupResult struct {
	Shipment Shipment `json:"shipment"`
}

// DispatchResult is returned by Dispatch and DispatchSingle.
type DispatchResult struct {
	BinCode         string   `json:"bin_code"`
	DispatchedCount int      `json:"dispatched_count"`
	TrackingIDs     []string `json:"tracking_ids"`
}

type scanService struct {
	store Store
	opts  Options
}

func NewScanService(store Store, opts Options) ScanService {
	return &scanService{store: store, opts: opts.withDefaults()}
}

// verifyScan normalizes both identifiers and compares them.
func verifyScan(field, scanned, expected string, parse func(string, string) (string, error)) (string, error) {
	s, err := parse(field, scanned)
	if err != nil {
		return "", err
	}
	e, err := parse("expected_"+field, expected)
	if err != nil {
		return "", err
	}
	if s != e {
		return "", Mismatch(field, e, s)
	}
	return s, nil
}

func checkAssignment(s *Shipment, actor Actor) error {
	if s.AssignedTo == "" || s.AssignedTo == actor.OperatorID || actor.Role.CanOverrideAssignment() {
		return nil
	}
	return newError(ErrAssignedToOther, "shipment %s is assigned to operator %s", s.TrackingID, s.AssignedTo)
}

func (s *scanService) Pickup(ctx context.Context, actor Actor, trackingID, expectedTrackingID string) (*PickupResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	id, err := verifyScan("tracking_id", trackingID, expectedTrackingID, ParseTrackingID)
	if err != nil {
		return nil, err
	}

	var picked Shipment
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		sh, err := tx.LockShipment(ctx, actor.WarehouseID, id)
		if err != nil {
			return err
		}
		if sh.Status.AtLeast(StatusPicked) {
			return newError(ErrAlreadyPicked, "shipment %s is already %s", id, sh.Status)
		}
		if sh.Status != StatusPutaway || sh.BinCode == "" {
			return newError(ErrNotStored, "shipment %s has not been put away", id)
		}
		if err := checkAssignment(sh, actor); err != nil {
			return err
		}

		sh.Status = StatusPicked
		sh.UpdatedAt = s.opts.Now()
		if err := tx.UpdateShipment(ctx, *sh); err != nil {
			return err
		}
		picked = *sh
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		WarehouseID: actor.WarehouseID,
		TrackingID:  id,
		BinCode:     picked.BinCode,
		Action:      AuditPicked,
		Actor:       actor.Name(),
		Details:     fmt.Sprintf("picked from %s", picked.BinCode),
		At:          s.opts.Now(),
	})
	return &PickupResult{Shipment: picked}, nil
}

func (s *scanService) Dispatch(ctx context.Context, actor Actor, binCode, expectedBinCode string) (*DispatchResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	code, err := verifyScan("bin_code", binCode, expectedBinCode, ParseBinCode)
	if err != nil {
		return nil, err
	}

	var result DispatchResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		result = DispatchResult{BinCode: code}

		bin, err := tx.LockBin(ctx, code)
		if err != nil {
			return err
		}
		if err := checkBinWarehouse(bin, actor); err != nil {
			return err
		}

		occupants, err := tx.BinShipments(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to load bin %s occupants: %w", code, err)
		}

		now := s.opts.Now()
		for _, o := range occupants {
			if o.Status != StatusPicked {
				continue
			}
			sh, err := tx.LockShipment(ctx, o.WarehouseID, o.TrackingID)
			if err != nil {
				return err
			}
			if sh.Status != StatusPicked || sh.BinCode != code {
				continue
			}
			markDispatched(sh, now)
			if err := tx.UpdateShipment(ctx, *sh); err != nil {
				return err
			}
			result.TrackingIDs = append(result.TrackingIDs, sh.TrackingID)
		}

		if len(result.TrackingIDs) == 0 {
			return newError(ErrNoPickedPackages, "bin %s has no picked packages", code)
		}
		result.DispatchedCount = len(result.TrackingIDs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range result.TrackingIDs {
		s.opts.Audit.Record(ctx, AuditEntry{
			WarehouseID: actor.WarehouseID,
			TrackingID:  id,
			BinCode:     code,
			Action:      AuditDispatched,
			Actor:       actor.Name(),
			Details:     fmt.Sprintf("dispatched from %s", code),
			At:          s.opts.Now(),
		})
	}
	s.opts.Logger.Debug("dispatch",
		zap.String("warehouse", actor.WarehouseID),
		zap.String("bin", code),
		zap.Int("count", result.DispatchedCount),
	)
	return &result, nil
}

func (s *scanService) DispatchSingle(ctx context.Context, actor Actor, trackingID, expectedTrackingID string) (*DispatchResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	id, err := verifyScan("tracking_id", trackingID, expectedTrackingID, ParseTrackingID)
	if err != nil {
		return nil, err
	}

	// The bin lock must be taken before the shipment lock, so learn the bin first
	// and confirm it did not change once both locks are held.
	peek, err := s.store.GetShipment(ctx, actor.WarehouseID, id)
	if err != nil {
		return nil, err
	}
	if err := checkDispatchable(peek); err != nil {
		return nil, err
	}

	var result DispatchResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockBin(ctx, peek.BinCode); err != nil {
			return err
		}
		sh, err := tx.LockShipment(ctx, actor.WarehouseID, id)
		if err != nil {
			return err
		}
		if sh.BinCode != peek.BinCode {
			return Contention("dispatch single", fmt.Errorf("shipment %s moved from bin %s", id, peek.BinCode))
		}
		if err := checkDispatchable(sh); err != nil {
			return err
		}
		if err := checkAssignment(sh, actor); err != nil {
			return err
		}

		markDispatched(sh, s.opts.Now())
		if err := tx.UpdateShipment(ctx, *sh); err != nil {
			return err
		}
		result = DispatchResult{BinCode: peek.BinCode, DispatchedCount: 1, TrackingIDs: []string{id}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Audit.Record(ctx, AuditEntry{
		WarehouseID: actor.WarehouseID,
		TrackingID:  id,
		BinCode:     result.BinCode,
		Action:      AuditDispatched,
		Actor:       actor.Name(),
		Details:     "dispatched individually",
		At:          s.opts.Now(),
	})
	return &result, nil
}

func checkDispatchable(sh *Shipment) error {
	if sh.Status.AtLeast(StatusDispatched) {
		return newError(ErrAlreadyProcessed, "shipment %s is already %s", sh.TrackingID, sh.Status)
	}
	if !sh.Status.Occupying() || sh.BinCode == "" {
		return newError(ErrNotStored, "shipment %s has not been put away", sh.TrackingID)
	}
	return nil
}

// markDispatched moves a shipment out of the building: the bin and the
// assignment references are cleared.
func markDispatched(sh *Shipment, now time.Time) {
	sh.Status = StatusDispatched
	sh.TimeOut = &now
	sh.BinCode = ""
	sh.AssignedTo = ""
	sh.UpdatedAt = now
}
