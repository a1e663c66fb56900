package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// PutawayService enforces bin capacity while packages are scanned into storage.
type PutawayService interface {
	// ValidateBin is a read-only check used to lock a bin for a scanning session.
	// Bins under maintenance are refused.
	ValidateBin(ctx context.Context, actor Actor, binCode string) (*BinSnapshot, error)

	// Putaway places a scanned package into a bin. The capacity check and the
	// assignment run under the bin's lock, so concurrent scans into one bin
	// can never exceed its capacity.
	Putaway(ctx context.Context, actor Actor, binCode, trackingID string) (*PutawayResult, error)
}

// PutawayResult is returned by a successful putaway.
type PutawayResult struct {
	Shipment       Shipment `json:"shipment"`
	OccupancyUsed  int      `json:"occupancy_used"`
	OccupancyTotal int      `json:"occupancy_total"`
	WasManifested  bool     `json:"was_manifested"`
	// AlreadyStored is set when the package was already in this bin; nothing changed.
	AlreadyStored bool `json:"already_stored"`
}

type putawayService struct {
	store Store
	opts  Options
}

func NewPutawayService(store Store, opts Options) PutawayService {
	return &putawayService{store: store, opts: opts.withDefaults()}
}

func (s *putawayService) ValidateBin(ctx context.Context, actor Actor, binCode string) (*BinSnapshot, error) {
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
	if bin.Status == BinMaintenance {
		return nil, newError(ErrBinUnavailable, "bin %s is under maintenance", code)
	}

	shipments, err := s.store.ListShipments(ctx, ShipmentFilter{WarehouseID: actor.WarehouseID, BinCode: code})
	if err != nil {
		return nil, fmt.Errorf("failed to load bin %s contents: %w", code, err)
	}
	snap := snapshotOf(*bin, shipments)
	return &snap, nil
}

func (s *putawayService) Putaway(ctx context.Context, actor Actor, binCode, trackingID string) (*PutawayResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	code, err := ParseBinCode("bin_code", binCode)
	if err != nil {
		return nil, err
	}
	id, err := ParseTrackingID("tracking_id", trackingID)
	if err != nil {
		return nil, err
	}

	var result PutawayResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		result = PutawayResult{}

		bin, err := tx.LockBin(ctx, code)
		if err != nil {
			return err
		}
		if err := checkBinWarehouse(bin, actor); err != nil {
			return err
		}
		if bin.Status == BinMaintenance {
			return newError(ErrBinUnavailable, "bin %s is under maintenance", code)
		}

		occupants, err := tx.BinShipments(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to load bin %s occupants: %w", code, err)
		}
		snap := snapshotOf(*bin, occupants)

		shipment, err := tx.LockShipment(ctx, actor.WarehouseID, id)
		exists := err == nil
		if err != nil && !errors.Is(err, ErrShipmentNotFound) {
			return err
		}

		if exists {
			switch {
			case shipment.Status.AtLeast(StatusPicked):
				return newError(ErrAlreadyProcessed, "shipment %s is already %s", id, shipment.Status)
			case shipment.Status == StatusPutaway && shipment.BinCode == code:
				result = PutawayResult{
					Shipment:       *shipment,
					OccupancyUsed:  snap.Used,
					OccupancyTotal: snap.Capacity,
					WasManifested:  shipment.WasManifested,
					AlreadyStored:  true,
				}
				return nil
			case shipment.BinCode != "":
				return newError(ErrAlreadyOccupyingAnotherBin, "shipment %s already occupies bin %s", id, shipment.BinCode)
			}
		}

		if snap.Full() {
			return newError(ErrCapacityExceeded, "bin %s is full (%d/%d)", code, snap.Used, snap.Capacity)
		}

		now := s.opts.Now()
		if !exists {
			shipment = &Shipment{
				TrackingID:  id,
				WarehouseID: actor.WarehouseID,
				CreatedAt:   now,
			}
		}
		shipment.BinCode = code
		shipment.Status = StatusPutaway
		shipment.TimeIn = &now
		shipment.UpdatedAt = now

		if exists {
			err = tx.UpdateShipment(ctx, *shipment)
		} else {
			err = tx.InsertShipment(ctx, *shipment)
		}
		if err != nil {
			return err
		}

		result = PutawayResult{
			Shipment:       *shipment,
			OccupancyUsed:  snap.Used + 1,
			OccupancyTotal: snap.Capacity,
			WasManifested:  shipment.WasManifested,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyStored {
		s.opts.Audit.Record(ctx, AuditEntry{
			WarehouseID: actor.WarehouseID,
			TrackingID:  id,
			BinCode:     code,
			Action:      AuditPutaway,
			Actor:       actor.Name(),
			Details:     fmt.Sprintf("stored in %s (%d/%d)", code, result.OccupancyUsed, result.OccupancyTotal),
			At:          s.opts.Now(),
		})
	}
	s.opts.Logger.Debug("putaway",
		zap.String("warehouse", actor.WarehouseID),
		zap.String("bin", code),
		zap.String("tracking_id", id),
		zap.Int("used", result.OccupancyUsed),
		zap.Int("capacity", result.OccupancyTotal),
		zap.Bool("already_stored", result.AlreadyStored),
	)
	return &result, nil
}

func checkBinWarehouse(bin *Bin, actor Actor) error {
	if bin.WarehouseID != actor.WarehouseID {
		return newError(ErrWrongWarehouse, "bin %s does not belong to warehouse %s", bin.Code, actor.WarehouseID)
	}
	return nil
}
