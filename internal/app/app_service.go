package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"warehouse-ops/internal/core"
	"warehouse-ops/internal/manifest"
	"warehouse-ops/internal/reports"
)

// Observer records the outcome and latency of each facade call.
type Observer interface {
	Observe(op string, err error, d time.Duration)
}

// Deps are the collaborators of the application service.
type Deps struct {
	Store   core.Store
	Options core.Options
	Retry   RetryPolicy
	Metrics Observer         // optional
	Archive *reports.Archive // optional; nil skips archiving upload logs
}

type appService struct {
	putaway   core.PutawayService
	scan      core.ScanService
	assign    core.AssignmentService
	reconcile core.ReconcileService
	inventory core.InventoryService
	archive   *reports.Archive
	retry     RetryPolicy
	metrics   Observer
	log       *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(d Deps) ApplicationService {
	log := d.Options.Logger
	if log == nil {
		log = zap.NewNop()
		d.Options.Logger = log
	}
	return &appService{
		putaway:   core.NewPutawayService(d.Store, d.Options),
		scan:      core.NewScanService(d.Store, d.Options),
		assign:    core.NewAssignmentService(d.Store, d.Options),
		reconcile: core.NewReconcileService(d.Store, d.Options),
		inventory: core.NewInventoryService(d.Store),
		archive:   d.Archive,
		retry:     d.Retry.normalized(),
		metrics:   d.Metrics,
		log:       log,
	}
}

// observe is deferred by every operation with the operation's final error.
func (s *appService) observe(op string, actor core.Actor, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(op, err, time.Since(start))
	}
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("warehouse", actor.WarehouseID),
		zap.String("operator", actor.OperatorID),
		zap.String("code", string(core.CodeOf(err))),
		zap.Error(err),
	}
	switch core.KindOf(err) {
	case core.KindInternal:
		s.log.Error("operation failed", fields...)
	case core.KindContention:
		s.log.Warn("operation contended", fields...)
	default:
		s.log.Debug("operation rejected", fields...)
	}
}

func (s *appService) ValidateBin(ctx context.Context, actor core.Actor, binCode string) (_ *core.BinSnapshot, err error) {
	defer func(start time.Time) { s.observe("validate_bin", actor, start, err) }(time.Now())
	return s.putaway.ValidateBin(ctx, actor, binCode)
}

func (s *appService) BinContents(ctx context.Context, actor core.Actor, binCode string) (_ *core.BinContents, err error) {
	defer func(start time.Time) { s.observe("bin_contents", actor, start, err) }(time.Now())
	return s.inventory.BinContents(ctx, actor, binCode)
}

func (s *appService) ListBins(ctx context.Context, actor core.Actor) (_ *BinListResult, err error) {
	defer func(start time.Time) { s.observe("list_bins", actor, start, err) }(time.Now())
	bins, err := s.inventory.ListBins(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &BinListResult{WarehouseID: actor.WarehouseID, Bins: bins}, nil
}

func (s *appService) Putaway(ctx context.Context, actor core.Actor, req PutawayRequest) (_ *core.PutawayResult, err error) {
	defer func(start time.Time) { s.observe("putaway", actor, start, err) }(time.Now())
	return withRetry(ctx, s.retry, func() (*core.PutawayResult, error) {
		return s.putaway.Putaway(ctx, actor, req.BinCode, req.TrackingID)
	})
}

func (s *appService) Pickup(ctx context.Context, actor core.Actor, req ScanRequest) (_ *core.PickupResult, err error) {
	defer func(start time.Time) { s.observe("pickup", actor, start, err) }(time.Now())
	return withRetry(ctx, s.retry, func() (*core.PickupResult, error) {
		return s.scan.Pickup(ctx, actor, req.TrackingID, req.ExpectedTrackingID)
	})
}

func (s *appService) Dispatch(ctx context.Context, actor core.Actor, req DispatchRequest) (_ *core.DispatchResult, err error) {
	defer func(start time.Time) { s.observe("dispatch", actor, start, err) }(time.Now())
	return withRetry(ctx, s.retry, func() (*core.DispatchResult, error) {
		return s.scan.Dispatch(ctx, actor, req.BinCode, req.ExpectedBinCode)
	})
}

func (s *appService) DispatchSingle(ctx context.Context, actor core.Actor, req ScanRequest) (_ *core.DispatchResult, err error) {
	defer func(start time.Time) { s.observe("dispatch_single", actor, start, err) }(time.Now())
	return withRetry(ctx, s.retry, func() (*core.DispatchResult, error) {
		return s.scan.DispatchSingle(ctx, actor, req.TrackingID, req.ExpectedTrackingID)
	})
}

func (s *appService) Assign(ctx context.Context, actor core.Actor, req AssignRequest) (_ *core.AssignResult, err error) {
	defer func(start time.Time) { s.observe("assign", actor, start, err) }(time.Now())
	ids, err := trackingIDs(req.TrackingIDs, req.File)
	if err != nil {
		return nil, err
	}
	return withRetry(ctx, s.retry, func() (*core.AssignResult, error) {
		return s.assign.Assign(ctx, actor, core.AssignRequest{TrackingIDs: ids, Target: req.Target})
	})
}

// Reconcile is not retried as a whole: each item already runs in its own
// transaction and a re-run would double-count occurrences.
func (s *appService) Reconcile(ctx context.Context, actor core.Actor, req ReconcileRequest) (_ *ReconcileResult, err error) {
	defer func(start time.Time) { s.observe("reconcile", actor, start, err) }(time.Now())
	ids, err := trackingIDs(req.TrackingIDs, req.File)
	if err != nil {
		return nil, err
	}
	report, err := s.reconcile.Reconcile(ctx, actor, core.ReconcileRequest{
		TrackingIDs: ids,
		Mode:        core.ReconcileMode(req.Mode),
		Intent:      core.StatusIntent(req.Intent),
	})
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{Report: report}
	if s.archive != nil {
		saved, err := s.archive.Save(ctx, report)
		if err != nil {
			// The ledger is already updated; a missing log must not fail the upload.
			s.log.Warn("archive upload log failed", zap.String("warehouse", actor.WarehouseID), zap.Error(err))
		} else {
			res.Log = saved
		}
	}
	return res, nil
}

func (s *appService) ListManifestReports(ctx context.Context, actor core.Actor) (_ *ReportListResult, err error) {
	defer func(start time.Time) { s.observe("list_reports", actor, start, err) }(time.Now())
	res := &ReportListResult{WarehouseID: actor.WarehouseID}
	if s.archive == nil {
		return res, nil
	}
	if _, err := s.inventory.GetWarehouse(ctx, actor); err != nil {
		return nil, err
	}
	res.Reports, err = s.archive.List(ctx, actor.WarehouseID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *appService) LookupPicklist(ctx context.Context, actor core.Actor, req PicklistRequest) (_ *core.PicklistLookup, err error) {
	defer func(start time.Time) { s.observe("picklist_lookup", actor, start, err) }(time.Now())
	ids, err := trackingIDs(req.TrackingIDs, req.File)
	if err != nil {
		return nil, err
	}
	return s.inventory.PicklistLookup(ctx, actor, ids)
}

func (s *appService) SearchShipment(ctx context.Context, actor core.Actor, trackingID string) (_ *core.Shipment, err error) {
	defer func(start time.Time) { s.observe("search_shipment", actor, start, err) }(time.Now())
	return s.inventory.SearchShipment(ctx, actor, trackingID)
}

func (s *appService) ListOperators(ctx context.Context, actor core.Actor) (_ *OperatorListResult, err error) {
	defer func(start time.Time) { s.observe("list_operators", actor, start, err) }(time.Now())
	loads, err := s.inventory.ListOperators(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &OperatorListResult{WarehouseID: actor.WarehouseID, Operators: loads}, nil
}

func (s *appService) WarehouseStats(ctx context.Context, actor core.Actor) (_ *core.WarehouseStats, err error) {
	defer func(start time.Time) { s.observe("warehouse_stats", actor, start, err) }(time.Now())
	return s.inventory.WarehouseStats(ctx, actor)
}

// trackingIDs prefers an uploaded file over inline IDs.
func trackingIDs(inline []string, file *Upload) ([]string, error) {
	if file == nil {
		return inline, nil
	}
	ids, err := manifest.ParseFile(file.Filename, file.Data)
	if err != nil {
		return nil, core.InvalidInput("file", err)
	}
	return ids, nil
}
