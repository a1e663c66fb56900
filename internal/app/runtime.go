package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"warehouse-ops/internal/audit"
	"warehouse-ops/internal/blob"
	"warehouse-ops/internal/config"
	"warehouse-ops/internal/core"
	"warehouse-ops/internal/metrics"
	"warehouse-ops/internal/reports"
	"warehouse-ops/internal/store"
)

// Runtime is a fully wired application: ledger, audit pipeline, report
// archive, metrics and the service facade on top.
type Runtime struct {
	Config  *config.Config
	Log     *zap.Logger
	Store   store.Ledger
	Metrics *metrics.Recorder
	Service ApplicationService

	audit   *audit.Async
	closers []func() error
}

// Build opens every collaborator named by cfg. On error, whatever was
// already opened is closed again.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *Runtime, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	rt := &Runtime{Config: cfg, Log: log, Metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	rt.Store, err = store.Open(ctx, cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, rt.Store.Close)

	pub, err := rt.publishers(cfg.Audit)
	if err != nil {
		return nil, err
	}
	rt.audit = audit.NewAsync(pub, cfg.Audit.Buffer, log, audit.OnDrop(rt.Metrics.AuditDropped))

	var archive *reports.Archive
	if cfg.Blob.Driver != "" && cfg.Blob.Driver != config.BlobNone {
		bs, err := blob.Open(ctx, blob.Config{
			Driver: cfg.Blob.Driver,
			FSRoot: cfg.Blob.FSRoot,
			S3: blob.S3Config{
				Region:    cfg.Blob.S3Region,
				Bucket:    cfg.Blob.S3Bucket,
				Endpoint:  cfg.Blob.S3Endpoint,
				PathStyle: cfg.Blob.S3PathStyle,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("open report store: %w", err)
		}
		archive = reports.NewArchive(bs, cfg.Blob.PresignTTL)
		log.Info("archiving upload logs", zap.String("driver", bs.Driver()))
	}

	rt.Service = NewAppService(Deps{
		Store:   rt.Store,
		Options: core.Options{Audit: rt.audit, Logger: log},
		Retry: RetryPolicy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
		Metrics: rt.Metrics,
		Archive: archive,
	})
	return rt, nil
}

func (rt *Runtime) publishers(cfg config.AuditConfig) (audit.Multi, error) {
	var pub audit.Multi
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkLog:
			pub = append(pub, audit.NewLogSink(rt.Log))
		case config.SinkKafka:
			k := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
			rt.closers = append(rt.closers, k.Close)
			pub = append(pub, k)
		case config.SinkPostgres:
			pool := store.PoolOf(rt.Store)
			if pool == nil {
				return nil, fmt.Errorf("audit sink %q requires the postgres store driver", name)
			}
			pub = append(pub, audit.NewPostgresSink(pool))
		default:
			return nil, fmt.Errorf("unknown audit sink %q", name)
		}
	}
	return pub, nil
}

// Close drains the audit buffer first, then closes sinks and the store in
// reverse opening order.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.audit != nil {
		errs = append(errs, rt.audit.Close())
		if n := rt.audit.Dropped(); n > 0 {
			rt.Log.Warn("audit entries dropped", zap.Int64("count", n))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	rt.closers = nil
	return errors.Join(errs...)
}
