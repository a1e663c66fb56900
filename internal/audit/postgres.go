package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"warehouse-ops/internal/core"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends entries to the audit_log table.
type PostgresSink struct {
	db execer
}

// NewPostgresSink accepts a *pgxpool.Pool or any other pgx executor.
func NewPostgresSink(db execer) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Publish(ctx context.Context, e core.AuditEntry) error {
	var bin *string
	if e.BinCode != "" {
		bin = &e.BinCode
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_log (id, warehouse_id, tracking_id, bin_code, action, actor, details, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.WarehouseID, e.TrackingID, bin, string(e.Action), e.Actor, e.Details, e.At)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry %s: %w", e.ID, err)
	}
	return nil
}
