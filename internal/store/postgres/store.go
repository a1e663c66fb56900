// Package postgres implements the ledger on PostgreSQL. Bins are locked with
// SELECT ... FOR UPDATE; shipments with a transaction-scoped advisory lock so
// that a not-yet-existing tracking ID can be locked before it is inserted.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"warehouse-ops/internal/core"
)

const defaultLockTimeout = 2 * time.Second

// Store implements core.Store and core.Seeder on a pgx pool.
type Store struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var (
	_ core.Store  = (*Store)(nil)
	_ core.Seeder = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, lockTimeout: defaultLockTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the underlying pool for collaborators that share the database.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

const (
	warehouseColumns = `id, name, location, is_active`
	binColumns       = `code, warehouse_id, location, capacity, status`
	operatorColumns  = `id, name, warehouse_id, role, is_active`
	shipmentColumns  = `tracking_id, warehouse_id, bin_code, status, was_manifested, assigned_to,
		time_in, time_out, created_at, updated_at`
)

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *Store) GetWarehouse(ctx context.Context, id string) (*core.Warehouse, error) {
	var w core.Warehouse
	err := s.pool.QueryRow(ctx, "SELECT "+warehouseColumns+" FROM warehouses WHERE id = $1", id).
		Scan(&w.ID, &w.Name, &w.Location, &w.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.WarehouseNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get warehouse %s: %w", id, err)
	}
	return &w, nil
}

func (s *Store) GetBin(ctx context.Context, code string) (*core.Bin, error) {
	return getBin(ctx, s.pool, code, "")
}

func (s *Store) ListBins(ctx context.Context, warehouseID string) ([]core.Bin, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+binColumns+" FROM bins WHERE ($1::text = '' OR warehouse_id = $1) ORDER BY code", warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bins: %w", err)
	}
	defer rows.Close()

	var out []core.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) GetShipment(ctx context.Context, warehouseID, trackingID string) (*core.Shipment, error) {
	return getShipment(ctx, s.pool, warehouseID, trackingID, "")
}

func (s *Store) ListShipments(ctx context.Context, f core.ShipmentFilter) ([]core.Shipment, error) {
	var where []string
	var args []any
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("warehouse_id", f.WarehouseID)
	add("bin_code", f.BinCode)
	add("status", string(f.Status))
	add("assigned_to", f.AssignedTo)

	query := "SELECT " + shipmentColumns + " FROM shipments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY warehouse_id, tracking_id"
	return queryShipments(ctx, s.pool, query, args...)
}

func (s *Store) ListOperators(ctx context.Context, warehouseID string) ([]core.Operator, error) {
	return listOperators(ctx, s.pool, warehouseID)
}

// ── Administration ────────────────────────────────────────────────────────────

func (s *Store) UpsertWarehouse(ctx context.Context, w core.Warehouse) error {
	if w.ID == "" {
		return fmt.Errorf("warehouse id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO warehouses (id, name, location, is_active) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location, is_active = EXCLUDED.is_active`,
		w.ID, w.Name, w.Location, w.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert warehouse %s: %w", w.ID, err)
	}
	return nil
}

func (s *Store) UpsertBin(ctx context.Context, b core.Bin) error {
	if b.Status == "" {
		b.Status = core.BinAvailable
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if _, err := s.GetWarehouse(ctx, b.WarehouseID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bins (code, warehouse_id, location, capacity, status) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET warehouse_id = EXCLUDED.warehouse_id, location = EXCLUDED.location,
			capacity = EXCLUDED.capacity, status = EXCLUDED.status`,
		b.Code, b.WarehouseID, b.Location, b.Capacity, string(b.Status))
	if err != nil {
		return fmt.Errorf("failed to upsert bin %s: %w", b.Code, err)
	}
	return nil
}

func (s *Store) UpsertOperator(ctx context.Context, o core.Operator) error {
	if o.ID == "" {
		return fmt.Errorf("operator id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO operators (id, name, warehouse_id, role, is_active) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, warehouse_id = EXCLUDED.warehouse_id,
			role = EXCLUDED.role, is_active = EXCLUDED.is_active`,
		o.ID, o.Name, o.WarehouseID, string(o.Role), o.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert operator %s: %w", o.ID, err)
	}
	return nil
}

// ── Transactions ──────────────────────────────────────────────────────────────

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify("begin transaction", err)
	}
	defer pgtx.Rollback(ctx)

	if _, err := pgtx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)",
		fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
		return classify("set lock_timeout", err)
	}

	t := &tx{tx: pgtx, locked: map[string]core.Status{}}
	if err := fn(ctx, t); err != nil {
		return classify("transaction", err)
	}
	if err := pgtx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

// Postgres error codes that indicate a retryable race rather than a bug.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// classify turns transient Postgres failures into core contention errors.
// Engine errors pass through untouched.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeUniqueViolation:
		return core.Contention(op, err)
	}
	return err
}

// ── Row helpers ───────────────────────────────────────────────────────────────

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBin(ctx context.Context, q querier, code, suffix string) (*core.Bin, error) {
	b, err := scanBin(q.QueryRow(ctx, "SELECT "+binColumns+" FROM bins WHERE code = $1"+suffix, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.BinNotFound(code)
	}
	return b, err
}

func scanBin(row pgx.Row) (*core.Bin, error) {
	var b core.Bin
	var status string
	if err := row.Scan(&b.Code, &b.WarehouseID, &b.Location, &b.Capacity, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan bin: %w", err)
	}
	b.Status = core.BinStatus(status)
	return &b, nil
}

func getShipment(ctx context.Context, q querier, warehouseID, trackingID, suffix string) (*core.Shipment, error) {
	sh, err := scanShipment(q.QueryRow(ctx,
		"SELECT "+shipmentColumns+" FROM shipments WHERE warehouse_id = $1 AND tracking_id = $2"+suffix,
		warehouseID, trackingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ShipmentNotFound(warehouseID, trackingID)
	}
	return sh, err
}

func queryShipments(ctx context.Context, q querier, query string, args ...any) ([]core.Shipment, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer rows.Close()

	var out []core.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sh)
	}
	return out, rows.Err()
}

func scanShipment(row pgx.Row) (*core.Shipment, error) {
	var sh core.Shipment
	var binCode, assignedTo *string
	var status string
	err := row.Scan(&sh.TrackingID, &sh.WarehouseID, &binCode, &status, &sh.WasManifested, &assignedTo,
		&sh.TimeIn, &sh.TimeOut, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan shipment: %w", err)
	}
	sh.Status = core.Status(status)
	if binCode != nil {
		sh.BinCode = *binCode
	}
	if assignedTo != nil {
		sh.AssignedTo = *assignedTo
	}
	return &sh, nil
}

func listOperators(ctx context.Context, q querier, warehouseID string) ([]core.Operator, error) {
	rows, err := q.Query(ctx, "SELECT "+operatorColumns+" FROM operators WHERE ($1::text = '' OR warehouse_id = $1) ORDER BY id", warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	defer rows.Close()

	var out []core.Operator
	for rows.Next() {
		var o core.Operator
		var role string
		if err := rows.Scan(&o.ID, &o.Name, &o.WarehouseID, &role, &o.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		o.Role = core.Role(role)
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
