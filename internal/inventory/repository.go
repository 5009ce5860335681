package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ostrovmarket/fulfillment/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	RecordForUpdate(ctx context.Context, warehouseID, variationID int64) (Record, error)
	UpsertRecord(ctx context.Context, rec Record) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	WarehouseExists(ctx context.Context, id int64) (bool, error)
}

// ErrRecordNotFound indicates a missing inventory record row.
var ErrRecordNotFound = errors.New("inventory record not found")

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so other modules (the
// planner) can run ledger operations inside their own unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// QuantityAt returns the stock count, zero when the record is absent.
func (r *Repository) QuantityAt(ctx context.Context, warehouseID, variationID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx,
		`SELECT qty FROM inventory_records WHERE warehouse_id = $1 AND variation_id = $2`,
		warehouseID, variationID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

// VariationByBarcode resolves a barcode to its variation.
func (r *Repository) VariationByBarcode(ctx context.Context, barcode string) (Variation, error) {
	var v Variation
	err := r.pool.QueryRow(ctx,
		`SELECT id, sku, name, barcode FROM variations WHERE barcode = $1`,
		barcode).Scan(&v.ID, &v.SKU, &v.Name, &v.Barcode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variation{}, ErrNotFound
		}
		return Variation{}, err
	}
	return v, nil
}

// QuantitiesFor lists per-warehouse quantities for a variation.
func (r *Repository) QuantitiesFor(ctx context.Context, variationID int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT warehouse_id, qty FROM inventory_records WHERE variation_id = $1`,
		variationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]int64)
	for rows.Next() {
		var warehouseID, qty int64
		if err := rows.Scan(&warehouseID, &qty); err != nil {
			return nil, err
		}
		result[warehouseID] = qty
	}
	return result, rows.Err()
}

// Warehouse loads warehouse master data.
func (r *Repository) Warehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, address, lat, lon, lead_time_days, delivery_cost
		 FROM warehouses WHERE id = $1`,
		id).Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Lat, &w.Lon, &w.LeadTimeDays, &w.DeliveryCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrInvalidWarehouse
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *txRepo) RecordForUpdate(ctx context.Context, warehouseID, variationID int64) (Record, error) {
	var rec Record
	err := r.tx.QueryRow(ctx,
		`SELECT warehouse_id, variation_id, qty, updated_at
		 FROM inventory_records
		 WHERE warehouse_id = $1 AND variation_id = $2
		 FOR UPDATE`,
		warehouseID, variationID).Scan(&rec.WarehouseID, &rec.VariationID, &rec.Qty, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{WarehouseID: warehouseID, VariationID: variationID}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *txRepo) UpsertRecord(ctx context.Context, rec Record) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO inventory_records (warehouse_id, variation_id, qty, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (warehouse_id, variation_id)
		 DO UPDATE SET qty = EXCLUDED.qty, updated_at = NOW()`,
		rec.WarehouseID, rec.VariationID, rec.Qty)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO stock_movements
		 (code, kind, variation_id, src_warehouse_id, dst_warehouse_id, qty, ref_module, ref_id, note, posted_at, created_by)
		 VALUES ($1, $2, $3, NULLIF($4, 0), NULLIF($5, 0), $6, $7, $8, $9, $10, NULLIF($11, 0))
		 RETURNING id`,
		m.Code, string(m.Kind), m.VariationID, m.SrcWarehouseID, m.DstWarehouseID,
		m.Qty, m.RefModule, m.RefID, m.Note, m.PostedAt, m.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepo) WarehouseExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM warehouses WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
