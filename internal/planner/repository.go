package planner

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
)

// Repository serves planning reads and part persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Warehouses lists every warehouse in priority order.
func (r *Repository) Warehouses(ctx context.Context) ([]inventory.Warehouse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, code, name, address, lat, lon, lead_time_days, delivery_cost
		 FROM warehouses
		 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Warehouse
	for rows.Next() {
		var w inventory.Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.Lat, &w.Lon, &w.LeadTimeDays, &w.DeliveryCost); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// AvailabilityFor loads stocked records for the given variations,
// keyed warehouse id then variation id.
func (r *Repository) AvailabilityFor(ctx context.Context, variationIDs []int64) (map[int64]map[int64]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT warehouse_id, variation_id, qty
		 FROM inventory_records
		 WHERE variation_id = ANY($1) AND qty > 0`,
		variationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64]map[int64]int64)
	for rows.Next() {
		var warehouseID, variationID, qty int64
		if err := rows.Scan(&warehouseID, &variationID, &qty); err != nil {
			return nil, err
		}
		if result[warehouseID] == nil {
			result[warehouseID] = make(map[int64]int64)
		}
		result[warehouseID][variationID] = qty
	}
	return result, rows.Err()
}

// InsertPartTx persists a delivery part with its items inside an open
// transaction.
func InsertPartTx(ctx context.Context, tx pgx.Tx, part Part) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO delivery_parts (order_id, warehouse_id, reason, eta, cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 RETURNING id`,
		part.OrderID, part.WarehouseID, part.Reason, part.ETA, part.Cost).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, item := range part.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO delivery_part_items (part_id, variation_id, qty) VALUES ($1, $2, $3)`,
			id, item.VariationID, item.Qty)
		if err != nil {
			return 0, err
		}
	}
	return id, nil
}
