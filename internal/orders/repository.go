package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ostrovmarket/fulfillment/internal/platform/db"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func (s *txStore) Tx() pgx.Tx {
	return s.tx
}

func (s *txStore) InsertOrder(ctx context.Context, order Order) (Order, error) {
	err := s.tx.QueryRow(ctx,
		`INSERT INTO orders (number, payment_method, total_amount, status, address, lat, lon, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		order.Number, order.PaymentMethod, order.TotalAmount, string(order.Status),
		order.Address, order.Lat, order.Lon, order.CreatedAt).
		Scan(&order.ID)
	if err != nil {
		return Order{}, err
	}
	for _, line := range order.Lines {
		_, err := s.tx.Exec(ctx,
			`INSERT INTO order_lines (order_id, variation_id, qty) VALUES ($1, $2, $3)`,
			order.ID, line.VariationID, line.Qty)
		if err != nil {
			return Order{}, err
		}
	}
	return order, nil
}

func (s *txStore) SetETA(ctx context.Context, orderID int64, eta time.Time) error {
	_, err := s.tx.Exec(ctx, `UPDATE orders SET eta = $1 WHERE id = $2`, eta, orderID)
	return err
}

// Get loads an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	var o Order
	var status string
	var eta *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, payment_method, total_amount, status, address, lat, lon, eta, created_at
		 FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.Number, &o.PaymentMethod, &o.TotalAmount, &status, &o.Address, &o.Lat, &o.Lon, &eta, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Status = Status(status)
	if eta != nil {
		o.ETA = *eta
	}

	rows, err := r.pool.Query(ctx,
		`SELECT variation_id, qty FROM order_lines WHERE order_id = $1 ORDER BY variation_id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.VariationID, &line.Qty); err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, line)
	}
	return o, rows.Err()
}

// PartsFor loads the delivery parts of an order with their tasks.
func (r *Repository) PartsFor(ctx context.Context, orderID int64) ([]PartView, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.warehouse_id, p.reason, p.eta, p.cost,
		        COALESCE(t.id, 0), COALESCE(t.status, '')
		 FROM delivery_parts p
		 LEFT JOIN warehouse_tasks t ON t.part_id = p.id
		 WHERE p.order_id = $1
		 ORDER BY p.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parts []PartView
	for rows.Next() {
		var part PartView
		if err := rows.Scan(&part.ID, &part.WarehouseID, &part.Reason, &part.ETA, &part.Cost, &part.TaskID, &part.TaskStatus); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range parts {
		itemRows, err := r.pool.Query(ctx,
			`SELECT variation_id, qty FROM delivery_part_items WHERE part_id = $1 ORDER BY variation_id`,
			parts[i].ID)
		if err != nil {
			return nil, err
		}
		for itemRows.Next() {
			var line Line
			if err := itemRows.Scan(&line.VariationID, &line.Qty); err != nil {
				itemRows.Close()
				return nil, err
			}
			parts[i].Items = append(parts[i].Items, line)
		}
		if err := itemRows.Err(); err != nil {
			itemRows.Close()
			return nil, err
		}
		itemRows.Close()
	}
	return parts, nil
}

// TaskStatusesFor lists the statuses of the order's warehouse tasks.
func (r *Repository) TaskStatusesFor(ctx context.Context, orderID int64) ([]tasks.Status, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status FROM warehouse_tasks WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []tasks.Status
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, err
		}
		statuses = append(statuses, tasks.Status(status))
	}
	return statuses, rows.Err()
}

// UpdateStatus writes the order status.
func (r *Repository) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2`, string(status), orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
