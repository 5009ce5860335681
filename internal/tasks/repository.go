package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists warehouse tasks in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, part_id, order_id, warehouse_id, status, COALESCE(prior_status, ''), COALESCE(courier_id, 0), COALESCE(claim_batch, ''), version, created_at`

// InsertTaskTx inserts a task with its items inside an open
// transaction. The planner uses it so part and task creation commit
// atomically.
func InsertTaskTx(ctx context.Context, tx pgx.Tx, task Task) (Task, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO warehouse_tasks (part_id, order_id, warehouse_id, status, version, created_at)
		 VALUES ($1, $2, $3, $4, 1, $5)
		 RETURNING id`,
		task.PartID, task.OrderID, task.WarehouseID, string(task.Status), task.CreatedAt).Scan(&task.ID)
	if err != nil {
		return Task{}, err
	}
	task.Version = 1
	for _, item := range task.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO warehouse_task_items (task_id, variation_id, qty, scanned)
			 VALUES ($1, $2, $3, 0)`,
			task.ID, item.VariationID, item.Qty)
		if err != nil {
			return Task{}, err
		}
	}
	return task, nil
}

// Insert creates a task with its items in one transaction.
func (r *Repository) Insert(ctx context.Context, task Task) (Task, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := InsertTaskTx(ctx, tx, task)
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Task{}, err
	}
	return created, nil
}

// Get loads a task with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Task, error) {
	var t Task
	var status, prior string
	err := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM warehouse_tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.PartID, &t.OrderID, &t.WarehouseID, &status, &prior, &t.CourierID, &t.ClaimBatch, &t.Version, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	t.Status = Status(status)
	t.PriorStatus = Status(prior)

	items, err := r.itemsFor(ctx, id)
	if err != nil {
		return Task{}, err
	}
	t.Items = items
	return t, nil
}

// ListByWarehouse lists tasks of one warehouse, newest first.
func (r *Repository) ListByWarehouse(ctx context.Context, warehouseID int64, activeOnly bool) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM warehouse_tasks WHERE warehouse_id = $1`
	if activeOnly {
		query += ` AND status NOT IN ('` + string(StatusHandedOff) + `', '` + string(StatusDelivered) + `')`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListOverdue returns non-terminal, non-delayed tasks whose delivery
// part estimate has passed.
func (r *Repository) ListOverdue(ctx context.Context, cutoff time.Time) ([]Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prefixedTaskColumns("t")+`
		 FROM warehouse_tasks t
		 JOIN delivery_parts p ON p.id = t.part_id
		 WHERE p.eta < $1
		   AND t.status NOT IN ($2, $3, $4)`,
		cutoff, string(StatusHandedOff), string(StatusDelivered), string(StatusDelayed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// UpdateStatus writes the new status guarded by the optimistic version.
// A stale expectedVersion yields ErrConflict.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status, prior Status, expectedVersion int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE warehouse_tasks
		 SET status = $1, prior_status = NULLIF($2, ''), version = version + 1
		 WHERE id = $3 AND version = $4`,
		string(status), string(prior), id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *Repository) itemsFor(ctx context.Context, taskID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT variation_id, qty, scanned FROM warehouse_task_items WHERE task_id = $1 ORDER BY variation_id`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.VariationID, &item.Qty, &item.Scanned); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func prefixedTaskColumns(alias string) string {
	return alias + `.id, ` + alias + `.part_id, ` + alias + `.order_id, ` + alias + `.warehouse_id, ` +
		alias + `.status, COALESCE(` + alias + `.prior_status, ''), COALESCE(` + alias + `.courier_id, 0), ` +
		`COALESCE(` + alias + `.claim_batch, ''), ` + alias + `.version, ` + alias + `.created_at`
}

func scanTasks(rows pgx.Rows) ([]Task, error) {
	var result []Task
	for rows.Next() {
		var t Task
		var status, prior string
		if err := rows.Scan(&t.ID, &t.PartID, &t.OrderID, &t.WarehouseID, &status, &prior, &t.CourierID, &t.ClaimBatch, &t.Version, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Status = Status(status)
		t.PriorStatus = Status(prior)
		result = append(result, t)
	}
	return result, rows.Err()
}
