package scan

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists scan counters on warehouse task items.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// IncrementScanned bumps the counter only while it is below the
// required quantity, so concurrent scanners can never push it past.
func (r *Repository) IncrementScanned(ctx context.Context, taskID, variationID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE warehouse_task_items
		 SET scanned = scanned + 1
		 WHERE task_id = $1 AND variation_id = $2 AND scanned < qty`,
		taskID, variationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No row moved: either the item is already fully scanned, the task
	// does not require this variation, or the task does not exist.
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM warehouse_task_items WHERE task_id = $1 AND variation_id = $2)`,
		taskID, variationID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return ErrOverScan
	}
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM warehouse_tasks WHERE id = $1)`, taskID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrUnexpectedItem
}

// ItemsFor lists the scan progress of a task's items.
func (r *Repository) ItemsFor(ctx context.Context, taskID int64) ([]ItemProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT variation_id, qty, scanned
		 FROM warehouse_task_items
		 WHERE task_id = $1
		 ORDER BY variation_id`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemProgress
	for rows.Next() {
		var item ItemProgress
		if err := rows.Scan(&item.VariationID, &item.Qty, &item.Scanned); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM warehouse_tasks WHERE id = $1)`, taskID).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
	}
	return items, nil
}
