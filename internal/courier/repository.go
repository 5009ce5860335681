package courier

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pool surface the repository needs. Satisfied by
// pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists couriers and claims in PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository constructs Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const activeStatuses = `('Ожидает сборки', 'Собрано', 'Задерживается')`

// Get loads one courier.
func (r *Repository) Get(ctx context.Context, id int64) (Courier, error) {
	var c Courier
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, phone, status FROM couriers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Courier{}, ErrNotFound
		}
		return Courier{}, err
	}
	c.Status = Status(status)
	return c, nil
}

// List loads all couriers. Ordering is applied in the service with
// locale-aware collation.
func (r *Repository) List(ctx context.Context) ([]Courier, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, phone, status FROM couriers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Courier
	for rows.Next() {
		var c Courier
		var status string
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &status); err != nil {
			return nil, err
		}
		c.Status = Status(status)
		result = append(result, c)
	}
	return result, rows.Err()
}

// UpdateStatus writes the availability status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE couriers SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveTasks lists the courier's claimed non-terminal tasks with their
// dropoff points.
func (r *Repository) ActiveTasks(ctx context.Context, courierID int64) ([]TaskRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT t.id, t.warehouse_id, COALESCE(t.courier_id, 0), t.status,
		        o.address, o.lat, o.lon
		 FROM warehouse_tasks t
		 JOIN orders o ON o.id = t.order_id
		 WHERE t.courier_id = $1 AND t.status IN `+activeStatuses+`
		 ORDER BY t.id`,
		courierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

type claimTx struct {
	tx pgx.Tx
}

// WithClaimTx runs a claim inside one transaction so the full task set
// is assigned or none of it.
func (r *Repository) WithClaimTx(ctx context.Context, fn func(context.Context, ClaimTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &claimTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (c *claimTx) ActiveTaskCount(ctx context.Context, courierID int64) (int, error) {
	var count int
	err := c.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM warehouse_tasks WHERE courier_id = $1 AND status IN `+activeStatuses,
		courierID).Scan(&count)
	return count, err
}

func (c *claimTx) TasksForUpdate(ctx context.Context, taskIDs []int64) ([]TaskRow, error) {
	rows, err := c.tx.Query(ctx,
		`SELECT t.id, t.warehouse_id, COALESCE(t.courier_id, 0), t.status,
		        o.address, o.lat, o.lon
		 FROM warehouse_tasks t
		 JOIN orders o ON o.id = t.order_id
		 WHERE t.id = ANY($1)
		 ORDER BY t.id
		 FOR UPDATE OF t`,
		taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

func (c *claimTx) AssignTasks(ctx context.Context, courierID int64, batch string, taskIDs []int64) error {
	_, err := c.tx.Exec(ctx,
		`UPDATE warehouse_tasks SET courier_id = $1, claim_batch = $2 WHERE id = ANY($3)`,
		courierID, batch, taskIDs)
	return err
}

func (c *claimTx) SetCourierStatus(ctx context.Context, courierID int64, status Status) error {
	_, err := c.tx.Exec(ctx,
		`UPDATE couriers SET status = $1 WHERE id = $2`, string(status), courierID)
	return err
}

func scanTaskRows(rows pgx.Rows) ([]TaskRow, error) {
	var result []TaskRow
	for rows.Next() {
		var row TaskRow
		if err := rows.Scan(&row.ID, &row.WarehouseID, &row.CourierID, &row.Status,
			&row.Dropoff.Label, &row.Dropoff.Lat, &row.Dropoff.Lon); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
