package courier

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func taskRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "warehouse_id", "courier_id", "status", "address", "lat", "lon"})
}

func TestClaimTxCommitsFullBatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	taskIDs := []int64{10, 11}
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM warehouse_tasks`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FOR UPDATE OF t`).
		WithArgs(taskIDs).
		WillReturnRows(taskRows().
			AddRow(int64(10), int64(5), int64(0), "Собрано", "ул. Ленина, 1", 55.70, 37.50).
			AddRow(int64(11), int64(5), int64(0), "Собрано", "пр. Мира, 8", 55.72, 37.55))
	mock.ExpectExec(`UPDATE warehouse_tasks SET courier_id`).
		WithArgs(int64(1), "batch-1", taskIDs).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`UPDATE couriers SET status`).
		WithArgs("занят", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	repo := NewRepository(mock)
	err = repo.WithClaimTx(context.Background(), func(ctx context.Context, tx ClaimTx) error {
		active, err := tx.ActiveTaskCount(ctx, 1)
		require.NoError(t, err)
		require.Zero(t, active)

		rows, err := tx.TasksForUpdate(ctx, taskIDs)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		if err := tx.AssignTasks(ctx, 1, "batch-1", taskIDs); err != nil {
			return err
		}
		return tx.SetCourierStatus(ctx, 1, StatusBusy)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimTxRollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE OF t`).
		WithArgs([]int64{10}).
		WillReturnRows(taskRows().
			AddRow(int64(10), int64(5), int64(2), "Собрано", "ул. Ленина, 1", 55.70, 37.50))
	mock.ExpectRollback()

	repo := NewRepository(mock)
	err = repo.WithClaimTx(context.Background(), func(ctx context.Context, tx ClaimTx) error {
		rows, err := tx.TasksForUpdate(ctx, []int64{10})
		require.NoError(t, err)
		require.Equal(t, int64(2), rows[0].CourierID)
		return ErrTaskAlreadyClaimed
	})
	require.ErrorIs(t, err, ErrTaskAlreadyClaimed)
	require.NoError(t, mock.ExpectationsWereMet())
}
