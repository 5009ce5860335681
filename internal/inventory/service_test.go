package inventory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu         sync.Mutex
	records    map[string]Record
	movements  []Movement
	variations map[string]Variation
	warehouses map[int64]Warehouse
	nextID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records:    make(map[string]Record),
		variations: make(map[string]Variation),
		warehouses: map[int64]Warehouse{1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}},
	}
}

func recordKey(warehouseID, variationID int64) string {
	return fmt.Sprintf("%d:%d", warehouseID, variationID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) QuantityAt(ctx context.Context, warehouseID, variationID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[recordKey(warehouseID, variationID)].Qty, nil
}

func (r *memoryRepo) VariationByBarcode(ctx context.Context, barcode string) (Variation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.variations[barcode]; ok {
		return v, nil
	}
	return Variation{}, ErrNotFound
}

func (r *memoryRepo) QuantitiesFor(ctx context.Context, variationID int64) (map[int64]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make(map[int64]int64)
	for _, rec := range r.records {
		if rec.VariationID == variationID && rec.Qty > 0 {
			result[rec.WarehouseID] = rec.Qty
		}
	}
	return result, nil
}

func (r *memoryRepo) Warehouse(ctx context.Context, id int64) (Warehouse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.warehouses[id]; ok {
		return w, nil
	}
	return Warehouse{}, ErrInvalidWarehouse
}

func (tx *memoryTx) RecordForUpdate(ctx context.Context, warehouseID, variationID int64) (Record, error) {
	if rec, ok := tx.repo.records[recordKey(warehouseID, variationID)]; ok {
		return rec, nil
	}
	return Record{WarehouseID: warehouseID, VariationID: variationID}, ErrRecordNotFound
}

func (tx *memoryTx) UpsertRecord(ctx context.Context, rec Record) error {
	tx.repo.records[recordKey(rec.WarehouseID, rec.VariationID)] = rec
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func (tx *memoryTx) WarehouseExists(ctx context.Context, id int64) (bool, error) {
	_, ok := tx.repo.warehouses[id]
	return ok, nil
}

func TestStockInAndQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	rec, err := svc.StockIn(ctx, StockInInput{WarehouseID: 1, VariationID: 10, Qty: 7})
	require.NoError(t, err)
	require.EqualValues(t, 7, rec.Qty)

	qty, err := svc.QuantityAt(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 7, qty)

	require.Len(t, repo.movements, 1)
	require.Equal(t, MovementIn, repo.movements[0].Kind)
}

func TestReserve(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{WarehouseID: 1, VariationID: 10, Qty: 3})
	require.NoError(t, err)

	require.NoError(t, svc.Reserve(ctx, ReserveInput{WarehouseID: 1, VariationID: 10, Qty: 2}))

	err = svc.Reserve(ctx, ReserveInput{WarehouseID: 1, VariationID: 10, Qty: 2})
	require.ErrorIs(t, err, ErrInsufficientStock)

	qty, err := svc.QuantityAt(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, qty)
}

func TestReserveUnknownRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	err := svc.Reserve(context.Background(), ReserveInput{WarehouseID: 1, VariationID: 99, Qty: 1})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestTransferRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{WarehouseID: 1, VariationID: 10, Qty: 20})
	require.NoError(t, err)
	_, err = svc.StockIn(ctx, StockInInput{WarehouseID: 2, VariationID: 10, Qty: 4})
	require.NoError(t, err)

	require.NoError(t, svc.Transfer(ctx, TransferInput{VariationID: 10, SrcWarehouse: 1, DstWarehouse: 2, Qty: 5}))
	require.NoError(t, svc.Transfer(ctx, TransferInput{VariationID: 10, SrcWarehouse: 2, DstWarehouse: 1, Qty: 5}))

	qtyA, err := svc.QuantityAt(ctx, 1, 10)
	require.NoError(t, err)
	qtyB, err := svc.QuantityAt(ctx, 2, 10)
	require.NoError(t, err)
	require.EqualValues(t, 20, qtyA)
	require.EqualValues(t, 4, qtyB)
}

func TestTransferValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	err := svc.Transfer(ctx, TransferInput{VariationID: 10, SrcWarehouse: 1, DstWarehouse: 1, Qty: 5})
	require.ErrorIs(t, err, ErrInvalidWarehouse)

	err = svc.Transfer(ctx, TransferInput{VariationID: 10, SrcWarehouse: 1, DstWarehouse: 2, Qty: 5})
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestConcurrentReservesNeverNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{WarehouseID: 1, VariationID: 10, Qty: 5})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Reserve(ctx, ReserveInput{WarehouseID: 1, VariationID: 10, Qty: 1})
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrInsufficientStock)
			insufficient++
		}
	}
	require.Equal(t, 5, ok)
	require.Equal(t, 5, insufficient)

	qty, err := svc.QuantityAt(ctx, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 0, qty)
}

func TestLookupByBarcode(t *testing.T) {
	repo := newMemoryRepo()
	repo.variations["4601234567890"] = Variation{ID: 10, SKU: "TSHIRT-M", Barcode: "4601234567890"}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.StockIn(ctx, StockInInput{WarehouseID: 1, VariationID: 10, Qty: 2})
	require.NoError(t, err)

	info, err := svc.LookupByBarcode(ctx, "4601234567890")
	require.NoError(t, err)
	require.EqualValues(t, 10, info.Variation.ID)
	require.EqualValues(t, 2, info.Quantities[1])

	_, err = svc.LookupByBarcode(ctx, "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}
