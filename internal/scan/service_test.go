package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
)

type memoryRepo struct {
	items map[int64]map[int64]*ItemProgress
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]map[int64]*ItemProgress)}
}

func (r *memoryRepo) seed(taskID, variationID, qty int64) {
	if r.items[taskID] == nil {
		r.items[taskID] = make(map[int64]*ItemProgress)
	}
	r.items[taskID][variationID] = &ItemProgress{VariationID: variationID, Qty: qty}
}

func (r *memoryRepo) IncrementScanned(ctx context.Context, taskID, variationID int64) error {
	task, ok := r.items[taskID]
	if !ok {
		return ErrNotFound
	}
	item, ok := task[variationID]
	if !ok {
		return ErrUnexpectedItem
	}
	if item.Scanned >= item.Qty {
		return ErrOverScan
	}
	item.Scanned++
	return nil
}

func (r *memoryRepo) ItemsFor(ctx context.Context, taskID int64) ([]ItemProgress, error) {
	task, ok := r.items[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	var result []ItemProgress
	for _, item := range task {
		result = append(result, *item)
	}
	return result, nil
}

type fakeBarcodes struct {
	byBarcode map[string]inventory.Variation
}

func (f *fakeBarcodes) VariationByBarcode(ctx context.Context, barcode string) (inventory.Variation, error) {
	if v, ok := f.byBarcode[barcode]; ok {
		return v, nil
	}
	return inventory.Variation{}, inventory.ErrNotFound
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	barcodes := &fakeBarcodes{byBarcode: map[string]inventory.Variation{
		"4600001": {ID: 10, SKU: "SKU-10", Barcode: "4600001"},
		"4600002": {ID: 20, SKU: "SKU-20", Barcode: "4600002"},
	}}
	return NewService(repo, barcodes, nil), repo
}

func TestScanCompletesTask(t *testing.T) {
	svc, repo := newTestService()
	repo.seed(1, 10, 2)
	repo.seed(1, 20, 1)

	progress, err := svc.Scan(context.Background(), 1, "4600001")
	require.NoError(t, err)
	require.False(t, progress.Complete)

	_, err = svc.Scan(context.Background(), 1, "4600001")
	require.NoError(t, err)

	progress, err = svc.Scan(context.Background(), 1, "4600002")
	require.NoError(t, err)
	require.True(t, progress.Complete)

	done, err := svc.IsComplete(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, done)
}

func TestOverScanLeavesProgressComplete(t *testing.T) {
	svc, repo := newTestService()
	repo.seed(1, 10, 1)

	_, err := svc.Scan(context.Background(), 1, "4600001")
	require.NoError(t, err)

	_, err = svc.Scan(context.Background(), 1, "4600001")
	require.ErrorIs(t, err, ErrOverScan)

	// The failed scan must not disturb the counters.
	done, err := svc.IsComplete(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, done)
}

func TestScanUnknownBarcode(t *testing.T) {
	svc, repo := newTestService()
	repo.seed(1, 10, 1)

	_, err := svc.Scan(context.Background(), 1, "9999999")
	require.ErrorIs(t, err, ErrUnknownBarcode)

	_, err = svc.Scan(context.Background(), 1, "")
	require.ErrorIs(t, err, ErrUnknownBarcode)
}

func TestScanUnexpectedItem(t *testing.T) {
	svc, repo := newTestService()
	repo.seed(1, 10, 1)

	// Barcode resolves fine but variation 20 is not on this task.
	_, err := svc.Scan(context.Background(), 1, "4600002")
	require.ErrorIs(t, err, ErrUnexpectedItem)

	done, err := svc.IsComplete(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, done)
}

func TestScanUnknownTask(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Scan(context.Background(), 42, "4600001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProgressReportsPerItem(t *testing.T) {
	svc, repo := newTestService()
	repo.seed(1, 10, 3)

	_, err := svc.Scan(context.Background(), 1, "4600001")
	require.NoError(t, err)

	progress, err := svc.Progress(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, progress.Items, 1)
	require.Equal(t, int64(3), progress.Items[0].Qty)
	require.Equal(t, int64(1), progress.Items[0].Scanned)
	require.False(t, progress.Complete)
}
