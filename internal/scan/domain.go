package scan

import "errors"

// ItemProgress is the reconciliation state of one task item.
type ItemProgress struct {
	VariationID int64
	Qty         int64
	Scanned     int64
}

// Progress is the full reconciliation picture of a task. Complete means
// every required item has been scanned exactly its required number of
// times.
type Progress struct {
	TaskID   int64
	Items    []ItemProgress
	Complete bool
}

// Errors surfaced by barcode reconciliation.
var (
	// ErrNotFound indicates an unknown task.
	ErrNotFound = errors.New("scan: task not found")
	// ErrUnknownBarcode indicates a barcode no variation carries.
	ErrUnknownBarcode = errors.New("scan: unknown barcode")
	// ErrUnexpectedItem indicates a scanned variation the task does not
	// require.
	ErrUnexpectedItem = errors.New("scan: item not on task")
	// ErrOverScan indicates an item scanned past its required quantity.
	ErrOverScan = errors.New("scan: item already fully scanned")
)
