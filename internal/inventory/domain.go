package inventory

import (
	"errors"
	"time"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementIn represents an inbound movement (stock-in).
	MovementIn MovementKind = "IN"
	// MovementOut represents an outbound movement (reservation).
	MovementOut MovementKind = "OUT"
	// MovementTransfer is used for inter-warehouse transfer legs.
	MovementTransfer MovementKind = "TRANSFER"
)

// Variation is a barcode-bearing SKU referenced by inventory records,
// delivery part items and warehouse task items. The barcode is the
// physical-world identifier used during reconciliation and is globally
// unique per variation.
type Variation struct {
	ID      int64
	SKU     string
	Name    string
	Barcode string
}

// Record is the authoritative stock count for one variation at one
// warehouse. Qty never goes negative.
type Record struct {
	WarehouseID int64
	VariationID int64
	Qty         int64
	UpdatedAt   time.Time
}

// Warehouse carries the attributes the planner and router need:
// location, lead time and delivery cost for its zone.
type Warehouse struct {
	ID           int64
	Code         string
	Name         string
	Address      string
	Lat          float64
	Lon          float64
	LeadTimeDays int
	DeliveryCost float64
}

// Movement is the journal row written for every ledger mutation.
type Movement struct {
	ID             int64
	Code           string
	Kind           MovementKind
	VariationID    int64
	SrcWarehouseID int64
	DstWarehouseID int64
	Qty            int64
	RefModule      string
	RefID          string
	Note           string
	PostedAt       time.Time
	CreatedBy      int64
}

// BarcodeInfo is the result of a barcode lookup: the variation plus its
// per-warehouse quantities.
type BarcodeInfo struct {
	Variation  Variation
	Quantities map[int64]int64
}

// StockInInput describes an inbound registration.
type StockInInput struct {
	Code        string
	WarehouseID int64
	VariationID int64
	Qty         int64
	Note        string
	ActorID     int64
}

// ReserveInput describes a planning-time reservation.
type ReserveInput struct {
	WarehouseID int64
	VariationID int64
	Qty         int64
	RefModule   string
	RefID       string
	ActorID     int64
}

// TransferInput describes a manual rebalancing transfer.
type TransferInput struct {
	Code         string
	VariationID  int64
	SrcWarehouse int64
	DstWarehouse int64
	Qty          int64
	Note         string
	ActorID      int64
}

// ErrInsufficientStock is returned when a decrement would drive a
// record negative.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidWarehouse is returned for transfers with identical source
// and destination, or references to unknown warehouses.
var ErrInvalidWarehouse = errors.New("inventory: invalid warehouse")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrNotFound indicates an unknown variation, barcode or record.
var ErrNotFound = errors.New("inventory: not found")
