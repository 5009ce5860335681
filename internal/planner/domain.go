package planner

import (
	"errors"
	"time"
)

// Demand is one ordered line the planner must cover.
type Demand struct {
	VariationID int64
	Qty         int64
}

// Item is the slice of a demand assigned to one delivery part.
type Item struct {
	VariationID int64
	Qty         int64
}

// Part is a planned sub-shipment fulfilled from exactly one warehouse.
// Parts are immutable once committed; each gets a warehouse task in the
// initial state within the same transaction.
type Part struct {
	ID          int64
	OrderID     int64
	WarehouseID int64
	Reason      string
	ETA         time.Time
	Cost        float64
	TaskID      int64
	Items       []Item
}

// PlanOrder carries the order attributes planning needs.
type PlanOrder struct {
	ID      int64
	Number  string
	ActorID int64
	Lines   []Demand
}

// Part split reasons shown on dashboards.
const (
	ReasonPrimary = "primary warehouse"
	ReasonSpill   = "insufficient stock at primary warehouse"
)

// ErrUnfulfillableOrder indicates no combination of warehouses can
// cover all ordered lines. The whole plan rolls back; no reservation is
// left outstanding.
var ErrUnfulfillableOrder = errors.New("planner: order cannot be fulfilled")
