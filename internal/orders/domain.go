package orders

import (
	"errors"
	"time"
)

// Status is the derived order state shown to the customer. The wire
// values are the storefront's Russian vocabulary.
type Status string

const (
	// StatusProcessing means at least one warehouse task is still in
	// flight.
	StatusProcessing Status = "Обрабатывается"
	// StatusDelayed means at least one warehouse task is flagged as
	// running late.
	StatusDelayed Status = "Задерживается"
	// StatusDelivered means every warehouse task reached a terminal
	// state.
	StatusDelivered Status = "Доставлено"
)

// Valid reports whether the status is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusDelayed, StatusDelivered:
		return true
	}
	return false
}

// Line is one ordered variation with its quantity.
type Line struct {
	VariationID int64
	Qty         int64
}

// Order is a customer purchase. Status is owned by propagation (or an
// explicit admin override); parts are created once at planning time and
// immutable afterwards.
type Order struct {
	ID            int64
	Number        string
	PaymentMethod string
	TotalAmount   float64
	Status        Status
	Address       string
	Lat           float64
	Lon           float64
	ETA           time.Time
	CreatedAt     time.Time
	Lines         []Line
}

// PartView is the admin read model of a delivery part with its task.
type PartView struct {
	ID          int64
	WarehouseID int64
	Reason      string
	ETA         time.Time
	Cost        float64
	TaskID      int64
	TaskStatus  string
	Items       []Line
}

// Detail is an order with its parts for display.
type Detail struct {
	Order Order
	Parts []PartView
}

// CreateInput describes a checkout request.
type CreateInput struct {
	Number         string
	PaymentMethod  string
	TotalAmount    float64
	Address        string
	Lat            float64
	Lon            float64
	Lines          []Line
	ActorID        int64
	IdempotencyKey string
}

// Errors surfaced by the order module.
var (
	// ErrNotFound indicates an unknown order.
	ErrNotFound = errors.New("orders: order not found")
	// ErrInvalidStatus indicates an override to an unknown status.
	ErrInvalidStatus = errors.New("orders: invalid status")
)
