package courier

import (
	"errors"
	"time"
)

// Status is courier availability. The wire values are the storefront's
// Russian vocabulary. Busy is mutually exclusive with holding no active
// tasks: a courier with a claimed, non-terminal task is busy and cannot
// change status.
type Status string

const (
	// StatusAvailable means the courier accepts claims.
	StatusAvailable Status = "доступен"
	// StatusUnavailable means the courier is off shift.
	StatusUnavailable Status = "недоступен"
	// StatusBusy means the courier holds an active claim batch.
	StatusBusy Status = "занят"
)

// Valid reports whether the status is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnavailable, StatusBusy:
		return true
	}
	return false
}

// Courier is a delivery operator.
type Courier struct {
	ID     int64
	Name   string
	Phone  string
	Status Status
}

// Location is a geolocation fix.
type Location struct {
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TaskRow is the claim-relevant slice of a warehouse task.
type TaskRow struct {
	ID          int64
	WarehouseID int64
	CourierID   int64
	Status      string
	Dropoff     Stop
}

// Stop is a named map point.
type Stop struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Waypoint is one ordered step of a courier route.
type Waypoint struct {
	Kind   string  `json:"kind"`
	Label  string  `json:"label"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	TaskID int64   `json:"task_id,omitempty"`
}

// Waypoint kinds.
const (
	WaypointCourier   = "courier"
	WaypointWarehouse = "warehouse"
	WaypointDropoff   = "dropoff"
)

// Route is the ordered waypoint sequence for an active claim batch. The
// order is advisory except that the warehouse pickup always precedes
// every dropoff.
type Route struct {
	CourierID int64      `json:"courier_id"`
	Waypoints []Waypoint `json:"waypoints"`
}

// Errors surfaced by courier assignment and routing.
var (
	// ErrNotFound indicates an unknown courier.
	ErrNotFound = errors.New("courier: courier not found")
	// ErrTaskNotFound indicates a claim referencing an unknown task.
	ErrTaskNotFound = errors.New("courier: task not found")
	// ErrMixedWarehouseClaim rejects claims spanning warehouses.
	ErrMixedWarehouseClaim = errors.New("courier: tasks span multiple warehouses")
	// ErrTaskAlreadyClaimed rejects claims touching an assigned task.
	ErrTaskAlreadyClaimed = errors.New("courier: task already claimed")
	// ErrCourierBusy guards the one-active-batch invariant and status
	// changes while tasks are in flight.
	ErrCourierBusy = errors.New("courier: courier has active tasks")
	// ErrInvalidStatus indicates an unknown availability value.
	ErrInvalidStatus = errors.New("courier: invalid status")
	// ErrNoActiveClaim means there is nothing to route.
	ErrNoActiveClaim = errors.New("courier: no active claim")
)
