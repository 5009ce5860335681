package tasks

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a warehouse task. The wire values
// are the storefront's Russian vocabulary, shared with the dashboards.
type Status string

const (
	// StatusPendingPick is the initial state set at task creation.
	StatusPendingPick Status = "Ожидает сборки"
	// StatusPacked means the seller finished pick/pack and the task is
	// claimable by couriers.
	StatusPacked Status = "Собрано"
	// StatusHandedOff is the terminal state for courier-delivered tasks.
	StatusHandedOff Status = "Передано"
	// StatusDelivered is the terminal state for pickup-in-store tasks.
	StatusDelivered Status = "Доставлено"
	// StatusDelayed is an advisory side-state reachable from any
	// non-terminal state. Any forward transition clears it.
	StatusDelayed Status = "Задерживается"
)

// forward lists the legal forward edges of the state machine.
var forward = map[Status]map[Status]bool{
	StatusPendingPick: {StatusPacked: true},
	StatusPacked:      {StatusHandedOff: true, StatusDelivered: true},
}

// Valid reports whether the status is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPick, StatusPacked, StatusHandedOff, StatusDelivered, StatusDelayed:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further mutation.
func (s Status) Terminal() bool {
	return s == StatusHandedOff || s == StatusDelivered
}

// RequiresReconciliation reports whether reaching the status demands a
// complete barcode reconciliation.
func (s Status) RequiresReconciliation() bool {
	return s == StatusPacked || s == StatusHandedOff || s == StatusDelivered
}

// CanTransition validates a transition. prior is the state the task
// held before entering the delay side-state and is ignored otherwise.
// Transitions are forward-only; delay is reachable from any
// non-terminal state and is left either back to the prior state or by
// any forward transition legal from it.
func CanTransition(current, prior, target Status) bool {
	if !current.Valid() || !target.Valid() || current == target {
		return false
	}
	if current.Terminal() {
		return false
	}
	if target == StatusDelayed {
		return true
	}
	if current == StatusDelayed {
		if !prior.Valid() {
			return false
		}
		return target == prior || forward[prior][target]
	}
	return forward[current][target]
}

// Item is one required line of a task, mirroring the delivery part.
// Scanned is maintained by barcode reconciliation, capped at Qty.
type Item struct {
	VariationID int64
	Qty         int64
	Scanned     int64
}

// Task is the actionable pick/pack/handoff unit bound to one delivery
// part. Quantities are immutable after creation; Version guards
// concurrent status writes.
type Task struct {
	ID          int64
	PartID      int64
	OrderID     int64
	WarehouseID int64
	Status      Status
	PriorStatus Status
	CourierID   int64
	ClaimBatch  string
	Version     int64
	CreatedAt   time.Time
	Items       []Item
}

// Claimed reports whether a courier holds the task.
func (t Task) Claimed() bool {
	return t.CourierID != 0
}

// Errors surfaced by the task manager.
var (
	// ErrNotFound indicates an unknown task.
	ErrNotFound = errors.New("tasks: task not found")
	// ErrIllegalTransition indicates a transition the state machine
	// forbids.
	ErrIllegalTransition = errors.New("tasks: illegal transition")
	// ErrReconciliationIncomplete blocks completion states until every
	// required item has been scanned.
	ErrReconciliationIncomplete = errors.New("tasks: reconciliation incomplete")
	// ErrConflict indicates a concurrent advance won the version race.
	ErrConflict = errors.New("tasks: concurrent update, retry")
)
