package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ReconciliationPort answers whether a task's scan session covers every
// required item.
type ReconciliationPort interface {
	IsComplete(ctx context.Context, taskID int64) (bool, error)
}

// StatusPort propagates task state back into the owning order.
type StatusPort interface {
	Recompute(ctx context.Context, orderID int64) error
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, task Task) (Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	ListByWarehouse(ctx context.Context, warehouseID int64, activeOnly bool) ([]Task, error)
	ListOverdue(ctx context.Context, cutoff time.Time) ([]Task, error)
	UpdateStatus(ctx context.Context, id int64, status, prior Status, expectedVersion int64) error
}

// CreateInput mirrors a freshly planned delivery part.
type CreateInput struct {
	PartID      int64
	OrderID     int64
	WarehouseID int64
	Items       []Item
}

// Service owns the warehouse task lifecycle.
type Service struct {
	repo   RepositoryPort
	recon  ReconciliationPort
	status StatusPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, recon ReconciliationPort, status StatusPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, recon: recon, status: status, logger: logger}
}

// Create produces a task in the initial state whose items mirror the
// delivery part one to one.
func (s *Service) Create(ctx context.Context, input CreateInput) (Task, error) {
	if input.PartID == 0 || input.OrderID == 0 || input.WarehouseID == 0 {
		return Task{}, fmt.Errorf("tasks: part, order and warehouse required")
	}
	if len(input.Items) == 0 {
		return Task{}, fmt.Errorf("tasks: at least one item required")
	}
	items := make([]Item, len(input.Items))
	for i, item := range input.Items {
		if item.VariationID == 0 || item.Qty <= 0 {
			return Task{}, fmt.Errorf("tasks: item %d: variation and positive qty required", i+1)
		}
		items[i] = Item{VariationID: item.VariationID, Qty: item.Qty}
	}
	return s.repo.Insert(ctx, Task{
		PartID:      input.PartID,
		OrderID:     input.OrderID,
		WarehouseID: input.WarehouseID,
		Status:      StatusPendingPick,
		CreatedAt:   time.Now().UTC(),
		Items:       items,
	})
}

// Get loads a task with its items.
func (s *Service) Get(ctx context.Context, id int64) (Task, error) {
	return s.repo.Get(ctx, id)
}

// ListByWarehouse lists tasks for a seller dashboard.
func (s *Service) ListByWarehouse(ctx context.Context, warehouseID int64, activeOnly bool) ([]Task, error) {
	return s.repo.ListByWarehouse(ctx, warehouseID, activeOnly)
}

// Advance moves a task to target after validating the transition and,
// for completion states, reconciliation. A successful advance triggers
// order status recomputation. Concurrent advances on the same task are
// resolved by the version guard: the loser gets ErrConflict.
func (s *Service) Advance(ctx context.Context, taskID int64, target Status) (Task, error) {
	if !target.Valid() {
		return Task{}, fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, target)
	}
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	if !CanTransition(task.Status, task.PriorStatus, target) {
		return Task{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, task.Status, target)
	}
	if target.RequiresReconciliation() {
		done, err := s.recon.IsComplete(ctx, taskID)
		if err != nil {
			return Task{}, err
		}
		if !done {
			return Task{}, fmt.Errorf("%w: task %d", ErrReconciliationIncomplete, taskID)
		}
	}

	prior := Status("")
	if target == StatusDelayed {
		if task.Status == StatusDelayed {
			prior = task.PriorStatus
		} else {
			prior = task.Status
		}
	}
	if err := s.repo.UpdateStatus(ctx, taskID, target, prior, task.Version); err != nil {
		return Task{}, err
	}
	task.PriorStatus = prior
	task.Status = target
	task.Version++

	if s.status != nil {
		if err := s.status.Recompute(ctx, task.OrderID); err != nil && s.logger != nil {
			s.logger.Error("recompute order status",
				slog.Int64("order_id", task.OrderID),
				slog.Any("error", err))
		}
	}
	return task, nil
}

// SweepOverdue marks tasks past their part's estimated date as delayed.
// Returns the number of tasks flagged. Tasks that advanced concurrently
// are skipped.
func (s *Service) SweepOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	flagged := 0
	for _, task := range overdue {
		if _, err := s.Advance(ctx, task.ID, StatusDelayed); err != nil {
			if s.logger != nil {
				s.logger.Warn("delay sweep skip task",
					slog.Int64("task_id", task.ID),
					slog.Any("error", err))
			}
			continue
		}
		flagged++
	}
	return flagged, nil
}
