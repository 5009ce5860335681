package courier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
)

// ClaimTx exposes the writes of one atomic claim.
type ClaimTx interface {
	ActiveTaskCount(ctx context.Context, courierID int64) (int, error)
	TasksForUpdate(ctx context.Context, taskIDs []int64) ([]TaskRow, error)
	AssignTasks(ctx context.Context, courierID int64, batch string, taskIDs []int64) error
	SetCourierStatus(ctx context.Context, courierID int64, status Status) error
}

// RepositoryPort abstracts courier persistence.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Courier, error)
	List(ctx context.Context) ([]Courier, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ActiveTasks(ctx context.Context, courierID int64) ([]TaskRow, error)
	WithClaimTx(ctx context.Context, fn func(context.Context, ClaimTx) error) error
}

// LocationPort stores volatile courier positions.
type LocationPort interface {
	Set(ctx context.Context, courierID int64, loc Location) error
	Get(ctx context.Context, courierID int64) (Location, bool, error)
}

// WarehousePort reads warehouse master data for routing.
type WarehousePort interface {
	Warehouse(ctx context.Context, id int64) (inventory.Warehouse, error)
}

// Service owns courier assignment and routing.
type Service struct {
	repo       RepositoryPort
	locations  LocationPort
	warehouses WarehousePort
	logger     *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, locations LocationPort, warehouses WarehousePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, locations: locations, warehouses: warehouses, logger: logger}
}

// Claim atomically assigns the requested tasks to the courier. All
// tasks must belong to one warehouse and be unclaimed; the courier must
// hold no active batch. Either every task is claimed or none is. On
// success the courier becomes busy and the batch id is returned.
func (s *Service) Claim(ctx context.Context, courierID int64, taskIDs []int64) (string, error) {
	if len(taskIDs) == 0 {
		return "", fmt.Errorf("courier: at least one task required")
	}
	if _, err := s.repo.Get(ctx, courierID); err != nil {
		return "", err
	}

	batch := uuid.NewString()
	err := s.repo.WithClaimTx(ctx, func(ctx context.Context, tx ClaimTx) error {
		active, err := tx.ActiveTaskCount(ctx, courierID)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: finish the current batch first", ErrCourierBusy)
		}

		rows, err := tx.TasksForUpdate(ctx, taskIDs)
		if err != nil {
			return err
		}
		if len(rows) != len(taskIDs) {
			return fmt.Errorf("%w: %d of %d tasks exist", ErrTaskNotFound, len(rows), len(taskIDs))
		}
		warehouseID := rows[0].WarehouseID
		for _, row := range rows {
			if row.WarehouseID != warehouseID {
				return ErrMixedWarehouseClaim
			}
			if row.CourierID != 0 {
				return fmt.Errorf("%w: task %d", ErrTaskAlreadyClaimed, row.ID)
			}
		}

		if err := tx.AssignTasks(ctx, courierID, batch, taskIDs); err != nil {
			return err
		}
		return tx.SetCourierStatus(ctx, courierID, StatusBusy)
	})
	if err != nil {
		return "", err
	}
	if s.logger != nil {
		s.logger.Info("tasks claimed",
			slog.Int64("courier_id", courierID),
			slog.Int("tasks", len(taskIDs)),
			slog.String("batch", batch))
	}
	return batch, nil
}

// SetAvailability changes the courier status. A courier with active
// tasks is pinned to busy.
func (s *Service) SetAvailability(ctx context.Context, courierID int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := s.repo.Get(ctx, courierID); err != nil {
		return err
	}
	if status != StatusBusy {
		active, err := s.repo.ActiveTasks(ctx, courierID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("%w: %d active tasks", ErrCourierBusy, len(active))
		}
	}
	return s.repo.UpdateStatus(ctx, courierID, status)
}

// UpdateLocation records a best-effort geolocation fix. Updates are
// lossy; a dropped fix is not an error the courier app needs to see.
func (s *Service) UpdateLocation(ctx context.Context, courierID int64, lat, lon float64) error {
	if _, err := s.repo.Get(ctx, courierID); err != nil {
		return err
	}
	err := s.locations.Set(ctx, courierID, Location{Lat: lat, Lon: lon, RecordedAt: time.Now().UTC()})
	if err != nil && s.logger != nil {
		s.logger.Warn("location update dropped",
			slog.Int64("courier_id", courierID),
			slog.Any("error", err))
	}
	return nil
}

// BuildRoute produces the waypoint sequence for the courier's active
// batch: current position (when known), the shared warehouse, then the
// dropoffs in nearest-neighbour order. The warehouse pickup always
// precedes every dropoff; without a location fix the route starts at
// the warehouse.
func (s *Service) BuildRoute(ctx context.Context, courierID int64) (Route, error) {
	if _, err := s.repo.Get(ctx, courierID); err != nil {
		return Route{}, err
	}
	active, err := s.repo.ActiveTasks(ctx, courierID)
	if err != nil {
		return Route{}, err
	}
	if len(active) == 0 {
		return Route{}, ErrNoActiveClaim
	}

	warehouse, err := s.warehouses.Warehouse(ctx, active[0].WarehouseID)
	if err != nil {
		return Route{}, fmt.Errorf("load warehouse: %w", err)
	}

	var start *Location
	if loc, ok, err := s.locations.Get(ctx, courierID); err == nil && ok {
		start = &loc
	}
	return buildRoute(courierID, start, warehouse, active), nil
}

// List returns all couriers sorted by name with Russian collation.
func (s *Service) List(ctx context.Context) ([]Courier, error) {
	couriers, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sortByName(couriers)
	return couriers, nil
}

// Get loads one courier.
func (s *Service) Get(ctx context.Context, id int64) (Courier, error) {
	return s.repo.Get(ctx, id)
}
