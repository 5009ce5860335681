package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
)

type memoryRepo struct {
	couriers map[int64]Courier
	tasks    map[int64]TaskRow
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		couriers: make(map[int64]Courier),
		tasks:    make(map[int64]TaskRow),
	}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Courier, error) {
	if c, ok := r.couriers[id]; ok {
		return c, nil
	}
	return Courier{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context) ([]Courier, error) {
	var result []Courier
	for _, c := range r.couriers {
		result = append(result, c)
	}
	return result, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	c, ok := r.couriers[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	r.couriers[id] = c
	return nil
}

func taskActive(status string) bool {
	return status != "Передано" && status != "Доставлено"
}

func (r *memoryRepo) ActiveTasks(ctx context.Context, courierID int64) ([]TaskRow, error) {
	var result []TaskRow
	for _, task := range r.tasks {
		if task.CourierID == courierID && taskActive(task.Status) {
			result = append(result, task)
		}
	}
	return result, nil
}

type memoryClaimTx struct {
	repo *memoryRepo
}

func (t *memoryClaimTx) ActiveTaskCount(ctx context.Context, courierID int64) (int, error) {
	tasks, _ := t.repo.ActiveTasks(ctx, courierID)
	return len(tasks), nil
}

func (t *memoryClaimTx) TasksForUpdate(ctx context.Context, taskIDs []int64) ([]TaskRow, error) {
	var result []TaskRow
	for _, id := range taskIDs {
		if task, ok := t.repo.tasks[id]; ok {
			result = append(result, task)
		}
	}
	return result, nil
}

func (t *memoryClaimTx) AssignTasks(ctx context.Context, courierID int64, batch string, taskIDs []int64) error {
	for _, id := range taskIDs {
		task := t.repo.tasks[id]
		task.CourierID = courierID
		t.repo.tasks[id] = task
	}
	return nil
}

func (t *memoryClaimTx) SetCourierStatus(ctx context.Context, courierID int64, status Status) error {
	return t.repo.UpdateStatus(ctx, courierID, status)
}

func (r *memoryRepo) WithClaimTx(ctx context.Context, fn func(context.Context, ClaimTx) error) error {
	tasksSnapshot := make(map[int64]TaskRow, len(r.tasks))
	for id, task := range r.tasks {
		tasksSnapshot[id] = task
	}
	couriersSnapshot := make(map[int64]Courier, len(r.couriers))
	for id, c := range r.couriers {
		couriersSnapshot[id] = c
	}
	if err := fn(ctx, &memoryClaimTx{repo: r}); err != nil {
		r.tasks = tasksSnapshot
		r.couriers = couriersSnapshot
		return err
	}
	return nil
}

type fakeLocations struct {
	fixes map[int64]Location
}

func (f *fakeLocations) Set(ctx context.Context, courierID int64, loc Location) error {
	f.fixes[courierID] = loc
	return nil
}

func (f *fakeLocations) Get(ctx context.Context, courierID int64) (Location, bool, error) {
	loc, ok := f.fixes[courierID]
	return loc, ok, nil
}

type fakeWarehouses struct {
	byID map[int64]inventory.Warehouse
}

func (f *fakeWarehouses) Warehouse(ctx context.Context, id int64) (inventory.Warehouse, error) {
	if w, ok := f.byID[id]; ok {
		return w, nil
	}
	return inventory.Warehouse{}, inventory.ErrInvalidWarehouse
}

func newTestService() (*Service, *memoryRepo, *fakeLocations) {
	repo := newMemoryRepo()
	repo.couriers[1] = Courier{ID: 1, Name: "Анна", Status: StatusAvailable}
	locations := &fakeLocations{fixes: make(map[int64]Location)}
	warehouses := &fakeWarehouses{byID: map[int64]inventory.Warehouse{
		5: {ID: 5, Name: "Склад Север", Lat: 55.85, Lon: 37.60},
	}}
	return NewService(repo, locations, warehouses, nil), repo, locations
}

func TestClaimMarksCourierBusy(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, Status: "Собрано"}
	repo.tasks[11] = TaskRow{ID: 11, WarehouseID: 5, Status: "Собрано"}

	batch, err := svc.Claim(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	require.NotEmpty(t, batch)

	require.Equal(t, int64(1), repo.tasks[10].CourierID)
	require.Equal(t, int64(1), repo.tasks[11].CourierID)
	require.Equal(t, StatusBusy, repo.couriers[1].Status)
}

func TestClaimMixedWarehouse(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, Status: "Собрано"}
	repo.tasks[11] = TaskRow{ID: 11, WarehouseID: 6, Status: "Собрано"}

	_, err := svc.Claim(context.Background(), 1, []int64{10, 11})
	require.ErrorIs(t, err, ErrMixedWarehouseClaim)

	// No partial claim.
	require.Zero(t, repo.tasks[10].CourierID)
	require.Zero(t, repo.tasks[11].CourierID)
	require.Equal(t, StatusAvailable, repo.couriers[1].Status)
}

func TestClaimAlreadyClaimed(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.couriers[2] = Courier{ID: 2, Name: "Борис", Status: StatusBusy}
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, Status: "Собрано"}
	repo.tasks[11] = TaskRow{ID: 11, WarehouseID: 5, Status: "Собрано", CourierID: 2}

	_, err := svc.Claim(context.Background(), 1, []int64{10, 11})
	require.ErrorIs(t, err, ErrTaskAlreadyClaimed)
	require.Zero(t, repo.tasks[10].CourierID)
}

func TestClaimOneBatchAtATime(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, Status: "Собрано"}
	repo.tasks[11] = TaskRow{ID: 11, WarehouseID: 5, Status: "Собрано"}

	_, err := svc.Claim(context.Background(), 1, []int64{10})
	require.NoError(t, err)

	_, err = svc.Claim(context.Background(), 1, []int64{11})
	require.ErrorIs(t, err, ErrCourierBusy)
}

func TestClaimUnknownTask(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, Status: "Собрано"}

	_, err := svc.Claim(context.Background(), 1, []int64{10, 99})
	require.ErrorIs(t, err, ErrTaskNotFound)
	require.Zero(t, repo.tasks[10].CourierID)
}

func TestSetAvailabilityGuard(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, Status: "Собрано"}

	_, err := svc.Claim(context.Background(), 1, []int64{10})
	require.NoError(t, err)

	err = svc.SetAvailability(context.Background(), 1, StatusUnavailable)
	require.ErrorIs(t, err, ErrCourierBusy)

	// Terminal task releases the courier.
	task := repo.tasks[10]
	task.Status = "Передано"
	repo.tasks[10] = task

	require.NoError(t, svc.SetAvailability(context.Background(), 1, StatusAvailable))
	require.Equal(t, StatusAvailable, repo.couriers[1].Status)

	err = svc.SetAvailability(context.Background(), 1, Status("nope"))
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestBuildRouteWarehouseBeforeDropoffs(t *testing.T) {
	svc, repo, locations := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, CourierID: 1, Status: "Собрано",
		Dropoff: Stop{Label: "далеко", Lat: 55.60, Lon: 37.60}}
	repo.tasks[11] = TaskRow{ID: 11, WarehouseID: 5, CourierID: 1, Status: "Собрано",
		Dropoff: Stop{Label: "близко", Lat: 55.80, Lon: 37.60}}
	locations.fixes[1] = Location{Lat: 55.90, Lon: 37.60, RecordedAt: time.Now()}

	route, err := svc.BuildRoute(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, route.Waypoints, 4)

	require.Equal(t, WaypointCourier, route.Waypoints[0].Kind)
	require.Equal(t, WaypointWarehouse, route.Waypoints[1].Kind)
	// Nearest neighbour from the warehouse.
	require.Equal(t, "близко", route.Waypoints[2].Label)
	require.Equal(t, "далеко", route.Waypoints[3].Label)

	warehouseAt := -1
	for i, wp := range route.Waypoints {
		if wp.Kind == WaypointWarehouse {
			warehouseAt = i
		}
	}
	for i, wp := range route.Waypoints {
		if wp.Kind == WaypointDropoff {
			require.Greater(t, i, warehouseAt)
		}
	}
}

func TestBuildRouteWithoutFix(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.tasks[10] = TaskRow{ID: 10, WarehouseID: 5, CourierID: 1, Status: "Собрано",
		Dropoff: Stop{Label: "точка", Lat: 55.70, Lon: 37.50}}

	route, err := svc.BuildRoute(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, WaypointWarehouse, route.Waypoints[0].Kind)
}

func TestBuildRouteNoActiveClaim(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.BuildRoute(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoActiveClaim)
}

func TestListSortsRussianNames(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.couriers[2] = Courier{ID: 2, Name: "Ярослав"}
	repo.couriers[3] = Courier{ID: 3, Name: "Борис"}
	repo.couriers[4] = Courier{ID: 4, Name: "Ёлкин"}

	couriers, err := svc.List(context.Background())
	require.NoError(t, err)
	names := make([]string, len(couriers))
	for i, c := range couriers {
		names[i] = c.Name
	}
	require.Equal(t, []string{"Анна", "Борис", "Ёлкин", "Ярослав"}, names)
}
