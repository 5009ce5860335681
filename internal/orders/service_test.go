package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/ostrovmarket/fulfillment/internal/planner"
	"github.com/ostrovmarket/fulfillment/internal/shared"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
)

type memoryRepo struct {
	mu       sync.Mutex
	orders   map[int64]Order
	statuses map[int64][]tasks.Status
	updates  []Status
	nextID   int64

	// updateGate, when set, runs before UpdateStatus takes the lock.
	updateGate func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   make(map[int64]Order),
		statuses: make(map[int64][]tasks.Status),
	}
}

type memoryTxStore struct {
	repo *memoryRepo
}

func (s *memoryTxStore) Tx() pgx.Tx { return nil }

func (s *memoryTxStore) InsertOrder(ctx context.Context, order Order) (Order, error) {
	s.repo.nextID++
	order.ID = s.repo.nextID
	s.repo.orders[order.ID] = order
	return order, nil
}

func (s *memoryTxStore) SetETA(ctx context.Context, orderID int64, eta time.Time) error {
	order := s.repo.orders[orderID]
	order.ETA = eta
	s.repo.orders[orderID] = order
	return nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Order, len(r.orders))
	for id, order := range r.orders {
		snapshot[id] = order
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryTxStore{repo: r}); err != nil {
		r.orders = snapshot
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order, ok := r.orders[id]; ok {
		return order, nil
	}
	return Order{}, ErrNotFound
}

func (r *memoryRepo) PartsFor(ctx context.Context, orderID int64) ([]PartView, error) {
	return nil, nil
}

func (r *memoryRepo) TaskStatusesFor(ctx context.Context, orderID int64) ([]tasks.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[orderID], nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	if r.updateGate != nil {
		r.updateGate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	order.Status = status
	r.orders[orderID] = order
	r.updates = append(r.updates, status)
	return nil
}

type fakePlanner struct {
	parts []planner.Part
	err   error
	got   planner.PlanOrder
}

func (f *fakePlanner) PlanInTx(ctx context.Context, tx pgx.Tx, order planner.PlanOrder) ([]planner.Part, error) {
	f.got = order
	if f.err != nil {
		return nil, f.err
	}
	parts := make([]planner.Part, len(f.parts))
	copy(parts, f.parts)
	for i := range parts {
		parts[i].OrderID = order.ID
	}
	return parts, nil
}

type fakeIdem struct {
	keys map[string]bool
}

func (f *fakeIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	return nil
}

func (f *fakeIdem) Delete(ctx context.Context, key string) error {
	delete(f.keys, key)
	return nil
}

func newTestService(plan *fakePlanner) (*Service, *memoryRepo, *fakeIdem) {
	repo := newMemoryRepo()
	idem := &fakeIdem{keys: make(map[string]bool)}
	return NewService(repo, plan, idem, nil, nil), repo, idem
}

func TestCreateRunsPlanner(t *testing.T) {
	near := time.Now().Add(24 * time.Hour)
	far := time.Now().Add(72 * time.Hour)
	plan := &fakePlanner{parts: []planner.Part{
		{WarehouseID: 1, ETA: near, Items: []planner.Item{{VariationID: 10, Qty: 2}}},
		{WarehouseID: 2, ETA: far, Items: []planner.Item{{VariationID: 10, Qty: 1}}},
	}}
	svc, repo, _ := newTestService(plan)

	order, parts, err := svc.Create(context.Background(), CreateInput{
		PaymentMethod: "card",
		TotalAmount:   1500,
		Lines:         []Line{{VariationID: 10, Qty: 3}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, order.Number)
	require.Equal(t, StatusProcessing, order.Status)
	require.Len(t, parts, 2)

	require.Equal(t, []planner.Demand{{VariationID: 10, Qty: 3}}, plan.got.Lines)
	require.Equal(t, order.ID, plan.got.ID)

	// Order ETA is the latest part ETA.
	stored, err := repo.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, far, stored.ETA)
}

func TestCreateValidatesLines(t *testing.T) {
	svc, _, _ := newTestService(&fakePlanner{})
	_, _, err := svc.Create(context.Background(), CreateInput{PaymentMethod: "card"})
	require.Error(t, err)
	_, _, err = svc.Create(context.Background(), CreateInput{
		PaymentMethod: "card",
		Lines:         []Line{{VariationID: 10, Qty: 0}},
	})
	require.Error(t, err)
}

func TestCreateUnfulfillableRollsBack(t *testing.T) {
	plan := &fakePlanner{err: planner.ErrUnfulfillableOrder}
	svc, repo, idem := newTestService(plan)

	_, _, err := svc.Create(context.Background(), CreateInput{
		PaymentMethod:  "card",
		Lines:          []Line{{VariationID: 10, Qty: 3}},
		IdempotencyKey: "key-1",
	})
	require.ErrorIs(t, err, planner.ErrUnfulfillableOrder)
	require.Empty(t, repo.orders)
	// The key is released so the customer can retry.
	require.False(t, idem.keys["key-1"])
}

func TestCreateIdempotency(t *testing.T) {
	plan := &fakePlanner{parts: []planner.Part{
		{WarehouseID: 1, Items: []planner.Item{{VariationID: 10, Qty: 1}}},
	}}
	svc, _, _ := newTestService(plan)

	input := CreateInput{
		PaymentMethod:  "card",
		Lines:          []Line{{VariationID: 10, Qty: 1}},
		IdempotencyKey: "key-2",
	}
	_, _, err := svc.Create(context.Background(), input)
	require.NoError(t, err)

	_, _, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestRecomputePrecedence(t *testing.T) {
	cases := []struct {
		name     string
		statuses []tasks.Status
		want     Status
	}{
		{"any delayed wins", []tasks.Status{tasks.StatusDelivered, tasks.StatusDelayed}, StatusDelayed},
		{"any active means processing", []tasks.Status{tasks.StatusHandedOff, tasks.StatusPendingPick}, StatusProcessing},
		{"all terminal means delivered", []tasks.Status{tasks.StatusHandedOff, tasks.StatusDelivered}, StatusDelivered},
		{"single pending", []tasks.Status{tasks.StatusPendingPick}, StatusProcessing},
		{"packed is still active", []tasks.Status{tasks.StatusPacked}, StatusProcessing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, derive(tc.statuses))
		})
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(&fakePlanner{})
	repo.orders[1] = Order{ID: 1, Status: StatusProcessing}
	repo.statuses[1] = []tasks.Status{tasks.StatusHandedOff}

	require.NoError(t, svc.Recompute(context.Background(), 1))
	require.NoError(t, svc.Recompute(context.Background(), 1))

	order, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, order.Status)
	for _, status := range repo.updates {
		require.Equal(t, StatusDelivered, status)
	}
}

func TestRecomputeObservesLateAdvance(t *testing.T) {
	svc, repo, _ := newTestService(&fakePlanner{})
	repo.orders[1] = Order{ID: 1, Status: StatusProcessing}
	repo.statuses[1] = []tasks.Status{tasks.StatusPendingPick}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.updateGate = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	first := make(chan error, 1)
	go func() { first <- svc.Recompute(context.Background(), 1) }()
	<-entered

	// The last task reaches a terminal state while the first recompute
	// is mid-write, then its own recompute arrives and joins the
	// in-flight call.
	repo.mu.Lock()
	repo.statuses[1] = []tasks.Status{tasks.StatusHandedOff}
	repo.mu.Unlock()

	second := make(chan error, 1)
	go func() { second <- svc.Recompute(context.Background(), 1) }()
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)

	order, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, order.Status)
}

func TestRecomputeWithoutTasksKeepsStatus(t *testing.T) {
	svc, repo, _ := newTestService(&fakePlanner{})
	repo.orders[1] = Order{ID: 1, Status: StatusProcessing}

	require.NoError(t, svc.Recompute(context.Background(), 1))
	require.Empty(t, repo.updates)
}

func TestOverrideStatus(t *testing.T) {
	svc, repo, _ := newTestService(&fakePlanner{})
	repo.orders[1] = Order{ID: 1, Status: StatusProcessing}

	require.NoError(t, svc.OverrideStatus(context.Background(), 1, StatusDelivered, 7))
	order, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, order.Status)

	err = svc.OverrideStatus(context.Background(), 1, Status("nope"), 7)
	require.ErrorIs(t, err, ErrInvalidStatus)

	err = svc.OverrideStatus(context.Background(), 42, StatusDelivered, 7)
	require.ErrorIs(t, err, ErrNotFound)
}
