package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"github.com/ostrovmarket/fulfillment/internal/planner"
	"github.com/ostrovmarket/fulfillment/internal/shared"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
)

// PlannerPort plans delivery parts inside the order's transaction.
type PlannerPort interface {
	PlanInTx(ctx context.Context, tx pgx.Tx, order planner.PlanOrder) ([]planner.Part, error)
}

// TxStore exposes the writes that must commit together with planning.
type TxStore interface {
	InsertOrder(ctx context.Context, order Order) (Order, error)
	SetETA(ctx context.Context, orderID int64, eta time.Time) error
	Tx() pgx.Tx
}

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Get(ctx context.Context, id int64) (Order, error)
	PartsFor(ctx context.Context, orderID int64) ([]PartView, error)
	TaskStatusesFor(ctx context.Context, orderID int64) ([]tasks.Status, error)
	UpdateStatus(ctx context.Context, orderID int64, status Status) error
}

// IdempotencyPort deduplicates checkout requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns orders and status propagation.
type Service struct {
	repo    RepositoryPort
	planner PlannerPort
	idem    IdempotencyPort
	audit   AuditPort
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, plan PlannerPort, idem IdempotencyPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, planner: plan, idem: idem, audit: audit, logger: logger}
}

// Create registers the order and runs the planner in one transaction.
// Reservations, delivery parts and warehouse tasks commit together with
// the order row; a failed plan leaves nothing behind.
func (s *Service) Create(ctx context.Context, input CreateInput) (Order, []planner.Part, error) {
	if len(input.Lines) == 0 {
		return Order{}, nil, fmt.Errorf("orders: at least one line required")
	}
	for i, line := range input.Lines {
		if line.VariationID == 0 || line.Qty <= 0 {
			return Order{}, nil, fmt.Errorf("orders: line %d: variation and positive qty required", i+1)
		}
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "orders"); err != nil {
			return Order{}, nil, err
		}
	}

	number := input.Number
	if number == "" {
		number = fmt.Sprintf("ORD-%s", uuid.NewString())
	}
	order := Order{
		Number:        number,
		PaymentMethod: input.PaymentMethod,
		TotalAmount:   input.TotalAmount,
		Status:        StatusProcessing,
		Address:       input.Address,
		Lat:           input.Lat,
		Lon:           input.Lon,
		CreatedAt:     time.Now().UTC(),
		Lines:         input.Lines,
	}

	var parts []planner.Part
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		created, err := store.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order = created

		demand := make([]planner.Demand, len(order.Lines))
		for i, line := range order.Lines {
			demand[i] = planner.Demand{VariationID: line.VariationID, Qty: line.Qty}
		}
		parts, err = s.planner.PlanInTx(ctx, store.Tx(), planner.PlanOrder{
			ID:      order.ID,
			Number:  order.Number,
			ActorID: input.ActorID,
			Lines:   demand,
		})
		if err != nil {
			return err
		}

		// Order ETA is the latest part ETA.
		var eta time.Time
		for _, part := range parts {
			if part.ETA.After(eta) {
				eta = part.ETA
			}
		}
		order.ETA = eta
		return store.SetETA(ctx, order.ID, eta)
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idem != nil {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return Order{}, nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "orders:create",
			Entity:   "order",
			EntityID: strconv.FormatInt(order.ID, 10),
			Meta:     map[string]any{"number": order.Number, "parts": len(parts)},
		})
	}
	return order, parts, nil
}

// Get loads an order with its parts and task statuses.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	parts, err := s.repo.PartsFor(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Order: order, Parts: parts}, nil
}

// Recompute derives the order status from its task states. It is
// idempotent and safe to call after every task advance; concurrent
// invocations for the same order collapse into one.
func (s *Service) Recompute(ctx context.Context, orderID int64) error {
	key := strconv.FormatInt(orderID, 10)
	run := func() (any, error) { return nil, s.recompute(ctx, orderID) }
	_, err, joined := s.group.Do(key, run)
	if err != nil || !joined {
		return err
	}
	// A joined call may have read the task statuses before the advance
	// that triggered this invocation committed. One more pass observes it.
	_, err, _ = s.group.Do(key, run)
	return err
}

func (s *Service) recompute(ctx context.Context, orderID int64) error {
	statuses, err := s.repo.TaskStatusesFor(ctx, orderID)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		return nil
	}
	return s.repo.UpdateStatus(ctx, orderID, derive(statuses))
}

// OverrideStatus sets the order status directly, bypassing propagation.
// The write is audit-logged as an administrative exception.
func (s *Service) OverrideStatus(ctx context.Context, orderID int64, status Status, actorID int64) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := s.repo.UpdateStatus(ctx, orderID, status); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "orders:override_status",
			Entity:   "order",
			EntityID: strconv.FormatInt(orderID, 10),
			Meta:     map[string]any{"status": string(status)},
		})
	}
	if s.logger != nil {
		s.logger.Info("order status overridden",
			slog.Int64("order_id", orderID),
			slog.String("status", string(status)),
			slog.Int64("actor_id", actorID))
	}
	return nil
}

// derive applies the fixed precedence: any delayed task wins, then any
// non-terminal task, then all-terminal.
func derive(statuses []tasks.Status) Status {
	allTerminal := true
	for _, st := range statuses {
		if st == tasks.StatusDelayed {
			return StatusDelayed
		}
		if !st.Terminal() {
			allTerminal = false
		}
	}
	if allTerminal {
		return StatusDelivered
	}
	return StatusProcessing
}
