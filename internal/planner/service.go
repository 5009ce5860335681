package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
)

// StockView reads planning inputs from the ledger.
type StockView interface {
	Warehouses(ctx context.Context) ([]inventory.Warehouse, error)
	// AvailabilityFor returns qty per warehouse per variation, only
	// rows with stock.
	AvailabilityFor(ctx context.Context, variationIDs []int64) (map[int64]map[int64]int64, error)
}

// Service plans delivery parts for new orders. Warehouses are drained
// in ascending id order; a line that one warehouse cannot cover spills
// into the next, so a single line may split across parts. Quantities
// are conserved: the parts of an order sum to exactly the ordered
// quantities.
type Service struct {
	stock  StockView
	logger *slog.Logger
}

// NewService builds Service.
func NewService(stock StockView, logger *slog.Logger) *Service {
	return &Service{stock: stock, logger: logger}
}

// PlanInTx produces and persists the delivery parts of an order inside
// the caller's transaction. Reservations, part rows and warehouse tasks
// commit together with the order; any failure rolls everything back.
func (s *Service) PlanInTx(ctx context.Context, tx pgx.Tx, order PlanOrder) ([]Part, error) {
	if len(order.Lines) == 0 {
		return nil, fmt.Errorf("planner: order %d has no lines", order.ID)
	}
	variationIDs := make([]int64, 0, len(order.Lines))
	for _, line := range order.Lines {
		if line.VariationID == 0 || line.Qty <= 0 {
			return nil, fmt.Errorf("planner: order %d: invalid line", order.ID)
		}
		variationIDs = append(variationIDs, line.VariationID)
	}

	warehouses, err := s.stock.Warehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load warehouses: %w", err)
	}
	avail, err := s.stock.AvailabilityFor(ctx, variationIDs)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}

	parts, err := partition(order.Lines, warehouses, avail, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	ledger := inventory.NewTxRepository(tx)
	for i := range parts {
		parts[i].OrderID = order.ID
		for _, item := range parts[i].Items {
			err := inventory.ReserveInTx(ctx, ledger, inventory.ReserveInput{
				WarehouseID: parts[i].WarehouseID,
				VariationID: item.VariationID,
				Qty:         item.Qty,
				RefModule:   "PLANNER",
				RefID:       order.Number,
				ActorID:     order.ActorID,
			})
			if err != nil {
				if errors.Is(err, inventory.ErrInsufficientStock) {
					// Stock moved between the availability read and
					// the reservation.
					return nil, fmt.Errorf("%w: stock changed during planning", ErrUnfulfillableOrder)
				}
				return nil, fmt.Errorf("reserve: %w", err)
			}
		}

		partID, err := InsertPartTx(ctx, tx, parts[i])
		if err != nil {
			return nil, fmt.Errorf("insert part: %w", err)
		}
		parts[i].ID = partID

		taskItems := make([]tasks.Item, len(parts[i].Items))
		for j, item := range parts[i].Items {
			taskItems[j] = tasks.Item{VariationID: item.VariationID, Qty: item.Qty}
		}
		task, err := tasks.InsertTaskTx(ctx, tx, tasks.Task{
			PartID:      partID,
			OrderID:     order.ID,
			WarehouseID: parts[i].WarehouseID,
			Status:      tasks.StatusPendingPick,
			CreatedAt:   time.Now().UTC(),
			Items:       taskItems,
		})
		if err != nil {
			return nil, fmt.Errorf("insert task: %w", err)
		}
		parts[i].TaskID = task.ID
	}

	if s.logger != nil {
		s.logger.Info("order planned",
			slog.Int64("order_id", order.ID),
			slog.Int("parts", len(parts)))
	}
	return parts, nil
}

// partition allocates the demand across warehouses in priority order,
// producing one part per warehouse used. The first warehouse with any
// usable stock is treated as primary; later parts carry the spill
// reason. Items within a part are ordered by variation id so that
// reservations take their row locks in the same order as transfers.
func partition(lines []Demand, warehouses []inventory.Warehouse, avail map[int64]map[int64]int64, now time.Time) ([]Part, error) {
	remaining := make(map[int64]int64, len(lines))
	order := make([]int64, 0, len(lines))
	for _, line := range lines {
		if remaining[line.VariationID] == 0 {
			order = append(order, line.VariationID)
		}
		remaining[line.VariationID] += line.Qty
	}

	sorted := make([]inventory.Warehouse, len(warehouses))
	copy(sorted, warehouses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var parts []Part
	for _, wh := range sorted {
		stock := avail[wh.ID]
		if len(stock) == 0 {
			continue
		}
		var items []Item
		for _, variationID := range order {
			need := remaining[variationID]
			if need == 0 {
				continue
			}
			take := stock[variationID]
			if take > need {
				take = need
			}
			if take == 0 {
				continue
			}
			items = append(items, Item{VariationID: variationID, Qty: take})
			remaining[variationID] -= take
		}
		if len(items) == 0 {
			continue
		}
		sort.Slice(items, func(i, j int) bool { return items[i].VariationID < items[j].VariationID })
		reason := ReasonSpill
		if len(parts) == 0 {
			reason = ReasonPrimary
		}
		parts = append(parts, Part{
			WarehouseID: wh.ID,
			Reason:      reason,
			ETA:         now.AddDate(0, 0, wh.LeadTimeDays),
			Cost:        wh.DeliveryCost,
			Items:       items,
		})
	}

	for _, need := range remaining {
		if need > 0 {
			return nil, ErrUnfulfillableOrder
		}
	}
	return parts, nil
}
