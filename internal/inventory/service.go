package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ostrovmarket/fulfillment/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	QuantityAt(ctx context.Context, warehouseID, variationID int64) (int64, error)
	VariationByBarcode(ctx context.Context, barcode string) (Variation, error)
	QuantitiesFor(ctx context.Context, variationID int64) (map[int64]int64, error)
	Warehouse(ctx context.Context, id int64) (Warehouse, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations. Concurrent mutations of the
// same (warehouse, variation) record serialize on the row lock taken
// by TxRepository.RecordForUpdate; disjoint records proceed in
// parallel.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// StockIn registers inbound stock at a warehouse, creating the record
// when the variation is first seen there.
func (s *Service) StockIn(ctx context.Context, input StockInInput) (Record, error) {
	if input.WarehouseID == 0 || input.VariationID == 0 {
		return Record{}, fmt.Errorf("%w: warehouse and variation required", ErrInvalidWarehouse)
	}
	if input.Qty <= 0 {
		return Record{}, ErrInvalidQuantity
	}
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("IN-%s", uuid.NewString())
	}
	var updated Record
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.WarehouseExists(ctx, input.WarehouseID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidWarehouse
		}
		rec, err := tx.RecordForUpdate(ctx, input.WarehouseID, input.VariationID)
		if err != nil && !errors.Is(err, ErrRecordNotFound) {
			return err
		}
		rec.WarehouseID = input.WarehouseID
		rec.VariationID = input.VariationID
		rec.Qty += input.Qty
		if err := tx.UpsertRecord(ctx, rec); err != nil {
			return err
		}
		if _, err := tx.InsertMovement(ctx, Movement{
			Code:           code,
			Kind:           MovementIn,
			VariationID:    input.VariationID,
			DstWarehouseID: input.WarehouseID,
			Qty:            input.Qty,
			RefModule:      "INVENTORY",
			Note:           input.Note,
			PostedAt:       time.Now().UTC(),
			CreatedBy:      input.ActorID,
		}); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:in", input.WarehouseID, input.VariationID, input.Qty, input.Note)
	return updated, nil
}

// Reserve decrements available stock at planning time. It succeeds
// only when the record holds at least qty units; otherwise
// ErrInsufficientStock and no change.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) error {
	if input.WarehouseID == 0 || input.VariationID == 0 {
		return fmt.Errorf("%w: warehouse and variation required", ErrInvalidWarehouse)
	}
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return ReserveInTx(ctx, tx, input)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:reserve", input.WarehouseID, input.VariationID, input.Qty, input.RefID)
	return nil
}

// ReserveInTx applies one reservation inside an open transaction. The
// planner calls it through its own transaction so reservation and part
// creation commit together.
func ReserveInTx(ctx context.Context, tx TxRepository, input ReserveInput) error {
	rec, err := tx.RecordForUpdate(ctx, input.WarehouseID, input.VariationID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrInsufficientStock
		}
		return err
	}
	if rec.Qty < input.Qty {
		return ErrInsufficientStock
	}
	rec.Qty -= input.Qty
	if err := tx.UpsertRecord(ctx, rec); err != nil {
		return err
	}
	_, err = tx.InsertMovement(ctx, Movement{
		Code:           fmt.Sprintf("RES-%s", uuid.NewString()),
		Kind:           MovementOut,
		VariationID:    input.VariationID,
		SrcWarehouseID: input.WarehouseID,
		Qty:            input.Qty,
		RefModule:      input.RefModule,
		RefID:          input.RefID,
		PostedAt:       time.Now().UTC(),
		CreatedBy:      input.ActorID,
	})
	return err
}

// Transfer atomically moves stock between warehouses. Both legs commit
// in a single transaction; the source and destination rows are locked
// in warehouse-id order to avoid lock inversion with concurrent
// transfers in the opposite direction.
func (s *Service) Transfer(ctx context.Context, input TransferInput) error {
	if input.SrcWarehouse == 0 || input.DstWarehouse == 0 || input.VariationID == 0 {
		return fmt.Errorf("%w: warehouse and variation required", ErrInvalidWarehouse)
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return fmt.Errorf("%w: source and destination must differ", ErrInvalidWarehouse)
	}
	if input.Qty <= 0 {
		return ErrInvalidQuantity
	}
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("TRF-%s", uuid.NewString())
	}
	now := time.Now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, id := range []int64{input.SrcWarehouse, input.DstWarehouse} {
			ok, err := tx.WarehouseExists(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidWarehouse
			}
		}

		first, second := input.SrcWarehouse, input.DstWarehouse
		if second < first {
			first, second = second, first
		}
		records := make(map[int64]Record, 2)
		for _, wid := range []int64{first, second} {
			rec, err := tx.RecordForUpdate(ctx, wid, input.VariationID)
			if err != nil && !errors.Is(err, ErrRecordNotFound) {
				return err
			}
			rec.WarehouseID = wid
			rec.VariationID = input.VariationID
			records[wid] = rec
		}

		src := records[input.SrcWarehouse]
		if src.Qty < input.Qty {
			return ErrInsufficientStock
		}
		src.Qty -= input.Qty
		dst := records[input.DstWarehouse]
		dst.Qty += input.Qty

		if err := tx.UpsertRecord(ctx, src); err != nil {
			return err
		}
		if err := tx.UpsertRecord(ctx, dst); err != nil {
			return err
		}
		_, err := tx.InsertMovement(ctx, Movement{
			Code:           code,
			Kind:           MovementTransfer,
			VariationID:    input.VariationID,
			SrcWarehouseID: input.SrcWarehouse,
			DstWarehouseID: input.DstWarehouse,
			Qty:            input.Qty,
			RefModule:      "INVENTORY",
			Note:           input.Note,
			PostedAt:       now,
			CreatedBy:      input.ActorID,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "inventory:transfer", input.SrcWarehouse, input.VariationID, input.Qty, input.Note)
	return nil
}

// QuantityAt returns the current stock count, zero for unknown records.
func (s *Service) QuantityAt(ctx context.Context, warehouseID, variationID int64) (int64, error) {
	if warehouseID == 0 || variationID == 0 {
		return 0, fmt.Errorf("%w: warehouse and variation required", ErrInvalidWarehouse)
	}
	return s.repo.QuantityAt(ctx, warehouseID, variationID)
}

// LookupByBarcode resolves a barcode to its variation and per-warehouse
// quantities.
func (s *Service) LookupByBarcode(ctx context.Context, barcode string) (BarcodeInfo, error) {
	if barcode == "" {
		return BarcodeInfo{}, fmt.Errorf("%w: empty barcode", ErrNotFound)
	}
	v, err := s.repo.VariationByBarcode(ctx, barcode)
	if err != nil {
		return BarcodeInfo{}, err
	}
	qty, err := s.repo.QuantitiesFor(ctx, v.ID)
	if err != nil {
		return BarcodeInfo{}, err
	}
	return BarcodeInfo{Variation: v, Quantities: qty}, nil
}

// Warehouse returns warehouse master data.
func (s *Service) Warehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.Warehouse(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, warehouseID, variationID, qty int64, note string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_record",
		EntityID: fmt.Sprintf("%d:%d", warehouseID, variationID),
		Meta: map[string]any{
			"warehouse_id": warehouseID,
			"variation_id": variationID,
			"qty":          qty,
			"note":         note,
		},
	})
}
