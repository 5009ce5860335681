package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ostrovmarket/fulfillment/internal/inventory"
)

// BarcodePort resolves barcodes to catalog variations.
type BarcodePort interface {
	VariationByBarcode(ctx context.Context, barcode string) (inventory.Variation, error)
}

// RepositoryPort abstracts scan counter persistence.
type RepositoryPort interface {
	// IncrementScanned bumps the scan counter of one task item, bounded
	// by the required quantity.
	IncrementScanned(ctx context.Context, taskID, variationID int64) error
	// ItemsFor lists the scan progress of every item on the task.
	ItemsFor(ctx context.Context, taskID int64) ([]ItemProgress, error)
}

// Service implements barcode reconciliation. Each physical scan of an
// item during pick/pack is reported here; the task cannot reach a
// completion state until every item is fully scanned.
type Service struct {
	repo     RepositoryPort
	barcodes BarcodePort
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, barcodes BarcodePort, logger *slog.Logger) *Service {
	return &Service{repo: repo, barcodes: barcodes, logger: logger}
}

// Scan records one scan of the given barcode against the task and
// returns the updated progress. A barcode that resolves to no
// variation, a variation the task does not require, and a scan past the
// required quantity each fail with their own error, and the counters
// stay untouched.
func (s *Service) Scan(ctx context.Context, taskID int64, barcode string) (Progress, error) {
	if barcode == "" {
		return Progress{}, fmt.Errorf("%w: empty barcode", ErrUnknownBarcode)
	}
	variation, err := s.barcodes.VariationByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			return Progress{}, fmt.Errorf("%w: %q", ErrUnknownBarcode, barcode)
		}
		return Progress{}, fmt.Errorf("resolve barcode: %w", err)
	}
	if err := s.repo.IncrementScanned(ctx, taskID, variation.ID); err != nil {
		return Progress{}, err
	}
	return s.Progress(ctx, taskID)
}

// Progress returns the reconciliation state of a task.
func (s *Service) Progress(ctx context.Context, taskID int64) (Progress, error) {
	items, err := s.repo.ItemsFor(ctx, taskID)
	if err != nil {
		return Progress{}, err
	}
	return Progress{TaskID: taskID, Items: items, Complete: complete(items)}, nil
}

// IsComplete reports whether every required item has been fully
// scanned. The task manager consults it before completion transitions.
func (s *Service) IsComplete(ctx context.Context, taskID int64) (bool, error) {
	items, err := s.repo.ItemsFor(ctx, taskID)
	if err != nil {
		return false, err
	}
	return complete(items), nil
}

func complete(items []ItemProgress) bool {
	for _, item := range items {
		if item.Scanned < item.Qty {
			return false
		}
	}
	return len(items) > 0
}
