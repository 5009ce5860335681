package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ostrovmarket/fulfillment/internal/platform/httpx"
	"github.com/ostrovmarket/fulfillment/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module. Stock-in and
// transfer are called by the inventory admin tools; the read endpoints
// serve seller dashboards.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stock-in", h.handleStockIn)
	r.Post("/transfers", h.handleTransfer)
	r.Get("/quantity", h.handleQuantity)
	r.Get("/barcode/{barcode}", h.handleBarcode)
}

type stockInRequest struct {
	Code        string `json:"code"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	VariationID int64  `json:"variation_id" validate:"required,gt=0"`
	Qty         int64  `json:"qty" validate:"required,gt=0"`
	Note        string `json:"note"`
}

type transferRequest struct {
	Code         string `json:"code"`
	VariationID  int64  `json:"variation_id" validate:"required,gt=0"`
	SrcWarehouse int64  `json:"src_warehouse_id" validate:"required,gt=0"`
	DstWarehouse int64  `json:"dst_warehouse_id" validate:"required,gt=0"`
	Qty          int64  `json:"qty" validate:"required,gt=0"`
	Note         string `json:"note"`
}

type recordResponse struct {
	WarehouseID int64 `json:"warehouse_id"`
	VariationID int64 `json:"variation_id"`
	Qty         int64 `json:"qty"`
}

func (h *Handler) handleStockIn(w http.ResponseWriter, r *http.Request) {
	var req stockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rec, err := h.service.StockIn(r.Context(), StockInInput{
		Code:        req.Code,
		WarehouseID: req.WarehouseID,
		VariationID: req.VariationID,
		Qty:         req.Qty,
		Note:        req.Note,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "stock-in failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recordResponse{WarehouseID: rec.WarehouseID, VariationID: rec.VariationID, Qty: rec.Qty})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.Transfer(r.Context(), TransferInput{
		Code:         req.Code,
		VariationID:  req.VariationID,
		SrcWarehouse: req.SrcWarehouse,
		DstWarehouse: req.DstWarehouse,
		Qty:          req.Qty,
		Note:         req.Note,
		ActorID:      shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, "transfer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQuantity(w http.ResponseWriter, r *http.Request) {
	warehouseID, err1 := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	variationID, err2 := strconv.ParseInt(r.URL.Query().Get("variation_id"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "warehouse_id and variation_id are required")
		return
	}
	qty, err := h.service.QuantityAt(r.Context(), warehouseID, variationID)
	if err != nil {
		h.respondError(w, "quantity lookup failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, recordResponse{WarehouseID: warehouseID, VariationID: variationID, Qty: qty})
}

func (h *Handler) handleBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := chi.URLParam(r, "barcode")
	info, err := h.service.LookupByBarcode(r.Context(), barcode)
	if err != nil {
		h.respondError(w, "barcode lookup failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidWarehouse), errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
