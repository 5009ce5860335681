package scan

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ostrovmarket/fulfillment/internal/observability"
	"github.com/ostrovmarket/fulfillment/internal/platform/httpx"
)

// Handler wires HTTP endpoints for barcode reconciliation.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs the scan handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers scan routes on the tasks router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/scan", h.handleScan)
	r.Get("/{id}/reconciliation", h.handleProgress)
}

type scanRequest struct {
	Barcode string `json:"barcode" validate:"required"`
}

type progressResponse struct {
	TaskID   int64              `json:"task_id"`
	Complete bool               `json:"complete"`
	Items    []itemProgressJSON `json:"items"`
}

type itemProgressJSON struct {
	VariationID int64 `json:"variation_id"`
	Qty         int64 `json:"qty"`
	Scanned     int64 `json:"scanned"`
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	var req scanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	progress, err := h.service.Scan(r.Context(), id, req.Barcode)
	if err != nil {
		h.countScan(outcomeFor(err))
		h.respondError(w, "scan failed", err)
		return
	}
	h.countScan("ok")
	httpx.JSON(w, http.StatusOK, toProgressResponse(progress))
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	progress, err := h.service.Progress(r.Context(), id)
	if err != nil {
		h.respondError(w, "load reconciliation failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProgressResponse(progress))
}

func (h *Handler) countScan(outcome string) {
	if h.metrics != nil {
		h.metrics.ScansTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownBarcode):
		httpx.Problem(w, http.StatusNotFound, "Unknown Barcode", err.Error())
	case errors.Is(err, ErrUnexpectedItem):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unexpected Item", err.Error())
	case errors.Is(err, ErrOverScan):
		httpx.Problem(w, http.StatusConflict, "Over Scan", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnknownBarcode):
		return "unknown_barcode"
	case errors.Is(err, ErrUnexpectedItem):
		return "unexpected_item"
	case errors.Is(err, ErrOverScan):
		return "over_scan"
	default:
		return "error"
	}
}

func toProgressResponse(p Progress) progressResponse {
	items := make([]itemProgressJSON, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, itemProgressJSON{VariationID: item.VariationID, Qty: item.Qty, Scanned: item.Scanned})
	}
	return progressResponse{TaskID: p.TaskID, Complete: p.Complete, Items: items}
}
