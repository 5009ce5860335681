package tasks

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

// Handler wires HTTP endpoints for warehouse tasks. Sellers advance the
// pick/pack states; couriers and in-store staff advance the handoff
// states.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs the tasks handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/advance", h.handleAdvance)
}

// MountWarehouseRoutes registers warehouse-scoped listings.
func (h *Handler) MountWarehouseRoutes(r chi.Router) {
	r.Get("/{warehouseID}/tasks", h.handleList)
}

type advanceRequest struct {
	Target string `json:"target" validate:"required"`
}

type taskResponse struct {
	ID          int64          `json:"id"`
	PartID      int64          `json:"part_id"`
	OrderID     int64          `json:"order_id"`
	WarehouseID int64          `json:"warehouse_id"`
	Status      string         `json:"status"`
	CourierID   int64          `json:"courier_id,omitempty"`
	Items       []itemResponse `json:"items,omitempty"`
}

type itemResponse struct {
	VariationID int64 `json:"variation_id"`
	Qty         int64 `json:"qty"`
	Scanned     int64 `json:"scanned"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	task, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get task failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid warehouse id")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := h.service.ListByWarehouse(r.Context(), warehouseID, activeOnly)
	if err != nil {
		h.respondError(w, "list tasks failed", err)
		return
	}
	result := make([]taskResponse, 0, len(list))
	for _, task := range list {
		result = append(result, toTaskResponse(task))
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	var req advanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.Advance(r.Context(), id, Status(req.Target))
	if err != nil {
		h.respondError(w, "advance failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.TasksAdvanced.WithLabelValues(string(task.Status)).Inc()
	}
	httpx.JSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrIllegalTransition):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Illegal Transition", err.Error())
	case errors.Is(err, ErrReconciliationIncomplete):
		httpx.Problem(w, http.StatusConflict, "Reconciliation Incomplete", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func toTaskResponse(task Task) taskResponse {
	items := make([]itemResponse, 0, len(task.Items))
	for _, item := range task.Items {
		items = append(items, itemResponse{VariationID: item.VariationID, Qty: item.Qty, Scanned: item.Scanned})
	}
	return taskResponse{
		ID:          task.ID,
		PartID:      task.PartID,
		OrderID:     task.OrderID,
		WarehouseID: task.WarehouseID,
		Status:      string(task.Status),
		CourierID:   task.CourierID,
		Items:       items,
	}
}
