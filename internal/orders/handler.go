package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ostrovmarket/fulfillment/internal/observability"
	"github.com/ostrovmarket/fulfillment/internal/planner"
	"github.com/ostrovmarket/fulfillment/internal/platform/httpx"
	"github.com/ostrovmarket/fulfillment/internal/shared"
)

// Handler wires HTTP endpoints for orders: the checkout flow, admin
// reads and the status override.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}/status", h.handleOverrideStatus)
}

type createRequest struct {
	Number        string        `json:"number"`
	PaymentMethod string        `json:"payment_method" validate:"required"`
	TotalAmount   float64       `json:"total_amount" validate:"gte=0"`
	Address       string        `json:"address" validate:"required"`
	Lat           float64       `json:"lat" validate:"gte=-90,lte=90"`
	Lon           float64       `json:"lon" validate:"gte=-180,lte=180"`
	Lines         []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

type lineRequest struct {
	VariationID int64 `json:"variation_id" validate:"required"`
	Qty         int64 `json:"qty" validate:"required,gt=0"`
}

type overrideRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderResponse struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	PaymentMethod string         `json:"payment_method"`
	TotalAmount   float64        `json:"total_amount"`
	Status        string         `json:"status"`
	Address       string         `json:"address,omitempty"`
	ETA           *time.Time     `json:"eta,omitempty"`
	Lines         []lineRequest  `json:"lines,omitempty"`
	Parts         []partResponse `json:"parts,omitempty"`
}

type partResponse struct {
	ID          int64         `json:"id"`
	WarehouseID int64         `json:"warehouse_id"`
	Reason      string        `json:"reason"`
	ETA         time.Time     `json:"eta"`
	Cost        float64       `json:"cost"`
	TaskID      int64         `json:"task_id,omitempty"`
	TaskStatus  string        `json:"task_status,omitempty"`
	Items       []lineRequest `json:"items,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]Line, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = Line{VariationID: line.VariationID, Qty: line.Qty}
	}
	order, parts, err := h.service.Create(r.Context(), CreateInput{
		Number:         req.Number,
		PaymentMethod:  req.PaymentMethod,
		TotalAmount:    req.TotalAmount,
		Address:        req.Address,
		Lat:            req.Lat,
		Lon:            req.Lon,
		Lines:          lines,
		ActorID:        shared.ActorFromContext(r.Context()),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.countPlan(planOutcome(err))
		h.respondError(w, "create order failed", err)
		return
	}
	h.countPlan("planned")

	resp := toOrderResponse(order)
	resp.Parts = make([]partResponse, 0, len(parts))
	for _, part := range parts {
		items := make([]lineRequest, 0, len(part.Items))
		for _, item := range part.Items {
			items = append(items, lineRequest{VariationID: item.VariationID, Qty: item.Qty})
		}
		resp.Parts = append(resp.Parts, partResponse{
			ID:          part.ID,
			WarehouseID: part.WarehouseID,
			Reason:      part.Reason,
			ETA:         part.ETA,
			Cost:        part.Cost,
			TaskID:      part.TaskID,
			Items:       items,
		})
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get order failed", err)
		return
	}
	resp := toOrderResponse(detail.Order)
	resp.Parts = make([]partResponse, 0, len(detail.Parts))
	for _, part := range detail.Parts {
		items := make([]lineRequest, 0, len(part.Items))
		for _, item := range part.Items {
			items = append(items, lineRequest{VariationID: item.VariationID, Qty: item.Qty})
		}
		resp.Parts = append(resp.Parts, partResponse{
			ID:          part.ID,
			WarehouseID: part.WarehouseID,
			Reason:      part.Reason,
			ETA:         part.ETA,
			Cost:        part.Cost,
			TaskID:      part.TaskID,
			TaskStatus:  part.TaskStatus,
			Items:       items,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOverrideStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid order id")
		return
	}
	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.OverrideStatus(r.Context(), id, Status(req.Status), actor); err != nil {
		h.respondError(w, "override status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) countPlan(outcome string) {
	if h.metrics != nil {
		h.metrics.PlansTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Status", err.Error())
	case errors.Is(err, planner.ErrUnfulfillableOrder):
		httpx.Problem(w, http.StatusConflict, "Unfulfillable Order", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func planOutcome(err error) string {
	if errors.Is(err, planner.ErrUnfulfillableOrder) {
		return "unfulfillable"
	}
	return "error"
}

func toOrderResponse(order Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		Number:        order.Number,
		PaymentMethod: order.PaymentMethod,
		TotalAmount:   order.TotalAmount,
		Status:        string(order.Status),
		Address:       order.Address,
	}
	if !order.ETA.IsZero() {
		eta := order.ETA
		resp.ETA = &eta
	}
	for _, line := range order.Lines {
		resp.Lines = append(resp.Lines, lineRequest{VariationID: line.VariationID, Qty: line.Qty})
	}
	return resp
}
