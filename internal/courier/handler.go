package courier

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

// Handler wires HTTP endpoints for the courier dashboard.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs the courier handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers courier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/{id}/claims", h.handleClaim)
	r.Put("/{id}/availability", h.handleAvailability)
	r.Post("/{id}/location", h.handleLocation)
	r.Get("/{id}/route", h.handleRoute)
}

type claimRequest struct {
	TaskIDs []int64 `json:"task_ids" validate:"required,min=1"`
}

type availabilityRequest struct {
	Status string `json:"status" validate:"required"`
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

type courierResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	couriers, err := h.service.List(r.Context())
	if err != nil {
		h.respondError(w, "list couriers failed", err)
		return
	}
	result := make([]courierResponse, 0, len(couriers))
	for _, c := range couriers {
		result = append(result, courierResponse{ID: c.ID, Name: c.Name, Phone: c.Phone, Status: string(c.Status)})
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.courierID(w, r)
	if !ok {
		return
	}
	var req claimRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.Claim(r.Context(), id, req.TaskIDs)
	if err != nil {
		h.countClaim(claimOutcome(err))
		h.respondError(w, "claim failed", err)
		return
	}
	h.countClaim("claimed")
	httpx.JSON(w, http.StatusOK, map[string]string{"claim_batch": batch})
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := h.courierID(w, r)
	if !ok {
		return
	}
	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetAvailability(r.Context(), id, Status(req.Status)); err != nil {
		h.respondError(w, "set availability failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) handleLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.courierID(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateLocation(r.Context(), id, req.Lat, req.Lon); err != nil {
		h.respondError(w, "update location failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.courierID(w, r)
	if !ok {
		return
	}
	route, err := h.service.BuildRoute(r.Context(), id)
	if err != nil {
		h.respondError(w, "build route failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) courierID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid courier id")
		return 0, false
	}
	return id, true
}

func (h *Handler) countClaim(outcome string) {
	if h.metrics != nil {
		h.metrics.ClaimsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTaskNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrMixedWarehouseClaim):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Mixed Warehouse Claim", err.Error())
	case errors.Is(err, ErrTaskAlreadyClaimed):
		httpx.Problem(w, http.StatusConflict, "Task Already Claimed", err.Error())
	case errors.Is(err, ErrCourierBusy):
		httpx.Problem(w, http.StatusConflict, "Courier Busy", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Status", err.Error())
	case errors.Is(err, ErrNoActiveClaim):
		httpx.Problem(w, http.StatusNotFound, "No Active Claim", err.Error())
	default:
		h.logger.Error(msg, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func claimOutcome(err error) string {
	switch {
	case errors.Is(err, ErrMixedWarehouseClaim):
		return "mixed_warehouse"
	case errors.Is(err, ErrTaskAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrCourierBusy):
		return "busy"
	default:
		return "error"
	}
}
