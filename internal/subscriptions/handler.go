package subscriptions

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tiffinbox/platform/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type createSubscriptionRequest struct {
	CustomerRef  string          `json:"customer_ref"`
	PartnerRef   string          `json:"partner_ref"`
	PlanName     string          `json:"plan_name"`
	PricePerWeek decimal.Decimal `json:"price_per_week"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.service.Create(r.Context(), req.CustomerRef, req.PartnerRef, req.PlanName, req.PricePerWeek)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("subscription created", "subscription_id", sub.ID, "plan", sub.PlanName)
	h.writeJSON(w, http.StatusCreated, sub)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	customerRef := r.URL.Query().Get("customer")
	if customerRef == "" {
		h.writeError(w, http.StatusBadRequest, "missing customer query parameter")
		return
	}

	subs, err := h.service.ListByCustomer(r.Context(), customerRef)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, subs)
}

type updateStatusRequest struct {
	Status domain.SubscriptionStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.service.AdvanceStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("subscription status updated", "subscription_id", sub.ID, "status", sub.Status)
	h.writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Pause(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("subscription paused", "subscription_id", sub.ID)
	h.writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("subscription resumed", "subscription_id", sub.ID)
	h.writeJSON(w, http.StatusOK, sub)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sub, err := h.service.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("subscription cancelled", "subscription_id", sub.ID, "reason", sub.CancellationReason)
	h.writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var illegal *domain.IllegalTransitionError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "subscription not found")
	case errors.Is(err, domain.ErrInvalidItem):
		h.writeError(w, http.StatusBadRequest, "price must be non-negative")
	case errors.As(err, &illegal):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyCancelled), errors.Is(err, domain.ErrContended):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("subscription operation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
