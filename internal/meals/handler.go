package meals

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

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

type createMealRequest struct {
	SubscriptionRef string    `json:"subscription_ref"`
	CustomerRef     string    `json:"customer_ref"`
	PartnerRef      string    `json:"partner_ref"`
	ScheduledFor    time.Time `json:"scheduled_for"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meal, err := h.service.Create(r.Context(), req.SubscriptionRef, req.CustomerRef, req.PartnerRef, req.ScheduledFor)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("meal scheduled", "meal_id", meal.ID, "subscription_ref", meal.SubscriptionRef)
	h.writeJSON(w, http.StatusCreated, meal)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	meal, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, meal)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	subscriptionRef := r.URL.Query().Get("subscription")
	if subscriptionRef == "" {
		h.writeError(w, http.StatusBadRequest, "missing subscription query parameter")
		return
	}

	meals, err := h.service.ListBySubscription(r.Context(), subscriptionRef)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, meals)
}

type updateStatusRequest struct {
	Status domain.MealStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meal, err := h.service.AdvanceStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("meal status updated", "meal_id", meal.ID, "status", meal.Status)
	h.writeJSON(w, http.StatusOK, meal)
}

type skipRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) HandleSkip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	meal, err := h.service.Skip(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("meal skipped", "meal_id", meal.ID, "reason", meal.SkipReason)
	h.writeJSON(w, http.StatusOK, meal)
}

type rateRequest struct {
	Rating int `json:"rating"`
}

func (h *Handler) HandleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meal, err := h.service.Rate(r.Context(), r.PathValue("id"), req.Rating)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("meal rated", "meal_id", meal.ID, "rating", req.Rating)
	h.writeJSON(w, http.StatusOK, meal)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var illegal *domain.IllegalTransitionError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "meal not found")
	case errors.Is(err, domain.ErrInvalidRating):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &illegal):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRatingNotAllowed), errors.Is(err, domain.ErrContended):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("meal operation failed", "error", err)
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
