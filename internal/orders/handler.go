package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

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

type createOrderRequest struct {
	CustomerRef string             `json:"customer_ref"`
	PartnerRef  string             `json:"partner_ref"`
	Items       []domain.OrderItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Create(r.Context(), req.CustomerRef, req.PartnerRef, req.Items, req.TotalAmount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "customer_ref", order.CustomerRef, "total", order.TotalAmount)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		CustomerRef: r.URL.Query().Get("customer"),
		PartnerRef:  r.URL.Query().Get("partner"),
		Status:      domain.OrderStatus(r.URL.Query().Get("status")),
	}

	if filter.Status != "" && !domain.KnownStatus(domain.KindOrder, string(filter.Status)) {
		h.writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.AdvanceStatus(r.Context(), id, req.Status)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

type markPaidRequest struct {
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

func (h *Handler) HandleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req markPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.MarkPaid(r.Context(), id, req.TransactionID, req.PaymentMethod, req.Amount, req.PaidAt)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("order marked paid", "order_id", order.ID, "transaction_id", req.TransactionID)
	h.writeJSON(w, http.StatusOK, order)
}

type addReviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func (h *Handler) HandleAddReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req addReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.AddReview(r.Context(), id, req.Rating, req.Review)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("order reviewed", "order_id", order.ID, "rating", req.Rating)
	h.writeJSON(w, http.StatusOK, order)
}

type updateOrderRequest struct {
	Items       []domain.OrderItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var req updateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Update(r.Context(), id, req.Items, req.TotalAmount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("order updated", "order_id", order.ID, "total", order.TotalAmount)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var illegal *domain.IllegalTransitionError
	var mismatch *domain.AmountMismatchError

	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "order not found")
	case errors.As(err, &illegal), errors.As(err, &mismatch),
		errors.Is(err, domain.ErrEmptyItems),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrInvalidRating):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrReviewNotAllowed),
		errors.Is(err, domain.ErrNotDeletable),
		errors.Is(err, domain.ErrOrderClosed),
		errors.Is(err, domain.ErrContended):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("order operation failed", "error", err)
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
