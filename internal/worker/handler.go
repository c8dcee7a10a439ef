package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tiffinbox/platform/internal/domain"
)

// NotificationHandler turns order events into customer emails. It talks to
// the order API to confirm freshly placed orders and to the email service
// for every customer-facing message.
type NotificationHandler struct {
	emailServiceURL string
	orderServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, orderServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		orderServiceURL: orderServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

// HandleOrderCreated confirms a newly placed order and emails the customer.
// Confirmation goes through the order API so the lifecycle guard stays the
// single authority; a race with a cancellation simply loses here.
func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "customer_ref", event.CustomerRef)

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	if err := h.advanceOrderStatus(ctx, event.OrderID, domain.OrderStatusConfirmed); err != nil {
		h.logger.Error("failed to confirm order", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("confirm order: %w", err)
	}

	h.logger.Info("order confirmed", "order_id", event.OrderID)
	return nil
}

// HandleStatusChanged emails the customer about deliveries and
// cancellations. Intermediate kitchen states are not worth an email.
func (h *NotificationHandler) HandleStatusChanged(ctx context.Context, payload []byte) error {
	var event domain.OrderStatusChangedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal status changed event: %w", err)
	}

	switch event.Status {
	case domain.OrderStatusDelivered, domain.OrderStatusCancelled:
	default:
		h.logger.Debug("skipping status email", "order_id", event.OrderID, "status", event.Status)
		return nil
	}

	if err := h.sendStatusEmail(ctx, event); err != nil {
		h.logger.Error("failed to send status email", "error", err, "order_id", event.OrderID, "status", event.Status)
		return fmt.Errorf("send status email: %w", err)
	}

	h.logger.Info("status email sent", "order_id", event.OrderID, "status", event.Status)
	return nil
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderCreatedEvent) error {
	body := map[string]string{
		"to":       event.CustomerRef + "@example.com",
		"subject":  "Order Confirmation: " + event.OrderID,
		"body":     fmt.Sprintf("Your order %s for %s has been received. Total: %s.", event.OrderID, event.PartnerRef, event.TotalAmount.StringFixed(2)),
		"category": "order_confirmation",
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendStatusEmail(ctx context.Context, event domain.OrderStatusChangedEvent) error {
	subject := fmt.Sprintf("Order Update: %s", event.OrderID)
	text := fmt.Sprintf("Your order %s is now %s.", event.OrderID, event.Status)
	category := "order_status"

	if event.Status == domain.OrderStatusCancelled {
		subject = "Order Cancelled: " + event.OrderID
		text = fmt.Sprintf("Your order %s has been cancelled. Any payment will be reimbursed.", event.OrderID)
		category = "order_cancellation"
	}

	body := map[string]string{
		"to":       event.CustomerRef + "@example.com",
		"subject":  subject,
		"body":     text,
		"category": category,
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

func (h *NotificationHandler) advanceOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := map[string]string{
		"status": string(status),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/orders/%s/status", h.orderServiceURL, orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A 400 means the order moved on before we got here, usually because it
	// was cancelled while the event was in flight. That is not a worker
	// failure and must not wedge the consumer group.
	if resp.StatusCode == http.StatusBadRequest {
		h.logger.Warn("order no longer confirmable", "order_id", orderID)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	return nil
}
