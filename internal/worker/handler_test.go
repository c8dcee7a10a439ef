package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tiffinbox/platform/internal/domain"
)

type capturedEmail struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Category string `json:"category"`
}

type fakeEmailService struct {
	mu     sync.Mutex
	emails []capturedEmail
}

func (f *fakeEmailService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var e capturedEmail
	_ = json.NewDecoder(r.Body).Decode(&e)
	f.mu.Lock()
	f.emails = append(f.emails, e)
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *fakeEmailService) sent() []capturedEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedEmail(nil), f.emails...)
}

func newHandler(t *testing.T, orderStatus int) (*NotificationHandler, *fakeEmailService, *[]string) {
	t.Helper()

	emails := &fakeEmailService{}
	emailSrv := httptest.NewServer(emails)
	t.Cleanup(emailSrv.Close)

	var statusCalls []string
	orderSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statusCalls = append(statusCalls, r.Method+" "+r.URL.Path)
		w.WriteHeader(orderStatus)
	}))
	t.Cleanup(orderSrv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewNotificationHandler(emailSrv.URL, orderSrv.URL, &http.Client{Timeout: time.Second}, logger)
	return h, emails, &statusCalls
}

func TestHandleOrderCreated(t *testing.T) {
	h, emails, statusCalls := newHandler(t, http.StatusOK)

	event := domain.OrderCreatedEvent{
		OrderID:     "order-1",
		CustomerRef: "customer-1",
		PartnerRef:  "partner-1",
		TotalAmount: decimal.RequireFromString("34.97"),
		Timestamp:   time.Now().UTC(),
	}
	payload, _ := json.Marshal(event)

	if err := h.HandleOrderCreated(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := emails.sent()
	if len(sent) != 1 || sent[0].Category != "order_confirmation" {
		t.Fatalf("emails = %+v, want one confirmation", sent)
	}
	if sent[0].To != "customer-1@example.com" {
		t.Errorf("to = %q", sent[0].To)
	}

	if len(*statusCalls) != 1 || (*statusCalls)[0] != "PATCH /orders/order-1/status" {
		t.Errorf("status calls = %v", *statusCalls)
	}
}

func TestHandleOrderCreated_ToleratesLostConfirmationRace(t *testing.T) {
	h, _, _ := newHandler(t, http.StatusBadRequest)

	event := domain.OrderCreatedEvent{OrderID: "order-1", CustomerRef: "customer-1"}
	payload, _ := json.Marshal(event)

	if err := h.HandleOrderCreated(context.Background(), payload); err != nil {
		t.Fatalf("a lost confirmation race must not fail the handler: %v", err)
	}
}

func TestHandleStatusChanged(t *testing.T) {
	cases := []struct {
		status       domain.OrderStatus
		wantEmails   int
		wantCategory string
	}{
		{domain.OrderStatusDelivered, 1, "order_status"},
		{domain.OrderStatusCancelled, 1, "order_cancellation"},
		{domain.OrderStatusPreparing, 0, ""},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			h, emails, _ := newHandler(t, http.StatusOK)

			event := domain.OrderStatusChangedEvent{
				OrderID:     "order-1",
				CustomerRef: "customer-1",
				Status:      tc.status,
				Timestamp:   time.Now().UTC(),
			}
			payload, _ := json.Marshal(event)

			if err := h.HandleStatusChanged(context.Background(), payload); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sent := emails.sent()
			if len(sent) != tc.wantEmails {
				t.Fatalf("emails = %d, want %d", len(sent), tc.wantEmails)
			}
			if tc.wantEmails > 0 && sent[0].Category != tc.wantCategory {
				t.Errorf("category = %q, want %q", sent[0].Category, tc.wantCategory)
			}
		})
	}
}

func TestHandleOrderCreated_RejectsMalformedPayload(t *testing.T) {
	h, _, _ := newHandler(t, http.StatusOK)

	if err := h.HandleOrderCreated(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
