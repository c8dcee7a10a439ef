//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tiffinbox/platform/internal/domain"
	"github.com/tiffinbox/platform/internal/meals"
	"github.com/tiffinbox/platform/internal/messaging"
	"github.com/tiffinbox/platform/internal/notifier"
	"github.com/tiffinbox/platform/internal/orders"
	"github.com/tiffinbox/platform/internal/subscriptions"
	"github.com/tiffinbox/platform/internal/telemetry"
)

func orderItems() []domain.OrderItem {
	return []domain.OrderItem{
		{MenuItemRef: "butter-chicken", UnitPrice: decimal.RequireFromString("12.99"), Quantity: 2},
		{MenuItemRef: "garlic-naan", UnitPrice: decimal.RequireFromString("8.99"), Quantity: 1},
	}
}

func TestOrderLifecycleFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := telemetry.OpenDB("postgres", pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.Default()
	svc := orders.NewService(orders.NewOrderRepository(db), notifier.Noop{}, logger)

	total := decimal.RequireFromString("34.97")
	order, err := svc.Create(ctx, "customer-1", "partner-1", orderItems(), total)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if order.IsPaid {
		t.Fatal("new order must be unpaid")
	}

	// A mismatched total is a hard rejection.
	if _, err := svc.Create(ctx, "customer-1", "partner-1", orderItems(), decimal.RequireFromString("30.00")); err == nil {
		t.Fatal("expected amount mismatch rejection")
	}

	for _, s := range []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReady,
		domain.OrderStatusDelivered,
	} {
		if _, err := svc.AdvanceStatus(ctx, order.ID, s); err != nil {
			t.Fatalf("failed to advance to %s: %v", s, err)
		}
	}

	// Skipping a stage is rejected with both states named.
	var illegal *domain.IllegalTransitionError
	if _, err := svc.AdvanceStatus(ctx, order.ID, domain.OrderStatusPreparing); !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}

	paid, err := svc.MarkPaid(ctx, order.ID, "txn-1", "card", total, nil)
	if err != nil {
		t.Fatalf("failed to mark paid: %v", err)
	}
	if !paid.IsPaid || paid.Payment == nil || paid.Payment.TransactionID != "txn-1" {
		t.Fatalf("payment not recorded: %+v", paid.Payment)
	}

	if _, err := svc.MarkPaid(ctx, order.ID, "txn-2", "card", total, nil); !errors.Is(err, domain.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}

	got, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if got.Payment.TransactionID != "txn-1" {
		t.Fatalf("payment overwritten: %s", got.Payment.TransactionID)
	}

	reviewed, err := svc.AddReview(ctx, order.ID, 5, "excellent")
	if err != nil {
		t.Fatalf("failed to add review: %v", err)
	}
	if reviewed.Rating == nil || *reviewed.Rating != 5 {
		t.Fatalf("rating = %v, want 5", reviewed.Rating)
	}

	if _, err := svc.AddReview(ctx, order.ID, 1, "changed my mind"); !errors.Is(err, domain.ErrReviewNotAllowed) {
		t.Fatalf("expected ErrReviewNotAllowed, got %v", err)
	}

	// Delivered orders are not deletable.
	if err := svc.Delete(ctx, order.ID); !errors.Is(err, domain.ErrNotDeletable) {
		t.Fatalf("expected ErrNotDeletable, got %v", err)
	}
}

func TestOrderDeletionRules(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := telemetry.OpenDB("postgres", pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	svc := orders.NewService(orders.NewOrderRepository(db), notifier.Noop{}, slog.Default())
	total := decimal.RequireFromString("34.97")

	order, err := svc.Create(ctx, "customer-1", "partner-1", orderItems(), total)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if err := svc.Delete(ctx, order.ID); err != nil {
		t.Fatalf("pending order must be deletable: %v", err)
	}
	if _, err := svc.Get(ctx, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	cancelled, err := svc.Create(ctx, "customer-1", "partner-1", orderItems(), total)
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if _, err := svc.AdvanceStatus(ctx, cancelled.ID, domain.OrderStatusCancelled); err != nil {
		t.Fatalf("failed to cancel: %v", err)
	}
	if err := svc.Delete(ctx, cancelled.ID); err != nil {
		t.Fatalf("cancelled order must be deletable: %v", err)
	}
}

func TestSubscriptionAndMealFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	db, err := telemetry.OpenDB("postgres", pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	logger := slog.Default()
	subSvc := subscriptions.NewService(subscriptions.NewSubscriptionRepository(db), logger)
	mealSvc := meals.NewService(meals.NewMealRepository(db), logger)

	sub, err := subSvc.Create(ctx, "customer-1", "partner-1", "weekly-veg", decimal.RequireFromString("49.99"))
	if err != nil {
		t.Fatalf("failed to create subscription: %v", err)
	}
	if _, err := subSvc.Activate(ctx, sub.ID); err != nil {
		t.Fatalf("failed to activate: %v", err)
	}

	meal, err := mealSvc.Create(ctx, sub.ID, "customer-1", "partner-1", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("failed to schedule meal: %v", err)
	}

	skipped, err := mealSvc.Skip(ctx, meal.ID, "out of town")
	if err != nil {
		t.Fatalf("failed to skip meal: %v", err)
	}
	if skipped.Status != domain.MealStatusSkipped || skipped.SkipReason != "out of town" {
		t.Fatalf("skip not recorded: %s %q", skipped.Status, skipped.SkipReason)
	}

	second, err := mealSvc.Create(ctx, sub.ID, "customer-1", "partner-1", time.Now().Add(48*time.Hour))
	if err != nil {
		t.Fatalf("failed to schedule meal: %v", err)
	}
	for _, s := range []domain.MealStatus{domain.MealStatusPreparing, domain.MealStatusReady, domain.MealStatusDelivered} {
		if _, err := mealSvc.AdvanceStatus(ctx, second.ID, s); err != nil {
			t.Fatalf("failed to advance to %s: %v", s, err)
		}
	}
	if _, err := mealSvc.Rate(ctx, second.ID, 4); err != nil {
		t.Fatalf("failed to rate meal: %v", err)
	}
	if _, err := mealSvc.Rate(ctx, second.ID, 5); !errors.Is(err, domain.ErrRatingNotAllowed) {
		t.Fatalf("expected ErrRatingNotAllowed, got %v", err)
	}

	listed, err := mealSvc.ListBySubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("failed to list meals: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("meals = %d, want 2", len(listed))
	}

	if _, err := subSvc.Cancel(ctx, sub.ID, "moving away"); err != nil {
		t.Fatalf("failed to cancel subscription: %v", err)
	}
	if _, err := subSvc.Cancel(ctx, sub.ID, "again"); !errors.Is(err, domain.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestOrderEventsOverKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	dispatcher := notifier.NewKafka(brokers)
	defer func() { _ = dispatcher.Close() }()

	order := &domain.Order{
		ID:          "order-events-1",
		CustomerRef: "customer-1",
		PartnerRef:  "partner-1",
		Items:       orderItems(),
		TotalAmount: decimal.RequireFromString("34.97"),
		Status:      domain.OrderStatusPending,
	}
	if err := dispatcher.OrderCreated(ctx, order); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderCreated, "integration-test")
	defer func() { _ = consumer.Close() }()

	received := make(chan domain.OrderCreatedEvent, 1)
	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()

	go func() {
		_ = consumer.Consume(consumeCtx, func(_ context.Context, payload []byte) error {
			var event domain.OrderCreatedEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				return err
			}
			received <- event
			return nil
		})
	}()

	select {
	case event := <-received:
		if event.OrderID != order.ID {
			t.Fatalf("order_id = %s, want %s", event.OrderID, order.ID)
		}
		if !event.TotalAmount.Equal(order.TotalAmount) {
			t.Fatalf("total = %s, want %s", event.TotalAmount, order.TotalAmount)
		}
	case <-time.After(90 * time.Second):
		t.Fatal("timed out waiting for order created event")
	}
}
