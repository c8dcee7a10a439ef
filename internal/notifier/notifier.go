package notifier

import (
	"context"
	"time"

	"github.com/tiffinbox/platform/internal/domain"
	"github.com/tiffinbox/platform/internal/messaging"
)

// Dispatcher publishes customer-facing notification events. Delivery is
// best-effort: the lifecycle services fire these off the request path, log
// failures and never let them affect the stored order.
type Dispatcher interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
	OrderStatusChanged(ctx context.Context, order *domain.Order) error
}

// Kafka publishes events to the order topics, one producer per topic.
type Kafka struct {
	created       *messaging.Producer
	statusChanged *messaging.Producer
}

func NewKafka(brokers []string) *Kafka {
	return &Kafka{
		created:       messaging.NewProducer(brokers, domain.TopicOrderCreated),
		statusChanged: messaging.NewProducer(brokers, domain.TopicOrderStatusChanged),
	}
}

func (k *Kafka) OrderCreated(ctx context.Context, order *domain.Order) error {
	event := domain.OrderCreatedEvent{
		OrderID:     order.ID,
		CustomerRef: order.CustomerRef,
		PartnerRef:  order.PartnerRef,
		Items:       order.Items,
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
	}
	return k.created.Publish(ctx, order.ID, event)
}

func (k *Kafka) OrderStatusChanged(ctx context.Context, order *domain.Order) error {
	event := domain.OrderStatusChangedEvent{
		OrderID:     order.ID,
		CustomerRef: order.CustomerRef,
		Status:      order.Status,
		Timestamp:   time.Now().UTC(),
	}
	return k.statusChanged.Publish(ctx, order.ID, event)
}

func (k *Kafka) Close() error {
	errCreated := k.created.Close()
	errStatus := k.statusChanged.Close()
	if errCreated != nil {
		return errCreated
	}
	return errStatus
}

// Noop is used when no brokers are configured, e.g. in local runs and tests.
type Noop struct{}

func (Noop) OrderCreated(context.Context, *domain.Order) error       { return nil }
func (Noop) OrderStatusChanged(context.Context, *domain.Order) error { return nil }
