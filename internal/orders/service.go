package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tiffinbox/platform/internal/domain"
	"github.com/tiffinbox/platform/internal/notifier"
)

// statusRetryLimit bounds how often AdvanceStatus re-reads and retries after
// losing the CAS race. The legality check runs again on every attempt against
// the freshly read status.
const statusRetryLimit = 3

const notifyTimeout = 5 * time.Second

var (
	meter = otel.Meter("github.com/tiffinbox/platform/internal/orders")

	ordersCreated     metric.Int64Counter
	statusTransitions metric.Int64Counter
	paymentsRecorded  metric.Int64Counter
)

func init() {
	ordersCreated, _ = meter.Int64Counter("orders.created",
		metric.WithDescription("Orders accepted by the lifecycle service."))
	statusTransitions, _ = meter.Int64Counter("orders.status_transitions",
		metric.WithDescription("Successful order status transitions."))
	paymentsRecorded, _ = meter.Int64Counter("orders.payments_recorded",
		metric.WithDescription("Payments recorded exactly once per order."))
}

// Store is the persistence contract the service needs. Every compare-and-X
// method must be a single atomic conditional write that reports ErrConflict
// when the precondition no longer holds.
type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	UpdateStatusFrom(ctx context.Context, id string, from, to domain.OrderStatus) error
	MarkPaid(ctx context.Context, id string, payment domain.PaymentDetails) error
	SetReview(ctx context.Context, id string, rating int, review string) error
	DeleteIfDeletable(ctx context.Context, id string) error
	UpdateItems(ctx context.Context, id string, items []domain.OrderItem, total decimal.Decimal) error
}

// Service orchestrates the order lifecycle: guarded creation, status
// transitions along the registered edges, one-time payment, one-time review
// and audit-safe deletion. It holds no in-process state; all correctness
// under concurrency comes from the store's conditional writes.
type Service struct {
	store      Store
	dispatcher notifier.Dispatcher
	logger     *slog.Logger
}

func NewService(store Store, dispatcher notifier.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (s *Service) Create(ctx context.Context, customerRef, partnerRef string, items []domain.OrderItem, claimedTotal decimal.Decimal) (*domain.Order, error) {
	if err := domain.ValidateItems(items); err != nil {
		return nil, err
	}
	if err := domain.ValidateTotal(items, claimedTotal); err != nil {
		return nil, err
	}

	order := &domain.Order{
		CustomerRef: customerRef,
		PartnerRef:  partnerRef,
		Items:       items,
		TotalAmount: claimedTotal,
		Status:      domain.OrderStatusPending,
		IsPaid:      false,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	ordersCreated.Add(ctx, 1)
	s.notifyCreated(order)

	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	return s.store.List(ctx, filter)
}

// AdvanceStatus moves the order along one edge of the transition graph. The
// current status is read only to pick the CAS precondition; if another writer
// wins the race the read and legality check are repeated against the new
// status, up to statusRetryLimit attempts.
func (s *Service) AdvanceStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	for attempt := 0; attempt < statusRetryLimit; attempt++ {
		order, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, domain.ErrNotFound
		}

		if err := domain.ValidateTransition(domain.KindOrder, string(order.Status), string(to)); err != nil {
			return nil, err
		}

		err = s.store.UpdateStatusFrom(ctx, id, order.Status, to)
		if errors.Is(err, ErrConflict) {
			s.logger.Warn("status update lost write race, retrying",
				"order_id", id, "from", order.Status, "to", to, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		updated, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		statusTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
		s.notifyStatusChanged(updated)

		return updated, nil
	}

	return nil, domain.ErrContended
}

// MarkPaid records the payment exactly once. A store conflict here means the
// order was already paid; it is never retried, since applying a payment twice
// is the one failure this engine exists to prevent.
func (s *Service) MarkPaid(ctx context.Context, id, transactionID, paymentMethod string, amount decimal.Decimal, paidAt *time.Time) (*domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateAmount(amount, order.TotalAmount); err != nil {
		return nil, err
	}

	when := time.Now().UTC()
	if paidAt != nil {
		when = paidAt.UTC()
	}

	payment := domain.PaymentDetails{
		TransactionID: transactionID,
		PaymentMethod: paymentMethod,
		Amount:        amount,
		PaidAt:        when,
	}

	err = s.store.MarkPaid(ctx, id, payment)
	if errors.Is(err, ErrConflict) {
		return nil, domain.ErrAlreadyPaid
	}
	if err != nil {
		return nil, err
	}

	paymentsRecorded.Add(ctx, 1)

	return s.Get(ctx, id)
}

// AddReview attaches the one-time review. A conflict means the order is not
// delivered yet or already reviewed; callers get the same answer for both,
// since both are precondition failures.
func (s *Service) AddReview(ctx context.Context, id string, rating int, review string) (*domain.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.ErrInvalidRating
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	err := s.store.SetReview(ctx, id, rating, review)
	if errors.Is(err, ErrConflict) {
		return nil, domain.ErrReviewNotAllowed
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete removes the order while it is still pending or cancelled. Committed
// orders are retained for audit.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteIfDeletable(ctx, id)
	if errors.Is(err, ErrConflict) {
		order, getErr := s.store.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if order == nil {
			return domain.ErrNotFound
		}
		return domain.ErrNotDeletable
	}
	return err
}

// Update replaces the item list with the same total check as creation. It is
// rejected once the order reached a terminal status.
func (s *Service) Update(ctx context.Context, id string, items []domain.OrderItem, claimedTotal decimal.Decimal) (*domain.Order, error) {
	if err := domain.ValidateItems(items); err != nil {
		return nil, err
	}
	if err := domain.ValidateTotal(items, claimedTotal); err != nil {
		return nil, err
	}

	err := s.store.UpdateItems(ctx, id, items, claimedTotal)
	if errors.Is(err, ErrConflict) {
		order, getErr := s.store.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if order == nil {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrOrderClosed
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *Service) notifyCreated(order *domain.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.dispatcher.OrderCreated(ctx, order); err != nil {
			s.logger.Error("failed to dispatch order created notification", "error", err, "order_id", order.ID)
		}
	}()
}

func (s *Service) notifyStatusChanged(order *domain.Order) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.dispatcher.OrderStatusChanged(ctx, order); err != nil {
			s.logger.Error("failed to dispatch status change notification",
				"error", err, "order_id", order.ID, "status", order.Status)
		}
	}()
}
