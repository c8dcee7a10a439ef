package subscriptions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tiffinbox/platform/internal/domain"
)

const statusRetryLimit = 3

type Store interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListByCustomer(ctx context.Context, customerRef string) ([]domain.Subscription, error)
	UpdateStatusFrom(ctx context.Context, id string, from, to domain.SubscriptionStatus) error
	CancelOnce(ctx context.Context, id, reason string, cancelledAt time.Time) error
}

// Service runs meal-plan subscriptions through the guarded lifecycle:
// pending→active, pause/resume, and a one-time cancellation record.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, customerRef, partnerRef, planName string, pricePerWeek decimal.Decimal) (*domain.Subscription, error) {
	if pricePerWeek.IsNegative() {
		return nil, domain.ErrInvalidItem
	}

	sub := &domain.Subscription{
		CustomerRef:  customerRef,
		PartnerRef:   partnerRef,
		PlanName:     planName,
		PricePerWeek: pricePerWeek,
		Status:       domain.SubscriptionStatusPending,
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerRef string) ([]domain.Subscription, error) {
	return s.store.ListByCustomer(ctx, customerRef)
}

func (s *Service) AdvanceStatus(ctx context.Context, id string, to domain.SubscriptionStatus) (*domain.Subscription, error) {
	for attempt := 0; attempt < statusRetryLimit; attempt++ {
		sub, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, domain.ErrNotFound
		}

		if err := domain.ValidateTransition(domain.KindSubscription, string(sub.Status), string(to)); err != nil {
			return nil, err
		}

		err = s.store.UpdateStatusFrom(ctx, id, sub.Status, to)
		if errors.Is(err, ErrConflict) {
			s.logger.Warn("subscription status update lost write race, retrying",
				"subscription_id", id, "from", sub.Status, "to", to, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		return s.Get(ctx, id)
	}

	return nil, domain.ErrContended
}

func (s *Service) Activate(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.AdvanceStatus(ctx, id, domain.SubscriptionStatusActive)
}

func (s *Service) Pause(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.AdvanceStatus(ctx, id, domain.SubscriptionStatusPaused)
}

// Resume is only legal from paused; the transition table rejects everything
// else, including resuming an expired plan.
func (s *Service) Resume(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.AdvanceStatus(ctx, id, domain.SubscriptionStatusActive)
}

func (s *Service) Expire(ctx context.Context, id string) (*domain.Subscription, error) {
	return s.AdvanceStatus(ctx, id, domain.SubscriptionStatusExpired)
}

// Cancel records the one-time cancellation addendum. A conflict means the
// plan is already cancelled or expired; it is never retried because a second
// cancellation must not overwrite the first record.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*domain.Subscription, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	err := s.store.CancelOnce(ctx, id, reason, time.Now().UTC())
	if errors.Is(err, ErrConflict) {
		return nil, domain.ErrAlreadyCancelled
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}
