package meals

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tiffinbox/platform/internal/domain"
)

const statusRetryLimit = 3

const defaultSkipReason = "customer skipped meal"

type Store interface {
	Create(ctx context.Context, meal *domain.Meal) error
	GetByID(ctx context.Context, id string) (*domain.Meal, error)
	ListBySubscription(ctx context.Context, subscriptionRef string) ([]domain.Meal, error)
	UpdateStatusFrom(ctx context.Context, id string, from, to domain.MealStatus) error
	SkipIfScheduled(ctx context.Context, id, reason string) error
	SetRating(ctx context.Context, id string, rating int) error
}

// Service runs scheduled meals through the same guarded lifecycle as orders:
// CAS status moves, a one-time skip with reason and a one-time rating.
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

func (s *Service) Create(ctx context.Context, subscriptionRef, customerRef, partnerRef string, scheduledFor time.Time) (*domain.Meal, error) {
	meal := &domain.Meal{
		SubscriptionRef: subscriptionRef,
		CustomerRef:     customerRef,
		PartnerRef:      partnerRef,
		ScheduledFor:    scheduledFor.UTC(),
		Status:          domain.MealStatusScheduled,
	}

	if err := s.store.Create(ctx, meal); err != nil {
		return nil, err
	}

	return meal, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Meal, error) {
	meal, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if meal == nil {
		return nil, domain.ErrNotFound
	}
	return meal, nil
}

func (s *Service) ListBySubscription(ctx context.Context, subscriptionRef string) ([]domain.Meal, error) {
	return s.store.ListBySubscription(ctx, subscriptionRef)
}

func (s *Service) AdvanceStatus(ctx context.Context, id string, to domain.MealStatus) (*domain.Meal, error) {
	for attempt := 0; attempt < statusRetryLimit; attempt++ {
		meal, err := s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if meal == nil {
			return nil, domain.ErrNotFound
		}

		if err := domain.ValidateTransition(domain.KindMeal, string(meal.Status), string(to)); err != nil {
			return nil, err
		}

		err = s.store.UpdateStatusFrom(ctx, id, meal.Status, to)
		if errors.Is(err, ErrConflict) {
			s.logger.Warn("meal status update lost write race, retrying",
				"meal_id", id, "from", meal.Status, "to", to, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		return s.Get(ctx, id)
	}

	return nil, domain.ErrContended
}

// Skip cancels a scheduled meal for one day, keeping the reason. A conflict
// means the meal already left the scheduled state, which callers see as an
// illegal transition from wherever it is now.
func (s *Service) Skip(ctx context.Context, id, reason string) (*domain.Meal, error) {
	if reason == "" {
		reason = defaultSkipReason
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	err := s.store.SkipIfScheduled(ctx, id, reason)
	if errors.Is(err, ErrConflict) {
		meal, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &domain.IllegalTransitionError{Kind: domain.KindMeal, From: string(meal.Status), To: string(domain.MealStatusSkipped)}
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Rate attaches the one-time rating to a delivered meal.
func (s *Service) Rate(ctx context.Context, id string, rating int) (*domain.Meal, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.ErrInvalidRating
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	err := s.store.SetRating(ctx, id, rating)
	if errors.Is(err, ErrConflict) {
		return nil, domain.ErrRatingNotAllowed
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}
