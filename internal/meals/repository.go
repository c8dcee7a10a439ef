package meals

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tiffinbox/platform/internal/domain"
)

// ErrConflict mirrors the orders store: the conditional update found the row
// in a state that no longer satisfies the precondition.
var ErrConflict = errors.New("conditional update did not apply")

type MealRepository struct {
	db *sql.DB
}

func NewMealRepository(db *sql.DB) *MealRepository {
	return &MealRepository{db: db}
}

func (r *MealRepository) Create(ctx context.Context, meal *domain.Meal) error {
	meal.ID = uuid.New().String()
	meal.CreatedAt = time.Now().UTC()
	meal.UpdatedAt = meal.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO meals (id, subscription_ref, customer_ref, partner_ref, scheduled_for, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, meal.ID, meal.SubscriptionRef, meal.CustomerRef, meal.PartnerRef, meal.ScheduledFor, meal.Status, meal.CreatedAt)
	return err
}

func (r *MealRepository) GetByID(ctx context.Context, id string) (*domain.Meal, error) {
	meal := &domain.Meal{}

	var (
		rating     sql.NullInt64
		skipReason sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, subscription_ref, customer_ref, partner_ref, scheduled_for, status,
		       rating, skip_reason, created_at, updated_at
		FROM meals
		WHERE id = $1
	`, id).Scan(&meal.ID, &meal.SubscriptionRef, &meal.CustomerRef, &meal.PartnerRef,
		&meal.ScheduledFor, &meal.Status, &rating, &skipReason, &meal.CreatedAt, &meal.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if rating.Valid {
		v := int(rating.Int64)
		meal.Rating = &v
	}
	if skipReason.Valid {
		meal.SkipReason = skipReason.String
	}

	return meal, nil
}

func (r *MealRepository) ListBySubscription(ctx context.Context, subscriptionRef string) ([]domain.Meal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subscription_ref, customer_ref, partner_ref, scheduled_for, status,
		       rating, skip_reason, created_at, updated_at
		FROM meals
		WHERE subscription_ref = $1
		ORDER BY scheduled_for
	`, subscriptionRef)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var meals []domain.Meal
	for rows.Next() {
		var meal domain.Meal
		var rating sql.NullInt64
		var skipReason sql.NullString
		if err := rows.Scan(&meal.ID, &meal.SubscriptionRef, &meal.CustomerRef, &meal.PartnerRef,
			&meal.ScheduledFor, &meal.Status, &rating, &skipReason, &meal.CreatedAt, &meal.UpdatedAt); err != nil {
			return nil, err
		}
		if rating.Valid {
			v := int(rating.Int64)
			meal.Rating = &v
		}
		if skipReason.Valid {
			meal.SkipReason = skipReason.String
		}
		meals = append(meals, meal)
	}

	return meals, rows.Err()
}

func (r *MealRepository) UpdateStatusFrom(ctx context.Context, id string, from, to domain.MealStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE meals SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SkipIfScheduled moves the meal to skipped and records the reason, only
// while it is still scheduled.
func (r *MealRepository) SkipIfScheduled(ctx context.Context, id, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE meals SET status = $1, skip_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, domain.MealStatusSkipped, reason, id, domain.MealStatusScheduled)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// SetRating attaches the one-time rating to a delivered, unrated meal.
func (r *MealRepository) SetRating(ctx context.Context, id string, rating int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE meals SET rating = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND rating IS NULL
	`, rating, id, domain.MealStatusDelivered)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
