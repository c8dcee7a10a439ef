package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tiffinbox/platform/internal/domain"
)

var ErrConflict = errors.New("conditional update did not apply")

type SubscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	sub.ID = uuid.New().String()
	sub.CreatedAt = time.Now().UTC()
	sub.UpdatedAt = sub.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, customer_ref, partner_ref, plan_name, price_per_week, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, sub.ID, sub.CustomerRef, sub.PartnerRef, sub.PlanName, sub.PricePerWeek, sub.Status, sub.CreatedAt)
	return err
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	sub := &domain.Subscription{}

	var (
		cancelledAt sql.NullTime
		reason      sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_ref, partner_ref, plan_name, price_per_week, status,
		       cancelled_at, cancellation_reason, created_at, updated_at
		FROM subscriptions
		WHERE id = $1
	`, id).Scan(&sub.ID, &sub.CustomerRef, &sub.PartnerRef, &sub.PlanName, &sub.PricePerWeek,
		&sub.Status, &cancelledAt, &reason, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if cancelledAt.Valid {
		t := cancelledAt.Time
		sub.CancelledAt = &t
	}
	if reason.Valid {
		sub.CancellationReason = reason.String
	}

	return sub, nil
}

func (r *SubscriptionRepository) ListByCustomer(ctx context.Context, customerRef string) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_ref, partner_ref, plan_name, price_per_week, status,
		       cancelled_at, cancellation_reason, created_at, updated_at
		FROM subscriptions
		WHERE customer_ref = $1
		ORDER BY created_at DESC
	`, customerRef)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var cancelledAt sql.NullTime
		var reason sql.NullString
		if err := rows.Scan(&sub.ID, &sub.CustomerRef, &sub.PartnerRef, &sub.PlanName, &sub.PricePerWeek,
			&sub.Status, &cancelledAt, &reason, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		if cancelledAt.Valid {
			t := cancelledAt.Time
			sub.CancelledAt = &t
		}
		if reason.Valid {
			sub.CancellationReason = reason.String
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (r *SubscriptionRepository) UpdateStatusFrom(ctx context.Context, id string, from, to domain.SubscriptionStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CancelOnce moves the subscription to cancelled and records the reason and
// timestamp, only while it is still pending, active or paused. The
// cancellation record is a one-time addendum; it is never overwritten.
func (r *SubscriptionRepository) CancelOnce(ctx context.Context, id, reason string, cancelledAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = $1, cancelled_at = $2, cancellation_reason = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6, $7)
	`, domain.SubscriptionStatusCancelled, cancelledAt, reason, id,
		domain.SubscriptionStatusPending, domain.SubscriptionStatusActive, domain.SubscriptionStatusPaused)
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
