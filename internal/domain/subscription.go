package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is a recurring meal plan. Its one-time addendum is the
// cancellation record: reason and timestamp, written exactly once when the
// plan moves to cancelled.
type Subscription struct {
	ID                 string             `json:"id"`
	CustomerRef        string             `json:"customer_ref"`
	PartnerRef         string             `json:"partner_ref"`
	PlanName           string             `json:"plan_name"`
	PricePerWeek       decimal.Decimal    `json:"price_per_week"`
	Status             SubscriptionStatus `json:"status"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
