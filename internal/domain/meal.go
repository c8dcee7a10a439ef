package domain

import "time"

type MealStatus string

const (
	MealStatusScheduled MealStatus = "scheduled"
	MealStatusPreparing MealStatus = "preparing"
	MealStatusReady     MealStatus = "ready"
	MealStatusDelivered MealStatus = "delivered"
	MealStatusCancelled MealStatus = "cancelled"
	MealStatusSkipped   MealStatus = "skipped"
)

// Meal is a single scheduled delivery under a subscription. It carries the
// same guarantees as Order: guarded status moves and a one-time rating.
type Meal struct {
	ID              string     `json:"id"`
	SubscriptionRef string     `json:"subscription_ref"`
	CustomerRef     string     `json:"customer_ref"`
	PartnerRef      string     `json:"partner_ref"`
	ScheduledFor    time.Time  `json:"scheduled_for"`
	Status          MealStatus `json:"status"`
	Rating          *int       `json:"rating,omitempty"`
	SkipReason      string     `json:"skip_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
