package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderItem struct {
	MenuItemRef string          `json:"menu_item_ref"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

// PaymentDetails is written exactly once, when the order is marked paid.
type PaymentDetails struct {
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paid_at"`
}

// Order is the transactional record of truth for a customer purchase.
// Status only moves along the edges registered for KindOrder, IsPaid flips
// false→true at most once, and a review may be attached only to a delivered
// order that has none yet.
type Order struct {
	ID          string          `json:"id"`
	CustomerRef string          `json:"customer_ref"`
	PartnerRef  string          `json:"partner_ref"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	IsPaid      bool            `json:"is_paid"`
	Payment     *PaymentDetails `json:"payment_details,omitempty"`
	Rating      *int            `json:"rating,omitempty"`
	Review      string          `json:"review,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Deletable reports whether the order may still be removed. Once an order is
// business-committed (confirmed or later, non-cancelled) it is retained for audit.
func (o *Order) Deletable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusCancelled
}
