package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors: deterministic, never retried.
var (
	ErrEmptyItems    = errors.New("order must contain at least one item")
	ErrInvalidItem   = errors.New("item price must be non-negative and quantity at least 1")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Precondition errors: the request is well-formed but inapplicable to the
// entity's current state. Retrying cannot change the outcome.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrReviewNotAllowed = errors.New("order is not delivered or already has a review")
	ErrRatingNotAllowed = errors.New("meal is not delivered or already rated")
	ErrAlreadyCancelled = errors.New("subscription is already cancelled")
	ErrNotDeletable     = errors.New("order is already committed and cannot be deleted")
	ErrOrderClosed      = errors.New("order is already delivered or cancelled")
)

// ErrContended is returned when a status update keeps losing the write race
// after the bounded retry budget is spent.
var ErrContended = errors.New("status update lost the write race, try again")

type IllegalTransitionError struct {
	Kind Kind
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition from %q to %q", e.Kind, e.From, e.To)
}

type AmountMismatchError struct {
	Claimed  decimal.Decimal
	Computed decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount %s does not match expected total %s", e.Claimed, e.Computed)
}
