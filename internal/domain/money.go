package domain

import "github.com/shopspring/decimal"

// totalTolerance absorbs client-side rounding (0.01 currency units). Anything
// beyond it is a hard rejection, never auto-corrected.
var totalTolerance = decimal.New(1, -2)

// ItemsTotal computes Σ(unitPrice×quantity) with exact decimal arithmetic.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// ValidateTotal checks a claimed order total against the item sum.
func ValidateTotal(items []OrderItem, claimed decimal.Decimal) error {
	computed := ItemsTotal(items)
	if computed.Sub(claimed).Abs().GreaterThan(totalTolerance) {
		return &AmountMismatchError{Claimed: claimed, Computed: computed}
	}
	return nil
}

// ValidateAmount checks a payment amount against the order total.
func ValidateAmount(claimed, total decimal.Decimal) error {
	if claimed.Sub(total).Abs().GreaterThan(totalTolerance) {
		return &AmountMismatchError{Claimed: claimed, Computed: total}
	}
	return nil
}

// ValidateItems rejects empty item lists, negative prices and non-positive
// quantities before any total comparison happens.
func ValidateItems(items []OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range items {
		if item.UnitPrice.IsNegative() || item.Quantity < 1 {
			return ErrInvalidItem
		}
	}
	return nil
}
