package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func item(price string, qty int) OrderItem {
	return OrderItem{MenuItemRef: "item-1", UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestValidateTotal(t *testing.T) {
	t.Run("accepts exact total", func(t *testing.T) {
		items := []OrderItem{item("12.99", 2), item("8.99", 1)}
		if err := ValidateTotal(items, decimal.RequireFromString("34.97")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("accepts total within one cent", func(t *testing.T) {
		items := []OrderItem{item("12.99", 2), item("8.99", 1)}
		if err := ValidateTotal(items, decimal.RequireFromString("34.96")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := ValidateTotal(items, decimal.RequireFromString("34.98")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects one unit discrepancy", func(t *testing.T) {
		items := []OrderItem{item("12.99", 2), item("8.99", 1)}
		err := ValidateTotal(items, decimal.RequireFromString("35.97"))
		if err == nil {
			t.Fatal("expected mismatch error")
		}
		var mismatch *AmountMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected AmountMismatchError, got %T", err)
		}
		if !mismatch.Computed.Equal(decimal.RequireFromString("34.97")) {
			t.Errorf("computed total = %s, want 34.97", mismatch.Computed)
		}
	})

	t.Run("rejects just over tolerance", func(t *testing.T) {
		items := []OrderItem{item("10.00", 1)}
		if err := ValidateTotal(items, decimal.RequireFromString("10.02")); err == nil {
			t.Fatal("expected mismatch error for 0.02 discrepancy")
		}
	})

	t.Run("sum is exact, not floating point", func(t *testing.T) {
		// 0.1 + 0.2 style sums must not drift.
		items := []OrderItem{item("0.10", 1), item("0.20", 1)}
		if err := ValidateTotal(items, decimal.RequireFromString("0.30")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestValidateAmount(t *testing.T) {
	total := decimal.RequireFromString("34.97")

	if err := ValidateAmount(decimal.RequireFromString("34.97"), total); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateAmount(decimal.RequireFromString("34.00"), total); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestValidateItems(t *testing.T) {
	if err := ValidateItems(nil); !errors.Is(err, ErrEmptyItems) {
		t.Errorf("expected ErrEmptyItems, got %v", err)
	}
	if err := ValidateItems([]OrderItem{item("-1.00", 1)}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for negative price, got %v", err)
	}
	if err := ValidateItems([]OrderItem{item("1.00", 0)}); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("expected ErrInvalidItem for zero quantity, got %v", err)
	}
	if err := ValidateItems([]OrderItem{item("1.00", 3)}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
