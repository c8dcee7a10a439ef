package orders

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tiffinbox/platform/internal/domain"
)

// ErrConflict is returned by the conditional updates when the stored row no
// longer satisfies the precondition at write time. Each of those updates is a
// single statement with the precondition in its WHERE clause, so there is no
// window between check and write.
var ErrConflict = errors.New("conditional update did not apply")

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	order.ID = uuid.New().String()
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_ref, partner_ref, total_amount, status, is_paid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, false, $6, $6)
	`, order.ID, order.CustomerRef, order.PartnerRef, order.TotalAmount, order.Status, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_ref, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), order.ID, item.MenuItemRef, item.UnitPrice, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	var (
		txnID  sql.NullString
		method sql.NullString
		amount decimal.NullDecimal
		paidAt sql.NullTime
		rating sql.NullInt64
		review sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_ref, partner_ref, total_amount, status, is_paid,
		       payment_transaction_id, payment_method, payment_amount, paid_at,
		       rating, review, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerRef, &order.PartnerRef, &order.TotalAmount,
		&order.Status, &order.IsPaid, &txnID, &method, &amount, &paidAt,
		&rating, &review, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if order.IsPaid && txnID.Valid {
		order.Payment = &domain.PaymentDetails{
			TransactionID: txnID.String,
			PaymentMethod: method.String,
			Amount:        amount.Decimal,
			PaidAt:        paidAt.Time,
		}
	}
	if rating.Valid {
		v := int(rating.Int64)
		order.Rating = &v
	}
	if review.Valid {
		order.Review = review.String
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT menu_item_ref, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.MenuItemRef, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateStatusFrom applies the status change only if the stored status still
// equals from. A zero row count means another writer got there first.
func (r *OrderRepository) UpdateStatusFrom(ctx context.Context, id string, from, to domain.OrderStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConflict
	}

	return nil
}

// MarkPaid records the payment only if the order is still unpaid.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, payment domain.PaymentDetails) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET is_paid = true,
		    payment_transaction_id = $1,
		    payment_method = $2,
		    payment_amount = $3,
		    paid_at = $4,
		    updated_at = NOW()
		WHERE id = $5 AND is_paid = false
	`, payment.TransactionID, payment.PaymentMethod, payment.Amount, payment.PaidAt, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConflict
	}

	return nil
}

// SetReview attaches the review only to a delivered order that has none yet.
func (r *OrderRepository) SetReview(ctx context.Context, id string, rating int, review string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET rating = $1, review = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4 AND rating IS NULL
	`, rating, review, id, domain.OrderStatusDelivered)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConflict
	}

	return nil
}

// DeleteIfDeletable removes the order only while it is still pending or
// cancelled. Items go with it.
func (r *OrderRepository) DeleteIfDeletable(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND status IN ($2, $3)
	`, id, domain.OrderStatusPending, domain.OrderStatusCancelled)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConflict
	}

	return nil
}

// UpdateItems replaces the item list and total in one transaction, guarded
// against orders that already reached a terminal status.
func (r *OrderRepository) UpdateItems(ctx context.Context, id string, items []domain.OrderItem, total decimal.Decimal) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET total_amount = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4)
	`, total, id, domain.OrderStatusDelivered, domain.OrderStatusCancelled)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return err
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_ref, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), id, item.MenuItemRef, item.UnitPrice, item.Quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) List(ctx context.Context, filter ListFilter) ([]domain.Order, error) {
	query := `
		SELECT id, customer_ref, partner_ref, total_amount, status, is_paid, created_at, updated_at
		FROM orders
	`
	var conds []string
	var args []any

	if filter.CustomerRef != "" {
		args = append(args, filter.CustomerRef)
		conds = append(conds, "customer_ref = $"+strconv.Itoa(len(args)))
	}
	if filter.PartnerRef != "" {
		args = append(args, filter.PartnerRef)
		conds = append(conds, "partner_ref = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerRef, &order.PartnerRef, &order.TotalAmount,
			&order.Status, &order.IsPaid, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, menu_item_ref, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.MenuItemRef, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// ListFilter narrows List to one customer, partner or status. Zero values
// mean no constraint.
type ListFilter struct {
	CustomerRef string
	PartnerRef  string
	Status      domain.OrderStatus
}
