package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cryptoshop/shopbot/internal/model"
)

// DBExecutor interface for database operations (can be *sqlx.DB or *sqlx.Tx)
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// OrderRepository handles the append-only order log
type OrderRepository struct {
	db DBExecutor
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db DBExecutor) *OrderRepository {
	return &OrderRepository{db: db}
}

// Append writes one order row, deduplicating on invoice id. It returns
// false when an order for the same invoice already exists; a given invoice
// must never produce two rows, even under concurrent confirmations.
func (r *OrderRepository) Append(ctx context.Context, order *model.Order) (bool, error) {
	query := `
		INSERT INTO orders (ts, user_id, product_id, product_name, quantity,
			price, invoice_id, discount_code, discount_percent, referred_by, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (invoice_id) DO NOTHING
		RETURNING id
	`

	err := r.db.GetContext(ctx, &order.ID, query,
		order.Timestamp, order.UserID, order.ProductID, order.ProductName,
		order.Quantity, order.Price, order.InvoiceID, order.DiscountCode,
		order.DiscountPercent, order.ReferredBy, order.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict: the invoice was already recorded.
			return false, nil
		}
		return false, fmt.Errorf("failed to append order: %w", err)
	}

	return true, nil
}

// Recent returns up to limit orders, most recent first
func (r *OrderRepository) Recent(ctx context.Context, limit int) ([]model.Order, error) {
	query := `
		SELECT id, ts, user_id, product_id, product_name, quantity, price,
			invoice_id, discount_code, discount_percent, referred_by, address
		FROM orders
		ORDER BY id DESC
		LIMIT $1
	`

	var orders []model.Order
	if err := r.db.SelectContext(ctx, &orders, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent orders: %w", err)
	}

	return orders, nil
}

// All returns every order, oldest first, for export
func (r *OrderRepository) All(ctx context.Context) ([]model.Order, error) {
	query := `
		SELECT id, ts, user_id, product_id, product_name, quantity, price,
			invoice_id, discount_code, discount_percent, referred_by, address
		FROM orders
		ORDER BY id ASC
	`

	var orders []model.Order
	if err := r.db.SelectContext(ctx, &orders, query); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

// BuyerIDs returns the distinct user ids that appear in the order log.
// This is the broadcast recipient list.
func (r *OrderRepository) BuyerIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := `SELECT DISTINCT user_id FROM orders ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list buyers: %w", err)
	}

	return ids, nil
}
