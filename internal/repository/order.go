package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-checkout-engine/internal/model"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// OrderRepository persists committed orders. Orders are written once by Save;
// only the fulfillment bookkeeping changes afterwards.
type OrderRepository interface {
	Save(ctx context.Context, order *model.Order) error
	GetByNumber(ctx context.Context, number string) (*model.Order, error)
	ListByShopper(ctx context.Context, shopperID uuid.UUID) ([]model.Order, error)
	ReserveStock(ctx context.Context, number string, items []model.LineItem) error
	SetFulfillmentStatus(ctx context.Context, number string, status model.FulfillmentStatus) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) Save(ctx context.Context, order *model.Order) error {
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	payment, err := json.Marshal(order.Payment)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p := order.Pricing
	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, number, shopper_id, status, subtotal, shipping_fee, tax_amount,
		                     discount_amount, total, coupon_code, customer, payment, notes,
		                     fulfillment_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		order.ID, order.Number, order.ShopperID, order.Status, p.Subtotal, p.ShippingFee, p.TaxAmount,
		p.DiscountAmount, p.Total, p.CouponCode, customer, payment, order.Notes,
		model.FulfillmentPending, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *pgOrderRepo) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	order := &model.Order{}
	var customer, payment []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, number, shopper_id, status, subtotal, shipping_fee, tax_amount, discount_amount,
		        total, coupon_code, customer, payment, notes, created_at
		 FROM orders WHERE number = $1`, number,
	).Scan(&order.ID, &order.Number, &order.ShopperID, &order.Status,
		&order.Pricing.Subtotal, &order.Pricing.ShippingFee, &order.Pricing.TaxAmount,
		&order.Pricing.DiscountAmount, &order.Pricing.Total, &order.Pricing.CouponCode,
		&customer, &payment, &order.Notes, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := json.Unmarshal(customer, &order.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(payment, &order.Payment); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, name, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY position`,
		order.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.LineItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

func (r *pgOrderRepo) ListByShopper(ctx context.Context, shopperID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, number, status, subtotal, shipping_fee, tax_amount, discount_amount, total,
		        coupon_code, created_at
		 FROM orders WHERE shopper_id = $1 ORDER BY created_at DESC`,
		shopperID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o := model.Order{ShopperID: shopperID}
		if err := rows.Scan(&o.ID, &o.Number, &o.Status, &o.Pricing.Subtotal, &o.Pricing.ShippingFee,
			&o.Pricing.TaxAmount, &o.Pricing.DiscountAmount, &o.Pricing.Total, &o.Pricing.CouponCode,
			&o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ReserveStock takes every item of the order out of the catalog in one
// transaction, or none of them.
func (r *pgOrderRepo) ReserveStock(ctx context.Context, number string, items []model.LineItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		ct, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1 AND stock >= $2`,
			item.ProductID, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET fulfillment_status = $2 WHERE number = $1`, number, model.FulfillmentReserved,
	)
	if err != nil {
		return fmt.Errorf("update fulfillment status: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgOrderRepo) SetFulfillmentStatus(ctx context.Context, number string, status model.FulfillmentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET fulfillment_status = $2 WHERE number = $1`, number, status,
	)
	if err != nil {
		return fmt.Errorf("set fulfillment status: %w", err)
	}
	return nil
}
