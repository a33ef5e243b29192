package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// ProductRepository is the catalog as seen by the cart. GetByID returns
// (nil, nil) when the product does not exist.
type ProductRepository interface {
	Create(ctx context.Context, product *model.ProductRef) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ProductRef, error)
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.ProductRef) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, name, price, stock, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		product.ID, product.Name, product.UnitPrice, product.AvailableStock,
	)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ProductRef, error) {
	var (
		p     model.ProductRef
		price decimal.Decimal
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, price, stock FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &price, &p.AvailableStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	p.UnitPrice = price
	return &p, nil
}
