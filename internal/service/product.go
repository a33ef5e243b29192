package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/repository"
)

// ProductService is the read side of the catalog. Stock is always read live.
type ProductService struct {
	productRepo repository.ProductRepository
	timeout     time.Duration
}

func NewProductService(productRepo repository.ProductRepository, timeout time.Duration) *ProductService {
	return &ProductService{productRepo: productRepo, timeout: timeout}
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*model.ProductRef, error) {
	return lookupProduct(ctx, s.productRepo, s.timeout, id)
}
