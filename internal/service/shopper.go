package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/repository"
)

// Shoppers hands out one cart and at most one open checkout session per
// shopper. It replaces any process-wide cart: callers own the registry.
type Shoppers struct {
	catalog repository.ProductRepository
	timeout time.Duration
	engine  *CheckoutEngine

	mu       sync.Mutex
	shoppers map[uuid.UUID]*Shopper
}

func NewShoppers(catalog repository.ProductRepository, engine *CheckoutEngine, timeout time.Duration) *Shoppers {
	return &Shoppers{
		catalog:  catalog,
		timeout:  timeout,
		engine:   engine,
		shoppers: make(map[uuid.UUID]*Shopper),
	}
}

func (r *Shoppers) Get(id uuid.UUID) *Shopper {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shoppers[id]
	if !ok {
		s = &Shopper{ID: id, Cart: NewCart(r.catalog, r.timeout), engine: r.engine}
		r.shoppers[id] = s
	}
	return s
}

type Shopper struct {
	ID     uuid.UUID
	Cart   *Cart
	engine *CheckoutEngine

	mu      sync.Mutex
	session *Session
}

// BeginCheckout returns the open session, or starts a new one when there is
// none or the last one has finished.
func (s *Shopper) BeginCheckout() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && !s.session.Step().IsTerminal() {
		return s.session, nil
	}
	session, err := s.engine.Start(s.ID, s.Cart)
	if err != nil {
		return nil, err
	}
	s.session = session
	return session, nil
}

// Session returns the latest session, finished or not.
func (s *Shopper) Session() (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.session != nil
}
