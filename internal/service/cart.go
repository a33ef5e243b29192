package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/repository"
)

// Cart holds one shopper's line items, at most one per product, in the order
// they were first added. Every mutation bumps the version so checkout can tell
// when a pricing snapshot no longer matches. While a checkout commit is in
// flight the cart is locked and mutations fail with ErrCartLocked.
type Cart struct {
	catalog repository.ProductRepository
	timeout time.Duration

	mu      sync.Mutex
	order   []uuid.UUID
	items   map[uuid.UUID]*model.LineItem
	coupon  *model.Coupon
	version uint64
	locked  bool
}

func NewCart(catalog repository.ProductRepository, timeout time.Duration) *Cart {
	return &Cart{
		catalog: catalog,
		timeout: timeout,
		items:   make(map[uuid.UUID]*model.LineItem),
	}
}

// AddResult is the line after an add. Warning is set when the requested
// quantity was clamped to the available stock; the add itself still happened.
type AddResult struct {
	Item    model.LineItem
	Warning *StockExceededError
}

func (c *Cart) Add(ctx context.Context, productID uuid.UUID, quantity int) (AddResult, error) {
	if quantity < 1 {
		return AddResult{}, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	product, err := c.product(ctx, productID)
	if err != nil {
		return AddResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		return AddResult{}, ErrCartLocked
	}
	requested := quantity
	existing, ok := c.items[productID]
	if ok {
		requested += existing.Quantity
	}
	if product.AvailableStock < 1 {
		return AddResult{}, &StockExceededError{ProductID: productID, Requested: requested, Available: 0}
	}

	final := requested
	var warning *StockExceededError
	if requested > product.AvailableStock {
		final = product.AvailableStock
		warning = &StockExceededError{ProductID: productID, Requested: requested, Available: product.AvailableStock}
	}

	if ok {
		existing.Quantity = final
	} else {
		existing = &model.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  final,
			UnitPrice: product.UnitPrice,
		}
		c.items[productID] = existing
		c.order = append(c.order, productID)
	}
	c.version++
	return AddResult{Item: *existing, Warning: warning}, nil
}

// UpdateQuantity sets an absolute quantity, rejecting anything above the
// stock the catalog reports right now.
func (c *Cart) UpdateQuantity(ctx context.Context, productID uuid.UUID, quantity int) (model.LineItem, error) {
	if quantity < 1 {
		return model.LineItem{}, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if !c.contains(productID) {
		return model.LineItem{}, fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
	}

	product, err := c.product(ctx, productID)
	if err != nil {
		return model.LineItem{}, err
	}
	if quantity > product.AvailableStock {
		return model.LineItem{}, &StockExceededError{ProductID: productID, Requested: quantity, Available: product.AvailableStock}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		return model.LineItem{}, ErrCartLocked
	}
	item, ok := c.items[productID]
	if !ok {
		return model.LineItem{}, fmt.Errorf("%w: %s", ErrItemNotInCart, productID)
	}
	item.Quantity = quantity
	c.version++
	return *item, nil
}

// Remove is idempotent.
func (c *Cart) Remove(productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locked {
		return ErrCartLocked
	}
	if _, ok := c.items[productID]; !ok {
		return nil
	}
	delete(c.items, productID)
	for i, id := range c.order {
		if id == productID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.version++
	return nil
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

func (c *Cart) Items() []model.LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.itemsLocked()
}

func (c *Cart) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Pricing computes the breakdown for the cart as it is now, including the
// bound coupon.
func (c *Cart) Pricing() (model.PricingBreakdown, error) {
	snap := c.snapshot()
	return CalculatePricing(snap.items, snap.coupon)
}

// ApplyCoupon binds coupon to the cart, replacing any previous one.
func (c *Cart) ApplyCoupon(coupon model.Coupon) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return ErrCartLocked
	}
	c.coupon = &coupon
	c.version++
	return nil
}

func (c *Cart) RemoveCoupon() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return ErrCartLocked
	}
	if c.coupon == nil {
		return nil
	}
	c.coupon = nil
	c.version++
	return nil
}

func (c *Cart) Coupon() (model.Coupon, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.coupon == nil {
		return model.Coupon{}, false
	}
	return *c.coupon, true
}

// Clear empties the cart and drops the coupon.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// clearAt clears the cart only if it is still at version. It reports whether
// it did.
func (c *Cart) clearAt(version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		return false
	}
	c.clearLocked()
	return true
}

func (c *Cart) clearLocked() {
	c.items = make(map[uuid.UUID]*model.LineItem)
	c.order = nil
	c.coupon = nil
	c.version++
}

// lockAt locks the cart for a commit of the snapshot taken at version.
func (c *Cart) lockAt(version uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locked {
		return ErrCartLocked
	}
	if c.version != version {
		return ErrStaleSnapshot
	}
	c.locked = true
	return nil
}

func (c *Cart) unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locked = false
}

type cartSnapshot struct {
	items   []model.LineItem
	coupon  *model.Coupon
	version uint64
}

func (c *Cart) snapshot() cartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := cartSnapshot{items: c.itemsLocked(), version: c.version}
	if c.coupon != nil {
		coupon := *c.coupon
		snap.coupon = &coupon
	}
	return snap
}

func (c *Cart) itemsLocked() []model.LineItem {
	items := make([]model.LineItem, 0, len(c.order))
	for _, id := range c.order {
		items = append(items, *c.items[id])
	}
	return items
}

func (c *Cart) contains(productID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[productID]
	return ok
}

// product reads the live catalog entry; stock is never taken from an
// earlier read.
func (c *Cart) product(ctx context.Context, productID uuid.UUID) (*model.ProductRef, error) {
	return lookupProduct(ctx, c.catalog, c.timeout, productID)
}

func lookupProduct(ctx context.Context, catalog repository.ProductRepository, timeout time.Duration, productID uuid.UUID) (*model.ProductRef, error) {
	product, err := callExternal(ctx, timeout, "catalog", func(ctx context.Context) (*model.ProductRef, error) {
		return catalog.GetByID(ctx, productID)
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if product.UnitPrice.IsNegative() || product.AvailableStock < 0 {
		return nil, &InvariantError{Detail: fmt.Sprintf("catalog returned product %s with price %s and stock %d",
			productID, product.UnitPrice, product.AvailableStock)}
	}
	return product, nil
}
