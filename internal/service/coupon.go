package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/repository"
)

type AppliedDiscount struct {
	Coupon model.Coupon
	Amount decimal.Decimal
}

type DiscountResolver struct {
	registry repository.CouponRegistry
	timeout  time.Duration
}

func NewDiscountResolver(registry repository.CouponRegistry, timeout time.Duration) *DiscountResolver {
	return &DiscountResolver{registry: registry, timeout: timeout}
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve validates code and prices it against subtotal. The amount is
// computed on every call, so a changed subtotal is never met with an old
// discount.
func (r *DiscountResolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (AppliedDiscount, error) {
	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return AppliedDiscount{}, &InvalidCouponError{Code: code}
	}

	coupon, err := callExternal(ctx, r.timeout, "coupon registry", func(ctx context.Context) (*model.Coupon, error) {
		return r.registry.Lookup(ctx, normalized)
	})
	if err != nil {
		return AppliedDiscount{}, fmt.Errorf("lookup coupon: %w", err)
	}
	if coupon == nil {
		return AppliedDiscount{}, &InvalidCouponError{Code: normalized}
	}
	if !coupon.DiscountRate.IsPositive() || coupon.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		return AppliedDiscount{}, &InvalidCouponError{Code: normalized}
	}

	return AppliedDiscount{
		Coupon: *coupon,
		Amount: model.RoundMoney(subtotal.Mul(coupon.DiscountRate)),
	}, nil
}

// BindCoupon resolves code against the cart's current subtotal and binds it,
// replacing any earlier coupon. On failure the previous binding stays.
func BindCoupon(ctx context.Context, resolver *DiscountResolver, cart *Cart, code string) (AppliedDiscount, error) {
	pricing, err := cart.Pricing()
	if err != nil {
		return AppliedDiscount{}, err
	}
	applied, err := resolver.Resolve(ctx, code, pricing.Subtotal)
	if err != nil {
		return AppliedDiscount{}, err
	}
	if err := cart.ApplyCoupon(applied.Coupon); err != nil {
		return AppliedDiscount{}, err
	}
	return applied, nil
}
