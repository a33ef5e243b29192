package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// CouponRegistry looks coupons up by normalized code and returns (nil, nil)
// for unknown codes.
type CouponRegistry interface {
	Lookup(ctx context.Context, code string) (*model.Coupon, error)
}

type staticCouponRegistry struct {
	coupons map[string]model.Coupon
}

// NewStaticCouponRegistry builds a fixed registry from CODE -> rate pairs,
// rejecting rates outside (0, 1].
func NewStaticCouponRegistry(rates map[string]string) (CouponRegistry, error) {
	coupons := make(map[string]model.Coupon, len(rates))
	for code, raw := range rates {
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse rate for coupon %s: %w", code, err)
		}
		if !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("coupon %s: rate %s outside (0, 1]", code, rate)
		}
		normalized := strings.ToUpper(strings.TrimSpace(code))
		coupons[normalized] = model.Coupon{Code: normalized, DiscountRate: rate}
	}
	return &staticCouponRegistry{coupons: coupons}, nil
}

func (r *staticCouponRegistry) Lookup(ctx context.Context, code string) (*model.Coupon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := r.coupons[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
