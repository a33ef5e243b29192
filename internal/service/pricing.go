package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// CalculatePricing is pure: the same items and coupon always give the same
// breakdown. Tax and shipping come off the gross subtotal and the discount is
// subtracted last. Components are kept exact and each published figure is
// rounded once, the total included.
func CalculatePricing(items []model.LineItem, coupon *model.Coupon) (model.PricingBreakdown, error) {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 {
			return model.PricingBreakdown{}, &InvariantError{
				Detail: fmt.Sprintf("line %s has quantity %d", item.ProductID, item.Quantity),
			}
		}
		if item.UnitPrice.IsNegative() {
			return model.PricingBreakdown{}, &InvariantError{
				Detail: fmt.Sprintf("line %s has negative price %s", item.ProductID, item.UnitPrice),
			}
		}
		subtotal = subtotal.Add(item.Total())
	}

	shipping := model.FlatShippingFee
	if subtotal.GreaterThanOrEqual(model.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(model.TaxRate)

	discount := decimal.Zero
	code := ""
	if coupon != nil {
		discount = subtotal.Mul(coupon.DiscountRate)
		code = coupon.Code
	}

	total := subtotal.Add(shipping).Add(tax).Sub(discount)

	return model.PricingBreakdown{
		Subtotal:       model.RoundMoney(subtotal),
		ShippingFee:    model.RoundMoney(shipping),
		TaxAmount:      model.RoundMoney(tax),
		DiscountAmount: model.RoundMoney(discount),
		Total:          model.RoundMoney(total),
		CouponCode:     code,
	}, nil
}
