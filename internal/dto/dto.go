package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// --- Product ---

type ProductResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	UnitPrice      string    `json:"unit_price"`
	AvailableStock int       `json:"available_stock"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  *int      `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CouponRequest struct {
	Code string `json:"code" binding:"required"`
}

type CartItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

type CartResponse struct {
	Items   []CartItemResponse `json:"items"`
	Pricing PricingResponse    `json:"pricing"`
}

type StockWarning struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

type AddCartItemResponse struct {
	Item    CartItemResponse `json:"item"`
	Warning *StockWarning    `json:"warning,omitempty"`
	Cart    CartResponse     `json:"cart"`
}

type CouponResponse struct {
	Code           string          `json:"code"`
	DiscountRate   string          `json:"discount_rate"`
	DiscountAmount string          `json:"discount_amount"`
	Pricing        PricingResponse `json:"pricing"`
}

// PricingResponse renders money with exactly two decimals.
type PricingResponse struct {
	Subtotal              string `json:"subtotal"`
	ShippingFee           string `json:"shipping_fee"`
	TaxAmount             string `json:"tax_amount"`
	DiscountAmount        string `json:"discount_amount"`
	Total                 string `json:"total"`
	CouponCode            string `json:"coupon_code,omitempty"`
	FreeShippingRemaining string `json:"free_shipping_remaining"`
}

// --- Checkout ---

type TermsRequest struct {
	Accepted bool `json:"accepted"`
}

type NotesRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

type PaymentResponse struct {
	Method       model.PaymentMethod `json:"method,omitempty"`
	Installments int                 `json:"installments"`
	CardBrand    string              `json:"card_brand,omitempty"`
	CardLastFour string              `json:"card_last_four,omitempty"`
}

type FieldErrorResponse struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type CheckoutResponse struct {
	ID               uuid.UUID            `json:"id"`
	Step             model.Step           `json:"step"`
	Contact          model.Contact        `json:"contact"`
	Address          model.Address        `json:"address"`
	Payment          PaymentResponse      `json:"payment"`
	Notes            string               `json:"notes,omitempty"`
	TermsAccepted    bool                 `json:"terms_accepted"`
	Pricing          *PricingResponse     `json:"pricing,omitempty"`
	Stale            bool                 `json:"stale"`
	ValidationErrors []FieldErrorResponse `json:"validation_errors,omitempty"`
	OrderNumber      string               `json:"order_number,omitempty"`
}

// --- Order ---

type OrderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

type OrderPaymentResponse struct {
	Method            model.PaymentMethod `json:"method"`
	Installments      int                 `json:"installments"`
	InstallmentAmount string              `json:"installment_amount"`
	CardBrand         string              `json:"card_brand,omitempty"`
	CardLastFour      string              `json:"card_last_four,omitempty"`
	AuthorizationRef  string              `json:"authorization_ref,omitempty"`
}

type OrderResponse struct {
	ID        uuid.UUID             `json:"id"`
	Number    string                `json:"number"`
	Status    model.OrderStatus     `json:"status"`
	Items     []OrderItemResponse   `json:"items,omitempty"`
	Pricing   PricingResponse       `json:"pricing"`
	Customer  *model.OrderCustomer  `json:"customer,omitempty"`
	Payment   *OrderPaymentResponse `json:"payment,omitempty"`
	Notes     string                `json:"notes,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func NewPricingResponse(p model.PricingBreakdown) PricingResponse {
	return PricingResponse{
		Subtotal:              Money(p.Subtotal),
		ShippingFee:           Money(p.ShippingFee),
		TaxAmount:             Money(p.TaxAmount),
		DiscountAmount:        Money(p.DiscountAmount),
		Total:                 Money(p.Total),
		CouponCode:            p.CouponCode,
		FreeShippingRemaining: Money(p.FreeShippingRemaining()),
	}
}

func NewCartItemResponse(item model.LineItem) CartItemResponse {
	return CartItemResponse{
		ProductID: item.ProductID,
		Name:      item.Name,
		Quantity:  item.Quantity,
		UnitPrice: Money(item.UnitPrice),
		LineTotal: Money(item.Total()),
	}
}

func NewOrderResponse(o model.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: Money(item.UnitPrice),
		})
	}
	resp := OrderResponse{
		ID:        o.ID,
		Number:    o.Number,
		Status:    o.Status,
		Items:     items,
		Pricing:   NewPricingResponse(o.Pricing),
		Notes:     o.Notes,
		CreatedAt: o.CreatedAt,
	}
	if o.Payment.Method != "" {
		customer := o.Customer
		resp.Customer = &customer
		resp.Payment = &OrderPaymentResponse{
			Method:            o.Payment.Method,
			Installments:      o.Payment.Installments,
			InstallmentAmount: Money(o.Payment.InstallmentAmount),
			CardBrand:         o.Payment.CardBrand,
			CardLastFour:      o.Payment.CardLastFour,
			AuthorizationRef:  o.Payment.AuthorizationRef,
		}
	}
	return resp
}
