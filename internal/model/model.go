package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRef is the canonical catalog view of a product. Whatever shape a
// catalog stores, it is reconciled into this one before reaching a cart.
type ProductRef struct {
	ID             uuid.UUID
	Name           string
	UnitPrice      decimal.Decimal
	AvailableStock int
}

type LineItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Coupon struct {
	Code         string
	DiscountRate decimal.Decimal
}

type PricingBreakdown struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingFee    decimal.Decimal `json:"shipping_fee"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Total          decimal.Decimal `json:"total"`
	CouponCode     string          `json:"coupon_code,omitempty"`
}

// FreeShippingRemaining is how much more the shopper has to spend to
// qualify for free shipping.
func (p PricingBreakdown) FreeShippingRemaining() decimal.Decimal {
	remaining := FreeShippingThreshold.Sub(p.Subtotal)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

type Step string

const (
	StepContactAddress Step = "CONTACT_ADDRESS"
	StepPayment        Step = "PAYMENT"
	StepReview         Step = "REVIEW"
	StepCommitted      Step = "COMMITTED"
	StepCancelled      Step = "CANCELLED"
)

func (s Step) IsTerminal() bool {
	return s == StepCommitted || s == StepCancelled
}

func (s Step) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentPix        PaymentMethod = "PIX"
	PaymentBoleto     PaymentMethod = "BOLETO"
)

type Contact struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone"`
	TaxID    string `json:"taxId" validate:"required,cpf"`
}

type Address struct {
	Zip          string `json:"zip" validate:"required,cep"`
	Street       string `json:"street" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required,uf"`
}

type CardDetails struct {
	Number     string `json:"number" validate:"required,luhn"`
	HolderName string `json:"holderName" validate:"required"`
	Expiry     string `json:"expiry" validate:"required,cardexpiry"`
	CVV        string `json:"cvv" validate:"required,numeric,min=3,max=4"`
}

type PaymentSelection struct {
	Method       PaymentMethod `json:"method" validate:"required,oneof=CREDIT_CARD PIX BOLETO"`
	Card         *CardDetails  `json:"card,omitempty" validate:"required_if=Method CREDIT_CARD"`
	Installments int           `json:"installments" validate:"min=1,max=12"`
}

type OrderStatus string

const OrderStatusConfirmed OrderStatus = "CONFIRMED"

type FulfillmentStatus string

const (
	FulfillmentPending  FulfillmentStatus = "pending"
	FulfillmentReserved FulfillmentStatus = "reserved"
	FulfillmentFailed   FulfillmentStatus = "failed"
)

type Order struct {
	ID        uuid.UUID
	Number    string
	ShopperID uuid.UUID
	Status    OrderStatus
	Items     []LineItem
	Pricing   PricingBreakdown
	Customer  OrderCustomer
	Payment   OrderPayment
	Notes     string
	CreatedAt time.Time
}

type OrderCustomer struct {
	Contact Contact `json:"contact"`
	Address Address `json:"address"`
}

// OrderPayment is what survives of the payment selection after commit.
// Card number and CVV are never part of it.
type OrderPayment struct {
	Method            PaymentMethod   `json:"method"`
	Installments      int             `json:"installments"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	CardBrand         string          `json:"card_brand,omitempty"`
	CardLastFour      string          `json:"card_last_four,omitempty"`
	AuthorizationRef  string          `json:"authorization_ref"`
}

type OrderMessage struct {
	OrderNumber string    `json:"order_number"`
	ShopperID   uuid.UUID `json:"shopper_id"`
}
