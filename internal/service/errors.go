package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/model"
)

var (
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrStockExceeded          = errors.New("stock exceeded")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidCoupon          = errors.New("invalid coupon")
	ErrValidation             = errors.New("validation failed")
	ErrStaleSnapshot          = errors.New("pricing snapshot is stale")
	ErrTermsNotAccepted       = errors.New("terms not accepted")
	ErrAlreadyCommitted       = errors.New("checkout already committed")
	ErrExternalServiceTimeout = errors.New("external service timeout")
	ErrPaymentDeclined        = errors.New("payment declined")

	ErrProductNotFound   = errors.New("product not found")
	ErrItemNotInCart     = errors.New("item not in cart")
	ErrInvalidTransition = errors.New("invalid checkout transition")
	ErrOrderNotFound     = errors.New("order not found")
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrCartLocked        = errors.New("cart is locked by a checkout in progress")
)

// InvalidQuantityError reports a quantity below 1.
type InvalidQuantityError struct {
	ProductID uuid.UUID
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s: must be at least 1", e.Quantity, e.ProductID)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// StockExceededError reports a request above the stock the catalog has.
type StockExceededError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockExceededError) Unwrap() error { return ErrStockExceeded }

// InvalidCouponError reports a code the registry does not know.
type InvalidCouponError struct {
	Code string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("invalid coupon %q", e.Code)
}

func (e *InvalidCouponError) Unwrap() error { return ErrInvalidCoupon }

// FieldError is one failing field and why it failed.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every failing field of a checkout step.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// AlreadyCommittedError is returned by a second commit; Order is the one
// produced by the first.
type AlreadyCommittedError struct {
	Order model.Order
}

func (e *AlreadyCommittedError) Error() string {
	return fmt.Sprintf("checkout already committed as order %s", e.Order.Number)
}

func (e *AlreadyCommittedError) Unwrap() error { return ErrAlreadyCommitted }

type ExternalServiceTimeoutError struct {
	Service string
}

func (e *ExternalServiceTimeoutError) Error() string {
	return fmt.Sprintf("%s did not respond in time", e.Service)
}

func (e *ExternalServiceTimeoutError) Unwrap() error { return ErrExternalServiceTimeout }

type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return "payment declined: " + e.Reason
}

func (e *PaymentDeclinedError) Unwrap() error { return ErrPaymentDeclined }

type InvalidTransitionError struct {
	From   model.Step
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Action, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// InvariantError reports a broken internal invariant. It is a programming
// error, not part of the recoverable taxonomy, and aborts only the call that
// hit it.
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Detail
}
