package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
)

type PaymentRequest struct {
	Reference    string
	Method       model.PaymentMethod
	Card         *model.CardDetails
	Installments int
	Amount       decimal.Decimal
}

// PaymentResult is the gateway verdict. A decline is a result, not an error.
type PaymentResult struct {
	Approved  bool
	Reference string
	Reason    string
}

type PaymentAuthorizer interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentResult, error)
}

type OrderPublisher interface {
	PublishOrderConfirmed(ctx context.Context, order model.Order) error
}

// callExternal runs one synchronous collaborator call under timeout. A missed
// deadline surfaces as ExternalServiceTimeoutError; nothing is retried here.
func callExternal[T any](ctx context.Context, timeout time.Duration, service string, call func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	v, err := call(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			var zero T
			return zero, &ExternalServiceTimeoutError{Service: service}
		}
		return v, err
	}
	return v, nil
}
