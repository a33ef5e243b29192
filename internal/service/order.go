package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/repository"
)

var ErrOrderAccessDenied = errors.New("access denied")

// FinalizeRequest is everything the factory needs from a checkout session in
// REVIEW. It is a copy; the factory never reaches back into the session.
type FinalizeRequest struct {
	ShopperID     uuid.UUID
	Step          model.Step
	TermsAccepted bool
	Cart          *Cart
	CartVersion   uint64
	Items         []model.LineItem
	Pricing       model.PricingBreakdown
	Contact       model.Contact
	Address       model.Address
	Payment       model.PaymentSelection
	Notes         string
	Token         string
}

// OrderFactory is the single commit point of checkout.
type OrderFactory struct {
	payments    PaymentAuthorizer
	orders      repository.OrderRepository
	idempotency repository.IdempotencyStore
	publisher   OrderPublisher
	timeout     time.Duration
	log         *slog.Logger
	now         func() time.Time
}

func NewOrderFactory(
	payments PaymentAuthorizer,
	orders repository.OrderRepository,
	idempotency repository.IdempotencyStore,
	publisher OrderPublisher,
	timeout time.Duration,
	log *slog.Logger,
) *OrderFactory {
	return &OrderFactory{
		payments:    payments,
		orders:      orders,
		idempotency: idempotency,
		publisher:   publisher,
		timeout:     timeout,
		log:         log,
		now:         time.Now,
	}
}

// Finalize authorizes payment, builds the immutable order, persists it and
// clears the cart. replayed is true when the token had already produced an
// order, which is then returned instead of a new one.
func (f *OrderFactory) Finalize(ctx context.Context, req FinalizeRequest) (order model.Order, replayed bool, err error) {
	if req.Step != model.StepReview {
		return model.Order{}, false, &InvalidTransitionError{From: req.Step, Action: "commit"}
	}
	if !req.TermsAccepted {
		return model.Order{}, false, ErrTermsNotAccepted
	}
	if req.Cart.Version() != req.CartVersion {
		return model.Order{}, false, ErrStaleSnapshot
	}

	key := ""
	if req.Token != "" && f.idempotency != nil {
		key = req.ShopperID.String() + ":" + req.Token
		existing, err := f.idempotency.Get(ctx, key)
		if err != nil {
			return model.Order{}, false, fmt.Errorf("check idempotency token: %w", err)
		}
		if existing != nil {
			return *existing, true, nil
		}
	}

	orderID := uuid.New()
	payment := normalizePayment(req.Payment)
	auth, err := callExternal(ctx, f.timeout, "payment gateway", func(ctx context.Context) (PaymentResult, error) {
		return f.payments.Authorize(ctx, PaymentRequest{
			Reference:    orderID.String(),
			Method:       payment.Method,
			Card:         payment.Card,
			Installments: payment.Installments,
			Amount:       req.Pricing.Total,
		})
	})
	if err != nil {
		return model.Order{}, false, fmt.Errorf("authorize payment: %w", err)
	}
	if !auth.Approved {
		return model.Order{}, false, &PaymentDeclinedError{Reason: auth.Reason}
	}

	if req.Cart.Version() != req.CartVersion {
		f.unusedAuthorization(req, auth.Reference, ErrStaleSnapshot)
		return model.Order{}, false, ErrStaleSnapshot
	}

	order = f.build(orderID, req, payment, auth.Reference)

	_, err = callExternal(ctx, f.timeout, "order persistence", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.orders.Save(ctx, &order)
	})
	if err != nil {
		f.unusedAuthorization(req, auth.Reference, err)
		return model.Order{}, false, fmt.Errorf("save order: %w", err)
	}

	log := f.log.With("order_number", order.Number, "shopper_id", order.ShopperID)
	if key != "" {
		stored, err := f.idempotency.Put(ctx, key, order)
		if err != nil {
			log.Error("remember idempotency token", "error", err)
		} else if !stored {
			log.Warn("idempotency token already recorded by a concurrent commit")
		}
	}

	if !req.Cart.clearAt(req.CartVersion) {
		log.Warn("cart changed during commit, left as is")
	}

	if f.publisher != nil {
		if err := f.publisher.PublishOrderConfirmed(ctx, order); err != nil {
			log.Error("publish order confirmed", "error", err)
		}
	}

	log.Info("order confirmed", "total", order.Pricing.Total.StringFixed(2))
	return cloneOrder(order), false, nil
}

// unusedAuthorization logs an approved authorization that produced no order.
// The gateway has no void call, so the funds hold is reconciled by hand.
func (f *OrderFactory) unusedAuthorization(req FinalizeRequest, ref string, cause error) {
	f.log.Error("payment authorized but order not placed",
		"authorization_ref", ref,
		"shopper_id", req.ShopperID,
		"amount", req.Pricing.Total.StringFixed(2),
		"error", cause)
}

func (f *OrderFactory) build(id uuid.UUID, req FinalizeRequest, payment model.PaymentSelection, authRef string) model.Order {
	now := f.now().UTC()
	items := make([]model.LineItem, len(req.Items))
	copy(items, req.Items)

	op := model.OrderPayment{
		Method:            payment.Method,
		Installments:      payment.Installments,
		InstallmentAmount: model.RoundMoney(req.Pricing.Total.Div(decimal.NewFromInt(int64(payment.Installments)))),
		AuthorizationRef:  authRef,
	}
	if payment.Card != nil {
		op.CardBrand = cardBrand(payment.Card.Number)
		op.CardLastFour = lastFour(payment.Card.Number)
	}

	return model.Order{
		ID:        id,
		Number:    orderNumber(now),
		ShopperID: req.ShopperID,
		Status:    model.OrderStatusConfirmed,
		Items:     items,
		Pricing:   req.Pricing,
		Customer:  model.OrderCustomer{Contact: req.Contact, Address: req.Address},
		Payment:   op,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: now,
	}
}

// orderNumber is PED-<UTC timestamp>-<8 random hex chars>.
func orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PED-%s-%s", now.Format("20060102150405"), suffix)
}

func cloneOrder(o model.Order) model.Order {
	items := make([]model.LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

type OrderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

func (s *OrderService) GetByNumber(ctx context.Context, number string, shopperID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.ShopperID != shopperID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListByShopper(ctx context.Context, shopperID uuid.UUID) ([]model.Order, error) {
	return s.orderRepo.ListByShopper(ctx, shopperID)
}
