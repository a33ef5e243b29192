package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/model"
)

// CheckoutEngine starts checkout sessions and owns what they share: the
// discount resolver, the order factory and the field validator.
type CheckoutEngine struct {
	resolver *DiscountResolver
	factory  *OrderFactory
	validate *validator.Validate
	now      func() time.Time
	log      *slog.Logger
}

type EngineOption func(*CheckoutEngine)

// WithClock replaces the clock used for card expiry checks.
func WithClock(now func() time.Time) EngineOption {
	return func(e *CheckoutEngine) { e.now = now }
}

func NewCheckoutEngine(resolver *DiscountResolver, factory *OrderFactory, log *slog.Logger, opts ...EngineOption) *CheckoutEngine {
	e := &CheckoutEngine{
		resolver: resolver,
		factory:  factory,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.validate = newValidator(func() time.Time { return e.now() })
	return e
}

// Start opens a session over cart. The cart must not be empty.
func (e *CheckoutEngine) Start(shopperID uuid.UUID, cart *Cart) (*Session, error) {
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	s := &Session{
		id:        uuid.New(),
		shopperID: shopperID,
		cart:      cart,
		engine:    e,
		step:      model.StepContactAddress,
		payment:   model.PaymentSelection{Installments: 1},
	}
	e.log.Debug("checkout started", "session_id", s.id, "shopper_id", shopperID)
	return s, nil
}

// Session walks one cart through CONTACT_ADDRESS, PAYMENT and REVIEW to
// either COMMITTED or CANCELLED.
//
// mu guards the session fields and is never held across I/O. commitMu
// serialises Commit calls; while a commit talks to the payment gateway and
// the order store, committing is set and every other mutation is refused.
type Session struct {
	id        uuid.UUID
	shopperID uuid.UUID
	cart      *Cart
	engine    *CheckoutEngine

	commitMu sync.Mutex

	mu               sync.Mutex
	step             model.Step
	contact          model.Contact
	address          model.Address
	payment          model.PaymentSelection
	notes            string
	termsAccepted    bool
	validationErrors []FieldError
	pricing          *model.PricingBreakdown
	snapshotItems    []model.LineItem
	snapshotVersion  uint64
	committing       bool
	order            *model.Order
	commitToken      string
}

// SessionView is a read-only copy of a session. Card data is reduced to
// brand and last four digits.
type SessionView struct {
	ID               uuid.UUID
	Step             model.Step
	Contact          model.Contact
	Address          model.Address
	PaymentMethod    model.PaymentMethod
	Installments     int
	CardBrand        string
	CardLastFour     string
	Notes            string
	TermsAccepted    bool
	Pricing          *model.PricingBreakdown
	Stale            bool
	ValidationErrors []FieldError
	Order            *model.Order
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Cart() *Cart { return s.cart }

func (s *Session) Step() model.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// PricingSnapshot returns the breakdown taken on REVIEW entry.
func (s *Session) PricingSnapshot() (model.PricingBreakdown, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pricing == nil {
		return model.PricingBreakdown{}, false
	}
	return *s.pricing, true
}

// ValidationErrors lists the failures of the last Advance, if it failed.
func (s *Session) ValidationErrors() []FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FieldError(nil), s.validationErrors...)
}

func (s *Session) Order() (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return model.Order{}, false
	}
	return cloneOrder(*s.order), true
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SessionView{
		ID:               s.id,
		Step:             s.step,
		Contact:          s.contact,
		Address:          s.address,
		PaymentMethod:    s.payment.Method,
		Installments:     s.payment.Installments,
		Notes:            s.notes,
		TermsAccepted:    s.termsAccepted,
		ValidationErrors: append([]FieldError(nil), s.validationErrors...),
	}
	if s.payment.Card != nil {
		v.CardBrand = cardBrand(s.payment.Card.Number)
		v.CardLastFour = lastFour(s.payment.Card.Number)
	}
	if s.pricing != nil {
		p := *s.pricing
		v.Pricing = &p
		v.Stale = s.step == model.StepReview && s.cart.Version() != s.snapshotVersion
	}
	if s.order != nil {
		o := cloneOrder(*s.order)
		v.Order = &o
	}
	return v
}

func (s *Session) SetContact(contact model.Contact) error {
	return s.edit("set contact", func() { s.contact = contact }, model.StepContactAddress)
}

func (s *Session) SetAddress(address model.Address) error {
	return s.edit("set address", func() { s.address = address }, model.StepContactAddress)
}

func (s *Session) SetPayment(payment model.PaymentSelection) error {
	return s.edit("set payment", func() {
		if payment.Card != nil {
			card := *payment.Card
			payment.Card = &card
		}
		s.payment = payment
	}, model.StepContactAddress, model.StepPayment)
}

func (s *Session) SetNotes(notes string) error {
	return s.edit("set notes", func() { s.notes = strings.TrimSpace(notes) })
}

func (s *Session) AcceptTerms(accepted bool) error {
	return s.edit("accept terms", func() { s.termsAccepted = accepted })
}

// edit applies fn when the session is open and, if steps is non-empty, sits
// on one of them.
func (s *Session) edit(action string, fn func(), steps ...model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(action); err != nil {
		return err
	}
	if len(steps) > 0 {
		allowed := false
		for _, st := range steps {
			if s.step == st {
				allowed = true
				break
			}
		}
		if !allowed {
			return &InvalidTransitionError{From: s.step, Action: action}
		}
	}
	fn()
	return nil
}

func (s *Session) mutableLocked(action string) error {
	if s.step.IsTerminal() || s.committing {
		return &InvalidTransitionError{From: s.step, Action: action}
	}
	return nil
}

// Advance validates the current step and moves to the next one. Entering
// REVIEW snapshots the cart pricing.
func (s *Session) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked("advance"); err != nil {
		return err
	}

	switch s.step {
	case model.StepContactAddress:
		if errs := validateContactAddress(s.engine.validate, s.contact, s.address); len(errs) > 0 {
			s.validationErrors = errs
			return &ValidationError{Fields: errs}
		}
		s.validationErrors = nil
		s.step = model.StepPayment
		return nil

	case model.StepPayment:
		if errs := validatePayment(s.engine.validate, s.payment); len(errs) > 0 {
			s.validationErrors = errs
			return &ValidationError{Fields: errs}
		}
		if err := s.snapshotLocked(); err != nil {
			return err
		}
		s.validationErrors = nil
		s.payment = normalizePayment(s.payment)
		s.step = model.StepReview
		return nil

	default:
		return &InvalidTransitionError{From: s.step, Action: "advance"}
	}
}

func (s *Session) snapshotLocked() error {
	snap := s.cart.snapshot()
	if len(snap.items) == 0 {
		return ErrEmptyCart
	}
	pricing, err := CalculatePricing(snap.items, snap.coupon)
	if err != nil {
		return err
	}
	s.pricing = &pricing
	s.snapshotItems = snap.items
	s.snapshotVersion = snap.version
	return nil
}

// Back returns to the previous step. Entered data is kept.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked("back"); err != nil {
		return err
	}
	switch s.step {
	case model.StepPayment:
		s.step = model.StepContactAddress
	case model.StepReview:
		s.step = model.StepPayment
		s.pricing = nil
		s.snapshotItems = nil
	default:
		return &InvalidTransitionError{From: s.step, Action: "back"}
	}
	s.validationErrors = nil
	return nil
}

// BindCoupon binds code to the session's cart. In REVIEW with a fresh
// snapshot the snapshot is re-taken so the discount shows up at commit; a
// stale snapshot stays stale.
func (s *Session) BindCoupon(ctx context.Context, code string) (AppliedDiscount, error) {
	s.mu.Lock()
	if err := s.mutableLocked("bind coupon"); err != nil {
		s.mu.Unlock()
		return AppliedDiscount{}, err
	}
	fresh := s.step == model.StepReview && s.cart.Version() == s.snapshotVersion
	s.mu.Unlock()

	applied, err := BindCoupon(ctx, s.engine.resolver, s.cart, code)
	if err != nil {
		return AppliedDiscount{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if fresh && s.step == model.StepReview && !s.committing {
		if err := s.snapshotLocked(); err != nil {
			return AppliedDiscount{}, err
		}
	}
	return applied, nil
}

// Commit hands the REVIEW snapshot to the order factory and keeps the cart
// locked until the factory returns. A retry with the token of the successful
// commit returns the same order; any other commit after success returns that
// order with AlreadyCommittedError. On failure the session stays in REVIEW
// with its data intact.
func (s *Session) Commit(ctx context.Context, token string) (model.Order, error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	if s.order != nil {
		order := cloneOrder(*s.order)
		sameToken := token != "" && token == s.commitToken
		s.mu.Unlock()
		if sameToken {
			return order, nil
		}
		return order, &AlreadyCommittedError{Order: order}
	}
	if s.step != model.StepReview {
		s.mu.Unlock()
		return model.Order{}, &InvalidTransitionError{From: s.step, Action: "commit"}
	}
	if !s.termsAccepted {
		s.mu.Unlock()
		return model.Order{}, ErrTermsNotAccepted
	}
	if err := s.cart.lockAt(s.snapshotVersion); err != nil {
		s.mu.Unlock()
		return model.Order{}, err
	}

	req := FinalizeRequest{
		ShopperID:     s.shopperID,
		Step:          s.step,
		TermsAccepted: s.termsAccepted,
		Cart:          s.cart,
		CartVersion:   s.snapshotVersion,
		Items:         append([]model.LineItem(nil), s.snapshotItems...),
		Pricing:       *s.pricing,
		Contact:       s.contact,
		Address:       s.address,
		Payment:       s.payment,
		Notes:         s.notes,
		Token:         token,
	}
	s.committing = true
	s.mu.Unlock()

	order, replayed, err := s.engine.factory.Finalize(ctx, req)
	s.cart.unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.committing = false
	if err != nil {
		s.engine.log.Warn("checkout commit failed", "session_id", s.id, "error", err)
		return model.Order{}, err
	}

	s.order = &order
	s.commitToken = token
	s.step = model.StepCommitted
	s.payment.Card = nil
	if replayed {
		s.engine.log.Info("checkout commit replayed", "session_id", s.id, "order_number", order.Number)
	}
	return cloneOrder(order), nil
}

// Cancel never waits on I/O. It is refused while a commit is in flight.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked("cancel"); err != nil {
		return err
	}
	s.step = model.StepCancelled
	s.payment.Card = nil
	s.pricing = nil
	s.snapshotItems = nil
	return nil
}
