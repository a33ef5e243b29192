package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-checkout-engine/internal/dto"
	"github.com/flicky/go-checkout-engine/internal/middleware"
	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/service"
)

const idempotencyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	shoppers *service.Shoppers
	log      *slog.Logger
}

func NewCheckoutHandler(shoppers *service.Shoppers, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{shoppers: shoppers, log: log}
}

func (h *CheckoutHandler) session(c *gin.Context) (*service.Session, bool) {
	s, ok := h.shoppers.Get(middleware.GetShopperID(c)).Session()
	if !ok {
		writeError(c, h.log, service.ErrSessionNotFound)
		return nil, false
	}
	return s, true
}

func (h *CheckoutHandler) Start(c *gin.Context) {
	s, err := h.shoppers.Get(middleware.GetShopperID(c)).BeginCheckout()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse(s))
}

func (h *CheckoutHandler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, checkoutResponse(s))
}

func (h *CheckoutHandler) SetContact(c *gin.Context) {
	var req model.Contact
	h.update(c, &req, func(s *service.Session) error { return s.SetContact(req) })
}

func (h *CheckoutHandler) SetAddress(c *gin.Context) {
	var req model.Address
	h.update(c, &req, func(s *service.Session) error { return s.SetAddress(req) })
}

func (h *CheckoutHandler) SetPayment(c *gin.Context) {
	var req model.PaymentSelection
	h.update(c, &req, func(s *service.Session) error { return s.SetPayment(req) })
}

func (h *CheckoutHandler) SetNotes(c *gin.Context) {
	var req dto.NotesRequest
	h.update(c, &req, func(s *service.Session) error { return s.SetNotes(req.Notes) })
}

func (h *CheckoutHandler) SetTerms(c *gin.Context) {
	var req dto.TermsRequest
	h.update(c, &req, func(s *service.Session) error { return s.AcceptTerms(req.Accepted) })
}

// update binds the body into req and applies fn to the current session.
// Field rules are checked on Advance, not here.
func (h *CheckoutHandler) update(c *gin.Context, req any, fn func(*service.Session) error) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, checkoutResponse(s))
}

func (h *CheckoutHandler) Advance(c *gin.Context) {
	h.transition(c, func(s *service.Session) error { return s.Advance(c.Request.Context()) })
}

func (h *CheckoutHandler) Back(c *gin.Context) {
	h.transition(c, (*service.Session).Back)
}

func (h *CheckoutHandler) Cancel(c *gin.Context) {
	h.transition(c, (*service.Session).Cancel)
}

func (h *CheckoutHandler) transition(c *gin.Context, fn func(*service.Session) error) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := fn(s); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, checkoutResponse(s))
}

func (h *CheckoutHandler) BindCoupon(c *gin.Context) {
	var req dto.CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	applied, err := s.BindCoupon(c.Request.Context(), req.Code)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	pricing, err := s.Cart().Pricing()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, couponResponse(applied, pricing))
}

func (h *CheckoutHandler) Commit(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	order, err := s.Commit(c.Request.Context(), c.GetHeader(idempotencyHeader))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewOrderResponse(order))
}

func checkoutResponse(s *service.Session) dto.CheckoutResponse {
	v := s.View()
	resp := dto.CheckoutResponse{
		ID:      v.ID,
		Step:    v.Step,
		Contact: v.Contact,
		Address: v.Address,
		Payment: dto.PaymentResponse{
			Method:       v.PaymentMethod,
			Installments: v.Installments,
			CardBrand:    v.CardBrand,
			CardLastFour: v.CardLastFour,
		},
		Notes:         v.Notes,
		TermsAccepted: v.TermsAccepted,
		Stale:         v.Stale,
	}
	if v.Pricing != nil {
		p := dto.NewPricingResponse(*v.Pricing)
		resp.Pricing = &p
	}
	for _, f := range v.ValidationErrors {
		resp.ValidationErrors = append(resp.ValidationErrors, dto.FieldErrorResponse{Field: f.Field, Reason: f.Reason})
	}
	if v.Order != nil {
		resp.OrderNumber = v.Order.Number
	}
	return resp
}

func couponResponse(applied service.AppliedDiscount, pricing model.PricingBreakdown) dto.CouponResponse {
	return dto.CouponResponse{
		Code:           applied.Coupon.Code,
		DiscountRate:   applied.Coupon.DiscountRate.String(),
		DiscountAmount: dto.Money(applied.Amount),
		Pricing:        dto.NewPricingResponse(pricing),
	}
}
