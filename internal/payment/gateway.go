package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/model"
	"github.com/flicky/go-checkout-engine/internal/service"
)

// Test cards with a fixed verdict. Every other valid card is approved.
const (
	DeclinedCard          = "4000000000000002"
	InsufficientFundsCard = "4000000000009995"
)

// Decider picks the verdict for a request. An empty reason means approved.
type Decider interface {
	Decide(req service.PaymentRequest) (reason string)
}

type TestCardDecider struct{}

func (TestCardDecider) Decide(req service.PaymentRequest) string {
	if req.Method != model.PaymentCreditCard || req.Card == nil {
		return ""
	}
	switch strings.ReplaceAll(req.Card.Number, " ", "") {
	case DeclinedCard:
		return "card declined"
	case InsufficientFundsCard:
		return "insufficient funds"
	}
	return ""
}

// Gateway is an in-process stand-in for the payment provider. It answers
// after latency, or fails with the context error if the caller gives up
// first.
type Gateway struct {
	decider Decider
	latency time.Duration
}

func NewGateway(decider Decider, latency time.Duration) *Gateway {
	return &Gateway{decider: decider, latency: latency}
}

func (g *Gateway) Authorize(ctx context.Context, req service.PaymentRequest) (service.PaymentResult, error) {
	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return service.PaymentResult{}, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return service.PaymentResult{}, err
	}

	if reason := g.decider.Decide(req); reason != "" {
		return service.PaymentResult{Approved: false, Reason: reason}, nil
	}
	return service.PaymentResult{
		Approved:  true,
		Reference: prefix(req.Method) + "-" + strings.ToUpper(uuid.NewString()[:13]),
	}, nil
}

func prefix(m model.PaymentMethod) string {
	switch m {
	case model.PaymentPix:
		return "PIX"
	case model.PaymentBoleto:
		return "BOL"
	default:
		return "TXN"
	}
}
