package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/go-checkout-engine/internal/dto"
	"github.com/flicky/go-checkout-engine/internal/service"
)

// writeError maps the service error taxonomy onto HTTP statuses. Structured
// errors carry their detail into the body.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var (
		validationErr *service.ValidationError
		stockErr      *service.StockExceededError
		quantityErr   *service.InvalidQuantityError
		couponErr     *service.InvalidCouponError
		committedErr  *service.AlreadyCommittedError
		declinedErr   *service.PaymentDeclinedError
		timeoutErr    *service.ExternalServiceTimeoutError
		transitionErr *service.InvalidTransitionError
		invariantErr  *service.InvariantError
	)

	switch {
	case errors.As(err, &validationErr):
		fields := make([]dto.FieldErrorResponse, 0, len(validationErr.Fields))
		for _, f := range validationErr.Fields {
			fields = append(fields, dto.FieldErrorResponse{Field: f.Field, Reason: f.Reason})
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": fields})
	case errors.As(err, &quantityErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid quantity", "product_id": quantityErr.ProductID, "quantity": quantityErr.Quantity,
		})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "stock exceeded",
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid coupon", "code": couponErr.Code})
	case errors.As(err, &committedErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": "checkout already committed", "order": dto.NewOrderResponse(committedErr.Order),
		})
	case errors.As(err, &declinedErr):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment declined", "reason": declinedErr.Reason})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "external service timeout", "service": timeoutErr.Service})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid checkout transition", "step": transitionErr.From, "action": transitionErr.Action,
		})
	case errors.Is(err, service.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cart is empty"})
	case errors.Is(err, service.ErrStaleSnapshot):
		c.JSON(http.StatusConflict, gin.H{"error": "pricing snapshot is stale, review the order again"})
	case errors.Is(err, service.ErrCartLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "cart is locked by a checkout in progress"})
	case errors.Is(err, service.ErrTermsNotAccepted):
		c.JSON(http.StatusConflict, gin.H{"error": "terms not accepted"})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, service.ErrItemNotInCart):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not in cart"})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "checkout session not found"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrOrderAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	default:
		if errors.As(err, &invariantErr) {
			log.Error("invariant violated", "error", err)
		} else {
			log.Error("request failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
