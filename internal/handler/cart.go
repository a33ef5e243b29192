package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/go-checkout-engine/internal/dto"
	"github.com/flicky/go-checkout-engine/internal/middleware"
	"github.com/flicky/go-checkout-engine/internal/service"
)

type CartHandler struct {
	shoppers *service.Shoppers
	resolver *service.DiscountResolver
	log      *slog.Logger
}

func NewCartHandler(shoppers *service.Shoppers, resolver *service.DiscountResolver, log *slog.Logger) *CartHandler {
	return &CartHandler{shoppers: shoppers, resolver: resolver, log: log}
}

func (h *CartHandler) cart(c *gin.Context) *service.Cart {
	return h.shoppers.Get(middleware.GetShopperID(c)).Cart
}

func (h *CartHandler) GetCart(c *gin.Context) {
	resp, err := cartResponse(h.cart(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart := h.cart(c)
	res, err := cart.Add(c.Request.Context(), req.ProductID, quantity)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	cartResp, err := cartResponse(cart)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := dto.AddCartItemResponse{Item: dto.NewCartItemResponse(res.Item), Cart: cartResp}
	if res.Warning != nil {
		resp.Warning = &dto.StockWarning{
			ProductID: res.Warning.ProductID,
			Requested: res.Warning.Requested,
			Available: res.Warning.Available,
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var req dto.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart := h.cart(c)
	if _, err := cart.UpdateQuantity(c.Request.Context(), productID, req.Quantity); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.GetCart(c)
}

func (h *CartHandler) DeleteItem(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	if err := h.cart(c).Remove(productID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req dto.CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart := h.cart(c)
	applied, err := service.BindCoupon(c.Request.Context(), h.resolver, cart, req.Code)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	pricing, err := cart.Pricing()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, couponResponse(applied, pricing))
}

func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	if err := h.cart(c).RemoveCoupon(); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func cartResponse(cart *service.Cart) (dto.CartResponse, error) {
	pricing, err := cart.Pricing()
	if err != nil {
		return dto.CartResponse{}, err
	}
	lines := cart.Items()
	items := make([]dto.CartItemResponse, 0, len(lines))
	for _, item := range lines {
		items = append(items, dto.NewCartItemResponse(item))
	}
	return dto.CartResponse{Items: items, Pricing: dto.NewPricingResponse(pricing)}, nil
}
