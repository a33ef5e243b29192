package handler

import "github.com/gin-gonic/gin"

type Routes struct {
	Product  *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Order    *OrderHandler
}

// RegisterRoutes mounts the API on v1. Everything except the catalog read
// requires auth.
func RegisterRoutes(v1 *gin.RouterGroup, auth gin.HandlerFunc, r Routes) {
	products := v1.Group("/products")
	products.GET("/:id", r.Product.GetByID)

	cart := v1.Group("/cart", auth)
	cart.GET("", r.Cart.GetCart)
	cart.POST("/items", r.Cart.AddItem)
	cart.PUT("/items/:productId", r.Cart.UpdateItem)
	cart.DELETE("/items/:productId", r.Cart.DeleteItem)
	cart.POST("/coupon", r.Cart.ApplyCoupon)
	cart.DELETE("/coupon", r.Cart.RemoveCoupon)

	checkout := v1.Group("/checkout", auth)
	checkout.POST("", r.Checkout.Start)
	checkout.GET("", r.Checkout.Get)
	checkout.PUT("/contact", r.Checkout.SetContact)
	checkout.PUT("/address", r.Checkout.SetAddress)
	checkout.PUT("/payment", r.Checkout.SetPayment)
	checkout.PUT("/notes", r.Checkout.SetNotes)
	checkout.PUT("/terms", r.Checkout.SetTerms)
	checkout.POST("/advance", r.Checkout.Advance)
	checkout.POST("/back", r.Checkout.Back)
	checkout.POST("/coupon", r.Checkout.BindCoupon)
	checkout.POST("/commit", r.Checkout.Commit)
	checkout.POST("/cancel", r.Checkout.Cancel)

	orders := v1.Group("/orders", auth)
	orders.GET("", r.Order.ListOrders)
	orders.GET("/:number", r.Order.GetOrder)
}
