// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/interfaces/http/handlers"
	"github.com/your-org/ticketing-backend/internal/interfaces/http/middleware"
)

// SetupRoutes registers every API route group
func SetupRoutes(rg *gin.RouterGroup, cfg *config.Config, h *handlers.Handlers) {
	setupAuthRoutes(rg, cfg, h)
	setupEventRoutes(rg, h)
	setupGuestRoutes(rg, h)
	setupCartRoutes(rg, cfg, h)
	setupCheckoutRoutes(rg, cfg, h)
	setupOrderRoutes(rg, cfg, h)
}

// setupAuthRoutes sets up authentication related routes
func setupAuthRoutes(rg *gin.RouterGroup, cfg *config.Config, h *handlers.Handlers) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.GET("/profile", h.Auth.GetProfile)
		}
	}
}

// setupEventRoutes sets up public event browsing
func setupEventRoutes(rg *gin.RouterGroup, h *handlers.Handlers) {
	events := rg.Group("/events")
	{
		events.GET("", h.Event.ListEvents)
		events.GET("/:id", h.Event.GetEvent)
	}
}

// setupGuestRoutes sets up the unauthenticated guest flow. Guest identity is
// enforced by cart id on mutation and by (email, code) on retrieval.
func setupGuestRoutes(rg *gin.RouterGroup, h *handlers.Handlers) {
	guest := rg.Group("/guest")
	{
		guest.POST("/cart/create", h.Guest.CreateCart)
		guest.GET("/cart/:cartId", h.Guest.GetCart)
		guest.POST("/cart/:cartId/add", h.Guest.AddItem)
		guest.DELETE("/cart/:cartId/items/:itemId", h.Guest.RemoveItem)

		guest.POST("/checkout/initiate", h.Guest.InitiateCheckout)
		guest.POST("/checkout/complete", h.Guest.CompleteCheckout)

		guest.GET("/tickets", h.Guest.GetTickets)
		guest.GET("/orders", h.Guest.GetOrderHistory)
		guest.POST("/access-link", h.Guest.SendAccessLink)
		guest.POST("/register", h.Guest.Register)
	}
}

// setupCartRoutes sets up authenticated cart routes
func setupCartRoutes(rg *gin.RouterGroup, cfg *config.Config, h *handlers.Handlers) {
	cart := rg.Group("/cart")
	cart.Use(middleware.AuthMiddleware(cfg))
	{
		cart.GET("", h.Cart.GetCart)
		cart.POST("/add", h.Cart.AddItem)
		cart.PUT("/items/:itemId", h.Cart.UpdateQuantity)
		cart.DELETE("/items/:itemId", h.Cart.RemoveItem)
		cart.DELETE("", h.Cart.ClearCart)
		cart.POST("/discount", h.Cart.ApplyDiscount)
		cart.DELETE("/discount", h.Cart.RemoveDiscount)
	}
}

// setupCheckoutRoutes sets up authenticated checkout routes plus the
// payment recording endpoint used by gateway callbacks
func setupCheckoutRoutes(rg *gin.RouterGroup, cfg *config.Config, h *handlers.Handlers) {
	co := rg.Group("/checkout")
	co.Use(middleware.AuthMiddleware(cfg))
	{
		co.POST("/initiate", h.Checkout.Initiate)
		co.POST("/complete", h.Checkout.Complete)
		co.POST("/cancel", h.Checkout.Cancel)
	}

	payments := rg.Group("/payments")
	payments.Use(middleware.AuthMiddleware(cfg))
	{
		payments.POST("/record", h.Checkout.RecordPayment)
	}
}

// setupOrderRoutes sets up authenticated order reads
func setupOrderRoutes(rg *gin.RouterGroup, cfg *config.Config, h *handlers.Handlers) {
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:id", h.Order.GetOrder)
	}
}
