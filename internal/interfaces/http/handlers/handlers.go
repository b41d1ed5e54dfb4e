// internal/interfaces/http/handlers/handlers.go
package handlers

// Handlers bundles every HTTP handler for route registration
type Handlers struct {
	Auth     *AuthHandler
	Event    *EventHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Order    *OrderHandler
	Guest    *GuestHandler
}
