// internal/interfaces/http/handlers/guest.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/domain/checkout"
	"github.com/your-org/ticketing-backend/internal/domain/order"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
)

// GuestHandler handles the unauthenticated guest flow: cart, checkout,
// ticket retrieval and account conversion
type GuestHandler struct {
	carts     *cart.Service
	checkouts *checkout.Service
	payments  *payment.Service
	guests    *order.GuestService
}

// NewGuestHandler creates a new guest handler
func NewGuestHandler(carts *cart.Service, checkouts *checkout.Service, payments *payment.Service, guests *order.GuestService) *GuestHandler {
	return &GuestHandler{
		carts:     carts,
		checkouts: checkouts,
		payments:  payments,
		guests:    guests,
	}
}

func guestRef(cartID string) cart.Ref {
	return cart.Ref{GuestCartID: cartID}
}

// CreateCart handles POST /guest/cart/create
func (h *GuestHandler) CreateCart(c *gin.Context) {
	created, err := h.carts.CreateGuestCart()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Guest cart created",
		"data": gin.H{
			"cart_id":    created.ID,
			"is_guest":   created.IsGuest,
			"expires_at": created.ExpiresAt,
		},
	})
}

// GetCart handles GET /guest/cart/:cartId
func (h *GuestHandler) GetCart(c *gin.Context) {
	view, err := h.carts.GetCart(guestRef(c.Param("cartId")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": view,
	})
}

// AddItem handles POST /guest/cart/:cartId/add
func (h *GuestHandler) AddItem(c *gin.Context) {
	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	view, err := h.carts.AddItem(guestRef(c.Param("cartId")), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added to cart",
		"data":    view,
	})
}

// RemoveItem handles DELETE /guest/cart/:cartId/items/:itemId
func (h *GuestHandler) RemoveItem(c *gin.Context) {
	view, err := h.carts.RemoveItem(guestRef(c.Param("cartId")), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed",
		"data":    view,
	})
}

// InitiateCheckout handles POST /guest/checkout/initiate
func (h *GuestHandler) InitiateCheckout(c *gin.Context) {
	var req struct {
		CartID        string                 `json:"cart_id" binding:"required"`
		Guest         checkout.GuestInfo     `json:"guest_info" binding:"required"`
		PaymentMethod string                 `json:"payment_method"`
		BillingInfo   map[string]interface{} `json:"billing_info" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = "mpesa"
	}

	co, err := h.checkouts.InitiateGuestCheckout(guestRef(req.CartID), &checkout.InitiateGuestRequest{
		InitiateRequest: checkout.InitiateRequest{
			PaymentMethod: req.PaymentMethod,
			BillingInfo:   req.BillingInfo,
		},
		Guest: req.Guest,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Checkout initiated",
		"data": gin.H{
			"checkout_id":       co.ID,
			"confirmation_code": co.ConfirmationCode,
			"total_amount":      co.TotalAmount,
			"expires_at":        co.ExpiresAt,
		},
	})
}

// CompleteCheckout handles POST /guest/checkout/complete. When no pending
// checkout exists for the cart, one is initiated from the billing address.
// When no payment id is supplied, a synchronously settled payment for the
// full amount is recorded first.
func (h *GuestHandler) CompleteCheckout(c *gin.Context) {
	var req struct {
		CartID         string                 `json:"cart_id" binding:"required"`
		CheckoutID     string                 `json:"checkout_id"`
		PaymentID      string                 `json:"payment_id"`
		BillingAddress map[string]interface{} `json:"billing_address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	ref := guestRef(req.CartID)

	co, err := h.resolveCheckout(ref, req.CheckoutID, req.BillingAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	paymentID := req.PaymentID
	if paymentID == "" {
		p, payErr := h.payments.RecordCompleted(&payment.RecordPaymentRequest{
			CheckoutID: co.ID,
			Method:     co.PaymentMethod,
			Amount:     co.TotalAmount,
		})
		if payErr != nil {
			respondError(c, payErr)
			return
		}
		paymentID = p.ID
	}

	result, err := h.checkouts.CompleteCheckout(ref, co.ID, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout completed",
		"data":    result,
	})
}

// resolveCheckout finds the cart's pending checkout or initiates one from
// the billing address
func (h *GuestHandler) resolveCheckout(ref cart.Ref, checkoutID string, billing map[string]interface{}) (*checkout.Checkout, error) {
	if checkoutID != "" {
		return h.checkouts.GetCheckout(ref, checkoutID)
	}

	co, err := h.checkouts.PendingForCart(ref, ref.GuestCartID)
	if err == nil {
		return co, nil
	}
	if apperror.CodeOf(err) != apperror.CodeNotFound {
		return nil, err
	}

	guest := checkout.GuestInfo{
		Email:     billingField(billing, "email"),
		FirstName: billingField(billing, "first_name", "firstName"),
		LastName:  billingField(billing, "last_name", "lastName"),
		Phone:     billingField(billing, "phone"),
	}
	return h.checkouts.InitiateGuestCheckout(ref, &checkout.InitiateGuestRequest{
		InitiateRequest: checkout.InitiateRequest{
			PaymentMethod: "mpesa",
			BillingInfo:   billing,
		},
		Guest: guest,
	})
}

func billingField(billing map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := billing[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// GetTickets handles GET /guest/tickets
func (h *GuestHandler) GetTickets(c *gin.Context) {
	email := c.Query("email")
	code := c.Query("code")
	if email == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required"})
		return
	}

	view, err := h.guests.GetGuestTickets(email, code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": view,
	})
}

// GetOrderHistory handles GET /guest/orders
func (h *GuestHandler) GetOrderHistory(c *gin.Context) {
	email := c.Query("email")
	code := c.Query("code")
	if email == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and code are required"})
		return
	}

	orders, err := h.guests.GetGuestOrderHistory(email, code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"orders": orders,
		},
	})
}

// SendAccessLink handles POST /guest/access-link. Always answers 200 so the
// endpoint cannot be used to probe which emails hold orders.
func (h *GuestHandler) SendAccessLink(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	if err := h.guests.SendGuestAccessLink(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "If any orders exist for this email, an access link has been sent",
	})
}

// Register handles POST /guest/register, converting a guest order identity
// into a full account
func (h *GuestHandler) Register(c *gin.Context) {
	var req struct {
		Email            string `json:"email" binding:"required,email"`
		ConfirmationCode string `json:"confirmation_code" binding:"required"`
		Password         string `json:"password" binding:"required"`
		PasswordConfirm  string `json:"password_confirm" binding:"required"`
		FirstName        string `json:"first_name"`
		LastName         string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if req.Password != req.PasswordConfirm {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  apperror.CodeValidationFailed,
			"error": "passwords do not match",
		})
		return
	}

	u, err := h.guests.ConvertGuestToAccount(req.Email, req.ConfirmationCode, &order.ConvertRequest{
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"data": gin.H{
			"user_id":    u.ID,
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
		},
	})
}
