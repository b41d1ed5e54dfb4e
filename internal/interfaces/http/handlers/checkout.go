// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/domain/checkout"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
)

// CheckoutHandler handles authenticated checkout endpoints
type CheckoutHandler struct {
	checkouts *checkout.Service
	payments  *payment.Service
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkouts *checkout.Service, payments *payment.Service) *CheckoutHandler {
	return &CheckoutHandler{
		checkouts: checkouts,
		payments:  payments,
	}
}

// Initiate handles POST /checkout/initiate
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	var req checkout.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	co, err := h.checkouts.InitiateCheckout(ref, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Checkout initiated",
		"data": gin.H{
			"checkout_id":  co.ID,
			"total_amount": co.TotalAmount,
			"expires_at":   co.ExpiresAt,
		},
	})
}

// Complete handles POST /checkout/complete
func (h *CheckoutHandler) Complete(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	var req struct {
		CheckoutID string `json:"checkout_id" binding:"required"`
		PaymentID  string `json:"payment_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	result, err := h.checkouts.CompleteCheckout(ref, req.CheckoutID, req.PaymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout completed",
		"data":    result,
	})
}

// Cancel handles POST /checkout/cancel
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	var req struct {
		CheckoutID string `json:"checkout_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	if err := h.checkouts.CancelCheckout(ref, req.CheckoutID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout cancelled",
	})
}

// RecordPayment handles POST /payments/record. Gateway adapters settle
// synchronously and land their callbacks here.
func (h *CheckoutHandler) RecordPayment(c *gin.Context) {
	var req payment.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	p, err := h.payments.RecordCompleted(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Payment recorded",
		"data": gin.H{
			"payment_id": p.ID,
			"amount":     p.Amount,
			"status":     p.Status,
		},
	})
}
