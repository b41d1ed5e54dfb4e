// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/interfaces/http/middleware"
)

// CartHandler handles authenticated cart endpoints
type CartHandler struct {
	carts *cart.Service
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts *cart.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

// userRef builds the cart owner reference for the authenticated user
func userRef(c *gin.Context) (cart.Ref, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return cart.Ref{}, false
	}
	return cart.Ref{UserID: &userID}, true
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(ref)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": view,
	})
}

// AddItem handles POST /cart/add
func (h *CartHandler) AddItem(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	view, err := h.carts.AddItem(ref, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Item added to cart",
		"data":    view,
	})
}

// UpdateQuantity handles PUT /cart/items/:itemId
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	view, err := h.carts.UpdateQuantity(ref, c.Param("itemId"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart updated",
		"data":    view,
	})
}

// RemoveItem handles DELETE /cart/items/:itemId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	view, err := h.carts.RemoveItem(ref, c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed",
		"data":    view,
	})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	if err := h.carts.ClearCart(ref); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart cleared",
	})
}

// ApplyDiscount handles POST /cart/discount
func (h *CartHandler) ApplyDiscount(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	view, err := h.carts.ApplyDiscount(ref, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Discount applied",
		"data":    view,
	})
}

// RemoveDiscount handles DELETE /cart/discount
func (h *CartHandler) RemoveDiscount(c *gin.Context) {
	ref, ok := userRef(c)
	if !ok {
		return
	}

	view, err := h.carts.RemoveDiscount(ref)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Discount removed",
		"data":    view,
	})
}
