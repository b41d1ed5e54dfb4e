// internal/interfaces/http/handlers/order.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/domain/order"
	"github.com/your-org/ticketing-backend/internal/interfaces/http/middleware"
	"github.com/your-org/ticketing-backend/internal/pkg/policy"
)

// OrderHandler handles authenticated order reads
type OrderHandler struct {
	orders *order.Service
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// targetUser resolves whose orders are being read. Admins may read any
// user's orders via the user_id query parameter.
func (h *OrderHandler) targetUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return 0, false
	}

	target := userID
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
			return 0, false
		}
		target = uint(parsed)
	}

	actor := policy.Actor{UserID: userID, Role: middleware.GetUserRoleFromContext(c)}
	resource := policy.Resource{Kind: "order", OwnerID: target}
	if !policy.Allow(actor, resource, policy.ActionRead) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return 0, false
	}

	return target, true
}

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	target, ok := h.targetUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	orders, total, err := h.orders.ListUserOrders(target, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"orders": orders,
			"total":  total,
			"page":   page,
			"limit":  limit,
		},
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	target, ok := h.targetUser(c)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(target, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": o,
	})
}
