// internal/interfaces/http/handlers/event.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/ticketing-backend/internal/domain/event"
)

// EventHandler handles public event browsing
type EventHandler struct {
	events *event.Service
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *event.Service) *EventHandler {
	return &EventHandler{events: events}
}

// ListEvents handles GET /events
func (h *EventHandler) ListEvents(c *gin.Context) {
	var req event.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	resp, err := h.events.ListEvents(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": resp,
	})
}

// GetEvent handles GET /events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event id"})
		return
	}

	ev, err := h.events.GetEvent(uint(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": ev,
	})
}
