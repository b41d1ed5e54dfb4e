// internal/domain/audit/entity.go
package audit

import (
	"encoding/json"
	"time"
)

// Well-known audit actions
const (
	ActionCheckoutCompleted = "CHECKOUT_COMPLETED"
	ActionOrderCreated      = "ORDER_CREATED"
	ActionTicketIssued      = "TICKET_ISSUED"
	ActionBookingCreated    = "BOOKING_CREATED"
	ActionGuestConverted    = "GUEST_CONVERTED"
)

// AuditLog records a business event for later inspection. Writes are
// best-effort and never block the flow that produced them.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"size:50;not null;index" json:"action"`
	ActorID    *uint     `gorm:"index" json:"actor_id,omitempty"`
	EntityType string    `gorm:"size:50;index" json:"entity_type,omitempty"`
	EntityID   string    `gorm:"size:100;index" json:"entity_id,omitempty"`
	Details    string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// SetDetails encodes the details blob for storage
func (a *AuditLog) SetDetails(details map[string]interface{}) {
	if len(details) == 0 {
		a.Details = ""
		return
	}
	data, _ := json.Marshal(details)
	a.Details = string(data)
}
