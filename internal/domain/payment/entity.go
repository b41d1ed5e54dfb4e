// internal/domain/payment/entity.go
package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle of a payment record
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
	StatusRefunded  PaymentStatus = "refunded"
)

// Payment represents money received from a gateway for a checkout. The
// checkout path only trusts rows in status completed.
type Payment struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	CheckoutID string          `gorm:"size:36;index" json:"checkout_id,omitempty"`
	Method     string          `gorm:"size:50;not null" json:"method"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency   string          `gorm:"size:3;not null;default:'KES'" json:"currency"`
	Reference  string          `gorm:"size:100;index" json:"reference,omitempty"`
	Status     PaymentStatus   `gorm:"size:20;not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "payments"
}
