// internal/domain/checkout/entity.go
package checkout

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutStatus represents the checkout state machine
type CheckoutStatus string

const (
	StatusPending   CheckoutStatus = "pending"
	StatusCompleted CheckoutStatus = "completed"
	StatusCancelled CheckoutStatus = "cancelled"
	StatusExpired   CheckoutStatus = "expired"
)

// Checkout freezes a cart's totals while payment is collected. Pending
// checkouts expire after a fixed window.
type Checkout struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	CartID           string          `gorm:"size:36;not null;index" json:"cart_id"`
	UserID           *uint           `gorm:"index" json:"user_id,omitempty"`
	IsGuest          bool            `gorm:"not null;default:false" json:"is_guest"`
	GuestEmail       string          `gorm:"size:255;index" json:"guest_email,omitempty"`
	GuestFirstName   string          `gorm:"size:100" json:"guest_first_name,omitempty"`
	GuestLastName    string          `gorm:"size:100" json:"guest_last_name,omitempty"`
	GuestPhone       string          `gorm:"size:20" json:"guest_phone,omitempty"`
	ConfirmationCode string          `gorm:"size:12;index" json:"confirmation_code,omitempty"`
	PaymentMethod    string          `gorm:"size:50;not null" json:"payment_method"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	BillingInfo      string          `gorm:"type:text" json:"-"`
	Status           CheckoutStatus  `gorm:"size:20;not null;default:'pending';index" json:"status"`
	OrderID          *string         `gorm:"size:36;index" json:"order_id,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ExpiresAt        time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Checkout) TableName() string {
	return "checkouts"
}

// Billing decodes the stored billing blob
func (c *Checkout) Billing() map[string]interface{} {
	if c.BillingInfo == "" {
		return map[string]interface{}{}
	}
	var billing map[string]interface{}
	if err := json.Unmarshal([]byte(c.BillingInfo), &billing); err != nil {
		return map[string]interface{}{}
	}
	return billing
}

// SetBilling encodes the billing blob for storage
func (c *Checkout) SetBilling(billing map[string]interface{}) {
	if len(billing) == 0 {
		c.BillingInfo = ""
		return
	}
	data, _ := json.Marshal(billing)
	c.BillingInfo = string(data)
}
