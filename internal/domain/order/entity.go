// internal/domain/order/entity.go
package order

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusConfirmed     OrderStatus = "confirmed"
	OrderStatusPartiallyPaid OrderStatus = "partially_paid"
	OrderStatusCancelled     OrderStatus = "cancelled"
	OrderStatusArchived      OrderStatus = "archived"
)

// Order is the immutable record of a completed checkout. Later payment
// top-ups adjust amount_paid and status only.
type Order struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber      string          `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	CheckoutID       string          `gorm:"size:36;not null;uniqueIndex" json:"checkout_id"`
	PaymentID        string          `gorm:"size:36;not null;index" json:"payment_id"`
	UserID           *uint           `gorm:"index" json:"user_id,omitempty"`
	IsGuest          bool            `gorm:"not null;default:false" json:"is_guest"`
	GuestEmail       string          `gorm:"size:255;index" json:"guest_email,omitempty"`
	GuestName        string          `gorm:"size:200" json:"guest_name,omitempty"`
	GuestPhone       string          `gorm:"size:20" json:"guest_phone,omitempty"`
	ConfirmationCode string          `gorm:"size:12;index" json:"confirmation_code,omitempty"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	AmountPaid       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_paid"`
	BalanceDue       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_due"`
	Status           OrderStatus     `gorm:"size:20;not null;index" json:"status"`
	BillingInfo      string          `gorm:"type:text" json:"-"`
	Metadata         string          `gorm:"type:text" json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Tickets []ticket.Ticket `gorm:"foreignKey:OrderID" json:"tickets,omitempty"`
}

// TableName overrides the table name
func (Order) TableName() string {
	return "orders"
}

// OrderMetadata is the structured blob stored on the order row
type OrderMetadata struct {
	IsFullyPaid    bool     `json:"is_fully_paid"`
	ReservationIDs []string `json:"reservation_ids"`
}

// Meta decodes the order metadata blob
func (o *Order) Meta() OrderMetadata {
	var meta OrderMetadata
	if o.Metadata == "" {
		return meta
	}
	if err := json.Unmarshal([]byte(o.Metadata), &meta); err != nil {
		return OrderMetadata{}
	}
	return meta
}

// SetMeta encodes the order metadata blob for storage
func (o *Order) SetMeta(meta OrderMetadata) {
	if meta.ReservationIDs == nil {
		meta.ReservationIDs = []string{}
	}
	data, _ := json.Marshal(meta)
	o.Metadata = string(data)
}

// IsFullyPaid reports whether the order has no outstanding balance
func (o *Order) IsFullyPaid() bool {
	return o.BalanceDue.IsZero()
}
