// internal/domain/cart/entity.go
package cart

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ItemType discriminates what a cart item is selling
type ItemType string

const (
	ItemTypeEvent  ItemType = "event"
	ItemTypeFlight ItemType = "flight"
	ItemTypeBus    ItemType = "bus"
	ItemTypeHotel  ItemType = "hotel"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeEvent, ItemTypeFlight, ItemTypeBus, ItemTypeHotel:
		return true
	}
	return false
}

// CartStatus represents the cart lifecycle
type CartStatus string

const (
	StatusActive    CartStatus = "active"
	StatusCompleted CartStatus = "completed"
	StatusExpired   CartStatus = "expired"
)

// ItemStatusCheckedOut marks items preserved after order materialization.
// Active items carry an empty status.
const ItemStatusCheckedOut = "checked_out"

// Cart represents a shopping cart for a user or guest
type Cart struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	UserID             *uint           `gorm:"index" json:"user_id,omitempty"`
	IsGuest            bool            `gorm:"not null;default:false" json:"is_guest"`
	Status             CartStatus      `gorm:"size:20;not null;default:'active';index" json:"status"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	DiscountCode       string          `gorm:"size:50" json:"discount_code,omitempty"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	ExpiresAt          *time.Time      `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

// TableName overrides the table name
func (Cart) TableName() string {
	return "shopping_carts"
}

// CartItem represents a single line in a cart. Checked-out items are kept
// as a purchase record and excluded from active cart reads.
type CartItem struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	CartID        string          `gorm:"size:36;not null;index" json:"cart_id"`
	ItemType      ItemType        `gorm:"size:20;not null" json:"item_type"`
	EventID       *uint           `gorm:"index" json:"event_id,omitempty"`
	ItemRefID     string          `gorm:"size:100" json:"item_ref_id,omitempty"`
	ItemTitle     string          `gorm:"size:255;not null" json:"item_title"`
	TicketType    string          `gorm:"size:50" json:"ticket_type,omitempty"`
	Quantity      int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	SeatNumbers   string          `gorm:"type:text" json:"-"`
	ReservationID string          `gorm:"size:36;index" json:"reservation_id,omitempty"`
	Details       string          `gorm:"type:text" json:"-"`
	Status        string          `gorm:"size:20;index" json:"status,omitempty"`
	OrderID       *string         `gorm:"size:36;index" json:"order_id,omitempty"`
	CheckedOutAt  *time.Time      `json:"checked_out_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (CartItem) TableName() string {
	return "shopping_cart_items"
}

// Seats decodes the stored seat number list
func (i *CartItem) Seats() []string {
	if i.SeatNumbers == "" {
		return nil
	}
	var seats []string
	if err := json.Unmarshal([]byte(i.SeatNumbers), &seats); err != nil {
		return nil
	}
	return seats
}

// SetSeats encodes the seat number list for storage
func (i *CartItem) SetSeats(seats []string) {
	if len(seats) == 0 {
		i.SeatNumbers = ""
		return
	}
	data, _ := json.Marshal(seats)
	i.SeatNumbers = string(data)
}

// Metadata decodes the stored item details blob
func (i *CartItem) Metadata() map[string]interface{} {
	if i.Details == "" {
		return map[string]interface{}{}
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(i.Details), &meta); err != nil {
		return map[string]interface{}{}
	}
	return meta
}

// SetMetadata encodes the item details blob for storage
func (i *CartItem) SetMetadata(meta map[string]interface{}) {
	if len(meta) == 0 {
		i.Details = ""
		return
	}
	data, _ := json.Marshal(meta)
	i.Details = string(data)
}

// DiscountCode represents a reusable percentage discount
type DiscountCode struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Percentage     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percentage"`
	IsActive       bool            `gorm:"not null;default:true" json:"is_active"`
	MaxUsesPerUser int             `gorm:"not null;default:1" json:"max_uses_per_user"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (DiscountCode) TableName() string {
	return "discount_codes"
}

// Ref addresses a cart owner: an authenticated user or a guest cart id.
type Ref struct {
	UserID      *uint
	GuestCartID string
}

// IsZero reports whether the ref addresses nobody
func (r Ref) IsZero() bool {
	return r.UserID == nil && r.GuestCartID == ""
}
