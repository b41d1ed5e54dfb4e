// internal/domain/event/entity.go
package event

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DepositType selects how an event's minimum deposit is computed
type DepositType string

const (
	DepositTypePercentage DepositType = "percentage"
	DepositTypeFixed      DepositType = "fixed"
)

// EventStatus represents the publication state of an event
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

// Venue represents a physical venue hosting events
type Venue struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null;size:255" json:"name"`
	Address   string         `gorm:"size:255" json:"address"`
	City      string         `gorm:"size:100" json:"city"`
	Country   string         `gorm:"size:2" json:"country"`
	Capacity  int            `gorm:"default:0" json:"capacity"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Event represents a ticketed event
type Event struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrganizerID *uint           `gorm:"index" json:"organizer_id"`
	VenueID     *uint           `gorm:"index" json:"venue_id"`
	Title       string          `gorm:"not null;size:255" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	Capacity    int             `gorm:"not null;default:0" json:"capacity"`
	SoldTickets int             `gorm:"not null;default:0" json:"sold_tickets"`
	StartDate   time.Time       `gorm:"not null" json:"start_date"`
	EndDate     time.Time       `gorm:"not null" json:"end_date"`
	Status      EventStatus     `gorm:"size:20;default:'published'" json:"status"`

	// Deposit (advance payment) policy
	AllowDeposit     bool            `gorm:"default:false" json:"allow_deposit"`
	DepositType      DepositType     `gorm:"size:20;default:'percentage'" json:"deposit_type"`
	DepositValue     decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"deposit_value"`
	MinDepositAmount decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"min_deposit_amount"`
	DepositDueBy     *time.Time      `json:"deposit_due_by"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Venue        *Venue        `gorm:"foreignKey:VenueID" json:"venue,omitempty"`
	PricingTiers []PricingTier `gorm:"foreignKey:EventID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"pricing_tiers,omitempty"`
}

// PricingTier represents a ticket tier with its own price and allocation
type PricingTier struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	EventID          uint            `gorm:"not null;index" json:"event_id"`
	Name             string          `gorm:"not null;size:100" json:"name"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	TotalTickets     int             `gorm:"not null;default:0" json:"total_tickets"`
	AvailableTickets int             `gorm:"not null;default:0" json:"available_tickets"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName overrides
func (Venue) TableName() string       { return "venues" }
func (Event) TableName() string       { return "events" }
func (PricingTier) TableName() string { return "event_pricing_tiers" }

// RequiredDeposit computes the minimum completed payment this event accepts
// for the given event subtotal. Only meaningful when AllowDeposit is true.
func (e *Event) RequiredDeposit(eventSubtotal decimal.Decimal) decimal.Decimal {
	var required decimal.Decimal
	if e.DepositType == DepositTypePercentage {
		required = eventSubtotal.Mul(e.DepositValue).Div(decimal.NewFromInt(100)).Truncate(2)
	} else {
		required = e.DepositValue
	}
	if required.LessThan(e.MinDepositAmount) {
		required = e.MinDepositAmount
	}
	return required
}

// IsUpcoming reports whether the event has not ended yet
func (e *Event) IsUpcoming(now time.Time) bool {
	return e.EndDate.After(now)
}
