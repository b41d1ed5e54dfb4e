// internal/domain/ticket/entity.go
package ticket

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus represents the usage lifecycle of an issued ticket
type TicketStatus string

const (
	StatusReserved        TicketStatus = "reserved"
	StatusConfirmed       TicketStatus = "confirmed"
	StatusUsed            TicketStatus = "used"
	StatusCancelled       TicketStatus = "cancelled"
	StatusRefunded        TicketStatus = "refunded"
	StatusRefundRequested TicketStatus = "refund_requested"
)

// Ticket is the universal display ticket issued per admission. Event tickets
// carry a seat and QR payload; transport and hotel tickets reference their
// booking row.
type Ticket struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID      string          `gorm:"size:36;not null;index" json:"order_id"`
	UserID       *uint           `gorm:"index" json:"user_id,omitempty"`
	ItemType     string          `gorm:"size:20;not null" json:"item_type"`
	EventID      *uint           `gorm:"index" json:"event_id,omitempty"`
	BookingID    string          `gorm:"size:36;index" json:"booking_id,omitempty"`
	TicketNumber string          `gorm:"size:30;not null;uniqueIndex" json:"ticket_number"`
	TicketType   string          `gorm:"size:50" json:"ticket_type,omitempty"`
	SeatNumber   string          `gorm:"size:20" json:"seat_number,omitempty"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	QRCode       string          `gorm:"type:text" json:"-"`
	Status       TicketStatus    `gorm:"size:20;not null;default:'confirmed';index" json:"status"`
	ValidUntil   *time.Time      `json:"valid_until,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Ticket) TableName() string {
	return "tickets"
}

// Bus is a locally inventoried bus departure
type Bus struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ExternalRef    string          `gorm:"size:100;uniqueIndex" json:"external_ref"`
	Route          string          `gorm:"size:255;not null" json:"route"`
	DepartureTime  time.Time       `json:"departure_time"`
	SeatPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"seat_price"`
	TotalSeats     int             `gorm:"not null;default:0" json:"total_seats"`
	AvailableSeats int             `gorm:"not null;default:0" json:"available_seats"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Bus) TableName() string {
	return "buses"
}

// BusBooking records seats purchased on a bus departure
type BusBooking struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID          string          `gorm:"size:36;not null;index" json:"order_id"`
	BusRefID         string          `gorm:"size:100;not null;index" json:"bus_ref_id"`
	SeatsCount       int             `gorm:"not null" json:"seats_count"`
	PassengerDetails string          `gorm:"type:text" json:"-"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           TicketStatus    `gorm:"size:20;not null;default:'confirmed'" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (BusBooking) TableName() string {
	return "bus_bookings"
}

// FlightBooking records a flight purchased through an external offer
type FlightBooking struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID          string          `gorm:"size:36;not null;index" json:"order_id"`
	OfferID          string          `gorm:"size:100;not null;index" json:"offer_id"`
	Airline          string          `gorm:"size:100" json:"airline,omitempty"`
	PassengerDetails string          `gorm:"type:text" json:"-"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           TicketStatus    `gorm:"size:20;not null;default:'confirmed'" json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (FlightBooking) TableName() string {
	return "flight_bookings"
}

// HotelBooking records a hotel stay purchased through an external provider
type HotelBooking struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID      string          `gorm:"size:36;not null;index" json:"order_id"`
	HotelCode    string          `gorm:"size:100;not null;index" json:"hotel_code"`
	CheckIn      *time.Time      `json:"check_in,omitempty"`
	CheckOut     *time.Time      `json:"check_out,omitempty"`
	GuestDetails string          `gorm:"type:text" json:"-"`
	Amount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status       TicketStatus    `gorm:"size:20;not null;default:'confirmed'" json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (HotelBooking) TableName() string {
	return "hotel_bookings"
}

// DecodeDetails parses a JSON details blob stored on a booking row
func DecodeDetails(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var details map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return map[string]interface{}{}
	}
	return details
}

// EncodeDetails serializes a details blob for storage
func EncodeDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	data, _ := json.Marshal(details)
	return string(data)
}
