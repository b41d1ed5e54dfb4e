// internal/domain/reservation/entity.go
package reservation

import (
	"encoding/json"
	"time"
)

// SeatStatus represents the state of a single seat
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusSold      SeatStatus = "sold"
)

// ReservationState represents the state of a seat reservation
type ReservationState string

const (
	StateHeld      ReservationState = "held"
	StateConfirmed ReservationState = "confirmed"
	StateReleased  ReservationState = "released"
	StateExpired   ReservationState = "expired"
)

// Seat represents one seat of an event's seating plan
type Seat struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EventID       uint       `gorm:"not null;index:idx_seats_event_label,unique" json:"event_id"`
	Label         string     `gorm:"not null;size:20;index:idx_seats_event_label,unique" json:"label"`
	Section       string     `gorm:"size:50" json:"section"`
	Status        SeatStatus `gorm:"size:20;not null;default:'available'" json:"status"`
	ReservationID *string    `gorm:"size:36;index" json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SeatReservation represents a time-bounded hold on a set of seats
type SeatReservation struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	EventID     uint             `gorm:"not null;index" json:"event_id"`
	UserID      *uint            `gorm:"index" json:"user_id,omitempty"`
	GuestCartID string           `gorm:"size:36;index" json:"guest_cart_id,omitempty"`
	SeatLabels  string           `gorm:"type:text;not null" json:"-"` // JSON array
	State       ReservationState `gorm:"size:20;not null;default:'held'" json:"state"`
	PaymentID   *string          `gorm:"size:36" json:"payment_id,omitempty"`
	ExpiresAt   time.Time        `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName overrides
func (Seat) TableName() string            { return "seats" }
func (SeatReservation) TableName() string { return "seat_reservations" }

// Labels decodes the reserved seat labels
func (r *SeatReservation) Labels() []string {
	var labels []string
	if err := json.Unmarshal([]byte(r.SeatLabels), &labels); err != nil {
		return nil
	}
	return labels
}

// SetLabels encodes the reserved seat labels
func (r *SeatReservation) SetLabels(labels []string) {
	encoded, _ := json.Marshal(labels)
	r.SeatLabels = string(encoded)
}
