// internal/domain/reservation/service.go
package reservation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/gorm"
)

// Owner identifies who holds a reservation: an authenticated user or a
// guest cart.
type Owner struct {
	UserID      *uint
	GuestCartID string
}

func (o Owner) isZero() bool {
	return o.UserID == nil && o.GuestCartID == ""
}

// Service handles seat reservation business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
	now    func() time.Time
}

// NewService creates a new seat reservation service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReserveSeats places an all-or-nothing hold on the given seats. It fails
// with SEATS_UNAVAILABLE unless every requested seat was free.
func (s *Service) ReserveSeats(eventID uint, seatLabels []string, owner Owner) (*SeatReservation, error) {
	if len(seatLabels) == 0 {
		return nil, apperror.New(apperror.CodeValidationFailed, "at least one seat is required")
	}
	if owner.isZero() {
		return nil, apperror.New(apperror.CodeValidationFailed, "reservation owner is required")
	}

	res := &SeatReservation{
		ID:          uuid.New().String(),
		EventID:     eventID,
		UserID:      owner.UserID,
		GuestCartID: owner.GuestCartID,
		State:       StateHeld,
		ExpiresAt:   s.now().Add(s.config.Checkout.ReservationTTL),
	}
	res.SetLabels(seatLabels)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Seat{}).
			Where("event_id = ? AND label IN ? AND status = ?", eventID, seatLabels, SeatStatusAvailable).
			Updates(map[string]interface{}{
				"status":         SeatStatusHeld,
				"reservation_id": res.ID,
			})
		if result.Error != nil {
			return apperror.Internal(fmt.Errorf("hold seats: %w", result.Error))
		}
		if result.RowsAffected != int64(len(seatLabels)) {
			// Partial holds roll back with the transaction.
			return apperror.New(apperror.CodeSeatsUnavailable, "one or more seats are no longer available").
				WithDetail("event_id", eventID)
		}
		if err := tx.Create(res).Error; err != nil {
			return apperror.Internal(fmt.Errorf("create reservation: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"event_id":       eventID,
		"seats":          len(seatLabels),
	}).Info("Seats reserved")

	return res, nil
}

// ReleaseReservation frees a held reservation. It is idempotent: releasing
// an already released, expired or confirmed reservation is a no-op.
func (s *Service) ReleaseReservation(reservationID string, owner Owner) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var res SeatReservation
		err := tx.Where("id = ?", reservationID).First(&res).Error
		if err == gorm.ErrRecordNotFound {
			return nil
		} else if err != nil {
			return apperror.Internal(fmt.Errorf("load reservation: %w", err))
		}

		if !owner.isZero() && !s.ownedBy(&res, owner) {
			return apperror.New(apperror.CodeForbidden, "reservation belongs to another owner")
		}
		if res.State != StateHeld {
			return nil
		}

		return s.freeSeats(tx, &res, StateReleased)
	})
}

// ConfirmPurchase moves a held reservation's seats to sold and binds the
// reservation to the completing payment. Confirming twice is a no-op.
func (s *Service) ConfirmPurchase(reservationID, paymentID string, owner Owner) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.ConfirmPurchaseTx(tx, reservationID, paymentID, owner)
	})
}

// ConfirmPurchaseTx is ConfirmPurchase inside the caller's transaction, so
// order materialization can confirm seats atomically with the order write.
func (s *Service) ConfirmPurchaseTx(tx *gorm.DB, reservationID, paymentID string, owner Owner) error {
	var res SeatReservation
	err := tx.Where("id = ?", reservationID).First(&res).Error
	if err == gorm.ErrRecordNotFound {
		return apperror.New(apperror.CodeNotFound, "reservation not found")
	} else if err != nil {
		return apperror.Internal(fmt.Errorf("load reservation: %w", err))
	}

	if !owner.isZero() && !s.ownedBy(&res, owner) {
		return apperror.New(apperror.CodeForbidden, "reservation belongs to another owner")
	}
	if res.State == StateConfirmed {
		return nil
	}
	if res.State != StateHeld {
		return apperror.New(apperror.CodeConflict, "reservation is no longer held").
			WithDetail("state", string(res.State))
	}

	result := tx.Model(&Seat{}).
		Where("reservation_id = ? AND status = ?", res.ID, SeatStatusHeld).
		Update("status", SeatStatusSold)
	if result.Error != nil {
		return apperror.Internal(fmt.Errorf("mark seats sold: %w", result.Error))
	}

	updates := map[string]interface{}{
		"state":      StateConfirmed,
		"payment_id": paymentID,
	}
	if err := tx.Model(&SeatReservation{}).Where("id = ?", res.ID).Updates(updates).Error; err != nil {
		return apperror.Internal(fmt.Errorf("confirm reservation: %w", err))
	}
	return nil
}

// GetReservation loads a reservation by id
func (s *Service) GetReservation(reservationID string) (*SeatReservation, error) {
	var res SeatReservation
	err := s.db.Where("id = ?", reservationID).First(&res).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "reservation not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load reservation: %w", err))
	}
	return &res, nil
}

// SweepExpired expires overdue holds and frees their seats. It returns the
// number of reservations expired.
func (s *Service) SweepExpired() (int, error) {
	var stale []SeatReservation
	err := s.db.Where("state = ? AND expires_at < ?", StateHeld, s.now()).Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("find expired reservations: %w", err)
	}

	expired := 0
	for i := range stale {
		res := stale[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return s.freeSeats(tx, &res, StateExpired)
		})
		if err != nil {
			s.logger.WithError(err).WithField("reservation_id", res.ID).Warn("Failed to expire reservation")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) ownedBy(res *SeatReservation, owner Owner) bool {
	if owner.UserID != nil && res.UserID != nil && *owner.UserID == *res.UserID {
		return true
	}
	return owner.GuestCartID != "" && owner.GuestCartID == res.GuestCartID
}

func (s *Service) freeSeats(tx *gorm.DB, res *SeatReservation, terminal ReservationState) error {
	result := tx.Model(&Seat{}).
		Where("reservation_id = ? AND status = ?", res.ID, SeatStatusHeld).
		Updates(map[string]interface{}{
			"status":         SeatStatusAvailable,
			"reservation_id": nil,
		})
	if result.Error != nil {
		return apperror.Internal(fmt.Errorf("free seats: %w", result.Error))
	}
	if err := tx.Model(&SeatReservation{}).Where("id = ?", res.ID).Update("state", terminal).Error; err != nil {
		return apperror.Internal(fmt.Errorf("finalize reservation: %w", err))
	}
	return nil
}
