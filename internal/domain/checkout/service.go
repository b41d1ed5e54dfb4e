// internal/domain/checkout/service.go
package checkout

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"github.com/your-org/ticketing-backend/internal/pkg/ticketcode"
	"gorm.io/gorm"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// Kenyan mobile numbers: +2547XXXXXXXX or 07XXXXXXXX.
	phonePattern = regexp.MustCompile(`^(\+254|0)7\d{8}$`)
)

// SeatReleaser frees seat holds when a checkout is cancelled.
type SeatReleaser interface {
	ReleaseReservation(reservationID string, owner reservation.Owner) error
}

// Materializer turns a completed checkout into an order. Implemented by the
// order service; completion delegates the whole transactional tail to it.
type Materializer interface {
	Materialize(co *Checkout, pay *payment.Payment) (*MaterializeResult, error)
}

// MaterializeResult summarizes the order produced for a checkout
type MaterializeResult struct {
	OrderID          string          `json:"order_id"`
	OrderStatus      string          `json:"order_status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	BalanceDue       decimal.Decimal `json:"balance_due"`
	IsFullyPaid      bool            `json:"is_fully_paid"`
	TicketsCreated   int             `json:"tickets_created"`
	BookingsCreated  int             `json:"bookings_created"`
	ConfirmationCode string          `json:"confirmation_code,omitempty"`
	AlreadyExisted   bool            `json:"-"`
}

// Service handles checkout business logic
type Service struct {
	db           *gorm.DB
	config       *config.Config
	logger       *logrus.Logger
	carts        *cart.Service
	payments     *payment.Service
	releaser     SeatReleaser
	materializer Materializer
	now          func() time.Time
}

// NewService creates a new checkout service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	logger *logrus.Logger,
	carts *cart.Service,
	payments *payment.Service,
	releaser SeatReleaser,
	materializer Materializer,
) *Service {
	return &Service{
		db:           db,
		config:       cfg,
		logger:       logger,
		carts:        carts,
		payments:     payments,
		releaser:     releaser,
		materializer: materializer,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// InitiateRequest starts a checkout for an authenticated user
type InitiateRequest struct {
	PaymentMethod string                 `json:"payment_method" binding:"required"`
	BillingInfo   map[string]interface{} `json:"billing_info" binding:"required"`
}

// GuestInfo identifies a guest at checkout time
type GuestInfo struct {
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
}

// InitiateGuestRequest starts a checkout for a guest cart
type InitiateGuestRequest struct {
	InitiateRequest
	Guest GuestInfo `json:"guest" binding:"required"`
}

// InitiateCheckout snapshots the owner's active cart into a pending checkout
// with a fixed expiry window.
func (s *Service) InitiateCheckout(ref cart.Ref, req *InitiateRequest) (*Checkout, error) {
	if ref.UserID == nil {
		return nil, apperror.New(apperror.CodeValidationFailed, "user checkout requires an authenticated owner")
	}
	return s.initiate(ref, req, nil)
}

// InitiateGuestCheckout validates the guest's identity, generates their
// confirmation code and snapshots the guest cart into a pending checkout.
func (s *Service) InitiateGuestCheckout(ref cart.Ref, req *InitiateGuestRequest) (*Checkout, error) {
	if ref.GuestCartID == "" {
		return nil, apperror.New(apperror.CodeValidationFailed, "guest checkout requires a guest cart id")
	}
	if err := validateGuest(&req.Guest); err != nil {
		return nil, err
	}
	return s.initiate(ref, &req.InitiateRequest, &req.Guest)
}

func (s *Service) initiate(ref cart.Ref, req *InitiateRequest, guest *GuestInfo) (*Checkout, error) {
	if len(req.BillingInfo) == 0 {
		return nil, apperror.New(apperror.CodeValidationFailed, "billing_info is required")
	}

	c, err := s.carts.ActiveCartRecord(ref)
	if err != nil {
		return nil, err
	}
	if c.TotalAmount.Sub(c.DiscountAmount).LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.CodeValidationFailed, "cart is empty")
	}

	co := &Checkout{
		ID:             uuid.New().String(),
		CartID:         c.ID,
		UserID:         ref.UserID,
		PaymentMethod:  req.PaymentMethod,
		Subtotal:       c.TotalAmount,
		DiscountAmount: c.DiscountAmount,
		TotalAmount:    c.TotalAmount.Sub(c.DiscountAmount),
		Status:         StatusPending,
		ExpiresAt:      s.now().Add(s.config.Checkout.CheckoutTTL),
	}
	co.SetBilling(req.BillingInfo)

	if guest != nil {
		co.IsGuest = true
		co.GuestEmail = strings.ToLower(strings.TrimSpace(guest.Email))
		co.GuestFirstName = strings.TrimSpace(guest.FirstName)
		co.GuestLastName = strings.TrimSpace(guest.LastName)
		co.GuestPhone = strings.TrimSpace(guest.Phone)
		co.ConfirmationCode = ticketcode.ConfirmationCode()
	}

	if err := s.db.Create(co).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("create checkout: %w", err))
	}

	s.logger.WithFields(logrus.Fields{
		"checkout_id": co.ID,
		"cart_id":     co.CartID,
		"is_guest":    co.IsGuest,
		"total":       co.TotalAmount.String(),
	}).Info("Checkout initiated")

	return co, nil
}

// CompleteCheckout validates the payment against per-event deposit rules and
// hands off to the order materializer. Replaying a completed checkout
// returns the existing order.
func (s *Service) CompleteCheckout(ref cart.Ref, checkoutID, paymentID string) (*MaterializeResult, error) {
	co, err := s.ownedCheckout(ref, checkoutID)
	if err != nil {
		return nil, err
	}

	if co.Status == StatusCompleted && co.OrderID != nil {
		return s.existingResult(co)
	}
	if co.Status != StatusPending {
		return nil, apperror.New(apperror.CodeConflict, "checkout is not pending").
			WithDetail("status", string(co.Status))
	}

	pay, err := s.payments.GetCompleted(paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.validateDeposits(co, pay.Amount); err != nil {
		return nil, err
	}

	result, err := s.materializer.Materialize(co, pay)
	if err != nil {
		return nil, err
	}
	if result.AlreadyExisted {
		s.logger.WithField("checkout_id", co.ID).Info("Checkout completion replayed")
	}
	return result, nil
}

// CancelCheckout releases every seat hold referenced by the cart's items and
// marks the checkout cancelled. Idempotent.
func (s *Service) CancelCheckout(ref cart.Ref, checkoutID string) error {
	co, err := s.ownedCheckout(ref, checkoutID)
	if err != nil {
		return err
	}
	if co.Status == StatusCancelled {
		return nil
	}
	if co.Status == StatusCompleted {
		return apperror.New(apperror.CodeConflict, "checkout is already completed")
	}

	items, err := s.carts.ActiveItems(co.CartID)
	if err != nil {
		return err
	}
	owner := reservation.Owner{UserID: ref.UserID, GuestCartID: ref.GuestCartID}
	for _, it := range items {
		if it.ReservationID == "" {
			continue
		}
		if err := s.releaser.ReleaseReservation(it.ReservationID, owner); err != nil {
			s.logger.WithError(err).WithField("reservation_id", it.ReservationID).
				Warn("Failed to release reservation on checkout cancel")
		}
	}

	err = s.db.Model(&Checkout{}).
		Where("id = ? AND status = ?", co.ID, StatusPending).
		Update("status", StatusCancelled).Error
	if err != nil {
		return apperror.Internal(fmt.Errorf("cancel checkout: %w", err))
	}
	return nil
}

// GetCheckout loads a checkout owned by the caller
func (s *Service) GetCheckout(ref cart.Ref, checkoutID string) (*Checkout, error) {
	return s.ownedCheckout(ref, checkoutID)
}

// PendingForCart returns the caller's most recent live pending checkout for
// a cart, if one exists
func (s *Service) PendingForCart(ref cart.Ref, cartID string) (*Checkout, error) {
	var co Checkout
	err := s.db.Where("cart_id = ? AND status = ? AND expires_at > ?", cartID, StatusPending, s.now()).
		Order("created_at DESC").First(&co).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "no pending checkout for cart")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load pending checkout: %w", err))
	}
	return s.ownedCheckout(ref, co.ID)
}

// ExpireStale sweeps overdue pending checkouts to expired. Seat holds are
// left to their own TTL; only an explicit cancel releases them.
func (s *Service) ExpireStale() (int, error) {
	result := s.db.Model(&Checkout{}).
		Where("status = ? AND expires_at < ?", StatusPending, s.now()).
		Update("status", StatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("expire checkouts: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *Service) ownedCheckout(ref cart.Ref, checkoutID string) (*Checkout, error) {
	var co Checkout
	err := s.db.Where("id = ?", checkoutID).First(&co).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "checkout not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load checkout: %w", err))
	}

	owned := false
	switch {
	case ref.UserID != nil && co.UserID != nil && *ref.UserID == *co.UserID:
		owned = true
	case ref.GuestCartID != "" && co.IsGuest && co.CartID == ref.GuestCartID:
		owned = true
	}
	if !owned {
		return nil, apperror.New(apperror.CodeForbidden, "checkout belongs to another owner")
	}
	return &co, nil
}

func (s *Service) existingResult(co *Checkout) (*MaterializeResult, error) {
	// Delegate to the materializer's idempotent path so replay and first
	// completion return identical shapes.
	return s.materializer.Materialize(co, nil)
}

// validateDeposits enforces per-event deposit rules when the payment does
// not cover the full checkout amount.
func (s *Service) validateDeposits(co *Checkout, paid decimal.Decimal) error {
	if paid.GreaterThanOrEqual(co.TotalAmount) {
		return nil
	}

	items, err := s.carts.ActiveItems(co.CartID)
	if err != nil {
		return err
	}

	subtotals := map[uint]decimal.Decimal{}
	for _, it := range items {
		if it.ItemType != cart.ItemTypeEvent || it.EventID == nil {
			continue
		}
		subtotals[*it.EventID] = subtotals[*it.EventID].Add(it.TotalPrice)
	}
	if len(subtotals) == 0 {
		// Partial payment with no event items has no deposit policy to
		// satisfy; the order records the balance due.
		return nil
	}

	ids := make([]uint, 0, len(subtotals))
	for id := range subtotals {
		ids = append(ids, id)
	}
	var events []event.Event
	if err := s.db.Where("id IN ?", ids).Find(&events).Error; err != nil {
		return apperror.Internal(fmt.Errorf("load events: %w", err))
	}

	var blocking []string
	for _, ev := range events {
		if !ev.AllowDeposit {
			blocking = append(blocking, ev.Title)
		}
	}
	if len(blocking) > 0 {
		return apperror.New(apperror.CodeDepositNotAllowed, "full payment is required for events that do not allow deposits").
			WithDetail("events", blocking)
	}

	now := s.now()
	for _, ev := range events {
		if ev.DepositDueBy != nil && ev.DepositDueBy.Before(now) {
			return apperror.New(apperror.CodeDepositDeadlinePassed, "deposit deadline has passed").
				WithDetail("event", ev.Title)
		}
		required := ev.RequiredDeposit(subtotals[ev.ID])
		if paid.LessThan(required) {
			return apperror.New(apperror.CodeDepositBelowMinimum, "payment is below the event's minimum deposit").
				WithDetail("event", ev.Title).
				WithDetail("required_minimum", required.String())
		}
	}
	return nil
}

func validateGuest(g *GuestInfo) error {
	email := strings.ToLower(strings.TrimSpace(g.Email))
	if !emailPattern.MatchString(email) {
		return apperror.New(apperror.CodeValidationFailed, "invalid guest email")
	}
	if strings.TrimSpace(g.FirstName) == "" || strings.TrimSpace(g.LastName) == "" {
		return apperror.New(apperror.CodeValidationFailed, "guest first and last name are required")
	}
	if !phonePattern.MatchString(strings.TrimSpace(g.Phone)) {
		return apperror.New(apperror.CodeValidationFailed, "invalid guest phone number")
	}
	return nil
}
