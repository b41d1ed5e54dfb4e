// internal/domain/order/guest_service.go
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
	"github.com/your-org/ticketing-backend/internal/domain/user"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"github.com/your-org/ticketing-backend/internal/pkg/auth"
	"gorm.io/gorm"
)

// Access link resends are throttled per email to keep the endpoint from
// becoming a mail cannon.
const accessLinkThrottle = time.Minute

// GuestService handles guest order retrieval and account conversion
type GuestService struct {
	db          *gorm.DB
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	notifier    Notifier
	passwords   *auth.PasswordManager
}

// NewGuestService creates a new guest retrieval service
func NewGuestService(
	db *gorm.DB,
	cfg *config.Config,
	logger *logrus.Logger,
	redisClient *redis.Client,
	notifier Notifier,
	passwords *auth.PasswordManager,
) *GuestService {
	return &GuestService{
		db:          db,
		config:      cfg,
		logger:      logger,
		redisClient: redisClient,
		notifier:    notifier,
		passwords:   passwords,
	}
}

// GuestTicketsView is a guest order with its tickets and event summaries
type GuestTicketsView struct {
	Order   *Order               `json:"order"`
	Tickets []ticket.Ticket      `json:"tickets"`
	Events  map[uint]event.Event `json:"events,omitempty"`
}

// OrderSummary is a history row for a guest's past orders
type OrderSummary struct {
	Order       Order `json:"order"`
	TicketCount int   `json:"ticket_count"`
}

// GetGuestTickets returns the order matching the email and confirmation
// code, with its tickets and the events they admit to.
func (s *GuestService) GetGuestTickets(email, code string) (*GuestTicketsView, error) {
	o, err := s.matchOrder(email, code)
	if err != nil {
		return nil, err
	}

	var tickets []ticket.Ticket
	if err := s.db.Where("order_id = ?", o.ID).Order("created_at ASC").Find(&tickets).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("load tickets: %w", err))
	}

	events, err := s.eventsForTickets(tickets)
	if err != nil {
		return nil, err
	}

	return &GuestTicketsView{Order: o, Tickets: tickets, Events: events}, nil
}

// SendGuestAccessLink re-emails the confirmation code of the most recent
// confirmed guest order for the address. The response never discloses
// whether the address has orders.
func (s *GuestService) SendGuestAccessLink(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperror.New(apperror.CodeValidationFailed, "email is required")
	}

	if s.redisClient != nil {
		key := "guest:access-link:" + email
		ok, err := s.redisClient.SetNX(ctx, key, 1, accessLinkThrottle).Result()
		if err != nil {
			s.logger.WithError(err).Warn("Access link throttle check failed")
		} else if !ok {
			// Throttled addresses get the same silent success as unknown
			// ones.
			return nil
		}
	}

	var o Order
	err := s.db.Where("is_guest = ? AND guest_email = ? AND status = ?", true, email, OrderStatusConfirmed).
		Order("created_at DESC").First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	} else if err != nil {
		return apperror.Internal(fmt.Errorf("find guest order: %w", err))
	}

	if err := s.notifier.SendGuestAccessLink(email, o.ConfirmationCode); err != nil {
		s.logger.WithError(err).WithField("order_id", o.ID).Warn("Failed to send guest access link")
	}
	return nil
}

// GetGuestOrderHistory lists all guest orders on the email, newest first,
// after the email and code have matched at least one of them.
func (s *GuestService) GetGuestOrderHistory(email, code string) ([]OrderSummary, error) {
	if _, err := s.matchOrder(email, code); err != nil {
		return nil, err
	}

	var orders []Order
	err := s.db.Where("is_guest = ? AND guest_email = ?", true, normalizeEmail(email)).
		Order("created_at DESC").Find(&orders).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list guest orders: %w", err))
	}

	summaries := make([]OrderSummary, len(orders))
	for i, o := range orders {
		var count int64
		if err := s.db.Model(&ticket.Ticket{}).Where("order_id = ?", o.ID).Count(&count).Error; err != nil {
			return nil, apperror.Internal(fmt.Errorf("count tickets: %w", err))
		}
		summaries[i] = OrderSummary{Order: o, TicketCount: int(count)}
	}
	return summaries, nil
}

// ConvertRequest carries the new account's credentials
type ConvertRequest struct {
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ConvertGuestToAccount creates a user from a verified guest identity and
// relinks every guest order and ticket on that email to the new account.
func (s *GuestService) ConvertGuestToAccount(email, code string, req *ConvertRequest) (*user.User, error) {
	// Conversion matches on (email, code) without the guest flag, so a
	// replay after relinking still reaches the account-exists check.
	matched, err := s.matchOrderAnyOwner(email, code)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)

	if err := s.passwords.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	hashed, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}

	firstName := req.FirstName
	lastName := req.LastName
	if firstName == "" && lastName == "" {
		firstName, lastName = splitName(matched.GuestName)
	}

	newUser := &user.User{
		Email:         email,
		Password:      hashed,
		FirstName:     firstName,
		LastName:      lastName,
		Phone:         matched.GuestPhone,
		Role:          user.RoleUser,
		IsActive:      true,
		EmailVerified: true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing user.User
		err := tx.Where("email = ?", email).First(&existing).Error
		if err == nil {
			return apperror.New(apperror.CodeConflict, "an account with this email already exists")
		} else if err != gorm.ErrRecordNotFound {
			return apperror.Internal(fmt.Errorf("check existing user: %w", err))
		}

		if err := tx.Create(newUser).Error; err != nil {
			return apperror.Internal(fmt.Errorf("create user: %w", err))
		}

		var orderIDs []string
		err = tx.Model(&Order{}).
			Where("is_guest = ? AND guest_email = ?", true, email).
			Pluck("id", &orderIDs).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("collect guest orders: %w", err))
		}

		relink := map[string]interface{}{
			"user_id":  newUser.ID,
			"is_guest": false,
		}
		err = tx.Model(&Order{}).Where("id IN ?", orderIDs).Updates(relink).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("relink orders: %w", err))
		}

		err = tx.Model(&ticket.Ticket{}).Where("order_id IN ?", orderIDs).
			Update("user_id", newUser.ID).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("relink tickets: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newUser, nil
}

func (s *GuestService) matchOrder(email, code string) (*Order, error) {
	return s.findByIdentity(email, code, true)
}

func (s *GuestService) matchOrderAnyOwner(email, code string) (*Order, error) {
	return s.findByIdentity(email, code, false)
}

func (s *GuestService) findByIdentity(email, code string, guestOnly bool) (*Order, error) {
	email = normalizeEmail(email)
	code = strings.ToUpper(strings.TrimSpace(code))
	if email == "" || code == "" {
		return nil, apperror.New(apperror.CodeValidationFailed, "email and confirmation code are required")
	}

	query := s.db.Where("guest_email = ? AND confirmation_code = ?", email, code)
	if guestOnly {
		query = query.Where("is_guest = ?", true)
	}

	var o Order
	err := query.Order("created_at DESC").First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "order not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find guest order: %w", err))
	}
	return &o, nil
}

func (s *GuestService) eventsForTickets(tickets []ticket.Ticket) (map[uint]event.Event, error) {
	var ids []uint
	for _, t := range tickets {
		if t.EventID != nil {
			ids = append(ids, *t.EventID)
		}
	}
	events := map[uint]event.Event{}
	if len(ids) == 0 {
		return events, nil
	}

	var rows []event.Event
	if err := s.db.Preload("Venue").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("load events: %w", err))
	}
	for _, ev := range rows {
		events[ev.ID] = ev
	}
	return events, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
