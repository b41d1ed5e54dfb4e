package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
	"github.com/your-org/ticketing-backend/internal/domain/user"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"github.com/your-org/ticketing-backend/internal/pkg/auth"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGuestFixture(t *testing.T) (*GuestService, *gorm.DB, *recordingNotifier) {
	t.Helper()
	dsn := fmt.Sprintf("file:guest_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&user.User{}, &event.Venue{}, &event.Event{}, &Order{}, &ticket.Ticket{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Security.BcryptCost = 4 // fast hashes in tests
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	notifier := &recordingNotifier{}
	svc := NewGuestService(db, cfg, log, nil, notifier, auth.NewPasswordManager(cfg))
	return svc, db, notifier
}

func seedGuestOrder(t *testing.T, db *gorm.DB, email, code string, tickets int, createdAt time.Time) *Order {
	t.Helper()
	o := &Order{
		ID:               fmt.Sprintf("ord-%s-%d", code, createdAt.UnixNano()),
		OrderNumber:      fmt.Sprintf("ORD-%d", createdAt.UnixNano()),
		CheckoutID:       fmt.Sprintf("co-%s-%d", code, createdAt.UnixNano()),
		PaymentID:        "pay-1",
		IsGuest:          true,
		GuestEmail:       email,
		GuestName:        "Alice Achieng",
		ConfirmationCode: code,
		Subtotal:         decimal.NewFromInt(100),
		TotalAmount:      decimal.NewFromInt(100),
		AmountPaid:       decimal.NewFromInt(100),
		BalanceDue:       decimal.Zero,
		Status:           OrderStatusConfirmed,
		CreatedAt:        createdAt,
	}
	o.SetMeta(OrderMetadata{IsFullyPaid: true})
	if err := db.Create(o).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for i := 0; i < tickets; i++ {
		tk := ticket.Ticket{
			ID:           fmt.Sprintf("tkt-%s-%d-%d", code, createdAt.UnixNano(), i),
			OrderID:      o.ID,
			ItemType:     "event",
			TicketNumber: fmt.Sprintf("TKT-%s-%d", code, i),
			Price:        decimal.NewFromInt(50),
			Status:       ticket.StatusConfirmed,
		}
		if err := db.Create(&tk).Error; err != nil {
			t.Fatalf("seed ticket: %v", err)
		}
	}
	return o
}

func TestGetGuestTicketsMatchesNormalizedIdentity(t *testing.T) {
	svc, db, _ := newGuestFixture(t)
	o := seedGuestOrder(t, db, "alice@example.com", "ABCDEF123456", 2, time.Now().UTC())

	view, err := svc.GetGuestTickets("  Alice@Example.COM ", "abcdef123456")
	if err != nil {
		t.Fatalf("GetGuestTickets: %v", err)
	}
	if view.Order.ID != o.ID {
		t.Fatalf("order = %s, want %s", view.Order.ID, o.ID)
	}
	if len(view.Tickets) != 2 {
		t.Fatalf("tickets = %d, want 2", len(view.Tickets))
	}

	if _, err := svc.GetGuestTickets("alice@example.com", "000000000000"); apperror.CodeOf(err) != apperror.CodeNotFound {
		t.Fatalf("wrong code: code = %v, want NOT_FOUND", apperror.CodeOf(err))
	}
}

func TestSendGuestAccessLinkNeverDisclosesExistence(t *testing.T) {
	svc, db, notifier := newGuestFixture(t)
	seedGuestOrder(t, db, "alice@example.com", "ABCDEF123456", 1, time.Now().UTC())

	if err := svc.SendGuestAccessLink(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("known address: %v", err)
	}
	if err := svc.SendGuestAccessLink(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unknown address must return the same silent success: %v", err)
	}
	if len(notifier.accessLinks) != 1 || notifier.accessLinks[0] != "alice@example.com" {
		t.Fatalf("access links sent = %v", notifier.accessLinks)
	}
}

// The resend window is one minute per address.
func TestAccessLinkResendWindow(t *testing.T) {
	if accessLinkThrottle != time.Minute {
		t.Fatalf("throttle = %s, want 1m0s", accessLinkThrottle)
	}
}

func TestGetGuestOrderHistorySortedWithCounts(t *testing.T) {
	svc, db, _ := newGuestFixture(t)
	now := time.Now().UTC()
	older := seedGuestOrder(t, db, "alice@example.com", "AAAA11112222", 1, now.Add(-48*time.Hour))
	newer := seedGuestOrder(t, db, "alice@example.com", "BBBB33334444", 3, now)

	history, err := svc.GetGuestOrderHistory("alice@example.com", "AAAA11112222")
	if err != nil {
		t.Fatalf("GetGuestOrderHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	if history[0].Order.ID != newer.ID || history[1].Order.ID != older.ID {
		t.Fatalf("history not newest first: %s, %s", history[0].Order.ID, history[1].Order.ID)
	}
	if history[0].TicketCount != 3 || history[1].TicketCount != 1 {
		t.Fatalf("ticket counts = %d, %d", history[0].TicketCount, history[1].TicketCount)
	}
}

func TestConvertGuestToAccountRelinksEverything(t *testing.T) {
	svc, db, _ := newGuestFixture(t)
	now := time.Now().UTC()
	first := seedGuestOrder(t, db, "alice@example.com", "AAAA11112222", 2, now.Add(-24*time.Hour))
	second := seedGuestOrder(t, db, "alice@example.com", "BBBB33334444", 1, now)

	u, err := svc.ConvertGuestToAccount("alice@example.com", "AAAA11112222", &ConvertRequest{
		Password: "a-strong-password",
	})
	if err != nil {
		t.Fatalf("ConvertGuestToAccount: %v", err)
	}
	if u.Email != "alice@example.com" || !u.EmailVerified {
		t.Fatalf("user = %+v", u)
	}
	if u.FirstName != "Alice" || u.LastName != "Achieng" {
		t.Fatalf("name split = %q %q", u.FirstName, u.LastName)
	}

	for _, id := range []string{first.ID, second.ID} {
		var o Order
		if err := db.Where("id = ?", id).First(&o).Error; err != nil {
			t.Fatalf("reload order: %v", err)
		}
		if o.UserID == nil || *o.UserID != u.ID || o.IsGuest {
			t.Fatalf("order %s not relinked: user_id=%v is_guest=%v", id, o.UserID, o.IsGuest)
		}
	}

	var ticketCount int64
	db.Model(&ticket.Ticket{}).Where("user_id = ?", u.ID).Count(&ticketCount)
	if ticketCount != 3 {
		t.Fatalf("relinked tickets = %d, want 3", ticketCount)
	}

	// The same identity cannot convert twice.
	_, err = svc.ConvertGuestToAccount("alice@example.com", "AAAA11112222", &ConvertRequest{
		Password: "another-password",
	})
	if apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("code = %v, want CONFLICT", apperror.CodeOf(err))
	}
}
