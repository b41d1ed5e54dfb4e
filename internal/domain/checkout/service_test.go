package checkout

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubReserver struct {
	released []string
}

func (r *stubReserver) ReserveSeats(eventID uint, seatLabels []string, owner reservation.Owner) (*reservation.SeatReservation, error) {
	res := &reservation.SeatReservation{ID: fmt.Sprintf("res-%d", len(seatLabels)), EventID: eventID, State: reservation.StateHeld}
	res.SetLabels(seatLabels)
	return res, nil
}

func (r *stubReserver) ReleaseReservation(reservationID string, owner reservation.Owner) error {
	r.released = append(r.released, reservationID)
	return nil
}

type stubMaterializer struct {
	calls   int
	lastPay *payment.Payment
}

func (m *stubMaterializer) Materialize(co *Checkout, pay *payment.Payment) (*MaterializeResult, error) {
	m.calls++
	m.lastPay = pay
	result := &MaterializeResult{
		OrderID:          "ord-1",
		OrderStatus:      "confirmed",
		ConfirmationCode: co.ConfirmationCode,
		AlreadyExisted:   pay == nil,
	}
	if pay != nil {
		result.AmountPaid = pay.Amount
	}
	return result, nil
}

type fixture struct {
	svc      *Service
	carts    *cart.Service
	payments *payment.Service
	reserver *stubReserver
	mat      *stubMaterializer
	db       *gorm.DB
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&cart.Cart{}, &cart.CartItem{}, &cart.DiscountCode{},
		&event.Event{}, &event.Venue{}, &event.PricingTier{},
		&payment.Payment{}, &Checkout{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Checkout.CheckoutTTL = 30 * time.Minute
	cfg.Checkout.GuestCartTTL = 24 * time.Hour
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	reserver := &stubReserver{}
	carts := cart.NewService(db, cfg, log, reserver)
	payments := payment.NewService(db, cfg)
	mat := &stubMaterializer{}
	svc := NewService(db, cfg, log, carts, payments, reserver, mat)

	return &fixture{svc: svc, carts: carts, payments: payments, reserver: reserver, mat: mat, db: db, cfg: cfg}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func (f *fixture) seedEvent(t *testing.T, price string, mutate func(*event.Event)) *event.Event {
	t.Helper()
	organizer := uint(1)
	ev := &event.Event{
		OrganizerID: &organizer,
		Title:       "Safari Sevens",
		Status:      event.EventStatusPublished,
		BasePrice:   mustDecimal(t, price),
		Capacity:    500,
		StartDate:   time.Now().Add(72 * time.Hour),
		EndDate:     time.Now().Add(80 * time.Hour),
	}
	if mutate != nil {
		mutate(ev)
	}
	if err := f.db.Create(ev).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev
}

func (f *fixture) fillCart(t *testing.T, ref cart.Ref, ev *event.Event, quantity int) {
	t.Helper()
	_, err := f.carts.AddItem(ref, &cart.AddItemRequest{
		ItemType: cart.ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("fill cart: %v", err)
	}
}

func (f *fixture) pay(t *testing.T, amount string) *payment.Payment {
	t.Helper()
	p, err := f.payments.RecordCompleted(&payment.RecordPaymentRequest{
		Method: "mpesa",
		Amount: mustDecimal(t, amount),
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	return p
}

func userRef(id uint) cart.Ref {
	return cart.Ref{UserID: &id}
}

func billing() *InitiateRequest {
	return &InitiateRequest{
		PaymentMethod: "mpesa",
		BillingInfo:   map[string]interface{}{"name": "Test Buyer", "city": "Nairobi"},
	}
}

func TestInitiateSnapshotsCartTotals(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", nil)
	ref := userRef(1)
	f.fillCart(t, ref, ev, 2)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}
	if co.Status != StatusPending {
		t.Fatalf("status = %s, want pending", co.Status)
	}
	if !co.Subtotal.Equal(mustDecimal(t, "2000.00")) || !co.TotalAmount.Equal(mustDecimal(t, "2000.00")) {
		t.Fatalf("snapshot = subtotal %s total %s", co.Subtotal, co.TotalAmount)
	}
	if !co.ExpiresAt.After(time.Now().Add(25 * time.Minute)) {
		t.Fatalf("expires_at = %s, want ~30m out", co.ExpiresAt)
	}
}

func TestInitiateRejectsEmptyCartAndBilling(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", nil)
	ref := userRef(2)

	// No cart yet.
	_, err := f.svc.InitiateCheckout(ref, billing())
	if apperror.CodeOf(err) != apperror.CodeNotFound {
		t.Fatalf("empty owner: code = %v, want NOT_FOUND", apperror.CodeOf(err))
	}

	f.fillCart(t, ref, ev, 1)
	_, err = f.svc.InitiateCheckout(ref, &InitiateRequest{PaymentMethod: "mpesa"})
	if apperror.CodeOf(err) != apperror.CodeValidationFailed {
		t.Fatalf("missing billing: code = %v, want VALIDATION_FAILED", apperror.CodeOf(err))
	}
}

func TestInitiateRejectsFullyDiscountedCart(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "100.00", nil)
	ref := userRef(7)
	f.fillCart(t, ref, ev, 1)

	code := cart.DiscountCode{Code: "FREEBIE", Percentage: mustDecimal(t, "100"), IsActive: true, MaxUsesPerUser: 1}
	if err := f.db.Create(&code).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}
	if _, err := f.carts.ApplyDiscount(ref, "FREEBIE"); err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}

	// A zero payable total is the same as an empty cart.
	_, err := f.svc.InitiateCheckout(ref, billing())
	if apperror.CodeOf(err) != apperror.CodeValidationFailed {
		t.Fatalf("fully discounted cart: code = %v, want VALIDATION_FAILED", apperror.CodeOf(err))
	}
}

func TestGuestInitiateValidatesIdentity(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "500.00", nil)

	guest, err := f.carts.CreateGuestCart()
	if err != nil {
		t.Fatalf("CreateGuestCart: %v", err)
	}
	ref := cart.Ref{GuestCartID: guest.ID}
	f.fillCart(t, ref, ev, 1)

	req := &InitiateGuestRequest{
		InitiateRequest: *billing(),
		Guest: GuestInfo{
			Email:     "Guest@Example.com",
			FirstName: "Wanjiku",
			LastName:  "Kamau",
			Phone:     "0712345678",
		},
	}
	co, err := f.svc.InitiateGuestCheckout(ref, req)
	if err != nil {
		t.Fatalf("InitiateGuestCheckout: %v", err)
	}
	if co.GuestEmail != "guest@example.com" {
		t.Fatalf("email = %q, want lowercased", co.GuestEmail)
	}
	if !regexp.MustCompile(`^[0-9A-F]{12}$`).MatchString(co.ConfirmationCode) {
		t.Fatalf("confirmation code = %q", co.ConfirmationCode)
	}

	bad := *req
	bad.Guest.Phone = "12345"
	if _, err := f.svc.InitiateGuestCheckout(ref, &bad); apperror.CodeOf(err) != apperror.CodeValidationFailed {
		t.Fatalf("bad phone: code = %v, want VALIDATION_FAILED", apperror.CodeOf(err))
	}

	bad = *req
	bad.Guest.Email = "not-an-email"
	if _, err := f.svc.InitiateGuestCheckout(ref, &bad); apperror.CodeOf(err) != apperror.CodeValidationFailed {
		t.Fatalf("bad email: code = %v, want VALIDATION_FAILED", apperror.CodeOf(err))
	}
}

func TestCompleteRequiresCompletedPayment(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", nil)
	ref := userRef(3)
	f.fillCart(t, ref, ev, 1)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	pending := payment.Payment{ID: "pay-pending", Method: "card", Amount: mustDecimal(t, "1000.00"), Status: payment.StatusPending}
	if err := f.db.Create(&pending).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	_, err = f.svc.CompleteCheckout(ref, co.ID, pending.ID)
	if apperror.CodeOf(err) != apperror.CodePaymentIncomplete {
		t.Fatalf("code = %v, want PAYMENT_INCOMPLETE", apperror.CodeOf(err))
	}
	if f.mat.calls != 0 {
		t.Fatal("materializer must not run on incomplete payment")
	}
}

func TestCompleteRejectsDepositWhenNotAllowed(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", func(ev *event.Event) {
		ev.AllowDeposit = false
	})
	ref := userRef(4)
	f.fillCart(t, ref, ev, 2)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	p := f.pay(t, "500.00")
	_, err = f.svc.CompleteCheckout(ref, co.ID, p.ID)
	if apperror.CodeOf(err) != apperror.CodeDepositNotAllowed {
		t.Fatalf("code = %v, want DEPOSIT_NOT_ALLOWED", apperror.CodeOf(err))
	}
}

func TestCompleteRejectsDepositBelowMinimum(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", func(ev *event.Event) {
		ev.AllowDeposit = true
		ev.DepositType = event.DepositTypePercentage
		ev.DepositValue = mustDecimal(t, "30")
	})
	ref := userRef(5)
	f.fillCart(t, ref, ev, 2) // subtotal 2000, minimum deposit 600

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	p := f.pay(t, "500.00")
	_, err = f.svc.CompleteCheckout(ref, co.ID, p.ID)
	if apperror.CodeOf(err) != apperror.CodeDepositBelowMinimum {
		t.Fatalf("code = %v, want DEPOSIT_BELOW_MINIMUM", apperror.CodeOf(err))
	}

	// Meeting the minimum hands off to the materializer.
	p2 := f.pay(t, "600.00")
	result, err := f.svc.CompleteCheckout(ref, co.ID, p2.ID)
	if err != nil {
		t.Fatalf("CompleteCheckout at minimum: %v", err)
	}
	if result.OrderID != "ord-1" || f.mat.calls != 1 {
		t.Fatalf("materializer calls = %d, result = %+v", f.mat.calls, result)
	}
}

func TestCompleteRejectsPastDepositDeadline(t *testing.T) {
	f := newFixture(t)
	due := time.Now().Add(-time.Hour)
	ev := f.seedEvent(t, "1000.00", func(ev *event.Event) {
		ev.AllowDeposit = true
		ev.DepositType = event.DepositTypeFixed
		ev.DepositValue = mustDecimal(t, "100")
		ev.DepositDueBy = &due
	})
	ref := userRef(6)
	f.fillCart(t, ref, ev, 1)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	p := f.pay(t, "100.00")
	_, err = f.svc.CompleteCheckout(ref, co.ID, p.ID)
	if apperror.CodeOf(err) != apperror.CodeDepositDeadlinePassed {
		t.Fatalf("code = %v, want DEPOSIT_DEADLINE_PASSED", apperror.CodeOf(err))
	}
}

func TestCompleteFullPaymentSkipsDepositChecks(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", func(ev *event.Event) {
		ev.AllowDeposit = false
	})
	ref := userRef(7)
	f.fillCart(t, ref, ev, 1)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	p := f.pay(t, "1000.00")
	result, err := f.svc.CompleteCheckout(ref, co.ID, p.ID)
	if err != nil {
		t.Fatalf("CompleteCheckout: %v", err)
	}
	if result.OrderID == "" {
		t.Fatal("no order returned")
	}
}

func TestCompleteReplayReturnsExistingOrder(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "1000.00", nil)
	ref := userRef(8)
	f.fillCart(t, ref, ev, 1)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	// Simulate the materializer having completed the checkout.
	orderID := "ord-1"
	now := time.Now().UTC()
	err = f.db.Model(&Checkout{}).Where("id = ?", co.ID).Updates(map[string]interface{}{
		"status":       StatusCompleted,
		"order_id":     orderID,
		"completed_at": now,
	}).Error
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	p := f.pay(t, "1000.00")
	result, err := f.svc.CompleteCheckout(ref, co.ID, p.ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !result.AlreadyExisted {
		t.Fatal("replay should report the existing order")
	}
	if f.mat.lastPay != nil {
		t.Fatal("replay path must not revalidate the payment")
	}
}

func TestCancelReleasesHoldsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "700.00", nil)
	ref := userRef(9)

	_, err := f.carts.AddItem(ref, &cart.AddItemRequest{
		ItemType: cart.ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 2,
		SeatIDs:  []string{"A1", "A2"},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	if err := f.svc.CancelCheckout(ref, co.ID); err != nil {
		t.Fatalf("CancelCheckout: %v", err)
	}
	if len(f.reserver.released) != 1 {
		t.Fatalf("released = %v, want the item's hold", f.reserver.released)
	}
	if err := f.svc.CancelCheckout(ref, co.ID); err != nil {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}

	got, err := f.svc.GetCheckout(ref, co.ID)
	if err != nil {
		t.Fatalf("GetCheckout: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}

func TestCheckoutOwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "100.00", nil)
	ref := userRef(10)
	f.fillCart(t, ref, ev, 1)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	if _, err := f.svc.GetCheckout(userRef(11), co.ID); apperror.CodeOf(err) != apperror.CodeForbidden {
		t.Fatalf("code = %v, want FORBIDDEN", apperror.CodeOf(err))
	}
}

func TestExpireStaleSweepsPendingOnly(t *testing.T) {
	f := newFixture(t)
	ev := f.seedEvent(t, "100.00", nil)
	ref := userRef(12)
	f.fillCart(t, ref, ev, 1)

	co, err := f.svc.InitiateCheckout(ref, billing())
	if err != nil {
		t.Fatalf("InitiateCheckout: %v", err)
	}

	f.svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	n, err := f.svc.ExpireStale()
	if err != nil {
		t.Fatalf("ExpireStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	got, err := f.svc.GetCheckout(ref, co.ID)
	if err != nil {
		t.Fatalf("GetCheckout: %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
	// Expiry sweeps do not release seat holds.
	if len(f.reserver.released) != 0 {
		t.Fatalf("released = %v, want none", f.reserver.released)
	}
}
