package cart

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubReserver struct {
	nextID   string
	reserved []string
	released []string
	failWith error
}

func (r *stubReserver) ReserveSeats(eventID uint, seatLabels []string, owner reservation.Owner) (*reservation.SeatReservation, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	r.reserved = append(r.reserved, r.nextID)
	res := &reservation.SeatReservation{ID: r.nextID, EventID: eventID, State: reservation.StateHeld}
	res.SetLabels(seatLabels)
	return res, nil
}

func (r *stubReserver) ReleaseReservation(reservationID string, owner reservation.Owner) error {
	r.released = append(r.released, reservationID)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(&Cart{}, &CartItem{}, &DiscountCode{}, &event.Event{}, &event.Venue{}, &event.PricingTier{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *stubReserver) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{}
	cfg.Checkout.GuestCartTTL = 24 * time.Hour
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	stub := &stubReserver{nextID: "res-1"}
	return NewService(db, cfg, log, stub), db, stub
}

func seedEvent(t *testing.T, db *gorm.DB, price string) *event.Event {
	t.Helper()
	organizer := uint(1)
	ev := &event.Event{
		OrganizerID: &organizer,
		Title:       "Nairobi Jazz Night",
		Status:      event.EventStatusPublished,
		BasePrice:   mustDecimal(t, price),
		Capacity:    100,
		StartDate:   time.Now().Add(48 * time.Hour),
		EndDate:     time.Now().Add(52 * time.Hour),
	}
	if err := db.Create(ev).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func userRef(id uint) Ref {
	return Ref{UserID: &id}
}

func TestAddItemCreatesUserCartLazily(t *testing.T) {
	svc, db, _ := newTestService(t)
	ev := seedEvent(t, db, "1500.00")

	view, err := svc.AddItem(userRef(1), &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(view.Items))
	}
	item := view.Items[0]
	if !item.UnitPrice.Equal(mustDecimal(t, "1500.00")) {
		t.Fatalf("unit price = %s, want event base price", item.UnitPrice)
	}
	if !item.TotalPrice.Equal(mustDecimal(t, "3000.00")) {
		t.Fatalf("total price = %s, want 3000.00", item.TotalPrice)
	}
	if !view.TotalAmount.Equal(mustDecimal(t, "3000.00")) {
		t.Fatalf("cart total = %s, want 3000.00", view.TotalAmount)
	}
	if item.Title != "Nairobi Jazz Night" {
		t.Fatalf("title = %q, want event title", item.Title)
	}
}

func TestAddItemWithSeatsHoldsReservation(t *testing.T) {
	svc, db, stub := newTestService(t)
	ev := seedEvent(t, db, "800.00")

	view, err := svc.AddItem(userRef(2), &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 2,
		SeatIDs:  []string{"A1", "A2"},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(stub.reserved) != 1 {
		t.Fatalf("reservations placed = %d, want 1", len(stub.reserved))
	}
	if view.Items[0].ReservationID != "res-1" {
		t.Fatalf("reservation id = %q, want res-1", view.Items[0].ReservationID)
	}
	if got := view.Items[0].SeatNumbers; len(got) != 2 || got[0] != "A1" {
		t.Fatalf("seat numbers = %v", got)
	}
}

func TestAddItemPropagatesSeatsUnavailable(t *testing.T) {
	svc, db, stub := newTestService(t)
	ev := seedEvent(t, db, "800.00")
	stub.failWith = apperror.New(apperror.CodeSeatsUnavailable, "seats taken")

	_, err := svc.AddItem(userRef(3), &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 1,
		SeatIDs:  []string{"B1"},
	})
	if apperror.CodeOf(err) != apperror.CodeSeatsUnavailable {
		t.Fatalf("code = %v, want SEATS_UNAVAILABLE", apperror.CodeOf(err))
	}
}

func TestAddNonEventItemRequiresRefAndTitle(t *testing.T) {
	svc, _, _ := newTestService(t)
	price := mustDecimal(t, "4500.00")

	_, err := svc.AddItem(userRef(4), &AddItemRequest{
		ItemType:  ItemTypeFlight,
		Quantity:  1,
		UnitPrice: &price,
	})
	if apperror.CodeOf(err) != apperror.CodeValidationFailed {
		t.Fatalf("code = %v, want VALIDATION_FAILED", apperror.CodeOf(err))
	}

	view, err := svc.AddItem(userRef(4), &AddItemRequest{
		ItemType:  ItemTypeFlight,
		ItemRefID: "offer-889",
		ItemTitle: "NBO to MBA",
		Quantity:  1,
		UnitPrice: &price,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if view.Items[0].ItemRefID != "offer-889" {
		t.Fatalf("item_ref_id = %q", view.Items[0].ItemRefID)
	}
}

func TestUpdateQuantityBelowOneRemovesItem(t *testing.T) {
	svc, db, stub := newTestService(t)
	ev := seedEvent(t, db, "500.00")
	ref := userRef(5)

	view, err := svc.AddItem(ref, &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 1,
		SeatIDs:  []string{"C1"},
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	view, err = svc.UpdateQuantity(ref, view.Items[0].ID, 0)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("items = %d, want 0", len(view.Items))
	}
	if !view.TotalAmount.IsZero() {
		t.Fatalf("total = %s, want 0", view.TotalAmount)
	}
	if len(stub.released) != 1 || stub.released[0] != "res-1" {
		t.Fatalf("released = %v, want the item's hold", stub.released)
	}
}

func TestUpdateQuantityRecomputesTotals(t *testing.T) {
	svc, db, _ := newTestService(t)
	ev := seedEvent(t, db, "250.50")
	ref := userRef(6)

	view, err := svc.AddItem(ref, &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 1,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	view, err = svc.UpdateQuantity(ref, view.Items[0].ID, 4)
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if !view.Items[0].TotalPrice.Equal(mustDecimal(t, "1002.00")) {
		t.Fatalf("item total = %s, want 1002.00", view.Items[0].TotalPrice)
	}
	if !view.TotalAmount.Equal(mustDecimal(t, "1002.00")) {
		t.Fatalf("cart total = %s, want 1002.00", view.TotalAmount)
	}
}

func TestClearCartReleasesAllHoldsAndIsTolerant(t *testing.T) {
	svc, db, stub := newTestService(t)
	ev := seedEvent(t, db, "100.00")
	ref := userRef(7)

	if _, err := svc.AddItem(ref, &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 1,
		SeatIDs:  []string{"D1"},
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if err := svc.ClearCart(ref); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if len(stub.released) != 1 {
		t.Fatalf("released = %v, want 1 hold", stub.released)
	}

	view, err := svc.GetCart(ref)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(view.Items) != 0 || !view.TotalAmount.IsZero() {
		t.Fatalf("cart not emptied: items=%d total=%s", len(view.Items), view.TotalAmount)
	}

	// Clearing a cart that was never created is a no-op.
	if err := svc.ClearCart(userRef(99)); err != nil {
		t.Fatalf("ClearCart on missing cart: %v", err)
	}
}

func TestApplyDiscountFloorsAmount(t *testing.T) {
	svc, db, _ := newTestService(t)
	ev := seedEvent(t, db, "333.33")
	ref := userRef(8)

	code := DiscountCode{Code: "SAVE15", Percentage: mustDecimal(t, "15"), IsActive: true, MaxUsesPerUser: 1}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}

	if _, err := svc.AddItem(ref, &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 1,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	view, err := svc.ApplyDiscount(ref, "SAVE15")
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	// 333.33 * 15% = 49.9995, truncated to 49.99.
	if !view.DiscountAmount.Equal(mustDecimal(t, "49.99")) {
		t.Fatalf("discount = %s, want 49.99", view.DiscountAmount)
	}

	view, err = svc.RemoveDiscount(ref)
	if err != nil {
		t.Fatalf("RemoveDiscount: %v", err)
	}
	if view.DiscountCode != "" || !view.DiscountAmount.IsZero() {
		t.Fatalf("discount not cleared: code=%q amount=%s", view.DiscountCode, view.DiscountAmount)
	}
}

func TestApplyDiscountEnforcesUsageCap(t *testing.T) {
	svc, db, _ := newTestService(t)
	ev := seedEvent(t, db, "100.00")
	ref := userRef(9)

	code := DiscountCode{Code: "ONCE", Percentage: mustDecimal(t, "10"), IsActive: true, MaxUsesPerUser: 1}
	if err := db.Create(&code).Error; err != nil {
		t.Fatalf("seed code: %v", err)
	}
	// A prior cart in which this user already used the code.
	prior := Cart{ID: "prior-cart", UserID: ref.UserID, Status: StatusCompleted, DiscountCode: "ONCE"}
	if err := db.Create(&prior).Error; err != nil {
		t.Fatalf("seed prior cart: %v", err)
	}

	if _, err := svc.AddItem(ref, &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 1,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	_, err := svc.ApplyDiscount(ref, "ONCE")
	if apperror.CodeOf(err) != apperror.CodeValidationFailed {
		t.Fatalf("code = %v, want VALIDATION_FAILED", apperror.CodeOf(err))
	}
}

func TestGuestCartLifecycle(t *testing.T) {
	svc, db, _ := newTestService(t)
	ev := seedEvent(t, db, "200.00")

	guest, err := svc.CreateGuestCart()
	if err != nil {
		t.Fatalf("CreateGuestCart: %v", err)
	}
	ref := Ref{GuestCartID: guest.ID}

	view, err := svc.AddItem(ref, &AddItemRequest{
		ItemType: ItemTypeEvent,
		EventID:  &ev.ID,
		Quantity: 3,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if !view.IsGuest {
		t.Fatal("cart should be flagged as guest")
	}
	if !view.TotalAmount.Equal(mustDecimal(t, "600.00")) {
		t.Fatalf("total = %s, want 600.00", view.TotalAmount)
	}

	// Push the cart past its TTL and confirm it is swept and unreadable.
	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&Cart{}).Where("id = ?", guest.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate cart: %v", err)
	}

	if _, err := svc.GetCart(ref); apperror.CodeOf(err) != apperror.CodeNotFound {
		t.Fatalf("expired guest cart read: code = %v, want NOT_FOUND", apperror.CodeOf(err))
	}

	n, err := svc.ExpireGuestCarts()
	if err != nil {
		t.Fatalf("ExpireGuestCarts: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}
}
