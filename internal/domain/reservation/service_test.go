package reservation

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reservation_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Seat{}, &SeatReservation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{}
	cfg.Checkout.ReservationTTL = 15 * time.Minute
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewService(db, cfg, log), db
}

func seedSeats(t *testing.T, db *gorm.DB, eventID uint, labels ...string) {
	t.Helper()
	for _, l := range labels {
		seat := Seat{EventID: eventID, Label: l, Section: "A", Status: SeatStatusAvailable}
		if err := db.Create(&seat).Error; err != nil {
			t.Fatalf("seed seat %s: %v", l, err)
		}
	}
}

func userOwner(id uint) Owner {
	return Owner{UserID: &id}
}

func TestReserveSeatsHoldsAll(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "A1", "A2", "A3")

	res, err := svc.ReserveSeats(1, []string{"A1", "A2"}, userOwner(7))
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}
	if res.State != StateHeld {
		t.Fatalf("state = %s, want held", res.State)
	}
	if got := res.Labels(); len(got) != 2 {
		t.Fatalf("labels = %v, want 2", got)
	}

	var held int64
	db.Model(&Seat{}).Where("status = ? AND reservation_id = ?", SeatStatusHeld, res.ID).Count(&held)
	if held != 2 {
		t.Fatalf("held seats = %d, want 2", held)
	}
}

func TestReserveSeatsAllOrNothing(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "A1", "A2")

	if _, err := svc.ReserveSeats(1, []string{"A2"}, userOwner(1)); err != nil {
		t.Fatalf("first hold: %v", err)
	}

	_, err := svc.ReserveSeats(1, []string{"A1", "A2"}, userOwner(2))
	if apperror.CodeOf(err) != apperror.CodeSeatsUnavailable {
		t.Fatalf("code = %v, want SEATS_UNAVAILABLE", apperror.CodeOf(err))
	}

	// A1 must not be left half-held.
	var seat Seat
	if err := db.Where("event_id = ? AND label = ?", 1, "A1").First(&seat).Error; err != nil {
		t.Fatalf("load A1: %v", err)
	}
	if seat.Status != SeatStatusAvailable {
		t.Fatalf("A1 status = %s, want available after rollback", seat.Status)
	}
}

func TestReleaseReservationFreesSeatsAndIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "B1", "B2")
	owner := userOwner(5)

	res, err := svc.ReserveSeats(1, []string{"B1", "B2"}, owner)
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}

	if err := svc.ReleaseReservation(res.ID, owner); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := svc.ReleaseReservation(res.ID, owner); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}

	var free int64
	db.Model(&Seat{}).Where("event_id = ? AND status = ?", 1, SeatStatusAvailable).Count(&free)
	if free != 2 {
		t.Fatalf("available seats = %d, want 2", free)
	}

	got, err := svc.GetReservation(res.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.State != StateReleased {
		t.Fatalf("state = %s, want released", got.State)
	}
}

func TestReleaseReservationRejectsForeignOwner(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "C1")

	res, err := svc.ReserveSeats(1, []string{"C1"}, userOwner(1))
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}

	err = svc.ReleaseReservation(res.ID, userOwner(2))
	if apperror.CodeOf(err) != apperror.CodeForbidden {
		t.Fatalf("code = %v, want FORBIDDEN", apperror.CodeOf(err))
	}
}

func TestConfirmPurchaseSellsSeatsAndIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "D1", "D2")
	owner := Owner{GuestCartID: "guest-cart-1"}

	res, err := svc.ReserveSeats(1, []string{"D1", "D2"}, owner)
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}

	if err := svc.ConfirmPurchase(res.ID, "pay_123", owner); err != nil {
		t.Fatalf("ConfirmPurchase: %v", err)
	}
	if err := svc.ConfirmPurchase(res.ID, "pay_123", owner); err != nil {
		t.Fatalf("replayed confirm should be a no-op: %v", err)
	}

	var sold int64
	db.Model(&Seat{}).Where("reservation_id = ? AND status = ?", res.ID, SeatStatusSold).Count(&sold)
	if sold != 2 {
		t.Fatalf("sold seats = %d, want 2", sold)
	}

	got, err := svc.GetReservation(res.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.State != StateConfirmed {
		t.Fatalf("state = %s, want confirmed", got.State)
	}
	if got.PaymentID == nil || *got.PaymentID != "pay_123" {
		t.Fatalf("payment_id = %v, want pay_123", got.PaymentID)
	}
}

func TestConfirmPurchaseAfterReleaseConflicts(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "E1")
	owner := userOwner(9)

	res, err := svc.ReserveSeats(1, []string{"E1"}, owner)
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}
	if err := svc.ReleaseReservation(res.ID, owner); err != nil {
		t.Fatalf("release: %v", err)
	}

	err = svc.ConfirmPurchase(res.ID, "pay_999", owner)
	if apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("code = %v, want CONFLICT", apperror.CodeOf(err))
	}
}

func TestSweepExpiredFreesOverdueHolds(t *testing.T) {
	svc, db := newTestService(t)
	seedSeats(t, db, 1, "F1", "F2", "F3")

	res, err := svc.ReserveSeats(1, []string{"F1", "F2"}, userOwner(3))
	if err != nil {
		t.Fatalf("ReserveSeats: %v", err)
	}

	// Jump past the hold's expiry.
	svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	n, err := svc.SweepExpired()
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	got, err := svc.GetReservation(res.ID)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if got.State != StateExpired {
		t.Fatalf("state = %s, want expired", got.State)
	}

	var free int64
	db.Model(&Seat{}).Where("event_id = ? AND status = ?", 1, SeatStatusAvailable).Count(&free)
	if free != 3 {
		t.Fatalf("available seats = %d, want 3", free)
	}
}
