// internal/domain/order/service.go
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/audit"
	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/domain/checkout"
	"github.com/your-org/ticketing-backend/internal/domain/earnings"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"github.com/your-org/ticketing-backend/internal/pkg/dispatch"
	"github.com/your-org/ticketing-backend/internal/pkg/ticketcode"
	"gorm.io/gorm"
)

// ReservationConfirmer flips held seats to sold once their order is fully
// paid, inside the materialization transaction.
type ReservationConfirmer interface {
	ConfirmPurchaseTx(tx *gorm.DB, reservationID, paymentID string, owner reservation.Owner) error
}

// Notifier sends order mail after commit. Failures are logged, never
// propagated.
type Notifier interface {
	SendOrderConfirmation(o *Order, tickets []ticket.Ticket, events []event.Event) error
	SendGuestAccessLink(email, code string) error
}

// Service materializes orders from completed checkouts
type Service struct {
	db         *gorm.DB
	config     *config.Config
	logger     *logrus.Logger
	reserver   ReservationConfirmer
	earnings   *earnings.Service
	audit      *audit.Service
	dispatcher *dispatch.Dispatcher
	notifier   Notifier
	signer     *ticketcode.Signer
	now        func() time.Time
}

// NewService creates a new order service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	logger *logrus.Logger,
	reserver ReservationConfirmer,
	earningsSvc *earnings.Service,
	auditSvc *audit.Service,
	dispatcher *dispatch.Dispatcher,
	notifier Notifier,
) *Service {
	return &Service{
		db:         db,
		config:     cfg,
		logger:     logger,
		reserver:   reserver,
		earnings:   earningsSvc,
		audit:      auditSvc,
		dispatcher: dispatcher,
		notifier:   notifier,
		signer:     ticketcode.NewSigner(cfg.Ticket.SigningKey),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Materialize turns a completed payment on a pending checkout into an order
// with its tickets, bookings, inventory effects and earnings credits. It is
// idempotent on the checkout id: a replay returns the existing order.
func (s *Service) Materialize(co *checkout.Checkout, pay *payment.Payment) (*checkout.MaterializeResult, error) {
	if existing, err := s.byCheckout(co.ID); err == nil {
		return s.result(existing, existing.Tickets, true), nil
	} else if apperror.CodeOf(err) != apperror.CodeNotFound {
		return nil, err
	}
	if pay == nil {
		return nil, apperror.New(apperror.CodeConflict, "checkout has no order to replay")
	}

	amountPaid := pay.Amount
	if amountPaid.GreaterThan(co.TotalAmount) {
		amountPaid = co.TotalAmount
	}
	balanceDue := co.TotalAmount.Sub(pay.Amount)
	if balanceDue.IsNegative() {
		balanceDue = decimal.Zero
	}
	fullyPaid := balanceDue.IsZero()

	status := OrderStatusPartiallyPaid
	if fullyPaid {
		status = OrderStatusConfirmed
	}

	o := &Order{
		ID:               uuid.New().String(),
		OrderNumber:      ticketcode.Number("ORD"),
		CheckoutID:       co.ID,
		PaymentID:        pay.ID,
		UserID:           co.UserID,
		IsGuest:          co.IsGuest,
		GuestEmail:       co.GuestEmail,
		GuestName:        strings.TrimSpace(co.GuestFirstName + " " + co.GuestLastName),
		GuestPhone:       co.GuestPhone,
		ConfirmationCode: co.ConfirmationCode,
		Subtotal:         co.Subtotal,
		DiscountAmount:   co.DiscountAmount,
		TotalAmount:      co.TotalAmount,
		AmountPaid:       amountPaid,
		BalanceDue:       balanceDue,
		Status:           status,
		BillingInfo:      co.BillingInfo,
	}
	o.SetMeta(OrderMetadata{IsFullyPaid: fullyPaid})

	var issued []ticket.Ticket
	var eventList []event.Event

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return apperror.Internal(fmt.Errorf("create order: %w", err))
		}

		var items []cart.CartItem
		err := tx.Where("cart_id = ? AND (status IS NULL OR status <> ?)", co.CartID, cart.ItemStatusCheckedOut).
			Find(&items).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("load cart items: %w", err))
		}
		if len(items) == 0 {
			return apperror.New(apperror.CodeConflict, "cart has no active items")
		}

		events, err := s.eventsFor(tx, items)
		if err != nil {
			return err
		}

		revenue := map[uint]decimal.Decimal{}
		var reservationIDs []string

		for i := range items {
			it := &items[i]
			if it.ReservationID != "" {
				reservationIDs = append(reservationIDs, it.ReservationID)
			}

			switch it.ItemType {
			case cart.ItemTypeEvent:
				ev, ok := events[derefEventID(it)]
				if !ok {
					return apperror.New(apperror.CodeNotFound, "event no longer exists").
						WithDetail("item_id", it.ID)
				}
				tickets, err := s.issueEventTickets(tx, o, it, ev, fullyPaid)
				if err != nil {
					// Event failures roll everything back; partially
					// issued admissions would drift inventory.
					return err
				}
				issued = append(issued, tickets...)
				revenue[ev.ID] = revenue[ev.ID].Add(it.TotalPrice)
			default:
				tkt, err := s.issueBookingItem(tx, o, it)
				if err != nil {
					s.logger.WithError(err).WithFields(logrus.Fields{
						"order_id":  o.ID,
						"item_id":   it.ID,
						"item_type": string(it.ItemType),
					}).Warn("Skipping failed non-event item")
					continue
				}
				issued = append(issued, *tkt)
			}
		}

		for evID, gross := range revenue {
			ev := events[evID]
			if ev.OrganizerID == nil || gross.LessThanOrEqual(decimal.Zero) {
				continue
			}
			if err := s.earnings.AddEarnings(tx, *ev.OrganizerID, gross, "order:"+o.ID); err != nil {
				return err
			}
		}

		owner := reservation.Owner{UserID: co.UserID, GuestCartID: guestCartID(co)}
		if fullyPaid {
			for _, resID := range reservationIDs {
				if err := s.reserver.ConfirmPurchaseTx(tx, resID, pay.ID, owner); err != nil {
					return err
				}
			}
		}
		o.SetMeta(OrderMetadata{IsFullyPaid: fullyPaid, ReservationIDs: reservationIDs})
		if err := tx.Model(&Order{}).Where("id = ?", o.ID).Update("metadata", o.Metadata).Error; err != nil {
			return apperror.Internal(fmt.Errorf("store order metadata: %w", err))
		}

		now := s.now()
		itemUpdates := map[string]interface{}{
			"status":         cart.ItemStatusCheckedOut,
			"order_id":       o.ID,
			"checked_out_at": now,
		}
		err = tx.Model(&cart.CartItem{}).
			Where("cart_id = ? AND (status IS NULL OR status <> ?)", co.CartID, cart.ItemStatusCheckedOut).
			Updates(itemUpdates).Error
		if err != nil {
			return apperror.Internal(fmt.Errorf("check out cart items: %w", err))
		}
		if err := tx.Model(&cart.Cart{}).Where("id = ?", co.CartID).
			Update("status", cart.StatusCompleted).Error; err != nil {
			return apperror.Internal(fmt.Errorf("complete cart: %w", err))
		}

		checkoutUpdates := map[string]interface{}{
			"status":       checkout.StatusCompleted,
			"order_id":     o.ID,
			"completed_at": now,
		}
		result := tx.Model(&checkout.Checkout{}).
			Where("id = ? AND status = ?", co.ID, checkout.StatusPending).
			Updates(checkoutUpdates)
		if result.Error != nil {
			return apperror.Internal(fmt.Errorf("complete checkout: %w", result.Error))
		}
		if result.RowsAffected == 0 {
			return apperror.New(apperror.CodeConflict, "checkout was completed concurrently")
		}

		for id := range events {
			ev := events[id]
			eventList = append(eventList, *ev)
		}
		return nil
	})
	if err != nil {
		// A concurrent completion wins the unique checkout index; hand
		// back its order instead of the error.
		if existing, lookupErr := s.byCheckout(co.ID); lookupErr == nil {
			return s.result(existing, existing.Tickets, true), nil
		}
		return nil, err
	}

	s.afterCommit(o, issued, eventList)
	return s.result(o, issued, false), nil
}

// GetOrder loads an order with its tickets, checking ownership
func (s *Service) GetOrder(userID uint, orderID string) (*Order, error) {
	var o Order
	err := s.db.Preload("Tickets").Where("id = ? AND user_id = ?", orderID, userID).First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "order not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load order: %w", err))
	}
	return &o, nil
}

// ListUserOrders returns a user's orders, newest first
func (s *Service) ListUserOrders(userID uint, page, limit int) ([]Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := s.db.Model(&Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, apperror.Internal(fmt.Errorf("count orders: %w", err))
	}

	var orders []Order
	err := s.db.Preload("Tickets").Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, apperror.Internal(fmt.Errorf("list orders: %w", err))
	}
	return orders, total, nil
}

func (s *Service) byCheckout(checkoutID string) (*Order, error) {
	var o Order
	err := s.db.Preload("Tickets").Where("checkout_id = ?", checkoutID).First(&o).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "order not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load order: %w", err))
	}
	return &o, nil
}

func (s *Service) result(o *Order, tickets []ticket.Ticket, replayed bool) *checkout.MaterializeResult {
	meta := o.Meta()
	ticketCount := 0
	bookingCount := 0
	for i := range tickets {
		if tickets[i].ItemType == string(cart.ItemTypeEvent) {
			ticketCount++
		} else {
			bookingCount++
		}
	}
	return &checkout.MaterializeResult{
		OrderID:          o.ID,
		OrderStatus:      string(o.Status),
		TotalAmount:      o.TotalAmount,
		AmountPaid:       o.AmountPaid,
		BalanceDue:       o.BalanceDue,
		IsFullyPaid:      meta.IsFullyPaid,
		TicketsCreated:   ticketCount,
		BookingsCreated:  bookingCount,
		ConfirmationCode: o.ConfirmationCode,
		AlreadyExisted:   replayed,
	}
}

func (s *Service) eventsFor(tx *gorm.DB, items []cart.CartItem) (map[uint]*event.Event, error) {
	var ids []uint
	for _, it := range items {
		if it.ItemType == cart.ItemTypeEvent && it.EventID != nil {
			ids = append(ids, *it.EventID)
		}
	}
	events := map[uint]*event.Event{}
	if len(ids) == 0 {
		return events, nil
	}

	var rows []event.Event
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("load events: %w", err))
	}
	for i := range rows {
		events[rows[i].ID] = &rows[i]
	}
	return events, nil
}

func (s *Service) issueEventTickets(tx *gorm.DB, o *Order, it *cart.CartItem, ev *event.Event, fullyPaid bool) ([]ticket.Ticket, error) {
	seats := it.Seats()
	validUntil := ev.EndDate.Add(24 * time.Hour)
	unit := it.UnitPrice

	ticketStatus := ticket.StatusReserved
	if fullyPaid {
		ticketStatus = ticket.StatusConfirmed
	}

	tickets := make([]ticket.Ticket, 0, it.Quantity)
	for i := 0; i < it.Quantity; i++ {
		number := ticketcode.Number(ticketcode.PrefixEvent)
		qr, err := s.signer.Sign(ticketcode.Payload{
			TicketNumber: number,
			EventID:      ev.ID,
			Owner:        s.ownerLabel(o),
		})
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("sign ticket payload: %w", err))
		}

		t := ticket.Ticket{
			ID:           uuid.New().String(),
			OrderID:      o.ID,
			UserID:       o.UserID,
			ItemType:     string(cart.ItemTypeEvent),
			EventID:      &ev.ID,
			TicketNumber: number,
			TicketType:   it.TicketType,
			Price:        unit,
			QRCode:       qr,
			Status:       ticketStatus,
			ValidUntil:   &validUntil,
		}
		if i < len(seats) {
			t.SeatNumber = seats[i]
		}
		if err := tx.Create(&t).Error; err != nil {
			return nil, apperror.Internal(fmt.Errorf("create ticket: %w", err))
		}
		tickets = append(tickets, t)
	}

	if it.TicketType != "" {
		var tierCount int64
		err := tx.Model(&event.PricingTier{}).
			Where("event_id = ? AND name = ?", ev.ID, it.TicketType).
			Count(&tierCount).Error
		if err != nil {
			return nil, apperror.Internal(fmt.Errorf("check pricing tier: %w", err))
		}
		if tierCount > 0 {
			result := tx.Model(&event.PricingTier{}).
				Where("event_id = ? AND name = ? AND available_tickets >= ?", ev.ID, it.TicketType, it.Quantity).
				Update("available_tickets", gorm.Expr("available_tickets - ?", it.Quantity))
			if result.Error != nil {
				return nil, apperror.Internal(fmt.Errorf("decrement pricing tier: %w", result.Error))
			}
			if result.RowsAffected == 0 {
				return nil, apperror.New(apperror.CodeInventoryExhausted, "ticket tier is sold out").
					WithDetail("event", ev.Title).
					WithDetail("tier", it.TicketType)
			}
		}
	}

	err := tx.Model(&event.Event{}).Where("id = ?", ev.ID).
		Update("sold_tickets", gorm.Expr("sold_tickets + ?", it.Quantity)).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("increment sold tickets: %w", err))
	}
	return tickets, nil
}

// issueBookingItem writes the booking row and universal display ticket for a
// non-event item inside a savepoint, so a failure skips just this item.
func (s *Service) issueBookingItem(tx *gorm.DB, o *Order, it *cart.CartItem) (*ticket.Ticket, error) {
	var issued *ticket.Ticket
	err := tx.Transaction(func(sp *gorm.DB) error {
		var bookingID string
		var prefix string

		switch it.ItemType {
		case cart.ItemTypeBus:
			prefix = ticketcode.PrefixBus
			booking := ticket.BusBooking{
				ID:               uuid.New().String(),
				OrderID:          o.ID,
				BusRefID:         it.ItemRefID,
				SeatsCount:       it.Quantity,
				PassengerDetails: it.Details,
				Amount:           it.TotalPrice,
			}
			if err := sp.Create(&booking).Error; err != nil {
				return fmt.Errorf("create bus booking: %w", err)
			}
			result := sp.Model(&ticket.Bus{}).
				Where("external_ref = ? AND available_seats >= ?", it.ItemRefID, it.Quantity).
				Update("available_seats", gorm.Expr("available_seats - ?", it.Quantity))
			if result.Error != nil {
				return fmt.Errorf("decrement bus seats: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("bus %s has no %d seats left", it.ItemRefID, it.Quantity)
			}
			bookingID = booking.ID

		case cart.ItemTypeFlight:
			prefix = ticketcode.PrefixFlight
			meta := it.Metadata()
			booking := ticket.FlightBooking{
				ID:               uuid.New().String(),
				OrderID:          o.ID,
				OfferID:          it.ItemRefID,
				Airline:          stringField(meta, "airline"),
				PassengerDetails: it.Details,
				Amount:           it.TotalPrice,
			}
			if err := sp.Create(&booking).Error; err != nil {
				return fmt.Errorf("create flight booking: %w", err)
			}
			bookingID = booking.ID

		case cart.ItemTypeHotel:
			prefix = ticketcode.PrefixHotel
			meta := it.Metadata()
			booking := ticket.HotelBooking{
				ID:           uuid.New().String(),
				OrderID:      o.ID,
				HotelCode:    it.ItemRefID,
				CheckIn:      timeField(meta, "check_in"),
				CheckOut:     timeField(meta, "check_out"),
				GuestDetails: it.Details,
				Amount:       it.TotalPrice,
			}
			if err := sp.Create(&booking).Error; err != nil {
				return fmt.Errorf("create hotel booking: %w", err)
			}
			bookingID = booking.ID

		default:
			return fmt.Errorf("unknown item type %q", it.ItemType)
		}

		t := ticket.Ticket{
			ID:           uuid.New().String(),
			OrderID:      o.ID,
			UserID:       o.UserID,
			ItemType:     string(it.ItemType),
			BookingID:    bookingID,
			TicketNumber: ticketcode.Number(prefix),
			Price:        it.TotalPrice,
			Status:       ticket.StatusConfirmed,
		}
		if err := sp.Create(&t).Error; err != nil {
			return fmt.Errorf("create display ticket: %w", err)
		}
		issued = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// afterCommit fires the non-blocking downstream work. None of it can affect
// the committed order.
func (s *Service) afterCommit(o *Order, tickets []ticket.Ticket, events []event.Event) {
	orderCopy := *o
	ticketsCopy := append([]ticket.Ticket(nil), tickets...)
	eventsCopy := append([]event.Event(nil), events...)

	s.dispatcher.Submit("order-confirmation-email", func() {
		if err := s.notifier.SendOrderConfirmation(&orderCopy, ticketsCopy, eventsCopy); err != nil {
			s.logger.WithError(err).WithField("order_id", orderCopy.ID).
				Warn("Failed to send order confirmation")
		}
	})

	s.dispatcher.Submit("order-audit", func() {
		s.audit.Record(audit.ActionCheckoutCompleted, o.UserID, "checkout", o.CheckoutID, map[string]interface{}{
			"order_id": o.ID,
			"amount":   o.AmountPaid.String(),
		})
		s.audit.Record(audit.ActionOrderCreated, o.UserID, "order", o.ID, map[string]interface{}{
			"order_number": o.OrderNumber,
			"status":       string(o.Status),
		})
		for _, t := range ticketsCopy {
			s.audit.Record(audit.ActionTicketIssued, o.UserID, "ticket", t.ID, map[string]interface{}{
				"ticket_number": t.TicketNumber,
				"item_type":     t.ItemType,
			})
		}
	})
}

func (s *Service) ownerLabel(o *Order) string {
	if o.IsGuest {
		return o.GuestEmail
	}
	if o.UserID != nil {
		return fmt.Sprintf("user:%d", *o.UserID)
	}
	return ""
}

func guestCartID(co *checkout.Checkout) string {
	if co.IsGuest {
		return co.CartID
	}
	return ""
}

func derefEventID(it *cart.CartItem) uint {
	if it.EventID == nil {
		return 0
	}
	return *it.EventID
}

func stringField(meta map[string]interface{}, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func timeField(meta map[string]interface{}, key string) *time.Time {
	v, ok := meta[key].(string)
	if !ok {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, v)
	if err != nil {
		// Dates also arrive as plain YYYY-MM-DD from booking providers.
		parsed, err = time.Parse("2006-01-02", v)
		if err != nil {
			return nil
		}
	}
	return &parsed
}
