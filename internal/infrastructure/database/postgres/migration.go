// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/your-org/ticketing-backend/internal/domain/audit"
	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/domain/checkout"
	"github.com/your-org/ticketing-backend/internal/domain/earnings"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/order"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
	"github.com/your-org/ticketing-backend/internal/domain/user"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		// User domain
		&user.User{},

		// Event domain
		&event.Venue{},
		&event.Event{},
		&event.PricingTier{},

		// Seating domain
		&reservation.Seat{},
		&reservation.SeatReservation{},

		// Cart domain
		&cart.Cart{},
		&cart.CartItem{},
		&cart.DiscountCode{},

		// Payment and checkout
		&payment.Payment{},
		&checkout.Checkout{},

		// Order domain
		&order.Order{},
		&ticket.Ticket{},
		&ticket.Bus{},
		&ticket.BusBooking{},
		&ticket.FlightBooking{},
		&ticket.HotelBooking{},

		// Ledgers
		&earnings.EarningsLog{},
		&audit.AuditLog{},
	}

	for _, model := range models {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// One active cart per registered user. Guest carts are keyed by id
		// and excluded from the constraint.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_carts_one_active_per_user ON shopping_carts(user_id) WHERE status = 'active' AND user_id IS NOT NULL",

		// Cart lookups
		"CREATE INDEX IF NOT EXISTS idx_cart_items_cart_status ON shopping_cart_items(cart_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_carts_guest_expiry ON shopping_carts(is_guest, status, expires_at)",

		// Seat availability scans
		"CREATE INDEX IF NOT EXISTS idx_seats_event_status ON seats(event_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_reservations_state_expiry ON seat_reservations(state, expires_at)",

		// Checkout sweeping and ownership lookups
		"CREATE INDEX IF NOT EXISTS idx_checkouts_status_expiry ON checkouts(status, expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_checkouts_cart ON checkouts(cart_id)",

		// Guest order retrieval matches on email plus confirmation code
		"CREATE INDEX IF NOT EXISTS idx_orders_guest_lookup ON orders(guest_email, confirmation_code)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",

		// Ticket lookups by order and by scannable number
		"CREATE INDEX IF NOT EXISTS idx_tickets_order ON tickets(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_tickets_user_status ON tickets(user_id, status)",

		// Earnings statements per organizer
		"CREATE INDEX IF NOT EXISTS idx_earnings_logs_organizer_created ON earnings_logs(organizer_id, created_at DESC)",

		// Audit trail queries
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs(entity_type, entity_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_logs_created ON audit_logs(created_at DESC)",
	}

	for _, idx := range indexes {
		if err := m.db.Exec(idx).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Println("✅ Database indexes created successfully")
	return nil
}

// SeedInitialData inserts development fixtures. Safe to run repeatedly.
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	organizer, err := m.seedOrganizer()
	if err != nil {
		return err
	}
	if err := m.seedEvents(organizer); err != nil {
		return err
	}
	if err := m.seedDiscountCodes(); err != nil {
		return err
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

// seedOrganizer creates a demo organizer with a 10% platform commission
func (m *Migration) seedOrganizer() (*user.User, error) {
	var existing user.User
	if err := m.db.Where("email = ?", "organizer@example.com").First(&existing).Error; err == nil {
		return &existing, nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("organizer123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	organizer := user.User{
		Email:                "organizer@example.com",
		Password:             string(hashedPassword),
		FirstName:            "Demo",
		LastName:             "Organizer",
		Role:                 user.RoleOrganizer,
		IsActive:             true,
		EmailVerified:        true,
		CommissionPercentage: decimal.NewFromInt(10),
	}
	if err := m.db.Create(&organizer).Error; err != nil {
		return nil, fmt.Errorf("failed to create organizer: %w", err)
	}

	log.Println("✅ Created organizer: organizer@example.com (password: organizer123)")
	return &organizer, nil
}

// seedEvents creates a venue with two published events, pricing tiers and a
// small seating plan
func (m *Migration) seedEvents(organizer *user.User) error {
	var count int64
	m.db.Model(&event.Event{}).Count(&count)
	if count > 0 {
		return nil
	}

	venue := event.Venue{
		Name:     "Uhuru Gardens Amphitheatre",
		Address:  "Langata Road",
		City:     "Nairobi",
		Country:  "KE",
		Capacity: 5000,
	}
	if err := m.db.Create(&venue).Error; err != nil {
		return fmt.Errorf("failed to create venue: %w", err)
	}

	depositDue := time.Now().AddDate(0, 1, 0)
	events := []event.Event{
		{
			OrganizerID: &organizer.ID,
			VenueID:     &venue.ID,
			Title:       "Nairobi Jazz Festival",
			Description: "An evening of live jazz under the stars.",
			BasePrice:   decimal.NewFromInt(2500),
			Capacity:    500,
			StartDate:   time.Now().AddDate(0, 2, 0),
			EndDate:     time.Now().AddDate(0, 2, 0).Add(6 * time.Hour),
			Status:      event.EventStatusPublished,
			PricingTiers: []event.PricingTier{
				{Name: "Regular", Price: decimal.NewFromInt(2500), TotalTickets: 400, AvailableTickets: 400},
				{Name: "VIP", Price: decimal.NewFromInt(7500), TotalTickets: 100, AvailableTickets: 100},
			},
		},
		{
			OrganizerID:      &organizer.ID,
			VenueID:          &venue.ID,
			Title:            "Tech Summit Nairobi",
			Description:      "Two days of talks and workshops.",
			BasePrice:        decimal.NewFromInt(10000),
			Capacity:         300,
			StartDate:        time.Now().AddDate(0, 3, 0),
			EndDate:          time.Now().AddDate(0, 3, 2),
			Status:           event.EventStatusPublished,
			AllowDeposit:     true,
			DepositType:      event.DepositTypePercentage,
			DepositValue:     decimal.NewFromInt(30),
			MinDepositAmount: decimal.NewFromInt(1500),
			DepositDueBy:     &depositDue,
			PricingTiers: []event.PricingTier{
				{Name: "Standard", Price: decimal.NewFromInt(10000), TotalTickets: 250, AvailableTickets: 250},
				{Name: "Workshop Pass", Price: decimal.NewFromInt(18000), TotalTickets: 50, AvailableTickets: 50},
			},
		},
	}

	for i := range events {
		if err := m.db.Create(&events[i]).Error; err != nil {
			return fmt.Errorf("failed to create event %q: %w", events[i].Title, err)
		}
		log.Printf("✅ Created event: %s", events[i].Title)
	}

	// Seating plan for the jazz festival front section
	var seats []reservation.Seat
	for row := 'A'; row <= 'C'; row++ {
		for n := 1; n <= 10; n++ {
			seats = append(seats, reservation.Seat{
				EventID: events[0].ID,
				Label:   fmt.Sprintf("%c%d", row, n),
				Section: "Front",
				Status:  reservation.SeatStatusAvailable,
			})
		}
	}
	if err := m.db.Create(&seats).Error; err != nil {
		return fmt.Errorf("failed to create seats: %w", err)
	}
	log.Printf("✅ Created %d seats for %s", len(seats), events[0].Title)

	return nil
}

// seedDiscountCodes creates a demo discount code
func (m *Migration) seedDiscountCodes() error {
	var existing cart.DiscountCode
	if err := m.db.Where("code = ?", "EARLYBIRD").First(&existing).Error; err == nil {
		return nil
	}

	expires := time.Now().AddDate(0, 6, 0)
	code := cart.DiscountCode{
		Code:           "EARLYBIRD",
		Percentage:     decimal.NewFromInt(15),
		IsActive:       true,
		MaxUsesPerUser: 1,
		ExpiresAt:      &expires,
	}
	if err := m.db.Create(&code).Error; err != nil {
		return fmt.Errorf("failed to create discount code: %w", err)
	}

	log.Println("✅ Created discount code: EARLYBIRD (15%)")
	return nil
}
