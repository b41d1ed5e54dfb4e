// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/audit"
	"github.com/your-org/ticketing-backend/internal/domain/cart"
	"github.com/your-org/ticketing-backend/internal/domain/checkout"
	"github.com/your-org/ticketing-backend/internal/domain/earnings"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/order"
	"github.com/your-org/ticketing-backend/internal/domain/payment"
	"github.com/your-org/ticketing-backend/internal/domain/reservation"
	"github.com/your-org/ticketing-backend/internal/domain/user"
	"github.com/your-org/ticketing-backend/internal/infrastructure/database/postgres"
	"github.com/your-org/ticketing-backend/internal/infrastructure/database/redis"
	"github.com/your-org/ticketing-backend/internal/interfaces/http"
	"github.com/your-org/ticketing-backend/internal/interfaces/http/handlers"
	"github.com/your-org/ticketing-backend/internal/pkg/auth"
	"github.com/your-org/ticketing-backend/internal/pkg/dispatch"
	"github.com/your-org/ticketing-backend/internal/pkg/email"
	"github.com/your-org/ticketing-backend/internal/pkg/pdf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	logger := newLogger(cfg)

	db, err := postgres.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient, err := redis.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	migration := postgres.NewMigration(db.GetDB())
	if err := migration.RunAutoMigrations(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	if err := migration.CreateIndexes(); err != nil {
		log.Printf("Warning: Index creation failed: %v", err)
	}
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			log.Printf("Warning: Data seeding failed: %v", err)
		}
	}

	// Domain wiring, leaves first: reservations feed the cart, the cart
	// feeds checkout, checkout completes through the order materializer.
	gormDB := db.GetDB()

	dispatcher := dispatch.New(256, 4, logger)
	defer dispatcher.Close()

	reservations := reservation.NewService(gormDB, cfg, logger)
	carts := cart.NewService(gormDB, cfg, logger, reservations)
	payments := payment.NewService(gormDB, cfg)
	earningsSvc := earnings.NewService(gormDB, cfg)
	auditSvc := audit.NewService(gormDB, logger)
	events := event.NewService(gormDB, cfg)
	users := user.NewService(gormDB, cfg)

	pdfService := pdf.NewService(cfg)
	notifier := email.NewEmailService(cfg, gormDB, logger, pdfService)

	orders := order.NewService(gormDB, cfg, logger, reservations, earningsSvc, auditSvc, dispatcher, notifier)
	checkouts := checkout.NewService(gormDB, cfg, logger, carts, payments, reservations, orders)
	guests := order.NewGuestService(gormDB, cfg, logger, redisClient.GetClient(), notifier, auth.NewPasswordManager(cfg))

	stopSweepers := startSweepers(cfg, logger, checkouts, carts, reservations)
	defer stopSweepers()

	h := &handlers.Handlers{
		Auth:     handlers.NewAuthHandler(users),
		Event:    handlers.NewEventHandler(events),
		Cart:     handlers.NewCartHandler(carts),
		Checkout: handlers.NewCheckoutHandler(checkouts, payments),
		Order:    handlers.NewOrderHandler(orders),
		Guest:    handlers.NewGuestHandler(carts, checkouts, payments, guests),
	}

	server := http.NewServer(cfg, gormDB, redisClient.GetClient(), h)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("👋 Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	log.Println("✅ Server shutdown completed")
}

// newLogger builds the shared application logger
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// startSweepers runs the expiry sweeps on the configured interval until the
// returned stop function is called
func startSweepers(
	cfg *config.Config,
	logger *logrus.Logger,
	checkouts *checkout.Service,
	carts *cart.Service,
	reservations *reservation.Service,
) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(cfg.Checkout.SweepInterval)

	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				if n, err := checkouts.ExpireStale(); err != nil {
					logger.WithError(err).Warn("Checkout expiry sweep failed")
				} else if n > 0 {
					logger.WithField("count", n).Info("Expired stale checkouts")
				}

				if n, err := carts.ExpireGuestCarts(); err != nil {
					logger.WithError(err).Warn("Guest cart expiry sweep failed")
				} else if n > 0 {
					logger.WithField("count", n).Info("Expired guest carts")
				}

				if n, err := reservations.SweepExpired(); err != nil {
					logger.WithError(err).Warn("Reservation expiry sweep failed")
				} else if n > 0 {
					logger.WithField("count", n).Info("Released expired seat holds")
				}
			}
		}
	}()

	return func() { close(done) }
}
