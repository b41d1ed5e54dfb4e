// internal/domain/earnings/service.go
package earnings

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/user"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service handles organizer earnings business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new earnings service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{db: db, config: cfg}
}

// AddEarnings credits an organizer with a gross amount inside the caller's
// transaction. Commission is withheld at the organizer's configured rate;
// the net lands in their pending balance.
func (s *Service) AddEarnings(tx *gorm.DB, organizerID uint, gross decimal.Decimal, source string) error {
	if gross.LessThanOrEqual(decimal.Zero) {
		return apperror.New(apperror.CodeValidationFailed, "earnings amount must be positive")
	}

	var organizer user.User
	err := lockForUpdate(tx).Where("id = ?", organizerID).First(&organizer).Error
	if err == gorm.ErrRecordNotFound {
		return apperror.New(apperror.CodeNotFound, "organizer not found")
	} else if err != nil {
		return apperror.Internal(fmt.Errorf("load organizer: %w", err))
	}

	commission := gross.Mul(organizer.CommissionPercentage).Div(decimal.NewFromInt(100)).Round(2)
	net := gross.Sub(commission)

	updates := map[string]interface{}{
		"total_earnings":  gorm.Expr("total_earnings + ?", gross),
		"pending_balance": gorm.Expr("pending_balance + ?", net),
	}
	if err := tx.Model(&user.User{}).Where("id = ?", organizerID).Updates(updates).Error; err != nil {
		return apperror.Internal(fmt.Errorf("credit organizer: %w", err))
	}

	entry := EarningsLog{
		OrganizerID: organizerID,
		Amount:      gross,
		Commission:  commission,
		Net:         net,
		Source:      source,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return apperror.Internal(fmt.Errorf("write earnings log: %w", err))
	}
	return nil
}

// GetBalance returns an organizer's earnings totals
func (s *Service) GetBalance(organizerID uint) (*user.User, error) {
	var organizer user.User
	err := s.db.Select("id", "total_earnings", "pending_balance", "total_payouts", "commission_percentage").
		Where("id = ?", organizerID).First(&organizer).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "organizer not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load organizer: %w", err))
	}
	return &organizer, nil
}

// ListLogs returns an organizer's earnings history, newest first
func (s *Service) ListLogs(organizerID uint, limit int) ([]EarningsLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var logs []EarningsLog
	err := s.db.Where("organizer_id = ?", organizerID).
		Order("created_at DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list earnings logs: %w", err))
	}
	return logs, nil
}

// lockForUpdate applies a row lock where the dialect supports it. SQLite,
// used by the test harness, serializes writes on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
