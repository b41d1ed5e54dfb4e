// internal/domain/payment/service.go
package payment

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/gorm"
)

// Service handles payment record business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new payment service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{db: db, config: cfg}
}

// RecordPaymentRequest captures a gateway callback or manual entry
type RecordPaymentRequest struct {
	CheckoutID string          `json:"checkout_id"`
	Method     string          `json:"method" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Reference  string          `json:"reference"`
}

// RecordCompleted writes a completed payment row. Gateways in this codebase
// settle synchronously, so callbacks land here already final.
func (s *Service) RecordCompleted(req *RecordPaymentRequest) (*Payment, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.CodeValidationFailed, "payment amount must be positive")
	}
	p := &Payment{
		ID:         uuid.New().String(),
		CheckoutID: req.CheckoutID,
		Method:     req.Method,
		Amount:     req.Amount,
		Reference:  req.Reference,
		Status:     StatusCompleted,
	}
	if err := s.db.Create(p).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("record payment: %w", err))
	}
	return p, nil
}

// GetCompleted loads a payment and requires it to be in status completed.
func (s *Service) GetCompleted(paymentID string) (*Payment, error) {
	var p Payment
	err := s.db.Where("id = ?", paymentID).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "payment not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load payment: %w", err))
	}
	if p.Status != StatusCompleted {
		return nil, apperror.New(apperror.CodePaymentIncomplete, "payment is not completed").
			WithDetail("status", string(p.Status))
	}
	return &p, nil
}
