// internal/domain/event/service.go
package event

import (
	"fmt"
	"time"

	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"gorm.io/gorm"
)

// Service handles event reads for the checkout pipeline and public browse
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new event service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// ListRequest represents event list query parameters
type ListRequest struct {
	Page     int    `form:"page,default=1"`
	Limit    int    `form:"limit,default=20"`
	City     string `form:"city"`
	Upcoming bool   `form:"upcoming,default=true"`
}

// ListResponse represents a paginated event list
type ListResponse struct {
	Events []Event `json:"events"`
	Total  int64   `json:"total"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
}

// GetEvent retrieves a published, non-deleted event with venue and tiers
func (s *Service) GetEvent(id uint) (*Event, error) {
	var ev Event
	err := s.db.Preload("Venue").Preload("PricingTiers").
		Where("id = ? AND status = ?", id, EventStatusPublished).
		First(&ev).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "event not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load event: %w", err))
	}
	return &ev, nil
}

// ListEvents retrieves published events, optionally filtered by city
func (s *Service) ListEvents(req *ListRequest) (*ListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	query := s.db.Model(&Event{}).
		Preload("Venue").Preload("PricingTiers").
		Where("status = ?", EventStatusPublished)

	if req.Upcoming {
		query = query.Where("end_date > ?", time.Now().UTC())
	}
	if req.City != "" {
		query = query.Joins("JOIN venues ON venues.id = events.venue_id").
			Where("venues.city = ?", req.City)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("count events: %w", err))
	}

	var events []Event
	offset := (req.Page - 1) * req.Limit
	if err := query.Order("start_date asc").Offset(offset).Limit(req.Limit).Find(&events).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("list events: %w", err))
	}

	return &ListResponse{
		Events: events,
		Total:  total,
		Page:   req.Page,
		Limit:  req.Limit,
	}, nil
}
