// internal/domain/audit/service.go
package audit

import (
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service handles audit log writes
type Service struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewService creates a new audit service
func NewService(db *gorm.DB, logger *logrus.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Record writes an audit entry. Failures are logged and swallowed so audit
// problems never surface to callers.
func (s *Service) Record(action string, actorID *uint, entityType, entityID string, details map[string]interface{}) {
	entry := AuditLog{
		Action:     action,
		ActorID:    actorID,
		EntityType: entityType,
		EntityID:   entityID,
	}
	entry.SetDetails(details)

	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":    action,
			"entity_id": entityID,
		}).Warn("Failed to write audit log")
	}
}

// List returns recent audit entries for an entity, newest first
func (s *Service) List(entityType, entityID string, limit int) ([]AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []AuditLog
	err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
