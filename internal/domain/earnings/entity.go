// internal/domain/earnings/entity.go
package earnings

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarningsLog records a single gross credit to an organizer, with the
// commission withheld and the net amount added to their pending balance.
type EarningsLog struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrganizerID uint            `gorm:"not null;index" json:"organizer_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Commission  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"commission"`
	Net         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net"`
	Source      string          `gorm:"size:100;not null" json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName overrides the table name
func (EarningsLog) TableName() string {
	return "earnings_logs"
}
