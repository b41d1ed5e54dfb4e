// internal/domain/user/entity.go
package user

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Role represents a user's role
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// User represents the user entity. Organizers additionally carry the
// commission and earnings balances credited by order materialization.
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Email           string         `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password        string         `gorm:"not null;size:255" json:"-"`
	FirstName       string         `gorm:"size:100" json:"first_name"`
	LastName        string         `gorm:"size:100" json:"last_name"`
	Phone           string         `gorm:"size:20" json:"phone"`
	Role            Role           `gorm:"size:20;default:'user'" json:"role"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	EmailVerified   bool           `gorm:"default:false" json:"email_verified"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at"`
	LastLoginAt     *time.Time     `json:"last_login_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Organizer earnings. total_earnings accumulates gross credits,
	// pending_balance accumulates net (post-commission) credits not yet
	// paid out. total_payouts moves value out of pending_balance.
	CommissionPercentage decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"commission_percentage"`
	TotalEarnings        decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_earnings"`
	PendingBalance       decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"pending_balance"`
	TotalPayouts         decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"total_payouts"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// BeforeCreate lowercases the email before persisting
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(u.Email)
	return nil
}

// GetFullName returns the user's full name
func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsOrganizer reports whether the user can own events and receive earnings
func (u *User) IsOrganizer() bool {
	return u.Role == RoleOrganizer || u.Role == RoleAdmin
}
