// internal/domain/user/service.go
package user

import (
	"fmt"
	"strings"
	"time"

	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/pkg/apperror"
	"github.com/your-org/ticketing-backend/internal/pkg/auth"
	"gorm.io/gorm"
)

// Service handles user business logic
type Service struct {
	db         *gorm.DB
	config     *config.Config
	jwtManager *auth.JWTManager
	passwords  *auth.PasswordManager
}

// NewService creates a new user service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:         db,
		config:     cfg,
		jwtManager: auth.NewJWTManager(cfg),
		passwords:  auth.NewPasswordManager(cfg),
	}
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

// LoginRequest represents login data
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents a successful authentication
type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
}

// Register creates a new user account
func (s *Service) Register(req *RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, apperror.New(apperror.CodeConflict, "an account with this email already exists")
	} else if err != gorm.ErrRecordNotFound {
		return nil, apperror.Internal(fmt.Errorf("lookup user: %w", err))
	}

	hashed, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeValidationFailed, err.Error(), err)
	}

	newUser := User{
		Email:     email,
		Password:  hashed,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      RoleUser,
		IsActive:  true,
	}
	if err := s.db.Create(&newUser).Error; err != nil {
		return nil, apperror.Internal(fmt.Errorf("create user: %w", err))
	}

	return s.issueTokens(&newUser)
}

// Login authenticates a user by email and password
func (s *Service) Login(req *LoginRequest) (*AuthResponse, error) {
	var u User
	err := s.db.Where("email = ? AND is_active = ?", strings.ToLower(req.Email), true).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeUnauthorized, "invalid email or password")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("lookup user: %w", err))
	}

	if err := s.passwords.VerifyPassword(req.Password, u.Password); err != nil {
		return nil, apperror.New(apperror.CodeUnauthorized, "invalid email or password")
	}

	now := time.Now().UTC()
	s.db.Model(&u).Update("last_login_at", now)
	u.LastLoginAt = &now

	return s.issueTokens(&u)
}

// GetProfile retrieves a user by id
func (s *Service) GetProfile(userID uint) (*User, error) {
	var u User
	if err := s.db.First(&u, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.New(apperror.CodeNotFound, "user not found")
		}
		return nil, apperror.Internal(fmt.Errorf("load user: %w", err))
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (s *Service) GetUserByEmail(email string) (*User, error) {
	var u User
	err := s.db.Where("email = ?", strings.ToLower(email)).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.New(apperror.CodeNotFound, "user not found")
	} else if err != nil {
		return nil, apperror.Internal(fmt.Errorf("lookup user: %w", err))
	}
	return &u, nil
}

func (s *Service) issueTokens(u *User) (*AuthResponse, error) {
	token, err := s.jwtManager.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("sign access token: %w", err))
	}
	return &AuthResponse{User: u, AccessToken: token}, nil
}
