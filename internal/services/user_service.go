package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/models"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user service: user not found")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("user service: username already in use")
	// ErrInvalidCredentials indicates a failed username/password check.
	ErrInvalidCredentials = errors.New("user service: invalid credentials")
)

// UserService manages accounts and credential verification.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a user service once a database handle is supplied.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// CreateUserInput captures the fields accepted when creating a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Create registers a new account with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	if s == nil {
		return nil, errors.New("user service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return nil, errors.New("user service: username is required")
	}
	if len(input.Password) < 8 {
		return nil, errors.New("user service: password must be at least 8 characters")
	}

	role := strings.TrimSpace(input.Role)
	switch role {
	case "":
		role = models.RoleViewer
	case models.RoleAdmin, models.RoleEditor, models.RoleViewer:
	default:
		return nil, errors.New("user service: invalid role")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies a username/password pair and records the login time.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if s == nil {
		return nil, errors.New("user service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	username = strings.ToLower(strings.TrimSpace(username))

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Burn a comparison anyway so missing users cost the same as bad passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidinvalidinvalidinvalidinvalidinval"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// Get retrieves a user by identifier.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if s == nil {
		return nil, errors.New("user service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("user service: id is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureAdmin creates the bootstrap administrator account when it is missing.
// Called from server start-up with credentials taken from configuration.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) error {
	if s == nil {
		return errors.New("user service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil // bootstrap admin not configured
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := s.Create(ctx, CreateUserInput{
		Username: username,
		Password: password,
		Role:     models.RoleAdmin,
	})
	return err
}
