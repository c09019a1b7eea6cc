package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/retroludo/retrodex/internal/models"
)

// DefaultSessionTTL bounds how long an issued session stays valid.
const DefaultSessionTTL = 24 * time.Hour

// ErrSessionNotFound indicates the session does not exist or was revoked.
var ErrSessionNotFound = errors.New("session service: session not found")

// SessionService records issued login sessions so tokens can be revoked and
// stale rows cleaned up.
type SessionService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// SessionOption customises a SessionService.
type SessionOption func(*SessionService)

// WithSessionTTL overrides the default session lifetime.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionClock overrides the clock, primarily for tests.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionService constructs a session service.
func NewSessionService(db *gorm.DB, opts ...SessionOption) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	svc := &SessionService{db: db, ttl: DefaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateSessionInput captures the fields recorded for a new login session.
// ID may be pre-generated so the access token can embed it before the row
// exists; when empty one is assigned on insert.
type CreateSessionInput struct {
	ID       string
	UserID   string
	Token    string
	ClientIP string
}

// Create opens a session for the user and returns the persisted row. The
// access token itself is stored only as a hash.
func (s *SessionService) Create(ctx context.Context, input CreateSessionInput) (*models.Session, error) {
	if s == nil {
		return nil, errors.New("session service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("session service: user id is required")
	}

	session := models.Session{
		UserID:    userID,
		TokenHash: hashToken(input.Token),
		ExpiresAt: s.now().Add(s.ttl),
		ClientIP:  strings.TrimSpace(input.ClientIP),
	}
	session.ID = strings.TrimSpace(input.ID)

	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Get retrieves a session by identifier.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	if s == nil {
		return nil, errors.New("session service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	var session models.Session
	err := s.db.WithContext(ctx).First(&session, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Revoke marks the session unusable from now on.
func (s *SessionService) Revoke(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("session service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", strings.TrimSpace(id)).
		Update("revoked_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CleanupExpired removes sessions past their expiry or already revoked,
// returning the number of rows deleted.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errors.New("session service: service not initialised")
	}
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", s.now()).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
