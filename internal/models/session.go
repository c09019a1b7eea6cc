package models

import "time"

// Session records an issued login session so tokens can be revoked server-side.
type Session struct {
	BaseModel

	UserID     string     `gorm:"index;not null" json:"user_id"`
	TokenHash  string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	ClientIP   string     `gorm:"size:64" json:"client_ip,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// Active reports whether the session can still authenticate requests.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
