package models

import (
	"time"
)

// Session represents an issued login token. The token itself is not stored;
// its ID is the JWT "jti" claim, so logout can revoke it server side.
type Session struct {
	BaseModel
	UserID    string    `gorm:"size:36;index;not null" json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsRevoked bool      `gorm:"default:false" json:"isRevoked"`

	User Identity `gorm:"foreignKey:UserID" json:"-"`
}

// Usable reports whether the session can still authenticate requests.
func (s *Session) Usable(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}
