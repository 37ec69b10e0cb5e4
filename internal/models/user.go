package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RoleRedCross Role = "red_cross"
)

// Valid reports whether r is one of the three recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleRedCross:
		return true
	}
	return false
}

// Identity is an account record. It is never hard-deleted and its role is
// fixed at registration.
type Identity struct {
	BaseModel
	Username     string    `gorm:"uniqueIndex;size:25;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"size:20;not null" json:"role"`
	IsActive     bool      `gorm:"default:true" json:"isActive"`
	LastLogin    time.Time `json:"lastLogin"`

	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`
}

// TableName keeps the users table name for identities.
func (Identity) TableName() string {
	return "users"
}

// IdentitySanitized represents the account data that is safe to send in API responses.
type IdentitySanitized struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	LastLogin time.Time `json:"lastLogin"`
	CreatedAt time.Time `json:"createdAt"`
}

// SetPassword hashes a password and sets it on the identity
func (u *Identity) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the identity's hashed password
func (u *Identity) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// Sanitize creates an IdentitySanitized struct, excluding the password hash.
func (u *Identity) Sanitize() IdentitySanitized {
	return IdentitySanitized{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}
