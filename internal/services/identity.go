package services

import (
	"context"
	"strings"
	"time"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"

	"gorm.io/gorm"
)

// IdentityService manages accounts and login sessions.
type IdentityService struct {
	base
	ttl time.Duration
}

// RegisterInput is the payload of POST /register.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Role     string
}

// AccountUpdate carries the independently updatable account fields.
type AccountUpdate struct {
	Password optional.String
	Email    optional.String
}

// Register creates an identity without a profile.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*models.Identity, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if missing(username, in.Password, email, in.Role) {
		return nil, apperr.InvalidInput("Missing data")
	}
	role := models.Role(strings.TrimSpace(in.Role))
	if !role.Valid() {
		return nil, apperr.InvalidInput("Invalid role, must be patient, doctor or red_cross")
	}

	db := s.conn(ctx)
	var count int64
	if err := db.Model(&models.Identity{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, dbError(err)
	}
	if count > 0 {
		return nil, apperr.Conflict("Username already taken")
	}
	if err := db.Model(&models.Identity{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, dbError(err)
	}
	if count > 0 {
		return nil, apperr.Conflict("Email already registered")
	}

	identity := &models.Identity{
		Username:  username,
		Email:     email,
		Role:      role,
		IsActive:  true,
		LastLogin: s.now(),
	}
	if err := identity.SetPassword(in.Password); err != nil {
		return nil, apperr.Internal(err, "Failed to hash password")
	}
	if err := db.Create(identity).Error; err != nil {
		return nil, apperr.FromStore(err, "Username or email already registered")
	}
	return identity, nil
}

// Authenticate checks credentials and opens a session valid for the
// configured TTL.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*models.Identity, *models.Session, error) {
	if missing(username, password) {
		return nil, nil, apperr.InvalidInput("Missing data")
	}

	db := s.conn(ctx)
	var identity models.Identity
	if err := db.Where("username = ?", strings.TrimSpace(username)).First(&identity).Error; err != nil {
		if isNotFound(err) {
			return nil, nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, nil, dbError(err)
	}
	if !identity.CheckPassword(password) {
		return nil, nil, apperr.Unauthorized("Invalid credentials")
	}
	if !identity.IsActive {
		return nil, nil, apperr.Unauthorized("Account is deactivated")
	}

	now := s.now()
	session := &models.Session{UserID: identity.ID, ExpiresAt: now.Add(s.ttl)}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(session).Error; err != nil {
			return err
		}
		identity.LastLogin = now
		return tx.Model(&identity).Update("last_login", now).Error
	})
	if err != nil {
		return nil, nil, dbError(err)
	}
	return &identity, session, nil
}

// ValidateSession resolves the identity behind a session id taken from a
// verified token.
func (s *IdentityService) ValidateSession(ctx context.Context, sessionID, userID string) (*models.Identity, error) {
	db := s.conn(ctx)
	var session models.Session
	if err := db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.Unauthorized("Session not found")
		}
		return nil, dbError(err)
	}
	if !session.Usable(s.now()) {
		return nil, apperr.Unauthorized("Session expired or revoked")
	}

	identity, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !identity.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}
	return identity, nil
}

// Logout revokes a session. Revoking twice is harmless.
func (s *IdentityService) Logout(ctx context.Context, sessionID string) error {
	err := s.conn(ctx).Model(&models.Session{}).Where("id = ?", sessionID).Update("is_revoked", true).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

// Get loads an identity by id.
func (s *IdentityService) Get(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	if err := s.conn(ctx).First(&identity, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError(err)
	}
	return &identity, nil
}

// UpdateAccount changes the password and/or email. The role is never touched.
func (s *IdentityService) UpdateAccount(ctx context.Context, id string, in AccountUpdate) (*models.Identity, error) {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !in.Password.IsSet() && !in.Email.IsSet() {
		return nil, apperr.InvalidInput("Nothing to update")
	}

	db := s.conn(ctx)
	if email, ok := in.Email.Get(); ok {
		email = strings.ToLower(email)
		var count int64
		if err := db.Model(&models.Identity{}).Where("email = ? AND id <> ?", email, identity.ID).Count(&count).Error; err != nil {
			return nil, dbError(err)
		}
		if count > 0 {
			return nil, apperr.Conflict("Email already registered")
		}
		identity.Email = email
	}
	if in.Password.IsSet() {
		if err := identity.SetPassword(in.Password.Value()); err != nil {
			return nil, apperr.Internal(err, "Failed to hash password")
		}
	}

	if err := db.Save(identity).Error; err != nil {
		return nil, apperr.FromStore(err, "Email already registered")
	}
	return identity, nil
}

// Deactivate disables the account, soft-deletes its profile and revokes
// every open session. The identity row itself is kept.
func (s *IdentityService) Deactivate(ctx context.Context, id string) error {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(identity).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(profileModelFor(identity.Role)).Where("user_id = ?", identity.ID).Update("is_deleted", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).Where("user_id = ?", identity.ID).Update("is_revoked", true).Error
	})
	if err != nil {
		return dbError(err)
	}
	return nil
}

func profileModelFor(role models.Role) interface{} {
	switch role {
	case models.RoleDoctor:
		return &models.DoctorProfile{}
	case models.RoleRedCross:
		return &models.RedCrossProfile{}
	default:
		return &models.PatientProfile{}
	}
}
