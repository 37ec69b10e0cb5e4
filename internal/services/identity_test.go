package services_test

import (
	"testing"
	"time"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	e := newEnv(t)

	identity, err := e.svc.Identity.Register(e.ctx, services.RegisterInput{
		Username: "alice", Password: "pw123456", Email: "Alice@Example.com", Role: "patient",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, models.RolePatient, identity.Role)
	assert.NotEqual(t, "pw123456", identity.PasswordHash)
	assert.True(t, identity.CheckPassword("pw123456"))

	var profiles int64
	require.NoError(t, e.db.Model(&models.PatientProfile{}).Count(&profiles).Error)
	assert.Zero(t, profiles)
}

func TestRegisterErrors(t *testing.T) {
	e := newEnv(t)
	testutil.Identity(t, e.db, "taken", models.RoleDoctor)

	tests := []struct {
		name string
		in   services.RegisterInput
		kind apperr.Kind
		msg  string
	}{
		{"missing", services.RegisterInput{Username: "bob", Email: "bob@example.com", Role: "doctor"}, apperr.KindInvalidInput, "Missing data"},
		{"bad role", services.RegisterInput{Username: "bob", Password: "pw", Email: "bob@example.com", Role: "nurse"}, apperr.KindInvalidInput, ""},
		{"username taken", services.RegisterInput{Username: "taken", Password: "pw", Email: "new@example.com", Role: "doctor"}, apperr.KindConflict, "Username already taken"},
		{"email taken", services.RegisterInput{Username: "bob", Password: "pw", Email: "taken@example.com", Role: "doctor"}, apperr.KindConflict, "Email already registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Identity.Register(e.ctx, tt.in)
			assertKind(t, err, tt.kind, tt.msg)
		})
	}
}

func TestAuthenticateOpensSession(t *testing.T) {
	e := newEnv(t)
	identity := testutil.Identity(t, e.db, "carol", models.RoleDoctor)

	got, session, err := e.svc.Identity.Authenticate(e.ctx, "carol", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)
	assert.Equal(t, identity.ID, session.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)
	assert.False(t, got.LastLogin.IsZero())

	resolved, err := e.svc.Identity.ValidateSession(e.ctx, session.ID, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", resolved.Username)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)
	testutil.Identity(t, e.db, "dave", models.RolePatient)

	_, _, err := e.svc.Identity.Authenticate(e.ctx, "dave", "wrong")
	assertKind(t, err, apperr.KindUnauthorized, "Invalid credentials")

	_, _, err = e.svc.Identity.Authenticate(e.ctx, "nobody", "wrong")
	assertKind(t, err, apperr.KindUnauthorized, "Invalid credentials")
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newEnv(t)
	identity := testutil.Identity(t, e.db, "erin", models.RolePatient)
	_, session, err := e.svc.Identity.Authenticate(e.ctx, "erin", testutil.Password)
	require.NoError(t, err)

	require.NoError(t, e.svc.Identity.Logout(e.ctx, session.ID))
	require.NoError(t, e.svc.Identity.Logout(e.ctx, session.ID))

	_, err = e.svc.Identity.ValidateSession(e.ctx, session.ID, identity.ID)
	assertKind(t, err, apperr.KindUnauthorized, "")
}

func TestUpdateAccount(t *testing.T) {
	e := newEnv(t)
	identity := testutil.Identity(t, e.db, "frank", models.RoleDoctor)
	testutil.Identity(t, e.db, "grace", models.RoleDoctor)

	_, err := e.svc.Identity.UpdateAccount(e.ctx, identity.ID, services.AccountUpdate{Email: optional.Of("  ")})
	assertKind(t, err, apperr.KindInvalidInput, "Nothing to update")

	_, err = e.svc.Identity.UpdateAccount(e.ctx, identity.ID, services.AccountUpdate{Email: optional.Of("grace@example.com")})
	assertKind(t, err, apperr.KindConflict, "Email already registered")

	updated, err := e.svc.Identity.UpdateAccount(e.ctx, identity.ID, services.AccountUpdate{Password: optional.Of("n3w-pass")})
	require.NoError(t, err)
	assert.Equal(t, "frank@example.com", updated.Email)
	assert.Equal(t, models.RoleDoctor, updated.Role)

	_, _, err = e.svc.Identity.Authenticate(e.ctx, "frank", "n3w-pass")
	require.NoError(t, err)
}

func TestDeactivate(t *testing.T) {
	e := newEnv(t)
	identity, doctor := testutil.Doctor(t, e.db, "heidi")
	_, session, err := e.svc.Identity.Authenticate(e.ctx, "heidi", testutil.Password)
	require.NoError(t, err)

	require.NoError(t, e.svc.Identity.Deactivate(e.ctx, identity.ID))

	var profile models.DoctorProfile
	require.NoError(t, e.db.First(&profile, "id = ?", doctor.ID).Error)
	assert.True(t, profile.IsDeleted)

	_, err = e.svc.Identity.ValidateSession(e.ctx, session.ID, identity.ID)
	assertKind(t, err, apperr.KindUnauthorized, "")

	_, _, err = e.svc.Identity.Authenticate(e.ctx, "heidi", testutil.Password)
	assertKind(t, err, apperr.KindUnauthorized, "Account is deactivated")
}
