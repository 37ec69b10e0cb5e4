// Package testutil provides an in-memory database and seed helpers for tests.
package testutil

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"ehealthwave-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Password is the plain-text password of every seeded identity.
const Password = "secret123"

var phoneSeq int64 = 5550000000

// NewDB opens a private in-memory sqlite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := models.Open(models.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		Silent: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// NextPhone returns a phone number no other seeded profile uses.
func NextPhone() string {
	return fmt.Sprintf("%d", atomic.AddInt64(&phoneSeq, 1))
}

// Identity inserts an active identity with Password.
func Identity(t *testing.T, db *gorm.DB, username string, role models.Role) *models.Identity {
	t.Helper()

	identity := &models.Identity{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, identity.SetPassword(Password))
	require.NoError(t, db.Create(identity).Error)
	return identity
}

// Doctor inserts a doctor identity with a profile.
func Doctor(t *testing.T, db *gorm.DB, username string) (*models.Identity, *models.DoctorProfile) {
	t.Helper()

	identity := Identity(t, db, username, models.RoleDoctor)
	profile := &models.DoctorProfile{
		UserID: identity.ID,
		PersonDetails: models.PersonDetails{
			FirstName: "Gregory",
			LastName:  "House",
			Gender:    models.GenderMale,
			Phone:     NextPhone(),
			Address:   "221B Baker Street",
			ZipCode:   "08540",
		},
		Specialty: "Diagnostics",
	}
	require.NoError(t, db.Create(profile).Error)
	return identity, profile
}

// Patient inserts a patient identity with a profile.
func Patient(t *testing.T, db *gorm.DB, username string) (*models.Identity, *models.PatientProfile) {
	t.Helper()

	identity := Identity(t, db, username, models.RolePatient)
	profile := &models.PatientProfile{
		UserID: identity.ID,
		PersonDetails: models.PersonDetails{
			FirstName: "Jane",
			LastName:  "Doe",
			Gender:    models.GenderFemale,
			Phone:     NextPhone(),
			Address:   "1 Main Street",
			ZipCode:   "10001",
		},
	}
	require.NoError(t, db.Create(profile).Error)
	return identity, profile
}

// RedCross inserts a red cross identity with a profile.
func RedCross(t *testing.T, db *gorm.DB, username string) (*models.Identity, *models.RedCrossProfile) {
	t.Helper()

	identity := Identity(t, db, username, models.RoleRedCross)
	profile := &models.RedCrossProfile{
		UserID:  identity.ID,
		Name:    "Red Cross " + username,
		Phone:   NextPhone(),
		Address: "2025 E Street NW",
		ZipCode: "20006",
	}
	require.NoError(t, db.Create(profile).Error)
	return identity, profile
}

// PNG returns bytes mimetype detects as image/png.
func PNG() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
}

// PDF returns bytes mimetype detects as application/pdf.
func PDF() []byte {
	return []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
}

// Reader wraps b for an upload.
func Reader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
