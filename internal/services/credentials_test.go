package services_test

import (
	"testing"
	"time"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/storage"
	"ehealthwave-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateRoundTrip(t *testing.T) {
	e := newEnv(t)
	owner, org := testutil.RedCross(t, e.db, "rc_cert")
	p := models.RedCrossProvider(org.ID)

	cert, err := e.svc.Credentials.CreateCertificate(e.ctx, owner, p, services.CertificateInput{
		Name:       "First Aid Trainer",
		Number:     "FA-001",
		IssueDate:  "2024-01-15",
		ExpiryDate: "2026-01-15",
		Picture:    &storage.Upload{Filename: "cert.jpg", Content: testutil.Reader(testutil.PNG())},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Picture)

	list, err := e.svc.Credentials.ListCertificates(e.ctx, models.ProviderRedCross, "rc_cert", services.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "First Aid Trainer", got.Name)
	assert.Equal(t, "FA-001", got.Number)
	assert.True(t, mustDate(t, "2024-01-15").Equal(time.Time(got.IssueDate)))
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, mustDate(t, "2026-01-15").Equal(time.Time(*got.ExpiryDate)))
	assert.True(t, got.DatesOrdered())
}

func TestCreateCertificateValidation(t *testing.T) {
	e := newEnv(t)
	owner, doctor := testutil.Doctor(t, e.db, "dr_cert")
	p := models.DoctorProvider(doctor.ID)

	tests := []struct {
		name string
		in   services.CertificateInput
		msg  string
	}{
		{"missing", services.CertificateInput{Name: "Board"}, "Missing required data"},
		{"bad issue", services.CertificateInput{Name: "Board", IssueDate: "2024/01/01"}, "Invalid issue date format, should be YYYY-MM-DD"},
		{"bad expiry", services.CertificateInput{Name: "Board", IssueDate: "2024-01-01", ExpiryDate: "soon"}, "Invalid expiry date format, should be YYYY-MM-DD"},
		{"out of order", services.CertificateInput{Name: "Board", IssueDate: "2025-01-02", ExpiryDate: "2025-01-01"}, "Issue date cannot be greater than expiry date"},
		{"bad picture", services.CertificateInput{Name: "Board", IssueDate: "2024-01-01", Picture: &storage.Upload{Filename: "c.pdf", Content: testutil.Reader(testutil.PDF())}}, "Invalid file format, should be PNG or JPG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Credentials.CreateCertificate(e.ctx, owner, p, tt.in)
			assertKind(t, err, apperr.KindInvalidInput, tt.msg)
		})
	}

	var count int64
	require.NoError(t, e.db.Model(&models.Certificate{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCertificateWithoutExpiry(t *testing.T) {
	e := newEnv(t)
	owner, doctor := testutil.Doctor(t, e.db, "dr_noexp")

	cert, err := e.svc.Credentials.CreateCertificate(e.ctx, owner, models.DoctorProvider(doctor.ID), services.CertificateInput{
		Name: "MD", IssueDate: "2010-06-01",
	})
	require.NoError(t, err)
	assert.Nil(t, cert.ExpiryDate)
}

func TestCreateCertificateDuplicateNameIncludesDeleted(t *testing.T) {
	e := newEnv(t)
	owner, doctor := testutil.Doctor(t, e.db, "dr_dupcert")
	p := models.DoctorProvider(doctor.ID)
	in := services.CertificateInput{Name: "ACLS", IssueDate: "2024-01-01"}

	_, err := e.svc.Credentials.CreateCertificate(e.ctx, owner, p, in)
	require.NoError(t, err)
	_, err = e.svc.Credentials.CreateCertificate(e.ctx, owner, p, in)
	assertKind(t, err, apperr.KindConflict, "Certificate already exists")

	require.NoError(t, e.svc.Credentials.DeleteCertificate(e.ctx, p, "ACLS"))
	_, err = e.svc.Credentials.CreateCertificate(e.ctx, owner, p, in)
	assertKind(t, err, apperr.KindConflict, "Certificate already exists")

	_, other := testutil.Doctor(t, e.db, "dr_dupcert2")
	_, err = e.svc.Credentials.CreateCertificate(e.ctx, owner, models.DoctorProvider(other.ID), in)
	require.NoError(t, err)
}

func TestUpdateCertificate(t *testing.T) {
	e := newEnv(t)
	owner, doctor := testutil.Doctor(t, e.db, "dr_updcert")
	p := models.DoctorProvider(doctor.ID)
	_, err := e.svc.Credentials.CreateCertificate(e.ctx, owner, p, services.CertificateInput{
		Name: "BLS", IssueDate: "2024-01-01", ExpiryDate: "2025-01-01",
	})
	require.NoError(t, err)
	_, err = e.svc.Credentials.CreateCertificate(e.ctx, owner, p, services.CertificateInput{Name: "PALS", IssueDate: "2024-01-01"})
	require.NoError(t, err)

	_, err = e.svc.Credentials.UpdateCertificate(e.ctx, owner, p, "BLS", services.CertificateUpdate{Number: optional.Of("9")})
	assertKind(t, err, apperr.KindInvalidInput, "")

	_, err = e.svc.Credentials.UpdateCertificate(e.ctx, owner, p, "BLS", services.CertificateUpdate{
		Name: optional.Of("BLS"), IssueDate: optional.Of("2025-06-01"),
	})
	assertKind(t, err, apperr.KindInvalidInput, "Issue date cannot be greater than expiry date")

	_, err = e.svc.Credentials.UpdateCertificate(e.ctx, owner, p, "BLS", services.CertificateUpdate{Name: optional.Of("PALS")})
	assertKind(t, err, apperr.KindConflict, "Certificate already exists")

	cert, err := e.svc.Credentials.UpdateCertificate(e.ctx, owner, p, "BLS", services.CertificateUpdate{
		Name: optional.Of("BLS Instructor"), ExpiryDate: optional.Of("2027-01-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "BLS Instructor", cert.Name)
	assert.True(t, mustDate(t, "2027-01-01").Equal(time.Time(*cert.ExpiryDate)))

	_, err = e.svc.Credentials.UpdateCertificate(e.ctx, owner, p, "BLS", services.CertificateUpdate{Name: optional.Of("x")})
	assertKind(t, err, apperr.KindNotFound, "Certificate not found")
}

func TestDeletedCertificateExcludedFromListing(t *testing.T) {
	e := newEnv(t)
	owner, doctor := testutil.Doctor(t, e.db, "dr_delcert")
	p := models.DoctorProvider(doctor.ID)
	_, err := e.svc.Credentials.CreateCertificate(e.ctx, owner, p, services.CertificateInput{Name: "CPR", IssueDate: "2023-05-05"})
	require.NoError(t, err)

	require.NoError(t, e.svc.Credentials.DeleteCertificate(e.ctx, p, "CPR"))
	err = e.svc.Credentials.DeleteCertificate(e.ctx, p, "CPR")
	assertKind(t, err, apperr.KindNotFound, "Certificate not found")

	live, err := e.svc.Credentials.ListCertificates(e.ctx, models.ProviderDoctor, "dr_delcert", services.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := e.svc.Credentials.ListCertificates(e.ctx, models.ProviderDoctor, "dr_delcert", services.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
}
