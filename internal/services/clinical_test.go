package services_test

import (
	"testing"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/events"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/storage"
	"ehealthwave-server/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clinicalFixture struct {
	*env
	doctorUser *models.Identity
	provider   models.Provider
	patient    *models.PatientProfile
	appt       *models.Appointment
}

func newClinicalFixture(t *testing.T) *clinicalFixture {
	t.Helper()
	e := newEnv(t)
	user, doctor := testutil.Doctor(t, e.db, "dr_clin")
	_, patient := testutil.Patient(t, e.db, "pat_clin")
	p := models.DoctorProvider(doctor.ID)

	appt, err := e.svc.Scheduling.CreateAppointment(e.ctx, p, appointmentInput("pat_clin"))
	require.NoError(t, err)
	return &clinicalFixture{env: e, doctorUser: user, provider: p, patient: patient, appt: appt}
}

func (f *clinicalFixture) document(t *testing.T, name string) *models.Document {
	t.Helper()
	doc, err := f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, f.provider, services.DocumentInput{
		AppointmentName: f.appt.Name,
		Name:            name,
		Type:            "lab",
		File:            &storage.Upload{Filename: "result.pdf", Content: testutil.Reader(testutil.PDF())},
	})
	require.NoError(t, err)
	return doc
}

func TestCreateDocument(t *testing.T) {
	f := newClinicalFixture(t)

	doc := f.document(t, "Blood panel")
	assert.Equal(t, f.appt.ID, doc.AppointmentID)
	assert.Equal(t, f.patient.ID, doc.PatientID)
	assert.Equal(t, "application/pdf", doc.FileContentType)
	assert.NotEmpty(t, doc.File)
	assert.Contains(t, f.events.Types(), events.DocumentCreated)
}

func TestCreateDocumentNameUniquePerPatient(t *testing.T) {
	f := newClinicalFixture(t)
	f.document(t, "X-ray")

	in := appointmentInput("pat_clin")
	in.Name = "Second appointment"
	in.Date = "2025-08-01"
	_, err := f.svc.Scheduling.CreateAppointment(f.ctx, f.provider, in)
	require.NoError(t, err)

	_, err = f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, f.provider, services.DocumentInput{
		AppointmentName: "Second appointment", Name: "X-ray", Type: "imaging",
	})
	assertKind(t, err, apperr.KindConflict, "Document with this name already exists for the patient")
}

func TestCreateDocumentErrors(t *testing.T) {
	f := newClinicalFixture(t)

	_, err := f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, f.provider, services.DocumentInput{
		AppointmentName: "Nope", Name: "Doc", Type: "lab",
	})
	assertKind(t, err, apperr.KindNotFound, "Appointment not found")

	_, err = f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, f.provider, services.DocumentInput{
		AppointmentName: f.appt.Name, Name: "Doc", Type: "lab",
		File: &storage.Upload{Filename: "notes.docx", Content: testutil.Reader([]byte("x"))},
	})
	assertKind(t, err, apperr.KindInvalidInput, "")

	_, other := testutil.Doctor(t, f.db, "dr_other")
	_, err = f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, models.DoctorProvider(other.ID), services.DocumentInput{
		AppointmentName: f.appt.Name, Name: "Doc", Type: "lab",
	})
	assertKind(t, err, apperr.KindNotFound, "Appointment not found")

	require.NoError(t, f.svc.Scheduling.DeleteAppointment(f.ctx, f.provider, f.appt.Name))
	_, err = f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, f.provider, services.DocumentInput{
		AppointmentName: f.appt.Name, Name: "Doc", Type: "lab",
	})
	assertKind(t, err, apperr.KindNotFound, "Appointment not found")
}

func TestUpdateDocument(t *testing.T) {
	f := newClinicalFixture(t)
	f.document(t, "Scan A")
	f.document(t, "Scan B")

	_, err := f.svc.Clinical.UpdateDocument(f.ctx, f.doctorUser, f.provider, "Scan A", services.DocumentUpdate{
		Name: optional.Of("Scan C"),
	})
	assertKind(t, err, apperr.KindInvalidInput, "Missing patient username")

	_, err = f.svc.Clinical.UpdateDocument(f.ctx, f.doctorUser, f.provider, "Scan A", services.DocumentUpdate{
		PatientUsername: optional.Of("pat_clin"), Name: optional.Of("Scan B"),
	})
	assertKind(t, err, apperr.KindConflict, "Document name already exists for the patient")

	doc, err := f.svc.Clinical.UpdateDocument(f.ctx, f.doctorUser, f.provider, "Scan A", services.DocumentUpdate{
		PatientUsername: optional.Of("pat_clin"),
		Name:            optional.Of("Scan C"),
		Description:     optional.Of("contrast"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Scan C", doc.Name)
	assert.Equal(t, "contrast", doc.Description)
	assert.Equal(t, "lab", doc.Type)
}

func TestUpdateDocumentRequiresLinkedAppointment(t *testing.T) {
	f := newClinicalFixture(t)
	doc := f.document(t, "Orphaned")

	_, otherPatient := testutil.Patient(t, f.db, "pat_link")
	require.NoError(t, f.db.Model(&models.Document{}).Where("id = ?", doc.ID).Update("patient_id", otherPatient.ID).Error)

	_, err := f.svc.Clinical.UpdateDocument(f.ctx, f.doctorUser, f.provider, "Orphaned", services.DocumentUpdate{
		PatientUsername: optional.Of("pat_link"), Name: optional.Of("Renamed"),
	})
	assertKind(t, err, apperr.KindNotFound, "Appointment not found for the specified patient")
}

func TestDocumentToggleAndDeleteAreOwnerScoped(t *testing.T) {
	f := newClinicalFixture(t)
	doc := f.document(t, "Owned")
	_, other := testutil.Doctor(t, f.db, "dr_stranger")

	_, err := f.svc.Clinical.ToggleDocument(f.ctx, models.DoctorProvider(other.ID), doc.ID)
	assertKind(t, err, apperr.KindForbidden, "")

	toggled, err := f.svc.Clinical.ToggleDocument(f.ctx, f.provider, doc.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	toggled, err = f.svc.Clinical.ToggleDocument(f.ctx, f.provider, doc.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsActive)

	require.NoError(t, f.svc.Clinical.DeleteDocument(f.ctx, f.provider, doc.ID))

	live, err := f.svc.Clinical.ListDocumentsForPatient(f.ctx, f.patient.ID, services.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := f.svc.Clinical.ListDocumentsForPatient(f.ctx, f.patient.ID, services.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
}

func TestDeletedDocumentReleasesItsName(t *testing.T) {
	f := newClinicalFixture(t)

	first := f.document(t, "Blood panel")
	require.NoError(t, f.svc.Clinical.DeleteDocument(f.ctx, f.provider, first.ID))
	second := f.document(t, "Blood panel")
	assert.NotEqual(t, first.ID, second.ID)

	require.NoError(t, f.svc.Clinical.DeleteDocument(f.ctx, f.provider, second.ID))
	other := f.document(t, "X-ray")
	renamed, err := f.svc.Clinical.UpdateDocument(f.ctx, f.doctorUser, f.provider, "X-ray", services.DocumentUpdate{
		PatientUsername: optional.Of("pat_clin"),
		Name:            optional.Of("Blood panel"),
	})
	require.NoError(t, err)
	assert.Equal(t, other.ID, renamed.ID)

	_, err = f.svc.Clinical.CreateDocument(f.ctx, f.doctorUser, f.provider, services.DocumentInput{
		AppointmentName: f.appt.Name, Name: "Blood panel", Type: "lab",
	})
	assertKind(t, err, apperr.KindConflict, "Document with this name already exists for the patient")
}

func TestDocumentUniqueConstraintBacksThePreCheck(t *testing.T) {
	f := newClinicalFixture(t)
	row := func() *models.Document {
		return &models.Document{AppointmentID: f.appt.ID, PatientID: f.patient.ID, Name: "Same", Type: "lab", IsActive: true}
	}
	require.NoError(t, f.db.Create(row()).Error)
	err := apperr.FromStore(f.db.Create(row()).Error, "Document with this name already exists for the patient")
	assertKind(t, err, apperr.KindConflict, "Document with this name already exists for the patient")
}

func TestCreatePrescription(t *testing.T) {
	f := newClinicalFixture(t)

	rx, err := f.svc.Clinical.CreatePrescription(f.ctx, f.doctorUser, f.provider, services.PrescriptionInput{
		AppointmentID: f.appt.ID, Name: "Amoxicillin", Type: "antibiotic",
	})
	require.NoError(t, err)
	assert.Equal(t, f.patient.ID, rx.PatientID)
	assert.Equal(t, f.provider, rx.GetProvider())
	assert.Contains(t, f.events.Types(), events.PrescriptionCreated)

	views, err := f.svc.Clinical.ListPrescriptionsForPatient(f.ctx, f.patient.ID, services.ListOptions{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "doctor", views[0].Source)
	assert.Equal(t, "Gregory House", views[0].ProviderName)
	assert.Equal(t, f.appt.Name, views[0].AppointmentName)
}

func TestCreatePrescriptionRequiresAppointmentProvider(t *testing.T) {
	f := newClinicalFixture(t)
	otherUser, other := testutil.Doctor(t, f.db, "dr_rx_other")

	_, err := f.svc.Clinical.CreatePrescription(f.ctx, otherUser, models.DoctorProvider(other.ID), services.PrescriptionInput{
		AppointmentID: f.appt.ID, Name: "Ibuprofen", Type: "nsaid",
	})
	assertKind(t, err, apperr.KindForbidden, "")

	var count int64
	require.NoError(t, f.db.Model(&models.Prescription{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPrescriptionUpdateToggleDelete(t *testing.T) {
	f := newClinicalFixture(t)
	rx, err := f.svc.Clinical.CreatePrescription(f.ctx, f.doctorUser, f.provider, services.PrescriptionInput{
		AppointmentID: f.appt.ID, Name: "Metformin", Type: "oral", Description: "500mg",
	})
	require.NoError(t, err)

	updated, err := f.svc.Clinical.UpdatePrescription(f.ctx, f.doctorUser, f.provider, rx.ID, services.PrescriptionUpdate{
		Description: optional.Of("850mg"),
		Name:        optional.Of(" "),
	})
	require.NoError(t, err)
	assert.Equal(t, "850mg", updated.Description)
	assert.Equal(t, "Metformin", updated.Name)

	toggled, err := f.svc.Clinical.TogglePrescription(f.ctx, f.provider, rx.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	require.NoError(t, f.svc.Clinical.DeletePrescription(f.ctx, f.provider, rx.ID))
	_, err = f.svc.Clinical.TogglePrescription(f.ctx, f.provider, rx.ID)
	assertKind(t, err, apperr.KindNotFound, "Prescription not found")

	views, err := f.svc.Clinical.ListPrescriptionsForPatient(f.ctx, f.patient.ID, services.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestMedicalHistory(t *testing.T) {
	f := newClinicalFixture(t)

	_, err := f.svc.Clinical.CreateMedicalHistory(f.ctx, f.provider, services.MedicalHistoryInput{
		PatientUsername: "pat_clin", Smoking: "sometimes",
	})
	assertKind(t, err, apperr.KindInvalidInput, "")

	record, err := f.svc.Clinical.CreateMedicalHistory(f.ctx, f.provider, services.MedicalHistoryInput{
		PatientUsername: "pat_clin",
		Allergies:       []string{"penicillin", " ", "peanuts"},
		Smoking:         "Former",
		Exercise:        "light",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SmokingFormer, record.Smoking)

	list, err := f.svc.Clinical.ListMedicalHistory(f.ctx, f.patient.ID, services.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"penicillin", "peanuts"}, []string(list[0].Allergies))
	assert.Empty(t, list[0].Surgeries)
}
