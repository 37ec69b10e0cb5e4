package services

import (
	"context"
	"strings"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/events"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/storage"

	"gorm.io/datatypes"
)

// ClinicalService manages documents, prescriptions and medical history.
type ClinicalService struct {
	base
	files      storage.FileStore
	profiles   *ProfileService
	scheduling *SchedulingService
}

// DocumentInput attaches a document to one of the provider's appointments.
type DocumentInput struct {
	AppointmentName string
	Name            string
	Type            string
	Description     string
	URL             string
	File            *storage.Upload
}

// DocumentUpdate renames a document and applies the other set fields.
// PatientUsername must name the patient the document belongs to.
type DocumentUpdate struct {
	PatientUsername optional.String
	Name            optional.String
	Type            optional.String
	Description     optional.String
	URL             optional.String
	File            *storage.Upload
}

func checkAttachment(u *storage.Upload) error {
	if u == nil {
		return nil
	}
	return storage.CheckExtension(u.Filename, storage.Attachment)
}

func (s *ClinicalService) saveAttachment(ctx context.Context, owner string, u *storage.Upload) (*storage.Stored, error) {
	if u == nil {
		return &storage.Stored{}, nil
	}
	return s.files.Save(ctx, owner, u, storage.Attachment)
}

func (s *ClinicalService) documentNameTaken(ctx context.Context, patientID, name, exceptID string) (bool, error) {
	q := s.conn(ctx).Model(&models.Document{}).Where("patient_id = ? AND name = ? AND is_deleted = ?", patientID, name, false)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

// CreateDocument stores a document on an appointment of the caller. Names
// are unique across all documents of the appointment's patient.
func (s *ClinicalService) CreateDocument(ctx context.Context, owner *models.Identity, p models.Provider, in DocumentInput) (*models.Document, error) {
	if missing(in.AppointmentName, in.Name, in.Type) {
		return nil, apperr.InvalidInput("Missing required data")
	}
	if err := checkAttachment(in.File); err != nil {
		return nil, err
	}

	appt, err := s.scheduling.appointmentByName(ctx, p, strings.TrimSpace(in.AppointmentName))
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	taken, err := s.documentNameTaken(ctx, appt.PatientID, name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("Document with this name already exists for the patient")
	}

	stored, err := s.saveAttachment(ctx, owner.Username, in.File)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		AppointmentID:   appt.ID,
		PatientID:       appt.PatientID,
		Name:            name,
		Type:            strings.TrimSpace(in.Type),
		Description:     strings.TrimSpace(in.Description),
		File:            stored.Name,
		FileContentType: stored.ContentType,
		URL:             strings.TrimSpace(in.URL),
		IsActive:        true,
	}
	if err := s.conn(ctx).Create(doc).Error; err != nil {
		s.removeFiles(ctx, s.files, owner.Username, stored.Name)
		return nil, apperr.FromStore(err, "Document with this name already exists for the patient")
	}

	s.publish(ctx, events.DocumentCreated, map[string]interface{}{
		"document_id":    doc.ID,
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
	})
	return doc, nil
}

// UpdateDocument re-resolves the patient and requires the document's
// appointment to belong to that patient before changing anything.
func (s *ClinicalService) UpdateDocument(ctx context.Context, owner *models.Identity, p models.Provider, name string, in DocumentUpdate) (*models.Document, error) {
	username, ok := in.PatientUsername.Get()
	if !ok {
		return nil, apperr.InvalidInput("Missing patient username")
	}
	newName, ok := in.Name.Get()
	if !ok {
		return nil, apperr.InvalidInput("Missing required data")
	}
	if err := checkAttachment(in.File); err != nil {
		return nil, err
	}

	patient, err := s.profiles.PatientByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	var doc models.Document
	err = s.conn(ctx).Where("patient_id = ? AND name = ? AND is_deleted = ?", patient.ID, name, false).First(&doc).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Document not found")
		}
		return nil, dbError(err)
	}
	var appt models.Appointment
	err = s.conn(ctx).Where("id = ? AND patient_id = ?", doc.AppointmentID, patient.ID).First(&appt).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Appointment not found for the specified patient")
		}
		return nil, dbError(err)
	}
	if !appt.GetProvider().Equal(p) {
		return nil, apperr.Forbidden("Only the appointment's provider can change this document")
	}

	taken, err := s.documentNameTaken(ctx, patient.ID, newName, doc.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("Document name already exists for the patient")
	}

	stored, err := s.saveAttachment(ctx, owner.Username, in.File)
	if err != nil {
		return nil, err
	}

	doc.Name = newName
	in.Type.ApplyTo(&doc.Type)
	in.Description.ApplyTo(&doc.Description)
	in.URL.ApplyTo(&doc.URL)
	if stored.Name != "" {
		doc.File, doc.FileContentType = stored.Name, stored.ContentType
	}
	if err := s.conn(ctx).Save(&doc).Error; err != nil {
		s.removeFiles(ctx, s.files, owner.Username, stored.Name)
		return nil, apperr.FromStore(err, "Document name already exists for the patient")
	}
	return &doc, nil
}

// ownedDocument loads a live document attached to one of p's appointments.
func (s *ClinicalService) ownedDocument(ctx context.Context, p models.Provider, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.conn(ctx).Preload("Appointment").Where("id = ? AND is_deleted = ?", id, false).First(&doc).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Document not found")
		}
		return nil, dbError(err)
	}
	if !doc.Appointment.GetProvider().Equal(p) {
		return nil, apperr.Forbidden("Only the appointment's provider can change this document")
	}
	return &doc, nil
}

// ToggleDocument flips the active flag of a document.
func (s *ClinicalService) ToggleDocument(ctx context.Context, p models.Provider, id string) (*models.Document, error) {
	doc, err := s.ownedDocument(ctx, p, id)
	if err != nil {
		return nil, err
	}
	doc.IsActive = !doc.IsActive
	if err := s.conn(ctx).Model(&models.Document{}).Where("id = ?", doc.ID).Update("is_active", doc.IsActive).Error; err != nil {
		return nil, dbError(err)
	}
	return doc, nil
}

// DeleteDocument soft-deletes a document and frees its name.
func (s *ClinicalService) DeleteDocument(ctx context.Context, p models.Provider, id string) error {
	doc, err := s.ownedDocument(ctx, p, id)
	if err != nil {
		return err
	}
	release := map[string]interface{}{"is_deleted": true, "live": nil}
	if err := s.conn(ctx).Model(&models.Document{}).Where("id = ?", doc.ID).Updates(release).Error; err != nil {
		return dbError(err)
	}
	return nil
}

// ListDocumentsForPatient returns every document across the patient's appointments.
func (s *ClinicalService) ListDocumentsForPatient(ctx context.Context, patientID string, opts ListOptions) ([]models.Document, error) {
	var docs []models.Document
	q := opts.scope(s.conn(ctx).Where("patient_id = ?", patientID))
	if err := q.Order("created_at").Find(&docs).Error; err != nil {
		return nil, dbError(err)
	}
	return docs, nil
}

// PrescriptionInput issues a prescription on an appointment.
type PrescriptionInput struct {
	AppointmentID string
	Name          string
	Type          string
	Description   string
	File          *storage.Upload
}

// PrescriptionUpdate applies the set fields to a prescription.
type PrescriptionUpdate struct {
	Name        optional.String
	Type        optional.String
	Description optional.String
	File        *storage.Upload
}

// CreatePrescription requires the caller to be the appointment's provider.
func (s *ClinicalService) CreatePrescription(ctx context.Context, owner *models.Identity, p models.Provider, in PrescriptionInput) (*models.Prescription, error) {
	if missing(in.AppointmentID, in.Name, in.Type) {
		return nil, apperr.InvalidInput("Missing required data")
	}
	if err := checkAttachment(in.File); err != nil {
		return nil, err
	}

	var appt models.Appointment
	if err := s.conn(ctx).Where("id = ? AND is_deleted = ?", strings.TrimSpace(in.AppointmentID), false).First(&appt).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Appointment not found")
		}
		return nil, dbError(err)
	}
	if !appt.GetProvider().Equal(p) {
		return nil, apperr.Forbidden("Only the appointment's provider can issue prescriptions")
	}

	stored, err := s.saveAttachment(ctx, owner.Username, in.File)
	if err != nil {
		return nil, err
	}

	rx := &models.Prescription{
		AppointmentID:   appt.ID,
		PatientID:       appt.PatientID,
		ProviderKind:    p.Kind,
		ProviderID:      p.ID,
		Name:            strings.TrimSpace(in.Name),
		Type:            strings.TrimSpace(in.Type),
		Description:     strings.TrimSpace(in.Description),
		File:            stored.Name,
		FileContentType: stored.ContentType,
		IsActive:        true,
	}
	if err := s.conn(ctx).Create(rx).Error; err != nil {
		s.removeFiles(ctx, s.files, owner.Username, stored.Name)
		return nil, dbError(err)
	}

	s.publish(ctx, events.PrescriptionCreated, map[string]interface{}{
		"prescription_id": rx.ID,
		"appointment_id":  appt.ID,
		"patient_id":      appt.PatientID,
	})
	return rx, nil
}

// ownedPrescription loads a live prescription whose appointment belongs to p.
func (s *ClinicalService) ownedPrescription(ctx context.Context, p models.Provider, id string) (*models.Prescription, error) {
	var rx models.Prescription
	if err := s.conn(ctx).Preload("Appointment").Where("id = ? AND is_deleted = ?", id, false).First(&rx).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Prescription not found")
		}
		return nil, dbError(err)
	}
	if !rx.Appointment.GetProvider().Equal(p) {
		return nil, apperr.Forbidden("Only the appointment's provider can change this prescription")
	}
	return &rx, nil
}

// UpdatePrescription applies the set fields.
func (s *ClinicalService) UpdatePrescription(ctx context.Context, owner *models.Identity, p models.Provider, id string, in PrescriptionUpdate) (*models.Prescription, error) {
	if err := checkAttachment(in.File); err != nil {
		return nil, err
	}
	rx, err := s.ownedPrescription(ctx, p, id)
	if err != nil {
		return nil, err
	}

	stored, err := s.saveAttachment(ctx, owner.Username, in.File)
	if err != nil {
		return nil, err
	}
	in.Name.ApplyTo(&rx.Name)
	in.Type.ApplyTo(&rx.Type)
	in.Description.ApplyTo(&rx.Description)
	if stored.Name != "" {
		rx.File, rx.FileContentType = stored.Name, stored.ContentType
	}

	err = s.conn(ctx).Model(&models.Prescription{}).Where("id = ?", rx.ID).Updates(map[string]interface{}{
		"name":              rx.Name,
		"type":              rx.Type,
		"description":       rx.Description,
		"file":              rx.File,
		"file_content_type": rx.FileContentType,
		"updated_at":        s.now(),
	}).Error
	if err != nil {
		s.removeFiles(ctx, s.files, owner.Username, stored.Name)
		return nil, dbError(err)
	}
	return rx, nil
}

// TogglePrescription flips the active flag.
func (s *ClinicalService) TogglePrescription(ctx context.Context, p models.Provider, id string) (*models.Prescription, error) {
	rx, err := s.ownedPrescription(ctx, p, id)
	if err != nil {
		return nil, err
	}
	rx.IsActive = !rx.IsActive
	if err := s.conn(ctx).Model(&models.Prescription{}).Where("id = ?", rx.ID).Update("is_active", rx.IsActive).Error; err != nil {
		return nil, dbError(err)
	}
	return rx, nil
}

// DeletePrescription soft-deletes a prescription.
func (s *ClinicalService) DeletePrescription(ctx context.Context, p models.Provider, id string) error {
	rx, err := s.ownedPrescription(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.conn(ctx).Model(&models.Prescription{}).Where("id = ?", rx.ID).Update("is_deleted", true).Error; err != nil {
		return dbError(err)
	}
	return nil
}

// ListPrescriptionsForPatient returns the patient's prescriptions with
// provider details.
func (s *ClinicalService) ListPrescriptionsForPatient(ctx context.Context, patientID string, opts ListOptions) ([]models.PrescriptionView, error) {
	var list []models.Prescription
	q := opts.scope(s.conn(ctx).Preload("Appointment").Where("patient_id = ?", patientID))
	if err := q.Order("created_at").Find(&list).Error; err != nil {
		return nil, dbError(err)
	}

	owners := make([]models.Provider, len(list))
	for i := range list {
		owners[i] = list[i].GetProvider()
	}
	summaries, err := s.profiles.summaries(ctx, owners)
	if err != nil {
		return nil, err
	}

	views := make([]models.PrescriptionView, len(list))
	for i, rx := range list {
		views[i] = models.PrescriptionView{
			Prescription:    rx,
			ProviderSummary: summaries[i],
			AppointmentName: rx.Appointment.Name,
		}
	}
	return views, nil
}

// MedicalHistoryInput records a patient's clinical background.
type MedicalHistoryInput struct {
	PatientUsername string
	Allergies       []string
	Medications     []string
	Surgeries       []string
	Conditions      []string
	Immunizations   []string
	Smoking         string
	Alcohol         string
	Exercise        string
	Notes           string
}

// CreateMedicalHistory records a history entry for a patient.
func (s *ClinicalService) CreateMedicalHistory(ctx context.Context, p models.Provider, in MedicalHistoryInput) (*models.MedicalHistory, error) {
	if missing(in.PatientUsername) {
		return nil, apperr.InvalidInput("Missing required data")
	}
	smoking := models.SmokingStatus(strings.ToLower(strings.TrimSpace(in.Smoking)))
	if smoking != "" && !smoking.Valid() {
		return nil, apperr.InvalidInput("Invalid smoking status, should be never, former or current")
	}
	alcohol := models.AlcoholUse(strings.ToLower(strings.TrimSpace(in.Alcohol)))
	if alcohol != "" && !alcohol.Valid() {
		return nil, apperr.InvalidInput("Invalid alcohol use, should be none, occasional or regular")
	}
	exercise := models.ExerciseLevel(strings.ToLower(strings.TrimSpace(in.Exercise)))
	if exercise != "" && !exercise.Valid() {
		return nil, apperr.InvalidInput("Invalid exercise level, should be none, light, moderate or intense")
	}

	patient, err := s.profiles.PatientByUsername(ctx, in.PatientUsername)
	if err != nil {
		return nil, err
	}

	record := &models.MedicalHistory{
		PatientID:     patient.ID,
		ProviderKind:  p.Kind,
		ProviderID:    p.ID,
		Allergies:     datatypes.NewJSONSlice(cleanList(in.Allergies)),
		Medications:   datatypes.NewJSONSlice(cleanList(in.Medications)),
		Surgeries:     datatypes.NewJSONSlice(cleanList(in.Surgeries)),
		Conditions:    datatypes.NewJSONSlice(cleanList(in.Conditions)),
		Immunizations: datatypes.NewJSONSlice(cleanList(in.Immunizations)),
		Smoking:       smoking,
		Alcohol:       alcohol,
		Exercise:      exercise,
		Notes:         strings.TrimSpace(in.Notes),
		RecordedAt:    s.now(),
		IsActive:      true,
	}
	if err := s.conn(ctx).Create(record).Error; err != nil {
		return nil, dbError(err)
	}
	return record, nil
}

// ListMedicalHistory returns a patient's history entries, oldest first.
func (s *ClinicalService) ListMedicalHistory(ctx context.Context, patientID string, opts ListOptions) ([]models.MedicalHistory, error) {
	var out []models.MedicalHistory
	q := opts.scope(s.conn(ctx).Where("patient_id = ?", patientID))
	if err := q.Order("recorded_at").Find(&out).Error; err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
