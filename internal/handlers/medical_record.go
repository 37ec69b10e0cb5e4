package handlers

import (
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ClinicalHandler handles documents, prescriptions and medical history.
type ClinicalHandler struct {
	base
}

// NewClinicalHandler creates a new ClinicalHandler.
func NewClinicalHandler(svc *services.Services, cfg *config.Config, log *logrus.Logger) *ClinicalHandler {
	return &ClinicalHandler{base{Svc: svc, Cfg: cfg, Log: log}}
}

// CreateDocument attaches a document to one of the caller's appointments.
func (h *ClinicalHandler) CreateDocument(c *gin.Context) {
	identity, p, ok := h.provider(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	file, err := files.get("document_file")
	if err != nil {
		h.fail(c, err)
		return
	}

	doc, err := h.Svc.Clinical.CreateDocument(c.Request.Context(), identity, p, services.DocumentInput{
		AppointmentName: c.PostForm("appointment_name"),
		Name:            c.PostForm("document_name"),
		Type:            c.PostForm("document_type"),
		Description:     c.PostForm("document_description"),
		URL:             c.PostForm("document_url"),
		File:            file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Document created", doc)
}

// UpdateDocument renames the document named in the path and applies the
// other submitted fields.
func (h *ClinicalHandler) UpdateDocument(c *gin.Context) {
	identity, p, ok := h.provider(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	file, err := files.get("document_file")
	if err != nil {
		h.fail(c, err)
		return
	}

	doc, err := h.Svc.Clinical.UpdateDocument(c.Request.Context(), identity, p, c.Param("name"), services.DocumentUpdate{
		PatientUsername: formField(c, "patient_username"),
		Name:            formField(c, "document_name"),
		Type:            formField(c, "document_type"),
		Description:     formField(c, "document_description"),
		URL:             formField(c, "document_url"),
		File:            file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Document updated", doc)
}

// ToggleDocument flips the active flag of a document.
func (h *ClinicalHandler) ToggleDocument(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	doc, err := h.Svc.Clinical.ToggleDocument(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Document deactivated"
	if doc.IsActive {
		message = "Document activated"
	}
	utils.Success(c, message, doc)
}

// DeleteDocument soft-deletes a document.
func (h *ClinicalHandler) DeleteDocument(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	if err := h.Svc.Clinical.DeleteDocument(c.Request.Context(), p, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Document deleted", nil)
}

// ListPatientDocuments returns the calling patient's documents.
func (h *ClinicalHandler) ListPatientDocuments(c *gin.Context) {
	patient, ok := h.patient(c)
	if !ok {
		return
	}
	docs, err := h.Svc.Clinical.ListDocumentsForPatient(c.Request.Context(), patient.ID, listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Documents retrieved", docs)
}

// CreatePrescription issues a prescription on one of the caller's appointments.
func (h *ClinicalHandler) CreatePrescription(c *gin.Context) {
	identity, p, ok := h.provider(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	file, err := files.get("prescription_file")
	if err != nil {
		h.fail(c, err)
		return
	}

	rx, err := h.Svc.Clinical.CreatePrescription(c.Request.Context(), identity, p, services.PrescriptionInput{
		AppointmentID: c.PostForm("appointment_id"),
		Name:          c.PostForm("prescription_name"),
		Type:          c.PostForm("prescription_type"),
		Description:   c.PostForm("prescription_description"),
		File:          file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Prescription created", rx)
}

// UpdatePrescription applies the submitted fields to a prescription.
func (h *ClinicalHandler) UpdatePrescription(c *gin.Context) {
	identity, p, ok := h.provider(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	file, err := files.get("prescription_file")
	if err != nil {
		h.fail(c, err)
		return
	}

	rx, err := h.Svc.Clinical.UpdatePrescription(c.Request.Context(), identity, p, c.Param("id"), services.PrescriptionUpdate{
		Name:        formField(c, "prescription_name"),
		Type:        formField(c, "prescription_type"),
		Description: formField(c, "prescription_description"),
		File:        file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Prescription updated", rx)
}

// TogglePrescription flips the active flag of a prescription.
func (h *ClinicalHandler) TogglePrescription(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	rx, err := h.Svc.Clinical.TogglePrescription(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Prescription deactivated"
	if rx.IsActive {
		message = "Prescription activated"
	}
	utils.Success(c, message, rx)
}

// DeletePrescription soft-deletes a prescription.
func (h *ClinicalHandler) DeletePrescription(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	if err := h.Svc.Clinical.DeletePrescription(c.Request.Context(), p, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Prescription deleted", nil)
}

// ListPatientPrescriptions returns the calling patient's prescriptions with
// their source annotated.
func (h *ClinicalHandler) ListPatientPrescriptions(c *gin.Context) {
	patient, ok := h.patient(c)
	if !ok {
		return
	}
	views, err := h.Svc.Clinical.ListPrescriptionsForPatient(c.Request.Context(), patient.ID, listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Prescriptions retrieved", views)
}

// MedicalHistoryRequest represents the request body for a history record.
type MedicalHistoryRequest struct {
	PatientUsername string   `json:"username"`
	Allergies       []string `json:"allergies" binding:"max=50,dive,max=100"`
	Medications     []string `json:"medications" binding:"max=50,dive,max=100"`
	Surgeries       []string `json:"surgeries" binding:"max=50,dive,max=100"`
	Conditions      []string `json:"conditions" binding:"max=50,dive,max=100"`
	Immunizations   []string `json:"immunizations" binding:"max=50,dive,max=100"`
	Smoking         string   `json:"smoking"`
	Alcohol         string   `json:"alcohol"`
	Exercise        string   `json:"exercise"`
	Notes           string   `json:"notes" binding:"max=2000"`
}

// CreateMedicalHistory records a history entry for a patient.
func (h *ClinicalHandler) CreateMedicalHistory(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	var req MedicalHistoryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	record, err := h.Svc.Clinical.CreateMedicalHistory(c.Request.Context(), p, services.MedicalHistoryInput{
		PatientUsername: req.PatientUsername,
		Allergies:       req.Allergies,
		Medications:     req.Medications,
		Surgeries:       req.Surgeries,
		Conditions:      req.Conditions,
		Immunizations:   req.Immunizations,
		Smoking:         req.Smoking,
		Alcohol:         req.Alcohol,
		Exercise:        req.Exercise,
		Notes:           req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Medical history created", record)
}

// ListPatientMedicalHistory returns the calling patient's history records.
func (h *ClinicalHandler) ListPatientMedicalHistory(c *gin.Context) {
	patient, ok := h.patient(c)
	if !ok {
		return
	}
	records, err := h.Svc.Clinical.ListMedicalHistory(c.Request.Context(), patient.ID, listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Medical history retrieved", records)
}
