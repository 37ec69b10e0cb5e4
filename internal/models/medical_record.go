package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is a file or link attached to an appointment. PatientID is copied
// from the appointment so names can be kept unique per patient in storage.
// Deleted documents release their name.
type Document struct {
	BaseModel
	AppointmentID   string `gorm:"size:36;not null;index" json:"appointmentId"`
	PatientID       string `gorm:"size:36;not null;uniqueIndex:idx_document_live_name" json:"patientId"`
	Name            string `gorm:"size:100;not null;uniqueIndex:idx_document_live_name" json:"name"`
	Type            string `gorm:"size:50;not null" json:"type"`
	Description     string `gorm:"type:text" json:"description,omitempty"`
	File            string `gorm:"size:255" json:"file,omitempty"`
	FileContentType string `gorm:"size:100" json:"fileContentType,omitempty"`
	URL             string `gorm:"size:255" json:"url,omitempty"`
	IsActive        bool   `gorm:"default:true" json:"isActive"`
	IsDeleted       bool   `gorm:"default:false" json:"isDeleted"`
	// Live is NULL once the row is deleted so the name can be reused.
	Live            *bool  `gorm:"default:true;uniqueIndex:idx_document_live_name" json:"-"`

	Appointment Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}

// Prescription is issued by the provider of an appointment.
type Prescription struct {
	BaseModel
	AppointmentID   string       `gorm:"size:36;not null;index" json:"appointmentId"`
	PatientID       string       `gorm:"size:36;not null;index" json:"patientId"`
	ProviderKind    ProviderKind `gorm:"size:20;not null" json:"providerKind"`
	ProviderID      string       `gorm:"size:36;not null;index" json:"providerId"`
	Name            string       `gorm:"size:100;not null" json:"name"`
	Type            string       `gorm:"size:50;not null" json:"type"`
	Description     string       `gorm:"type:text" json:"description,omitempty"`
	File            string       `gorm:"size:255" json:"file,omitempty"`
	FileContentType string       `gorm:"size:100" json:"fileContentType,omitempty"`
	IsActive        bool         `gorm:"default:true" json:"isActive"`
	IsDeleted       bool         `gorm:"default:false" json:"isDeleted"`

	Appointment Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
}

// GetProvider returns the issuing provider.
func (p *Prescription) GetProvider() Provider {
	return Provider{Kind: p.ProviderKind, ID: p.ProviderID}
}

// PrescriptionView is a prescription annotated with its provider.
type PrescriptionView struct {
	Prescription
	ProviderSummary
	AppointmentName string `json:"appointmentName,omitempty"`
}

// SmokingStatus enum
type SmokingStatus string

const (
	SmokingNever   SmokingStatus = "never"
	SmokingFormer  SmokingStatus = "former"
	SmokingCurrent SmokingStatus = "current"
)

// AlcoholUse enum
type AlcoholUse string

const (
	AlcoholNone       AlcoholUse = "none"
	AlcoholOccasional AlcoholUse = "occasional"
	AlcoholRegular    AlcoholUse = "regular"
)

// ExerciseLevel enum
type ExerciseLevel string

const (
	ExerciseNone     ExerciseLevel = "none"
	ExerciseLight    ExerciseLevel = "light"
	ExerciseModerate ExerciseLevel = "moderate"
	ExerciseIntense  ExerciseLevel = "intense"
)

// Valid reports whether s is a known smoking status.
func (s SmokingStatus) Valid() bool {
	return s == SmokingNever || s == SmokingFormer || s == SmokingCurrent
}

// Valid reports whether a is a known alcohol use level.
func (a AlcoholUse) Valid() bool {
	return a == AlcoholNone || a == AlcoholOccasional || a == AlcoholRegular
}

// Valid reports whether e is a known exercise level.
func (e ExerciseLevel) Valid() bool {
	switch e {
	case ExerciseNone, ExerciseLight, ExerciseModerate, ExerciseIntense:
		return true
	}
	return false
}

// MedicalHistory is a patient's clinical background recorded by a provider.
type MedicalHistory struct {
	BaseModel
	PatientID     string                      `gorm:"size:36;not null;index" json:"patientId"`
	ProviderKind  ProviderKind                `gorm:"size:20;not null" json:"providerKind"`
	ProviderID    string                      `gorm:"size:36;not null" json:"providerId"`
	Allergies     datatypes.JSONSlice[string] `json:"allergies"`
	Medications   datatypes.JSONSlice[string] `json:"medications"`
	Surgeries     datatypes.JSONSlice[string] `json:"surgeries"`
	Conditions    datatypes.JSONSlice[string] `json:"conditions"`
	Immunizations datatypes.JSONSlice[string] `json:"immunizations"`
	Smoking       SmokingStatus               `gorm:"size:10" json:"smoking,omitempty"`
	Alcohol       AlcoholUse                  `gorm:"size:12" json:"alcohol,omitempty"`
	Exercise      ExerciseLevel               `gorm:"size:10" json:"exercise,omitempty"`
	Notes         string                      `gorm:"type:text" json:"notes,omitempty"`
	RecordedAt    time.Time                   `json:"recordedAt"`
	IsActive      bool                        `gorm:"default:true" json:"isActive"`
	IsDeleted     bool                        `gorm:"default:false" json:"isDeleted"`

	Patient PatientProfile `gorm:"foreignKey:PatientID" json:"-"`
}

// TableName overrides the pluralized default.
func (MedicalHistory) TableName() string {
	return "medical_histories"
}
