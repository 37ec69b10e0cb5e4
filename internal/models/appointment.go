package models

import (
	"gorm.io/datatypes"
)

// AppointmentType enum
type AppointmentType string

const (
	AppointmentInPerson     AppointmentType = "in-person"
	AppointmentTelemedicine AppointmentType = "telemedicine"
)

// Valid reports whether t is a known appointment type.
func (t AppointmentType) Valid() bool {
	return t == AppointmentInPerson || t == AppointmentTelemedicine
}

// AppointmentStatus enum
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Appointment represents a scheduled visit between a provider and a patient.
// The name is the provider's own handle for it and is not unique in storage;
// the slot (provider, patient, date, time) is unique among live rows.
type Appointment struct {
	BaseModel
	PatientID    string            `gorm:"size:36;not null;index;uniqueIndex:idx_appointment_live_slot" json:"patientId"`
	ProviderKind ProviderKind      `gorm:"size:20;not null;uniqueIndex:idx_appointment_live_slot;index:idx_appointment_provider_name" json:"providerKind"`
	ProviderID   string            `gorm:"size:36;not null;uniqueIndex:idx_appointment_live_slot;index:idx_appointment_provider_name" json:"providerId"`
	Type         AppointmentType   `gorm:"size:20;not null" json:"type"`
	Name         string            `gorm:"size:100;not null;index:idx_appointment_provider_name" json:"name"`
	Description  string            `gorm:"type:text" json:"description,omitempty"`
	Date         datatypes.Date    `gorm:"column:appointment_date;not null;uniqueIndex:idx_appointment_live_slot" json:"date"`
	Time         datatypes.Time    `gorm:"column:appointment_time;not null;uniqueIndex:idx_appointment_live_slot" json:"time"`
	Status       AppointmentStatus `gorm:"size:20;default:scheduled" json:"status"`
	IsActive     bool              `gorm:"default:true" json:"isActive"`
	IsDeleted    bool              `gorm:"default:false" json:"isDeleted"`
	// Live is NULL once the row is deleted so it drops out of the slot index.
	Live         *bool             `gorm:"default:true;uniqueIndex:idx_appointment_live_slot" json:"-"`

	Patient PatientProfile `gorm:"foreignKey:PatientID" json:"-"`
}

// GetProvider returns the owning provider.
func (a *Appointment) GetProvider() Provider {
	return Provider{Kind: a.ProviderKind, ID: a.ProviderID}
}

// UnknownProvider is shown when a provider profile cannot be loaded.
const UnknownProvider = "Unknown"

// ProviderSummary carries the provider display fields attached to listings.
// Name parts that do not apply to the provider's kind stay "Unknown".
type ProviderSummary struct {
	Source       string `json:"source"`
	ProviderName string `json:"providerName"`
	FirstName    string `json:"firstName"`
	MiddleName   string `json:"middleName"`
	LastName     string `json:"lastName"`
	RedCrossName string `json:"redCrossName"`
}

// UnknownSummary is the summary of a provider whose profile is missing.
func UnknownSummary(source string) ProviderSummary {
	return ProviderSummary{
		Source:       source,
		ProviderName: UnknownProvider,
		FirstName:    UnknownProvider,
		MiddleName:   UnknownProvider,
		LastName:     UnknownProvider,
		RedCrossName: UnknownProvider,
	}
}

// AppointmentView is an appointment annotated with both parties.
type AppointmentView struct {
	Appointment
	ProviderSummary
	PatientUsername string `json:"patientUsername,omitempty"`
	PatientName     string `json:"patientName,omitempty"`
}
