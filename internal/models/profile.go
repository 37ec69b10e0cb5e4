package models

import (
	"strings"

	"gorm.io/datatypes"
)

// Gender enum
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is an accepted gender value.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// PersonDetails holds the columns doctor and patient profiles share.
type PersonDetails struct {
	FirstName      string         `gorm:"size:25" json:"firstName"`
	MiddleName     string         `gorm:"size:25" json:"middleName,omitempty"`
	LastName       string         `gorm:"size:25" json:"lastName"`
	Gender         Gender         `gorm:"size:10" json:"gender"`
	DateOfBirth    datatypes.Date `json:"dateOfBirth"`
	Phone          string         `gorm:"uniqueIndex;size:15;not null" json:"phone"`
	Address        string         `gorm:"size:120" json:"address"`
	City           string         `gorm:"size:25" json:"city,omitempty"`
	State          string         `gorm:"size:25" json:"state,omitempty"`
	ZipCode        string         `gorm:"size:10" json:"zipCode"`
	ProfilePicture string         `gorm:"size:255" json:"profilePicture,omitempty"`
	BannerPicture  string         `gorm:"size:255" json:"bannerPicture,omitempty"`
}

// DisplayName joins the non-empty name parts.
func (p PersonDetails) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.FirstName, p.MiddleName, p.LastName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// DoctorProfile extends a doctor identity.
type DoctorProfile struct {
	BaseModel
	UserID string `gorm:"uniqueIndex;size:36;not null" json:"userId"`
	PersonDetails
	Specialty     string `gorm:"size:100" json:"specialty"`
	LicenseNumber string `gorm:"size:50" json:"licenseNumber,omitempty"`
	Qualification string `gorm:"size:200" json:"qualification,omitempty"`
	Bio           string `gorm:"size:255" json:"bio,omitempty"`
	IsDeleted     bool   `gorm:"default:false" json:"isDeleted"`

	User Identity `gorm:"foreignKey:UserID" json:"-"`
}

// PatientProfile extends a patient identity.
type PatientProfile struct {
	BaseModel
	UserID string `gorm:"uniqueIndex;size:36;not null" json:"userId"`
	PersonDetails
	AboutMe   string `gorm:"size:255" json:"aboutMe,omitempty"`
	IsDeleted bool   `gorm:"default:false" json:"isDeleted"`

	User Identity `gorm:"foreignKey:UserID" json:"-"`
}

// RedCrossProfile extends a relief organization identity.
type RedCrossProfile struct {
	BaseModel
	UserID    string  `gorm:"uniqueIndex;size:36;not null" json:"userId"`
	Name      string  `gorm:"size:100;not null" json:"redCrossName"`
	Phone     string  `gorm:"uniqueIndex;size:15;not null" json:"redCrossPhone"`
	Email     *string `gorm:"uniqueIndex;size:120" json:"redCrossEmail,omitempty"`
	Address   string  `gorm:"size:120" json:"redCrossAddress"`
	ZipCode   string  `gorm:"size:10" json:"redCrossZipCode"`
	Logo      string  `gorm:"size:255" json:"redCrossLogo,omitempty"`
	Banner    string  `gorm:"size:255" json:"redCrossBanner,omitempty"`
	IsDeleted bool    `gorm:"default:false" json:"isDeleted"`

	User Identity `gorm:"foreignKey:UserID" json:"-"`
}

// TableName keeps the organization table name short.
func (RedCrossProfile) TableName() string {
	return "red_cross_profiles"
}

// ProfileView is the public shape returned by profile lookups by username.
type ProfileView struct {
	Username string      `json:"username"`
	IsActive bool        `json:"isActive"`
	Profile  interface{} `json:"profile"`
}
