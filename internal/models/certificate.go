package models

import (
	"time"

	"gorm.io/datatypes"
)

// Certificate is a credential a provider publishes on its profile.
type Certificate struct {
	BaseModel
	ProviderKind ProviderKind    `gorm:"size:20;not null;uniqueIndex:idx_certificate_provider_name" json:"providerKind"`
	ProviderID   string          `gorm:"size:36;not null;uniqueIndex:idx_certificate_provider_name" json:"providerId"`
	Name         string          `gorm:"size:100;not null;uniqueIndex:idx_certificate_provider_name" json:"name"`
	Number       string          `gorm:"size:50" json:"number,omitempty"`
	IssueDate    datatypes.Date  `gorm:"not null" json:"issueDate"`
	ExpiryDate   *datatypes.Date `json:"expiryDate,omitempty"`
	Picture      string          `gorm:"size:255" json:"picture,omitempty"`
	IsActive     bool            `gorm:"default:true" json:"isActive"`
	IsDeleted    bool            `gorm:"default:false" json:"isDeleted"`
}

// GetProvider returns the owning provider.
func (c *Certificate) GetProvider() Provider {
	return Provider{Kind: c.ProviderKind, ID: c.ProviderID}
}

// DatesOrdered reports whether the issue date does not come after the expiry date.
func (c *Certificate) DatesOrdered() bool {
	if c.ExpiryDate == nil {
		return true
	}
	return !time.Time(c.IssueDate).After(time.Time(*c.ExpiryDate))
}
