package models

import (
	"strings"

	"gorm.io/datatypes"
)

// Weekdays lists the accepted day names in title case.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// NormalizeDay title-cases a weekday name and reports whether it is valid.
func NormalizeDay(day string) (string, bool) {
	day = strings.TrimSpace(day)
	if day == "" {
		return "", false
	}
	normalized := strings.ToUpper(day[:1]) + strings.ToLower(day[1:])
	for _, d := range Weekdays {
		if d == normalized {
			return normalized, true
		}
	}
	return normalized, false
}

// WorkingHours is one availability window per provider and weekday.
type WorkingHours struct {
	BaseModel
	ProviderKind ProviderKind   `gorm:"size:20;not null;uniqueIndex:idx_working_hours_provider_day" json:"providerKind"`
	ProviderID   string         `gorm:"size:36;not null;uniqueIndex:idx_working_hours_provider_day" json:"providerId"`
	Day          string         `gorm:"size:10;not null;uniqueIndex:idx_working_hours_provider_day" json:"day"`
	StartTime    datatypes.Time `json:"startTime"`
	EndTime      datatypes.Time `json:"endTime"`
	IsActive     bool           `gorm:"default:true" json:"isActive"`
}

// TableName overrides the pluralized default.
func (WorkingHours) TableName() string {
	return "working_hours"
}

// GetProvider returns the owning provider.
func (w *WorkingHours) GetProvider() Provider {
	return Provider{Kind: w.ProviderKind, ID: w.ProviderID}
}
