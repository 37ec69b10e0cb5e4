package models

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// BaseModel contains common columns for all tables
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate will set a UUID rather than numeric ID
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	return nil
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string
	DSN    string
	Silent bool
}

// Dialector picks the gorm driver for the configured backend.
func Dialector(config DatabaseConfig) (gorm.Dialector, error) {
	switch config.Driver {
	case "", "mysql":
		return mysql.Open(config.DSN), nil
	case "postgres":
		return postgres.Open(config.DSN), nil
	case "sqlite":
		return sqlite.Open(config.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

// Open connects to the database without migrating it.
func Open(config DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(config)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{TranslateError: true}
	if config.Silent {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	return gorm.Open(dialector, gormConfig)
}

// Migrate creates or updates every table the server owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Identity{},
		&Session{},
		&DoctorProfile{},
		&PatientProfile{},
		&RedCrossProfile{},
		&WorkingHours{},
		&Appointment{},
		&Document{},
		&Prescription{},
		&MedicalHistory{},
		&Certificate{},
		&ChatRoom{},
		&Message{},
	); err != nil {
		return err
	}
	return releaseDeletedKeys(db)
}

// releaseDeletedKeys drops the uniqueness indexes that predate the live
// marker and clears the marker on rows that were already deleted.
func releaseDeletedKeys(db *gorm.DB) error {
	legacy := []struct {
		model interface{}
		index string
	}{
		{&Appointment{}, "idx_appointment_slot"},
		{&Document{}, "idx_document_patient_name"},
	}
	for _, l := range legacy {
		if db.Migrator().HasIndex(l.model, l.index) {
			if err := db.Migrator().DropIndex(l.model, l.index); err != nil {
				return err
			}
		}
	}

	for _, model := range []interface{}{&Appointment{}, &Document{}} {
		err := db.Model(model).
			Where("is_deleted = ? AND live IS NOT NULL", true).
			Update("live", nil).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// InitDB initializes database connection
func InitDB(config DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(config)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}
