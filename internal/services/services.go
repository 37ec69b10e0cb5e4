// Package services implements the account, profile, scheduling, clinical,
// credential and messaging operations on top of gorm. Every operation is
// scoped to the caller passed in by the HTTP layer and reports failures as
// *apperr.Error.
package services

import (
	"context"
	"strings"
	"time"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/events"
	"ehealthwave-server/internal/realtime"
	"ehealthwave-server/internal/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
	shortClock  = "15:04"
)

// Deps are the collaborators shared by all services.
type Deps struct {
	DB          *gorm.DB
	Files       storage.FileStore
	Broadcaster realtime.Broadcaster
	Events      events.Publisher
	Log         *logrus.Logger
	SessionTTL  time.Duration
	Now         func() time.Time
}

// Services groups the domain services wired from one set of Deps.
type Services struct {
	Identity    *IdentityService
	Profiles    *ProfileService
	Scheduling  *SchedulingService
	Clinical    *ClinicalService
	Credentials *CredentialService
	Messaging   *MessagingService
}

// New wires every service.
func New(d Deps) *Services {
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.SessionTTL == 0 {
		d.SessionTTL = 24 * time.Hour
	}

	b := base{db: d.DB, events: d.Events, log: d.Log, now: d.Now}
	profiles := &ProfileService{base: b, files: d.Files}
	scheduling := &SchedulingService{base: b, profiles: profiles}

	return &Services{
		Identity:    &IdentityService{base: b, ttl: d.SessionTTL},
		Profiles:    profiles,
		Scheduling:  scheduling,
		Clinical:    &ClinicalService{base: b, files: d.Files, profiles: profiles, scheduling: scheduling},
		Credentials: &CredentialService{base: b, files: d.Files, profiles: profiles},
		Messaging:   &MessagingService{base: b, broadcaster: d.Broadcaster, profiles: profiles},
	}
}

// ListOptions controls listing queries.
type ListOptions struct {
	IncludeDeleted bool
}

func (o ListOptions) scope(db *gorm.DB) *gorm.DB {
	if o.IncludeDeleted {
		return db
	}
	return db.Where("is_deleted = ?", false)
}

type base struct {
	db     *gorm.DB
	events events.Publisher
	log    *logrus.Logger
	now    func() time.Time
}

func (b *base) conn(ctx context.Context) *gorm.DB {
	return b.db.WithContext(ctx)
}

// publish is best effort; a broker outage never fails the request.
func (b *base) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if err := b.events.Publish(ctx, eventType, data); err != nil {
		b.log.WithError(err).WithField("event_type", eventType).Warn("event publication failed")
	}
}

func (b *base) removeFiles(ctx context.Context, files storage.FileStore, owner string, names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := files.Remove(ctx, owner, name); err != nil {
			b.log.WithError(err).WithField("file", name).Warn("failed to remove orphaned upload")
		}
	}
}

func dbError(err error) error {
	return apperr.Internal(err, "Database error")
}

func isNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}

func missing(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func parseDate(value, message string) (datatypes.Date, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return datatypes.Date{}, apperr.InvalidInput("%s", message)
	}
	return datatypes.Date(t), nil
}

func parseClock(value string) (datatypes.Time, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, apperr.InvalidInput("Invalid time format, should be HH:MM:SS")
	}
	return datatypes.NewTime(t.Hour(), t.Minute(), t.Second(), 0), nil
}

// parseWorkTime accepts HH:MM as well as HH:MM:SS.
func parseWorkTime(value string) (datatypes.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{clockLayout, shortClock} {
		if t, err := time.Parse(layout, value); err == nil {
			return datatypes.NewTime(t.Hour(), t.Minute(), t.Second(), 0), nil
		}
	}
	return 0, apperr.InvalidInput("Invalid time format, should be HH:MM or HH:MM:SS")
}

const invalidDate = "Invalid date format, should be YYYY-MM-DD"
