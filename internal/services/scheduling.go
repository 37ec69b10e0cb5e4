package services

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/events"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"

	"gorm.io/datatypes"
)

// SchedulingService manages working hours and appointments.
type SchedulingService struct {
	base
	profiles *ProfileService
}

// WorkingHoursInput creates one weekday window.
type WorkingHoursInput struct {
	Day       string
	StartTime string
	EndTime   string
}

// WorkingHoursUpdate replaces a window. All three fields are required.
type WorkingHoursUpdate struct {
	StartTime optional.String
	EndTime   optional.String
	IsActive  optional.String
}

func (s *SchedulingService) providerScope(p models.Provider) (string, []interface{}) {
	return "provider_kind = ? AND provider_id = ?", []interface{}{p.Kind, p.ID}
}

// CreateWorkingHours adds the provider's window for a weekday.
func (s *SchedulingService) CreateWorkingHours(ctx context.Context, p models.Provider, in WorkingHoursInput) (*models.WorkingHours, error) {
	if missing(in.Day, in.StartTime, in.EndTime) {
		return nil, apperr.InvalidInput("Missing required data")
	}
	day, ok := models.NormalizeDay(in.Day)
	if !ok {
		return nil, apperr.InvalidInput("Invalid day")
	}
	start, end, err := parseWindow(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	db := s.conn(ctx)
	where, args := s.providerScope(p)
	var count int64
	if err := db.Model(&models.WorkingHours{}).Where(where, args...).Where("day = ?", day).Count(&count).Error; err != nil {
		return nil, dbError(err)
	}
	if count > 0 {
		return nil, apperr.Conflict("Day already exists")
	}

	wh := &models.WorkingHours{
		ProviderKind: p.Kind,
		ProviderID:   p.ID,
		Day:          day,
		StartTime:    start,
		EndTime:      end,
		IsActive:     true,
	}
	if err := db.Create(wh).Error; err != nil {
		return nil, apperr.FromStore(err, "Day already exists")
	}
	return wh, nil
}

// parseWindow reads a working window. An end before the start is an
// overnight shift.
func parseWindow(startValue, endValue string) (start, end datatypes.Time, err error) {
	if start, err = parseWorkTime(startValue); err != nil {
		return
	}
	end, err = parseWorkTime(endValue)
	return
}

func (s *SchedulingService) workingHoursFor(ctx context.Context, p models.Provider, day string) (*models.WorkingHours, error) {
	normalized, ok := models.NormalizeDay(day)
	if !ok {
		return nil, apperr.InvalidInput("Invalid day")
	}
	where, args := s.providerScope(p)
	var wh models.WorkingHours
	if err := s.conn(ctx).Where(where, args...).Where("day = ?", normalized).First(&wh).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Workday not found")
		}
		return nil, dbError(err)
	}
	return &wh, nil
}

// UpdateWorkingHours rewrites start, end and the active flag of a weekday.
func (s *SchedulingService) UpdateWorkingHours(ctx context.Context, p models.Provider, day string, in WorkingHoursUpdate) (*models.WorkingHours, error) {
	if !in.StartTime.IsSet() || !in.EndTime.IsSet() || !in.IsActive.IsSet() {
		return nil, apperr.InvalidInput("Missing required data")
	}
	start, end, err := parseWindow(in.StartTime.Value(), in.EndTime.Value())
	if err != nil {
		return nil, err
	}
	active, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(in.IsActive.Value())))
	if err != nil {
		return nil, apperr.InvalidInput("is_active must be true or false")
	}

	wh, err := s.workingHoursFor(ctx, p, day)
	if err != nil {
		return nil, err
	}
	wh.StartTime, wh.EndTime, wh.IsActive = start, end, active
	if err := s.conn(ctx).Save(wh).Error; err != nil {
		return nil, dbError(err)
	}
	return wh, nil
}

// ToggleWorkingHours flips the active flag of a weekday.
func (s *SchedulingService) ToggleWorkingHours(ctx context.Context, p models.Provider, day string) (*models.WorkingHours, error) {
	wh, err := s.workingHoursFor(ctx, p, day)
	if err != nil {
		return nil, err
	}
	wh.IsActive = !wh.IsActive
	if err := s.conn(ctx).Model(wh).Update("is_active", wh.IsActive).Error; err != nil {
		return nil, dbError(err)
	}
	return wh, nil
}

// ListWorkingHours returns a provider's windows in weekday order.
func (s *SchedulingService) ListWorkingHours(ctx context.Context, kind models.ProviderKind, username string) ([]models.WorkingHours, error) {
	p, err := s.profiles.ProviderByUsername(ctx, kind, username)
	if err != nil {
		return nil, err
	}
	where, args := s.providerScope(p)
	var out []models.WorkingHours
	if err := s.conn(ctx).Where(where, args...).Find(&out).Error; err != nil {
		return nil, dbError(err)
	}
	order := make(map[string]int, len(models.Weekdays))
	for i, d := range models.Weekdays {
		order[d] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i].Day] < order[out[j].Day] })
	return out, nil
}

// AppointmentInput creates an appointment for a patient named by username.
type AppointmentInput struct {
	PatientUsername string
	Name            string
	Type            string
	Date            string
	Time            string
	Description     string
}

// AppointmentUpdate changes an appointment. Name is required; the rest
// apply only when present and non-blank.
type AppointmentUpdate struct {
	Name        optional.String
	Type        optional.String
	Description optional.String
	Date        optional.String
	Time        optional.String
	Status      optional.String
}

// CreateAppointment books a slot. A provider cannot book the same patient
// twice at the same date and time.
func (s *SchedulingService) CreateAppointment(ctx context.Context, p models.Provider, in AppointmentInput) (*models.Appointment, error) {
	if missing(in.PatientUsername, in.Name, in.Type, in.Date, in.Time) {
		return nil, apperr.InvalidInput("Missing required data")
	}
	kind := models.AppointmentType(strings.ToLower(strings.TrimSpace(in.Type)))
	if !kind.Valid() {
		return nil, apperr.InvalidInput("Invalid appointment type, should be in-person or telemedicine")
	}

	patient, err := s.profiles.PatientByUsername(ctx, in.PatientUsername)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(in.Date, invalidDate)
	if err != nil {
		return nil, err
	}
	clock, err := parseClock(in.Time)
	if err != nil {
		return nil, err
	}

	taken, err := s.slotTaken(ctx, p, patient.ID, date, clock, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("Appointment already exists")
	}

	appt := &models.Appointment{
		PatientID:    patient.ID,
		ProviderKind: p.Kind,
		ProviderID:   p.ID,
		Type:         kind,
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Date:         date,
		Time:         clock,
		Status:       models.StatusScheduled,
		IsActive:     true,
	}
	if err := s.conn(ctx).Create(appt).Error; err != nil {
		return nil, apperr.FromStore(err, "Appointment already exists")
	}

	s.publish(ctx, events.AppointmentCreated, map[string]interface{}{
		"appointment_id": appt.ID,
		"provider_kind":  string(p.Kind),
		"provider_id":    p.ID,
		"patient_id":     patient.ID,
	})
	return appt, nil
}

func (s *SchedulingService) slotTaken(ctx context.Context, p models.Provider, patientID string, date datatypes.Date, clock datatypes.Time, exceptID string) (bool, error) {
	where, args := s.providerScope(p)
	q := s.conn(ctx).Model(&models.Appointment{}).Where(where, args...).
		Where("patient_id = ? AND appointment_date = ? AND appointment_time = ? AND is_deleted = ?", patientID, date, clock, false)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

// appointmentByName finds a live appointment by the provider's own name for it.
func (s *SchedulingService) appointmentByName(ctx context.Context, p models.Provider, name string) (*models.Appointment, error) {
	where, args := s.providerScope(p)
	var appt models.Appointment
	err := s.conn(ctx).Where(where, args...).
		Where("name = ? AND is_deleted = ?", name, false).
		Order("created_at").
		First(&appt).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Appointment not found")
		}
		return nil, dbError(err)
	}
	return &appt, nil
}

// UpdateAppointment renames an appointment and applies the other set fields.
func (s *SchedulingService) UpdateAppointment(ctx context.Context, p models.Provider, name string, in AppointmentUpdate) (*models.Appointment, error) {
	appt, err := s.appointmentByName(ctx, p, name)
	if err != nil {
		return nil, err
	}
	newName, ok := in.Name.Get()
	if !ok {
		return nil, apperr.InvalidInput("Missing required data: appointment_name")
	}

	if t, ok := in.Type.Get(); ok {
		kind := models.AppointmentType(strings.ToLower(t))
		if !kind.Valid() {
			return nil, apperr.InvalidInput("Invalid appointment type, should be in-person or telemedicine")
		}
		appt.Type = kind
	}
	if st, ok := in.Status.Get(); ok {
		status := models.AppointmentStatus(strings.ToLower(st))
		if !status.Valid() {
			return nil, apperr.InvalidInput("Invalid appointment status")
		}
		appt.Status = status
	}
	if d, ok := in.Date.Get(); ok {
		if appt.Date, err = parseDate(d, invalidDate); err != nil {
			return nil, err
		}
	}
	if t, ok := in.Time.Get(); ok {
		if appt.Time, err = parseClock(t); err != nil {
			return nil, err
		}
	}
	in.Description.ApplyTo(&appt.Description)
	appt.Name = newName

	if in.Date.IsSet() || in.Time.IsSet() {
		taken, err := s.slotTaken(ctx, p, appt.PatientID, appt.Date, appt.Time, appt.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("Appointment already exists")
		}
	}

	appt.UpdatedAt = s.now()
	if err := s.conn(ctx).Save(appt).Error; err != nil {
		return nil, apperr.FromStore(err, "Appointment already exists")
	}

	s.publish(ctx, events.AppointmentUpdated, map[string]interface{}{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
	})
	return appt, nil
}

// ToggleAppointment flips the active flag.
func (s *SchedulingService) ToggleAppointment(ctx context.Context, p models.Provider, name string) (*models.Appointment, error) {
	appt, err := s.appointmentByName(ctx, p, name)
	if err != nil {
		return nil, err
	}
	appt.IsActive = !appt.IsActive
	if err := s.conn(ctx).Model(appt).Update("is_active", appt.IsActive).Error; err != nil {
		return nil, dbError(err)
	}
	return appt, nil
}

// DeleteAppointment soft-deletes an appointment and frees its slot.
func (s *SchedulingService) DeleteAppointment(ctx context.Context, p models.Provider, name string) error {
	appt, err := s.appointmentByName(ctx, p, name)
	if err != nil {
		return err
	}
	release := map[string]interface{}{"is_deleted": true, "live": nil}
	if err := s.conn(ctx).Model(appt).Updates(release).Error; err != nil {
		return dbError(err)
	}
	s.publish(ctx, events.AppointmentDeleted, map[string]interface{}{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
	})
	return nil
}

// GetAppointment looks an appointment up by id, soft-deleted or not.
func (s *SchedulingService) GetAppointment(ctx context.Context, p models.Provider, id string) (*models.AppointmentView, error) {
	where, args := s.providerScope(p)
	var appt models.Appointment
	if err := s.conn(ctx).Where(where, args...).Where("id = ?", id).First(&appt).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Appointment not found")
		}
		return nil, dbError(err)
	}
	views, err := s.annotate(ctx, []models.Appointment{appt})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListForProvider returns the provider's appointments.
func (s *SchedulingService) ListForProvider(ctx context.Context, p models.Provider, opts ListOptions) ([]models.AppointmentView, error) {
	where, args := s.providerScope(p)
	var appts []models.Appointment
	q := opts.scope(s.conn(ctx).Where(where, args...))
	if err := q.Order("appointment_date, appointment_time").Find(&appts).Error; err != nil {
		return nil, dbError(err)
	}
	return s.annotate(ctx, appts)
}

// ListForPatient returns the patient's appointments with provider details.
func (s *SchedulingService) ListForPatient(ctx context.Context, patientID string, opts ListOptions) ([]models.AppointmentView, error) {
	var appts []models.Appointment
	q := opts.scope(s.conn(ctx).Where("patient_id = ?", patientID))
	if err := q.Order("appointment_date, appointment_time").Find(&appts).Error; err != nil {
		return nil, dbError(err)
	}
	return s.annotate(ctx, appts)
}

func (s *SchedulingService) annotate(ctx context.Context, appts []models.Appointment) ([]models.AppointmentView, error) {
	owners := make([]models.Provider, len(appts))
	patientIDs := make([]string, 0, len(appts))
	for i := range appts {
		owners[i] = appts[i].GetProvider()
		patientIDs = append(patientIDs, appts[i].PatientID)
	}
	summaries, err := s.profiles.summaries(ctx, owners)
	if err != nil {
		return nil, err
	}

	var patients []models.PatientProfile
	if len(patientIDs) > 0 {
		if err := s.conn(ctx).Preload("User").Where("id IN ?", patientIDs).Find(&patients).Error; err != nil {
			return nil, dbError(err)
		}
	}
	byID := make(map[string]models.PatientProfile, len(patients))
	for _, pt := range patients {
		byID[pt.ID] = pt
	}

	views := make([]models.AppointmentView, len(appts))
	for i, a := range appts {
		views[i] = models.AppointmentView{Appointment: a, ProviderSummary: summaries[i]}
		if pt, ok := byID[a.PatientID]; ok {
			views[i].PatientName = pt.DisplayName()
			views[i].PatientUsername = pt.User.Username
		}
	}
	return views, nil
}

// summaries resolves display fields for each provider reference, falling
// back to "Unknown" when a profile cannot be loaded.
func (s *ProfileService) summaries(ctx context.Context, owners []models.Provider) ([]models.ProviderSummary, error) {
	var doctorIDs, orgIDs []string
	for _, p := range owners {
		if p.Kind == models.ProviderDoctor {
			doctorIDs = append(doctorIDs, p.ID)
		} else {
			orgIDs = append(orgIDs, p.ID)
		}
	}

	found := make(map[models.Provider]models.ProviderSummary)
	if len(doctorIDs) > 0 {
		var doctors []models.DoctorProfile
		if err := s.conn(ctx).Where("id IN ?", doctorIDs).Find(&doctors).Error; err != nil {
			return nil, dbError(err)
		}
		for _, d := range doctors {
			p := models.DoctorProvider(d.ID)
			sum := models.UnknownSummary(p.Source())
			sum.FirstName, sum.MiddleName, sum.LastName = d.FirstName, d.MiddleName, d.LastName
			if name := d.DisplayName(); name != "" {
				sum.ProviderName = name
			}
			found[p] = sum
		}
	}
	if len(orgIDs) > 0 {
		var orgs []models.RedCrossProfile
		if err := s.conn(ctx).Where("id IN ?", orgIDs).Find(&orgs).Error; err != nil {
			return nil, dbError(err)
		}
		for _, o := range orgs {
			p := models.RedCrossProvider(o.ID)
			sum := models.UnknownSummary(p.Source())
			if o.Name != "" {
				sum.ProviderName, sum.RedCrossName = o.Name, o.Name
			}
			found[p] = sum
		}
	}

	out := make([]models.ProviderSummary, len(owners))
	for i, p := range owners {
		sum, ok := found[p]
		if !ok {
			sum = models.UnknownSummary(p.Source())
		}
		out[i] = sum
	}
	return out, nil
}
