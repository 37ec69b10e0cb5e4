package handlers

import (
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SchedulingHandler handles working hours and appointment requests for
// doctors and red cross organizations alike.
type SchedulingHandler struct {
	base
}

// NewSchedulingHandler creates a new SchedulingHandler.
func NewSchedulingHandler(svc *services.Services, cfg *config.Config, log *logrus.Logger) *SchedulingHandler {
	return &SchedulingHandler{base{Svc: svc, Cfg: cfg, Log: log}}
}

// CreateWorkdayRequest represents the request body for a new working day.
type CreateWorkdayRequest struct {
	Day       string `json:"day" binding:"max=10"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CreateWorkday adds a weekday window for the caller.
func (h *SchedulingHandler) CreateWorkday(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	var req CreateWorkdayRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	workday, err := h.Svc.Scheduling.CreateWorkingHours(c.Request.Context(), p, services.WorkingHoursInput{
		Day:       req.Day,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Workday created", workday)
}

// UpdateWorkdayRequest replaces a working day. All fields are required.
type UpdateWorkdayRequest struct {
	StartTime optional.String `json:"start_time"`
	EndTime   optional.String `json:"end_time"`
	IsActive  optional.String `json:"is_active"`
}

// UpdateWorkday replaces the window of the day named in the path.
func (h *SchedulingHandler) UpdateWorkday(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	var req UpdateWorkdayRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	workday, err := h.Svc.Scheduling.UpdateWorkingHours(c.Request.Context(), p, c.Param("day"), services.WorkingHoursUpdate{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  req.IsActive,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Workday updated", workday)
}

// ToggleWorkday flips the active flag of a working day.
func (h *SchedulingHandler) ToggleWorkday(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	workday, err := h.Svc.Scheduling.ToggleWorkingHours(c.Request.Context(), p, c.Param("day"))
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Workday deactivated"
	if workday.IsActive {
		message = "Workday activated"
	}
	utils.Success(c, message, workday)
}

// ListWorkdays returns the working days of the provider named in the path.
func (h *SchedulingHandler) ListWorkdays(kind models.ProviderKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		workdays, err := h.Svc.Scheduling.ListWorkingHours(c.Request.Context(), kind, c.Param("username"))
		if err != nil {
			h.fail(c, err)
			return
		}
		utils.Success(c, "Workdays retrieved", workdays)
	}
}

// CreateAppointmentRequest represents the request body for a new appointment.
type CreateAppointmentRequest struct {
	PatientUsername string `json:"username"`
	Name            string `json:"appointment_name" binding:"max=50"`
	Type            string `json:"appointment_type"`
	Date            string `json:"appointment_date"`
	Time            string `json:"appointment_time"`
	Description     string `json:"appointment_description" binding:"max=255"`
}

// CreateAppointment books a slot for a patient.
func (h *SchedulingHandler) CreateAppointment(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Svc.Scheduling.CreateAppointment(c.Request.Context(), p, services.AppointmentInput{
		PatientUsername: req.PatientUsername,
		Name:            req.Name,
		Type:            req.Type,
		Date:            req.Date,
		Time:            req.Time,
		Description:     req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Appointment created", appt)
}

// UpdateAppointmentRequest changes an appointment. The name is required.
type UpdateAppointmentRequest struct {
	Name        optional.String `json:"appointment_name"`
	Type        optional.String `json:"appointment_type"`
	Description optional.String `json:"appointment_description"`
	Date        optional.String `json:"appointment_date"`
	Time        optional.String `json:"appointment_time"`
	Status      optional.String `json:"appointment_status"`
}

// UpdateAppointment updates the appointment named in the path.
func (h *SchedulingHandler) UpdateAppointment(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Svc.Scheduling.UpdateAppointment(c.Request.Context(), p, c.Param("name"), services.AppointmentUpdate{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
		Date:        req.Date,
		Time:        req.Time,
		Status:      req.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment updated", appt)
}

// ToggleAppointment flips the active flag of an appointment.
func (h *SchedulingHandler) ToggleAppointment(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	appt, err := h.Svc.Scheduling.ToggleAppointment(c.Request.Context(), p, c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "Appointment deactivated"
	if appt.IsActive {
		message = "Appointment activated"
	}
	utils.Success(c, message, appt)
}

// DeleteAppointment soft-deletes an appointment.
func (h *SchedulingHandler) DeleteAppointment(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	if err := h.Svc.Scheduling.DeleteAppointment(c.Request.Context(), p, c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment deleted", nil)
}

// GetAppointment returns one of the caller's appointments by id, deleted or not.
func (h *SchedulingHandler) GetAppointment(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	view, err := h.Svc.Scheduling.GetAppointment(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointment retrieved", view)
}

// ListProviderAppointments returns the caller's appointments.
func (h *SchedulingHandler) ListProviderAppointments(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	views, err := h.Svc.Scheduling.ListForProvider(c.Request.Context(), p, listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointments retrieved", views)
}

// ListPatientAppointments returns the calling patient's appointments with
// their source annotated.
func (h *SchedulingHandler) ListPatientAppointments(c *gin.Context) {
	patient, ok := h.patient(c)
	if !ok {
		return
	}
	views, err := h.Svc.Scheduling.ListForPatient(c.Request.Context(), patient.ID, listOptions(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Appointments retrieved", views)
}
