package handlers

import (
	"context"

	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ProfileHandler handles the doctor, patient and red cross profile requests.
type ProfileHandler struct {
	base
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(svc *services.Services, cfg *config.Config, log *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{base{Svc: svc, Cfg: cfg, Log: log}}
}

func personForm(c *gin.Context, files *formFiles) (services.PersonInput, error) {
	in := services.PersonInput{
		FirstName:   formField(c, "first_name"),
		MiddleName:  formField(c, "middle_name"),
		LastName:    formField(c, "last_name"),
		Gender:      formField(c, "gender"),
		DateOfBirth: formField(c, "date_of_birth"),
		Phone:       formField(c, "phone"),
		Address:     formField(c, "address"),
		City:        formField(c, "city"),
		State:       formField(c, "state"),
		ZipCode:     formField(c, "zip_code"),
	}
	err := files.getAll([]string{"profile_picture", "banner_picture"}, &in.ProfilePicture, &in.BannerPicture)
	return in, err
}

func doctorForm(c *gin.Context, files *formFiles) (services.DoctorInput, error) {
	person, err := personForm(c, files)
	if err != nil {
		return services.DoctorInput{}, err
	}
	return services.DoctorInput{
		PersonInput:   person,
		Specialty:     formField(c, "specialty"),
		LicenseNumber: formField(c, "license_number"),
		Qualification: formField(c, "qualification"),
		Bio:           formField(c, "bio"),
	}, nil
}

func patientForm(c *gin.Context, files *formFiles) (services.PatientInput, error) {
	person, err := personForm(c, files)
	if err != nil {
		return services.PatientInput{}, err
	}
	return services.PatientInput{PersonInput: person, AboutMe: formField(c, "about_me")}, nil
}

func redCrossForm(c *gin.Context, files *formFiles) (services.RedCrossInput, error) {
	in := services.RedCrossInput{
		Name:    formField(c, "red_cross_name"),
		Phone:   formField(c, "red_cross_phone"),
		Email:   formField(c, "red_cross_email"),
		Address: formField(c, "red_cross_address"),
		ZipCode: formField(c, "red_cross_zip_code"),
	}
	err := files.getAll([]string{"red_cross_logo", "red_cross_banner"}, &in.Logo, &in.Banner)
	return in, err
}

// RegisterDoctor creates the caller's doctor profile.
func (h *ProfileHandler) RegisterDoctor(c *gin.Context) {
	h.saveDoctor(c, h.Svc.Profiles.CreateDoctor, func(c *gin.Context, d *models.DoctorProfile) {
		utils.Created(c, "Doctor registered", d)
	})
}

// UpdateDoctor applies the submitted fields to the caller's doctor profile.
func (h *ProfileHandler) UpdateDoctor(c *gin.Context) {
	h.saveDoctor(c, h.Svc.Profiles.UpdateDoctor, func(c *gin.Context, d *models.DoctorProfile) {
		utils.Success(c, "Doctor updated", d)
	})
}

func (h *ProfileHandler) saveDoctor(
	c *gin.Context,
	save func(context.Context, *models.Identity, services.DoctorInput) (*models.DoctorProfile, error),
	respond func(*gin.Context, *models.DoctorProfile),
) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	in, err := doctorForm(c, files)
	if err != nil {
		h.fail(c, err)
		return
	}
	doctor, err := save(c.Request.Context(), identity, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, doctor)
}

// RegisterPatient creates the caller's patient profile.
func (h *ProfileHandler) RegisterPatient(c *gin.Context) {
	h.savePatient(c, h.Svc.Profiles.CreatePatient, func(c *gin.Context, p *models.PatientProfile) {
		utils.Created(c, "Patient registered", p)
	})
}

// UpdatePatient applies the submitted fields to the caller's patient profile.
func (h *ProfileHandler) UpdatePatient(c *gin.Context) {
	h.savePatient(c, h.Svc.Profiles.UpdatePatient, func(c *gin.Context, p *models.PatientProfile) {
		utils.Success(c, "Patient updated", p)
	})
}

func (h *ProfileHandler) savePatient(
	c *gin.Context,
	save func(context.Context, *models.Identity, services.PatientInput) (*models.PatientProfile, error),
	respond func(*gin.Context, *models.PatientProfile),
) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	in, err := patientForm(c, files)
	if err != nil {
		h.fail(c, err)
		return
	}
	patient, err := save(c.Request.Context(), identity, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, patient)
}

// RegisterRedCross creates the caller's organization profile.
func (h *ProfileHandler) RegisterRedCross(c *gin.Context) {
	h.saveRedCross(c, h.Svc.Profiles.CreateRedCross, func(c *gin.Context, org *models.RedCrossProfile) {
		utils.Created(c, "Red Cross registered", org)
	})
}

// UpdateRedCross applies the submitted fields to the caller's organization.
func (h *ProfileHandler) UpdateRedCross(c *gin.Context) {
	h.saveRedCross(c, h.Svc.Profiles.UpdateRedCross, func(c *gin.Context, org *models.RedCrossProfile) {
		utils.Success(c, "Red Cross updated", org)
	})
}

func (h *ProfileHandler) saveRedCross(
	c *gin.Context,
	save func(context.Context, *models.Identity, services.RedCrossInput) (*models.RedCrossProfile, error),
	respond func(*gin.Context, *models.RedCrossProfile),
) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	in, err := redCrossForm(c, files)
	if err != nil {
		h.fail(c, err)
		return
	}
	org, err := save(c.Request.Context(), identity, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, org)
}

// DeleteProfile soft-deletes the caller's profile, whatever its kind.
func (h *ProfileHandler) DeleteProfile(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	if err := h.Svc.Profiles.SoftDelete(c.Request.Context(), identity); err != nil {
		h.fail(c, err)
		return
	}

	message := "Patient deleted"
	switch identity.Role {
	case models.RoleDoctor:
		message = "Doctor deleted"
	case models.RoleRedCross:
		message = "Red Cross deleted"
	}
	utils.Success(c, message, nil)
}

// GetDoctorProfile returns a doctor profile by username.
func (h *ProfileHandler) GetDoctorProfile(c *gin.Context) {
	h.profileByUsername(c, h.Svc.Profiles.DoctorProfileByUsername)
}

// GetPatientProfile returns a patient profile by username.
func (h *ProfileHandler) GetPatientProfile(c *gin.Context) {
	h.profileByUsername(c, h.Svc.Profiles.PatientProfileByUsername)
}

// GetRedCrossProfile returns an organization profile by username.
func (h *ProfileHandler) GetRedCrossProfile(c *gin.Context) {
	h.profileByUsername(c, h.Svc.Profiles.RedCrossProfileByUsername)
}

func (h *ProfileHandler) profileByUsername(c *gin.Context, lookup func(context.Context, string) (*models.ProfileView, error)) {
	view, err := lookup(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Profile retrieved", view)
}
