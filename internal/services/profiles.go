package services

import (
	"context"
	"strings"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/storage"

	"gorm.io/gorm"
)

// ProfileService manages the per-role profiles. Create relies on the unique
// user_id index to reject a second profile, so concurrent registrations
// cannot both succeed.
type ProfileService struct {
	base
	files storage.FileStore
}

// PersonInput holds the fields doctors and patients share. Blank values
// mean "no change" on update.
type PersonInput struct {
	FirstName      optional.String
	MiddleName     optional.String
	LastName       optional.String
	Gender         optional.String
	DateOfBirth    optional.String
	Phone          optional.String
	Address        optional.String
	City           optional.String
	State          optional.String
	ZipCode        optional.String
	ProfilePicture *storage.Upload
	BannerPicture  *storage.Upload
}

// DoctorInput is the doctor profile payload.
type DoctorInput struct {
	PersonInput
	Specialty     optional.String
	LicenseNumber optional.String
	Qualification optional.String
	Bio           optional.String
}

// PatientInput is the patient profile payload.
type PatientInput struct {
	PersonInput
	AboutMe optional.String
}

// RedCrossInput is the organization profile payload.
type RedCrossInput struct {
	Name    optional.String
	Phone   optional.String
	Email   optional.String
	Address optional.String
	ZipCode optional.String
	Logo    *storage.Upload
	Banner  *storage.Upload
}

func checkImages(uploads ...*storage.Upload) error {
	for _, u := range uploads {
		if u == nil {
			continue
		}
		if err := storage.CheckExtension(u.Filename, storage.Image); err != nil {
			return err
		}
	}
	return nil
}

// validatePerson checks every field before anything is applied so an
// invalid value leaves the record untouched.
func validatePerson(in PersonInput, create bool) error {
	if create && !(in.FirstName.IsSet() && in.LastName.IsSet() && in.Gender.IsSet() &&
		in.DateOfBirth.IsSet() && in.Phone.IsSet() && in.Address.IsSet() && in.ZipCode.IsSet()) {
		return apperr.InvalidInput("Missing data")
	}
	if g, ok := in.Gender.Get(); ok && !models.Gender(strings.ToLower(g)).Valid() {
		return apperr.InvalidInput("Only male or female is allowed")
	}
	if dob, ok := in.DateOfBirth.Get(); ok {
		if _, err := parseDate(dob, invalidDate); err != nil {
			return err
		}
	}
	return checkImages(in.ProfilePicture, in.BannerPicture)
}

func applyPerson(dst *models.PersonDetails, in PersonInput) {
	in.FirstName.ApplyTo(&dst.FirstName)
	in.MiddleName.ApplyTo(&dst.MiddleName)
	in.LastName.ApplyTo(&dst.LastName)
	if g, ok := in.Gender.Get(); ok {
		dst.Gender = models.Gender(strings.ToLower(g))
	}
	if dob, ok := in.DateOfBirth.Get(); ok {
		dst.DateOfBirth, _ = parseDate(dob, invalidDate)
	}
	in.Phone.ApplyTo(&dst.Phone)
	in.Address.ApplyTo(&dst.Address)
	in.City.ApplyTo(&dst.City)
	in.State.ApplyTo(&dst.State)
	in.ZipCode.ApplyTo(&dst.ZipCode)
}

// saveImages stores the uploads and returns their generated names in order.
// Already stored files are removed when a later one fails.
func (s *ProfileService) saveImages(ctx context.Context, owner string, uploads ...*storage.Upload) ([]string, error) {
	names := make([]string, len(uploads))
	for i, u := range uploads {
		if u == nil {
			continue
		}
		stored, err := s.files.Save(ctx, owner, u, storage.Image)
		if err != nil {
			s.removeFiles(ctx, s.files, owner, names...)
			return nil, err
		}
		names[i] = stored.Name
	}
	return names, nil
}

func (s *ProfileService) phoneTaken(ctx context.Context, model interface{}, phone, exceptUserID string) (bool, error) {
	var count int64
	q := s.conn(ctx).Model(model).Where("phone = ?", phone)
	if exceptUserID != "" {
		q = q.Where("user_id <> ?", exceptUserID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

// persist writes the profile and cleans up freshly stored files on failure.
func (s *ProfileService) persist(ctx context.Context, owner *models.Identity, write func(*gorm.DB) error, conflict string, stored []string) error {
	if err := write(s.conn(ctx)); err != nil {
		s.removeFiles(ctx, s.files, owner.Username, stored...)
		return apperr.FromStore(err, conflict)
	}
	return nil
}

// CreateDoctor registers the doctor profile of owner.
func (s *ProfileService) CreateDoctor(ctx context.Context, owner *models.Identity, in DoctorInput) (*models.DoctorProfile, error) {
	if err := validatePerson(in.PersonInput, true); err != nil {
		return nil, err
	}
	if !in.Specialty.IsSet() {
		return nil, apperr.InvalidInput("Missing data")
	}
	phone, _ := in.Phone.Get()
	if taken, err := s.phoneTaken(ctx, &models.DoctorProfile{}, phone, owner.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Phone number already in use")
	}

	names, err := s.saveImages(ctx, owner.Username, in.ProfilePicture, in.BannerPicture)
	if err != nil {
		return nil, err
	}

	doctor := &models.DoctorProfile{UserID: owner.ID}
	applyPerson(&doctor.PersonDetails, in.PersonInput)
	applyDoctor(doctor, in)
	doctor.ProfilePicture, doctor.BannerPicture = names[0], names[1]

	err = s.persist(ctx, owner, func(db *gorm.DB) error { return db.Create(doctor).Error }, "Doctor already registered", names)
	if err != nil {
		return nil, err
	}
	return doctor, nil
}

func applyDoctor(d *models.DoctorProfile, in DoctorInput) {
	in.Specialty.ApplyTo(&d.Specialty)
	in.LicenseNumber.ApplyTo(&d.LicenseNumber)
	in.Qualification.ApplyTo(&d.Qualification)
	in.Bio.ApplyTo(&d.Bio)
}

// UpdateDoctor applies the present, non-blank fields of in.
func (s *ProfileService) UpdateDoctor(ctx context.Context, owner *models.Identity, in DoctorInput) (*models.DoctorProfile, error) {
	doctor, err := s.DoctorByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if err := validatePerson(in.PersonInput, false); err != nil {
		return nil, err
	}
	if phone, ok := in.Phone.Get(); ok && phone != doctor.Phone {
		if taken, err := s.phoneTaken(ctx, &models.DoctorProfile{}, phone, owner.ID); err != nil {
			return nil, err
		} else if taken {
			return nil, apperr.Conflict("Phone number already in use")
		}
	}

	names, err := s.saveImages(ctx, owner.Username, in.ProfilePicture, in.BannerPicture)
	if err != nil {
		return nil, err
	}

	applyPerson(&doctor.PersonDetails, in.PersonInput)
	applyDoctor(doctor, in)
	replaceIfSet(&doctor.ProfilePicture, names[0])
	replaceIfSet(&doctor.BannerPicture, names[1])

	err = s.persist(ctx, owner, func(db *gorm.DB) error { return db.Save(doctor).Error }, "Phone number already in use", names)
	if err != nil {
		return nil, err
	}
	return doctor, nil
}

// CreatePatient registers the patient profile of owner.
func (s *ProfileService) CreatePatient(ctx context.Context, owner *models.Identity, in PatientInput) (*models.PatientProfile, error) {
	if err := validatePerson(in.PersonInput, true); err != nil {
		return nil, err
	}
	phone, _ := in.Phone.Get()
	if taken, err := s.phoneTaken(ctx, &models.PatientProfile{}, phone, owner.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Phone number already in use")
	}

	names, err := s.saveImages(ctx, owner.Username, in.ProfilePicture, in.BannerPicture)
	if err != nil {
		return nil, err
	}

	patient := &models.PatientProfile{UserID: owner.ID}
	applyPerson(&patient.PersonDetails, in.PersonInput)
	in.AboutMe.ApplyTo(&patient.AboutMe)
	patient.ProfilePicture, patient.BannerPicture = names[0], names[1]

	err = s.persist(ctx, owner, func(db *gorm.DB) error { return db.Create(patient).Error }, "Patient already registered", names)
	if err != nil {
		return nil, err
	}
	return patient, nil
}

// UpdatePatient applies the present, non-blank fields of in.
func (s *ProfileService) UpdatePatient(ctx context.Context, owner *models.Identity, in PatientInput) (*models.PatientProfile, error) {
	patient, err := s.PatientByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if err := validatePerson(in.PersonInput, false); err != nil {
		return nil, err
	}
	if phone, ok := in.Phone.Get(); ok && phone != patient.Phone {
		if taken, err := s.phoneTaken(ctx, &models.PatientProfile{}, phone, owner.ID); err != nil {
			return nil, err
		} else if taken {
			return nil, apperr.Conflict("Phone number already in use")
		}
	}

	names, err := s.saveImages(ctx, owner.Username, in.ProfilePicture, in.BannerPicture)
	if err != nil {
		return nil, err
	}

	applyPerson(&patient.PersonDetails, in.PersonInput)
	in.AboutMe.ApplyTo(&patient.AboutMe)
	replaceIfSet(&patient.ProfilePicture, names[0])
	replaceIfSet(&patient.BannerPicture, names[1])

	err = s.persist(ctx, owner, func(db *gorm.DB) error { return db.Save(patient).Error }, "Phone number already in use", names)
	if err != nil {
		return nil, err
	}
	return patient, nil
}

// CreateRedCross registers the organization profile of owner.
func (s *ProfileService) CreateRedCross(ctx context.Context, owner *models.Identity, in RedCrossInput) (*models.RedCrossProfile, error) {
	if !(in.Name.IsSet() && in.Phone.IsSet() && in.Address.IsSet() && in.ZipCode.IsSet()) {
		return nil, apperr.InvalidInput("Missing data")
	}
	if err := checkImages(in.Logo, in.Banner); err != nil {
		return nil, err
	}
	phone, _ := in.Phone.Get()
	if taken, err := s.phoneTaken(ctx, &models.RedCrossProfile{}, phone, owner.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict("Phone number already in use")
	}

	names, err := s.saveImages(ctx, owner.Username, in.Logo, in.Banner)
	if err != nil {
		return nil, err
	}

	org := &models.RedCrossProfile{UserID: owner.ID}
	applyRedCross(org, in)
	org.Logo, org.Banner = names[0], names[1]

	err = s.persist(ctx, owner, func(db *gorm.DB) error { return db.Create(org).Error }, "Red Cross already registered", names)
	if err != nil {
		return nil, err
	}
	return org, nil
}

func applyRedCross(org *models.RedCrossProfile, in RedCrossInput) {
	in.Name.ApplyTo(&org.Name)
	in.Phone.ApplyTo(&org.Phone)
	in.Address.ApplyTo(&org.Address)
	in.ZipCode.ApplyTo(&org.ZipCode)
	if email, ok := in.Email.Get(); ok {
		email = strings.ToLower(email)
		org.Email = &email
	}
}

// UpdateRedCross applies the present, non-blank fields of in.
func (s *ProfileService) UpdateRedCross(ctx context.Context, owner *models.Identity, in RedCrossInput) (*models.RedCrossProfile, error) {
	org, err := s.RedCrossByUserID(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if err := checkImages(in.Logo, in.Banner); err != nil {
		return nil, err
	}
	if phone, ok := in.Phone.Get(); ok && phone != org.Phone {
		if taken, err := s.phoneTaken(ctx, &models.RedCrossProfile{}, phone, owner.ID); err != nil {
			return nil, err
		} else if taken {
			return nil, apperr.Conflict("Phone number already in use")
		}
	}

	names, err := s.saveImages(ctx, owner.Username, in.Logo, in.Banner)
	if err != nil {
		return nil, err
	}

	applyRedCross(org, in)
	replaceIfSet(&org.Logo, names[0])
	replaceIfSet(&org.Banner, names[1])

	err = s.persist(ctx, owner, func(db *gorm.DB) error { return db.Save(org).Error }, "Phone or email already in use", names)
	if err != nil {
		return nil, err
	}
	return org, nil
}

func replaceIfSet(dst *string, name string) {
	if name != "" {
		*dst = name
	}
}

// DoctorByUserID returns the caller's live doctor profile.
func (s *ProfileService) DoctorByUserID(ctx context.Context, userID string) (*models.DoctorProfile, error) {
	var doctor models.DoctorProfile
	if err := s.conn(ctx).Where("user_id = ? AND is_deleted = ?", userID, false).First(&doctor).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Doctor not found")
		}
		return nil, dbError(err)
	}
	return &doctor, nil
}

// PatientByUserID returns the caller's live patient profile.
func (s *ProfileService) PatientByUserID(ctx context.Context, userID string) (*models.PatientProfile, error) {
	var patient models.PatientProfile
	if err := s.conn(ctx).Where("user_id = ? AND is_deleted = ?", userID, false).First(&patient).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Patient not found")
		}
		return nil, dbError(err)
	}
	return &patient, nil
}

// RedCrossByUserID returns the caller's live organization profile.
func (s *ProfileService) RedCrossByUserID(ctx context.Context, userID string) (*models.RedCrossProfile, error) {
	var org models.RedCrossProfile
	if err := s.conn(ctx).Where("user_id = ? AND is_deleted = ?", userID, false).First(&org).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Red Cross not found")
		}
		return nil, dbError(err)
	}
	return &org, nil
}

// ResolveProvider maps a doctor or red cross identity to its provider reference.
func (s *ProfileService) ResolveProvider(ctx context.Context, identity *models.Identity) (models.Provider, error) {
	switch identity.Role {
	case models.RoleDoctor:
		doctor, err := s.DoctorByUserID(ctx, identity.ID)
		if err != nil {
			return models.Provider{}, err
		}
		return models.DoctorProvider(doctor.ID), nil
	case models.RoleRedCross:
		org, err := s.RedCrossByUserID(ctx, identity.ID)
		if err != nil {
			return models.Provider{}, err
		}
		return models.RedCrossProvider(org.ID), nil
	}
	return models.Provider{}, apperr.Forbidden("Only doctors and red cross organizations can do this")
}

// ResolvePatient returns the live patient profile of a patient identity.
func (s *ProfileService) ResolvePatient(ctx context.Context, identity *models.Identity) (*models.PatientProfile, error) {
	if identity.Role != models.RolePatient {
		return nil, apperr.Forbidden("Only patients can do this")
	}
	return s.PatientByUserID(ctx, identity.ID)
}

// PatientByUsername resolves a live patient profile through its identity.
func (s *ProfileService) PatientByUsername(ctx context.Context, username string) (*models.PatientProfile, error) {
	var patient models.PatientProfile
	err := s.conn(ctx).
		Joins("JOIN users ON users.id = patient_profiles.user_id").
		Where("users.username = ? AND patient_profiles.is_deleted = ?", strings.TrimSpace(username), false).
		First(&patient).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Patient not found")
		}
		return nil, dbError(err)
	}
	return &patient, nil
}

// ProviderByUsername resolves the live provider profile of the given kind.
func (s *ProfileService) ProviderByUsername(ctx context.Context, kind models.ProviderKind, username string) (models.Provider, error) {
	if kind == models.ProviderRedCross {
		org, _, err := s.redCrossByUsername(ctx, username)
		if err != nil {
			return models.Provider{}, err
		}
		return models.RedCrossProvider(org.ID), nil
	}
	doctor, _, err := s.doctorByUsername(ctx, username)
	if err != nil {
		return models.Provider{}, err
	}
	return models.DoctorProvider(doctor.ID), nil
}

func (s *ProfileService) doctorByUsername(ctx context.Context, username string) (*models.DoctorProfile, *models.Identity, error) {
	var doctor models.DoctorProfile
	err := s.conn(ctx).Preload("User").
		Joins("JOIN users ON users.id = doctor_profiles.user_id").
		Where("users.username = ?", username).
		First(&doctor).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperr.NotFound("Doctor not found")
		}
		return nil, nil, dbError(err)
	}
	if doctor.IsDeleted {
		return nil, nil, apperr.NotFound("Doctor not found")
	}
	return &doctor, &doctor.User, nil
}

func (s *ProfileService) patientByUsernameWithUser(ctx context.Context, username string) (*models.PatientProfile, *models.Identity, error) {
	var patient models.PatientProfile
	err := s.conn(ctx).Preload("User").
		Joins("JOIN users ON users.id = patient_profiles.user_id").
		Where("users.username = ?", username).
		First(&patient).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperr.NotFound("Patient not found")
		}
		return nil, nil, dbError(err)
	}
	if patient.IsDeleted {
		return nil, nil, apperr.NotFound("Patient not found")
	}
	return &patient, &patient.User, nil
}

func (s *ProfileService) redCrossByUsername(ctx context.Context, username string) (*models.RedCrossProfile, *models.Identity, error) {
	var org models.RedCrossProfile
	err := s.conn(ctx).Preload("User").
		Joins("JOIN users ON users.id = red_cross_profiles.user_id").
		Where("users.username = ?", username).
		First(&org).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil, apperr.NotFound("Red Cross not found")
		}
		return nil, nil, dbError(err)
	}
	if org.IsDeleted {
		return nil, nil, apperr.NotFound("Red Cross not found")
	}
	return &org, &org.User, nil
}

// DoctorProfileByUsername returns a public doctor profile.
func (s *ProfileService) DoctorProfileByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	doctor, user, err := s.doctorByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &models.ProfileView{Username: user.Username, IsActive: user.IsActive, Profile: doctor}, nil
}

// PatientProfileByUsername returns a public patient profile.
func (s *ProfileService) PatientProfileByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	patient, user, err := s.patientByUsernameWithUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return &models.ProfileView{Username: user.Username, IsActive: user.IsActive, Profile: patient}, nil
}

// RedCrossProfileByUsername returns a public organization profile.
func (s *ProfileService) RedCrossProfileByUsername(ctx context.Context, username string) (*models.ProfileView, error) {
	org, user, err := s.redCrossByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return &models.ProfileView{Username: user.Username, IsActive: user.IsActive, Profile: org}, nil
}

// SoftDelete flags the caller's profile as deleted. The row and its
// identity stay in place.
func (s *ProfileService) SoftDelete(ctx context.Context, owner *models.Identity) error {
	var (
		model    interface{}
		notFound string
	)
	switch owner.Role {
	case models.RoleDoctor:
		model, notFound = &models.DoctorProfile{}, "Doctor not found"
	case models.RoleRedCross:
		model, notFound = &models.RedCrossProfile{}, "Red Cross not found"
	default:
		model, notFound = &models.PatientProfile{}, "Patient not found"
	}

	res := s.conn(ctx).Model(model).
		Where("user_id = ? AND is_deleted = ?", owner.ID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("%s", notFound)
	}
	return nil
}
