package services

import (
	"context"
	"strings"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/storage"
)

const (
	invalidIssueDate  = "Invalid issue date format, should be YYYY-MM-DD"
	invalidExpiryDate = "Invalid expiry date format, should be YYYY-MM-DD"
	datesOutOfOrder   = "Issue date cannot be greater than expiry date"
)

// CredentialService manages provider certificates.
type CredentialService struct {
	base
	files    storage.FileStore
	profiles *ProfileService
}

// CertificateInput creates a certificate. ExpiryDate may be blank.
type CertificateInput struct {
	Name       string
	Number     string
	IssueDate  string
	ExpiryDate string
	Picture    *storage.Upload
}

// CertificateUpdate renames a certificate and applies the other set fields.
type CertificateUpdate struct {
	Name       optional.String
	Number     optional.String
	IssueDate  optional.String
	ExpiryDate optional.String
	Picture    *storage.Upload
}

func (s *CredentialService) nameTaken(ctx context.Context, p models.Provider, name, exceptID string) (bool, error) {
	q := s.conn(ctx).Model(&models.Certificate{}).
		Where("provider_kind = ? AND provider_id = ? AND name = ?", p.Kind, p.ID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

func (s *CredentialService) savePicture(ctx context.Context, owner string, u *storage.Upload) (string, error) {
	if u == nil {
		return "", nil
	}
	stored, err := s.files.Save(ctx, owner, u, storage.Image)
	if err != nil {
		return "", err
	}
	return stored.Name, nil
}

// CreateCertificate publishes a certificate on the provider's profile.
// Names are unique per provider, soft-deleted certificates included.
func (s *CredentialService) CreateCertificate(ctx context.Context, owner *models.Identity, p models.Provider, in CertificateInput) (*models.Certificate, error) {
	if missing(in.Name, in.IssueDate) {
		return nil, apperr.InvalidInput("Missing required data")
	}
	issue, err := parseDate(in.IssueDate, invalidIssueDate)
	if err != nil {
		return nil, err
	}
	cert := &models.Certificate{
		ProviderKind: p.Kind,
		ProviderID:   p.ID,
		Name:         strings.TrimSpace(in.Name),
		Number:       strings.TrimSpace(in.Number),
		IssueDate:    issue,
		IsActive:     true,
	}
	if !missing(in.ExpiryDate) {
		expiry, err := parseDate(in.ExpiryDate, invalidExpiryDate)
		if err != nil {
			return nil, err
		}
		cert.ExpiryDate = &expiry
	}
	if !cert.DatesOrdered() {
		return nil, apperr.InvalidInput(datesOutOfOrder)
	}
	if in.Picture != nil {
		if err := storage.CheckExtension(in.Picture.Filename, storage.Image); err != nil {
			return nil, err
		}
	}

	taken, err := s.nameTaken(ctx, p, cert.Name, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("Certificate already exists")
	}

	if cert.Picture, err = s.savePicture(ctx, owner.Username, in.Picture); err != nil {
		return nil, err
	}
	if err := s.conn(ctx).Create(cert).Error; err != nil {
		s.removeFiles(ctx, s.files, owner.Username, cert.Picture)
		return nil, apperr.FromStore(err, "Certificate already exists")
	}
	return cert, nil
}

func (s *CredentialService) certificateByName(ctx context.Context, p models.Provider, name string) (*models.Certificate, error) {
	var cert models.Certificate
	err := s.conn(ctx).
		Where("provider_kind = ? AND provider_id = ? AND name = ? AND is_deleted = ?", p.Kind, p.ID, name, false).
		First(&cert).Error
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("Certificate not found")
		}
		return nil, dbError(err)
	}
	return &cert, nil
}

// UpdateCertificate requires a non-blank name for the certificate after the
// update. Date order is checked against the resulting values.
func (s *CredentialService) UpdateCertificate(ctx context.Context, owner *models.Identity, p models.Provider, name string, in CertificateUpdate) (*models.Certificate, error) {
	newName, ok := in.Name.Get()
	if !ok {
		return nil, apperr.InvalidInput("Missing required data: name")
	}
	cert, err := s.certificateByName(ctx, p, name)
	if err != nil {
		return nil, err
	}

	if v, ok := in.IssueDate.Get(); ok {
		issue, err := parseDate(v, invalidIssueDate)
		if err != nil {
			return nil, err
		}
		cert.IssueDate = issue
	}
	if v, ok := in.ExpiryDate.Get(); ok {
		expiry, err := parseDate(v, invalidExpiryDate)
		if err != nil {
			return nil, err
		}
		cert.ExpiryDate = &expiry
	}
	if !cert.DatesOrdered() {
		return nil, apperr.InvalidInput(datesOutOfOrder)
	}
	if in.Picture != nil {
		if err := storage.CheckExtension(in.Picture.Filename, storage.Image); err != nil {
			return nil, err
		}
	}

	if newName != cert.Name {
		taken, err := s.nameTaken(ctx, p, newName, cert.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperr.Conflict("Certificate already exists")
		}
		cert.Name = newName
	}
	in.Number.ApplyTo(&cert.Number)

	picture, err := s.savePicture(ctx, owner.Username, in.Picture)
	if err != nil {
		return nil, err
	}
	replaceIfSet(&cert.Picture, picture)

	if err := s.conn(ctx).Save(cert).Error; err != nil {
		s.removeFiles(ctx, s.files, owner.Username, picture)
		return nil, apperr.FromStore(err, "Certificate already exists")
	}
	return cert, nil
}

// DeleteCertificate soft-deletes a certificate.
func (s *CredentialService) DeleteCertificate(ctx context.Context, p models.Provider, name string) error {
	cert, err := s.certificateByName(ctx, p, name)
	if err != nil {
		return err
	}
	err = s.conn(ctx).Model(&models.Certificate{}).Where("id = ?", cert.ID).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": s.now()}).Error
	if err != nil {
		return dbError(err)
	}
	return nil
}

// ListCertificates returns the certificates of the provider with the given
// username, ordered by issue date.
func (s *CredentialService) ListCertificates(ctx context.Context, kind models.ProviderKind, username string, opts ListOptions) ([]models.Certificate, error) {
	p, err := s.profiles.ProviderByUsername(ctx, kind, username)
	if err != nil {
		return nil, err
	}
	var out []models.Certificate
	q := opts.scope(s.conn(ctx).Where("provider_kind = ? AND provider_id = ?", p.Kind, p.ID))
	if err := q.Order("issue_date").Find(&out).Error; err != nil {
		return nil, dbError(err)
	}
	return out, nil
}
