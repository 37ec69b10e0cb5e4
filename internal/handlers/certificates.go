package handlers

import (
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CredentialHandler handles certificate requests.
type CredentialHandler struct {
	base
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(svc *services.Services, cfg *config.Config, log *logrus.Logger) *CredentialHandler {
	return &CredentialHandler{base{Svc: svc, Cfg: cfg, Log: log}}
}

// CreateCertificate adds a certificate from a multipart form.
func (h *CredentialHandler) CreateCertificate(c *gin.Context) {
	identity, p, ok := h.provider(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	picture, err := files.get("certificate_picture")
	if err != nil {
		h.fail(c, err)
		return
	}

	cert, err := h.Svc.Credentials.CreateCertificate(c.Request.Context(), identity, p, services.CertificateInput{
		Name:       c.PostForm("certificate_name"),
		Number:     c.PostForm("certificate_number"),
		IssueDate:  c.PostForm("issue_date"),
		ExpiryDate: c.PostForm("expiry_date"),
		Picture:    picture,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, "Certificate created", cert)
}

// UpdateCertificate updates the certificate named in the path.
func (h *CredentialHandler) UpdateCertificate(c *gin.Context) {
	identity, p, ok := h.provider(c)
	if !ok {
		return
	}
	files := newFormFiles(c)
	defer files.Close()

	picture, err := files.get("certificate_picture")
	if err != nil {
		h.fail(c, err)
		return
	}

	cert, err := h.Svc.Credentials.UpdateCertificate(c.Request.Context(), identity, p, c.Param("name"), services.CertificateUpdate{
		Name:       formField(c, "certificate_name"),
		Number:     formField(c, "certificate_number"),
		IssueDate:  formField(c, "issue_date"),
		ExpiryDate: formField(c, "expiry_date"),
		Picture:    picture,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Certificate updated", cert)
}

// DeleteCertificate soft-deletes the certificate named in the path.
func (h *CredentialHandler) DeleteCertificate(c *gin.Context) {
	_, p, ok := h.provider(c)
	if !ok {
		return
	}
	if err := h.Svc.Credentials.DeleteCertificate(c.Request.Context(), p, c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Certificate deleted", nil)
}

// ListCertificates returns the certificates of the provider named in the path.
func (h *CredentialHandler) ListCertificates(kind models.ProviderKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		certs, err := h.Svc.Credentials.ListCertificates(c.Request.Context(), kind, c.Param("username"), listOptions(c))
		if err != nil {
			h.fail(c, err)
			return
		}
		utils.Success(c, "Certificates retrieved", certs)
	}
}
