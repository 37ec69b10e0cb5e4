package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"ehealthwave-server/internal/apperr"
	"ehealthwave-server/internal/config"
	"ehealthwave-server/internal/middleware"
	"ehealthwave-server/internal/models"
	"ehealthwave-server/internal/optional"
	"ehealthwave-server/internal/services"
	"ehealthwave-server/internal/storage"
	"ehealthwave-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// base is embedded by every handler.
type base struct {
	Svc *services.Services
	Cfg *config.Config
	Log *logrus.Logger
}

func (b *base) fail(c *gin.Context, err error) {
	utils.RespondError(c, b.Log, err)
}

// identity returns the caller loaded by AuthMiddleware.
func (b *base) identity(c *gin.Context) (*models.Identity, bool) {
	identity, ok := middleware.GetIdentityFromContext(c)
	if !ok {
		utils.Unauthorized(c, "You must be logged in to access this page")
		return nil, false
	}
	return identity, true
}

// provider resolves the caller's doctor or red cross profile.
func (b *base) provider(c *gin.Context) (*models.Identity, models.Provider, bool) {
	identity, ok := b.identity(c)
	if !ok {
		return nil, models.Provider{}, false
	}
	p, err := b.Svc.Profiles.ResolveProvider(c.Request.Context(), identity)
	if err != nil {
		b.fail(c, err)
		return nil, models.Provider{}, false
	}
	return identity, p, true
}

// patient resolves the caller's patient profile.
func (b *base) patient(c *gin.Context) (*models.PatientProfile, bool) {
	identity, ok := b.identity(c)
	if !ok {
		return nil, false
	}
	patient, err := b.Svc.Profiles.ResolvePatient(c.Request.Context(), identity)
	if err != nil {
		b.fail(c, err)
		return nil, false
	}
	return patient, true
}

func listOptions(c *gin.Context) services.ListOptions {
	return services.ListOptions{IncludeDeleted: utils.QueryBool(c, "include_deleted")}
}

func formField(c *gin.Context, key string) optional.String {
	return optional.FromForm(c.GetPostForm(key))
}

// formFiles opens uploaded files and closes them once the request is done.
type formFiles struct {
	c      *gin.Context
	opened []io.Closer
}

func newFormFiles(c *gin.Context) *formFiles {
	return &formFiles{c: c}
}

// get returns nil when the field is absent.
func (f *formFiles) get(key string) (*storage.Upload, error) {
	header, err := f.c.FormFile(key)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, apperr.InvalidInput("Request body too large")
		}
		return nil, apperr.InvalidInput("Invalid multipart form")
	}
	if header.Filename == "" {
		return nil, apperr.InvalidInput("No selected file")
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperr.Internal(err, "Failed to read uploaded file")
	}
	f.opened = append(f.opened, file)
	return &storage.Upload{Filename: header.Filename, Content: file}, nil
}

// getAll fills dst in order and stops at the first invalid field.
func (f *formFiles) getAll(keys []string, dst ...**storage.Upload) error {
	for i, key := range keys {
		upload, err := f.get(key)
		if err != nil {
			return err
		}
		*dst[i] = upload
	}
	return nil
}

func (f *formFiles) Close() {
	for _, file := range f.opened {
		file.Close()
	}
	f.opened = nil
}
