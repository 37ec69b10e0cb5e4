// Package storage keeps uploaded files on disk under a directory per owner.
// Only the generated file name is meant to be persisted by callers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ehealthwave-server/internal/apperr"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

// Kind selects which file formats an upload may use.
type Kind int

const (
	// Image accepts PNG and JPEG files.
	Image Kind = iota
	// Attachment accepts images and PDF files.
	Attachment
)

var (
	imageExtensions      = []string{".png", ".jpg", ".jpeg"}
	attachmentExtensions = []string{".png", ".jpg", ".jpeg", ".pdf"}

	imageTypes      = []string{"image/png", "image/jpeg"}
	attachmentTypes = []string{"image/png", "image/jpeg", "application/pdf"}
)

func (k Kind) extensions() []string {
	if k == Attachment {
		return attachmentExtensions
	}
	return imageExtensions
}

func (k Kind) contentTypes() []string {
	if k == Attachment {
		return attachmentTypes
	}
	return imageTypes
}

func (k Kind) formatError() error {
	if k == Attachment {
		return apperr.InvalidInput("Invalid file format, should be PNG, JPG or PDF")
	}
	return apperr.InvalidInput("Invalid file format, should be PNG or JPG")
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Stored describes a file written by a FileStore.
type Stored struct {
	Name        string
	ContentType string
	Size        int64
}

// FileStore persists uploads for an owner.
type FileStore interface {
	Save(ctx context.Context, owner string, upload *Upload, kind Kind) (*Stored, error)
	Remove(ctx context.Context, owner, name string) error
}

// CheckExtension validates the file name against the formats allowed for kind.
// The comparison ignores case.
func CheckExtension(filename string, kind Kind) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range kind.extensions() {
		if ext == allowed {
			return nil
		}
	}
	return kind.formatError()
}

// LocalStore writes files to <root>/<owner>/<uuid><ext>.
type LocalStore struct {
	root     string
	maxBytes int64
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: root, maxBytes: maxBytes}, nil
}

// Root returns the directory files are written under.
func (s *LocalStore) Root() string { return s.root }

// Save checks the extension and sniffed content type before anything touches disk.
func (s *LocalStore) Save(ctx context.Context, owner string, upload *Upload, kind Kind) (*Stored, error) {
	if upload == nil || upload.Filename == "" {
		return nil, apperr.InvalidInput("File name is required")
	}
	if err := CheckExtension(upload.Filename, kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, apperr.InvalidInput("%s", ErrFileTooLarge.Error())
	}

	detected := mimetype.Detect(data)
	if !matchesAny(detected, kind.contentTypes()) {
		return nil, kind.formatError()
	}

	dir, err := s.ownerDir(owner)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create owner dir: %w", err)
	}

	name := uuid.New().String() + strings.ToLower(filepath.Ext(upload.Filename))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &Stored{
		Name:        name,
		ContentType: detected.String(),
		Size:        int64(len(data)),
	}, nil
}

// Remove deletes a previously stored file. Missing files are not an error.
func (s *LocalStore) Remove(_ context.Context, owner, name string) error {
	if name == "" {
		return nil
	}
	dir, err := s.ownerDir(owner)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) ownerDir(owner string) (string, error) {
	clean := filepath.Base(filepath.Clean(owner))
	if clean == "." || clean == ".." || clean == string(filepath.Separator) || clean == "" {
		return "", apperr.InvalidInput("Invalid upload owner")
	}
	return filepath.Join(s.root, clean), nil
}

func matchesAny(detected *mimetype.MIME, types []string) bool {
	for _, t := range types {
		if detected.Is(t) {
			return true
		}
	}
	return false
}
