package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"reimagine-studio/internal/models"
)

const (
	SlotOriginal  = "original.jpg"
	SlotReference = "reference.jpg"
)

// ObjectStore writes one object and returns its durable URL. Writing an
// existing path overwrites it. PublicURL returns the URL Put would return
// for path without writing anything.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	PublicURL(path string) string
}

// PrefixDeleter is implemented by stores that can remove a project's objects.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

func GeneratedSlot(imageID string) string {
	return "generated_" + imageID + ".jpg"
}

// ObjectPath is the object name of slot under users/{owner}/{project}/.
// Every part must be a single path segment.
func ObjectPath(ownerID, projectID, slot string) (string, error) {
	if err := checkSegments(ownerID, projectID, slot); err != nil {
		return "", err
	}
	return path.Join("users", ownerID, projectID, slot), nil
}

// OwnerPrefix is the directory holding every project of one user.
func OwnerPrefix(ownerID string) (string, error) {
	if err := checkSegments(ownerID); err != nil {
		return "", err
	}
	return path.Join("users", ownerID) + "/", nil
}

// ProjectPrefix is the directory holding every object of one project.
func ProjectPrefix(ownerID, projectID string) (string, error) {
	if err := checkSegments(ownerID, projectID); err != nil {
		return "", err
	}
	return path.Join("users", ownerID, projectID) + "/", nil
}

func checkSegments(segments ...string) error {
	for _, s := range segments {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return fmt.Errorf("%w: %q", models.ErrInvalidPath, s)
		}
	}
	return nil
}

// UploadError wraps models.ErrDecode or models.ErrUploadTransport.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type Uploader struct {
	store  ObjectStore
	logger *zap.Logger
}

func NewUploader(store ObjectStore, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{store: store, logger: logger}
}

// Upload promotes an image to a durable URL. Remote refs are returned as
// they are without touching the store.
func (u *Uploader) Upload(ctx context.Context, ref models.ImageRef, ownerID, projectID, slot string) (string, error) {
	if ref.IsRemote() {
		return ref.URL(), nil
	}

	objectPath, err := ObjectPath(ownerID, projectID, slot)
	if err != nil {
		return "", err
	}
	if !ref.IsInline() || len(ref.Data()) == 0 {
		return "", &UploadError{Path: objectPath, Err: fmt.Errorf("%w: no image bytes", models.ErrDecode)}
	}

	url, err := u.store.Put(ctx, objectPath, ref.Data(), ref.MimeType())
	if err != nil {
		return "", &UploadError{Path: objectPath, Err: fmt.Errorf("%w: %w", models.ErrUploadTransport, err)}
	}

	u.logger.Debug("uploaded image",
		zap.String("path", objectPath),
		zap.Int("bytes", len(ref.Data())))
	return url, nil
}
