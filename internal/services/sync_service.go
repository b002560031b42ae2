package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reimagine-studio/internal/models"
	"reimagine-studio/internal/supabase"
)

// MetadataStore persists storage-shaped projects. Every image of a project
// handed to SaveProject must already be a durable URL.
type MetadataStore interface {
	SaveProject(ctx context.Context, owner models.Owner, p models.Project) error
	ListProjectsForUser(ctx context.Context, userID string) []models.Project
	GetProject(ctx context.Context, userID, projectID string) (*models.Project, error)
	DeleteProject(ctx context.Context, userID, projectID string) error
}

type EventPublisher interface {
	PublishProjectEvent(ctx context.Context, userID, projectID, event string, payload map[string]interface{}) error
}

// SyncService promotes a project's images to the object store and then
// writes its metadata in a single transaction.
type SyncService struct {
	uploader *Uploader
	store    ObjectStore
	db       MetadataStore
	events   EventPublisher
	logger   *zap.Logger
}

// NewSyncService wires the save pipeline. events may be nil.
func NewSyncService(store ObjectStore, db MetadataStore, events EventPublisher, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		uploader: NewUploader(store, logger),
		store:    store,
		db:       db,
		events:   events,
		logger:   logger,
	}
}

// SaveProject persists snapshot for owner and returns the stored shape of
// the project, in which every image is a durable URL. Nothing is written
// to the metadata store unless every upload succeeded.
func (s *SyncService) SaveProject(ctx context.Context, snapshot models.Project, owner models.Owner) (models.Project, error) {
	if owner.ID == "" {
		return models.Project{}, models.ErrUnauthenticated
	}
	if snapshot.OriginalImage.IsZero() {
		return models.Project{}, models.ErrNoOriginalImage
	}

	if err := models.ValidateGeneratedImages(snapshot.ID, snapshot.GeneratedImages); err != nil {
		return models.Project{}, err
	}

	stored := snapshot.Clone()

	url, err := s.uploader.Upload(ctx, stored.OriginalImage, owner.ID, stored.ID, SlotOriginal)
	if err != nil {
		return models.Project{}, err
	}
	stored.OriginalImage = models.RemoteImage(url)

	if !stored.ReferenceImage.IsZero() {
		url, err = s.uploader.Upload(ctx, stored.ReferenceImage, owner.ID, stored.ID, SlotReference)
		if err != nil {
			return models.Project{}, err
		}
		stored.ReferenceImage = models.RemoteImage(url)
	}

	for i, img := range stored.GeneratedImages {
		url, err = s.uploader.Upload(ctx, img.URL, owner.ID, stored.ID, GeneratedSlot(img.ID))
		if err != nil {
			return models.Project{}, err
		}
		stored.GeneratedImages[i].URL = models.RemoteImage(url)
	}

	if err := s.db.SaveProject(ctx, owner, stored); err != nil {
		return models.Project{}, err
	}

	s.publish(ctx, owner.ID, stored.ID, supabase.EventProjectSaved, supabase.ProjectSavedPayload(stored))
	return stored, nil
}

// CheckImageURL rejects remote refs that do not point into ownerID's area
// of the object store. Inline and empty refs always pass.
func (s *SyncService) CheckImageURL(ownerID string, ref models.ImageRef) error {
	if !ref.IsRemote() {
		return nil
	}
	prefix, err := OwnerPrefix(ownerID)
	if err != nil {
		return err
	}
	base := s.store.PublicURL(prefix)
	raw := ref.URL()
	if base == "" || !strings.HasPrefix(raw, base) {
		return fmt.Errorf("%w: %s", models.ErrForeignImageURL, raw)
	}
	if rest := raw[len(base):]; strings.Contains(rest, "..") || strings.ContainsAny(rest, `\?#%`) {
		return fmt.Errorf("%w: %s", models.ErrForeignImageURL, raw)
	}
	return nil
}

func (s *SyncService) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.db.ListProjectsForUser(ctx, userID), nil
}

func (s *SyncService) GetProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.db.GetProject(ctx, userID, projectID)
}

// DeleteProject removes the metadata rows first. Object cleanup is best
// effort: a failure leaves orphaned objects but the project is gone.
func (s *SyncService) DeleteProject(ctx context.Context, owner models.Owner, projectID string) error {
	if owner.ID == "" {
		return models.ErrUnauthenticated
	}
	if err := s.db.DeleteProject(ctx, owner.ID, projectID); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}

	if deleter, ok := s.store.(PrefixDeleter); ok {
		prefix, err := ProjectPrefix(owner.ID, projectID)
		if err == nil {
			err = deleter.DeletePrefix(ctx, prefix)
		}
		if err != nil {
			s.logger.Warn("failed to remove project objects",
				zap.String("project_id", projectID),
				zap.Error(err))
		}
	}

	s.publish(ctx, owner.ID, projectID, supabase.EventProjectDeleted, supabase.ProjectDeletedPayload(projectID))
	return nil
}

func (s *SyncService) publish(ctx context.Context, userID, projectID, event string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishProjectEvent(ctx, userID, projectID, event, payload); err != nil {
		s.logger.Warn("failed to publish project event",
			zap.String("event", event),
			zap.String("project_id", projectID),
			zap.Error(err))
	}
}
