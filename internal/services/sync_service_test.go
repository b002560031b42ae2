package services_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reimagine-studio/internal/database/dbtest"
	"reimagine-studio/internal/models"
	"reimagine-studio/internal/services"
	"reimagine-studio/internal/supabase"
)

var owner = models.Owner{ID: "user-1", Email: "user@example.com"}

type syncFixture struct {
	store  *fakeStore
	events *fakeEvents
	db     *supabase.DatabaseClient
	svc    *services.SyncService
}

func newSyncFixture(t *testing.T, opts ...supabase.Option) *syncFixture {
	store := newFakeStore()
	events := &fakeEvents{}
	db := supabase.NewDatabaseClient(dbtest.New(t), nil, opts...)
	return &syncFixture{
		store:  store,
		events: events,
		db:     db,
		svc:    services.NewSyncService(store, db, events, nil),
	}
}

func draftProject() models.Project {
	return models.Project{
		ID:              "proj_1",
		Name:            "Living Room",
		Mode:            models.ModeInterior,
		CreatedAt:       1000,
		UpdatedAt:       1000,
		OriginalImage:   models.InlineImage([]byte("original-bytes"), "image/jpeg"),
		GeneratedImages: []models.GeneratedImage{},
		ChatMessages:    []models.ChatMessage{},
		ImageCount:      1,
	}
}

func generated(id string, ts int64) models.GeneratedImage {
	return models.GeneratedImage{
		ID:        id,
		URL:       models.InlineImage([]byte("gen-"+id), "image/png"),
		Prompt:    "scandi",
		StyleName: "Scandi",
		Timestamp: ts,
	}
}

func TestSaveProject_RequiresOwner(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.SaveProject(context.Background(), draftProject(), models.Owner{})
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	assert.Zero(t, f.store.putCount())
}

func TestSaveProject_RequiresOriginalImage(t *testing.T) {
	f := newSyncFixture(t)
	p := draftProject()
	p.OriginalImage = models.ImageRef{}

	_, err := f.svc.SaveProject(context.Background(), p, owner)
	assert.ErrorIs(t, err, models.ErrNoOriginalImage)
	assert.Zero(t, f.store.putCount())

	projects, err := f.svc.ListProjects(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestSaveProject_ThenReload(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	draft := draftProject()

	stored, err := f.svc.SaveProject(ctx, draft, owner)
	require.NoError(t, err)
	assert.True(t, draft.OriginalImage.IsInline(), "caller snapshot must not be modified")
	assert.Equal(t, "https://store.test/users/user-1/proj_1/original.jpg", stored.OriginalImage.URL())

	projects, err := f.svc.ListProjects(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	got := projects[0]
	assert.Equal(t, "proj_1", got.ID)
	assert.Equal(t, models.ModeInterior, got.Mode)
	assert.True(t, got.OriginalImage.IsRemote())
	assert.Equal(t, stored.OriginalImage.URL(), got.OriginalImage.URL())
	assert.Empty(t, got.GeneratedImages)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, supabase.EventProjectSaved, f.events.events[0].Event)
}

func TestSaveProject_RoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	draft := draftProject()
	draft.ReferenceImage = models.InlineImage([]byte("ref"), "image/webp")
	draft.GeneratedImages = []models.GeneratedImage{generated("20000", 2000), generated("30000", 3000), generated("30001", 3000)}
	draft.ChatMessages = []models.ChatMessage{
		{Role: models.RoleUser, Content: "make it cosy", Timestamp: 1500, Type: models.MessageText},
		{Role: models.RoleModel, Content: "try [VISUALIZE: Hygge]", Timestamp: 1600, Type: models.MessageText},
	}

	stored, err := f.svc.SaveProject(ctx, draft, owner)
	require.NoError(t, err)

	paths := []string{}
	for _, put := range f.store.puts {
		paths = append(paths, put.Path)
	}
	assert.Equal(t, []string{
		"users/user-1/proj_1/original.jpg",
		"users/user-1/proj_1/reference.jpg",
		"users/user-1/proj_1/generated_20000.jpg",
		"users/user-1/proj_1/generated_30000.jpg",
		"users/user-1/proj_1/generated_30001.jpg",
	}, paths)

	got, err := f.svc.GetProject(ctx, owner.ID, "proj_1")
	require.NoError(t, err)
	assert.Equal(t, stored.ReferenceImage.URL(), got.ReferenceImage.URL())
	require.Len(t, got.GeneratedImages, 3)
	for i, img := range got.GeneratedImages {
		assert.Equal(t, stored.GeneratedImages[i].ID, img.ID)
		assert.Equal(t, stored.GeneratedImages[i].URL.URL(), img.URL.URL())
	}
	require.Len(t, got.ChatMessages, 2)
	assert.Equal(t, "make it cosy", got.ChatMessages[0].Content)
	assert.Equal(t, models.RoleModel, got.ChatMessages[1].Role)
}

func TestSaveProject_ResaveSkipsDurableImages(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	draft := draftProject()
	draft.GeneratedImages = []models.GeneratedImage{generated("20000", 2000)}

	stored, err := f.svc.SaveProject(ctx, draft, owner)
	require.NoError(t, err)
	require.Equal(t, 2, f.store.putCount())

	_, err = f.svc.SaveProject(ctx, stored, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.putCount())
}

func TestSaveProject_DeleteThenReinsert(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	draft := draftProject()
	draft.GeneratedImages = []models.GeneratedImage{generated("20000", 2000), generated("30000", 3000)}

	stored, err := f.svc.SaveProject(ctx, draft, owner)
	require.NoError(t, err)

	second := stored.Clone()
	second.GeneratedImages = []models.GeneratedImage{stored.GeneratedImages[1], generated("40000", 4000)}
	_, err = f.svc.SaveProject(ctx, second, owner)
	require.NoError(t, err)

	got, err := f.svc.GetProject(ctx, owner.ID, "proj_1")
	require.NoError(t, err)
	ids := []string{}
	for _, img := range got.GeneratedImages {
		ids = append(ids, img.ID)
	}
	assert.Equal(t, []string{"30000", "40000"}, ids)
}

func TestSaveProject_UploadFailureSkipsTransaction(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)

	first, err := f.svc.SaveProject(ctx, draftProject(), owner)
	require.NoError(t, err)

	next := first.Clone()
	next.Name = "Renamed"
	next.GeneratedImages = []models.GeneratedImage{generated("20000", 2000), generated("30000", 3000)}
	f.store.failPath = "users/user-1/proj_1/generated_30000.jpg"

	_, err = f.svc.SaveProject(ctx, next, owner)
	var uploadErr *services.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.ErrorIs(t, err, models.ErrUploadTransport)

	got, err := f.svc.GetProject(ctx, owner.ID, "proj_1")
	require.NoError(t, err)
	assert.Equal(t, "Living Room", got.Name)
	assert.Empty(t, got.GeneratedImages)
	assert.Len(t, f.events.events, 1)
}

func TestSaveProject_TransactionFailureKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	failCommit := false
	f := newSyncFixture(t, supabase.WithBeforeCommit(func(context.Context, *sql.Tx) error {
		if failCommit {
			return errors.New("injected failure")
		}
		return nil
	}))

	draft := draftProject()
	draft.GeneratedImages = []models.GeneratedImage{generated("20000", 2000)}
	_, err := f.svc.SaveProject(ctx, draft, owner)
	require.NoError(t, err)
	before, err := f.svc.GetProject(ctx, owner.ID, "proj_1")
	require.NoError(t, err)

	failCommit = true
	next := draftProject()
	next.Name = "Renamed"
	next.GeneratedImages = []models.GeneratedImage{generated("50000", 5000)}
	_, err = f.svc.SaveProject(ctx, next, owner)

	var txErr *supabase.TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, supabase.StepBeforeCommit, txErr.Step)

	after, err := f.svc.GetProject(ctx, owner.ID, "proj_1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSaveProject_EventFailureDoesNotFailSave(t *testing.T) {
	f := newSyncFixture(t)
	f.events.err = errors.New("realtime down")

	_, err := f.svc.SaveProject(context.Background(), draftProject(), owner)
	assert.NoError(t, err)
}

func TestDeleteProject(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	_, err := f.svc.SaveProject(ctx, draftProject(), owner)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteProject(ctx, owner, "proj_1"))
	assert.Equal(t, []string{"users/user-1/proj_1/"}, f.store.deleted)

	projects, err := f.svc.ListProjects(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
	assert.Equal(t, supabase.EventProjectDeleted, f.events.events[len(f.events.events)-1].Event)

	err = f.svc.DeleteProject(ctx, owner, "proj_1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteProject_ObjectCleanupIsBestEffort(t *testing.T) {
	ctx := context.Background()
	f := newSyncFixture(t)
	_, err := f.svc.SaveProject(ctx, draftProject(), owner)
	require.NoError(t, err)

	f.store.deleteErr = errors.New("bucket unavailable")
	assert.NoError(t, f.svc.DeleteProject(ctx, owner, "proj_1"))
}

func TestListProjects_RequiresUser(t *testing.T) {
	f := newSyncFixture(t)
	_, err := f.svc.ListProjects(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestSaveProject_RejectsImageIDOutsideProject(t *testing.T) {
	f := newSyncFixture(t)
	p := draftProject()
	p.GeneratedImages = []models.GeneratedImage{generated("/../../../victim/proj_v/original", 2000)}

	_, err := f.svc.SaveProject(context.Background(), p, owner)
	assert.ErrorIs(t, err, models.ErrInvalidImageID)
	assert.Zero(t, f.store.putCount())
	_, stored := f.store.objects["users/victim/proj_v/original.jpg"]
	assert.False(t, stored)

	projects, err := f.svc.ListProjects(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestSaveProject_RejectsCollidingImageIDsBeforeUpload(t *testing.T) {
	f := newSyncFixture(t)
	p := draftProject()
	p.GeneratedImages = []models.GeneratedImage{generated("g1", 2000), generated("g1", 2001)}

	_, err := f.svc.SaveProject(context.Background(), p, owner)
	assert.ErrorIs(t, err, models.ErrDuplicateImage)

	p.GeneratedImages = []models.GeneratedImage{generated(models.OriginalImageID(p.ID), 2000)}
	_, err = f.svc.SaveProject(context.Background(), p, owner)
	assert.ErrorIs(t, err, models.ErrInvalidImageID)
	assert.Zero(t, f.store.putCount())
}

func TestCheckImageURL(t *testing.T) {
	f := newSyncFixture(t)

	allowed := []models.ImageRef{
		{},
		models.InlineImage([]byte("x"), ""),
		models.RemoteImage("https://store.test/users/user-1/proj_1/original.jpg"),
		models.RemoteImage("https://store.test/users/user-1/proj_2/generated_1.jpg"),
	}
	for _, ref := range allowed {
		assert.NoError(t, f.svc.CheckImageURL(owner.ID, ref), ref.URL())
	}

	rejected := []string{
		"http://169.254.169.254/latest/meta-data/",
		"https://store.test.evil.example.com/users/user-1/a.jpg",
		"https://store.test/users/user-10/proj_1/original.jpg",
		"https://store.test/users/user-1/../user-2/proj_1/original.jpg",
		"https://store.test/users/user-1/%2e%2e/user-2/original.jpg",
		"https://store.test/users/user-1/a.jpg?redirect=https://evil.example.com",
	}
	for _, raw := range rejected {
		err := f.svc.CheckImageURL(owner.ID, models.RemoteImage(raw))
		assert.ErrorIs(t, err, models.ErrForeignImageURL, raw)
	}

	err := f.svc.CheckImageURL("", models.RemoteImage("https://store.test/users/"))
	assert.ErrorIs(t, err, models.ErrInvalidPath)
}
