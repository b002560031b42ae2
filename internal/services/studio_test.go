package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reimagine-studio/internal/generation"
	"reimagine-studio/internal/models"
	"reimagine-studio/internal/project"
	"reimagine-studio/internal/services"
)

func fixedClock() func() time.Time {
	ms := int64(1700000000000)
	return func() time.Time { return time.UnixMilli(ms) }
}

func stateWithOriginal(t *testing.T) *project.State {
	s := project.NewState(project.WithClock(fixedClock()))
	s.InitNewProject(models.ModeInterior)
	original := models.InlineImage([]byte("room"), "image/jpeg")
	_, ok := s.UpdateProject(project.Patch{OriginalImage: &original})
	require.True(t, ok)
	return s
}

func TestGenerate_AllSucceed(t *testing.T) {
	gen := &fakeGen{}
	studio := services.NewStudio(gen, nil, services.WithStudioClock(fixedClock()))
	state := stateWithOriginal(t)

	res, err := studio.Generate(context.Background(), state, services.BatchRequest{
		Prompt: "Scandi", Label: "Scandinavian", Count: 3, AspectRatio: "4:3",
	})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Requested)
	assert.Equal(t, 3, res.Generated())

	ids := map[string]bool{}
	for _, img := range res.Project.GeneratedImages {
		ids[img.ID] = true
		assert.Equal(t, "Scandinavian", img.StyleName)
		assert.True(t, img.URL.IsInline())
	}
	assert.Len(t, ids, 3, "ids in a same-millisecond batch must be unique")

	require.Len(t, gen.generateReqs, 3)
	assert.Equal(t, []byte("room"), gen.generateReqs[0].Image.Data())
	assert.Equal(t, "4:3", gen.generateReqs[0].AspectRatio)
	assert.Equal(t, models.ModeInterior, gen.generateReqs[0].Mode)
}

func TestGenerate_AbortsAtFirstFailure(t *testing.T) {
	for _, k := range []int{1, 2, 4} {
		gen := &fakeGen{generateErrs: make([]error, 4)}
		gen.generateErrs[k-1] = generation.ErrNoImage
		studio := services.NewStudio(gen, nil)
		state := stateWithOriginal(t)

		res, err := studio.Generate(context.Background(), state, services.BatchRequest{Prompt: "p", Count: 4})
		require.NoError(t, err)

		var genErr *services.GenerationError
		require.True(t, errors.As(res.Err, &genErr))
		assert.Equal(t, k-1, genErr.Index)
		assert.ErrorIs(t, res.Err, generation.ErrNoImage)

		assert.Len(t, gen.generateReqs, k, "no request after the failing one")
		snap, _ := state.Snapshot()
		assert.Len(t, snap.GeneratedImages, k-1)
		assert.Equal(t, k-1, res.Generated())
	}
}

func TestGenerate_Preconditions(t *testing.T) {
	studio := services.NewStudio(&fakeGen{}, nil)

	_, err := studio.Generate(context.Background(), project.NewState(), services.BatchRequest{Prompt: "p"})
	assert.ErrorIs(t, err, models.ErrNoProject)

	empty := project.NewState()
	empty.InitNewProject(models.ModeAsset)
	_, err = studio.Generate(context.Background(), empty, services.BatchRequest{Prompt: "p"})
	assert.ErrorIs(t, err, models.ErrNoOriginalImage)

	state := stateWithOriginal(t)
	_, err = studio.Generate(context.Background(), state, services.BatchRequest{Prompt: "  "})
	assert.ErrorIs(t, err, services.ErrEmptyPrompt)

	_, err = studio.Generate(context.Background(), state, services.BatchRequest{Prompt: "p", Count: services.MaxBatchSize + 1})
	assert.ErrorIs(t, err, services.ErrBatchTooLarge)
}

func TestChat_RecordsReplyAndTags(t *testing.T) {
	gen := &fakeGen{chatReply: "Consider [VISUALIZE: Warm Industrial] or [VISUALIZE: Japandi]."}
	studio := services.NewStudio(gen, nil)
	state := stateWithOriginal(t)
	state.AddGeneratedImages(models.GeneratedImage{ID: "g1", URL: models.RemoteImage("https://cdn/g1.jpg")})

	res, err := studio.Chat(context.Background(), state, "any ideas?", services.ChatText)
	require.NoError(t, err)
	assert.Equal(t, []string{"Warm Industrial", "Japandi"}, res.Visualize)
	assert.Equal(t, "https://cdn/g1.jpg", gen.chatImage.URL(), "chat sees the latest image")
	assert.Empty(t, gen.chatHistory, "history excludes the message being sent")

	require.Len(t, res.Project.ChatMessages, 2)
	assert.Equal(t, models.RoleUser, res.Project.ChatMessages[0].Role)
	assert.Equal(t, "any ideas?", res.Project.ChatMessages[0].Content)
	assert.Equal(t, models.RoleModel, res.Project.ChatMessages[1].Role)
	assert.Equal(t, models.MessageText, res.Project.ChatMessages[1].Type)
}

func TestChat_FailureKeepsUserMessage(t *testing.T) {
	gen := &fakeGen{chatErr: errors.New("quota")}
	studio := services.NewStudio(gen, nil)
	state := stateWithOriginal(t)

	_, err := studio.Chat(context.Background(), state, "hello", services.ChatText)
	assert.Error(t, err)

	snap, _ := state.Snapshot()
	require.Len(t, snap.ChatMessages, 1)
	assert.Equal(t, models.RoleUser, snap.ChatMessages[0].Role)
}

func TestChat_Visualize(t *testing.T) {
	gen := &fakeGen{}
	studio := services.NewStudio(gen, nil)
	state := stateWithOriginal(t)

	res, err := studio.Chat(context.Background(), state, "Dramatic Noir", services.ChatVisualize)
	require.NoError(t, err)
	require.NotNil(t, res.Generation)
	assert.Equal(t, 1, res.Generation.Generated())

	require.Len(t, gen.generateReqs, 1)
	assert.Equal(t, "Dramatic Noir", gen.generateReqs[0].Prompt)
	assert.Equal(t, services.ChatRequestAspect, gen.generateReqs[0].AspectRatio)

	require.Len(t, res.Project.GeneratedImages, 1)
	assert.Equal(t, services.ChatRequestLabel, res.Project.GeneratedImages[0].StyleName)
	require.Len(t, res.Project.ChatMessages, 1)
}

func TestChat_Validation(t *testing.T) {
	studio := services.NewStudio(&fakeGen{}, nil)
	state := stateWithOriginal(t)

	_, err := studio.Chat(context.Background(), state, " ", services.ChatText)
	assert.ErrorIs(t, err, services.ErrEmptyMessage)

	_, err = studio.Chat(context.Background(), state, "hi", services.ChatKind("shout"))
	assert.ErrorIs(t, err, services.ErrUnknownChatKind)

	_, err = studio.Chat(context.Background(), project.NewState(), "hi", services.ChatText)
	assert.ErrorIs(t, err, models.ErrNoProject)
}

func TestAnalyze_StoresSuggestions(t *testing.T) {
	gen := &fakeGen{styles: []models.SuggestedStyle{{ID: "s1", Label: "Loft"}}}
	studio := services.NewStudio(gen, nil)
	state := stateWithOriginal(t)

	styles, p, err := studio.Analyze(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, gen.styles, styles)
	assert.Equal(t, gen.styles, p.SuggestedStyles)
}

func TestUpdateProject_ReferenceWithoutPromptIsDescribed(t *testing.T) {
	gen := &fakeGen{styleRef: "muted sage palette"}
	studio := services.NewStudio(gen, nil)
	state := stateWithOriginal(t)

	ref := models.InlineImage([]byte("ref"), "")
	p, err := studio.UpdateProject(context.Background(), state, project.Patch{ReferenceImage: &ref})
	require.NoError(t, err)
	assert.Equal(t, "muted sage palette", p.UserPrompt)

	prompt := "keep it bright"
	p, err = studio.UpdateProject(context.Background(), state, project.Patch{ReferenceImage: &ref, UserPrompt: &prompt})
	require.NoError(t, err)
	assert.Equal(t, "keep it bright", p.UserPrompt)
}

func TestUpdateProject_ReferenceAnalysisFailureIsSkipped(t *testing.T) {
	gen := &fakeGen{styleErr: errors.New("down")}
	studio := services.NewStudio(gen, nil)
	state := stateWithOriginal(t)

	ref := models.InlineImage([]byte("ref"), "")
	p, err := studio.UpdateProject(context.Background(), state, project.Patch{ReferenceImage: &ref})
	require.NoError(t, err)
	assert.Empty(t, p.UserPrompt)
	assert.True(t, p.ReferenceImage.IsInline())

	_, err = studio.UpdateProject(context.Background(), project.NewState(), project.Patch{})
	assert.ErrorIs(t, err, models.ErrNoProject)
}
