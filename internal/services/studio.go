package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"reimagine-studio/internal/generation"
	"reimagine-studio/internal/models"
	"reimagine-studio/internal/project"
)

const (
	MaxBatchSize      = 8
	ChatRequestLabel  = "Chat Request"
	ChatRequestAspect = "1:1"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrEmptyPrompt     = errors.New("prompt is empty")
	ErrBatchTooLarge   = fmt.Errorf("batch size exceeds %d", MaxBatchSize)
	ErrUnknownChatKind = errors.New("unknown chat type")
)

type ChatKind string

const (
	ChatText      ChatKind = "chat"
	ChatVisualize ChatKind = "visualize"
)

// GenerationError reports which item of a batch failed. Index is zero based.
type GenerationError struct {
	Index int
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %d failed: %v", e.Index+1, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type BatchRequest struct {
	Prompt      string
	Label       string
	Count       int
	AspectRatio string
}

// BatchResult is returned even when the batch stopped early. Err is the
// *GenerationError that stopped it, if any.
type BatchResult struct {
	Project   models.Project
	Requested int
	Images    []models.GeneratedImage
	Err       error
}

func (r BatchResult) Generated() int { return len(r.Images) }

type ChatResult struct {
	Project    models.Project
	Reply      string
	Visualize  []string
	Generation *BatchResult
}

// Studio runs the AI flows against a session's project state.
type Studio struct {
	gen    generation.Service
	logger *zap.Logger
	now    func() time.Time
}

type StudioOption func(*Studio)

func WithStudioClock(now func() time.Time) StudioOption {
	return func(s *Studio) { s.now = now }
}

func NewStudio(gen generation.Service, logger *zap.Logger, opts ...StudioOption) *Studio {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Studio{gen: gen, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateProject applies patch. When a reference image is attached without
// a prompt, the prompt becomes the reference's style description.
func (s *Studio) UpdateProject(ctx context.Context, state *project.State, patch project.Patch) (models.Project, error) {
	if patch.ReferenceImage != nil && !patch.ReferenceImage.IsZero() &&
		(patch.UserPrompt == nil || strings.TrimSpace(*patch.UserPrompt) == "") {
		desc, err := s.gen.AnalyzeStyleReference(ctx, *patch.ReferenceImage)
		if err != nil {
			s.logger.Warn("reference analysis skipped", zap.Error(err))
		} else if desc != "" {
			patch.UserPrompt = &desc
		}
	}

	p, ok := state.UpdateProject(patch)
	if !ok {
		return models.Project{}, models.ErrNoProject
	}
	return p, nil
}

// Generate runs a sequential batch. Item i+1 is requested only after item i
// succeeded; the first failure stops the batch and is not retried. Every
// result is added to the state as soon as it arrives.
func (s *Studio) Generate(ctx context.Context, state *project.State, req BatchRequest) (BatchResult, error) {
	snap, ok := state.Snapshot()
	if !ok {
		return BatchResult{}, models.ErrNoProject
	}
	if snap.OriginalImage.IsZero() {
		return BatchResult{}, models.ErrNoOriginalImage
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return BatchResult{}, ErrEmptyPrompt
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > MaxBatchSize {
		return BatchResult{}, ErrBatchTooLarge
	}

	result := BatchResult{
		Project:   snap,
		Requested: req.Count,
		Images:    []models.GeneratedImage{},
	}

	for i := 0; i < req.Count; i++ {
		ref, err := s.gen.Generate(ctx, generation.GenerateRequest{
			Image:          snap.OriginalImage,
			Prompt:         req.Prompt,
			Mode:           snap.Mode,
			ReferenceImage: snap.ReferenceImage,
			AspectRatio:    req.AspectRatio,
		})
		if err != nil {
			result.Err = &GenerationError{Index: i, Err: err}
			s.logger.Error("generation failed",
				zap.String("project_id", snap.ID),
				zap.Int("index", i),
				zap.Int("requested", req.Count),
				zap.Error(err))
			break
		}

		ts := s.now().UnixMilli()
		img := models.GeneratedImage{
			ID:        models.NewGeneratedImageID(ts, i),
			URL:       ref,
			Prompt:    req.Prompt,
			StyleName: req.Label,
			Timestamp: ts,
		}
		p, ok := state.AddGeneratedImages(img)
		if !ok {
			return result, models.ErrNoProject
		}
		result.Project = p
		result.Images = append(result.Images, img)
	}

	s.logger.Info("generation batch finished",
		zap.String("project_id", snap.ID),
		zap.Int("requested", result.Requested),
		zap.Int("generated", result.Generated()))
	return result, nil
}

// Chat records the user's message. A visualize message runs a one image
// generation; a chat message asks the consultant about the current image
// and records the reply.
func (s *Studio) Chat(ctx context.Context, state *project.State, text string, kind ChatKind) (ChatResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	if kind == "" {
		kind = ChatText
	}
	if kind != ChatText && kind != ChatVisualize {
		return ChatResult{}, fmt.Errorf("%w: %q", ErrUnknownChatKind, kind)
	}

	before, ok := state.Snapshot()
	if !ok {
		return ChatResult{}, models.ErrNoProject
	}

	p, ok := state.AppendChatMessages(models.ChatMessage{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: s.now().UnixMilli(),
		Type:      models.MessageText,
	})
	if !ok {
		return ChatResult{}, models.ErrNoProject
	}

	if kind == ChatVisualize {
		batch, err := s.Generate(ctx, state, BatchRequest{
			Prompt:      text,
			Label:       ChatRequestLabel,
			Count:       1,
			AspectRatio: ChatRequestAspect,
		})
		if err != nil {
			return ChatResult{Project: p}, err
		}
		return ChatResult{Project: batch.Project, Generation: &batch}, nil
	}

	reply, err := s.gen.Chat(ctx, before.ChatMessages, text, before.Mode, before.CurrentImage())
	if err != nil {
		return ChatResult{Project: p}, fmt.Errorf("failed to chat: %w", err)
	}

	p, ok = state.AppendChatMessages(models.ChatMessage{
		Role:      models.RoleModel,
		Content:   reply,
		Timestamp: s.now().UnixMilli(),
		Type:      models.MessageText,
	})
	if !ok {
		return ChatResult{}, models.ErrNoProject
	}

	return ChatResult{
		Project:   p,
		Reply:     reply,
		Visualize: generation.ParseVisualizeTags(reply),
	}, nil
}

// Analyze stores style suggestions for the project's original image.
func (s *Studio) Analyze(ctx context.Context, state *project.State) ([]models.SuggestedStyle, models.Project, error) {
	snap, ok := state.Snapshot()
	if !ok {
		return nil, models.Project{}, models.ErrNoProject
	}
	if snap.OriginalImage.IsZero() {
		return nil, models.Project{}, models.ErrNoOriginalImage
	}

	styles, err := s.gen.Analyze(ctx, snap.OriginalImage, snap.Mode)
	if err != nil {
		return nil, models.Project{}, fmt.Errorf("failed to analyze image: %w", err)
	}

	p, ok := state.UpdateProject(project.Patch{SuggestedStyles: &styles})
	if !ok {
		return nil, models.Project{}, models.ErrNoProject
	}
	return styles, p, nil
}
