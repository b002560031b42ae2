package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reimagine-studio/internal/models"
)

var (
	// ErrNoImage is returned when a generation call succeeds but carries no image.
	ErrNoImage       = errors.New("no image generated")
	// ErrNoInput is returned when a call needs an input image and none was given.
	ErrNoInput       = errors.New("no input image")
	// ErrImageTooLarge is returned when a remote input image exceeds the download limit.
	ErrImageTooLarge = errors.New("input image too large")
)

const (
	DefaultAspectRatio       = "1:1"
	EmptyChatReply           = "I couldn't generate a response."
	FallbackStyleDescription = "Professional studio lighting, high fidelity."
)

type GenerateRequest struct {
	Image          models.ImageRef
	Prompt         string
	Mode           models.Mode
	ReferenceImage models.ImageRef
	AspectRatio    string
}

// Service is an image and text generation backend.
type Service interface {
	// Generate returns a transformed version of req.Image as inline bytes.
	Generate(ctx context.Context, req GenerateRequest) (models.ImageRef, error)
	// Chat answers message in the context of history; the reply may contain
	// [VISUALIZE: ...] tags.
	Chat(ctx context.Context, history []models.ChatMessage, message string, mode models.Mode, contextImage models.ImageRef) (string, error)
	// Analyze suggests styles for the subject of image.
	Analyze(ctx context.Context, image models.ImageRef, mode models.Mode) ([]models.SuggestedStyle, error)
	// AnalyzeStyleReference describes the aesthetic of a reference image.
	AnalyzeStyleReference(ctx context.Context, image models.ImageRef) (string, error)
}

// FallbackSuggestions is used when style analysis is unavailable.
func FallbackSuggestions() []models.SuggestedStyle {
	return []models.SuggestedStyle{{
		ID:          "err",
		Label:       "Modern Studio",
		Description: "Clean and professional",
		Prompt:      "Modern studio setting, neutral background",
		Color:       "from-gray-500 to-gray-700",
	}}
}

type fallbackService struct {
	Service
	logger *zap.Logger
}

// WithFallbacks makes analysis calls degrade to canned answers instead of
// failing. Generate and Chat errors pass through unchanged.
func WithFallbacks(svc Service, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fallbackService{Service: svc, logger: logger}
}

func (f *fallbackService) Analyze(ctx context.Context, image models.ImageRef, mode models.Mode) ([]models.SuggestedStyle, error) {
	styles, err := f.Service.Analyze(ctx, image, mode)
	if err != nil || len(styles) == 0 {
		f.logger.Warn("style analysis failed, using fallback",
			zap.String("mode", string(mode)),
			zap.Error(err))
		return FallbackSuggestions(), nil
	}
	return styles, nil
}

func (f *fallbackService) AnalyzeStyleReference(ctx context.Context, image models.ImageRef) (string, error) {
	desc, err := f.Service.AnalyzeStyleReference(ctx, image)
	if err != nil || strings.TrimSpace(desc) == "" {
		f.logger.Warn("style reference analysis failed, using fallback", zap.Error(err))
		return FallbackStyleDescription, nil
	}
	return desc, nil
}

// APIError is a non-2xx answer from a vendor API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
