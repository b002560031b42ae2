package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"reimagine-studio/internal/models"
)

// OpenAIProvider implements Service with the OpenAI images and chat APIs.
type OpenAIProvider struct {
	client     *openai.Client
	imageModel string
	chatModel  string
	httpClient *http.Client
	now        func() time.Time
}

func NewOpenAIProvider(apiKey, baseURL, imageModel, chatModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(cfg),
		imageModel: imageModel,
		chatModel:  chatModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
}

// imageFile carries the multipart file name and content type go-openai
// reads from the reader.
type imageFile struct {
	*bytes.Reader
	name        string
	contentType string
}

func (f imageFile) Name() string        { return f.name }
func (f imageFile) ContentType() string { return f.contentType }

func newImageFile(data []byte, mimeType string) imageFile {
	ext := strings.TrimPrefix(mimeType, "image/")
	if ext == "jpeg" {
		ext = "jpg"
	}
	return imageFile{Reader: bytes.NewReader(data), name: "image." + ext, contentType: mimeType}
}

func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "16:9", "4:3", "3:2":
		return openai.CreateImageSize1536x1024
	case "9:16", "3:4", "2:3":
		return openai.CreateImageSize1024x1536
	default:
		return openai.CreateImageSize1024x1024
	}
}

// Generate edits the subject image. The edits endpoint takes one image, so
// a reference image is described in text and folded into the prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (models.ImageRef, error) {
	subject, subjectType, err := loadImage(ctx, p.httpClient, req.Image)
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("failed to load subject image: %w", err)
	}

	var referenceDescription string
	if !req.ReferenceImage.IsZero() {
		referenceDescription, err = p.AnalyzeStyleReference(ctx, req.ReferenceImage)
		if err != nil {
			return models.ImageRef{}, fmt.Errorf("failed to describe reference image: %w", err)
		}
	}

	resp, err := p.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          newImageFile(subject, subjectType),
		Prompt:         BuildPrompt(req.Mode, req.Prompt, referenceDescription, ""),
		Model:          p.imageModel,
		N:              1,
		Size:           imageSize(req.AspectRatio),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("failed to edit image: %w", err)
	}

	for _, d := range resp.Data {
		if d.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil || len(data) == 0 {
				return models.ImageRef{}, fmt.Errorf("%w: undecodable image data", ErrNoImage)
			}
			return models.InlineImage(data, "image/png"), nil
		}
		if d.URL != "" {
			return models.RemoteImage(d.URL), nil
		}
	}
	return models.ImageRef{}, ErrNoImage
}

// imageURL renders ref the way the chat API accepts images.
func imageURL(ref models.ImageRef) string {
	return ref.String()
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []models.ChatMessage, message string, mode models.Mode, contextImage models.ImageRef) (string, error) {
	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: ChatSystemInstruction(mode),
	}}
	for _, msg := range history {
		if msg.Role == models.RoleSystem || msg.Type != models.MessageText {
			continue
		}
		role := openai.ChatMessageRoleUser
		if msg.Role == models.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if contextImage.IsZero() {
		userMsg.Content = message
	} else {
		userMsg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: message},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
				URL:    imageURL(contextImage),
				Detail: openai.ImageURLDetailAuto,
			}},
		}
	}
	messages = append(messages, userMsg)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.chatModel,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return EmptyChatReply, nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAIProvider) Analyze(ctx context.Context, image models.ImageRef, mode models.Mode) ([]models.SuggestedStyle, error) {
	text, err := p.describe(ctx, image, AnalyzePrompt(mode), true)
	if err != nil {
		return nil, err
	}
	return parseSuggestions(text, p.now())
}

func (p *OpenAIProvider) AnalyzeStyleReference(ctx context.Context, image models.ImageRef) (string, error) {
	return p.describe(ctx, image, styleReferencePrompt, false)
}

func (p *OpenAIProvider) describe(ctx context.Context, image models.ImageRef, prompt string, jsonOutput bool) (string, error) {
	if image.IsZero() {
		return "", ErrNoInput
	}

	req := openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: imageURL(image)}},
			},
		}},
	}
	if jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
