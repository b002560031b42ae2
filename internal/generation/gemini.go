package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reimagine-studio/internal/models"
)

// GeminiClient talks to the Gemini generateContent REST endpoint.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	imageModel string
	chatModel  string
	httpClient *http.Client
	backoffs   []time.Duration
	now        func() time.Time
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ResponseMimeType   string             `json:"responseMimeType,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type GenerateContentRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type GenerateContentResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (r *GenerateContentResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

func (r *GenerateContentResponse) image() (*geminiInlineData, bool) {
	if len(r.Candidates) == 0 {
		return nil, false
	}
	for _, p := range r.Candidates[0].Content.Parts {
		if p.InlineData != nil && p.InlineData.Data != "" {
			return p.InlineData, true
		}
	}
	return nil, false
}

func NewGeminiClient(baseURL, apiKey, imageModel, chatModel string) *GeminiClient {
	return &GeminiClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: imageModel,
		chatModel:  chatModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		now:      time.Now,
	}
}

// WithBackoffs replaces the retry schedule; its length is the retry budget.
func (c *GeminiClient) WithBackoffs(backoffs ...time.Duration) *GeminiClient {
	c.backoffs = backoffs
	return c
}

func inlinePart(data []byte, mimeType string) geminiPart {
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

// Generate makes a single attempt; batch callers decide what a failure means.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (models.ImageRef, error) {
	subject, subjectType, err := loadImage(ctx, c.httpClient, req.Image)
	if err != nil {
		return models.ImageRef{}, fmt.Errorf("failed to load subject image: %w", err)
	}
	parts := []geminiPart{inlinePart(subject, subjectType)}

	instruction := req.Prompt
	if !req.ReferenceImage.IsZero() {
		ref, refType, err := loadImage(ctx, c.httpClient, req.ReferenceImage)
		if err != nil {
			return models.ImageRef{}, fmt.Errorf("failed to load reference image: %w", err)
		}
		parts = append(parts, inlinePart(ref, refType))
		instruction = StyleTransferInstruction(req.Prompt)
	}
	parts = append(parts, geminiPart{Text: BuildPrompt(req.Mode, instruction, "", "")})

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = DefaultAspectRatio
	}

	resp, err := c.generateContent(ctx, c.imageModel, GenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: aspect},
		},
	})
	if err != nil {
		return models.ImageRef{}, err
	}

	img, ok := resp.image()
	if !ok {
		return models.ImageRef{}, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil || len(data) == 0 {
		return models.ImageRef{}, fmt.Errorf("%w: undecodable image data", ErrNoImage)
	}
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return models.InlineImage(data, mimeType), nil
}

func (c *GeminiClient) Chat(ctx context.Context, history []models.ChatMessage, message string, mode models.Mode, contextImage models.ImageRef) (string, error) {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == models.RoleSystem || msg.Type != models.MessageText {
			continue
		}
		contents = append(contents, geminiContent{
			Role:  string(msg.Role),
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	parts := []geminiPart{{Text: message}}
	if !contextImage.IsZero() {
		data, mimeType, err := loadImage(ctx, c.httpClient, contextImage)
		if err != nil {
			return "", fmt.Errorf("failed to load context image: %w", err)
		}
		parts = append(parts, inlinePart(data, mimeType))
	}
	contents = append(contents, geminiContent{Role: string(models.RoleUser), Parts: parts})

	var resp *GenerateContentResponse
	err := c.RetryWithBackoff(func() error {
		var err error
		resp, err = c.generateContent(ctx, c.chatModel, GenerateContentRequest{
			Contents:          contents,
			SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: ChatSystemInstruction(mode)}}},
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if text := resp.text(); text != "" {
		return text, nil
	}
	return EmptyChatReply, nil
}

func (c *GeminiClient) Analyze(ctx context.Context, image models.ImageRef, mode models.Mode) ([]models.SuggestedStyle, error) {
	text, err := c.describe(ctx, image, AnalyzePrompt(mode), "application/json")
	if err != nil {
		return nil, err
	}
	return parseSuggestions(text, c.now())
}

func (c *GeminiClient) AnalyzeStyleReference(ctx context.Context, image models.ImageRef) (string, error) {
	return c.describe(ctx, image, styleReferencePrompt, "")
}

func (c *GeminiClient) describe(ctx context.Context, image models.ImageRef, prompt, responseMimeType string) (string, error) {
	data, mimeType, err := loadImage(ctx, c.httpClient, image)
	if err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}

	req := GenerateContentRequest{
		Contents: []geminiContent{{
			Role:  string(models.RoleUser),
			Parts: []geminiPart{inlinePart(data, mimeType), {Text: prompt}},
		}},
	}
	if responseMimeType != "" {
		req.GenerationConfig = &geminiGenerationConfig{ResponseMimeType: responseMimeType}
	}

	var resp *GenerateContentResponse
	err = c.RetryWithBackoff(func() error {
		var err error
		resp, err = c.generateContent(ctx, c.chatModel, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return resp.text(), nil
}

func (c *GeminiClient) generateContent(ctx context.Context, model string, body GenerateContentRequest) (*GenerateContentResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/models/" + model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to generate content: %w", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)})
	}

	var result GenerateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return &result, nil
}

// RetryWithBackoff executes fn, retrying with backoff while the error is a
// retryable API error. Other errors are returned immediately.
func (c *GeminiClient) RetryWithBackoff(fn func() error) error {
	maxRetries := len(c.backoffs) + 1

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() {
			return err
		}
		if i < len(c.backoffs) {
			time.Sleep(c.backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
