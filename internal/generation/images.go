package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reimagine-studio/internal/models"
)

var maxImageBytes int64 = 20 << 20

// loadImage returns the bytes of ref, downloading remote images.
func loadImage(ctx context.Context, client *http.Client, ref models.ImageRef) ([]byte, string, error) {
	switch {
	case ref.IsInline():
		return ref.Data(), ref.MimeType(), nil
	case ref.IsRemote():
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL(), nil)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("failed to download image: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read image: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("failed to download image: %w", &APIError{StatusCode: resp.StatusCode, Body: string(data)})
		}
		if int64(len(data)) > maxImageBytes {
			return nil, "", fmt.Errorf("%w: %s is over %d bytes", ErrImageTooLarge, ref.URL(), maxImageBytes)
		}

		mimeType := resp.Header.Get("Content-Type")
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/jpeg"
		}
		return data, mimeType, nil
	default:
		return nil, "", ErrNoInput
	}
}

type suggestionJSON struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Color       string `json:"color"`
}

// parseSuggestions accepts either {"suggestions": [...]} or a bare array.
func parseSuggestions(raw string, now time.Time) ([]models.SuggestedStyle, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var items []suggestionJSON
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
	} else {
		var wrapped struct {
			Suggestions []suggestionJSON `json:"suggestions"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode suggestions: %w", err)
		}
		items = wrapped.Suggestions
	}

	styles := make([]models.SuggestedStyle, 0, len(items))
	for i, it := range items {
		if it.Label == "" || it.Prompt == "" {
			continue
		}
		styles = append(styles, models.SuggestedStyle{
			ID:          fmt.Sprintf("sugg-%d-%d", now.UnixMilli(), i),
			Label:       it.Label,
			Description: it.Description,
			Prompt:      it.Prompt,
			Color:       it.Color,
		})
	}
	if len(styles) == 0 {
		return nil, fmt.Errorf("no usable suggestions in response")
	}
	return styles, nil
}
