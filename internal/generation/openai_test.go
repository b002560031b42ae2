package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reimagine-studio/internal/models"
)

func chatCompletion(content string) []byte {
	b, _ := json.Marshal(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	})
	return b
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/edits", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("subject"), data)
		assert.Equal(t, "image.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))
		assert.Equal(t, "1536x1024", r.FormValue("size"))
		assert.Contains(t, r.FormValue("prompt"), "Concrete plinth")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("png"))}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("ok", srv.URL+"/v1", "gpt-image-1", "gpt-4o")
	img, err := p.Generate(context.Background(), GenerateRequest{
		Image:       models.InlineImage([]byte("subject"), "image/jpeg"),
		Prompt:      "Concrete plinth",
		Mode:        models.ModeProduct,
		AspectRatio: "16:9",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img.Data())
}

func TestOpenAIProvider_ChatMapsRoles(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write(chatCompletion("Go for [VISUALIZE: Dramatic Noir]"))
	}))
	defer srv.Close()

	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello", Type: models.MessageText},
		{Role: models.RoleModel, Content: "hi", Type: models.MessageText},
	}
	p := NewOpenAIProvider("ok", srv.URL+"/v1", "gpt-image-1", "gpt-4o")
	reply, err := p.Chat(context.Background(), history, "moodier?", models.ModeInterior, models.RemoteImage("https://cdn.example.com/current.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dramatic Noir"}, ParseVisualizeTags(reply))

	require.Len(t, got.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, got.Messages[2].Role)
	last := got.Messages[3]
	require.Len(t, last.MultiContent, 2)
	assert.Equal(t, "https://cdn.example.com/current.jpg", last.MultiContent[1].ImageURL.URL)
}

func TestOpenAIProvider_AnalyzeFallsBackOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(chatCompletion("sorry, no json today"))
	}))
	defer srv.Close()

	svc := WithFallbacks(NewOpenAIProvider("ok", srv.URL+"/v1", "gpt-image-1", "gpt-4o"), zap.NewNop())

	styles, err := svc.Analyze(context.Background(), models.InlineImage([]byte("s"), ""), models.ModeAsset)
	require.NoError(t, err)
	assert.Equal(t, FallbackSuggestions(), styles)
}

func TestWithFallbacks_StyleReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	svc := WithFallbacks(NewOpenAIProvider("ok", srv.URL+"/v1", "gpt-image-1", "gpt-4o"), nil)
	desc, err := svc.AnalyzeStyleReference(context.Background(), models.InlineImage([]byte("s"), ""))
	require.NoError(t, err)
	assert.Equal(t, FallbackStyleDescription, desc)

	_, err = svc.Generate(context.Background(), GenerateRequest{Image: models.InlineImage([]byte("s"), ""), Prompt: "p"})
	assert.Error(t, err)
}
