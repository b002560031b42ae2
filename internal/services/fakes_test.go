package services_test

import (
	"context"
	"errors"
	"sync"

	"reimagine-studio/internal/generation"
	"reimagine-studio/internal/models"
)

type putCall struct {
	Path        string
	Data        []byte
	ContentType string
}

type fakeStore struct {
	mu        sync.Mutex
	puts      []putCall
	objects   map[string][]byte
	failPath  string
	deleted   []string
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, path string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if path == f.failPath {
		return "", errors.New("connection reset")
	}
	f.puts = append(f.puts, putCall{Path: path, Data: data, ContentType: contentType})
	f.objects[path] = data
	return "https://store.test/" + path, nil
}

func (f *fakeStore) PublicURL(path string) string {
	return "https://store.test/" + path
}

func (f *fakeStore) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, prefix)
	return f.deleteErr
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type publishedEvent struct {
	UserID, ProjectID, Event string
}

type fakeEvents struct {
	events []publishedEvent
	err    error
}

func (f *fakeEvents) PublishProjectEvent(_ context.Context, userID, projectID, event string, _ map[string]interface{}) error {
	f.events = append(f.events, publishedEvent{UserID: userID, ProjectID: projectID, Event: event})
	return f.err
}

// fakeGen answers Generate calls from a script; a nil entry succeeds.
type fakeGen struct {
	generateErrs []error
	generateReqs []generation.GenerateRequest

	chatReply   string
	chatErr     error
	chatHistory []models.ChatMessage
	chatImage   models.ImageRef

	styles   []models.SuggestedStyle
	styleRef string
	styleErr error
}

func (f *fakeGen) Generate(_ context.Context, req generation.GenerateRequest) (models.ImageRef, error) {
	i := len(f.generateReqs)
	f.generateReqs = append(f.generateReqs, req)
	if i < len(f.generateErrs) && f.generateErrs[i] != nil {
		return models.ImageRef{}, f.generateErrs[i]
	}
	return models.InlineImage([]byte{byte('a' + i)}, "image/png"), nil
}

func (f *fakeGen) Chat(_ context.Context, history []models.ChatMessage, _ string, _ models.Mode, contextImage models.ImageRef) (string, error) {
	f.chatHistory = history
	f.chatImage = contextImage
	return f.chatReply, f.chatErr
}

func (f *fakeGen) Analyze(context.Context, models.ImageRef, models.Mode) ([]models.SuggestedStyle, error) {
	return f.styles, nil
}

func (f *fakeGen) AnalyzeStyleReference(context.Context, models.ImageRef) (string, error) {
	return f.styleRef, f.styleErr
}
