package project

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"reimagine-studio/internal/models"
)

const DefaultName = "Untitled Project"

// Patch is a shallow update. Every non-nil field replaces the current value
// wholesale; slices are not merged.
type Patch struct {
	Name            *string
	Mode            *models.Mode
	OriginalImage   *models.ImageRef
	ReferenceImage  *models.ImageRef
	GeneratedImages *[]models.GeneratedImage
	ChatMessages    *[]models.ChatMessage
	SuggestedStyles *[]models.SuggestedStyle
	ImageCount      *int
	UserPrompt      *string
}

// State holds the single live project of one user session.
type State struct {
	mu      sync.Mutex
	current *models.Project
	now     func() time.Time
}

type Option func(*State)

func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

func NewState(opts ...Option) *State {
	s := &State{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *State) nowMs() int64 {
	return s.now().UnixMilli()
}

// InitNewProject discards the current project and starts a fresh one.
func (s *State) InitNewProject(mode models.Mode) models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.nowMs()
	p := models.Project{
		ID:              "proj_" + uuid.New().String(),
		Name:            DefaultName,
		Mode:            mode,
		CreatedAt:       ts,
		UpdatedAt:       ts,
		GeneratedImages: []models.GeneratedImage{},
		ChatMessages:    []models.ChatMessage{},
		SuggestedStyles: []models.SuggestedStyle{},
		ImageCount:      1,
	}
	s.current = &p
	return p.Clone()
}

func (s *State) UpdateProject(patch Patch) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return models.Project{}, false
	}
	p := s.current
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Mode != nil {
		p.Mode = *patch.Mode
	}
	if patch.OriginalImage != nil {
		p.OriginalImage = *patch.OriginalImage
	}
	if patch.ReferenceImage != nil {
		p.ReferenceImage = *patch.ReferenceImage
	}
	if patch.GeneratedImages != nil {
		p.GeneratedImages = append([]models.GeneratedImage{}, (*patch.GeneratedImages)...)
	}
	if patch.ChatMessages != nil {
		p.ChatMessages = append([]models.ChatMessage{}, (*patch.ChatMessages)...)
	}
	if patch.SuggestedStyles != nil {
		p.SuggestedStyles = append([]models.SuggestedStyle{}, (*patch.SuggestedStyles)...)
	}
	if patch.ImageCount != nil {
		p.ImageCount = *patch.ImageCount
	}
	if patch.UserPrompt != nil {
		p.UserPrompt = *patch.UserPrompt
	}
	p.UpdatedAt = s.nowMs()
	return p.Clone(), true
}

func (s *State) AddGeneratedImages(imgs ...models.GeneratedImage) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return models.Project{}, false
	}
	s.current.GeneratedImages = append(s.current.GeneratedImages, imgs...)
	s.current.UpdatedAt = s.nowMs()
	return s.current.Clone(), true
}

func (s *State) AppendChatMessages(msgs ...models.ChatMessage) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return models.Project{}, false
	}
	s.current.ChatMessages = append(s.current.ChatMessages, msgs...)
	s.current.UpdatedAt = s.nowMs()
	return s.current.Clone(), true
}

// Snapshot returns a deep copy of the current project.
func (s *State) Snapshot() (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return models.Project{}, false
	}
	return s.current.Clone(), true
}

// Load replaces the current project, e.g. when opening one from the library.
func (s *State) Load(p models.Project) models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := p.Clone()
	s.current = &c
	return c.Clone()
}

// ReplaceImages swaps inline images for their stored counterparts after a
// save. Images are matched by id so results appended while the save was in
// flight are kept. Nothing happens if the live project was replaced.
func (s *State) ReplaceImages(saved models.Project) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != saved.ID {
		return models.Project{}, false
	}
	p := s.current
	if p.OriginalImage.IsInline() && saved.OriginalImage.IsRemote() {
		p.OriginalImage = saved.OriginalImage
	}
	if p.ReferenceImage.IsInline() && saved.ReferenceImage.IsRemote() {
		p.ReferenceImage = saved.ReferenceImage
	}
	urls := make(map[string]models.ImageRef, len(saved.GeneratedImages))
	for _, img := range saved.GeneratedImages {
		urls[img.ID] = img.URL
	}
	for i, img := range p.GeneratedImages {
		if u, ok := urls[img.ID]; ok && img.URL.IsInline() {
			p.GeneratedImages[i].URL = u
		}
	}
	return p.Clone(), true
}

func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
