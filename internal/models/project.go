package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Owner is the authenticated user a project is saved for.
type Owner struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Mode string

const (
	ModeInterior Mode = "interior"
	ModeProduct  Mode = "product"
	ModeAsset    Mode = "asset"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInterior, ModeProduct, ModeAsset:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Label is the subject noun shown for a mode.
func (m Mode) Label() string {
	switch m {
	case ModeInterior:
		return "Room"
	case ModeProduct:
		return "Product"
	default:
		return "Asset"
	}
}

type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleModel, RoleSystem:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

type MessageType string

const (
	MessageText                  MessageType = "text"
	MessageImageGenerationResult MessageType = "image_generation_result"
)

type ChatMessage struct {
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"`
	Type      MessageType `json:"type"`
}

type GeneratedImage struct {
	ID        string   `json:"id"`
	URL       ImageRef `json:"url"`
	Prompt    string   `json:"prompt"`
	StyleName string   `json:"style_name"`
	Timestamp int64    `json:"timestamp"`
}

// NewGeneratedImageID derives an id from the creation time and the position
// in the batch, so images created in the same millisecond do not collide.
func NewGeneratedImageID(timestampMs int64, index int) string {
	return strconv.FormatInt(timestampMs, 10) + strconv.Itoa(index)
}

// Image ids become object names, so they are limited to a single safe
// path segment.
var imageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// OriginalImageID is the image row id reserved for a project's original.
func OriginalImageID(projectID string) string {
	return "orig_" + projectID
}

// ValidateGeneratedImages rejects ids that are malformed, repeated, or
// collide with the original image of projectID.
func ValidateGeneratedImages(projectID string, imgs []GeneratedImage) error {
	seen := make(map[string]struct{}, len(imgs))
	for _, img := range imgs {
		if !imageIDPattern.MatchString(img.ID) {
			return fmt.Errorf("%w: %q", ErrInvalidImageID, img.ID)
		}
		if img.ID == OriginalImageID(projectID) {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidImageID, img.ID)
		}
		if _, ok := seen[img.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateImage, img.ID)
		}
		seen[img.ID] = struct{}{}
	}
	return nil
}

type SuggestedStyle struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
	Color       string `json:"color"`
}

type Project struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Mode            Mode             `json:"mode"`
	CreatedAt       int64            `json:"created_at"`
	UpdatedAt       int64            `json:"updated_at"`
	OriginalImage   ImageRef         `json:"original_image"`
	ReferenceImage  ImageRef         `json:"reference_image"`
	GeneratedImages []GeneratedImage `json:"generated_images"`
	ChatMessages    []ChatMessage    `json:"chat_messages"`
	SuggestedStyles []SuggestedStyle `json:"suggested_styles"`
	ImageCount      int              `json:"image_count"`
	UserPrompt      string           `json:"user_prompt,omitempty"`
}

// Clone returns a copy whose slices can be modified without touching p.
func (p Project) Clone() Project {
	c := p
	c.GeneratedImages = append([]GeneratedImage{}, p.GeneratedImages...)
	c.ChatMessages = append([]ChatMessage{}, p.ChatMessages...)
	c.SuggestedStyles = append([]SuggestedStyle{}, p.SuggestedStyles...)
	return c
}

// CurrentImage is the image the user is looking at: the latest generated
// version, or the original when nothing was generated yet.
func (p Project) CurrentImage() ImageRef {
	if n := len(p.GeneratedImages); n > 0 {
		return p.GeneratedImages[n-1].URL
	}
	return p.OriginalImage
}
