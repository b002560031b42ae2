package models

type CreateProjectRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// UpdateProjectRequest is a shallow patch: every field that is present
// replaces the current value wholesale.
type UpdateProjectRequest struct {
	Name            *string           `json:"name,omitempty"`
	Mode            *string           `json:"mode,omitempty"`
	OriginalImage   *ImageRef         `json:"original_image,omitempty"`
	ReferenceImage  *ImageRef         `json:"reference_image,omitempty"`
	GeneratedImages *[]GeneratedImage `json:"generated_images,omitempty"`
	ChatMessages    *[]ChatMessage    `json:"chat_messages,omitempty"`
	ImageCount      *int              `json:"image_count,omitempty"`
	UserPrompt      *string           `json:"user_prompt,omitempty"`
}

type GenerateRequest struct {
	Prompt      string `json:"prompt" binding:"required"`
	Label       string `json:"label"`
	Count       int    `json:"count"`
	AspectRatio string `json:"aspect_ratio"`
}

type ChatRequest struct {
	Text string `json:"text" binding:"required"`
	// Type is "chat" (default) or "visualize".
	Type string `json:"type"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
