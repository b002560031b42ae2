package models

type ProjectResponse struct {
	Project Project `json:"project"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Mode           Mode   `json:"mode"`
	OriginalImage  string `json:"original_image,omitempty"`
	GeneratedCount int    `json:"generated_count"`
	ImageCount     int    `json:"image_count"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
}

func NewProjectSummary(p Project) ProjectSummary {
	return ProjectSummary{
		ID:             p.ID,
		Name:           p.Name,
		Mode:           p.Mode,
		OriginalImage:  p.OriginalImage.URL(),
		GeneratedCount: len(p.GeneratedImages),
		ImageCount:     p.ImageCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type GenerateResponse struct {
	Project   Project  `json:"project"`
	Requested int      `json:"requested"`
	Generated int      `json:"generated"`
	Error     string   `json:"error,omitempty"`
	FailedAt  *int     `json:"failed_at,omitempty"`
	Images    []string `json:"images"`
}

type ChatResponse struct {
	Reply      string            `json:"reply,omitempty"`
	Visualize  []string          `json:"visualize,omitempty"`
	Project    Project           `json:"project"`
	Generation *GenerateResponse `json:"generation,omitempty"`
}

type AnalyzeResponse struct {
	Suggestions []SuggestedStyle `json:"suggestions"`
}

type SaveResponse struct {
	Project Project `json:"project"`
	Status  string  `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
