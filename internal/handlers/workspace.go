package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reimagine-studio/internal/middleware"
	"reimagine-studio/internal/models"
	"reimagine-studio/internal/project"
	"reimagine-studio/internal/services"
)

// WorkspaceHandler serves the signed-in user's live project.
type WorkspaceHandler struct {
	sessions *project.Sessions
	studio   *services.Studio
	sync     *services.SyncService
	logger   *zap.Logger
}

func NewWorkspaceHandler(sessions *project.Sessions, studio *services.Studio, sync *services.SyncService, logger *zap.Logger) *WorkspaceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceHandler{
		sessions: sessions,
		studio:   studio,
		sync:     sync,
		logger:   logger,
	}
}

func (h *WorkspaceHandler) state(c *gin.Context) (*project.State, models.Owner, bool) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, models.Owner{}, false
	}
	return h.sessions.For(owner.ID), owner, true
}

func (h *WorkspaceHandler) CreateProject(c *gin.Context) {
	state, _, ok := h.state(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		respondError(c, h.logger, "invalid mode", err)
		return
	}

	p := state.InitNewProject(mode)
	c.JSON(http.StatusCreated, models.ProjectResponse{Project: p})
}

func (h *WorkspaceHandler) GetProject(c *gin.Context) {
	state, _, ok := h.state(c)
	if !ok {
		return
	}

	p, ok := state.Snapshot()
	if !ok {
		respondError(c, h.logger, "no current project", models.ErrNoProject)
		return
	}
	c.JSON(http.StatusOK, models.ProjectResponse{Project: p})
}

func (h *WorkspaceHandler) UpdateProject(c *gin.Context) {
	state, owner, ok := h.state(c)
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	current, _ := state.Snapshot()
	patch, err := patchFromRequest(req)
	if err == nil {
		err = h.checkPatchImages(req, owner.ID, current)
	}
	if err != nil {
		respondError(c, h.logger, "invalid request", err)
		return
	}

	p, err := h.studio.UpdateProject(c.Request.Context(), state, patch)
	if err != nil {
		respondError(c, h.logger, "failed to update project", err)
		return
	}
	c.JSON(http.StatusOK, models.ProjectResponse{Project: p})
}

func patchFromRequest(req models.UpdateProjectRequest) (project.Patch, error) {
	patch := project.Patch{
		Name:            req.Name,
		OriginalImage:   req.OriginalImage,
		ReferenceImage:  req.ReferenceImage,
		GeneratedImages: req.GeneratedImages,
		ChatMessages:    req.ChatMessages,
		ImageCount:      req.ImageCount,
		UserPrompt:      req.UserPrompt,
	}
	if req.Mode != nil {
		mode, err := models.ParseMode(*req.Mode)
		if err != nil {
			return project.Patch{}, err
		}
		patch.Mode = &mode
	}
	if req.ChatMessages != nil {
		for _, msg := range *req.ChatMessages {
			if _, err := models.ParseRole(string(msg.Role)); err != nil {
				return project.Patch{}, err
			}
		}
	}
	return patch, nil
}

// checkPatchImages rejects generated image ids that cannot be saved and
// remote images the server would otherwise fetch from arbitrary hosts.
// A remote URL passes when the live project already holds it or when it
// points into the owner's object storage.
func (h *WorkspaceHandler) checkPatchImages(req models.UpdateProjectRequest, ownerID string, current models.Project) error {
	if req.GeneratedImages != nil {
		if err := models.ValidateGeneratedImages(current.ID, *req.GeneratedImages); err != nil {
			return err
		}
	}

	known := map[string]struct{}{}
	for _, ref := range projectImages(current) {
		if ref.IsRemote() {
			known[ref.URL()] = struct{}{}
		}
	}
	check := func(ref models.ImageRef) error {
		if _, ok := known[ref.URL()]; ok && ref.IsRemote() {
			return nil
		}
		return h.sync.CheckImageURL(ownerID, ref)
	}

	if req.OriginalImage != nil {
		if err := check(*req.OriginalImage); err != nil {
			return err
		}
	}
	if req.ReferenceImage != nil {
		if err := check(*req.ReferenceImage); err != nil {
			return err
		}
	}
	if req.GeneratedImages != nil {
		for _, img := range *req.GeneratedImages {
			if err := check(img.URL); err != nil {
				return err
			}
		}
	}
	return nil
}

func projectImages(p models.Project) []models.ImageRef {
	refs := make([]models.ImageRef, 0, len(p.GeneratedImages)+2)
	refs = append(refs, p.OriginalImage, p.ReferenceImage)
	for _, img := range p.GeneratedImages {
		refs = append(refs, img.URL)
	}
	return refs
}

func (h *WorkspaceHandler) Generate(c *gin.Context) {
	state, _, ok := h.state(c)
	if !ok {
		return
	}

	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	res, err := h.studio.Generate(c.Request.Context(), state, services.BatchRequest{
		Prompt:      req.Prompt,
		Label:       req.Label,
		Count:       req.Count,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		respondError(c, h.logger, "failed to generate", err)
		return
	}

	resp := generateResponse(res)
	if res.Err != nil {
		c.JSON(statusFor(res.Err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func generateResponse(res services.BatchResult) models.GenerateResponse {
	resp := models.GenerateResponse{
		Project:   res.Project,
		Requested: res.Requested,
		Generated: res.Generated(),
		Images:    make([]string, 0, len(res.Images)),
	}
	for _, img := range res.Images {
		resp.Images = append(resp.Images, img.ID)
	}
	var genErr *services.GenerationError
	if errors.As(res.Err, &genErr) {
		idx := genErr.Index
		resp.FailedAt = &idx
		resp.Error = genErr.Error()
	}
	return resp
}

func (h *WorkspaceHandler) Chat(c *gin.Context) {
	state, _, ok := h.state(c)
	if !ok {
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	res, err := h.studio.Chat(c.Request.Context(), state, req.Text, services.ChatKind(req.Type))
	if err != nil {
		respondError(c, h.logger, "failed to chat", err)
		return
	}

	resp := models.ChatResponse{
		Reply:     res.Reply,
		Visualize: res.Visualize,
		Project:   res.Project,
	}
	if res.Generation != nil {
		gen := generateResponse(*res.Generation)
		resp.Generation = &gen
		if res.Generation.Err != nil {
			c.JSON(statusFor(res.Generation.Err), resp)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *WorkspaceHandler) Analyze(c *gin.Context) {
	state, _, ok := h.state(c)
	if !ok {
		return
	}

	styles, _, err := h.studio.Analyze(c.Request.Context(), state)
	if err != nil {
		respondError(c, h.logger, "failed to analyze image", err)
		return
	}
	c.JSON(http.StatusOK, models.AnalyzeResponse{Suggestions: styles})
}

// SaveProject persists the live project and swaps its inline images for
// the stored URLs.
func (h *WorkspaceHandler) SaveProject(c *gin.Context) {
	state, owner, ok := h.state(c)
	if !ok {
		return
	}

	snap, ok := state.Snapshot()
	if !ok {
		respondError(c, h.logger, "no current project", models.ErrNoProject)
		return
	}

	stored, err := h.sync.SaveProject(c.Request.Context(), snap, owner)
	if err != nil {
		respondError(c, h.logger, "failed to save project", err)
		return
	}

	current, ok := state.ReplaceImages(stored)
	if !ok {
		current = stored
	}
	c.JSON(http.StatusOK, models.SaveResponse{Project: current, Status: "saved"})
}

// OpenProject loads a saved project into the workspace.
func (h *WorkspaceHandler) OpenProject(c *gin.Context) {
	state, owner, ok := h.state(c)
	if !ok {
		return
	}

	p, err := h.sync.GetProject(c.Request.Context(), owner.ID, c.Param("project_id"))
	if err != nil {
		respondError(c, h.logger, "failed to open project", err)
		return
	}
	c.JSON(http.StatusOK, models.ProjectResponse{Project: state.Load(*p)})
}
