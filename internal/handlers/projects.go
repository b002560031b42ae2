package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reimagine-studio/internal/middleware"
	"reimagine-studio/internal/models"
	"reimagine-studio/internal/project"
	"reimagine-studio/internal/services"
)

// ProjectsHandler serves the saved project library.
type ProjectsHandler struct {
	sync     *services.SyncService
	sessions *project.Sessions
	logger   *zap.Logger
}

func NewProjectsHandler(sync *services.SyncService, sessions *project.Sessions, logger *zap.Logger) *ProjectsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectsHandler{sync: sync, sessions: sessions, logger: logger}
}

func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	projects, err := h.sync.ListProjects(c.Request.Context(), owner.ID)
	if err != nil {
		respondError(c, h.logger, "failed to list projects", err)
		return
	}

	summaries := make([]models.ProjectSummary, len(projects))
	for i, p := range projects {
		summaries[i] = models.NewProjectSummary(p)
	}
	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries})
}

func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	projectID := c.Param("project_id")
	if err := h.sync.DeleteProject(c.Request.Context(), owner, projectID); err != nil {
		respondError(c, h.logger, "failed to delete project", err)
		return
	}

	// a deleted project must not be saved back from the workspace
	state := h.sessions.For(owner.ID)
	if p, ok := state.Snapshot(); ok && p.ID == projectID {
		state.Clear()
	}
	c.Status(http.StatusNoContent)
}
