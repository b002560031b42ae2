package handlers

import (
	"github.com/gin-gonic/gin"

	"reimagine-studio/internal/config"
	"reimagine-studio/internal/middleware"
)

type Handlers struct {
	DB        Pinger
	Workspace *WorkspaceHandler
	Projects  *ProjectsHandler
	Session   *SessionHandler
}

func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Health check (no auth)
	router.GET("/health", HealthHandler(h.DB))

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Workspace
	api.POST("/workspace", h.Workspace.CreateProject)
	api.GET("/workspace", h.Workspace.GetProject)
	api.PATCH("/workspace", h.Workspace.UpdateProject)
	api.POST("/workspace/generate", h.Workspace.Generate)
	api.POST("/workspace/chat", h.Workspace.Chat)
	api.POST("/workspace/analyze", h.Workspace.Analyze)
	api.POST("/workspace/save", h.Workspace.SaveProject)
	api.POST("/workspace/open/:project_id", h.Workspace.OpenProject)

	// Library
	api.GET("/projects", h.Projects.ListProjects)
	api.DELETE("/projects/:project_id", h.Projects.DeleteProject)

	// Session
	api.POST("/session/signout", h.Session.SignOut)

	return router
}
