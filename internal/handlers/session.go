package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reimagine-studio/internal/middleware"
	"reimagine-studio/internal/models"
	"reimagine-studio/internal/project"
)

type SessionHandler struct {
	sessions *project.Sessions
}

func NewSessionHandler(sessions *project.Sessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SignOut drops the user's in-memory project; nothing more is persisted
// for it.
func (h *SessionHandler) SignOut(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	h.sessions.SignOut(owner.ID)
	c.JSON(http.StatusOK, models.HealthResponse{Status: "signed_out"})
}
