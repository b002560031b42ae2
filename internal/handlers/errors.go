package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reimagine-studio/internal/models"
	"reimagine-studio/internal/services"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var uploadErr *services.UploadError
	var genErr *services.GenerationError

	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNoProject), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoOriginalImage):
		return http.StatusConflict
	case errors.Is(err, models.ErrDecode),
		errors.Is(err, models.ErrInvalidMode),
		errors.Is(err, models.ErrInvalidRole),
		errors.Is(err, models.ErrInvalidImageID),
		errors.Is(err, models.ErrDuplicateImage),
		errors.Is(err, models.ErrForeignImageURL),
		errors.Is(err, models.ErrInvalidPath),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrEmptyPrompt),
		errors.Is(err, services.ErrBatchTooLarge),
		errors.Is(err, services.ErrUnknownChatKind):
		return http.StatusBadRequest
	case errors.As(err, &uploadErr), errors.As(err, &genErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg,
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, models.ErrorResponse{
		Error:   msg,
		Message: err.Error(),
	})
}
